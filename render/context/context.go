package context

import (
	"errors"

	"github.com/spaghettifunk/basalt/core"
	"github.com/spaghettifunk/basalt/render"
)

// Device is the seam between RenderContext and the concrete Vulkan
// backend (the vulkan package). RenderContext never issues a Vulkan
// call directly; it only decides *when* a reconfiguration is due and
// delegates the actual recreation/submission to this interface, same
// as the render package's own ExecutionContext seam one layer up.
type Device interface {
	RecreateSwapchain(vsync bool) error
	RecreateMSAA(level uint8) error
	RecreateTaskGraph(shape TaskGraphShape, msaaLevel uint8) error
	ApplyUpdate(u render.UpdateEvent)
	Execute() error
	Close()
}

// RenderContext implements render.ExecutionContext (spec.md §4.F): it
// tracks the Swapchain and Specific-mode state machines and the
// reconfiguration flags check_extent/set_msaa/set_vsync set, folding
// them into a single update-then-execute step each frame.
type RenderContext struct {
	device Device

	shape    TaskGraphShape
	specific SpecificMode

	swapchain SwapchainState
	msaaLevel uint8
	vsync     bool

	msaaDirty      bool
	taskGraphDirty bool
}

// NewRenderContext builds a RenderContext for the given task graph
// shape. The task graph is always built on the first Execute call,
// since a freshly created device has nothing to tear down yet.
func NewRenderContext(device Device, shape TaskGraphShape, initialMSAA uint8, initialVSync bool) *RenderContext {
	return &RenderContext{
		device:         device,
		shape:          shape,
		msaaLevel:      initialMSAA,
		vsync:          initialVSync,
		taskGraphDirty: true,
	}
}

// ApplyUpdate forwards a fresh vertex/image set from the worker
// coordinator straight to the device; it carries no reconfiguration
// flag of its own.
func (rc *RenderContext) ApplyUpdate(u render.UpdateEvent) {
	rc.device.ApplyUpdate(u)
}

// SetMSAA invalidates the task graph and MSAA image (spec.md §4.F).
func (rc *RenderContext) SetMSAA(level uint8) {
	if level == rc.msaaLevel {
		return
	}
	rc.msaaLevel = level
	rc.msaaDirty = true
	rc.taskGraphDirty = true
}

// SetVSync updates present-mode preference and recreates the
// swapchain (spec.md §4.F).
func (rc *RenderContext) SetVSync(on bool) {
	if on == rc.vsync {
		return
	}
	rc.vsync = on
	rc.swapchain = SwapchainNeedsRecreate
}

// CheckExtent sets the swapchain recreate flag.
func (rc *RenderContext) CheckExtent() {
	rc.swapchain = SwapchainNeedsRecreate
}

// SetSpecific transitions the per-window Specific mode, reporting
// whether every image tied to the previous mode's task graph must be
// dropped (spec.md §4.F). A dropping transition forces a task graph
// rebuild on the next Execute.
func (rc *RenderContext) SetSpecific(next SpecificMode) (dropped bool) {
	dropped = TransitionDropsImages(rc.specific, next)
	rc.specific = next
	if dropped {
		rc.taskGraphDirty = true
	}
	return dropped
}

// Execute recreates whatever the dirty flags demand, then executes one
// present. A KindSwapchainOutOfDate error is absorbed into the
// swapchain state machine (it will recreate on the next call) and
// returned to the caller so the Renderer loop's recoverable-error path
// can decide not to treat it as fatal; every other error propagates
// unchanged.
func (rc *RenderContext) Execute() error {
	if err := rc.update(); err != nil {
		return err
	}

	err := rc.device.Execute()
	if err == nil {
		return nil
	}

	var rerr *core.RenderError
	if errors.As(err, &rerr) && rerr.Kind == core.KindSwapchainOutOfDate {
		rc.swapchain = SwapchainNeedsRecreate
	}
	return err
}

func (rc *RenderContext) update() error {
	if rc.swapchain == SwapchainNeedsRecreate {
		if err := rc.device.RecreateSwapchain(rc.vsync); err != nil {
			return err
		}
		rc.swapchain = SwapchainCurrent
		rc.taskGraphDirty = true
	}

	if rc.msaaDirty {
		if err := rc.device.RecreateMSAA(rc.msaaLevel); err != nil {
			return err
		}
		rc.msaaDirty = false
	}

	if rc.taskGraphDirty {
		if err := rc.device.RecreateTaskGraph(rc.shape, rc.msaaLevel); err != nil {
			return err
		}
		rc.taskGraphDirty = false
	}

	return nil
}

// Close releases every GPU resource the device holds.
func (rc *RenderContext) Close() {
	rc.device.Close()
}
