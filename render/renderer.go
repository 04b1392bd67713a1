package render

import (
	"errors"

	"github.com/spaghettifunk/basalt/core"
)

// ExecutionContext is the seam between the Renderer loop and the
// RenderContext/TaskGraph implementation (spec.md §4.F), which lives in
// the render/context package. The loop never constructs task graphs or
// talks to Vulkan directly; it only reacts to RenderEvents and asks the
// context to reconcile and present.
type ExecutionContext interface {
	// ApplyUpdate records a fresh GPU resource set (buffer id, image
	// ids, draw count) produced by the worker coordinator, publishing
	// the accompanying SyncToken once the resources are no longer
	// needed by a prior in-flight frame.
	ApplyUpdate(u UpdateEvent)
	// SetMSAA invalidates the task graph and MSAA image.
	SetMSAA(level uint8)
	// SetVSync updates present-mode preference and recreates the
	// swapchain.
	SetVSync(on bool)
	// CheckExtent sets the swapchain recreate flag.
	CheckExtent()
	// Execute recreates the swapchain/task graph if any flag is set,
	// then executes one present. A KindSwapchainOutOfDate RenderError
	// is recoverable: the caller should retry on the next loop tick.
	Execute() error
	// Close releases every GPU resource the context holds.
	Close()
}

// Renderer is the top-level event-driven loop spec.md §4.G describes:
// it drains the RenderEvent stream the worker coordinator produces and
// drives an ExecutionContext from it, either blocking until a
// draw-requiring event arrives (conservative-draw) or looping as fast
// as present allows (non-conservative).
//
// Grounded on original_source/src/render/mod.rs's renderer loop and the
// teacher's engine/renderer/renderer.go DrawFrame dispatch shape,
// generalized from a per-tick BeginFrame/EndFrame pair to an
// event-driven drain-then-execute loop.
type Renderer struct {
	ctx              ExecutionContext
	eventCh          <-chan RenderEvent
	conservativeDraw bool
}

func NewRenderer(ctx ExecutionContext, eventCh <-chan RenderEvent, conservativeDraw bool) *Renderer {
	return &Renderer{ctx: ctx, eventCh: eventCh, conservativeDraw: conservativeDraw}
}

// SetConservativeDraw toggles between blocking-until-draw-needed and
// loop-as-fast-as-present-allows modes. The worker coordinator drops
// WindowSetConsvDraw events, so this method is the only way to change
// the mode after NewRenderer.
func (r *Renderer) SetConservativeDraw(on bool) {
	r.conservativeDraw = on
}

// Run drives the loop until the event channel disconnects or a
// RenderClose event is observed, returning the first fatal error
// encountered (KindSwapchainOutOfDate errors are retried internally
// and never returned).
func (r *Renderer) Run() error {
	defer r.ctx.Close()

	for {
		drew, closed, err := r.tick()
		if closed {
			return nil
		}
		if err != nil {
			return err
		}
		_ = drew
	}
}

// tick drains one batch of events and executes if warranted, returning
// whether a draw was issued and whether the loop should exit.
func (r *Renderer) tick() (drew bool, closed bool, err error) {
	requiresDraw := false

	if r.conservativeDraw {
		ev, ok := <-r.eventCh
		if !ok {
			return false, true, nil
		}
		if r.applyEvent(ev) {
			return false, true, nil
		}
		requiresDraw = ev.Kind.RequiresDraw()

		for !requiresDraw {
			ev, ok := <-r.eventCh
			if !ok {
				return false, true, nil
			}
			if r.applyEvent(ev) {
				return false, true, nil
			}
			requiresDraw = ev.Kind.RequiresDraw()
		}
	} else {
		for {
			select {
			case ev, ok := <-r.eventCh:
				if !ok {
					return false, true, nil
				}
				if r.applyEvent(ev) {
					return false, true, nil
				}
				if ev.Kind.RequiresDraw() {
					requiresDraw = true
				}
			default:
				requiresDraw = true
			}
			if requiresDraw {
				break
			}
		}
	}

	execErr := r.ctx.Execute()
	if execErr == nil {
		return true, false, nil
	}

	var rerr *core.RenderError
	if errors.As(execErr, &rerr) && rerr.Recoverable() {
		return true, false, nil
	}

	return true, false, execErr
}

// applyEvent folds one RenderEvent into the execution context, or
// reports that a RenderClose was observed and the loop should exit.
func (r *Renderer) applyEvent(ev RenderEvent) (shouldClose bool) {
	switch ev.Kind {
	case RenderClose:
		return true
	case RenderRedraw:
		// no context state change; the draw happens on the next Execute.
	case RenderUpdate:
		r.ctx.ApplyUpdate(ev.Update)
	case RenderCheckExtent:
		r.ctx.CheckExtent()
	case RenderSetMSAA:
		r.ctx.SetMSAA(uint8(ev.MSAA))
	case RenderSetVSync:
		r.ctx.SetVSync(ev.VSync == "on")
	case RenderSetMetricsLevel, RenderWorkerCycle, RenderOnFrame:
		// metrics/instrumentation events carry no execution-context
		// state; the host observes them directly off the channel if it
		// wants telemetry.
	}
	return false
}
