package context

import (
	"testing"

	"github.com/spaghettifunk/basalt/core"
	"github.com/spaghettifunk/basalt/render"
)

type fakeDevice struct {
	swapchainCalls  int
	lastVSync       bool
	msaaCalls       int
	lastMSAA        uint8
	taskGraphCalls  int
	lastShape       TaskGraphShape
	updates         []render.UpdateEvent
	execCalls       int
	execErr         error
	closed          bool
	recreateErr     error
}

func (f *fakeDevice) RecreateSwapchain(vsync bool) error {
	f.swapchainCalls++
	f.lastVSync = vsync
	return f.recreateErr
}
func (f *fakeDevice) RecreateMSAA(level uint8) error {
	f.msaaCalls++
	f.lastMSAA = level
	return nil
}
func (f *fakeDevice) RecreateTaskGraph(shape TaskGraphShape, msaaLevel uint8) error {
	f.taskGraphCalls++
	f.lastShape = shape
	return nil
}
func (f *fakeDevice) ApplyUpdate(u render.UpdateEvent) { f.updates = append(f.updates, u) }
func (f *fakeDevice) Execute() error {
	f.execCalls++
	return f.execErr
}
func (f *fakeDevice) Close() { f.closed = true }

func TestRenderContextBuildsTaskGraphOnFirstExecute(t *testing.T) {
	dev := &fakeDevice{}
	rc := NewRenderContext(dev, ShapeUIOnly, 1, true)

	if err := rc.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dev.taskGraphCalls != 1 {
		t.Fatalf("expected one task graph build on first execute, got %d", dev.taskGraphCalls)
	}
	if dev.swapchainCalls != 0 {
		t.Fatalf("expected no swapchain recreate without CheckExtent/SetVSync, got %d", dev.swapchainCalls)
	}

	if err := rc.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dev.taskGraphCalls != 1 {
		t.Fatalf("expected task graph to stay built across subsequent executes, got %d", dev.taskGraphCalls)
	}
}

func TestRenderContextCheckExtentRecreatesSwapchainAndTaskGraph(t *testing.T) {
	dev := &fakeDevice{}
	rc := NewRenderContext(dev, ShapeUIOnly, 1, true)
	rc.Execute()

	rc.CheckExtent()
	if err := rc.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dev.swapchainCalls != 1 {
		t.Fatalf("expected one swapchain recreate after CheckExtent, got %d", dev.swapchainCalls)
	}
	if dev.taskGraphCalls != 2 {
		t.Fatalf("expected swapchain recreation to also rebuild the task graph, got %d", dev.taskGraphCalls)
	}
}

func TestRenderContextSetMSAAInvalidatesTaskGraph(t *testing.T) {
	dev := &fakeDevice{}
	rc := NewRenderContext(dev, ShapeUIOnly, 1, true)
	rc.Execute()

	rc.SetMSAA(4)
	if err := rc.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dev.msaaCalls != 1 || dev.lastMSAA != 4 {
		t.Fatalf("expected one MSAA recreate at level 4, got %d calls, level %d", dev.msaaCalls, dev.lastMSAA)
	}
	if dev.taskGraphCalls != 2 {
		t.Fatalf("expected MSAA change to also rebuild the task graph, got %d", dev.taskGraphCalls)
	}
}

func TestRenderContextSetMSAANoOpWhenUnchanged(t *testing.T) {
	dev := &fakeDevice{}
	rc := NewRenderContext(dev, ShapeUIOnly, 4, true)
	rc.Execute()

	rc.SetMSAA(4)
	rc.Execute()
	if dev.msaaCalls != 0 {
		t.Fatalf("expected no MSAA recreate when the level is unchanged, got %d", dev.msaaCalls)
	}
	if dev.taskGraphCalls != 1 {
		t.Fatalf("expected no extra task graph rebuild, got %d", dev.taskGraphCalls)
	}
}

func TestRenderContextSetVSyncRecreatesSwapchain(t *testing.T) {
	dev := &fakeDevice{}
	rc := NewRenderContext(dev, ShapeUIOnly, 1, true)
	rc.Execute()

	rc.SetVSync(false)
	rc.Execute()
	if dev.swapchainCalls != 1 || dev.lastVSync != false {
		t.Fatalf("expected one swapchain recreate with vsync=false, got %d calls, vsync=%v", dev.swapchainCalls, dev.lastVSync)
	}
}

func TestRenderContextApplyUpdateForwardsToDevice(t *testing.T) {
	dev := &fakeDevice{}
	rc := NewRenderContext(dev, ShapeUIOnly, 1, true)

	rc.ApplyUpdate(render.UpdateEvent{DrawCount: 3})
	if len(dev.updates) != 1 || dev.updates[0].DrawCount != 3 {
		t.Fatalf("expected the update to be forwarded to the device, got %+v", dev.updates)
	}
}

func TestRenderContextOutOfDateMarksSwapchainForRecreateAndPropagates(t *testing.T) {
	dev := &fakeDevice{execErr: core.NewRenderError(core.KindSwapchainOutOfDate, nil)}
	rc := NewRenderContext(dev, ShapeUIOnly, 1, true)

	if err := rc.Execute(); err == nil {
		t.Fatalf("expected the out-of-date error to be returned to the caller")
	}

	dev.execErr = nil
	if err := rc.Execute(); err != nil {
		t.Fatalf("unexpected error on retry: %v", err)
	}
	if dev.swapchainCalls != 1 {
		t.Fatalf("expected the next execute to recreate the swapchain, got %d", dev.swapchainCalls)
	}
}

func TestRenderContextSetSpecificReportsDroppedImagesOnlyBetweenSpecificModes(t *testing.T) {
	dev := &fakeDevice{}
	rc := NewRenderContext(dev, ShapeUIOnly, 1, true)

	if dropped := rc.SetSpecific(SpecificItfOnly); dropped {
		t.Fatalf("expected no drop transitioning from None")
	}
	if dropped := rc.SetSpecific(SpecificUser); !dropped {
		t.Fatalf("expected a drop transitioning between two Specific modes")
	}
}

func TestRenderContextCloseDelegatesToDevice(t *testing.T) {
	dev := &fakeDevice{}
	rc := NewRenderContext(dev, ShapeUIOnly, 1, true)
	rc.Close()
	if !dev.closed {
		t.Fatalf("expected Close to delegate to the device")
	}
}
