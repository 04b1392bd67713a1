package render

import (
	"testing"

	"github.com/spaghettifunk/basalt/core"
)

type fakeExecutionContext struct {
	updates     []UpdateEvent
	msaaCalls   []uint8
	vsyncCalls  []bool
	extentCalls int
	execCalls   int
	execErr     error
	closed      bool
}

func (f *fakeExecutionContext) ApplyUpdate(u UpdateEvent) { f.updates = append(f.updates, u) }
func (f *fakeExecutionContext) SetMSAA(level uint8)       { f.msaaCalls = append(f.msaaCalls, level) }
func (f *fakeExecutionContext) SetVSync(on bool)          { f.vsyncCalls = append(f.vsyncCalls, on) }
func (f *fakeExecutionContext) CheckExtent()              { f.extentCalls++ }
func (f *fakeExecutionContext) Execute() error {
	f.execCalls++
	return f.execErr
}
func (f *fakeExecutionContext) Close() { f.closed = true }

func TestRendererRunExitsOnChannelClose(t *testing.T) {
	ch := make(chan RenderEvent)
	ctx := &fakeExecutionContext{}
	r := NewRenderer(ctx, ch, true)

	close(ch)
	if err := r.Run(); err != nil {
		t.Fatalf("expected clean exit on channel close, got %v", err)
	}
	if !ctx.closed {
		t.Fatalf("expected Close to be called")
	}
}

func TestRendererRunExitsOnRenderClose(t *testing.T) {
	ch := make(chan RenderEvent, 1)
	ctx := &fakeExecutionContext{}
	r := NewRenderer(ctx, ch, true)

	ch <- CloseEvent()

	if err := r.Run(); err != nil {
		t.Fatalf("expected clean exit on RenderClose, got %v", err)
	}
	if ctx.execCalls != 0 {
		t.Fatalf("expected no Execute call before exiting on Close, got %d", ctx.execCalls)
	}
}

func TestRendererConservativeDrawWaitsForDrawRequiringEvent(t *testing.T) {
	ch := make(chan RenderEvent, 4)
	ctx := &fakeExecutionContext{}
	r := NewRenderer(ctx, ch, true)

	ch <- SetMetricsLevelEvent("full")
	ch <- UpdateRenderEvent(UpdateEvent{DrawCount: 7})
	ch <- CloseEvent()

	if err := r.Run(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ctx.execCalls != 1 {
		t.Fatalf("expected exactly one Execute call for the one draw-requiring event, got %d", ctx.execCalls)
	}
	if len(ctx.updates) != 1 || ctx.updates[0].DrawCount != 7 {
		t.Fatalf("expected the update event to be applied before executing, got %+v", ctx.updates)
	}
}

func TestRendererRecoversSwapchainOutOfDate(t *testing.T) {
	ch := make(chan RenderEvent, 2)
	ctx := &fakeExecutionContext{
		execErr: core.NewRenderError(core.KindSwapchainOutOfDate, nil),
	}
	r := NewRenderer(ctx, ch, true)

	ch <- RedrawEvent()
	ch <- CloseEvent()

	if err := r.Run(); err != nil {
		t.Fatalf("expected a recoverable swapchain-out-of-date error to not propagate, got %v", err)
	}
}

func TestRendererPropagatesFatalExecuteError(t *testing.T) {
	ch := make(chan RenderEvent, 1)
	ctx := &fakeExecutionContext{
		execErr: core.NewRenderError(core.KindGpuAllocationFailed, nil),
	}
	r := NewRenderer(ctx, ch, true)

	ch <- RedrawEvent()

	if err := r.Run(); err == nil {
		t.Fatalf("expected a fatal execute error to propagate")
	}
}
