package worker

import (
	"testing"

	"github.com/spaghettifunk/basalt/bin"
)

func computeFixedGeometry(b *bin.Bin, ctx *bin.UpdateContext) (bin.Geometry, *bin.GeometryMetrics) {
	return bin.Geometry{Vertexes: map[float32]*bin.VertexState{}}, nil
}

func TestPoolDispatchCollectRoundTrips(t *testing.T) {
	pool := NewPool(2, computeFixedGeometry)
	defer pool.Shutdown()

	bins := []*bin.Bin{bin.New(1), bin.New(2), bin.New(3)}
	for _, b := range bins {
		pool.Dispatch(b)
	}

	seen := make(map[bin.ID]bool)
	for range bins {
		sub := pool.Collect()
		if sub.Panic != nil {
			t.Fatalf("unexpected panic submission: %v", sub.Panic)
		}
		seen[sub.BinID] = true
	}

	for _, b := range bins {
		if !seen[b.ID()] {
			t.Fatalf("expected a submission for bin %d", b.ID())
		}
	}

	pool.EndCycle()
}

func TestPoolRecoversWorkerPanic(t *testing.T) {
	pool := NewPool(1, func(b *bin.Bin, ctx *bin.UpdateContext) (bin.Geometry, *bin.GeometryMetrics) {
		panic("boom")
	})
	defer pool.Shutdown()

	pool.Dispatch(bin.New(1))
	sub := pool.Collect()

	if sub.Panic == nil {
		t.Fatalf("expected the recovered panic to surface as a submission")
	}
	if !pool.Panicked() {
		t.Fatalf("expected Panicked() to report true after a worker panic")
	}
}

func TestPoolReconfigureAppliesAtEndCycle(t *testing.T) {
	pool := NewPool(1, computeFixedGeometry)
	defer pool.Shutdown()

	pool.Reconfigure(ReconfigMessage{Kind: ReconfigSetExtent, Width: 1920, Height: 1080})
	pool.Reconfigure(ReconfigMessage{Kind: ReconfigSetScale, Scale: 2.0})

	if pool.ctx.ExtentWidth != 0 {
		t.Fatalf("expected reconfiguration to be deferred until EndCycle")
	}

	pool.EndCycle()

	if pool.ctx.ExtentWidth != 1920 || pool.ctx.ExtentHeight != 1080 {
		t.Fatalf("expected EndCycle to apply the queued extent change")
	}
	if pool.ctx.Scale != 2.0 {
		t.Fatalf("expected EndCycle to apply the queued scale change")
	}
}
