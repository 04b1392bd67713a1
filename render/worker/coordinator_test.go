package worker

import (
	"testing"

	"github.com/spaghettifunk/basalt/bin"
	"github.com/spaghettifunk/basalt/imagecache"
	"github.com/spaghettifunk/basalt/imagekey"
	"github.com/spaghettifunk/basalt/render"
)

func solidRGBA(w, h int, r, g, b, a byte) imagecache.Data {
	out := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		out[i*4+0] = r
		out[i*4+1] = g
		out[i*4+2] = b
		out[i*4+3] = a
	}
	return imagecache.Data{Depth: imagecache.Depth8, D8: out}
}

func computeFromKeys(images ...imagekey.ImageKey) bin.ComputeGeometry {
	return func(b *bin.Bin, ctx *bin.UpdateContext) (bin.Geometry, *bin.GeometryMetrics) {
		set := imagekey.NewSet()
		for _, k := range images {
			set.Insert(k)
		}
		vs := bin.NewVertexState()
		vs.Total = 1
		vs.Data.Set(imagekey.None, []bin.Vertex{{}})
		return bin.Geometry{
			Images:   set,
			Vertexes: map[float32]*bin.VertexState{0: vs},
		}, nil
	}
}

func newTestCoordinator(t *testing.T, compute bin.ComputeGeometry) (*Coordinator, chan render.WindowEvent, chan render.RenderEvent) {
	t.Helper()
	pool := NewPool(1, compute)
	backings := NewManager(4096)
	vertexes := NewVertexStreamManager(&fakeBufferAllocator{})
	vertexes.MarkAllDirty()
	cache := imagecache.New()

	windowCh := make(chan render.WindowEvent, 8)
	renderCh := make(chan render.RenderEvent, 8)

	c := NewCoordinator(pool, backings, vertexes, cache, imagecache.VulkanFormatR8G8B8A8Unorm, windowCh, renderCh)
	return c, windowCh, renderCh
}

func TestCoordinatorAssociateAndUpdateDispatchesToPool(t *testing.T) {
	c, windowCh, _ := newTestCoordinator(t, computeFromKeys())
	defer c.pool.Shutdown()

	b := bin.New(1)
	windowCh <- render.AssociateBinEvent(b)
	if !c.DrainWindowEvents() {
		t.Fatalf("expected DrainWindowEvents to report open")
	}

	metrics, err := c.RunCycle()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if metrics.BinCount != 1 {
		t.Fatalf("expected one bin dispatched, got %d", metrics.BinCount)
	}
	if _, ok := c.bins[1]; !ok {
		t.Fatalf("expected bin 1 to remain tracked")
	}
}

func TestCoordinatorDissociateRemovesBinAndDerefsImages(t *testing.T) {
	key := imagekey.FromPath("icons/a.png")
	c, windowCh, _ := newTestCoordinator(t, computeFromKeys(key))
	defer c.pool.Shutdown()

	if _, err := c.cache.LoadRaw(key, imagecache.Indefinite(), imagecache.LRGBA, 2, 2, nil, solidRGBA(2, 2, 1, 2, 3, 4)); err != nil {
		t.Fatalf("unexpected error loading fixture image: %v", err)
	}

	b := bin.New(1)
	windowCh <- render.AssociateBinEvent(b)
	c.DrainWindowEvents()
	if _, err := c.RunCycle(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.bins[1].images.Len() != 1 {
		t.Fatalf("expected bin 1's geometry to reference one image key, got %d", c.bins[1].images.Len())
	}

	windowCh <- render.DissociateBinEvent(1)
	c.DrainWindowEvents()
	if _, err := c.RunCycle(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := c.bins[1]; ok {
		t.Fatalf("expected bin 1 to be removed after dissociation")
	}
	if c.backings.backings[0].Atlas.Allocations.Contains(key) {
		t.Fatalf("expected the dissociated bin's image to be dropped from the atlas and dereffed")
	}
}

func TestCoordinatorClosesOnWindowClosed(t *testing.T) {
	c, windowCh, _ := newTestCoordinator(t, computeFromKeys())
	defer c.pool.Shutdown()

	windowCh <- render.ClosedEvent()
	if c.DrainWindowEvents() {
		t.Fatalf("expected DrainWindowEvents to report closed")
	}
	if !c.Closed() {
		t.Fatalf("expected Closed() to be true")
	}
}

func TestCoordinatorResizeMarksVertexesDirtyAndReconfigures(t *testing.T) {
	c, windowCh, _ := newTestCoordinator(t, computeFromKeys())
	defer c.pool.Shutdown()

	c.vertexes.bufferUpdate = [2]bool{}

	windowCh <- render.ResizedEvent(800, 600)
	c.DrainWindowEvents()
	if !c.vertexes.bufferUpdate[0] || !c.vertexes.bufferUpdate[1] {
		t.Fatalf("expected a resize to mark both vertex rings dirty, got %v", c.vertexes.bufferUpdate)
	}
	if _, err := c.RunCycle(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if c.pool.ctx.ExtentWidth != 800 || c.pool.ctx.ExtentHeight != 600 {
		t.Fatalf("expected reconfigure to apply extent at EndCycle, got %dx%d", c.pool.ctx.ExtentWidth, c.pool.ctx.ExtentHeight)
	}
}

func TestCoordinatorRunCycleSurfacesWorkerPanic(t *testing.T) {
	c, windowCh, _ := newTestCoordinator(t, func(b *bin.Bin, ctx *bin.UpdateContext) (bin.Geometry, *bin.GeometryMetrics) {
		panic("boom")
	})
	defer c.pool.Shutdown()

	windowCh <- render.AssociateBinEvent(bin.New(1))
	c.DrainWindowEvents()

	if _, err := c.RunCycle(); err == nil {
		t.Fatalf("expected RunCycle to surface the recovered worker panic as an error")
	}
}

func TestCoordinatorEmitUpdateIncludesImageIDs(t *testing.T) {
	key := imagekey.FromPath("icons/a.png")
	c, windowCh, renderCh := newTestCoordinator(t, computeFromKeys(key))
	defer c.pool.Shutdown()

	if _, err := c.cache.LoadRaw(key, imagecache.Indefinite(), imagecache.LRGBA, 2, 2, nil, solidRGBA(2, 2, 1, 2, 3, 4)); err != nil {
		t.Fatalf("unexpected error loading fixture image: %v", err)
	}

	windowCh <- render.AssociateBinEvent(bin.New(1))
	c.DrainWindowEvents()
	if _, err := c.RunCycle(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	select {
	case ev := <-renderCh:
		if len(ev.Update.ImageIDs) != 1 {
			t.Fatalf("expected one backing's image id, got %d", len(ev.Update.ImageIDs))
		}
	default:
		t.Fatalf("expected an update event to have been emitted")
	}
}
