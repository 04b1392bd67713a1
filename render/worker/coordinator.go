// coordinator.go ties the update worker pool, image backing manager and
// vertex stream manager into the per-cycle loop spec.md §4.C describes:
// drain window events, dispatch dirty bins to the pool, diff each bin's
// image-use set to build the add/remove multisets the image backing
// manager consumes, run one obtain/garbage-collect pass, rebuild the
// vertex stream, and emit a RenderEvent carrying the result.
//
// Grounded on original_source/src/render/worker/mod.rs's run() function,
// specifically the event-drain loop (window events -> bin/font/metrics
// state) and the per-cycle vertex-update section this package's sibling
// files (pool.go, backing.go, vertexstream.go, indexes.go, binstate.go)
// already implement piecewise.
package worker

import (
	"github.com/spaghettifunk/basalt/bin"
	"github.com/spaghettifunk/basalt/core"
	"github.com/spaghettifunk/basalt/imagecache"
	"github.com/spaghettifunk/basalt/imagekey"
	"github.com/spaghettifunk/basalt/render"
)

// Coordinator owns the live bin map and every subsystem a cycle touches.
// It is not safe for concurrent use from more than one goroutine; the
// render host is expected to drive it from a single worker-thread loop,
// same as the Rust source's single run() thread.
type Coordinator struct {
	pool     *Pool
	backings *Manager
	vertexes *VertexStreamManager
	cache    *imagecache.Cache

	bins map[bin.ID]*binState
	idx  indexes

	targetFormat imagecache.VulkanFormat
	metrics      core.MetricsLevel

	windowCh  <-chan render.WindowEvent
	renderCh  chan<- render.RenderEvent
	closed    bool
	pending   []bin.ID
	dirtyBins bool

	imageAdd    *imagekey.Map[int]
	imageRemove *imagekey.Map[int]

	// imageUpdate tracks, per frame-in-flight image slot, whether that
	// slot still needs the tex_i image-id list recomputed before it can
	// be sampled safely. Grounded on original_source/src/render/worker/
	// mod.rs's `image_update: [bool; 2]`.
	imageUpdate [2]bool
}

// NewCoordinator builds a Coordinator around an already-running update
// worker pool, image backing manager, vertex stream manager, and image
// cache. windowCh is the stream of WindowEvents the host's window layer
// produces; renderCh is the stream of RenderEvents the renderer loop
// consumes.
func NewCoordinator(pool *Pool, backings *Manager, vertexes *VertexStreamManager, cache *imagecache.Cache, targetFormat imagecache.VulkanFormat, windowCh <-chan render.WindowEvent, renderCh chan<- render.RenderEvent) *Coordinator {
	return &Coordinator{
		pool:         pool,
		backings:     backings,
		vertexes:     vertexes,
		cache:        cache,
		bins:         make(map[bin.ID]*binState),
		targetFormat: targetFormat,
		windowCh:     windowCh,
		renderCh:     renderCh,
		imageAdd:     imagekey.NewMap[int](),
		imageRemove:  imagekey.NewMap[int](),
	}
}

// accumulateInto folds keys into m's per-key reference counts, used to
// build this cycle's image-key add/remove multisets incrementally as
// each bin's geometry is applied.
func accumulateInto(m *imagekey.Map[int], keys []imagekey.ImageKey) {
	for _, k := range keys {
		m.Modify(k, func() int { return 0 }, func(v *int) { *v++ })
	}
}

// DrainWindowEvents consumes every WindowEvent currently queued (without
// blocking once the channel is empty), applying each to the bin map,
// pool reconfiguration queue, or coordinator state as spec.md §6 names.
// Returns false once a WindowClosed event has been observed.
func (c *Coordinator) DrainWindowEvents() bool {
	for {
		select {
		case ev, ok := <-c.windowCh:
			if !ok {
				c.closed = true
				return false
			}
			c.applyWindowEvent(ev)
			if c.closed {
				return false
			}
		default:
			return true
		}
	}
}

func (c *Coordinator) applyWindowEvent(ev render.WindowEvent) {
	switch ev.Kind {
	case render.WindowClosed:
		c.closed = true

	case render.WindowResized:
		c.pool.Reconfigure(ReconfigMessage{Kind: ReconfigSetExtent, Width: ev.Width, Height: ev.Height})
		c.vertexes.MarkAllDirty()

	case render.WindowScaleChanged:
		c.pool.Reconfigure(ReconfigMessage{Kind: ReconfigSetScale, Scale: ev.Scale})
		c.vertexes.MarkAllDirty()

	case render.WindowRedrawRequested:
		c.dirtyBins = true

	case render.WindowAssociateBin:
		st := newBinState(ev.Bin)
		st.pendingUpdate = true
		c.bins[ev.Bin.ID()] = st
		c.pending = append(c.pending, ev.Bin.ID())

	case render.WindowDissociateBin:
		if st, ok := c.bins[ev.BinID]; ok {
			st.pendingRemoval = true
		}

	case render.WindowUpdateBin:
		if st, ok := c.bins[ev.BinID]; ok {
			st.pendingUpdate = true
			c.pending = append(c.pending, ev.BinID)
		}

	case render.WindowUpdateBinBatch:
		for _, id := range ev.BinIDs {
			if st, ok := c.bins[id]; ok {
				st.pendingUpdate = true
				c.pending = append(c.pending, id)
			}
		}

	case render.WindowAddBinaryFont:
		c.pool.Reconfigure(ReconfigMessage{Kind: ReconfigAddBinaryFont, Font: ev.Font})

	case render.WindowSetDefaultFont:
		c.pool.Reconfigure(ReconfigMessage{Kind: ReconfigSetDefaultFont, DefaultFont: ev.DefaultFont})

	case render.WindowSetMSAA:
		c.renderCh <- render.SetMSAARenderEvent(ev.MSAA)

	case render.WindowSetVSync:
		c.renderCh <- render.SetVSyncRenderEvent(ev.VSync)

	case render.WindowSetConsvDraw:
		// dropped: nothing relays this event to the renderer loop, whose
		// conservative-draw mode changes only through
		// render.Renderer.SetConservativeDraw.

	case render.WindowSetMetrics:
		c.renderCh <- render.SetMetricsLevelEvent(ev.MetricsLevel)

	case render.WindowEnabledFullscreen, render.WindowDisabledFullscreen:
		c.vertexes.MarkAllDirty()
	}
}

// RunCycle executes one full worker cycle: remove dead/dissociated bins,
// dispatch pending bins to the pool, diff image-use sets, run one
// obtain/garbage-collect pass against the image backing manager, rebuild
// the vertex stream for whichever ring is dirty, and emit the resulting
// RenderUpdate (if anything changed this cycle). Returns the metrics
// accumulated this cycle and a fatal error if an update worker panicked
// (spec.md §4.C's "Failure mode": the coordinator observes
// WorkerPanicked and surfaces it, it never swallows it).
func (c *Coordinator) RunCycle() (*core.WorkerPerfMetrics, error) {
	metrics := &core.WorkerPerfMetrics{}

	removed := c.removeDeadBins()
	metrics.BinRemove = float32(len(removed))

	dispatched, err := c.dispatchPending()
	metrics.BinCount = dispatched
	if err != nil {
		return metrics, err
	}
	if dispatched > 0 || len(removed) > 0 {
		c.vertexes.MarkDirty(c.idx.currVertex())
	}

	c.backings.ApplyRemoves(c.imageRemove)
	obtain := c.backings.ApplyAdds(c.imageAdd)
	c.imageRemove = imagekey.NewMap[int]()
	c.imageAdd = imagekey.NewMap[int]()

	derefKeys, removedIdx := c.backings.CollectGarbage()
	if len(removedIdx) > 0 {
		// a backing disappearing shifts every tex_i after it; the
		// conservative policy (spec.md §9(a)) re-vertexes everything,
		// so every recorded offset and staging position is dropped.
		for _, st := range c.bins {
			for _, vs := range st.vertexes {
				vs.Offset = [2]int64{-1, -1}
				vs.Staging = [2]int64{-1, -1}
			}
		}
		c.vertexes.MarkAllDirty()
	}

	c.backings.Obtain(c.cache, derefKeys, obtain, c.idx.currImage(), c.targetFormat)
	metrics.ImageObtain = float32(obtain.Len())
	metrics.ImageRemove = float32(len(derefKeys))

	if obtain.Len() > 0 || len(derefKeys) > 0 {
		c.imageUpdate = [2]bool{true, true}
	}

	var imgI int
	if c.imageUpdate[c.idx.currImage()] {
		c.imageUpdate[c.idx.currImage()] = false
		imgI = c.idx.currImage()
		c.idx.advImage()
	} else {
		imgI = c.idx.prevImage()
	}

	c.pool.EndCycle()

	plan := c.vertexes.Build(c.bins, c.backings, &c.idx)
	if plan != nil {
		metrics.VertexCount = float32(plan.DrawCount)
		c.emitUpdate(plan, metrics, imgI)
	}

	return metrics, nil
}

// removeDeadBins drops every binState that is either pending removal or
// whose weak bin handle has gone stale, folding each removed bin's last
// known image-use set into this cycle's remove multiset.
func (c *Coordinator) removeDeadBins() (removed []bin.ID) {
	for id, st := range c.bins {
		if st.pendingRemoval || !st.isAlive() {
			removed = append(removed, id)
			accumulateInto(c.imageRemove, st.images.Slice())
			delete(c.bins, id)
		}
	}
	return removed
}

// dispatchPending sends every bin queued via WindowUpdateBin/
// WindowUpdateBinBatch/WindowAssociateBin to the pool and blocks for
// every corresponding submission, applying fresh geometry before
// returning how many were processed. A recovered worker panic is fatal
// per spec.md §4.C and is returned immediately rather than logged and
// swallowed; the caller is expected to tear the render loop down.
func (c *Coordinator) dispatchPending() (int, error) {
	toDispatch := c.pending
	c.pending = nil

	var sent int
	for _, id := range toDispatch {
		st, ok := c.bins[id]
		if !ok || !st.pendingUpdate {
			continue
		}
		if !st.isAlive() {
			continue
		}
		c.pool.Dispatch(st.binWk)
		sent++
	}

	for i := 0; i < sent; i++ {
		sub := c.pool.Collect()
		if sub.Panic != nil {
			return sent, sub.Panic
		}
		st, ok := c.bins[sub.BinID]
		if !ok {
			continue
		}

		oldImages := st.images
		st.applyGeometry(sub.Geometry)

		removedKeys, addedKeys := oldImages.Diff(st.images)
		accumulateInto(c.imageRemove, removedKeys)
		accumulateInto(c.imageAdd, addedKeys)
	}

	return sent, nil
}

// emitUpdate wraps the built plan into a RenderUpdate event, including
// the tex_i-ordered image ids (render.UpdateEvent.ImageIDs) the vulkan
// package binds into the bindless descriptor array at imgI, the
// frame-in-flight image slot RunCycle picked for this cycle. Only the
// plan's destination buffer id and draw count travel in the event: its
// staging writes and copy regions are not forwarded, and no code in
// this module writes them (or the atlas backings' pending uploads and
// clears) into GPU memory. The event also carries a fresh SyncToken the
// renderer publishes once it has consumed this cycle's resources.
func (c *Coordinator) emitUpdate(plan *VertexUploadPlan, metrics *core.WorkerPerfMetrics, imgI int) {
	c.renderCh <- render.UpdateRenderEvent(render.UpdateEvent{
		BufferID:  uint64(plan.DstBuffer),
		DrawCount: plan.DrawCount,
		ImageIDs:  c.backings.ImageIDs(imgI),
		Metrics:   metrics,
		Token:     render.NewSyncToken(),
	})
}

// Closed reports whether a WindowClosed event has been observed.
func (c *Coordinator) Closed() bool { return c.closed }
