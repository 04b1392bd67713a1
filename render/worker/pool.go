package worker

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/basalt/bin"
	"github.com/spaghettifunk/basalt/core"
	"golang.org/x/sync/errgroup"
)

// UpdateSubmission is what an update worker sends back to the
// coordinator for one dispatched bin: either computed geometry, or a
// recovered panic (spec.md §4.C "Failure mode": the coordinator
// observes OvdWorkerPanicked on the submission channel and surfaces a
// fatal error).
type UpdateSubmission struct {
	BinID    bin.ID
	Geometry bin.Geometry
	Metrics  *bin.GeometryMetrics
	Panic    *core.RenderError
}

// ReconfigKind discriminates the reconfiguration messages spec.md §4.C
// names, applied at the start of the next cycle rather than mid-cycle.
type ReconfigKind int

const (
	ReconfigSetExtent ReconfigKind = iota
	ReconfigSetScale
	ReconfigAddBinaryFont
	ReconfigSetDefaultFont
	ReconfigSetMetricsLevel
)

// ReconfigMessage carries the payload for whichever ReconfigKind it
// names; only the fields relevant to that kind are populated.
type ReconfigMessage struct {
	Kind         ReconfigKind
	Width        uint32
	Height       uint32
	Scale        float32
	Font         []byte
	DefaultFont  bin.DefaultFont
	MetricsLevel int
}

// Pool is the fixed-size update worker pool spec.md §4.C describes: N
// goroutines pull *bin.Bin work items off a shared channel, call the
// caller-supplied ComputeGeometry, and report results on a shared
// submission channel.
//
// The Rust source parks worker threads and wakes them with an explicit
// "perform" signal once the coordinator has queued all of a cycle's
// work; a buffered Go channel already blocks idle workers without that
// signal, so the pool relies on the channel itself instead of
// reproducing the signal. The coordinator still "sends all work items,
// then waits for every submission" exactly as specified — EndCycle is
// the end-of-cycle barrier, called once the coordinator has received
// exactly as many submissions as bins it dispatched this cycle.
type Pool struct {
	ctx     *bin.UpdateContext
	compute bin.ComputeGeometry

	workCh       chan *bin.Bin
	submissionCh chan UpdateSubmission

	group *errgroup.Group

	mu              sync.Mutex
	pendingReconfig []ReconfigMessage

	panicked atomic.Bool
}

func NewPool(n int, compute bin.ComputeGeometry) *Pool {
	if n <= 0 {
		n = 1
	}

	p := &Pool{
		ctx:          bin.NewUpdateContext(),
		compute:      compute,
		workCh:       make(chan *bin.Bin, n*4),
		submissionCh: make(chan UpdateSubmission, n*4),
	}

	var g errgroup.Group
	p.group = &g
	for i := 0; i < n; i++ {
		workerIndex := i
		g.Go(func() error {
			p.runWorker(workerIndex)
			return nil
		})
	}

	return p
}

// runWorker processes work items until workCh is closed, recovering a
// panic into a WorkerPanicked submission instead of letting it crash
// the process.
func (p *Pool) runWorker(workerIndex int) {
	defer func() {
		if r := recover(); r != nil {
			p.panicked.Store(true)
			p.submissionCh <- UpdateSubmission{
				Panic: core.NewRenderError(core.KindWorkerPanicked,
					fmt.Errorf("update worker %d panicked: %v", workerIndex, r)),
			}
		}
	}()

	for b := range p.workCh {
		geometry, metrics := p.compute(b, p.ctx)
		p.submissionCh <- UpdateSubmission{
			BinID:    b.ID(),
			Geometry: geometry,
			Metrics:  metrics,
		}
	}
}

// Dispatch sends a bin to the pool for recomputation this cycle. The
// caller must call Collect exactly as many times as it dispatches
// within one cycle, before calling EndCycle.
func (p *Pool) Dispatch(b *bin.Bin) {
	p.workCh <- b
}

// Collect blocks for the next submission: either a computed result or
// a recovered panic, which the caller should treat as fatal.
func (p *Pool) Collect() UpdateSubmission {
	return <-p.submissionCh
}

// EndCycle is the end-of-cycle barrier spec.md §4.C describes: it
// resets the shared text-shaping cache and applies every
// reconfiguration message queued since the last EndCycle, so no bin
// processed within one cycle ever observes a mid-cycle font, extent,
// or scale change.
func (p *Pool) EndCycle() {
	p.ctx.ResetShapingCache()

	p.mu.Lock()
	pending := p.pendingReconfig
	p.pendingReconfig = nil
	p.mu.Unlock()

	for _, msg := range pending {
		switch msg.Kind {
		case ReconfigSetExtent:
			p.ctx.ExtentWidth = msg.Width
			p.ctx.ExtentHeight = msg.Height
		case ReconfigSetScale:
			p.ctx.Scale = msg.Scale
		case ReconfigAddBinaryFont:
			p.ctx.BinaryFonts = append(p.ctx.BinaryFonts, msg.Font)
		case ReconfigSetDefaultFont:
			p.ctx.DefaultFont = msg.DefaultFont
		case ReconfigSetMetricsLevel:
			// ignored: nothing in the shared update context depends
			// on the metrics level.
		}
	}
}

// Reconfigure queues msg to be applied at the next EndCycle.
func (p *Pool) Reconfigure(msg ReconfigMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pendingReconfig = append(p.pendingReconfig, msg)
}

// Panicked reports whether any worker has ever recovered a panic.
func (p *Pool) Panicked() bool {
	return p.panicked.Load()
}

// Shutdown closes the work channel and waits for every worker
// goroutine to exit.
func (p *Pool) Shutdown() {
	close(p.workCh)
	p.group.Wait()
}
