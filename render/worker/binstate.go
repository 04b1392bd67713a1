package worker

import (
	"github.com/spaghettifunk/basalt/bin"
	"github.com/spaghettifunk/basalt/imagekey"
)

// binState is the worker's per-bin bookkeeping: a weak handle back to
// the caller-owned Bin, the dirty flags that drive the next cycle's
// work list, and the last computed geometry's image-use set and
// z-ordered vertex states.
//
// Grounded on original_source/src/render/worker/mod.rs's BinState
// (bin_wk/pending_removal/pending_update/images/vertexes). Go has no
// weak-pointer-to-struct-with-liveness-check the way Rust's Weak<Bin>
// plus Arc strong-count does, so binWk holds a plain *bin.Bin and
// liveness is instead observed through bin.Bin.IsAlive(), which the
// owner flips via Release() when it drops its own strong references.
type binState struct {
	binWk          *bin.Bin
	pendingRemoval bool
	pendingUpdate  bool
	images         *imagekey.Set
	vertexes       map[float32]*bin.VertexState
}

func newBinState(b *bin.Bin) *binState {
	return &binState{
		binWk:    b,
		images:   imagekey.NewSet(),
		vertexes: make(map[float32]*bin.VertexState),
	}
}

// isAlive reports whether the bin this state tracks is still live. A
// dead bin is queued for removal on the next cycle rather than removed
// immediately, mirroring the Rust source's pending_removal flag.
func (s *binState) isAlive() bool {
	return s.binWk != nil && s.binWk.IsAlive()
}

// applyGeometry replaces this state's image-use set and vertex states
// with freshly computed geometry, clearing pendingUpdate.
func (s *binState) applyGeometry(g bin.Geometry) {
	s.images = g.Images
	s.vertexes = g.Vertexes
	s.pendingUpdate = false
}
