// Package bin defines the external contract the render worker consumes:
// a Bin (a styled UI element) and the compute_bin_geometry call that
// turns one into vertex geometry and an image-use set. The bin style
// engine and text shaper that implement ComputeGeometry live outside
// this module (spec.md §1 "deliberately out of scope") — this package
// only fixes the shape both sides agree on.
package bin

import (
	"sync"
	"sync/atomic"

	"github.com/spaghettifunk/basalt/imagekey"
)

// ID is a bin's stable identifier, used as the sort key for deterministic
// z-band ordering in the vertex stream manager.
type ID uint64

// Bin is a UI element with a stable id and a weak back-reference the
// worker can use for liveness checks without extending its lifetime.
// Concrete style/layout fields belong to the host application; the
// worker only ever calls Geometry through the ComputeGeometry contract.
type Bin struct {
	id    ID
	alive atomic.Bool
}

func New(id ID) *Bin {
	b := &Bin{id: id}
	b.alive.Store(true)
	return b
}

func (b *Bin) ID() ID { return b.id }

// Release marks the bin as no longer live. Weak holders (BinState)
// observe this through IsAlive rather than through a Go weak pointer,
// since a style-tree owner may still hold the only strong reference.
func (b *Bin) Release() { b.alive.Store(false) }

func (b *Bin) IsAlive() bool { return b.alive.Load() }

// Vertex is the fixed-size GPU vertex record the UI shader pair
// consumes (spec.md §6 shader contract).
type Vertex struct {
	Position [3]float32
	Coords   [2]float32
	Color    [4]float32
	Ty       uint32
	TexI     uint32
}

// Vertex.Ty selections, mirroring the fragment shader's op dispatch.
const (
	VertexTyColor uint32 = iota
	VertexTyTexturedSRGB
	VertexTyTexturedLinear
	VertexTyGlyph
)

// VertexState is the per-bin, per-z computed output: the vertex payload
// grouped by the image source each group samples from, plus the GPU/
// staging-buffer offsets the stream manager assigns it.
type VertexState struct {
	// Offset[i] is this state's byte offset in destination vertex
	// buffer i, or -1 if absent.
	Offset [2]int64
	// Staging[i] is this state's byte offset in staging buffer i, or -1
	// if absent.
	Staging [2]int64
	Data    *imagekey.Map[[]Vertex]
	Total   int
}

func NewVertexState() *VertexState {
	return &VertexState{
		Offset:  [2]int64{-1, -1},
		Staging: [2]int64{-1, -1},
		Data:    imagekey.NewMap[[]Vertex](),
	}
}

// DefaultFont names the font a bin falls back to when it requests text
// rendering without specifying one explicitly.
type DefaultFont struct {
	Family string
	Weight uint16
}

// UpdateContext is the per-cycle, per-worker state handed to
// ComputeGeometry: current extent/scale, the active font configuration,
// and a per-thread cache the text shaper may reuse across bins within a
// cycle (cleared once per cycle by render/worker's Pool.EndCycle).
type UpdateContext struct {
	ExtentWidth  uint32
	ExtentHeight uint32
	Scale        float32
	DefaultFont  DefaultFont
	BinaryFonts  [][]byte

	// ShapingCache is opaque to the worker; it is cleared between
	// cycles by ResetShapingCache, never inspected.
	mu           sync.Mutex
	shapingCache map[string]any
}

func NewUpdateContext() *UpdateContext {
	return &UpdateContext{shapingCache: make(map[string]any)}
}

func (c *UpdateContext) ShapingCacheGet(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.shapingCache[key]
	return v, ok
}

func (c *UpdateContext) ShapingCacheSet(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shapingCache[key] = value
}

// ResetShapingCache clears the shaping cache. Called once per cycle by
// render/worker's Pool.EndCycle, on the coordinator's goroutine.
func (c *UpdateContext) ResetShapingCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shapingCache = make(map[string]any)
}

// Geometry is a bin's computed output: the set of image sources it
// references, and its z-ordered vertex groups.
type Geometry struct {
	Images   *imagekey.Set
	Vertexes map[float32]*VertexState
}

// GeometryMetrics carries optional timing the geometry computation
// chooses to report, folded into WorkerPerfMetrics.OVD when present.
type GeometryMetrics struct {
	Style  float32
	Shape  float32
	Vertex float32
}

// ComputeGeometry is the external contract spec.md §4.C/§6 names as
// compute_bin_geometry: given a bin and the current update context,
// produce its image-use set and z-ordered vertex state. Implementations
// live in the bin style engine / text shaper, outside this module.
type ComputeGeometry func(b *Bin, ctx *UpdateContext) (Geometry, *GeometryMetrics)
