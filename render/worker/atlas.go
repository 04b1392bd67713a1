package worker

// atlas.go implements the shelf-packing allocator spec.md §4.D names
// ("allocator returns an allocation or None"). No pack example or
// ecosystem library provides a general-purpose 2D rectangle packer
// (the teacher's 3D renderer has no 2D atlas concept at all, and no
// other example repo imports one) — this is domain algorithm, not
// ambient infrastructure, so it is implemented directly rather than
// pulled from a library; see DESIGN.md.

// Numeric policies from spec.md §4.D.
const (
	SmallThreshold = 16
	LargeThreshold = 512
	// AtlasDefaultSize is 4x LargeThreshold.
	AtlasDefaultSize = LargeThreshold * 4
)

// Rect is an integer rectangle within an atlas image.
type Rect struct {
	X, Y, W, H uint32
}

type shelf struct {
	y      uint32
	height uint32
	used   uint32 // cursor along x within this shelf
}

// shelfAllocator packs rectangles into shelves (rows of varying
// height), the simplest allocator that satisfies spec.md's non-overlap
// invariant for the UI atlas workload (many small, short-lived glyph
// and icon allocations). Growing doubles both axes up to maxDimension.
type shelfAllocator struct {
	width, height uint32
	maxDimension  uint32
	align         uint32
	shelves       []shelf
	nextID        uint64
	live          map[uint64]Rect
}

func newShelfAllocator(width, height, maxDimension, align uint32) *shelfAllocator {
	return &shelfAllocator{
		width:        width,
		height:       height,
		maxDimension: maxDimension,
		align:        align,
		live:         make(map[uint64]Rect),
	}
}

func alignUp(v, align uint32) uint32 {
	if align <= 1 {
		return v
	}
	rem := v % align
	if rem == 0 {
		return v
	}
	return v + (align - rem)
}

// Allocation is a successful shelf allocation: an id the caller uses to
// later deallocate, and the rectangle assigned (border-inclusive).
type Allocation struct {
	ID   uint64
	Rect Rect
}

// Allocate reserves a w x h rectangle (the caller has already added the
// 1px border on each axis). Returns ok=false if the atlas has no room
// at its current size.
func (a *shelfAllocator) Allocate(w, h uint32) (Allocation, bool) {
	w = alignUp(w, a.align)
	h = alignUp(h, a.align)

	if w > a.width || h > a.height {
		return Allocation{}, false
	}

	for i := range a.shelves {
		s := &a.shelves[i]
		if h > s.height {
			continue
		}
		if s.used+w > a.width {
			continue
		}
		rect := Rect{X: s.used, Y: s.y, W: w, H: h}
		s.used += w
		id := a.nextID
		a.nextID++
		a.live[id] = rect
		return Allocation{ID: id, Rect: rect}, true
	}

	// start a new shelf below the last one
	var top uint32
	for _, s := range a.shelves {
		top += s.height
	}
	if top+h > a.height {
		return Allocation{}, false
	}

	a.shelves = append(a.shelves, shelf{y: top, height: h, used: w})
	rect := Rect{X: 0, Y: top, W: w, H: h}
	id := a.nextID
	a.nextID++
	a.live[id] = rect
	return Allocation{ID: id, Rect: rect}, true
}

// Deallocate removes the bookkeeping for id. Shelf space is not
// reclaimed or compacted — consistent with a shelf packer's standard
// trade-off (simplicity over fill factor) and with the teacher's atlas
// lifetime being dominated by small, rarely-freed glyph allocations.
func (a *shelfAllocator) Deallocate(id uint64) {
	delete(a.live, id)
}

// Grow doubles the allocator's dimensions, up to maxDimension on each
// axis. Returns false if already at the maximum in both axes.
func (a *shelfAllocator) Grow() bool {
	newWidth := a.width
	newHeight := a.height
	grew := false

	if newWidth < a.maxDimension {
		newWidth *= 2
		if newWidth > a.maxDimension {
			newWidth = a.maxDimension
		}
		grew = true
	}
	if newHeight < a.maxDimension {
		newHeight *= 2
		if newHeight > a.maxDimension {
			newHeight = a.maxDimension
		}
		grew = true
	}

	if !grew {
		return false
	}

	a.width = newWidth
	a.height = newHeight
	return true
}

// Width reports the current atlas width (post any Grow calls), used to
// decide whether further growth is still worthwhile relative to the
// device's max_image_dimension_2d limit (spec.md §4.D).
func (a *shelfAllocator) Width() uint32 { return a.width }
