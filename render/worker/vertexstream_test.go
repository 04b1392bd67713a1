package worker

import (
	"testing"

	"github.com/spaghettifunk/basalt/bin"
	"github.com/spaghettifunk/basalt/imagekey"
)

type fakeBufferAllocator struct {
	nextID GPUBufferID
	freed  []GPUBufferID
}

func (f *fakeBufferAllocator) AllocateVertexBuffer(vertexCapacity uint64) GPUBufferID {
	f.nextID++
	return f.nextID
}

func (f *fakeBufferAllocator) AllocateStagingBuffer(vertexCapacity uint64) GPUBufferID {
	f.nextID++
	return f.nextID
}

func (f *fakeBufferAllocator) FreeBuffer(id GPUBufferID) {
	f.freed = append(f.freed, id)
}

func binStateWithVertexes(id bin.ID, z float32, n int) *binState {
	b := bin.New(id)
	st := newBinState(b)
	vs := bin.NewVertexState()
	verts := make([]bin.Vertex, n)
	vs.Data.Set(imagekey.None, verts)
	vs.Total = n
	st.vertexes[z] = vs
	return st
}

func TestVertexStreamBuildSkipsWhenNotDirty(t *testing.T) {
	m := NewVertexStreamManager(&fakeBufferAllocator{})
	idx := &indexes{}
	plan := m.Build(map[bin.ID]*binState{}, NewManager(4096), idx)
	if plan != nil {
		t.Fatalf("expected no plan when the current ring is not marked dirty")
	}
}

func TestVertexStreamBuildAllocatesAndWritesFreshVertexes(t *testing.T) {
	alloc := &fakeBufferAllocator{}
	m := NewVertexStreamManager(alloc)
	m.MarkDirty(0)

	states := map[bin.ID]*binState{
		1: binStateWithVertexes(1, 0.0, 3),
		2: binStateWithVertexes(2, 0.0, 2),
	}

	idx := &indexes{}
	plan := m.Build(states, NewManager(4096), idx)

	if plan == nil {
		t.Fatalf("expected a plan when the current ring is dirty")
	}
	if plan.DrawCount != 5 {
		t.Fatalf("expected draw count 5 (3+2 vertexes), got %d", plan.DrawCount)
	}
	if len(plan.StagingWrite) != 5 {
		t.Fatalf("expected all 5 vertexes to be freshly staged, got %d", len(plan.StagingWrite))
	}
	if len(plan.CopyFromCurrStage) == 0 {
		t.Fatalf("expected copy-from-curr-stage regions for freshly staged data")
	}
	if len(plan.CopyFromPrev) != 0 {
		t.Fatalf("expected no copy-from-prev on the very first build")
	}
	if m.BufferTotal(0) != 5 {
		t.Fatalf("expected bufferTotal[0] to be updated to 5, got %d", m.BufferTotal(0))
	}
}

func TestVertexStreamBuildCopiesFromPrevStagingOnOtherRing(t *testing.T) {
	alloc := &fakeBufferAllocator{}
	m := NewVertexStreamManager(alloc)
	m.MarkDirty(0)

	st := binStateWithVertexes(1, 0.0, 4)
	states := map[bin.ID]*binState{1: st}

	idx := &indexes{}
	m.Build(states, NewManager(4096), idx)

	// Second cycle on the other ring: the vertex state has no offset in
	// that ring's buffer yet, but the first build staged it, so it is
	// copied from the previous staging buffer rather than re-staged.
	m.MarkDirty(idx.currVertex())
	plan := m.Build(states, NewManager(4096), idx)

	if plan == nil {
		t.Fatalf("expected a second plan")
	}
	if len(plan.CopyFromCurrStage) != 0 {
		t.Fatalf("expected no fresh staging on the second cycle, since the first build already staged the vertex state")
	}
	if len(plan.CopyFromPrevStage) != 1 {
		t.Fatalf("expected one copy from the previous staging buffer, got %d", len(plan.CopyFromPrevStage))
	}
}

func TestConsolidateBufferCopiesMergesContiguousRegions(t *testing.T) {
	copies := []BufferCopy{
		{SrcOffset: 0, DstOffset: 100, Size: 44},
		{SrcOffset: 44, DstOffset: 144, Size: 44},
		{SrcOffset: 200, DstOffset: 500, Size: 44},
	}

	merged := consolidateBufferCopies(copies)

	if len(merged) != 2 {
		t.Fatalf("expected 2 merged regions, got %d: %+v", len(merged), merged)
	}
	if merged[0].Size != 88 {
		t.Fatalf("expected the first two contiguous regions to merge into size 88, got %d", merged[0].Size)
	}
}

func TestConsolidateBufferCopiesLeavesNonContiguousAlone(t *testing.T) {
	copies := []BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: 44},
		{SrcOffset: 100, DstOffset: 50, Size: 44},
	}

	merged := consolidateBufferCopies(copies)
	if len(merged) != 2 {
		t.Fatalf("expected no merge for non-contiguous regions, got %d", len(merged))
	}
}
