package worker

import (
	"sort"

	"github.com/spaghettifunk/basalt/bin"
)

// VertexSize is the byte size of one bin.Vertex record: Position[3]
// (12) + Coords[2] (8) + Color[4] (16) + Ty (4) + TexI (4).
const VertexSize = 44

// BufferCopy is a device-local copy region: move Size bytes from
// SrcOffset to DstOffset within whichever two buffers the caller has
// bound.
type BufferCopy struct {
	SrcOffset uint64
	DstOffset uint64
	Size      uint64
}

// BufferAllocator abstracts vertex/staging buffer (re)allocation. The
// concrete Vulkan-backed implementation lives in the vulkan package;
// render/worker only ever reasons about GPUBufferID handles.
type BufferAllocator interface {
	AllocateVertexBuffer(vertexCapacity uint64) GPUBufferID
	AllocateStagingBuffer(vertexCapacity uint64) GPUBufferID
	FreeBuffer(id GPUBufferID)
}

// VertexUploadPlan is the result of one VertexStreamManager.Build call:
// everything the transfer-queue execution step (spec.md §4.E step 6)
// needs to write the staging buffer and issue the three copy-buffer
// commands into the destination buffer.
type VertexUploadPlan struct {
	StagingWrite []bin.Vertex

	CopyFromPrev      []BufferCopy
	CopyFromPrevStage []BufferCopy
	CopyFromCurrStage []BufferCopy

	SrcBuffer         GPUBufferID
	DstBuffer         GPUBufferID
	StagingBuffer     GPUBufferID
	PrevStagingBuffer GPUBufferID

	DrawCount uint32
	// SubSwap reports whether any copy_from_prev region moves data
	// (src != dst). When it is false every region was an identity copy,
	// CopyFromPrev is left empty and Build advances only the main ring;
	// when it is true Build advances both the sub-ring and the main
	// ring.
	SubSwap bool
}

// VertexStreamManager owns the double-buffered vertex/staging buffers
// spec.md §4.E describes and runs its six-step per-cycle algorithm:
// count, grow, plan offsets, diff-and-plan-copies, consolidate,
// execute (execution itself is left to the caller via the returned
// plan, since this package never issues GPU commands directly).
//
// The ring/sub-ring bookkeeping this manager reads and writes lives in
// indexes, matching the original worker's Indexes type field for
// field. One simplification from the source: the Rust worker also
// looks ahead to whether the *next* cycle's buffer_update flag is
// already set before deciding whether to advance the main ring or only
// the sub-ring, batching consecutive dirty cycles onto the same
// physical slot. This manager always advances the main ring after
// producing a plan (and the sub-ring too when SubSwap holds), trading
// that batching
// optimization for a simpler, still-correct advance rule.
type VertexStreamManager struct {
	alloc BufferAllocator

	buffers        [2][2]GPUBufferID
	bufferCapacity [2][2]uint64 // vertex counts, not bytes
	stagingBuffers [2]GPUBufferID
	stagingCap     [2]uint64

	bufferUpdate [2]bool
	bufferTotal  [2]uint32
}

func NewVertexStreamManager(alloc BufferAllocator) *VertexStreamManager {
	return &VertexStreamManager{alloc: alloc}
}

// MarkDirty flags one vertex ring slot as needing a rebuild on its next
// Build call.
func (m *VertexStreamManager) MarkDirty(ring int) {
	m.bufferUpdate[ring] = true
}

// MarkAllDirty flags both ring slots, used when every bin must be
// re-vertexed (e.g. a tex_i-shifting backing removal).
func (m *VertexStreamManager) MarkAllDirty() {
	m.bufferUpdate[0] = true
	m.bufferUpdate[1] = true
}

func (m *VertexStreamManager) BufferTotal(ring int) uint32 { return m.bufferTotal[ring] }

// Build runs the per-cycle algorithm for the current vertex ring slot,
// if it is marked dirty. binStates is the coordinator's live bin map;
// backings resolves each non-none image key referenced by a bin's
// vertex data to its current tex_i and atlas offset. Returns nil if
// this ring slot was not dirty.
func (m *VertexStreamManager) Build(binStates map[bin.ID]*binState, backings *Manager, idx *indexes) *VertexUploadPlan {
	curr := idx.currVertex()
	if !m.bufferUpdate[curr] {
		return nil
	}

	srcBufI := idx.currVertexPrevSub()
	dstBufI := idx.currVertexSub()
	prevStageRing := idx.prevVertex()

	srcBufID := m.buffers[srcBufI[0]][srcBufI[1]]
	prevStageBufID := m.stagingBuffers[prevStageRing]

	// Step 1: count.
	countByZ := make(map[float32]uint64)
	for _, st := range binStates {
		for z, vs := range st.vertexes {
			countByZ[z] += uint64(vs.Total)
		}
	}
	zs := make([]float32, 0, len(countByZ))
	for z := range countByZ {
		zs = append(zs, z)
	}
	sort.Slice(zs, func(i, j int) bool { return zs[i] < zs[j] })

	var total uint64
	for _, z := range zs {
		total += countByZ[z]
	}

	// Step 2: grow.
	if m.bufferCapacity[dstBufI[0]][dstBufI[1]] < total {
		newCap := m.bufferCapacity[dstBufI[0]][dstBufI[1]]
		if newCap == 0 {
			newCap = 1
		}
		for newCap < total {
			newCap *= 2
		}

		oldBuf := m.buffers[dstBufI[0]][dstBufI[1]]
		newBuf := m.alloc.AllocateVertexBuffer(newCap)
		if oldBuf != 0 {
			m.alloc.FreeBuffer(oldBuf)
		}
		m.buffers[dstBufI[0]][dstBufI[1]] = newBuf
		m.bufferCapacity[dstBufI[0]][dstBufI[1]] = newCap

		if m.stagingCap[dstBufI[0]] != newCap {
			oldStage := m.stagingBuffers[dstBufI[0]]
			newStage := m.alloc.AllocateStagingBuffer(newCap)
			if oldStage != 0 {
				m.alloc.FreeBuffer(oldStage)
			}
			m.stagingBuffers[dstBufI[0]] = newStage
			m.stagingCap[dstBufI[0]] = newCap
		}
	}

	dstBufID := m.buffers[dstBufI[0]][dstBufI[1]]
	stageBufID := m.stagingBuffers[srcBufI[0]]

	// Step 3: plan per-z base offsets.
	zOffset := make(map[float32]uint64, len(zs))
	var cumulative uint64
	for _, z := range zs {
		zOffset[z] = cumulative
		cumulative += countByZ[z] * VertexSize
	}

	// Step 4: diff & plan copies. Iterate bins sorted by id so that
	// within a z band, vertex order is deterministic (spec.md §4.E).
	ids := make([]bin.ID, 0, len(binStates))
	for id := range binStates {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	var copyFromPrev, copyFromPrevStage, copyFromCurrStage []BufferCopy
	var stagingWrite []bin.Vertex

	for _, id := range ids {
		st := binStates[id]
		for _, z := range zs {
			vs, ok := st.vertexes[z]
			if !ok {
				continue
			}

			size := uint64(vs.Total) * VertexSize
			prevOffset := vs.Offset[srcBufI[0]]
			prevStageOffset := vs.Staging[prevStageRing]

			dstOffset := zOffset[z]
			zOffset[z] += size
			vs.Offset[srcBufI[0]] = int64(dstOffset)
			vs.Staging[srcBufI[0]] = -1

			if prevOffset >= 0 {
				copyFromPrev = append(copyFromPrev, BufferCopy{
					SrcOffset: uint64(prevOffset), DstOffset: dstOffset, Size: size,
				})
				continue
			}

			if prevStageOffset >= 0 {
				copyFromPrevStage = append(copyFromPrevStage, BufferCopy{
					SrcOffset: uint64(prevStageOffset), DstOffset: dstOffset, Size: size,
				})
				continue
			}

			srcOffset := uint64(len(stagingWrite)) * VertexSize
			vs.Staging[srcBufI[0]] = int64(srcOffset)

			for _, key := range vs.Data.Keys() {
				verts, _ := vs.Data.Get(key)
				if key.IsNone() {
					stagingWrite = append(stagingWrite, verts...)
					continue
				}

				texI, offsetCoords, found := backings.locate(key)
				if !found {
					continue
				}

				for _, v := range verts {
					v.TexI = texI
					v.Coords[0] += offsetCoords[0]
					v.Coords[1] += offsetCoords[1]
					stagingWrite = append(stagingWrite, v)
				}
			}

			copyFromCurrStage = append(copyFromCurrStage, BufferCopy{
				SrcOffset: srcOffset, DstOffset: dstOffset, Size: size,
			})
		}
	}

	// Step 5: consolidate.
	copyFromPrev = consolidateBufferCopies(copyFromPrev)
	copyFromPrevStage = consolidateBufferCopies(copyFromPrevStage)
	copyFromCurrStage = consolidateBufferCopies(copyFromCurrStage)

	subSwap := false
	for _, c := range copyFromPrev {
		if c.SrcOffset != c.DstOffset {
			subSwap = true
			break
		}
	}
	if !subSwap {
		copyFromPrev = nil
	}

	m.bufferTotal[curr] = uint32(total)
	m.bufferUpdate[curr] = false

	if subSwap {
		idx.advVertexSub()
	}
	idx.advVertexNoSub()

	return &VertexUploadPlan{
		StagingWrite:      stagingWrite,
		CopyFromPrev:      copyFromPrev,
		CopyFromPrevStage: copyFromPrevStage,
		CopyFromCurrStage: copyFromCurrStage,
		SrcBuffer:         srcBufID,
		DstBuffer:         dstBufID,
		StagingBuffer:     stageBufID,
		PrevStagingBuffer: prevStageBufID,
		DrawCount:         uint32(total),
		SubSwap:           subSwap,
	}
}

// consolidateBufferCopies sorts copies by source offset and merges
// adjacent regions whose source and destination both continue
// contiguously (spec.md §4.E step 5).
func consolidateBufferCopies(copies []BufferCopy) []BufferCopy {
	if len(copies) < 2 {
		return copies
	}

	sort.Slice(copies, func(i, j int) bool { return copies[i].SrcOffset < copies[j].SrcOffset })

	out := make([]BufferCopy, 0, len(copies))
	curr := copies[0]
	for _, next := range copies[1:] {
		if curr.SrcOffset+curr.Size == next.SrcOffset && curr.DstOffset+curr.Size == next.DstOffset {
			curr.Size += next.Size
			continue
		}
		out = append(out, curr)
		curr = next
	}
	out = append(out, curr)
	return out
}
