// backing.go implements the ImageBackingManager (spec.md §4.D): packing
// images into shelf atlases, promoting oversized images to dedicated
// GPU images, and tracking the reference counts that drive eviction.
//
// Grounded on original_source/src/render/worker/mod.rs's apply-removes/
// apply-adds/collect-garbage/obtain sequence, translated from vulkano
// resource ids into the small GPUImageID/GPUBufferID handle types this
// package defines — the actual Vulkan calls live in the vulkan package,
// which implements the ImageAllocator (and vertexstream.go's
// BufferAllocator) interface this package only calls through.
package worker

import (
	"github.com/spaghettifunk/basalt/core"
	"github.com/spaghettifunk/basalt/imagecache"
	"github.com/spaghettifunk/basalt/imagekey"
)

type GPUImageID uint64
type GPUBufferID uint64

// BackingKind discriminates the three ImageBacking variants spec.md §3
// names: Atlas, Dedicated, User.
type BackingKind int

const (
	BackingAtlas BackingKind = iota
	BackingDedicated
	BackingUser
)

// AtlasAllocState pairs a live shelf allocation with its reference
// count.
type AtlasAllocState struct {
	Alloc Allocation
	Uses  int
}

// StagedUpload is one pending buffer->image copy region, queued against
// one of the two frames-in-flight image slots.
type StagedUpload struct {
	StagingWriteIndex int
	BufferOffset      uint64
	ImageOffset       [2]uint32
	ImageExtent       [2]uint32
}

// AtlasBacking is the Atlas variant of ImageBacking: a shelf allocator
// plus the two double-buffered GPU atlas images it packs into.
type AtlasBacking struct {
	Allocator      *shelfAllocator
	Allocations    *imagekey.Map[*AtlasAllocState]
	Images         [2]GPUImageID
	StagingBuffers [2]GPUBufferID
	PendingClears  [2][]Rect
	PendingUploads [2][]StagedUpload
	StagingWrite   [2][]byte
	ResizeFlag     [2]bool
}

func newAtlasBacking(size uint32, maxDimension uint32) *AtlasBacking {
	return &AtlasBacking{
		Allocator:   newShelfAllocator(size, size, maxDimension, SmallThreshold),
		Allocations: imagekey.NewMap[*AtlasAllocState](),
	}
}

// DedicatedBacking is a single GPU image allocated specifically for one
// oversized source image.
type DedicatedBacking struct {
	Key       imagekey.ImageKey
	Uses      int
	ImageID   GPUImageID
	WriteInfo *dedicatedWrite
}

type dedicatedWrite struct {
	Width, Height uint32
	Data          []byte
}

// UserBacking wraps a caller-supplied Vulkan image the manager never
// allocates or frees.
type UserBacking struct {
	Key     imagekey.ImageKey
	Uses    int
	ImageID GPUImageID
}

// Backing is a tagged union over the three variants above. Exactly one
// of Atlas/Dedicated/User is non-nil, selected by Kind.
type Backing struct {
	Kind      BackingKind
	Atlas     *AtlasBacking
	Dedicated *DedicatedBacking
	User      *UserBacking
}

// usesFor reports the reference count for key if this backing holds
// it, and whether it holds it at all.
func (b *Backing) usesFor(key imagekey.ImageKey) (*int, bool) {
	switch b.Kind {
	case BackingAtlas:
		if state, ok := b.Atlas.Allocations.Get(key); ok {
			return &state.Uses, true
		}
	case BackingDedicated:
		if b.Dedicated.Key.Equal(key) {
			return &b.Dedicated.Uses, true
		}
	case BackingUser:
		if b.User.Key.Equal(key) {
			return &b.User.Uses, true
		}
	}
	return nil, false
}

// ImageAllocator abstracts GPU image (re)allocation for atlas and
// dedicated backings. The concrete Vulkan-backed implementation lives
// in the vulkan package; this manager only ever reasons about
// GPUImageID handles. Left nil, the manager still tracks backing
// bookkeeping correctly but every GPUImageID stays the zero value,
// which is how this package's own tests exercise it without a GPU.
type ImageAllocator interface {
	AllocateImage(width, height uint32) GPUImageID
	ResizeImage(old GPUImageID, width, height uint32) GPUImageID
	FreeImage(id GPUImageID)
}

// Manager owns every image backing for one worker coordinator and
// implements the apply-removes/apply-adds/collect-garbage/obtain
// sequence spec.md §4.D describes.
type Manager struct {
	backings     []*Backing
	maxDimension uint32
	images       ImageAllocator
}

func NewManager(maxDimension uint32) *Manager {
	return &Manager{maxDimension: maxDimension}
}

// SetImageAllocator wires a Vulkan-backed ImageAllocator into the
// manager. Called once during host setup, after the device is ready;
// every atlas/dedicated backing created or grown afterward allocates a
// real GPU image through it.
func (m *Manager) SetImageAllocator(images ImageAllocator) {
	m.images = images
}

// ApplyRemoves decrements the reference count for every (key, count) in
// removed, stopping at the first backing that holds the key (spec.md
// §4.D: "locate the backing... and decrement uses by the multiplicity").
func (m *Manager) ApplyRemoves(removed *imagekey.Map[int]) {
	removed.Each(func(key imagekey.ImageKey, count int) {
		for _, b := range m.backings {
			if uses, ok := b.usesFor(key); ok {
				*uses -= count
				break
			}
		}
	})
}

// ApplyAdds increments the reference count for every (key, count) in
// added when an existing backing already holds the key; otherwise it
// accumulates the key into the returned obtain set, to be fetched from
// the image cache.
func (m *Manager) ApplyAdds(added *imagekey.Map[int]) *imagekey.Map[int] {
	obtain := imagekey.NewMap[int]()

	added.Each(func(key imagekey.ImageKey, count int) {
		for _, b := range m.backings {
			if uses, ok := b.usesFor(key); ok {
				*uses += count
				return
			}
		}
		obtain.Modify(key, func() int { return 0 }, func(v *int) { *v += count })
	})

	return obtain
}

// CollectGarbage iterates every backing: atlas allocations and whole
// dedicated/user backings with Uses == 0 are dropped. For atlas
// allocations this also deallocates the shelf rectangle and queues a
// clear of that region on both frame-in-flight images. The keys that
// fell to zero are returned so the caller can deref them from the
// image cache; removedBackingIndexes lists indices (into the backings
// slice as it stood before this call) whose whole backing disappeared,
// which the caller uses to invalidate tex_i-shifted vertex states.
func (m *Manager) CollectGarbage() (derefKeys []imagekey.ImageKey, removedBackingIndexes []int) {
	kept := make([]*Backing, 0, len(m.backings))

	for i, b := range m.backings {
		switch b.Kind {
		case BackingAtlas:
			var toDrop []imagekey.ImageKey
			b.Atlas.Allocations.Each(func(key imagekey.ImageKey, state *AtlasAllocState) {
				if state.Uses == 0 {
					toDrop = append(toDrop, key)
				}
			})
			for _, key := range toDrop {
				state, _ := b.Atlas.Allocations.Remove(key)
				b.Atlas.Allocator.Deallocate(state.Alloc.ID)
				derefKeys = append(derefKeys, key)
				for f := range b.Atlas.PendingClears {
					b.Atlas.PendingClears[f] = append(b.Atlas.PendingClears[f], state.Alloc.Rect)
				}
			}
			kept = append(kept, b)

		case BackingDedicated:
			if b.Dedicated.Uses == 0 {
				derefKeys = append(derefKeys, b.Dedicated.Key)
				removedBackingIndexes = append(removedBackingIndexes, i)
				if m.images != nil {
					m.images.FreeImage(b.Dedicated.ImageID)
				}
				continue
			}
			kept = append(kept, b)

		case BackingUser:
			if b.User.Uses == 0 {
				removedBackingIndexes = append(removedBackingIndexes, i)
				continue
			}
			kept = append(kept, b)
		}
	}

	m.backings = kept
	return derefKeys, removedBackingIndexes
}

// Obtain derefs derefKeys and fetches obtainKeys (a key -> reference
// count multiset) from the cache in one obtain_data call, then places
// each resulting blob into a backing: user-owned Vulkan ids become a
// UserBacking, oversized images become a DedicatedBacking, everything
// else is packed into an existing or newly created atlas. curImageIdx
// selects which of the two frame-in-flight staging buffers receives the
// new bytes this cycle; the copy regions that reference them are queued
// for both slots so both atlas images eventually converge.
func (m *Manager) Obtain(cache *imagecache.Cache, derefKeys []imagekey.ImageKey, obtainKeys *imagekey.Map[int], curImageIdx int, targetFormat imagecache.VulkanFormat) {
	keys := obtainKeys.Keys()
	if len(derefKeys) == 0 && len(keys) == 0 {
		return
	}

	blobs := cache.ObtainData(derefKeys, keys, targetFormat)

	for _, key := range keys {
		count, _ := obtainKeys.Get(key)

		if id, isVulkan := key.VulkanID(); isVulkan {
			m.backings = append(m.backings, &Backing{
				Kind: BackingUser,
				User: &UserBacking{Key: key, Uses: count, ImageID: GPUImageID(id)},
			})
			continue
		}

		blob, ok := blobs.Get(key)
		if !ok {
			continue
		}

		if core.Max(blob.Width, blob.Height) > LargeThreshold-2 {
			dedicated := &DedicatedBacking{
				Key:  key,
				Uses: count,
				WriteInfo: &dedicatedWrite{
					Width:  blob.Width,
					Height: blob.Height,
					Data:   blob.Data,
				},
			}
			if m.images != nil {
				dedicated.ImageID = m.images.AllocateImage(blob.Width, blob.Height)
			}
			m.backings = append(m.backings, &Backing{Kind: BackingDedicated, Dedicated: dedicated})
			continue
		}

		m.obtainIntoAtlas(key, count, blob, curImageIdx)
	}
}

// ImageIDs returns the tex_i-ordered GPU image handles the bindless
// descriptor array should bind this cycle: one id per backing, in the
// same order `locate`'s tex_i indexes into, selecting atlas backings'
// slot'd image (slot picks between the two frame-in-flight atlas
// images) and dedicated/user backings' single image. Grounded on
// original_source/src/render/worker/mod.rs's `image_ids` collection
// (`image_backings.iter().map(...)`) just before it builds the
// RenderUpdate.
func (m *Manager) ImageIDs(slot int) []uint64 {
	ids := make([]uint64, len(m.backings))
	for i, b := range m.backings {
		switch b.Kind {
		case BackingAtlas:
			ids[i] = uint64(b.Atlas.Images[slot])
		case BackingDedicated:
			ids[i] = uint64(b.Dedicated.ImageID)
		case BackingUser:
			ids[i] = uint64(b.User.ImageID)
		}
	}
	return ids
}

// locate finds which backing currently holds key, returning the
// backing's index (the vertex shader's tex_i) and, for atlas-backed
// keys, the inner-rectangle offset (+1 to skip the transparent border)
// that must be added to every vertex's texture coordinates.
func (m *Manager) locate(key imagekey.ImageKey) (texI uint32, offsetCoords [2]float32, ok bool) {
	for i, b := range m.backings {
		switch b.Kind {
		case BackingAtlas:
			if state, found := b.Atlas.Allocations.Get(key); found {
				return uint32(i), [2]float32{
					float32(state.Alloc.Rect.X) + 1,
					float32(state.Alloc.Rect.Y) + 1,
				}, true
			}
		case BackingDedicated:
			if b.Dedicated.Key.Equal(key) {
				return uint32(i), [2]float32{}, true
			}
		case BackingUser:
			if b.User.Key.Equal(key) {
				return uint32(i), [2]float32{}, true
			}
		}
	}
	return 0, [2]float32{}, false
}

// obtainIntoAtlas tries each existing atlas backing in turn, growing
// one if it's nearly large enough, and finally creates a new atlas
// sized to AtlasDefaultSize if none can fit the allocation.
func (m *Manager) obtainIntoAtlas(key imagekey.ImageKey, count int, blob imagecache.Obtained, curImageIdx int) {
	w := blob.Width + 2 // 1px transparent border each side
	h := blob.Height + 2

	for _, b := range m.backings {
		if b.Kind != BackingAtlas {
			continue
		}
		if m.tryAllocateInto(b.Atlas, key, count, blob, w, h, curImageIdx) {
			return
		}
	}

	atlas := newAtlasBacking(AtlasDefaultSize, m.maxDimension)
	if m.images != nil {
		atlas.Images[0] = m.images.AllocateImage(AtlasDefaultSize, AtlasDefaultSize)
		atlas.Images[1] = m.images.AllocateImage(AtlasDefaultSize, AtlasDefaultSize)
	}
	m.backings = append(m.backings, &Backing{Kind: BackingAtlas, Atlas: atlas})
	m.tryAllocateInto(atlas, key, count, blob, w, h, curImageIdx)
}

// tryAllocateInto attempts to place (w,h) into atlas, growing it (and
// recording a resize + clears for the newly exposed region) if it's
// under the half-max-dimension growth heuristic spec.md §4.D specifies.
func (m *Manager) tryAllocateInto(atlas *AtlasBacking, key imagekey.ImageKey, count int, blob imagecache.Obtained, w, h uint32, curImageIdx int) bool {
	for {
		alloc, ok := atlas.Allocator.Allocate(w, h)
		if ok {
			state := &AtlasAllocState{Alloc: alloc, Uses: count}
			atlas.Allocations.Set(key, state)
			queueAtlasUpload(atlas, alloc.Rect, blob, curImageIdx)
			return true
		}

		if atlas.Allocator.Width() >= m.maxDimension/2 {
			return false
		}

		oldSize := atlas.Allocator.Width()
		atlas.Allocator.Grow()
		newSize := atlas.Allocator.Width()
		if m.images != nil {
			atlas.Images[0] = m.images.ResizeImage(atlas.Images[0], newSize, newSize)
			atlas.Images[1] = m.images.ResizeImage(atlas.Images[1], newSize, newSize)
		}
		exposed := []Rect{
			{X: oldSize, Y: 0, W: newSize - oldSize, H: newSize},
			{X: 0, Y: oldSize, W: oldSize, H: newSize - oldSize},
		}
		for f := range atlas.ResizeFlag {
			atlas.ResizeFlag[f] = true
			atlas.PendingClears[f] = append(atlas.PendingClears[f], exposed...)
		}
	}
}

// queueAtlasUpload appends the decoded blob to the current-image-index
// staging write buffer only, but records a copy region into the
// allocation's inner rectangle (offset by 1 to skip the transparent
// border) for both frame-in-flight slots, so both atlas images
// eventually receive the copy once each slot's staging buffer catches
// up.
func queueAtlasUpload(atlas *AtlasBacking, rect Rect, blob imagecache.Obtained, curImageIdx int) {
	offset := uint64(len(atlas.StagingWrite[curImageIdx]))
	atlas.StagingWrite[curImageIdx] = append(atlas.StagingWrite[curImageIdx], blob.Data...)

	for f := range atlas.PendingUploads {
		atlas.PendingUploads[f] = append(atlas.PendingUploads[f], StagedUpload{
			StagingWriteIndex: curImageIdx,
			BufferOffset:      offset,
			ImageOffset:       [2]uint32{rect.X + 1, rect.Y + 1},
			ImageExtent:       [2]uint32{blob.Width, blob.Height},
		})
	}
}
