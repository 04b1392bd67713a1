package worker

import (
	"testing"

	"github.com/spaghettifunk/basalt/imagecache"
	"github.com/spaghettifunk/basalt/imagekey"
)

func loadSolid(t *testing.T, cache *imagecache.Cache, key imagekey.ImageKey, w, h uint32) {
	t.Helper()
	data := make([]uint8, int(w)*int(h)*4)
	for i := range data {
		data[i] = 0xff
	}
	_, err := cache.LoadRaw(key, imagecache.Immediate(), imagecache.LRGBA, w, h,
		nil, imagecache.Data{Depth: imagecache.Depth8, D8: data})
	if err != nil {
		t.Fatalf("LoadRaw: %v", err)
	}
}

func TestObtainPacksSmallImagesIntoAtlas(t *testing.T) {
	cache := imagecache.New()
	key := imagekey.FromPath("icon.png")
	loadSolid(t, cache, key, 32, 32)

	mgr := NewManager(4096)
	obtain := imagekey.NewMap[int]()
	obtain.Set(key, 3)

	mgr.Obtain(cache, nil, obtain, 0, imagecache.VulkanFormatR8G8B8A8Unorm)

	if len(mgr.backings) != 1 {
		t.Fatalf("expected one atlas backing, got %d", len(mgr.backings))
	}
	b := mgr.backings[0]
	if b.Kind != BackingAtlas {
		t.Fatalf("expected BackingAtlas, got %v", b.Kind)
	}
	state, ok := b.Atlas.Allocations.Get(key)
	if !ok {
		t.Fatalf("expected key to be allocated in the atlas")
	}
	if state.Uses != 3 {
		t.Fatalf("expected Uses to carry the obtain multiplicity (3), got %d", state.Uses)
	}

	if len(b.Atlas.StagingWrite[0]) == 0 {
		t.Fatalf("expected staging write data at the current image index (0)")
	}
	if len(b.Atlas.StagingWrite[1]) != 0 {
		t.Fatalf("expected no staging write data at the non-current image index (1), got %d bytes", len(b.Atlas.StagingWrite[1]))
	}
	if len(b.Atlas.PendingUploads[0]) != 1 || len(b.Atlas.PendingUploads[1]) != 1 {
		t.Fatalf("expected a pending upload queued for both frame-in-flight slots")
	}
}

func TestObtainPromotesLargeImageToDedicated(t *testing.T) {
	cache := imagecache.New()
	key := imagekey.FromPath("background.png")
	loadSolid(t, cache, key, 600, 400)

	mgr := NewManager(4096)
	obtain := imagekey.NewMap[int]()
	obtain.Set(key, 1)

	mgr.Obtain(cache, nil, obtain, 1, imagecache.VulkanFormatR8G8B8A8Unorm)

	if len(mgr.backings) != 1 || mgr.backings[0].Kind != BackingDedicated {
		t.Fatalf("expected a dedicated backing for an oversized image")
	}
	if mgr.backings[0].Dedicated.Uses != 1 {
		t.Fatalf("expected Uses=1, got %d", mgr.backings[0].Dedicated.Uses)
	}
}

func TestObtainWrapsVulkanIDAsUserBacking(t *testing.T) {
	cache := imagecache.New()
	key := imagekey.FromVulkanID(42)

	mgr := NewManager(4096)
	obtain := imagekey.NewMap[int]()
	obtain.Set(key, 2)

	// ObtainData skips unknown keys, and user-owned Vulkan ids are never
	// stored in the image cache at all — Obtain recognizes them before
	// looking them up.
	mgr.Obtain(cache, nil, obtain, 0, imagecache.VulkanFormatR8G8B8A8Unorm)

	if len(mgr.backings) != 1 || mgr.backings[0].Kind != BackingUser {
		t.Fatalf("expected exactly one user backing for a Vulkan-id key, got %d backings", len(mgr.backings))
	}
	if user := mgr.backings[0].User; user.ImageID != 42 || user.Uses != 2 {
		t.Fatalf("expected ImageID=42 Uses=2, got ImageID=%d Uses=%d", user.ImageID, user.Uses)
	}
}

func TestApplyRemovesThenCollectGarbageFreesAtlasSlot(t *testing.T) {
	cache := imagecache.New()
	key := imagekey.FromPath("icon.png")
	loadSolid(t, cache, key, 16, 16)

	mgr := NewManager(4096)
	obtain := imagekey.NewMap[int]()
	obtain.Set(key, 1)
	mgr.Obtain(cache, nil, obtain, 0, imagecache.VulkanFormatR8G8B8A8Unorm)

	removed := imagekey.NewMap[int]()
	removed.Set(key, 1)
	mgr.ApplyRemoves(removed)

	derefKeys, removedIdx := mgr.CollectGarbage()
	if len(derefKeys) != 1 || !derefKeys[0].Equal(key) {
		t.Fatalf("expected the zeroed-out key to be returned for deref, got %v", derefKeys)
	}
	if len(removedIdx) != 0 {
		t.Fatalf("an atlas allocation freeing to zero uses does not remove the whole atlas backing")
	}
	if len(mgr.backings) != 1 {
		t.Fatalf("the atlas backing itself should survive, only its allocation is dropped")
	}
	if mgr.backings[0].Atlas.Allocations.Contains(key) {
		t.Fatalf("expected the allocation to be removed from the atlas")
	}
	if len(mgr.backings[0].Atlas.PendingClears[0]) != 1 || len(mgr.backings[0].Atlas.PendingClears[1]) != 1 {
		t.Fatalf("expected a pending clear queued for both frame-in-flight images")
	}
}

func TestApplyAddsReusesExistingBackingWithoutReobtain(t *testing.T) {
	cache := imagecache.New()
	key := imagekey.FromPath("icon.png")
	loadSolid(t, cache, key, 16, 16)

	mgr := NewManager(4096)
	obtain := imagekey.NewMap[int]()
	obtain.Set(key, 1)
	mgr.Obtain(cache, nil, obtain, 0, imagecache.VulkanFormatR8G8B8A8Unorm)

	added := imagekey.NewMap[int]()
	added.Set(key, 2)
	toObtain := mgr.ApplyAdds(added)

	if toObtain.Len() != 0 {
		t.Fatalf("expected no new keys to obtain when the backing already exists, got %d", toObtain.Len())
	}
	state, _ := mgr.backings[0].Atlas.Allocations.Get(key)
	if state.Uses != 3 {
		t.Fatalf("expected Uses to accumulate to 1+2=3, got %d", state.Uses)
	}
}

func TestApplyAddsAccumulatesUnknownKeysIntoObtainSet(t *testing.T) {
	mgr := NewManager(4096)
	keyA := imagekey.FromPath("a.png")
	keyB := imagekey.FromPath("b.png")

	added := imagekey.NewMap[int]()
	added.Set(keyA, 2)
	added.Set(keyB, 5)

	toObtain := mgr.ApplyAdds(added)

	countA, _ := toObtain.Get(keyA)
	countB, _ := toObtain.Get(keyB)
	if countA != 2 || countB != 5 {
		t.Fatalf("expected obtain counts to match the original add counts exactly (no double counting), got a=%d b=%d", countA, countB)
	}
}
