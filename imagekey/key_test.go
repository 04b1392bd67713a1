package imagekey

import "testing"

func TestHashStableAcrossClones(t *testing.T) {
	k1 := FromURL("https://example.com/a.png")
	k2 := k1 // struct copy, "clone"

	if k1.Hash() != k2.Hash() {
		t.Fatalf("hash changed across copy: %d != %d", k1.Hash(), k2.Hash())
	}

	if !k1.Equal(k2) {
		t.Fatalf("expected copied key to be equal")
	}
}

func TestEqualKeysHaveEqualHash(t *testing.T) {
	a := FromPath("/tmp/icon.png")
	b := FromPath("/tmp/icon.png")

	if !a.Equal(b) {
		t.Fatalf("expected equal paths to produce equal keys")
	}
	if a.Hash() != b.Hash() {
		t.Fatalf("equal keys must share a hash")
	}
}

func TestDistinctKindsNeverEqual(t *testing.T) {
	url := FromURL("x")
	path := FromPath("x")

	if url.Equal(path) {
		t.Fatalf("keys of different kinds must never compare equal")
	}
}

func TestNoneKey(t *testing.T) {
	if !None.IsNone() {
		t.Fatalf("expected None.IsNone()")
	}
	if None.IsImageCache() {
		t.Fatalf("None must not be image-cache-owned")
	}
}

func TestVulkanKeyIsNotImageCache(t *testing.T) {
	k := FromVulkanID(42)
	if k.IsImageCache() {
		t.Fatalf("vulkan-id keys are user-owned, not cache-owned")
	}
	id, ok := k.VulkanID()
	if !ok || id != 42 {
		t.Fatalf("expected vulkan id round-trip, got %d ok=%v", id, ok)
	}
}

type testUserKey struct{ id int }

func (k testUserKey) HashBytes() []byte {
	return []byte{byte(k.id)}
}

func TestUserKeyTypeTagging(t *testing.T) {
	a := FromUser("imagekey.testUserKey", testUserKey{id: 1})
	b := FromUser("imagekey.testUserKey", testUserKey{id: 1})
	c := FromUser("imagekey.testUserKey", testUserKey{id: 2})
	d := FromUser("other.Type", testUserKey{id: 1})

	if !a.Equal(b) {
		t.Fatalf("identical user keys must be equal")
	}
	if a.Equal(c) {
		t.Fatalf("user keys with different values must not be equal")
	}
	if a.Equal(d) {
		t.Fatalf("user keys with different type tags must not be equal even with same bytes")
	}

	v, ok := a.User("imagekey.testUserKey")
	if !ok {
		t.Fatalf("expected User() to succeed")
	}
	if v.(testUserKey).id != 1 {
		t.Fatalf("unexpected user payload: %+v", v)
	}
}

func TestMapTryInsertThen(t *testing.T) {
	m := NewMap[int]()
	k := FromPath("/a")

	built := 0
	result := TryInsertThen(m, k, func() int {
		built++
		return 10
	}, func(v *int) int {
		*v++
		return *v
	})

	if built != 1 {
		t.Fatalf("expected build to run once, ran %d", built)
	}
	if result != 11 {
		t.Fatalf("expected derive to see post-increment value 11, got %d", result)
	}

	result2 := TryInsertThen(m, k, func() int {
		built++
		return 999
	}, func(v *int) int {
		*v++
		return *v
	})

	if built != 1 {
		t.Fatalf("expected build to NOT run on second call, built=%d", built)
	}
	if result2 != 12 {
		t.Fatalf("expected second derive to see 12, got %d", result2)
	}
}

func TestMapRetain(t *testing.T) {
	m := NewMap[int]()
	m.Set(FromPath("/a"), 1)
	m.Set(FromPath("/b"), 2)
	m.Set(FromPath("/c"), 3)

	m.Retain(func(_ ImageKey, v *int) bool {
		return *v%2 == 1
	})

	if m.Len() != 2 {
		t.Fatalf("expected 2 entries retained, got %d", m.Len())
	}
	if m.Contains(FromPath("/b")) {
		t.Fatalf("expected /b to be removed")
	}
}

func TestSetDiff(t *testing.T) {
	oldSet := NewSet()
	oldSet.Insert(FromPath("/a"))
	oldSet.Insert(FromPath("/b"))

	newSet := NewSet()
	newSet.Insert(FromPath("/b"))
	newSet.Insert(FromPath("/c"))

	removed, added := oldSet.Diff(newSet)

	if len(removed) != 1 || !removed[0].Equal(FromPath("/a")) {
		t.Fatalf("expected /a removed, got %+v", removed)
	}
	if len(added) != 1 || !added[0].Equal(FromPath("/c")) {
		t.Fatalf("expected /c added, got %+v", added)
	}
}
