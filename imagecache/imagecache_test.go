package imagecache

import (
	"testing"

	"github.com/spaghettifunk/basalt/imagekey"
)

func solidRGBA(w, h int, r, g, b, a byte) Data {
	out := make([]byte, w*h*4)
	for i := 0; i < w*h; i++ {
		out[i*4+0] = r
		out[i*4+1] = g
		out[i*4+2] = b
		out[i*4+3] = a
	}
	return Data{Depth: Depth8, D8: out}
}

func TestLoadRawRejectsWrongLength(t *testing.T) {
	c := New()
	_, err := c.LoadRaw(imagekey.FromPath("/a"), Immediate(), LRGBA, 4, 4, nil, Data{Depth: Depth8, D8: make([]byte, 10)})
	if err == nil {
		t.Fatalf("expected an error for a mismatched data length")
	}
}

func TestLoadRawDoesNotOverwrite(t *testing.T) {
	c := New()
	key := imagekey.FromPath("/a")

	info1, err := c.LoadRaw(key, Immediate(), LRGBA, 2, 2, "first", solidRGBA(2, 2, 1, 2, 3, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	info2, err := c.LoadRaw(key, Immediate(), LRGBA, 99, 99, "second", solidRGBA(99, 99, 9, 9, 9, 9))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if info1.Width != info2.Width || info2.AssociatedData != "first" {
		t.Fatalf("expected second load to return the original entry unchanged: %+v vs %+v", info1, info2)
	}
}

func TestObtainDataRefCounting(t *testing.T) {
	c := New()
	key := imagekey.FromPath("/a")

	if _, err := c.LoadRaw(key, Immediate(), LRGBA, 2, 2, nil, solidRGBA(2, 2, 255, 0, 0, 255)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := c.ObtainData(nil, []imagekey.ImageKey{key}, VulkanFormatR8G8B8A8Unorm)
	if result.Len() != 1 {
		t.Fatalf("expected one obtained image, got %d", result.Len())
	}

	infos := c.ObtainInfo([]imagekey.ImageKey{key})
	if infos[0] == nil {
		t.Fatalf("expected image still present after being obtained once")
	}

	// Release the only reference; since lifetime is Immediate and the
	// image has now been used, the next sweep should evict it.
	c.ObtainData([]imagekey.ImageKey{key}, nil, VulkanFormatR8G8B8A8Unorm)

	infos = c.ObtainInfo([]imagekey.ImageKey{key})
	if infos[0] != nil {
		t.Fatalf("expected image to be evicted after release under Immediate lifetime")
	}
}

func TestObtainDataKeepsIndefiniteEvenUnused(t *testing.T) {
	c := New()
	key := imagekey.FromPath("/a")

	if _, err := c.LoadRaw(key, Indefinite(), LRGBA, 1, 1, nil, solidRGBA(1, 1, 1, 1, 1, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// never obtained, never unreferenced: sweep with no keys.
	c.ObtainData(nil, nil, VulkanFormatR8G8B8A8Unorm)

	infos := c.ObtainInfo([]imagekey.ImageKey{key})
	if infos[0] == nil {
		t.Fatalf("expected Indefinite image to survive a sweep untouched")
	}
}

func TestRemoveInUseDefersEviction(t *testing.T) {
	c := New()
	key := imagekey.FromPath("/a")

	if _, err := c.LoadRaw(key, Indefinite(), LRGBA, 1, 1, nil, solidRGBA(1, 1, 1, 1, 1, 1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c.ObtainData(nil, []imagekey.ImageKey{key}, VulkanFormatR8G8B8A8Unorm)

	c.Remove(key)

	// still referenced: must survive an intervening sweep.
	c.ObtainData(nil, nil, VulkanFormatR8G8B8A8Unorm)
	if infos := c.ObtainInfo([]imagekey.ImageKey{key}); infos[0] == nil {
		t.Fatalf("expected image to survive while still referenced")
	}

	// release the reference: now it should evict.
	c.ObtainData([]imagekey.ImageKey{key}, nil, VulkanFormatR8G8B8A8Unorm)
	if infos := c.ObtainInfo([]imagekey.ImageKey{key}); infos[0] != nil {
		t.Fatalf("expected image to evict once its deferred removal's last reference dropped")
	}
}

func TestConvertRGBALinearToSRGBDepth16(t *testing.T) {
	data := solidRGBA(1, 1, 255, 128, 0, 255)
	out := ConvertToVulkanFormat(LRGBA, data, VulkanFormat{Components: 4, Depth: Depth16, SRGB: true})

	if len(out) != 4*2 {
		t.Fatalf("expected 8 bytes for one RGBA16 pixel, got %d", len(out))
	}
}

func TestConvertMonoExpandsToRGBA(t *testing.T) {
	data := Data{Depth: Depth8, D8: []byte{128}}
	out := ConvertToVulkanFormat(LMono, data, VulkanFormatR8G8B8A8Unorm)

	if len(out) != 4 {
		t.Fatalf("expected 4 bytes (RGBA) from a 1-sample mono pixel, got %d", len(out))
	}
	if out[0] != out[1] || out[1] != out[2] {
		t.Fatalf("expected replicated channels, got %v", out[:3])
	}
	if out[3] != 255 {
		t.Fatalf("expected alpha forced to opaque, got %d", out[3])
	}
}
