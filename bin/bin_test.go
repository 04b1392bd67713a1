package bin

import "testing"

func TestBinAliveness(t *testing.T) {
	b := New(1)
	if !b.IsAlive() {
		t.Fatalf("expected a freshly created bin to be alive")
	}
	b.Release()
	if b.IsAlive() {
		t.Fatalf("expected Release to mark the bin as no longer alive")
	}
}

func TestUpdateContextShapingCacheReset(t *testing.T) {
	ctx := NewUpdateContext()
	ctx.ShapingCacheSet("glyph:42", "shaped-run")

	if v, ok := ctx.ShapingCacheGet("glyph:42"); !ok || v != "shaped-run" {
		t.Fatalf("expected cached shaping entry to round-trip, got %v ok=%v", v, ok)
	}

	ctx.ResetShapingCache()

	if _, ok := ctx.ShapingCacheGet("glyph:42"); ok {
		t.Fatalf("expected shaping cache to be empty after reset")
	}
}

func TestNewVertexStateStartsAbsent(t *testing.T) {
	vs := NewVertexState()
	for i, off := range vs.Offset {
		if off != -1 {
			t.Fatalf("expected Offset[%d] to start absent (-1), got %d", i, off)
		}
	}
	for i, off := range vs.Staging {
		if off != -1 {
			t.Fatalf("expected Staging[%d] to start absent (-1), got %d", i, off)
		}
	}
	if vs.Data.Len() != 0 {
		t.Fatalf("expected a fresh vertex state to carry no data")
	}
}
