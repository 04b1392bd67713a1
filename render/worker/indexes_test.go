package worker

import "testing"

func TestIndexesAdvVertexTogglesCurrentAndStashesSub(t *testing.T) {
	idx := &indexes{}

	if idx.currVertex() != 0 || idx.prevVertex() != 1 || idx.nextVertex() != 1 {
		t.Fatalf("unexpected initial vertex indexes: %+v", idx)
	}

	idx.advVertex()
	if idx.currVertex() != 1 {
		t.Fatalf("expected advVertex to toggle current vertex to 1, got %d", idx.currVertex())
	}
	if idx.vertexSub[0] != 1 {
		t.Fatalf("expected advVertex to toggle the sub-index it left behind")
	}
}

func TestIndexesAdvImageToggles(t *testing.T) {
	idx := &indexes{}
	if idx.currImage() != 0 || idx.prevImage() != 1 {
		t.Fatalf("unexpected initial image index")
	}
	idx.advImage()
	if idx.currImage() != 1 || idx.prevImage() != 0 {
		t.Fatalf("expected advImage to toggle current/prev image index")
	}
}

func TestIndexesCurrVertexSubReflectsAdvVertexSub(t *testing.T) {
	idx := &indexes{}
	before := idx.currVertexSub()
	idx.advVertexSub()
	after := idx.currVertexSub()
	if before == after {
		t.Fatalf("expected advVertexSub to change the current vertex sub-index")
	}
	if before != idx.currVertexPrevSub() {
		t.Fatalf("expected currVertexPrevSub to point back at the sub-index held before advVertexSub")
	}
}
