package worker

import (
	"testing"

	"github.com/spaghettifunk/basalt/bin"
	"github.com/spaghettifunk/basalt/imagekey"
)

func TestBinStateIsAliveTracksBinRelease(t *testing.T) {
	b := bin.New(1)
	s := newBinState(b)

	if !s.isAlive() {
		t.Fatalf("expected a freshly created bin state to be alive")
	}

	b.Release()

	if s.isAlive() {
		t.Fatalf("expected isAlive to observe the bin's release")
	}
}

func TestBinStateApplyGeometryReplacesImagesAndVertexes(t *testing.T) {
	b := bin.New(2)
	s := newBinState(b)

	img := imagekey.FromPath("icon.png")
	images := imagekey.NewSet()
	images.Insert(img)

	vs := bin.NewVertexState()
	geometry := bin.Geometry{
		Images:   images,
		Vertexes: map[float32]*bin.VertexState{0.5: vs},
	}

	s.applyGeometry(geometry)

	if s.pendingUpdate {
		t.Fatalf("expected applyGeometry to clear pendingUpdate")
	}
	if !s.images.Contains(img) {
		t.Fatalf("expected the new image set to be adopted")
	}
	if _, ok := s.vertexes[0.5]; !ok {
		t.Fatalf("expected the new vertex states to be adopted")
	}
}
