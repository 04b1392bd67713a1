package context

import "testing"

func TestChooseSurfaceFormatPrefersHigherBitDepthThenSRGB(t *testing.T) {
	candidates := []SurfaceFormat{
		{Format: 1, BitsPerChannel: 8, SRGB: false},
		{Format: 2, BitsPerChannel: 8, SRGB: true},
		{Format: 3, BitsPerChannel: 10, SRGB: false},
	}
	got := ChooseSurfaceFormat(candidates)
	if got.Format != 3 {
		t.Fatalf("expected the higher bit depth candidate to win, got format %d", got.Format)
	}

	candidates = []SurfaceFormat{
		{Format: 1, BitsPerChannel: 8, SRGB: false},
		{Format: 2, BitsPerChannel: 8, SRGB: true},
	}
	got = ChooseSurfaceFormat(candidates)
	if got.Format != 2 {
		t.Fatalf("expected the sRGB candidate to win among equal bit depths, got format %d", got.Format)
	}
}

func TestChoosePresentModeVSyncOn(t *testing.T) {
	available := []PresentMode{PresentModeImmediate, PresentModeMailbox, PresentModeFifo}
	if got := ChoosePresentMode(available, true); got != PresentModeFifo {
		t.Fatalf("expected Fifo with VSync on, got %v", got)
	}
}

func TestChoosePresentModeVSyncOff(t *testing.T) {
	available := []PresentMode{PresentModeFifo, PresentModeFifoRelaxed}
	if got := ChoosePresentMode(available, false); got != PresentModeFifo {
		t.Fatalf("expected Fifo (Mailbox/Immediate unavailable) with VSync off, got %v", got)
	}

	available = []PresentMode{PresentModeFifo, PresentModeImmediate, PresentModeMailbox}
	if got := ChoosePresentMode(available, false); got != PresentModeMailbox {
		t.Fatalf("expected Mailbox to win with VSync off, got %v", got)
	}
}

func TestChoosePresentModeFallsBackToFifo(t *testing.T) {
	if got := ChoosePresentMode(nil, true); got != PresentModeFifo {
		t.Fatalf("expected Fifo fallback with no available modes, got %v", got)
	}
}

func TestChooseInternalFormatRequiresAllFeatures(t *testing.T) {
	candidates := []InternalFormatCandidate{
		{Format: 1, Features: FeatureTransferDst | FeatureSampledImage},
		{Format: 2, Features: RequiredImageFeatures},
	}
	got, err := ChooseInternalFormat(candidates)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected the fully-featured candidate to be chosen, got format %d", got)
	}
}

func TestChooseInternalFormatFailsWhenNoneQualify(t *testing.T) {
	candidates := []InternalFormatCandidate{
		{Format: 1, Features: FeatureTransferDst},
	}
	if _, err := ChooseInternalFormat(candidates); err == nil {
		t.Fatalf("expected an error when no candidate satisfies every required feature")
	}
}

func TestTransitionDropsImages(t *testing.T) {
	cases := []struct {
		cur, next SpecificMode
		want      bool
	}{
		{SpecificNone, SpecificItfOnly, false},
		{SpecificItfOnly, SpecificItfOnly, false},
		{SpecificItfOnly, SpecificUser, true},
		{SpecificUser, SpecificNone, true},
	}
	for _, c := range cases {
		if got := TransitionDropsImages(c.cur, c.next); got != c.want {
			t.Fatalf("TransitionDropsImages(%v, %v) = %v, want %v", c.cur, c.next, got, c.want)
		}
	}
}
