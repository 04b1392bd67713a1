package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"

	rendercontext "github.com/spaghettifunk/basalt/render/context"
)

func TestFormatBitsAndSRGBKnownFormats(t *testing.T) {
	cases := []struct {
		format   vk.Format
		wantBits uint8
		wantSRGB bool
	}{
		{vk.FormatB8g8r8a8Srgb, 8, true},
		{vk.FormatR8g8b8a8Srgb, 8, true},
		{vk.FormatB8g8r8a8Unorm, 8, false},
		{vk.FormatR8g8b8a8Unorm, 8, false},
		{vk.FormatA2b10g10r10UnormPack32, 10, false},
	}
	for _, c := range cases {
		bits, srgb := formatBitsAndSRGB(c.format)
		if bits != c.wantBits || srgb != c.wantSRGB {
			t.Fatalf("format %v: got (%d, %v), want (%d, %v)", c.format, bits, srgb, c.wantBits, c.wantSRGB)
		}
	}
}

func TestFormatBitsAndSRGBUnknownDefaultsToLinear8(t *testing.T) {
	bits, srgb := formatBitsAndSRGB(vk.FormatR16g16b16a16Unorm)
	if bits != 8 || srgb != false {
		t.Fatalf("expected conservative default (8, false), got (%d, %v)", bits, srgb)
	}
}

func TestPresentModeRoundTrip(t *testing.T) {
	modes := []rendercontext.PresentMode{
		rendercontext.PresentModeFifo,
		rendercontext.PresentModeFifoRelaxed,
		rendercontext.PresentModeMailbox,
		rendercontext.PresentModeImmediate,
	}
	for _, pm := range modes {
		vkMode := presentModeToVk(pm)
		got, ok := presentModeFromVk(vkMode)
		if !ok {
			t.Fatalf("expected %v to round-trip through vk.PresentMode", pm)
		}
		if got != pm {
			t.Fatalf("round trip mismatch: started with %v, got %v", pm, got)
		}
	}
}

func TestPresentModeFromVkRejectsUnknown(t *testing.T) {
	if _, ok := presentModeFromVk(vk.PresentMode(999)); ok {
		t.Fatalf("expected unrecognized present mode to be rejected")
	}
}

func TestPresentModeCandidatesFiltersUnsupported(t *testing.T) {
	in := []vk.PresentMode{vk.PresentModeFifo, vk.PresentMode(999), vk.PresentModeMailbox}
	out := presentModeCandidates(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 recognized present modes, got %d", len(out))
	}
}

func TestSurfaceFormatCandidatesCarriesBitsAndSRGB(t *testing.T) {
	in := []vk.SurfaceFormat{
		{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
	}
	out := surfaceFormatCandidates(in)
	if len(out) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(out))
	}
	if out[0].BitsPerChannel != 8 || !out[0].SRGB {
		t.Fatalf("expected (8, true), got (%d, %v)", out[0].BitsPerChannel, out[0].SRGB)
	}
}
