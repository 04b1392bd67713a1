// Package context implements the RenderContext/TaskGraph spec.md §4.F
// describes: swapchain setup, present-mode and surface-format
// selection, MSAA/vsync reconfiguration, and the two task graph
// shapes (UI-only and UI+user). The selection policy below is kept
// free of any Vulkan binding so it can be unit tested without a GPU;
// the vulkan package feeds it candidate lists gathered from the real
// device and converts the result back to vk types.
package context

// SurfaceFormat is a candidate swapchain surface format, abstracted
// away from any particular Vulkan type.
type SurfaceFormat struct {
	Format         uint32
	ColorSpace     uint32
	BitsPerChannel uint8
	SRGB           bool
}

// ChooseSurfaceFormat picks the candidate favoring higher bit depth,
// then SRGB non-linear colorspace, per spec.md §4.F. candidates must be
// non-empty; the first element is the fallback the teacher's swapchain
// creation already used when nothing else matches.
func ChooseSurfaceFormat(candidates []SurfaceFormat) SurfaceFormat {
	best := candidates[0]
	for _, c := range candidates[1:] {
		if surfaceFormatBetter(c, best) {
			best = c
		}
	}
	return best
}

func surfaceFormatBetter(a, b SurfaceFormat) bool {
	if a.BitsPerChannel != b.BitsPerChannel {
		return a.BitsPerChannel > b.BitsPerChannel
	}
	return a.SRGB && !b.SRGB
}

// PresentMode mirrors the four present modes spec.md §4.F names.
type PresentMode uint8

const (
	PresentModeFifo PresentMode = iota
	PresentModeFifoRelaxed
	PresentModeMailbox
	PresentModeImmediate
)

var presentPreferenceVSyncOn = []PresentMode{PresentModeFifo, PresentModeFifoRelaxed, PresentModeMailbox, PresentModeImmediate}
var presentPreferenceVSyncOff = []PresentMode{PresentModeMailbox, PresentModeImmediate, PresentModeFifo, PresentModeFifoRelaxed}

// ChoosePresentMode filters available down to {Fifo, FifoRelaxed,
// Mailbox, Immediate} and returns the first match in the VSync-keyed
// preference order spec.md §4.F specifies. Fifo is mandated by the
// Vulkan spec to always be supported, so it is the fallback when
// available names nothing from the preference list (which should not
// happen on a conformant driver).
func ChoosePresentMode(available []PresentMode, vsync bool) PresentMode {
	pref := presentPreferenceVSyncOn
	if !vsync {
		pref = presentPreferenceVSyncOff
	}

	have := make(map[PresentMode]bool, len(available))
	for _, m := range available {
		have[m] = true
	}
	for _, m := range pref {
		if have[m] {
			return m
		}
	}
	return PresentModeFifo
}

// FormatFeature mirrors the vk.FormatFeatureFlagBits this package
// requires of an internal image format.
type FormatFeature uint32

const (
	FeatureTransferDst FormatFeature = 1 << iota
	FeatureTransferSrc
	FeatureSampledImage
	FeatureSampledImageFilterLinear
)

const RequiredImageFeatures = FeatureTransferDst | FeatureTransferSrc | FeatureSampledImage | FeatureSampledImageFilterLinear

// InternalFormatCandidate pairs a candidate internal image format with
// the format features the device reports supporting it with.
type InternalFormatCandidate struct {
	Format   uint32
	Features FormatFeature
}

// ErrNoSuitableFormat is returned when no candidate exposes every
// feature RequiredImageFeatures names.
type ErrNoSuitableFormat struct{}

func (ErrNoSuitableFormat) Error() string {
	return "no internal image format supports transfer-dst, transfer-src, sampled-image and linear-filtered sampling"
}

// ChooseInternalFormat picks the first candidate from the list whose
// Features superset RequiredImageFeatures, in candidate-list order
// (the caller supplies candidates already ranked by preference).
func ChooseInternalFormat(candidates []InternalFormatCandidate) (uint32, error) {
	for _, c := range candidates {
		if c.Features&RequiredImageFeatures == RequiredImageFeatures {
			return c.Format, nil
		}
	}
	return 0, ErrNoSuitableFormat{}
}

// TaskGraphShape selects which of the two graphs spec.md §4.F
// describes gets compiled.
type TaskGraphShape int

const (
	// ShapeUIOnly is the single-node graph: vertex buffer + descriptor
	// set straight to the swapchain image (with a transient MSAA
	// resolve when MSAA >= 2x).
	ShapeUIOnly TaskGraphShape = iota
	// ShapeUIPlusUser adds a user-render node and a final composite
	// node that blends the UI layer atop it.
	ShapeUIPlusUser
)

// SpecificMode is the per-window rendering mode state machine spec.md
// §4.F names: "Specific: None -> ItfOnly | User -> (same, reconfigured
// on MSAA/vsync change)".
type SpecificMode int

const (
	SpecificNone SpecificMode = iota
	SpecificItfOnly
	SpecificUser
)

// TransitionDropsImages reports whether moving the Specific mode from
// cur to next must drop every image tied to cur's task graph, per
// spec.md §4.F: "Transition from one Specific to another drops all
// images tied to the old mode." Moving from None to a mode, or
// reconfiguring the same mode in place, keeps its images; leaving a
// mode for any other mode, None included, drops them.
func TransitionDropsImages(cur, next SpecificMode) bool {
	return cur != SpecificNone && cur != next
}

// SwapchainState is the two-state machine spec.md §4.F names: "Current
// <-> NeedsRecreate -> Current on next update(). Terminal on drop."
type SwapchainState int

const (
	SwapchainCurrent SwapchainState = iota
	SwapchainNeedsRecreate
)
