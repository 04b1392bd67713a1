package vulkan

import (
	"testing"

	vk "github.com/goki/vulkan"
)

func TestResultStringKnownCodes(t *testing.T) {
	if got := ResultString(vk.Success, false); got != "VK_SUCCESS" {
		t.Fatalf("unexpected short form: %q", got)
	}
	if got := ResultString(vk.ErrorOutOfDate, false); got != "VK_ERROR_OUT_OF_DATE_KHR" {
		t.Fatalf("unexpected short form: %q", got)
	}
}

func TestResultStringExtendedFallsBackOnUnknown(t *testing.T) {
	got := ResultString(vk.Result(-1000), true)
	if got == "" {
		t.Fatalf("expected a non-empty fallback description")
	}
}

func TestIsSuccessAcceptsStatusCodes(t *testing.T) {
	for _, r := range []vk.Result{vk.Success, vk.Suboptimal, vk.NotReady, vk.Timeout} {
		if !IsSuccess(r) {
			t.Fatalf("expected %v to be treated as success", r)
		}
	}
}

func TestIsSuccessRejectsErrors(t *testing.T) {
	if IsSuccess(vk.ErrorDeviceLost) {
		t.Fatalf("expected ErrorDeviceLost to not be success")
	}
	if IsSuccess(vk.ErrorOutOfDate) {
		t.Fatalf("expected ErrorOutOfDate to not be success")
	}
}

func TestSafeStringAppendsNulOnce(t *testing.T) {
	got := SafeString("hello")
	if got != "hello\x00" {
		t.Fatalf("expected nul-terminated string, got %q", got)
	}
	if got2 := SafeString(got); got2 != got {
		t.Fatalf("expected already-terminated string to pass through unchanged, got %q", got2)
	}
}

func TestSafeStringsTerminatesEach(t *testing.T) {
	in := []string{"VK_KHR_surface", "VK_KHR_swapchain\x00"}
	out := SafeStrings(in)
	for _, s := range out {
		if len(s) == 0 || s[len(s)-1] != 0 {
			t.Fatalf("expected nul-terminated string, got %q", s)
		}
	}
}
