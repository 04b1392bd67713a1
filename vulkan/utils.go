package vulkan

import (
	vk "github.com/goki/vulkan"
)

// ResultString renders a vk.Result as its symbolic name, or (with
// extended set) a short human description. Trimmed to the result codes
// this module's present/acquire/submit paths actually observe; the
// full VkResult enumeration carries many device-capability and
// extension-specific codes this 2D UI renderer never triggers.
func ResultString(result vk.Result, extended bool) string {
	switch result {
	case vk.Success:
		return conditional(!extended, "VK_SUCCESS", "command completed successfully")
	case vk.NotReady:
		return conditional(!extended, "VK_NOT_READY", "a fence or query has not yet completed")
	case vk.Timeout:
		return conditional(!extended, "VK_TIMEOUT", "a wait operation exceeded its timeout")
	case vk.Suboptimal:
		return conditional(!extended, "VK_SUBOPTIMAL_KHR", "the swapchain no longer matches the surface exactly but remains usable")
	case vk.ErrorOutOfHostMemory:
		return conditional(!extended, "VK_ERROR_OUT_OF_HOST_MEMORY", "a host memory allocation failed")
	case vk.ErrorOutOfDeviceMemory:
		return conditional(!extended, "VK_ERROR_OUT_OF_DEVICE_MEMORY", "a device memory allocation failed")
	case vk.ErrorDeviceLost:
		return conditional(!extended, "VK_ERROR_DEVICE_LOST", "the logical or physical device was lost")
	case vk.ErrorSurfaceLost:
		return conditional(!extended, "VK_ERROR_SURFACE_LOST_KHR", "the surface is no longer available")
	case vk.ErrorOutOfDate:
		return conditional(!extended, "VK_ERROR_OUT_OF_DATE_KHR", "the surface changed and the swapchain must be recreated")
	case vk.ErrorFormatNotSupported:
		return conditional(!extended, "VK_ERROR_FORMAT_NOT_SUPPORTED", "the requested format is not supported on this device")
	case vk.ErrorInitializationFailed:
		return conditional(!extended, "VK_ERROR_INITIALIZATION_FAILED", "initialization of an object failed for implementation-specific reasons")
	default:
		return conditional(!extended, "VK_ERROR_UNKNOWN", "an unrecognized result code was returned")
	}
}

// IsSuccess reports whether result is one of Vulkan's non-error
// success/status codes (including Suboptimal, which still presents).
func IsSuccess(result vk.Result) bool {
	switch result {
	case vk.Success, vk.NotReady, vk.Timeout, vk.EventSet, vk.EventReset, vk.Incomplete, vk.Suboptimal:
		return true
	default:
		return false
	}
}

func conditional(cond bool, a, b string) string {
	if cond {
		return a
	}
	return b
}

// SafeString null-terminates s for passing to a Vulkan C-string field,
// unless it already is.
func SafeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != 0 {
		return s + "\x00"
	}
	return s
}

func SafeStrings(list []string) []string {
	for i := range list {
		list[i] = SafeString(list[i])
	}
	return list
}
