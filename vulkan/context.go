package vulkan

import (
	vk "github.com/goki/vulkan"
)

// Context holds every device-independent Vulkan handle a window's
// render device needs: instance, surface, the command/sync objects
// shared across frames in flight. Trimmed from the teacher's
// VulkanContext of its 3D-engine fields (registered renderpass table,
// per-frame world render targets, loaded-geometry array) that this
// domain has no use for; what survives is instance/surface/device
// bookkeeping plus the per-frame command buffer and semaphore/fence
// arrays every Vulkan swapchain loop needs regardless of what it draws.
type Context struct {
	Instance  vk.Instance
	Allocator *vk.AllocationCallbacks
	Surface   vk.Surface

	FramebufferWidth  uint32
	FramebufferHeight uint32

	Device    *Device
	Swapchain *Swapchain

	GraphicsCommandPool vk.CommandPool
	CommandBuffers      []*CommandBuffer

	ImageAvailableSemaphores []vk.Semaphore
	QueueCompleteSemaphores  []vk.Semaphore
	InFlightFences           []*Fence
	ImagesInFlight           []*Fence

	ImageIndex   uint32
	CurrentFrame uint32

	RecreatingSwapchain bool
}

// FindMemoryIndex returns the index of a physical device memory type
// whose bits match typeFilter and whose property flags are a superset
// of propertyFlags, or -1 if none qualify.
func (c *Context) FindMemoryIndex(typeFilter uint32, propertyFlags vk.MemoryPropertyFlagBits) int32 {
	var memoryProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(c.Device.PhysicalDevice, &memoryProperties)
	memoryProperties.Deref()

	for i := uint32(0); i < memoryProperties.MemoryTypeCount; i++ {
		memoryProperties.MemoryTypes[i].Deref()
		if (typeFilter&(1<<i)) != 0 && (vk.MemoryPropertyFlagBits(memoryProperties.MemoryTypes[i].PropertyFlags)&propertyFlags) == propertyFlags {
			return int32(i)
		}
	}
	return -1
}
