package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/basalt/core"
)

// Fence wraps a vk.Fence and the signaled bookkeeping the teacher's
// VulkanFence carries, renamed to drop the package-redundant Vulkan
// prefix.
type Fence struct {
	Handle     vk.Fence
	IsSignaled bool
}

func NewFence(ctx *Context, createSignaled bool) (*Fence, error) {
	fence := &Fence{IsSignaled: createSignaled}

	createInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	if createSignaled {
		createInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	createInfo.Deref()

	var handle vk.Fence
	if res := vk.CreateFence(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &handle); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to create fence: %s", ResultString(res, true))
	}
	fence.Handle = handle
	return fence, nil
}

func (f *Fence) Destroy(ctx *Context) {
	if f.Handle != nil {
		vk.DestroyFence(ctx.Device.LogicalDevice, f.Handle, ctx.Allocator)
		f.Handle = nil
	}
	f.IsSignaled = false
}

// Wait blocks until the fence signals or timeoutNs elapses, returning
// whether it signaled. A fence already marked signaled returns true
// immediately without a driver call.
func (f *Fence) Wait(ctx *Context, timeoutNs uint64) bool {
	if f.IsSignaled {
		return true
	}
	switch res := vk.WaitForFences(ctx.Device.LogicalDevice, 1, []vk.Fence{f.Handle}, vk.True, timeoutNs); res {
	case vk.Success:
		f.IsSignaled = true
		return true
	case vk.Timeout:
		core.LogWarn("fence wait timed out")
	default:
		core.LogError("fence wait failed: %s", ResultString(res, true))
	}
	return false
}

func (f *Fence) Reset(ctx *Context) error {
	if !f.IsSignaled {
		return nil
	}
	if res := vk.ResetFences(ctx.Device.LogicalDevice, 1, []vk.Fence{f.Handle}); !IsSuccess(res) {
		return fmt.Errorf("failed to reset fence: %s", ResultString(res, true))
	}
	f.IsSignaled = false
	return nil
}

// CreateSemaphore creates an unsignaled binary semaphore, used for both
// the image-available and queue-complete semaphore arrays.
func CreateSemaphore(ctx *Context) (vk.Semaphore, error) {
	createInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
	createInfo.Deref()

	var handle vk.Semaphore
	if res := vk.CreateSemaphore(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &handle); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to create semaphore: %s", ResultString(res, true))
	}
	return handle, nil
}

func DestroySemaphore(ctx *Context, sem vk.Semaphore) {
	if sem != nil {
		vk.DestroySemaphore(ctx.Device.LogicalDevice, sem, ctx.Allocator)
	}
}

// EnsureFrameSync allocates the per-frame-in-flight semaphores and
// fences on ctx, sized to MaxFramesInFlight, and the per-swapchain-
// image ImagesInFlight slice used to fence-guard images still in
// flight when a new frame wants to reuse their index. Called once
// after the first swapchain create and again on every swapchain
// recreate (imageCount can change across recreates).
func EnsureFrameSync(ctx *Context, swapchainImageCount uint32) error {
	ctx.ImageAvailableSemaphores = make([]vk.Semaphore, MaxFramesInFlight)
	ctx.QueueCompleteSemaphores = make([]vk.Semaphore, MaxFramesInFlight)
	ctx.InFlightFences = make([]*Fence, MaxFramesInFlight)

	for i := uint8(0); i < MaxFramesInFlight; i++ {
		sem, err := CreateSemaphore(ctx)
		if err != nil {
			return err
		}
		ctx.ImageAvailableSemaphores[i] = sem

		sem, err = CreateSemaphore(ctx)
		if err != nil {
			return err
		}
		ctx.QueueCompleteSemaphores[i] = sem

		fence, err := NewFence(ctx, true)
		if err != nil {
			return err
		}
		ctx.InFlightFences[i] = fence
	}

	ctx.ImagesInFlight = make([]*Fence, swapchainImageCount)
	return nil
}

func DestroyFrameSync(ctx *Context) {
	for i := range ctx.ImageAvailableSemaphores {
		DestroySemaphore(ctx, ctx.ImageAvailableSemaphores[i])
	}
	for i := range ctx.QueueCompleteSemaphores {
		DestroySemaphore(ctx, ctx.QueueCompleteSemaphores[i])
	}
	for _, fence := range ctx.InFlightFences {
		if fence != nil {
			fence.Destroy(ctx)
		}
	}
	ctx.ImageAvailableSemaphores = nil
	ctx.QueueCompleteSemaphores = nil
	ctx.InFlightFences = nil
	ctx.ImagesInFlight = nil
}
