package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/basalt/core"
	rendercontext "github.com/spaghettifunk/basalt/render/context"
)

// Swapchain wraps the presentable image chain. Dropped from the
// teacher's VulkanSwapchain: the depth attachment and framebuffer array
// (a 2D UI surface never depth-tests, and framebuffer objects belong to
// the task graph, not the swapchain, once dynamic rendering is used).
type Swapchain struct {
	ImageFormat vk.SurfaceFormat
	Handle      vk.Swapchain
	ImageCount  uint32
	Images      []vk.Image
	Views       []vk.ImageView
}

func SwapchainCreate(ctx *Context, width, height uint32, vsync bool) (*Swapchain, error) {
	return createSwapchain(ctx, width, height, vsync)
}

func (sc *Swapchain) Recreate(ctx *Context, width, height uint32, vsync bool) (*Swapchain, error) {
	sc.destroy(ctx)
	return createSwapchain(ctx, width, height, vsync)
}

func (sc *Swapchain) Destroy(ctx *Context) {
	sc.destroy(ctx)
}

// AcquireNextImageIndex signals imageAvailable (and optionally fence)
// once the next presentable image is ready. Returns ok=false when the
// swapchain is out of date; the caller (render/context.RenderContext)
// is responsible for recreating it and retrying, this function does
// not recreate itself so its caller stays in control of when that
// happens.
func (sc *Swapchain) AcquireNextImageIndex(ctx *Context, timeoutNs uint64, imageAvailable vk.Semaphore, fence vk.Fence) (uint32, bool, error) {
	var index uint32
	result := vk.AcquireNextImage(ctx.Device.LogicalDevice, sc.Handle, timeoutNs, imageAvailable, fence, &index)

	switch result {
	case vk.Success, vk.Suboptimal:
		return index, true, nil
	case vk.ErrorOutOfDate:
		return 0, false, nil
	default:
		return 0, false, fmt.Errorf("failed to acquire swapchain image: %s", ResultString(result, true))
	}
}

// Present returns presentImageIndex to the presentation engine. Returns
// outOfDate=true on ErrorOutOfDate/Suboptimal so the caller can trigger
// a recreate; any other non-success result is a hard error.
func (sc *Swapchain) Present(ctx *Context, presentQueue vk.Queue, renderComplete vk.Semaphore, presentImageIndex uint32) (outOfDate bool, err error) {
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderComplete},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.Handle},
		PImageIndices:      []uint32{presentImageIndex},
	}
	presentInfo.Deref()

	switch result := vk.QueuePresent(presentQueue, &presentInfo); result {
	case vk.Success:
		return false, nil
	case vk.ErrorOutOfDate, vk.Suboptimal:
		return true, nil
	default:
		return false, fmt.Errorf("failed to present swapchain image: %s", ResultString(result, true))
	}
}

func createSwapchain(ctx *Context, width, height uint32, vsync bool) (*Swapchain, error) {
	sc := &Swapchain{}
	support, err := querySwapchainSupport(ctx.Device.PhysicalDevice, ctx.Surface)
	if err != nil {
		return nil, err
	}
	ctx.Device.SwapchainSupport = support

	format := rendercontext.ChooseSurfaceFormat(surfaceFormatCandidates(support.Formats))
	sc.ImageFormat = vk.SurfaceFormat{Format: vk.Format(format.Format), ColorSpace: vk.ColorSpace(format.ColorSpace)}

	presentMode := rendercontext.ChoosePresentMode(presentModeCandidates(support.PresentModes), vsync)

	extent := vk.Extent2D{Width: width, Height: height}
	if support.Capabilities.CurrentExtent.Width != math.MaxUint32 {
		extent = support.Capabilities.CurrentExtent
	}
	min := support.Capabilities.MinImageExtent
	max := support.Capabilities.MaxImageExtent
	extent.Width = core.Clamp(extent.Width, min.Width, max.Width)
	extent.Height = core.Clamp(extent.Height, min.Height, max.Height)

	imageCount := support.Capabilities.MinImageCount + 1
	if support.Capabilities.MaxImageCount > 0 && imageCount > support.Capabilities.MaxImageCount {
		imageCount = support.Capabilities.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          ctx.Surface,
		MinImageCount:    imageCount,
		ImageFormat:      sc.ImageFormat.Format,
		ImageColorSpace:  sc.ImageFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit) | vk.ImageUsageFlags(vk.ImageUsageTransferDstBit),
		PreTransform:     support.Capabilities.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentMode(presentModeToVk(presentMode)),
		Clipped:          vk.True,
	}

	if ctx.Device.GraphicsQueueIndex != ctx.Device.PresentQueueIndex {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{ctx.Device.GraphicsQueueIndex, ctx.Device.PresentQueueIndex}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}
	createInfo.Deref()

	var handle vk.Swapchain
	if res := vk.CreateSwapchain(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &handle); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to create swapchain: %s", ResultString(res, true))
	}
	sc.Handle = handle
	ctx.CurrentFrame = 0

	if res := vk.GetSwapchainImages(ctx.Device.LogicalDevice, handle, &sc.ImageCount, nil); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to get swapchain image count: %s", ResultString(res, true))
	}
	sc.Images = make([]vk.Image, sc.ImageCount)
	if res := vk.GetSwapchainImages(ctx.Device.LogicalDevice, handle, &sc.ImageCount, sc.Images); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to get swapchain images: %s", ResultString(res, true))
	}

	sc.Views = make([]vk.ImageView, sc.ImageCount)
	for i := uint32(0); i < sc.ImageCount; i++ {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    sc.Images[i],
			ViewType: vk.ImageViewType2d,
			Format:   sc.ImageFormat.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
		}
		viewInfo.Deref()
		if res := vk.CreateImageView(ctx.Device.LogicalDevice, &viewInfo, ctx.Allocator, &sc.Views[i]); !IsSuccess(res) {
			return nil, fmt.Errorf("failed to create swapchain image view: %s", ResultString(res, true))
		}
	}

	ctx.FramebufferWidth = extent.Width
	ctx.FramebufferHeight = extent.Height

	core.LogInfo("swapchain created (%dx%d, %d images)", extent.Width, extent.Height, sc.ImageCount)
	return sc, nil
}

func (sc *Swapchain) destroy(ctx *Context) {
	vk.DeviceWaitIdle(ctx.Device.LogicalDevice)
	for i := uint32(0); i < sc.ImageCount; i++ {
		vk.DestroyImageView(ctx.Device.LogicalDevice, sc.Views[i], ctx.Allocator)
	}
	if sc.Handle != nil {
		vk.DestroySwapchain(ctx.Device.LogicalDevice, sc.Handle, ctx.Allocator)
	}
}

func surfaceFormatCandidates(formats []vk.SurfaceFormat) []rendercontext.SurfaceFormat {
	out := make([]rendercontext.SurfaceFormat, len(formats))
	for i, f := range formats {
		bits, srgb := formatBitsAndSRGB(f.Format)
		out[i] = rendercontext.SurfaceFormat{
			Format:         uint32(f.Format),
			ColorSpace:     uint32(f.ColorSpace),
			BitsPerChannel: bits,
			SRGB:           srgb,
		}
	}
	return out
}

func formatBitsAndSRGB(f vk.Format) (bits uint8, srgb bool) {
	switch f {
	case vk.FormatB8g8r8a8Srgb, vk.FormatR8g8b8a8Srgb:
		return 8, true
	case vk.FormatB8g8r8a8Unorm, vk.FormatR8g8b8a8Unorm:
		return 8, false
	case vk.FormatA2b10g10r10UnormPack32:
		return 10, false
	default:
		return 8, false
	}
}

func presentModeCandidates(modes []vk.PresentMode) []rendercontext.PresentMode {
	out := make([]rendercontext.PresentMode, 0, len(modes))
	for _, m := range modes {
		if pm, ok := presentModeFromVk(m); ok {
			out = append(out, pm)
		}
	}
	return out
}

func presentModeFromVk(m vk.PresentMode) (rendercontext.PresentMode, bool) {
	switch m {
	case vk.PresentModeFifo:
		return rendercontext.PresentModeFifo, true
	case vk.PresentModeFifoRelaxed:
		return rendercontext.PresentModeFifoRelaxed, true
	case vk.PresentModeMailbox:
		return rendercontext.PresentModeMailbox, true
	case vk.PresentModeImmediate:
		return rendercontext.PresentModeImmediate, true
	default:
		return 0, false
	}
}

func presentModeToVk(pm rendercontext.PresentMode) vk.PresentMode {
	switch pm {
	case rendercontext.PresentModeFifoRelaxed:
		return vk.PresentModeFifoRelaxed
	case rendercontext.PresentModeMailbox:
		return vk.PresentModeMailbox
	case rendercontext.PresentModeImmediate:
		return vk.PresentModeImmediate
	default:
		return vk.PresentModeFifo
	}
}

