package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	rendercontext "github.com/spaghettifunk/basalt/render/context"
)

// Image is a GPU image plus its backing memory and default view.
// Adapted from the teacher's VulkanImage, dropped to a single mip
// level (the shelf atlases and dedicated images this module allocates
// are blitted and sampled at native resolution, never minified) and a
// fixed 2D image type.
type Image struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Width  uint32
	Height uint32
	Format vk.Format
}

// ImageCreate allocates a 2D image with the given usage/format and
// binds device-local memory to it, optionally creating a matching
// image view.
func ImageCreate(ctx *Context, width, height uint32, format vk.Format, usage vk.ImageUsageFlags, createView bool, aspect vk.ImageAspectFlags) (*Image, error) {
	img := &Image{Width: width, Height: height, Format: format}

	createInfo := vk.ImageCreateInfo{
		SType:         vk.StructureTypeImageCreateInfo,
		ImageType:     vk.ImageType2d,
		Extent:        vk.Extent3D{Width: width, Height: height, Depth: 1},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		Samples:       vk.SampleCount1Bit,
		SharingMode:   vk.SharingModeExclusive,
	}
	createInfo.Deref()

	if res := vk.CreateImage(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &img.Handle); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to create image: %s", ResultString(res, true))
	}

	var requirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(ctx.Device.LogicalDevice, img.Handle, &requirements)
	requirements.Deref()

	memoryType := ctx.FindMemoryIndex(requirements.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if memoryType == -1 {
		return nil, fmt.Errorf("no device-local memory type fits this image")
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	if res := vk.AllocateMemory(ctx.Device.LogicalDevice, &allocInfo, ctx.Allocator, &img.Memory); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to allocate image memory: %s", ResultString(res, true))
	}
	if res := vk.BindImageMemory(ctx.Device.LogicalDevice, img.Handle, img.Memory, 0); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to bind image memory: %s", ResultString(res, true))
	}

	if createView {
		if err := img.CreateView(ctx, aspect); err != nil {
			return nil, err
		}
	}
	return img, nil
}

func (img *Image) CreateView(ctx *Context, aspect vk.ImageAspectFlags) error {
	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.Handle,
		ViewType: vk.ImageViewType2d,
		Format:   img.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	viewInfo.Deref()

	if res := vk.CreateImageView(ctx.Device.LogicalDevice, &viewInfo, ctx.Allocator, &img.View); !IsSuccess(res) {
		return fmt.Errorf("failed to create image view: %s", ResultString(res, true))
	}
	return nil
}

func (img *Image) Destroy(ctx *Context) {
	if img.View != nil {
		vk.DestroyImageView(ctx.Device.LogicalDevice, img.View, ctx.Allocator)
		img.View = nil
	}
	if img.Memory != nil {
		vk.FreeMemory(ctx.Device.LogicalDevice, img.Memory, ctx.Allocator)
		img.Memory = nil
	}
	if img.Handle != nil {
		vk.DestroyImage(ctx.Device.LogicalDevice, img.Handle, ctx.Allocator)
		img.Handle = nil
	}
}

// InternalFormatCandidates returns the fixed-order list of internal
// image formats spec.md §4.F says to try, each paired with the format
// features the physical device reports for it, ready for
// rendercontext.ChooseInternalFormat.
func InternalFormatCandidates(ctx *Context) []rendercontext.InternalFormatCandidate {
	candidates := []vk.Format{vk.FormatR8g8b8a8Unorm, vk.FormatB8g8r8a8Unorm, vk.FormatR8g8b8a8Srgb}
	out := make([]rendercontext.InternalFormatCandidate, 0, len(candidates))
	for _, f := range candidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(ctx.Device.PhysicalDevice, f, &props)
		props.Deref()
		out = append(out, rendercontext.InternalFormatCandidate{
			Format:   uint32(f),
			Features: formatFeaturesOf(vk.FormatFeatureFlagBits(props.OptimalTilingFeatures)),
		})
	}
	return out
}

func formatFeaturesOf(flags vk.FormatFeatureFlagBits) rendercontext.FormatFeature {
	var out rendercontext.FormatFeature
	if flags&vk.FormatFeatureTransferDstBit != 0 {
		out |= rendercontext.FeatureTransferDst
	}
	if flags&vk.FormatFeatureTransferSrcBit != 0 {
		out |= rendercontext.FeatureTransferSrc
	}
	if flags&vk.FormatFeatureSampledImageBit != 0 {
		out |= rendercontext.FeatureSampledImage
	}
	if flags&vk.FormatFeatureSampledImageFilterLinearBit != 0 {
		out |= rendercontext.FeatureSampledImageFilterLinear
	}
	return out
}
