package vulkan

import (
	"fmt"
	"unsafe"

	"github.com/google/uuid"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/basalt/bin"
	"github.com/spaghettifunk/basalt/core"
	rendercontext "github.com/spaghettifunk/basalt/render/context"
)

// TaskGraph is the compiled render pipeline for one of the two shapes
// spec.md §4.F describes. Collapses the teacher's renderpass.go,
// pipeline.go, framebuffer.go and descriptor.go into one object: this
// module targets VK_KHR_dynamic_rendering (enabled unconditionally in
// device.go), so there is no VkRenderPass or VkFramebuffer to own —
// CmdBeginRendering takes image views directly, leaving only the
// pipeline(s) and the bindless-image descriptor set as persistent
// state.
type TaskGraph struct {
	Shape rendercontext.TaskGraphShape

	// generation names this compile for log correlation, the same way
	// the teacher names anonymous transient render targets with a
	// fresh uuid rather than a caller-supplied one.
	generation string

	uiPipeline        *Pipeline
	compositePipeline *Pipeline

	descriptorSetLayout vk.DescriptorSetLayout
	descriptorPool      vk.DescriptorPool
	descriptorSets      []vk.DescriptorSet
	sampler             vk.Sampler
	imageCapacity       uint32

	compositeSetLayout vk.DescriptorSetLayout
	compositePool      vk.DescriptorPool
	compositeSet       vk.DescriptorSet
	compositeSampler   vk.Sampler

	msaaLevel uint8
	msaaColor *Image

	userColor *Image
	itfColor  *Image
}

type Pipeline struct {
	Handle vk.Pipeline
	Layout vk.PipelineLayout
}

func (p *Pipeline) Bind(cmd *CommandBuffer) {
	vk.CmdBindPipeline(cmd.Handle, vk.PipelineBindPointGraphics, p.Handle)
}

func (p *Pipeline) destroy(ctx *Context) {
	if p == nil {
		return
	}
	if p.Handle != nil {
		vk.DestroyPipeline(ctx.Device.LogicalDevice, p.Handle, ctx.Allocator)
	}
	if p.Layout != nil {
		vk.DestroyPipelineLayout(ctx.Device.LogicalDevice, p.Layout, ctx.Allocator)
	}
}

// ShaderSet bundles the compiled SPIR-V bytecode this module's
// pipelines need. The UI pair is always required; Composite is only
// read for the UI+user shape.
type ShaderSet struct {
	UIVert, UIFrag             []byte
	CompositeVert, CompositeFrag []byte
}

// CompileTaskGraph builds the pipelines and bindless descriptor set for
// shape, sized to imageCapacity bound images and sampling at msaaLevel
// samples per pixel (1 disables multisampling). Extent is the current
// swapchain/framebuffer size, used to size the MSAA and UI+user
// intermediate color targets.
func CompileTaskGraph(ctx *Context, shape rendercontext.TaskGraphShape, msaaLevel uint8, imageCapacity uint32, extent vk.Extent2D, shaders ShaderSet) (*TaskGraph, error) {
	tg := &TaskGraph{Shape: shape, msaaLevel: msaaLevel, imageCapacity: imageCapacity, generation: uuid.New().String()}

	if err := tg.createDescriptorSet(ctx, imageCapacity); err != nil {
		return nil, err
	}

	samples := sampleCountOf(msaaLevel)

	uiPipeline, err := tg.buildUIPipeline(ctx, samples, shaders.UIVert, shaders.UIFrag)
	if err != nil {
		tg.Destroy(ctx)
		return nil, err
	}
	tg.uiPipeline = uiPipeline

	if msaaLevel >= 2 {
		msaaColor, err := ImageCreate(ctx, extent.Width, extent.Height, vk.FormatB8g8r8a8Unorm,
			vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)|vk.ImageUsageFlags(vk.ImageUsageTransientAttachmentBit),
			false, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			tg.Destroy(ctx)
			return nil, fmt.Errorf("failed to create MSAA color target: %w", err)
		}
		tg.msaaColor = msaaColor
	}

	if shape == rendercontext.ShapeUIPlusUser {
		userColor, err := ImageCreate(ctx, extent.Width, extent.Height, vk.FormatB8g8r8a8Unorm,
			vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)|vk.ImageUsageFlags(vk.ImageUsageInputAttachmentBit)|vk.ImageUsageFlags(vk.ImageUsageSampledBit),
			true, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			tg.Destroy(ctx)
			return nil, fmt.Errorf("failed to create user-color attachment: %w", err)
		}
		tg.userColor = userColor

		itfColor, err := ImageCreate(ctx, extent.Width, extent.Height, vk.FormatB8g8r8a8Unorm,
			vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit)|vk.ImageUsageFlags(vk.ImageUsageInputAttachmentBit)|vk.ImageUsageFlags(vk.ImageUsageSampledBit),
			true, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			tg.Destroy(ctx)
			return nil, fmt.Errorf("failed to create itf-color attachment: %w", err)
		}
		tg.itfColor = itfColor

		compositePipeline, err := tg.buildCompositePipeline(ctx, shaders.CompositeVert, shaders.CompositeFrag)
		if err != nil {
			tg.Destroy(ctx)
			return nil, err
		}
		tg.compositePipeline = compositePipeline
	}

	core.LogInfo("task graph compiled (generation=%s shape=%d msaa=%d images=%d)", tg.generation, shape, msaaLevel, imageCapacity)
	return tg, nil
}

func (tg *TaskGraph) Destroy(ctx *Context) {
	tg.uiPipeline.destroy(ctx)
	tg.compositePipeline.destroy(ctx)
	if tg.msaaColor != nil {
		tg.msaaColor.Destroy(ctx)
	}
	if tg.userColor != nil {
		tg.userColor.Destroy(ctx)
	}
	if tg.itfColor != nil {
		tg.itfColor.Destroy(ctx)
	}
	if tg.descriptorPool != nil {
		vk.DestroyDescriptorPool(ctx.Device.LogicalDevice, tg.descriptorPool, ctx.Allocator)
	}
	if tg.descriptorSetLayout != nil {
		vk.DestroyDescriptorSetLayout(ctx.Device.LogicalDevice, tg.descriptorSetLayout, ctx.Allocator)
	}
	if tg.sampler != nil {
		vk.DestroySampler(ctx.Device.LogicalDevice, tg.sampler, ctx.Allocator)
	}
	if tg.compositePool != nil {
		vk.DestroyDescriptorPool(ctx.Device.LogicalDevice, tg.compositePool, ctx.Allocator)
	}
	if tg.compositeSetLayout != nil {
		vk.DestroyDescriptorSetLayout(ctx.Device.LogicalDevice, tg.compositeSetLayout, ctx.Allocator)
	}
	if tg.compositeSampler != nil {
		vk.DestroySampler(ctx.Device.LogicalDevice, tg.compositeSampler, ctx.Allocator)
	}
}

// UserRenderFunc records the host application's own draw commands into
// the user-color attachment. It is the "user renderer" spec.md's
// Non-goals section refers to as injecting work beyond this module's
// own compute/graphics shaders: this module owns the attachment and
// the render node boundary, the host owns everything recorded inside
// it.
type UserRenderFunc func(cmd *CommandBuffer)

// Execute records the task graph's draw commands for one frame into
// cmd, which Backend.Execute then submits: one render node for the UI-only shape, or user-node +
// UI-node + composite-node for the UI+user shape. vertexBuffer holds
// the full frame's Vertex records in spec.md Vertex layout order,
// drawCount is the number of vertices to draw, bound images is the
// current set of sampled image views to install at descriptor set
// index 0. userRender is ignored for the UI-only shape.
func (tg *TaskGraph) Execute(ctx *Context, cmd *CommandBuffer, targetView vk.ImageView, extent vk.Extent2D, vertexBuffer *Buffer, drawCount uint32, images []vk.ImageView, userRender UserRenderFunc) error {
	if err := tg.updateDescriptorSet(ctx, images); err != nil {
		return err
	}

	viewport := vk.Viewport{Width: float32(extent.Width), Height: float32(extent.Height), MinDepth: 0, MaxDepth: 1}
	scissor := vk.Rect2D{Extent: extent}
	vk.CmdSetViewport(cmd.Handle, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(cmd.Handle, 0, 1, []vk.Rect2D{scissor})

	if tg.Shape == rendercontext.ShapeUIOnly {
		tg.beginRendering(cmd, targetView, extent, true)
		tg.drawUI(cmd, vertexBuffer, drawCount)
		vk.CmdEndRendering(cmd.Handle)
		return nil
	}

	tg.beginRendering(cmd, tg.userColor.View, extent, true)
	if userRender != nil {
		userRender(cmd)
	}
	vk.CmdEndRendering(cmd.Handle)

	tg.beginRendering(cmd, tg.itfColor.View, extent, true)
	tg.drawUI(cmd, vertexBuffer, drawCount)
	vk.CmdEndRendering(cmd.Handle)

	tg.beginRendering(cmd, targetView, extent, false)
	if err := tg.updateCompositeDescriptorSet(ctx); err != nil {
		return err
	}
	tg.compositePipeline.Bind(cmd)
	vk.CmdBindDescriptorSets(cmd.Handle, vk.PipelineBindPointGraphics, tg.compositePipeline.Layout, 0, 1, []vk.DescriptorSet{tg.compositeSet}, 0, nil)
	vk.CmdDraw(cmd.Handle, 3, 1, 0, 0)
	vk.CmdEndRendering(cmd.Handle)

	return nil
}

func (tg *TaskGraph) drawUI(cmd *CommandBuffer, vertexBuffer *Buffer, drawCount uint32) {
	tg.uiPipeline.Bind(cmd)
	vk.CmdBindDescriptorSets(cmd.Handle, vk.PipelineBindPointGraphics, tg.uiPipeline.Layout, 0, 1, tg.descriptorSets, 0, nil)
	vk.CmdBindVertexBuffers(cmd.Handle, 0, 1, []vk.Buffer{vertexBuffer.Handle}, []vk.DeviceSize{0})
	vk.CmdDraw(cmd.Handle, drawCount, 1, 0, 0)
}

func (tg *TaskGraph) beginRendering(cmd *CommandBuffer, target vk.ImageView, extent vk.Extent2D, clear bool) {
	loadOp := vk.AttachmentLoadOpLoad
	if clear {
		loadOp = vk.AttachmentLoadOpClear
	}
	colorAttachment := vk.RenderingAttachmentInfo{
		SType:       vk.StructureTypeRenderingAttachmentInfo,
		ImageView:   target,
		ImageLayout: vk.ImageLayoutColorAttachmentOptimal,
		LoadOp:      loadOp,
		StoreOp:     vk.AttachmentStoreOpStore,
	}
	colorAttachment.ClearValue.SetColor([]float32{0, 0, 0, 0})
	colorAttachment.Deref()

	renderingInfo := vk.RenderingInfo{
		SType:                vk.StructureTypeRenderingInfo,
		RenderArea:           vk.Rect2D{Extent: extent},
		LayerCount:           1,
		ColorAttachmentCount: 1,
		PColorAttachments:    []vk.RenderingAttachmentInfo{colorAttachment},
	}
	renderingInfo.Deref()

	vk.CmdBeginRendering(cmd.Handle, &renderingInfo)
}

func sampleCountOf(msaaLevel uint8) vk.SampleCountFlagBits {
	switch msaaLevel {
	case 2:
		return vk.SampleCount2Bit
	case 4:
		return vk.SampleCount4Bit
	case 8:
		return vk.SampleCount8Bit
	default:
		return vk.SampleCount1Bit
	}
}

func (tg *TaskGraph) createDescriptorSet(ctx *Context, imageCapacity uint32) error {
	samplerInfo := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               vk.FilterLinear,
		MinFilter:               vk.FilterLinear,
		AddressModeU:            vk.SamplerAddressModeClampToBorder,
		AddressModeV:            vk.SamplerAddressModeClampToBorder,
		AddressModeW:            vk.SamplerAddressModeClampToBorder,
		BorderColor:             vk.BorderColorFloatTransparentBlack,
		UnnormalizedCoordinates: vk.True,
	}
	samplerInfo.Deref()
	if res := vk.CreateSampler(ctx.Device.LogicalDevice, &samplerInfo, ctx.Allocator, &tg.sampler); !IsSuccess(res) {
		return fmt.Errorf("failed to create UI sampler: %s", ResultString(res, true))
	}

	bindings := []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeSampler, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit), PImmutableSamplers: []vk.Sampler{tg.sampler}},
		{Binding: 1, DescriptorType: vk.DescriptorTypeSampledImage, DescriptorCount: imageCapacity, StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit)},
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	layoutInfo.Deref()
	if res := vk.CreateDescriptorSetLayout(ctx.Device.LogicalDevice, &layoutInfo, ctx.Allocator, &tg.descriptorSetLayout); !IsSuccess(res) {
		return fmt.Errorf("failed to create descriptor set layout: %s", ResultString(res, true))
	}

	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeSampler, DescriptorCount: 1},
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: imageCapacity},
	}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       1,
	}
	poolInfo.Deref()
	if res := vk.CreateDescriptorPool(ctx.Device.LogicalDevice, &poolInfo, ctx.Allocator, &tg.descriptorPool); !IsSuccess(res) {
		return fmt.Errorf("failed to create descriptor pool: %s", ResultString(res, true))
	}

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     tg.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{tg.descriptorSetLayout},
	}
	sets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(ctx.Device.LogicalDevice, &allocInfo, sets); !IsSuccess(res) {
		return fmt.Errorf("failed to allocate descriptor set: %s", ResultString(res, true))
	}
	tg.descriptorSets = sets
	return nil
}

// updateDescriptorSet rewrites the bound-image array binding every
// frame (rebuilt on every update per spec.md §5's descriptor-set
// policy) so tex_i indices stay valid for the current backing layout.
func (tg *TaskGraph) updateDescriptorSet(ctx *Context, images []vk.ImageView) error {
	if len(images) == 0 {
		return nil
	}
	if uint32(len(images)) > tg.imageCapacity {
		return fmt.Errorf("bound image count %d exceeds descriptor capacity %d", len(images), tg.imageCapacity)
	}
	imageInfos := make([]vk.DescriptorImageInfo, len(images))
	for i, v := range images {
		imageInfos[i] = vk.DescriptorImageInfo{ImageView: v, ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal}
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          tg.descriptorSets[0],
		DstBinding:      1,
		DescriptorCount: uint32(len(imageInfos)),
		DescriptorType:  vk.DescriptorTypeSampledImage,
		PImageInfo:      imageInfos,
	}
	write.Deref()
	vk.UpdateDescriptorSets(ctx.Device.LogicalDevice, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return nil
}

func (tg *TaskGraph) buildUIPipeline(ctx *Context, samples vk.SampleCountFlagBits, vertSPV, fragSPV []byte) (*Pipeline, error) {
	vertModule, err := createShaderModule(ctx, vertSPV)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(ctx.Device.LogicalDevice, vertModule, ctx.Allocator)
	fragModule, err := createShaderModule(ctx, fragSPV)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(ctx.Device.LogicalDevice, fragModule, ctx.Allocator)

	stages := []vk.PipelineShaderStageCreateInfo{
		shaderStage(vk.ShaderStageVertexBit, vertModule),
		shaderStage(vk.ShaderStageFragmentBit, fragModule),
	}

	attributes := uiVertexAttributes()
	return buildPipeline(ctx, stages, attributes, uint32(unsafe.Sizeof(bin.Vertex{})), samples, true, []vk.DescriptorSetLayout{tg.descriptorSetLayout})
}

// buildCompositePipeline builds the fullscreen-triangle pipeline that
// reads the user-color and itf-color attachments as combined image
// samplers and alpha-composites itf-color atop user-color into the
// swapchain image. No vertex buffer is bound; the vertex shader
// generates a fullscreen triangle from gl_VertexIndex.
func (tg *TaskGraph) buildCompositePipeline(ctx *Context, vertSPV, fragSPV []byte) (*Pipeline, error) {
	samplerInfo := vk.SamplerCreateInfo{
		SType:     vk.StructureTypeSamplerCreateInfo,
		MagFilter: vk.FilterNearest,
		MinFilter: vk.FilterNearest,
	}
	samplerInfo.Deref()
	if res := vk.CreateSampler(ctx.Device.LogicalDevice, &samplerInfo, ctx.Allocator, &tg.compositeSampler); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to create composite sampler: %s", ResultString(res, true))
	}

	bindings := []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit)},
		{Binding: 1, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit)},
	}
	layoutInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	layoutInfo.Deref()
	if res := vk.CreateDescriptorSetLayout(ctx.Device.LogicalDevice, &layoutInfo, ctx.Allocator, &tg.compositeSetLayout); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to create composite descriptor set layout: %s", ResultString(res, true))
	}

	poolSizes := []vk.DescriptorPoolSize{{Type: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 2}}
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
		MaxSets:       1,
	}
	poolInfo.Deref()
	if res := vk.CreateDescriptorPool(ctx.Device.LogicalDevice, &poolInfo, ctx.Allocator, &tg.compositePool); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to create composite descriptor pool: %s", ResultString(res, true))
	}

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     tg.compositePool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{tg.compositeSetLayout},
	}
	sets := make([]vk.DescriptorSet, 1)
	if res := vk.AllocateDescriptorSets(ctx.Device.LogicalDevice, &allocInfo, sets); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to allocate composite descriptor set: %s", ResultString(res, true))
	}
	tg.compositeSet = sets[0]

	vertModule, err := createShaderModule(ctx, vertSPV)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(ctx.Device.LogicalDevice, vertModule, ctx.Allocator)
	fragModule, err := createShaderModule(ctx, fragSPV)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyShaderModule(ctx.Device.LogicalDevice, fragModule, ctx.Allocator)

	stages := []vk.PipelineShaderStageCreateInfo{
		shaderStage(vk.ShaderStageVertexBit, vertModule),
		shaderStage(vk.ShaderStageFragmentBit, fragModule),
	}

	return buildPipeline(ctx, stages, nil, 0, vk.SampleCount1Bit, true, []vk.DescriptorSetLayout{tg.compositeSetLayout})
}

func (tg *TaskGraph) updateCompositeDescriptorSet(ctx *Context) error {
	writes := []vk.WriteDescriptorSet{
		{
			SType: vk.StructureTypeWriteDescriptorSet, DstSet: tg.compositeSet, DstBinding: 0, DescriptorCount: 1,
			DescriptorType: vk.DescriptorTypeCombinedImageSampler,
			PImageInfo:     []vk.DescriptorImageInfo{{Sampler: tg.compositeSampler, ImageView: tg.userColor.View, ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal}},
		},
		{
			SType: vk.StructureTypeWriteDescriptorSet, DstSet: tg.compositeSet, DstBinding: 1, DescriptorCount: 1,
			DescriptorType: vk.DescriptorTypeCombinedImageSampler,
			PImageInfo:     []vk.DescriptorImageInfo{{Sampler: tg.compositeSampler, ImageView: tg.itfColor.View, ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal}},
		},
	}
	for i := range writes {
		writes[i].Deref()
	}
	vk.UpdateDescriptorSets(ctx.Device.LogicalDevice, uint32(len(writes)), writes, 0, nil)
	return nil
}

func uiVertexAttributes() []vk.VertexInputAttributeDescription {
	var v bin.Vertex
	return []vk.VertexInputAttributeDescription{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: uint32(unsafe.Offsetof(v.Position))},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: uint32(unsafe.Offsetof(v.Coords))},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32b32a32Sfloat, Offset: uint32(unsafe.Offsetof(v.Color))},
		{Location: 3, Binding: 0, Format: vk.FormatR32Uint, Offset: uint32(unsafe.Offsetof(v.Ty))},
		{Location: 4, Binding: 0, Format: vk.FormatR32Uint, Offset: uint32(unsafe.Offsetof(v.TexI))},
	}
}

func createShaderModule(ctx *Context, code []byte) (vk.ShaderModule, error) {
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}
	createInfo.Deref()

	var module vk.ShaderModule
	if res := vk.CreateShaderModule(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &module); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to create shader module: %s", ResultString(res, true))
	}
	return module, nil
}

func sliceUint32(b []byte) []uint32 {
	if len(b) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&b[0])), len(b)/4)
}

func shaderStage(stage vk.ShaderStageFlagBits, module vk.ShaderModule) vk.PipelineShaderStageCreateInfo {
	s := vk.PipelineShaderStageCreateInfo{
		SType:  vk.StructureTypePipelineShaderStageCreateInfo,
		Stage:  stage,
		Module: module,
		PName:  SafeString("main"),
	}
	s.Deref()
	return s
}

func buildPipeline(ctx *Context, stages []vk.PipelineShaderStageCreateInfo, attributes []vk.VertexInputAttributeDescription, stride uint32, samples vk.SampleCountFlagBits, alphaBlend bool, setLayouts []vk.DescriptorSetLayout) (*Pipeline, error) {
	pipeline := &Pipeline{}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                         vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vk.VertexInputBindingDescription{
			{Binding: 0, Stride: stride, InputRate: vk.VertexInputRateVertex},
		},
		VertexAttributeDescriptionCount: uint32(len(attributes)),
		PVertexAttributeDescriptions:    attributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	rasterizer := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeNone),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1.0,
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: samples,
		MinSampleShading:     1.0,
	}

	blendAttachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit) | vk.ColorComponentFlags(vk.ColorComponentGBit) |
			vk.ColorComponentFlags(vk.ColorComponentBBit) | vk.ColorComponentFlags(vk.ColorComponentABit),
	}
	if alphaBlend {
		blendAttachment.BlendEnable = vk.True
		blendAttachment.SrcColorBlendFactor = vk.BlendFactorSrcAlpha
		blendAttachment.DstColorBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		blendAttachment.ColorBlendOp = vk.BlendOpAdd
		blendAttachment.SrcAlphaBlendFactor = vk.BlendFactorSrcAlpha
		blendAttachment.DstAlphaBlendFactor = vk.BlendFactorOneMinusSrcAlpha
		blendAttachment.AlphaBlendOp = vk.BlendOpAdd
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{blendAttachment},
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamicState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:          vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount: uint32(len(setLayouts)),
		PSetLayouts:    setLayouts,
	}
	layoutInfo.Deref()
	if res := vk.CreatePipelineLayout(ctx.Device.LogicalDevice, &layoutInfo, ctx.Allocator, &pipeline.Layout); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to create pipeline layout: %s", ResultString(res, true))
	}

	colorFormats := []vk.Format{vk.FormatB8g8r8a8Unorm}
	renderingCreateInfo := vk.PipelineRenderingCreateInfo{
		SType:                   vk.StructureTypePipelineRenderingCreateInfo,
		ColorAttachmentCount:    uint32(len(colorFormats)),
		PColorAttachmentFormats: colorFormats,
	}
	renderingCreateInfo.Deref()

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &rasterizer,
		PMultisampleState:   &multisample,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamicState,
		Layout:              pipeline.Layout,
		PNext:               unsafe.Pointer(&renderingCreateInfo),
		BasePipelineIndex:   -1,
	}

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(ctx.Device.LogicalDevice, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{createInfo}, ctx.Allocator, pipelines); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to create graphics pipeline: %s", ResultString(res, true))
	}
	pipeline.Handle = pipelines[0]
	return pipeline, nil
}
