package vulkan

import (
	"fmt"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/basalt/core"
	"github.com/spaghettifunk/basalt/render"
	rendercontext "github.com/spaghettifunk/basalt/render/context"
	"github.com/spaghettifunk/basalt/render/worker"
)

// Backend ties Context/Swapchain/TaskGraph/Buffer/Image together into
// the single object render/context.RenderContext drives through the
// Device seam. Named Backend rather than Device to avoid colliding
// with this package's own Device type (the physical/logical device
// pair device.go wraps).
type Backend struct {
	ctx    *Context
	window WindowSurface

	shaders       ShaderSet
	imageCapacity uint32

	taskGraph  *TaskGraph
	vsync      bool
	msaaLevel  uint8
	shape      rendercontext.TaskGraphShape
	userRender UserRenderFunc

	mu      sync.Mutex
	buffers map[worker.GPUBufferID]*Buffer
	images  map[worker.GPUImageID]*Image
	nextID  uint64

	pending *render.UpdateEvent
}

// WindowSurface is the platform-specific seam a host window
// implementation satisfies to hand this backend a Vulkan surface and
// framebuffer extent; the window package implements it.
type WindowSurface interface {
	// VulkanLoader returns the platform's vkGetInstanceProcAddr, which
	// must be wired into the goki/vulkan bindings before any other vk
	// call is made.
	VulkanLoader() unsafe.Pointer
	CreateSurface(instance vk.Instance) (vk.Surface, error)
	FramebufferExtent() (width, height uint32)
	// RequiredInstanceExtensions returns the platform surface
	// extension (e.g. VK_KHR_wayland_surface, VK_KHR_win32_surface)
	// the instance must enable alongside VK_KHR_surface.
	RequiredInstanceExtensions() []string
}

// NewBackend creates the Vulkan instance, surface and device, ready
// for RecreateSwapchain/RecreateTaskGraph to be called by the owning
// RenderContext.
func NewBackend(window WindowSurface, shaders ShaderSet, imageCapacity uint32, shape rendercontext.TaskGraphShape, userRender UserRenderFunc) (*Backend, error) {
	vk.SetGetInstanceProcAddr(window.VulkanLoader())
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize vulkan loader: %w", err)
	}

	instance, err := createInstance(window.RequiredInstanceExtensions())
	if err != nil {
		return nil, err
	}

	ctx := &Context{Instance: instance}

	surface, err := window.CreateSurface(instance)
	if err != nil {
		vk.DestroyInstance(instance, nil)
		return nil, fmt.Errorf("failed to create window surface: %w", err)
	}
	ctx.Surface = surface

	if err := DeviceCreate(ctx); err != nil {
		vk.DestroySurface(instance, surface, nil)
		vk.DestroyInstance(instance, nil)
		return nil, err
	}

	width, height := window.FramebufferExtent()
	ctx.FramebufferWidth, ctx.FramebufferHeight = width, height

	return &Backend{
		ctx:           ctx,
		window:        window,
		shaders:       shaders,
		imageCapacity: imageCapacity,
		shape:         shape,
		userRender:    userRender,
		buffers:       make(map[worker.GPUBufferID]*Buffer),
		images:        make(map[worker.GPUImageID]*Image),
	}, nil
}

func createInstance(platformExtensions []string) (vk.Instance, error) {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   SafeString("basalt"),
		PEngineName:        SafeString("basalt"),
	}

	extensions := append([]string{vk.KhrSurfaceExtensionName}, platformExtensions...)
	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: SafeStrings(extensions),
	}
	createInfo.Deref()

	var instance vk.Instance
	if res := vk.CreateInstance(&createInfo, nil, &instance); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to create Vulkan instance: %s", ResultString(res, true))
	}
	if err := vk.InitInstance(instance); err != nil {
		return nil, fmt.Errorf("failed to initialize Vulkan instance function pointers: %w", err)
	}
	return instance, nil
}

func (b *Backend) RecreateSwapchain(vsync bool) error {
	b.vsync = vsync
	width, height := b.window.FramebufferExtent()

	var err error
	if b.ctx.Swapchain == nil {
		b.ctx.Swapchain, err = SwapchainCreate(b.ctx, width, height, vsync)
	} else {
		b.ctx.Swapchain, err = b.ctx.Swapchain.Recreate(b.ctx, width, height, vsync)
	}
	if err != nil {
		return err
	}

	if err := EnsureFrameSync(b.ctx, b.ctx.Swapchain.ImageCount); err != nil {
		return err
	}

	b.ctx.CommandBuffers = make([]*CommandBuffer, b.ctx.Swapchain.ImageCount)
	for i := range b.ctx.CommandBuffers {
		cb, err := AllocateCommandBuffer(b.ctx, b.ctx.Device.GraphicsCommandPool)
		if err != nil {
			return err
		}
		b.ctx.CommandBuffers[i] = cb
	}
	return nil
}

func (b *Backend) RecreateMSAA(level uint8) error {
	b.msaaLevel = level
	return b.RecreateTaskGraph(b.shape, level)
}

func (b *Backend) RecreateTaskGraph(shape rendercontext.TaskGraphShape, msaaLevel uint8) error {
	b.shape = shape
	b.msaaLevel = msaaLevel

	if b.taskGraph != nil {
		vk.DeviceWaitIdle(b.ctx.Device.LogicalDevice)
		b.taskGraph.Destroy(b.ctx)
	}

	extent := vk.Extent2D{Width: b.ctx.FramebufferWidth, Height: b.ctx.FramebufferHeight}
	tg, err := CompileTaskGraph(b.ctx, shape, msaaLevel, b.imageCapacity, extent, b.shaders)
	if err != nil {
		return err
	}
	b.taskGraph = tg
	return nil
}

// ApplyUpdate stashes the worker coordinator's latest resource set;
// the actual image-view/vertex-buffer resolution happens at Execute
// time against this backend's own buffers/images registries, then the
// token is published so the coordinator can reuse the other slot.
func (b *Backend) ApplyUpdate(u render.UpdateEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	update := u
	b.pending = &update
}

func (b *Backend) Execute() error {
	frame := b.ctx.CurrentFrame
	fence := b.ctx.InFlightFences[frame]
	if !fence.Wait(b.ctx, ^uint64(0)) {
		return core.NewRenderError(core.KindGpuAllocationFailed, fmt.Errorf("in-flight fence wait failed"))
	}

	imageIndex, ok, err := b.ctx.Swapchain.AcquireNextImageIndex(b.ctx, ^uint64(0), b.ctx.ImageAvailableSemaphores[frame], nil)
	if err != nil {
		return core.NewRenderError(core.KindGpuAllocationFailed, err)
	}
	if !ok {
		return core.NewRenderError(core.KindSwapchainOutOfDate, fmt.Errorf("swapchain out of date on acquire"))
	}
	b.ctx.ImageIndex = imageIndex

	if inFlight := b.ctx.ImagesInFlight[imageIndex]; inFlight != nil {
		inFlight.Wait(b.ctx, ^uint64(0))
	}
	b.ctx.ImagesInFlight[imageIndex] = fence

	b.mu.Lock()
	pending := b.pending
	b.pending = nil
	b.mu.Unlock()

	cmd := b.ctx.CommandBuffers[imageIndex]
	if err := cmd.Begin(false, false); err != nil {
		return core.NewRenderError(core.KindGpuAllocationFailed, err)
	}

	if pending != nil {
		vertexBuffer := b.lookupBuffer(worker.GPUBufferID(pending.BufferID))
		imageViews := b.lookupImageViews(pending.ImageIDs)
		target := b.ctx.Swapchain.Views[imageIndex]
		extent := vk.Extent2D{Width: b.ctx.FramebufferWidth, Height: b.ctx.FramebufferHeight}
		if err := b.taskGraph.Execute(b.ctx, cmd, target, extent, vertexBuffer, pending.DrawCount, imageViews, b.userRender); err != nil {
			return core.NewRenderError(core.KindTaskGraphCompileFailed, err)
		}
	}

	if err := cmd.End(); err != nil {
		return core.NewRenderError(core.KindGpuAllocationFailed, err)
	}

	if err := fence.Reset(b.ctx); err != nil {
		return core.NewRenderError(core.KindGpuAllocationFailed, err)
	}

	waitStages := []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{b.ctx.ImageAvailableSemaphores[frame]},
		PWaitDstStageMask:    waitStages,
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{cmd.Handle},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{b.ctx.QueueCompleteSemaphores[frame]},
	}
	submitInfo.Deref()
	if res := vk.QueueSubmit(b.ctx.Device.GraphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence.Handle); !IsSuccess(res) {
		return core.NewRenderError(core.KindGpuAllocationFailed, fmt.Errorf("queue submit failed: %s", ResultString(res, true)))
	}
	fence.IsSignaled = true

	outOfDate, err := b.ctx.Swapchain.Present(b.ctx, b.ctx.Device.PresentQueue, b.ctx.QueueCompleteSemaphores[frame], imageIndex)
	if err != nil {
		return core.NewRenderError(core.KindGpuAllocationFailed, err)
	}
	b.ctx.CurrentFrame = (b.ctx.CurrentFrame + 1) % uint32(MaxFramesInFlight)

	if pending != nil && pending.Token != nil {
		pending.Token.Publish(uint64(b.ctx.CurrentFrame))
	}

	if outOfDate {
		return core.NewRenderError(core.KindSwapchainOutOfDate, fmt.Errorf("swapchain out of date on present"))
	}
	return nil
}

func (b *Backend) Close() {
	if b.ctx.Device != nil {
		vk.DeviceWaitIdle(b.ctx.Device.LogicalDevice)
	}
	if b.taskGraph != nil {
		b.taskGraph.Destroy(b.ctx)
	}
	for _, cb := range b.ctx.CommandBuffers {
		if cb != nil {
			cb.Free(b.ctx, b.ctx.Device.GraphicsCommandPool)
		}
	}
	DestroyFrameSync(b.ctx)
	if b.ctx.Swapchain != nil {
		b.ctx.Swapchain.Destroy(b.ctx)
	}
	for _, buf := range b.buffers {
		buf.Destroy(b.ctx)
	}
	for _, img := range b.images {
		img.Destroy(b.ctx)
	}
	DeviceDestroy(b.ctx)
	if b.ctx.Surface != nil {
		vk.DestroySurface(b.ctx.Instance, b.ctx.Surface, b.ctx.Allocator)
	}
	if b.ctx.Instance != nil {
		vk.DestroyInstance(b.ctx.Instance, b.ctx.Allocator)
	}
}

func (b *Backend) lookupBuffer(id worker.GPUBufferID) *Buffer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buffers[id]
}

func (b *Backend) lookupImageViews(ids []uint64) []vk.ImageView {
	b.mu.Lock()
	defer b.mu.Unlock()
	views := make([]vk.ImageView, 0, len(ids))
	for _, id := range ids {
		if img, ok := b.images[worker.GPUImageID(id)]; ok {
			views = append(views, img.View)
		}
	}
	return views
}

func (b *Backend) nextBufferID() worker.GPUBufferID {
	b.nextID++
	return worker.GPUBufferID(b.nextID)
}

func (b *Backend) nextImageID() worker.GPUImageID {
	b.nextID++
	return worker.GPUImageID(b.nextID)
}

// AllocateVertexBuffer implements worker.BufferAllocator.
func (b *Backend) AllocateVertexBuffer(vertexCapacity uint64) worker.GPUBufferID {
	return b.allocateBuffer(vertexCapacity*worker.VertexSize, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit)|vk.BufferUsageFlags(vk.BufferUsageTransferDstBit), vk.MemoryPropertyDeviceLocalBit)
}

// AllocateStagingBuffer implements worker.BufferAllocator.
func (b *Backend) AllocateStagingBuffer(vertexCapacity uint64) worker.GPUBufferID {
	return b.allocateBuffer(vertexCapacity*worker.VertexSize, vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
}

func (b *Backend) allocateBuffer(size uint64, usage vk.BufferUsageFlags, memFlags vk.MemoryPropertyFlagBits) worker.GPUBufferID {
	if size == 0 {
		size = 1
	}
	buf, err := BufferCreate(b.ctx, size, usage, memFlags)
	if err != nil {
		core.LogError("failed to allocate buffer: %v", err)
		return 0
	}
	id := b.nextBufferID()
	b.mu.Lock()
	b.buffers[id] = buf
	b.mu.Unlock()
	return id
}

// FreeBuffer implements worker.BufferAllocator.
func (b *Backend) FreeBuffer(id worker.GPUBufferID) {
	b.mu.Lock()
	buf, ok := b.buffers[id]
	delete(b.buffers, id)
	b.mu.Unlock()
	if ok {
		buf.Destroy(b.ctx)
	}
}

// AllocateImage implements worker.ImageAllocator.
func (b *Backend) AllocateImage(width, height uint32) worker.GPUImageID {
	img, err := ImageCreate(b.ctx, width, height, vk.FormatR8g8b8a8Unorm,
		vk.ImageUsageFlags(vk.ImageUsageTransferDstBit)|vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit)|vk.ImageUsageFlags(vk.ImageUsageSampledBit),
		true, vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		core.LogError("failed to allocate image: %v", err)
		return 0
	}
	id := b.nextImageID()
	b.mu.Lock()
	b.images[id] = img
	b.mu.Unlock()
	return id
}

// ResizeImage implements worker.ImageAllocator.
func (b *Backend) ResizeImage(old worker.GPUImageID, width, height uint32) worker.GPUImageID {
	b.FreeImage(old)
	return b.AllocateImage(width, height)
}

// FreeImage implements worker.ImageAllocator.
func (b *Backend) FreeImage(id worker.GPUImageID) {
	b.mu.Lock()
	img, ok := b.images[id]
	delete(b.images, id)
	b.mu.Unlock()
	if ok {
		img.Destroy(b.ctx)
	}
}
