package vulkan

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// Buffer is a GPU buffer plus its backing memory. The teacher never
// implements generic buffer (re)allocation — every buffer it creates
// is a fixed-purpose object vertex/index buffer wired by hand in
// backend.go — so this is grounded instead on cogentcore-core/egpu's
// buffer.go/memory.go memory-type search and host-visible staging
// pattern, adapted from github.com/vulkan-go/vulkan naming onto the
// teacher's github.com/goki/vulkan binding (the same upstream API
// under a different import path).
type Buffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   uint64
	Usage  vk.BufferUsageFlags
	mapped unsafe.Pointer
}

func BufferCreate(ctx *Context, size uint64, usage vk.BufferUsageFlags, memoryFlags vk.MemoryPropertyFlagBits) (*Buffer, error) {
	buf := &Buffer{Size: size, Usage: usage}

	createInfo := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}
	createInfo.Deref()

	if res := vk.CreateBuffer(ctx.Device.LogicalDevice, &createInfo, ctx.Allocator, &buf.Handle); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to create buffer: %s", ResultString(res, true))
	}

	var requirements vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(ctx.Device.LogicalDevice, buf.Handle, &requirements)
	requirements.Deref()

	memoryType := ctx.FindMemoryIndex(requirements.MemoryTypeBits, memoryFlags)
	if memoryType == -1 {
		return nil, fmt.Errorf("no memory type satisfies buffer requirements %v", memoryFlags)
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  requirements.Size,
		MemoryTypeIndex: uint32(memoryType),
	}
	if res := vk.AllocateMemory(ctx.Device.LogicalDevice, &allocInfo, ctx.Allocator, &buf.Memory); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to allocate buffer memory: %s", ResultString(res, true))
	}
	if res := vk.BindBufferMemory(ctx.Device.LogicalDevice, buf.Handle, buf.Memory, 0); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to bind buffer memory: %s", ResultString(res, true))
	}

	return buf, nil
}

func (b *Buffer) Destroy(ctx *Context) {
	if b.mapped != nil {
		vk.UnmapMemory(ctx.Device.LogicalDevice, b.Memory)
		b.mapped = nil
	}
	if b.Handle != nil {
		vk.DestroyBuffer(ctx.Device.LogicalDevice, b.Handle, ctx.Allocator)
		b.Handle = nil
	}
	if b.Memory != nil {
		vk.FreeMemory(ctx.Device.LogicalDevice, b.Memory, ctx.Allocator)
		b.Memory = nil
	}
}

// LoadData maps, memcopies and unmaps data into the buffer at offset;
// the buffer's memory must be host-visible. No code in this module
// calls it.
func (b *Buffer) LoadData(ctx *Context, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	var ptr unsafe.Pointer
	if res := vk.MapMemory(ctx.Device.LogicalDevice, b.Memory, vk.DeviceSize(offset), vk.DeviceSize(len(data)), 0, &ptr); !IsSuccess(res) {
		return fmt.Errorf("failed to map buffer memory: %s", ResultString(res, true))
	}
	dst := unsafe.Slice((*byte)(ptr), len(data))
	copy(dst, data)
	vk.UnmapMemory(ctx.Device.LogicalDevice, b.Memory)
	return nil
}

// CopyTo issues a one-shot buffer->buffer copy on queue and waits for
// the queue to go idle before returning. No code in this module calls
// it.
func CopyTo(ctx *Context, cmdPool vk.CommandPool, queue vk.Queue, src, dst *Buffer, region vk.BufferCopy) error {
	cmd, err := beginOneShotCommandBuffer(ctx, cmdPool)
	if err != nil {
		return err
	}
	vk.CmdCopyBuffer(cmd.Handle, src.Handle, dst.Handle, 1, []vk.BufferCopy{region})
	return endOneShotCommandBuffer(ctx, cmdPool, queue, cmd)
}
