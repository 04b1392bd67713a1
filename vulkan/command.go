package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// CommandBufferState tracks the same state machine the teacher's
// VulkanCommandBuffer does, trimmed of the renderpass-continue state
// this module never uses (task graph nodes each get their own command
// buffer rather than one continued across renderpasses).
type CommandBufferState int

const (
	CommandBufferReady CommandBufferState = iota
	CommandBufferRecording
	CommandBufferRecordingEnded
	CommandBufferSubmitted
	CommandBufferNotAllocated
)

type CommandBuffer struct {
	Handle vk.CommandBuffer
	State  CommandBufferState
}

// AllocateCommandBuffer allocates one primary command buffer from pool.
func AllocateCommandBuffer(ctx *Context, pool vk.CommandPool) (*CommandBuffer, error) {
	cb := &CommandBuffer{State: CommandBufferNotAllocated}

	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		CommandBufferCount: 1,
		Level:              vk.CommandBufferLevelPrimary,
	}

	handles := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(ctx.Device.LogicalDevice, &allocInfo, handles); !IsSuccess(res) {
		return nil, fmt.Errorf("failed to allocate command buffer: %s", ResultString(res, true))
	}
	cb.Handle = handles[0]
	cb.State = CommandBufferReady
	return cb, nil
}

func (cb *CommandBuffer) Free(ctx *Context, pool vk.CommandPool) {
	vk.FreeCommandBuffers(ctx.Device.LogicalDevice, pool, 1, []vk.CommandBuffer{cb.Handle})
	cb.Handle = nil
	cb.State = CommandBufferNotAllocated
}

func (cb *CommandBuffer) Begin(singleUse, simultaneous bool) error {
	beginInfo := vk.CommandBufferBeginInfo{SType: vk.StructureTypeCommandBufferBeginInfo}
	if singleUse {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	if simultaneous {
		beginInfo.Flags |= vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	}
	if res := vk.BeginCommandBuffer(cb.Handle, &beginInfo); !IsSuccess(res) {
		return fmt.Errorf("failed to begin command buffer: %s", ResultString(res, true))
	}
	cb.State = CommandBufferRecording
	return nil
}

func (cb *CommandBuffer) End() error {
	if res := vk.EndCommandBuffer(cb.Handle); !IsSuccess(res) {
		return fmt.Errorf("failed to end command buffer: %s", ResultString(res, true))
	}
	cb.State = CommandBufferRecordingEnded
	return nil
}

// beginOneShotCommandBuffer allocates and begins a single-use transfer
// command buffer from pool, used for buffer->buffer and buffer->image
// copies issued outside the per-frame graphics command buffer.
func beginOneShotCommandBuffer(ctx *Context, pool vk.CommandPool) (*CommandBuffer, error) {
	cb, err := AllocateCommandBuffer(ctx, pool)
	if err != nil {
		return nil, err
	}
	if err := cb.Begin(true, false); err != nil {
		cb.Free(ctx, pool)
		return nil, err
	}
	return cb, nil
}

// endOneShotCommandBuffer ends and submits a one-shot command buffer,
// waits for the queue to go idle, then frees it. CopyTo is its only
// caller. This is the teacher's own pattern for one-off uploads rather
// than a new idiom.
func endOneShotCommandBuffer(ctx *Context, pool vk.CommandPool, queue vk.Queue, cb *CommandBuffer) error {
	if err := cb.End(); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb.Handle},
	}
	if res := vk.QueueSubmit(queue, 1, []vk.SubmitInfo{submitInfo}, nil); !IsSuccess(res) {
		return fmt.Errorf("failed to submit one-shot command buffer: %s", ResultString(res, true))
	}
	if res := vk.QueueWaitIdle(queue); !IsSuccess(res) {
		return fmt.Errorf("failed to wait for one-shot queue idle: %s", ResultString(res, true))
	}

	cb.Free(ctx, pool)
	return nil
}
