package vulkan

// MaxFramesInFlight matches the double-buffering spec.md §4.E and §5
// assume throughout the worker/renderer handshake: two images in
// flight, never three.
const MaxFramesInFlight uint8 = 2

// MaxBoundImages is the fixed capacity of the descriptor-indexed image
// array the UI pipeline's descriptor set declares (spec.md §4.F: "a
// descriptor-indexed array of image views with a fixed image_capacity").
const MaxBoundImages uint32 = 4096

// MaxTaskGraphNodes mirrors the teacher's
// VULKAN_MAX_REGISTERED_RENDERPASSES-style named constant, sized for
// this domain's two task-graph shapes instead of a renderpass table.
const MaxTaskGraphNodes uint32 = 4
