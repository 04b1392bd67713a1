// Package window adapts a GLFW window into the render core's two
// seams: render.WindowEvent production (consumed by the worker
// coordinator) and vulkan.WindowSurface (consumed by the Vulkan
// backend). Grounded on engine/platform/platform.go's GLFW wrapper,
// generalized from its empty callback bodies into ones that translate
// GLFW input into the WindowEvent stream spec.md §6 names.
package window

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/basalt/bin"
	"github.com/spaghettifunk/basalt/config"
	"github.com/spaghettifunk/basalt/render"
)

func init() {
	// GLFW event handling must run on the main OS thread.
	runtime.LockOSThread()
}

// Window owns a GLFW window and the WindowEvent channel its callbacks
// and host-driven configuration methods feed. Not safe for concurrent
// use: GLFW requires every call (including event polling) to happen on
// the thread that created the window.
type Window struct {
	handle *glfw.Window
	events chan render.WindowEvent
}

// Options configures the window at creation time; the remaining
// runtime-tunable knobs (MSAA, VSync, fonts, bins) are applied through
// Window's methods once it is running.
type Options struct {
	Title         string
	Width, Height uint32
	X, Y          uint32
}

// New creates and shows a GLFW window configured for a Vulkan
// swapchain (no client API, resizable), with an event channel sized to
// absorb a burst of input/bin events between coordinator cycles
// without blocking the callback that produced them.
func New(opts Options) (*Window, error) {
	if !glfw.VulkanSupported() {
		return nil, fmt.Errorf("window: vulkan not supported by this platform's glfw")
	}

	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("window: glfw init: %w", err)
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)
	glfw.WindowHint(glfw.Visible, glfw.False)

	handle, err := glfw.CreateWindow(int(opts.Width), int(opts.Height), opts.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("window: create window: %w", err)
	}

	w := &Window{
		handle: handle,
		events: make(chan render.WindowEvent, 256),
	}

	handle.SetCloseCallback(w.onClose)
	handle.SetFramebufferSizeCallback(w.onFramebufferSize)
	handle.SetContentScaleCallback(w.onContentScale)
	handle.SetRefreshCallback(w.onRefresh)

	handle.SetPos(int(opts.X), int(opts.Y))
	handle.Show()

	return w, nil
}

// Close tears down the GLFW window and terminates GLFW. The event
// channel is closed after the WindowClosed event it sends, so a
// coordinator draining it observes the close before the channel
// disconnects.
func (w *Window) Close() {
	w.events <- render.ClosedEvent()
	close(w.events)
	w.handle.Destroy()
	glfw.Terminate()
}

// Events returns the WindowEvent stream a worker coordinator drains.
func (w *Window) Events() <-chan render.WindowEvent {
	return w.events
}

// ShouldClose reports whether the user requested the window close
// (the X button, Alt+F4, etc.); the host's main loop polls this
// alongside PollEvents to decide when to stop.
func (w *Window) ShouldClose() bool {
	return w.handle.ShouldClose()
}

// PollEvents pumps the GLFW event queue, invoking whichever callbacks
// above fire as a result. Must be called from the window's owning
// thread on every host loop tick.
func (w *Window) PollEvents() {
	glfw.PollEvents()
}

func (w *Window) onClose(handle *glfw.Window) {
	w.events <- render.ClosedEvent()
}

func (w *Window) onFramebufferSize(handle *glfw.Window, width, height int) {
	w.events <- render.ResizedEvent(uint32(width), uint32(height))
}

func (w *Window) onContentScale(handle *glfw.Window, x, y float32) {
	w.events <- render.ScaleChangedEvent(x)
}

func (w *Window) onRefresh(handle *glfw.Window) {
	w.events <- render.RedrawRequestedEvent()
}

// AssociateBin registers a newly created bin with the worker
// coordinator.
func (w *Window) AssociateBin(b *bin.Bin) {
	w.events <- render.AssociateBinEvent(b)
}

// DissociateBin releases a bin's coordinator-side state.
func (w *Window) DissociateBin(id bin.ID) {
	w.events <- render.DissociateBinEvent(id)
}

// UpdateBin marks a single bin dirty for re-geometrization.
func (w *Window) UpdateBin(id bin.ID) {
	w.events <- render.UpdateBinEvent(id)
}

// UpdateBinBatch marks several bins dirty in one event, avoiding a
// channel send per bin when a host applies a batch of style changes.
func (w *Window) UpdateBinBatch(ids []bin.ID) {
	w.events <- render.UpdateBinBatchEvent(ids)
}

// AddBinaryFont registers a font binary with every update worker.
func (w *Window) AddBinaryFont(font []byte) {
	w.events <- render.AddBinaryFontEvent(font)
}

// SetDefaultFont changes the fallback font bins use when they request
// text without naming one.
func (w *Window) SetDefaultFont(f bin.DefaultFont) {
	w.events <- render.SetDefaultFontEvent(f)
}

// SetMSAA changes the multisample level, forwarded to the renderer as
// a task graph invalidation.
func (w *Window) SetMSAA(m config.MSAA) {
	w.events <- render.SetMSAAEvent(m)
}

// SetVSync changes present-mode preference.
func (w *Window) SetVSync(v config.VSync) {
	w.events <- render.SetVSyncEvent(v)
}

// SetConservativeDraw sends a WindowSetConsvDraw event. The worker
// coordinator drops it, so the renderer loop's mode does not change;
// render.Renderer.SetConservativeDraw changes it directly.
func (w *Window) SetConservativeDraw(on bool) {
	w.events <- render.SetConsvDrawEvent(on)
}

// SetMetricsLevel sends a WindowSetMetrics event, which the worker
// coordinator forwards to the renderer loop as a metrics-level render
// event. The renderer ignores it, and the coordinator's own per-cycle
// metrics do not change.
func (w *Window) SetMetricsLevel(level string) {
	w.events <- render.SetMetricsEvent(level)
}

// SetFullscreen toggles fullscreen mode, moving the window onto its
// current monitor's video mode or restoring its previous windowed
// geometry. The worker coordinator answers either transition by marking
// both vertex rings dirty; no event from this call reaches the render
// context or its task graph.
func (w *Window) SetFullscreen(on bool) {
	if on {
		monitor := glfw.GetPrimaryMonitor()
		mode := monitor.GetVideoMode()
		w.handle.SetMonitor(monitor, 0, 0, mode.Width, mode.Height, mode.RefreshRate)
		w.events <- render.WindowEvent{Kind: render.WindowEnabledFullscreen}
	} else {
		w.handle.SetMonitor(nil, 0, 0, 0, 0, 0)
		w.events <- render.WindowEvent{Kind: render.WindowDisabledFullscreen}
	}
}

// VulkanLoader implements vulkan.WindowSurface: GLFW exposes the
// platform's vkGetInstanceProcAddr, which must be wired into the
// goki/vulkan bindings before any vk call is made.
func (w *Window) VulkanLoader() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

// CreateSurface implements vulkan.WindowSurface.
func (w *Window) CreateSurface(instance vk.Instance) (vk.Surface, error) {
	surface, err := w.handle.CreateWindowSurface(instance, nil)
	if err != nil {
		return nil, fmt.Errorf("window: create vulkan surface: %w", err)
	}
	return vk.SurfaceFromPointer(surface), nil
}

// FramebufferExtent implements vulkan.WindowSurface.
func (w *Window) FramebufferExtent() (width, height uint32) {
	fw, fh := w.handle.GetFramebufferSize()
	return uint32(fw), uint32(fh)
}

// RequiredInstanceExtensions implements vulkan.WindowSurface.
func (w *Window) RequiredInstanceExtensions() []string {
	return glfw.GetRequiredInstanceExtensions()
}
