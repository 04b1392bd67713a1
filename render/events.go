// Package render defines the wire types that cross the window/worker/
// renderer boundaries (spec.md §6) and the top-level Renderer loop that
// drives a RenderContext from them.
package render

import (
	"github.com/spaghettifunk/basalt/bin"
	"github.com/spaghettifunk/basalt/config"
	"github.com/spaghettifunk/basalt/core"
)

// WindowEventKind discriminates the WindowEvent stream spec.md §6
// names. Payload fields not relevant to a given kind are left zero.
type WindowEventKind int

const (
	WindowClosed WindowEventKind = iota
	WindowResized
	WindowScaleChanged
	WindowRedrawRequested
	WindowAssociateBin
	WindowDissociateBin
	WindowUpdateBin
	WindowUpdateBinBatch
	WindowAddBinaryFont
	WindowSetDefaultFont
	WindowSetMSAA
	WindowSetVSync
	WindowSetConsvDraw
	WindowSetMetrics
	WindowOnFrame
	WindowEnabledFullscreen
	WindowDisabledFullscreen
)

// WindowEvent is one event in the stream the window layer emits into
// the worker coordinator.
type WindowEvent struct {
	Kind WindowEventKind

	Width, Height uint32
	Scale         float32
	Bin           *bin.Bin
	BinID         bin.ID
	BinIDs        []bin.ID
	Font          []byte
	DefaultFont   bin.DefaultFont
	MSAA          config.MSAA
	VSync         config.VSync
	ConsvDraw     bool
	MetricsLevel  string
	OnFrame       func()
}

func ClosedEvent() WindowEvent { return WindowEvent{Kind: WindowClosed} }
func ResizedEvent(w, h uint32) WindowEvent {
	return WindowEvent{Kind: WindowResized, Width: w, Height: h}
}
func ScaleChangedEvent(scale float32) WindowEvent {
	return WindowEvent{Kind: WindowScaleChanged, Scale: scale}
}
func RedrawRequestedEvent() WindowEvent { return WindowEvent{Kind: WindowRedrawRequested} }
func AssociateBinEvent(b *bin.Bin) WindowEvent {
	return WindowEvent{Kind: WindowAssociateBin, Bin: b}
}
func DissociateBinEvent(id bin.ID) WindowEvent {
	return WindowEvent{Kind: WindowDissociateBin, BinID: id}
}
func UpdateBinEvent(id bin.ID) WindowEvent { return WindowEvent{Kind: WindowUpdateBin, BinID: id} }
func UpdateBinBatchEvent(ids []bin.ID) WindowEvent {
	return WindowEvent{Kind: WindowUpdateBinBatch, BinIDs: ids}
}
func AddBinaryFontEvent(font []byte) WindowEvent {
	return WindowEvent{Kind: WindowAddBinaryFont, Font: font}
}
func SetDefaultFontEvent(f bin.DefaultFont) WindowEvent {
	return WindowEvent{Kind: WindowSetDefaultFont, DefaultFont: f}
}
func SetMSAAEvent(m config.MSAA) WindowEvent   { return WindowEvent{Kind: WindowSetMSAA, MSAA: m} }
func SetVSyncEvent(v config.VSync) WindowEvent { return WindowEvent{Kind: WindowSetVSync, VSync: v} }
func SetConsvDrawEvent(on bool) WindowEvent {
	return WindowEvent{Kind: WindowSetConsvDraw, ConsvDraw: on}
}
func SetMetricsEvent(level string) WindowEvent {
	return WindowEvent{Kind: WindowSetMetrics, MetricsLevel: level}
}

// RenderEventKind discriminates the RenderEvent stream spec.md §6
// names.
type RenderEventKind int

const (
	RenderClose RenderEventKind = iota
	RenderRedraw
	RenderUpdate
	RenderCheckExtent
	RenderSetMSAA
	RenderSetVSync
	RenderSetMetricsLevel
	RenderWorkerCycle
	RenderOnFrame
)

// drawKinds are the RenderEventKinds that require an execute pass under
// conservative-draw mode (spec.md §4.G).
var drawKinds = map[RenderEventKind]bool{
	RenderRedraw:      true,
	RenderUpdate:      true,
	RenderCheckExtent: true,
	RenderSetMSAA:     true,
	RenderSetVSync:    true,
}

// RequiresDraw reports whether this event must trigger an execute pass
// under conservative-draw mode.
func (k RenderEventKind) RequiresDraw() bool { return drawKinds[k] }

// UpdateEvent is the payload of a RenderUpdate event: the worker
// coordinator's latest GPU resource handles and a synchronization
// token the renderer signals once it has consumed them.
type UpdateEvent struct {
	BufferID  uint64
	ImageIDs  []uint64
	DrawCount uint32
	Metrics   *core.WorkerPerfMetrics
	Token     *SyncToken
}

// RenderEvent is one event in the stream the worker coordinator emits
// into the Renderer loop.
type RenderEvent struct {
	Kind RenderEventKind

	Update       UpdateEvent
	MSAA         config.MSAA
	VSync        config.VSync
	MetricsLevel string
	Metrics      *core.WorkerPerfMetrics
	OnFrame      func()
}

func CloseEvent() RenderEvent  { return RenderEvent{Kind: RenderClose} }
func RedrawEvent() RenderEvent { return RenderEvent{Kind: RenderRedraw} }
func UpdateRenderEvent(u UpdateEvent) RenderEvent {
	return RenderEvent{Kind: RenderUpdate, Update: u}
}
func CheckExtentEvent() RenderEvent { return RenderEvent{Kind: RenderCheckExtent} }
func SetMSAARenderEvent(m config.MSAA) RenderEvent {
	return RenderEvent{Kind: RenderSetMSAA, MSAA: m}
}
func SetVSyncRenderEvent(v config.VSync) RenderEvent {
	return RenderEvent{Kind: RenderSetVSync, VSync: v}
}
func SetMetricsLevelEvent(level string) RenderEvent {
	return RenderEvent{Kind: RenderSetMetricsLevel, MetricsLevel: level}
}
func WorkerCycleEvent(m *core.WorkerPerfMetrics) RenderEvent {
	return RenderEvent{Kind: RenderWorkerCycle, Metrics: m}
}
