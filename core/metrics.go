package core

import "sync"

const AVG_COUNT uint8 = 30

type MetricsState struct {
	FrameAVGCounter    uint8
	MStimes            [AVG_COUNT]float64
	MSavg              float64
	Frames             int32
	AccumulatedFrameMS float64
	FPS                float64
}

var onceMetrics sync.Once
var metricsState *MetricsState = nil

func MetricsInitialize() error {
	onceMetrics.Do(func() {
		metricsState = &MetricsState{
			MStimes: [AVG_COUNT]float64{0},
		}
	})
	return nil
}

func MetricsUpdate(frame_elapsed_time float64) {
	// Calculate frame ms average
	frame_ms := (frame_elapsed_time * 1000.0)
	metricsState.MStimes[metricsState.FrameAVGCounter] = frame_ms
	if metricsState.FrameAVGCounter == AVG_COUNT-1 {
		for i := uint8(0); i < AVG_COUNT; i++ {
			metricsState.MSavg += metricsState.MStimes[i]
		}

		metricsState.MSavg /= float64(AVG_COUNT)
	}
	metricsState.FrameAVGCounter++
	metricsState.FrameAVGCounter %= AVG_COUNT

	// Calculate Frames per second.
	metricsState.AccumulatedFrameMS += frame_ms
	if metricsState.AccumulatedFrameMS > 1000 {
		metricsState.FPS = float64(metricsState.Frames)
		metricsState.AccumulatedFrameMS -= 1000
		metricsState.Frames = 0
	}

	// Count all Frames.
	metricsState.Frames++
}

func MetricsFPS() float64 {
	return metricsState.FPS
}

func MetricsFrameTime() float64 {
	return metricsState.MSavg
}

func MetricsFrame() (float64, float64) {
	return metricsState.FPS, metricsState.MSavg
}

// OVDPerfMetrics times the per-bin geometry computation contract
// (compute_bin_geometry) as observed by a single UpdateWorker.
type OVDPerfMetrics struct {
	BinCount int
	Total    float32
}

func (m *OVDPerfMetrics) Add(rhs OVDPerfMetrics) {
	m.BinCount += rhs.BinCount
	m.Total += rhs.Total
}

func (m *OVDPerfMetrics) DivBy(n float32) {
	if n == 0 {
		return
	}
	m.Total /= n
}

// WorkerPerfMetrics is the per-cycle timing breakdown the worker
// coordinator reports via RenderEvent.WorkerCycle. Mirrors spec.md's
// §4.C/§6 WorkerPerfMetrics; AddAssign/DivAssign become Add/DivBy since
// Go has no operator overloading.
type WorkerPerfMetrics struct {
	Total            float32
	BinCount         int
	BinRemove        float32
	BinObtain        float32
	ImageCount       float32
	ImageRemove      float32
	ImageObtain      float32
	ImageUpdatePrep  float32
	VertexCount      float32
	VertexUpdatePrep float32
	SwapWait         float32
	Execution        float32
	OVDMetrics       *OVDPerfMetrics
}

func (m *WorkerPerfMetrics) Add(rhs WorkerPerfMetrics) {
	m.Total += rhs.Total
	m.BinCount += rhs.BinCount
	m.BinRemove += rhs.BinRemove
	m.BinObtain += rhs.BinObtain
	m.ImageCount += rhs.ImageCount
	m.ImageRemove += rhs.ImageRemove
	m.ImageObtain += rhs.ImageObtain
	m.ImageUpdatePrep += rhs.ImageUpdatePrep
	m.VertexCount += rhs.VertexCount
	m.VertexUpdatePrep += rhs.VertexUpdatePrep
	m.SwapWait += rhs.SwapWait
	m.Execution += rhs.Execution

	if rhs.OVDMetrics != nil {
		if m.OVDMetrics == nil {
			cp := *rhs.OVDMetrics
			m.OVDMetrics = &cp
		} else {
			m.OVDMetrics.Add(*rhs.OVDMetrics)
		}
	}
}

func (m *WorkerPerfMetrics) DivBy(n float32) {
	if n == 0 {
		return
	}

	m.Total /= n
	m.BinCount = int(float32(m.BinCount) / n)
	m.BinRemove /= n
	m.BinObtain /= n
	m.ImageCount /= n
	m.ImageRemove /= n
	m.ImageObtain /= n
	m.ImageUpdatePrep /= n
	m.VertexCount /= n
	m.VertexUpdatePrep /= n
	m.SwapWait /= n
	m.Execution /= n

	if m.OVDMetrics != nil {
		m.OVDMetrics.DivBy(n)
	}
}

// MetricsLevel controls how much per-cycle timing the worker collects.
// A higher level costs more Instant/clock calls per cycle.
type MetricsLevel int

const (
	MetricsLevelNone MetricsLevel = iota
	MetricsLevelBasic
	MetricsLevelFull
)
