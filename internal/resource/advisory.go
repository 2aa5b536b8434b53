// Package resource estimates the pipeline's peak memory footprint and
// advises against GPU acceleration when it would risk VRAM exhaustion
// (spec.md §5), adapted from the teacher's tile.ComputeMemoryLimit
// (internal/tile/memlimit.go), which performs the analogous total-RAM
// minus current-overhead calculation for its own disk-spill decision.
package resource

import (
	"log/slog"
	"runtime"
)

// bytesPerPyramidPixel is spec.md §5's "6 bytes" per pyramid pixel: the
// 3-channel int16 Laplacian entry; the weight-sum entry is not counted.
const bytesPerPyramidPixel = 6

// gpuAvoidanceThreshold is spec.md §5's "≈4 GiB" estimate above which GPU
// acceleration should be avoided.
const gpuAvoidanceThreshold = 4 << 30

// gpuAvoidanceBandLimit is spec.md §5's num_bands > 5 GPU-avoidance rule.
const gpuAvoidanceBandLimit = 5

// Estimate reports the pipeline's expected peak footprint and whether GPU
// acceleration should be avoided for this configuration.
type Estimate struct {
	TotalSystemRAM   uint64
	PyramidBytes     uint64
	AvoidGPU         bool
	AvoidGPUReason   string
}

// Advise computes an Estimate for a canvas of the given dimensions and
// number of pyramid bands. canvasArea is width*height in pixels.
func Advise(canvasArea int64, numBands int) Estimate {
	pyramidBytes := uint64(canvasArea) * uint64(numBands) * bytesPerPyramidPixel

	est := Estimate{PyramidBytes: pyramidBytes}

	if total, err := totalSystemRAM(); err == nil {
		est.TotalSystemRAM = total
	}

	switch {
	case numBands > gpuAvoidanceBandLimit:
		est.AvoidGPU = true
		est.AvoidGPUReason = "num_bands exceeds 5"
	case pyramidBytes > gpuAvoidanceThreshold:
		est.AvoidGPU = true
		est.AvoidGPUReason = "estimated pyramid footprint exceeds 4 GiB"
	}

	return est
}

// LogSummary emits the estimate as a structured log line, following the
// teacher's verbose RAM-detection logging in ComputeMemoryLimit.
func (e Estimate) LogSummary(logger *slog.Logger) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	logger.Info("resource estimate",
		"total_system_ram_gb", float64(e.TotalSystemRAM)/(1<<30),
		"pyramid_footprint_gb", float64(e.PyramidBytes)/(1<<30),
		"go_heap_sys_mb", float64(m.Sys)/(1<<20),
		"avoid_gpu", e.AvoidGPU,
		"avoid_gpu_reason", e.AvoidGPUReason,
	)
}
