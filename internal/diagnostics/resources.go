package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/mem"
)

// ErrInsufficientMemory is returned by CheckMemory when the host cannot
// hold the requested allocation.
var ErrInsufficientMemory = errors.New("insufficient memory")

// ResourceSnapshot captures process and host memory at a point in time.
type ResourceSnapshot struct {
	Timestamp      time.Time `json:"timestamp"`
	Goroutines     int       `json:"goroutines"`
	HeapAllocMB    float64   `json:"heap_alloc_mb"`
	HeapInUseMB    float64   `json:"heap_in_use_mb"`
	SysMB          float64   `json:"sys_mb"`
	NumGC          uint32    `json:"num_gc"`
	MemTotalMB     float64   `json:"mem_total_mb,omitempty"`
	MemAvailableMB float64   `json:"mem_available_mb,omitempty"`
}

// TakeSnapshot captures current resource state.
func TakeSnapshot() ResourceSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	s := ResourceSnapshot{
		Timestamp:   time.Now(),
		Goroutines:  runtime.NumGoroutine(),
		HeapAllocMB: toMB(memStats.HeapAlloc),
		HeapInUseMB: toMB(memStats.HeapInuse),
		SysMB:       toMB(memStats.Sys),
		NumGC:       memStats.NumGC,
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		s.MemTotalMB = toMB(vm.Total)
		s.MemAvailableMB = toMB(vm.Available)
	}
	return s
}

// availableMemory is swapped in tests.
var availableMemory = func(ctx context.Context) (uint64, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vm.Available, nil
}

// CheckMemory reports ErrInsufficientMemory when fewer than need bytes are
// available. When available memory cannot be read the check passes.
func CheckMemory(ctx context.Context, need uint64) error {
	if need == 0 {
		return nil
	}
	avail, err := availableMemory(ctx)
	if err != nil || avail == 0 {
		return nil
	}
	if avail < need {
		return fmt.Errorf("%w: need %.1f MB, %.1f MB available",
			ErrInsufficientMemory, toMB(need), toMB(avail))
	}
	return nil
}

func toMB(b uint64) float64 {
	return float64(b) / 1024 / 1024
}
