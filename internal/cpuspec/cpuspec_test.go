package cpuspec

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeterminePerformanceCores(t *testing.T) {
	t.Parallel()

	tests := []struct {
		brand string
		want  int
	}{
		{"12th Gen Intel(R) Core(TM) i7-12700K", 8},
		{"13th Gen Intel(R) Core(TM) i5-13400F", 6},
		{"Intel(R) Core(TM) Ultra 5 225", 4},
		{"Intel(R) Core(TM) Ultra 9 Processor 285", 8},
		{"Apple M2 Max", 12},
		{"Apple M1", 4},
		{"Apple M3  Pro", 8},
		{"AMD Ryzen 7 5800X 8-Core Processor", 0},
		{"ARMv8 Processor rev 3 (v8l)", 0},
		{"", 0},
	}
	for _, tt := range tests {
		t.Run(tt.brand, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, determinePerformanceCores(tt.brand))
		})
	}
}

func TestBusWorkers(t *testing.T) {
	t.Parallel()

	n := runtime.NumCPU()
	tests := []struct {
		name string
		spec CPUSpec
		want int
	}{
		{"single core", CPUSpec{LogicalCores: 1}, 1},
		{"unknown cores", CPUSpec{}, min(max(n-2, 1), maxBusWorkers)},
		{"capped", CPUSpec{LogicalCores: 64}, min(max(min(64, n)-2, 1), maxBusWorkers)},
		{"performance cores preferred", CPUSpec{LogicalCores: 64, PerformanceCores: 3}, min(max(min(3, n)-2, 1), maxBusWorkers)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := tt.spec.BusWorkers()
			assert.Equal(t, tt.want, got)
			assert.GreaterOrEqual(t, got, 1)
			assert.LessOrEqual(t, got, maxBusWorkers)
		})
	}
}

func TestGetCPUSpec(t *testing.T) {
	t.Parallel()

	spec := GetCPUSpec()
	assert.GreaterOrEqual(t, spec.LogicalCores, 0)
	assert.NotContains(t, spec.Features, "")
}
