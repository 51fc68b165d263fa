// Package cpuspec reports the host CPU for the version and devices commands and sizes
// worker pools.
package cpuspec

import (
	"regexp"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// maxBusWorkers caps the event bus pool; consumers are I/O bound
const maxBusWorkers = 4

// CPUSpec contains information about CPU specifications
type CPUSpec struct {
	BrandName        string
	Vendor           string
	PhysicalCores    int
	LogicalCores     int
	PerformanceCores int
	// SIMD extensions relevant to the FFT and colour mapping loops
	Features []string
}

// simdFeatures are reported when present, in this order
var simdFeatures = []struct {
	id   cpuid.FeatureID
	name string
}{
	{cpuid.SSE2, "sse2"},
	{cpuid.SSE4, "sse4.1"},
	{cpuid.AVX, "avx"},
	{cpuid.AVX2, "avx2"},
	{cpuid.FMA3, "fma3"},
	{cpuid.AVX512F, "avx512f"},
	{cpuid.ASIMD, "neon"},
}

// GetCPUSpec returns the specification of the host CPU
func GetCPUSpec() CPUSpec {
	spec := CPUSpec{
		BrandName:        cpuid.CPU.BrandName,
		Vendor:           cpuid.CPU.VendorString,
		PhysicalCores:    cpuid.CPU.PhysicalCores,
		LogicalCores:     cpuid.CPU.LogicalCores,
		PerformanceCores: determinePerformanceCores(cpuid.CPU.BrandName),
	}
	for _, f := range simdFeatures {
		if cpuid.CPU.Supports(f.id) {
			spec.Features = append(spec.Features, f.name)
		}
	}
	return spec
}

// usableCores is the core count worth scheduling on: performance cores on hybrid parts,
// otherwise the logical count, never more than the runtime sees
func (c CPUSpec) usableCores() int {
	available := runtime.NumCPU()
	cores := c.PerformanceCores
	if cores <= 0 {
		cores = c.LogicalCores
	}
	if cores <= 0 || cores > available {
		return available
	}
	return cores
}

// BusWorkers returns the recommended event bus worker count. The producer and render
// loop each keep a core, the rest is shared by consumers.
func (c CPUSpec) BusWorkers() int {
	return min(max(c.usableCores()-2, 1), maxBusWorkers)
}

var (
	intelCoreRegex = regexp.MustCompile(`intel.*(?:core.*i[3579]-(\d{5})|core.*ultra\s+([579])\s+(?:processor\s+)?(\d{3}))`)
	appleRegex     = regexp.MustCompile(`apple\s+(m[1-4]\s*(?:pro|max|ultra)?)`)
)

// performanceCores maps hybrid parts to their P-core count. Apple Pro parts use the
// larger binning.
var performanceCores = map[string]int{
	"12900": 8, "12700": 8, "12600": 6, "12400": 6, "12100": 4,
	"13900": 8, "13700": 8, "13600": 6, "13500": 6, "13400": 6, "13100": 4,
	"14900": 8, "14700": 8, "14600": 6, "14400": 6, "14100": 4,
	"ultra 9 285": 8, "ultra 7 265": 8, "ultra 7 255": 8, "ultra 5 235": 6, "ultra 5 225": 4,
	"m1": 4, "m1 pro": 8, "m1 max": 8, "m1 ultra": 16,
	"m2": 4, "m2 pro": 8, "m2 max": 12, "m2 ultra": 24,
	"m3": 4, "m3 pro": 8, "m3 max": 12, "m3 ultra": 24,
	"m4": 6, "m4 pro": 8, "m4 max": 12,
}

// determinePerformanceCores returns the P-core count of known hybrid CPUs, or 0
func determinePerformanceCores(brandName string) int {
	brandName = strings.ToLower(brandName)

	if m := intelCoreRegex.FindStringSubmatch(brandName); m != nil {
		if m[1] != "" {
			return performanceCores[m[1]]
		}
		return performanceCores["ultra "+m[2]+" "+m[3]]
	}
	if m := appleRegex.FindStringSubmatch(brandName); m != nil {
		chip := strings.Join(strings.Fields(m[1]), " ")
		return performanceCores[chip]
	}
	return 0
}
