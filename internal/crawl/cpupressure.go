package crawl

import "runtime"

// cpuUnderPressure approximates "CPU load >= threshold" using the
// runtime's own goroutine/GOMAXPROCS ratio as a proxy for scheduler
// pressure. No example in the corpus imports a CPU-sampling library
// (gopsutil et al. only ever appear as third-party manifests, never as
// an actual dependency of a teacher-grade repo), so this stays on
// runtime stats rather than reaching for an unreachable dependency —
// see DESIGN.md.
func cpuUnderPressure(threshold float64) bool {
	if threshold <= 0 {
		return false
	}
	procs := runtime.GOMAXPROCS(0)
	if procs <= 0 {
		procs = 1
	}
	ratio := float64(runtime.NumGoroutine()) / float64(procs*50)
	return ratio >= threshold
}
