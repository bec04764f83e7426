package batchlib

import "runtime"

// SystemInfo describes the host for choosing a concurrency limit.
type SystemInfo struct {
	CPUCores               int `json:"cpuCores"`
	RecommendedConcurrency int `json:"recommendedConcurrency"`
	MaxConcurrency         int `json:"maxConcurrency"`
}

// GetSystemInfo recommends one transfer per core and at most two per core.
func GetSystemInfo() SystemInfo {
	n := runtime.NumCPU()
	return SystemInfo{
		CPUCores:               n,
		RecommendedConcurrency: n,
		MaxConcurrency:         2 * n,
	}
}

// RecommendedConcurrency returns the default size of the permit pool.
func RecommendedConcurrency() int {
	return GetSystemInfo().RecommendedConcurrency
}
