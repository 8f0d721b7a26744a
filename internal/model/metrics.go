package model

import "time"

// ResourceSample is a point-in-time view of this process' resource usage.
type ResourceSample struct {
	CPUPercent float64   `json:"cpuPercent"`
	MemoryMB   float64   `json:"memoryMb"`
	Threads    int32     `json:"threads"`
	Goroutines int       `json:"goroutines"`
	SampledAt  time.Time `json:"sampledAt"`
}
