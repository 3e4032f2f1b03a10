package model

import "time"

// ProcessSample is one process in a resource snapshot.
type ProcessSample struct {
	PID    int32   `json:"pid"`
	Name   string  `json:"name"`
	CPUPct float64 `json:"cpu_pct"`
	MemPct float64 `json:"mem_pct"`
}

// ResourceSignals is a single host resource snapshot.
type ResourceSignals struct {
	CPUPct     float64         `json:"cpu_pct"`
	MemPct     float64         `json:"mem_pct"`
	PerProcess []ProcessSample `json:"per_process"`
	SampledAt  time.Time       `json:"sampled_at"`
}

// ContainerSignal is one container reported by docker or podman.
type ContainerSignal struct {
	ID      string  `json:"id"`
	Name    string  `json:"name"`
	Runtime string  `json:"runtime"`
	State   string  `json:"state"`
	Status  string  `json:"status"`
	CPUPct  float64 `json:"cpu_pct"`
	MemPct  float64 `json:"mem_pct"`
	Healthy bool    `json:"healthy"`
}

// Running reports whether the runtime considers the container live.
func (c ContainerSignal) Running() bool {
	return c.State == "running" || c.State == "restarting"
}
