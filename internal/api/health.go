package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

const serviceVersion = "1.0.0"

type HealthResponse struct {
	Status             string  `json:"status"`
	Version            string  `json:"version"`
	UptimeSeconds      float64 `json:"uptime_seconds"`
	MemoryUsagePercent float32 `json:"memory_usage_percent"`
	CPUUsagePercent    float64 `json:"cpu_usage_percent"`
}

// ProcessStats reports resource usage of the running process.
type ProcessStats interface {
	MemoryPercent(ctx context.Context) (float32, error)
	CPUPercent(ctx context.Context) (float64, error)
}

type gopsutilStats struct {
	proc *process.Process
}

// NewProcessStats samples the current process through gopsutil.
func NewProcessStats() (ProcessStats, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect process: %w", err)
	}
	return &gopsutilStats{proc: p}, nil
}

func (s *gopsutilStats) MemoryPercent(ctx context.Context) (float32, error) {
	return s.proc.MemoryPercentWithContext(ctx)
}

func (s *gopsutilStats) CPUPercent(ctx context.Context) (float64, error) {
	return s.proc.CPUPercentWithContext(ctx)
}

type healthHandler struct {
	stats   ProcessStats
	started time.Time
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, http.StatusInternalServerError, "process stats unavailable")
		return
	}
	mem, err := h.stats.MemoryPercent(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	cpu, err := h.stats.CPUPercent(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:             "healthy",
		Version:            serviceVersion,
		UptimeSeconds:      time.Since(h.started).Seconds(),
		MemoryUsagePercent: mem,
		CPUUsagePercent:    cpu,
	})
}
