package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/kosonkh7/SOPO-Dashboard/internal/shipment"
)

// DatasetProvider yields the current dataset
type DatasetProvider interface {
	Dataset(ctx context.Context) (*shipment.Dataset, error)
}

// ClientCounter reports connected websocket clients
type ClientCounter interface {
	ClientCount() int
}

// QueueStatsProvider reports job queue statistics
type QueueStatsProvider interface {
	GetQueueStats() map[string]interface{}
}

// HealthService provides health check functionality
type HealthService struct {
	version   string
	buildTime string
	data      DatasetProvider
	clients   ClientCounter
	jobs      QueueStatsProvider
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Uptime  string `json:"uptime,omitempty"`
}

// SystemStats represents system statistics
type SystemStats struct {
	UptimeSeconds    float64 `json:"uptime_seconds"`
	Centers          int     `json:"centers"`
	Records          int     `json:"records"`
	FirstDate        string  `json:"first_date,omitempty"`
	LastDate         string  `json:"last_date,omitempty"`
	WebSocketClients int     `json:"websocket_clients"`
	ActiveJobs       int     `json:"active_jobs"`
	GoVersion        string  `json:"go_version"`
	OS               string  `json:"os"`
	Arch             string  `json:"arch"`
}

// NewHealthService creates a new health service. clients and jobs may be nil.
func NewHealthService(version, buildTime string, data DatasetProvider, clients ClientCounter, jobs QueueStatsProvider, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("HealthService initialized",
		slog.String("version", version),
		slog.String("build_time", buildTime))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		data:      data,
		clients:   clients,
		jobs:      jobs,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck returns overall health status
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "HealthCheck: performing health check",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck reports ready only when the dataset loads
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["data"] = hs.checkDataHealth(ctx)
	status.Services["websocket"] = hs.checkWebSocketHealth()
	status.Services["jobs"] = hs.checkJobHealth()

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	return status
}

// LivenessCheck returns liveness status
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version returns version information
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}
	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	return result
}

// SystemStats returns dataset and runtime statistics
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	stats := SystemStats{
		UptimeSeconds: time.Since(hs.startTime).Seconds(),
		GoVersion:     runtime.Version(),
		OS:            runtime.GOOS,
		Arch:          runtime.GOARCH,
	}

	if hs.clients != nil {
		stats.WebSocketClients = hs.clients.ClientCount()
	}
	if hs.jobs != nil {
		if n, ok := hs.jobs.GetQueueStats()["active_jobs"].(int); ok {
			stats.ActiveJobs = n
		}
	}

	ds, err := hs.data.Dataset(ctx)
	if err != nil {
		return stats, fmt.Errorf("dataset unavailable: %w", err)
	}
	first, last := ds.DateRange()
	stats.Centers = len(ds.Centers())
	stats.Records = ds.Len()
	stats.FirstDate = first.Format(shipment.DayLayout)
	stats.LastDate = last.Format(shipment.DayLayout)
	return stats, nil
}

// checkDataHealth checks that the dataset loads
func (hs *HealthService) checkDataHealth(ctx context.Context) ServiceHealth {
	if hs.data == nil {
		return ServiceHealth{Status: "not_ready", Message: "dataset provider not initialized"}
	}

	ds, err := hs.data.Dataset(ctx)
	if err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("Dataset error: %v", err),
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d records across %d centers", ds.Len(), len(ds.Centers())),
	}
}

// checkWebSocketHealth checks WebSocket service health
func (hs *HealthService) checkWebSocketHealth() ServiceHealth {
	if hs.clients == nil {
		return ServiceHealth{Status: "not_ready", Message: "websocket hub not initialized"}
	}
	return ServiceHealth{
		Status:  "ready",
		Message: fmt.Sprintf("%d clients connected", hs.clients.ClientCount()),
		Uptime:  time.Since(hs.startTime).String(),
	}
}

// checkJobHealth checks job queue health
func (hs *HealthService) checkJobHealth() ServiceHealth {
	if hs.jobs == nil {
		return ServiceHealth{Status: "not_ready", Message: "job queue not initialized"}
	}
	return ServiceHealth{Status: "ready", Message: "job queue is healthy"}
}

// GetDetailedHealth returns comprehensive health information
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	stats, err := hs.SystemStats(ctx)
	result := map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"stats":     stats,
	}
	if err != nil {
		result["stats_error"] = err.Error()
	}
	return result
}
