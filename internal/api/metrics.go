package api

import (
	"database/sql"
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/gray-logic-instar/internal/bridges/instar"
	"github.com/nerrad567/gray-logic-instar/internal/event"
)

// MetricsSources are the optional collaborators GET /metrics reads from.
type MetricsSources struct {
	// DB reports connection pool statistics.
	DB interface{ Stats() sql.DBStats }

	// MQTT reports broker connectivity.
	MQTT interface{ IsConnected() bool }

	// Bus reports event delivery counters.
	Bus interface{ Stats() event.Stats }
}

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	WebSocket     WSMetrics        `json:"websocket"`
	MQTT          MQTTMetrics      `json:"mqtt"`
	Devices       DeviceMetrics    `json:"devices"`
	Events        *event.Stats     `json:"events,omitempty"`
	Instar        *instar.Stats    `json:"instar,omitempty"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int    `json:"connected_clients"`
	DroppedFrames    uint64 `json:"dropped_frames"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// DeviceMetrics contains device registry statistics.
type DeviceMetrics struct {
	Total  int            `json:"total"`
	ByType map[string]int `json:"by_type"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

// handleMetrics returns process, registry and pipeline metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{ConnectedClients: s.hub.ClientCount(), DroppedFrames: s.hub.Dropped()},
		Devices:   DeviceMetrics{ByType: make(map[string]int)},
	}

	for _, d := range s.registry.List() {
		metrics.Devices.Total++
		metrics.Devices.ByType[string(d.ID().Type)]++
	}

	if s.metrics.MQTT != nil {
		metrics.MQTT.Connected = s.metrics.MQTT.IsConnected()
	}
	if s.metrics.Bus != nil {
		stats := s.metrics.Bus.Stats()
		metrics.Events = &stats
	}
	if s.bridge != nil {
		stats := s.bridge.Stats()
		metrics.Instar = &stats
	}
	if s.metrics.DB != nil {
		dbStats := s.metrics.DB.Stats()
		metrics.Database = &DatabaseMetrics{
			OpenConnections: dbStats.OpenConnections,
			InUse:           dbStats.InUse,
			Idle:            dbStats.Idle,
			WaitCount:       dbStats.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
