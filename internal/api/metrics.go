package api

import (
	"net/http"
	"runtime"
	"time"

	"github.com/nerrad567/duuxlink/internal/session"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Sessions      SessionMetrics `json:"sessions"`
	Devices       DeviceMetrics  `json:"devices"`
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
	ConnectedClients int `json:"connected_clients"`
}

// SessionMetrics counts live sessions by connection state.
type SessionMetrics struct {
	Total   int            `json:"total"`
	ByState map[string]int `json:"by_state"`
}

// DeviceMetrics contains device entry statistics.
type DeviceMetrics struct {
	Total    int            `json:"total"`
	ByModel  map[string]int `json:"by_model"`
	BySource map[string]int `json:"by_source"`
}

// handleMetrics returns runtime, hub, session and device entry statistics.
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
		WebSocket: WSMetrics{
			ConnectedClients: s.hub.ClientCount(),
		},
		Sessions: SessionMetrics{
			ByState: map[string]int{
				session.StateConnected.String():    0,
				session.StateConnecting.String():   0,
				session.StateDisconnected.String(): 0,
			},
		},
		Devices: DeviceMetrics{
			ByModel:  make(map[string]int),
			BySource: make(map[string]int),
		},
	}

	for _, d := range s.manager.Devices() {
		metrics.Sessions.Total++
		metrics.Sessions.ByState[d.Session.State().String()]++
	}

	for _, e := range s.registry.List() {
		metrics.Devices.Total++
		metrics.Devices.ByModel[e.Config.Model]++
		metrics.Devices.BySource[string(e.Source)]++
	}

	writeJSON(w, http.StatusOK, metrics)
}
