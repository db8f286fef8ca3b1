package core

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// HealthStatus is the readiness snapshot. It deliberately omits the
// lifecycle state: the machine is confined to the control loop and the
// HTTP handlers run on their own goroutines.
type HealthStatus struct {
	Status        string `json:"status"` // "healthy", "degraded", "unhealthy"
	UptimeSeconds int64  `json:"uptime_seconds"`
	MQTTConnected bool   `json:"mqtt_connected"`
	EventsPosted  uint64 `json:"events_posted"`
	EventsLost    uint64 `json:"events_lost"`
	MQTTPublished uint64 `json:"mqtt_published"`
	MQTTErrors    uint64 `json:"mqtt_errors"`
}

// HealthCheck returns the current health status of the service.
func (s *Service) HealthCheck() HealthStatus {
	s.mu.RLock()
	started := s.started
	running := s.isRunning
	s.mu.RUnlock()

	busStats := s.bus.Stats()
	emitterStats := s.notifier.Stats()

	status := HealthStatus{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(started).Seconds()),
		EventsPosted:  busStats.Posted,
		EventsLost:    busStats.Lost,
		MQTTPublished: emitterStats.Published,
		MQTTErrors:    emitterStats.Errors,
	}

	if s.notifier.Client != nil && s.notifier.Client.IsConnected() {
		status.MQTTConnected = true
	}

	if !running {
		status.Status = "unhealthy"
	} else if !status.MQTTConnected {
		status.Status = "degraded"
	}

	return status
}

func (s *Service) healthPayload() ([]byte, error) {
	return json.Marshal(s.HealthCheck())
}

// LivenessHandler handles /health (simple liveness check).
func (s *Service) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	s.mu.RLock()
	started := s.started
	s.mu.RUnlock()

	response := map[string]any{
		"status": "alive",
		"uptime": int64(time.Since(started).Seconds()),
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// ReadinessHandler handles /readiness (detailed readiness check).
func (s *Service) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	health := s.HealthCheck()

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(health)
}

// StartHealthServer starts the HTTP health check server on the given port.
// Runs in a separate goroutine and does not block.
func (s *Service) StartHealthServer(port string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.LivenessHandler)
	mux.HandleFunc("/readiness", s.ReadinessHandler)
	mux.Handle("/metrics", s.metrics.Handler())

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	slog.Info("starting health check server",
		"port", port,
		"endpoints", []string{"/health", "/readiness", "/metrics"},
	)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("health check server failed", "error", err)
		}
	}()

	return nil
}
