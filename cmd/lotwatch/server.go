package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rickgao/lotwatch/internal/monitor"
	"github.com/rickgao/lotwatch/internal/writer"
)

// statusSources feeds the health and stats endpoints.
type statusSources struct {
	backend  string
	ping     func(ctx context.Context) error
	monitor  func() monitor.Stats
	recorder func() writer.Metrics
	joins    func() (joins, failures int64)
	clients  func() int
	ws       http.HandlerFunc // Optional closings stream
}

// createHealthHandler creates the HTTP handler for health checks and stats.
func createHealthHandler(src statusSources, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		// Check result store
		if err := src.ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components[src.backend] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components[src.backend] = "connected"
		}

		// A monitor between sessions is still healthy.
		st := src.monitor()
		health.Components["monitor"] = map[string]any{
			"sessions":        st.Sessions,
			"current_session": st.CurrentSession,
		}
		if st.Sessions == 0 {
			health.Status = degrade(health.Status)
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(health); err != nil {
			logger.Debug("write health response", "error", err)
		}
	})

	mux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		joins, failures := src.joins()
		m := src.recorder()

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"monitor": src.monitor(),
			"recorder": map[string]int64{
				"accepted":       m.Accepted,
				"duplicates":     m.Duplicates,
				"errors":         m.Errors,
				"publish_errors": m.PublishErrors,
			},
			"joins": map[string]int64{
				"succeeded": joins,
				"failed":    failures,
			},
			"stream_clients": src.clients(),
		})
	})

	if src.ws != nil {
		mux.HandleFunc("/ws/closings", src.ws)
	}

	return mux
}

func degrade(status string) string {
	if status == "healthy" {
		return "degraded"
	}
	return status
}
