package main

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rickgao/coin-stream/internal/board"
	"github.com/rickgao/coin-stream/internal/connection"
	"github.com/rickgao/coin-stream/internal/model"
	"github.com/rickgao/coin-stream/internal/router"
	"github.com/rickgao/coin-stream/internal/version"
)

type streamStatus interface {
	IsConnected() bool
	Stats() connection.Stats
	RouterStats() router.Stats
}

type marketViews interface {
	Tickers() []model.Ticker
	Market(code string) (board.MarketView, bool)
	Focused() (market, interval string)
}

// createDebugHandler creates the HTTP handler for health and debug endpoints.
func createDebugHandler(stream streamStatus, views marketViews, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		stats := stream.Stats()
		focus, interval := views.Focused()

		health := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		health.Components["stream"] = map[string]interface{}{
			"state":         stats.State.String(),
			"subscriptions": stats.Subscriptions,
			"connects":      stats.Connects,
		}
		if !stream.IsConnected() {
			health.Status = "unhealthy"
		}

		health.Components["board"] = map[string]interface{}{
			"tickers":  len(views.Tickers()),
			"focus":    focus,
			"interval": interval,
		}
		health.Components["version"] = version.Get()

		if health.Status == "unhealthy" {
			writeJSON(w, http.StatusServiceUnavailable, health, logger)
			return
		}
		writeJSON(w, http.StatusOK, health, logger)
	})

	mux.HandleFunc("GET /debug/tickers", func(w http.ResponseWriter, r *http.Request) {
		tickers := views.Tickers()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"count":   len(tickers),
			"tickers": tickers,
		}, logger)
	})

	mux.HandleFunc("GET /debug/markets/{code}", func(w http.ResponseWriter, r *http.Request) {
		view, ok := views.Market(r.PathValue("code"))
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "market is not focused",
			}, logger)
			return
		}
		writeJSON(w, http.StatusOK, view, logger)
	})

	mux.HandleFunc("GET /debug/stats", func(w http.ResponseWriter, r *http.Request) {
		stats := stream.Stats()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"state": stats.State.String(),
			"connection": map[string]interface{}{
				"subscriptions":     stats.Subscriptions,
				"live_handles":      stats.LiveHandles,
				"attempts":          stats.Attempts,
				"connects":          stats.Connects,
				"transport_errors":  stats.TransportErrors,
				"protocol_errors":   stats.ProtocolErrors,
				"frame_errors":      stats.FrameErrors,
				"publishes_sent":    stats.PublishesSent,
				"publishes_dropped": stats.PublishesDropped,
				"queue_depth":       stats.QueueDepth,
			},
			"router": stream.RouterStats(),
		}, logger)
	})

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encode response failed", "error", err)
	}
}
