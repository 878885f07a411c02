package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/clarktrimble/cachesto/cache"
	"github.com/clarktrimble/cachesto/telemetry"
)

// purgeResponse is the admin purge endpoint's JSON body.
type purgeResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// statsResponse is the admin stats endpoint's JSON body.
type statsResponse struct {
	Status string      `json:"status"`
	Stats  cache.Stats `json:"stats"`
}

func handlePurge(c cache.Cache, logger telemetry.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		if err := c.Clear(r.Context()); err != nil {
			logger.Error(r.Context(), "admin cache purge failed", err)
			writeProxyError(w, r, err)
			return
		}
		c.RunPendingTasks(r.Context())

		writeJSON(w, http.StatusOK, purgeResponse{
			Status:    "success",
			Message:   "cache purged",
			Timestamp: time.Now().Unix(),
		})
	}
}

func handleStats(c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {

		stats, err := c.Stats(r.Context())
		if err != nil {
			writeProxyError(w, r, err)
			return
		}

		writeJSON(w, http.StatusOK, statsResponse{Status: "success", Stats: stats})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
