package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/btgateway/internal/device"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500

	// maxQueryParamLen bounds path and query values.
	maxQueryParamLen = 128
)

// handleGetDeviceHistory returns stored readings for a configured device,
// newest first.
//
// Query parameters:
//   - limit: number of entries (default 50, max 500)
//   - worker: restrict to one worker when names repeat across workers
//   - since: RFC3339 timestamp; only entries after it are returned
func (s *Server) handleGetDeviceHistory(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || len(name) > maxQueryParamLen {
		writeBadRequest(w, "invalid device name")
		return
	}

	worker := r.URL.Query().Get("worker")
	if len(worker) > maxQueryParamLen {
		writeBadRequest(w, "invalid worker")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	since, err := parseSinceParam(r.URL.Query().Get("since"))
	if err != nil {
		writeBadRequest(w, "invalid since timestamp")
		return
	}

	if !s.isConfigured(worker, name) {
		writeNotFound(w, "device not found")
		return
	}

	if s.store == nil {
		writeUnavailable(w, "device history unavailable")
		return
	}

	entries, err := s.store.GetHistory(r.Context(), worker, name, limit)
	if err != nil {
		s.logger.Error("loading device history", "device", name, "error", err)
		writeInternalError(w, "failed to load device history")
		return
	}

	if !since.IsZero() {
		filtered := make([]device.HistoryEntry, 0, len(entries))
		for _, entry := range entries {
			if entry.CreatedAt.After(since) {
				filtered = append(filtered, entry)
			}
		}
		entries = filtered
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device":  name,
		"history": entries,
		"count":   len(entries),
	})
}

// isConfigured reports whether a worker owns a device with the given name.
// An empty worker matches any worker.
func (s *Server) isConfigured(worker, name string) bool {
	for _, d := range s.gateway.Devices() {
		if d.Name == name && (worker == "" || d.Worker == worker) {
			return true
		}
	}
	return false
}

// parseHistoryLimit parses the limit parameter with defaults and bounds.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}

// parseSinceParam parses the since parameter as RFC3339/RFC3339Nano.
func parseSinceParam(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Parse(time.RFC3339, raw)
	}
	return t, nil
}
