// Package health provides health check handlers for the sync service.
//
// /health reports every dependency with details; /ready only answers
// whether the service can take work: the database is reachable and each
// gateway admin API answers.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

// Database is the database side of the checks.
type Database interface {
	Health(ctx context.Context) map[string]interface{}
	Ping(ctx context.Context) error
}

// Check probes one dependency.
type Check func(ctx context.Context) error

// Handler provides HTTP handlers for health checks.
type Handler struct {
	db      Database
	version string

	// checks run on /health; required checks also gate /ready.
	checks   map[string]Check
	required map[string]bool
}

// NewHandler creates a new health check handler.
func NewHandler(db Database, version string) *Handler {
	return &Handler{
		db:       db,
		version:  version,
		checks:   make(map[string]Check),
		required: make(map[string]bool),
	}
}

// AddCheck registers a named check. Required checks must pass for /ready.
func (h *Handler) AddCheck(name string, check Check, required bool) {
	h.checks[name] = check
	h.required[name] = required
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string                 `json:"status"` // "healthy" or "unhealthy"
	Version  string                 `json:"version,omitempty"`
	Uptime   string                 `json:"uptime,omitempty"`
	Database map[string]interface{} `json:"database"`
	Checks   map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult represents the result of an individual health check.
type CheckResult struct {
	Status  string `json:"status"` // "pass" or "fail"
	Message string `json:"message,omitempty"`
}

var startTime = time.Now()

// Health handles the /health endpoint.
//
// Returns 200 if the database and every required check pass, 503 otherwise.
// Optional checks are reported but never fail the response.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	dbHealth := h.db.Health(ctx)

	overallStatus := "healthy"
	statusCode := http.StatusOK
	if dbHealth["status"] != "healthy" {
		overallStatus = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	checks := map[string]CheckResult{
		"database": {
			Status:  getCheckStatus(dbHealth["status"]),
			Message: getCheckMessage(dbHealth),
		},
	}
	for _, name := range h.names() {
		res := run(ctx, h.checks[name])
		checks[name] = res
		if res.Status == "fail" && h.required[name] {
			overallStatus = "unhealthy"
			statusCode = http.StatusServiceUnavailable
		}
	}

	response := HealthResponse{
		Status:   overallStatus,
		Version:  h.version,
		Uptime:   formatDuration(time.Since(startTime)),
		Database: dbHealth,
		Checks:   checks,
	}

	log.Debug().
		Str("component", "health").
		Str("status", overallStatus).
		Str("remote_addr", r.RemoteAddr).
		Msg("Health check requested")

	writeJSON(w, statusCode, response)
}

// Ready handles the /ready endpoint.
//
// Returns 200 if the database and every required check pass, 503 otherwise.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		log.Warn().
			Err(err).
			Str("component", "health").
			Msg("Readiness check failed: database not reachable")

		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "database unavailable",
		})
		return
	}

	for _, name := range h.names() {
		if !h.required[name] {
			continue
		}
		if res := run(ctx, h.checks[name]); res.Status == "fail" {
			log.Warn().
				Str("component", "health").
				Str("check", name).
				Str("error", res.Message).
				Msg("Readiness check failed")

			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"reason": name + " unavailable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) names() []string {
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func run(ctx context.Context, check Check) CheckResult {
	if err := check(ctx); err != nil {
		return CheckResult{Status: "fail", Message: err.Error()}
	}
	return CheckResult{Status: "pass", Message: "operational"}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Str("component", "health").Msg("Failed to encode health response")
	}
}

// getCheckStatus converts a health status to a check status.
func getCheckStatus(status interface{}) string {
	if s, ok := status.(string); ok && s == "healthy" {
		return "pass"
	}
	return "fail"
}

// getCheckMessage extracts a message from health check results.
func getCheckMessage(health map[string]interface{}) string {
	if err, ok := health["error"].(string); ok {
		return err
	}
	return "operational"
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
