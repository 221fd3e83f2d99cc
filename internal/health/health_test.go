package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type fakeDB struct {
	err error
}

func (f fakeDB) Health(context.Context) map[string]interface{} {
	if f.err != nil {
		return map[string]interface{}{"status": "unhealthy", "error": f.err.Error()}
	}
	return map[string]interface{}{"status": "healthy"}
}

func (f fakeDB) Ping(context.Context) error {
	return f.err
}

func pass(context.Context) error { return nil }

func fail(context.Context) error { return errors.New("connection refused") }

func TestHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		db         fakeDB
		gateway    Check
		redis      Check
		wantStatus int
	}{
		{"all healthy", fakeDB{}, pass, pass, http.StatusOK},
		{"database down", fakeDB{err: errors.New("db down")}, pass, pass, http.StatusServiceUnavailable},
		{"gateway down", fakeDB{}, fail, pass, http.StatusServiceUnavailable},
		{"optional redis down", fakeDB{}, pass, fail, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(tt.db, "test")
			h.AddCheck("gateway_sandbox", tt.gateway, true)
			h.AddCheck("redis", tt.redis, false)

			rec := httptest.NewRecorder()
			h.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			var resp HealthResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if len(resp.Checks) != 3 {
				t.Errorf("expected database, gateway and redis checks, got %v", resp.Checks)
			}
			if resp.Version != "test" {
				t.Errorf("unexpected version %q", resp.Version)
			}
		})
	}
}

func TestHandler_Ready(t *testing.T) {
	tests := []struct {
		name       string
		db         fakeDB
		gateway    Check
		wantStatus int
	}{
		{"ready", fakeDB{}, pass, http.StatusOK},
		{"database down", fakeDB{err: errors.New("db down")}, pass, http.StatusServiceUnavailable},
		{"gateway down", fakeDB{}, fail, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(tt.db, "")
			h.AddCheck("gateway_sandbox", tt.gateway, true)
			h.AddCheck("redis", fail, false)

			rec := httptest.NewRecorder()
			h.Ready(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{3*time.Minute + 2*time.Second, "3m 2s"},
		{2*time.Hour + 5*time.Minute, "2h 5m 0s"},
		{50 * time.Hour, "2d 2h 0m 0s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
