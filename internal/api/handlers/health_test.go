package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smarther2mqtt/internal/bridge"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRoom struct {
	snapshot bridge.Snapshot
	ok       bool
}

func (s stubRoom) Latest() (bridge.Snapshot, bool) { return s.snapshot, s.ok }

func getHealth(t *testing.T, h *HealthHandler) (int, map[string]interface{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", h.GetHealth)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealth(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		room       RoomState
		wantCode   int
		wantStatus string
	}{
		{"no poller", nil, http.StatusOK, HealthUp},
		{"no poll yet", stubRoom{}, http.StatusOK, HealthStarting},
		{"fresh", stubRoom{snapshot: bridge.Snapshot{PolledAt: now.Add(-time.Minute)}, ok: true}, http.StatusOK, HealthUp},
		{"stale", stubRoom{snapshot: bridge.Snapshot{PolledAt: now.Add(-time.Hour)}, ok: true}, http.StatusServiceUnavailable, HealthStale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler(tt.room, 10*time.Minute)
			h.now = func() time.Time { return now }

			code, body := getHealth(t, h)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, body["status"])
			assert.Equal(t, "smarther2mqtt", body["service"])
		})
	}
}

func TestHealth_NoFreshnessCheck(t *testing.T) {
	h := NewHealthHandler(stubRoom{snapshot: bridge.Snapshot{PolledAt: time.Unix(0, 0)}, ok: true}, 0)
	code, body := getHealth(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, HealthUp, body["status"])
}
