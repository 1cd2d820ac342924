package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Health states
const (
	HealthUp       = "UP"
	HealthStarting = "STARTING"
	HealthStale    = "STALE"
)

// HealthHandler reports whether the poll loop is keeping the room state fresh
type HealthHandler struct {
	room       RoomState
	staleAfter time.Duration
	now        func() time.Time
}

// NewHealthHandler creates a health handler. A zero staleAfter disables the
// freshness check.
func NewHealthHandler(room RoomState, staleAfter time.Duration) *HealthHandler {
	return &HealthHandler{
		room:       room,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// GetHealth returns the health status of the service
// GET /health
func (h *HealthHandler) GetHealth(c *gin.Context) {
	status, code := HealthUp, http.StatusOK
	response := gin.H{"service": "smarther2mqtt"}

	if h.room != nil {
		snapshot, ok := h.room.Latest()
		switch {
		case !ok:
			status = HealthStarting
		case h.staleAfter > 0 && h.now().Sub(snapshot.PolledAt) > h.staleAfter:
			status, code = HealthStale, http.StatusServiceUnavailable
			response["last_poll"] = snapshot.PolledAt
		default:
			response["last_poll"] = snapshot.PolledAt
		}
	}

	response["status"] = status
	c.JSON(code, response)
}
