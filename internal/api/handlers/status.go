package handlers

import (
	"log/slog"
	"net/http"

	"smarther2mqtt/internal/bridge"
	"smarther2mqtt/internal/netatmo"
	"smarther2mqtt/internal/thermostat"

	"github.com/gin-gonic/gin"
)

// CommandState exposes the pending command of the debouncer
type CommandState interface {
	Snapshot() thermostat.State
}

// RoomState exposes the last polled room status
type RoomState interface {
	Latest() (bridge.Snapshot, bool)
}

// TokenState exposes the credential situation
type TokenState interface {
	Exists() bool
}

// FlowState exposes the authorization flow state
type FlowState interface {
	State() netatmo.FlowState
}

// StatusHandler reports the bridge state
type StatusHandler struct {
	commands CommandState
	room     RoomState
	token    TokenState
	flow     FlowState
	logger   *slog.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(commands CommandState, room RoomState, token TokenState, flow FlowState, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		commands: commands,
		room:     room,
		token:    token,
		flow:     flow,
		logger:   logger,
	}
}

// GetStatus returns the pending command, the last room reading and the token status
// GET /v1/status
func (h *StatusHandler) GetStatus(c *gin.Context) {
	response := gin.H{
		"token": gin.H{
			"configured":    h.token.Exists(),
			"authorization": h.flow.State().String(),
		},
		"command": h.commands.Snapshot(),
		"room":    nil,
	}

	if snap, ok := h.room.Latest(); ok {
		response["room"] = snap
	}

	c.JSON(http.StatusOK, response)
}
