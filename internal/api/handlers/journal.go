package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"smarther2mqtt/internal/storage"

	"github.com/gin-gonic/gin"
)

const maxJournalLimit = 500

// JournalHandler serves the command journal
type JournalHandler struct {
	journal storage.Journal
	logger  *slog.Logger
}

// NewJournalHandler creates a new journal handler
func NewJournalHandler(journal storage.Journal, logger *slog.Logger) *JournalHandler {
	return &JournalHandler{
		journal: journal,
		logger:  logger,
	}
}

// ListCommands returns the most recent setpoint commands
// GET /v1/journal?limit=N
func (h *JournalHandler) ListCommands(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxJournalLimit {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "limit must be between 1 and " + strconv.Itoa(maxJournalLimit),
				"code":  "INVALID_REQUEST",
			})
			return
		}
		limit = n
	}

	entries, err := h.journal.ListCommands(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("Failed to list commands",
			"component", "api.journal",
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retrieve journal",
			"code":  "INTERNAL_ERROR",
		})
		return
	}

	if entries == nil {
		entries = []*storage.JournalEntry{}
	}

	c.JSON(http.StatusOK, gin.H{
		"commands": entries,
		"count":    len(entries),
	})
}
