package api

import (
	"log/slog"
	"net/http"
	"time"

	"smarther2mqtt/internal/api/handlers"
	"smarther2mqtt/internal/api/middleware"
	"smarther2mqtt/internal/storage"

	"github.com/gin-gonic/gin"
)

// RouterConfig holds dependencies for the status router
type RouterConfig struct {
	Commands   handlers.CommandState
	Room       handlers.RoomState
	Token      handlers.TokenState
	Flow       handlers.FlowState
	Journal    storage.Journal // Optional: journal route is only registered when set
	Metrics    http.Handler    // Optional
	APIKey     string          // Optional: protects /v1 when set
	StaleAfter time.Duration   // Optional: /health reports STALE past this poll age
	Logger     *slog.Logger
}

// NewRouter creates and configures the Gin router
func NewRouter(config RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(config.Logger))
	router.Use(middleware.NoiseFilter("/health", "/metrics"))
	router.Use(middleware.Logging(config.Logger))

	// Health check (no auth)
	healthHandler := handlers.NewHealthHandler(config.Room, config.StaleAfter)
	router.GET("/health", healthHandler.GetHealth)

	if config.Metrics != nil {
		router.GET("/metrics", gin.WrapH(config.Metrics))
	}

	v1 := router.Group("/v1")
	if config.APIKey != "" {
		v1.Use(authMiddleware(config.APIKey))
	}
	{
		statusHandler := handlers.NewStatusHandler(
			config.Commands,
			config.Room,
			config.Token,
			config.Flow,
			config.Logger,
		)
		v1.GET("/status", statusHandler.GetStatus)

		if config.Journal != nil {
			journalHandler := handlers.NewJournalHandler(config.Journal, config.Logger)
			v1.GET("/journal", journalHandler.ListCommands)
		}
	}

	return router
}

// authMiddleware verifies API key authentication
func authMiddleware(apiKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		providedKey := c.GetHeader("X-Smarther-Key")
		if providedKey != apiKey {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Unauthorized",
				"code":  "UNAUTHORIZED",
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
