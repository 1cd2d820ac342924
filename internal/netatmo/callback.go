package netatmo

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"smarther2mqtt/internal/api/middleware"

	"github.com/gin-gonic/gin"
)

const confirmationPage = `<html><head><title>smarther2mqtt</title></head>` +
	`<body><p>Authorization successfully acquired. You can now close this tab/window.</p></body></html>`

const callbackShutdownTimeout = 2 * time.Second

// callbackListener is the short-lived HTTP endpoint that receives the
// authorization code. Codes are handed over through a one-slot channel.
type callbackListener struct {
	server *http.Server
	codes  chan string
	logger *slog.Logger
}

// newCallbackRouter builds the two routes of the callback listener
func newCallbackRouter(authorizeURL string, codes chan<- string, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.NoiseFilter())
	router.Use(middleware.Logging(logger))

	router.GET("/authorize", func(c *gin.Context) {
		logger.Debug("Redirecting to Netatmo authorization page", "url", authorizeURL)
		c.Redirect(http.StatusMovedPermanently, authorizeURL)
	})

	router.GET("/token", func(c *gin.Context) {
		code := c.Query("code")
		if code == "" {
			logger.Debug("Token callback without code - no actions taken", "query", c.Request.URL.RawQuery)
			c.Status(http.StatusNotFound)
			return
		}

		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(confirmationPage))

		select {
		case codes <- code:
			logger.Debug("Authorization code acquired")
		default:
			logger.Warn("Authorization code already received, ignoring duplicate")
		}
	})

	router.NoRoute(func(c *gin.Context) {
		logger.Debug("Unexpected URL - no actions taken", "path", c.Request.URL.Path)
		c.Status(http.StatusNotFound)
	})

	return router
}

// startCallbackListener binds addr and serves the callback routes in the background
func startCallbackListener(addr, authorizeURL string, logger *slog.Logger) (*callbackListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	codes := make(chan string, 1)
	cl := &callbackListener{
		server: &http.Server{
			Handler:           newCallbackRouter(authorizeURL, codes, logger),
			ReadHeaderTimeout: 10 * time.Second,
		},
		codes:  codes,
		logger: logger,
	}

	go func() {
		if err := cl.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Callback listener stopped", "error", err)
		}
	}()

	return cl, nil
}

// Shutdown stops the listener
func (cl *callbackListener) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), callbackShutdownTimeout)
	defer cancel()
	if err := cl.server.Shutdown(ctx); err != nil {
		cl.logger.Warn("Callback listener shutdown failed", "error", err)
	}
}
