package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const skipLoggingKey = "skip_logging"

// browserProbes are requested by browsers on their own while the operator
// has the authorization page open
var browserProbes = []string{
	"/favicon.ico",
	"/robots.txt",
	"/apple-touch-icon",
}

// NoiseFilter marks requests that should only be logged at debug level:
// frequently polled paths (health checks, metric scrapes) and browser probes.
func NoiseFilter(quietPaths ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if isNoisePath(c.Request.URL.Path, quietPaths) {
			c.Set(skipLoggingKey, true)
		}
		c.Next()
	}
}

func isNoisePath(path string, quietPaths []string) bool {
	lowercasePath := strings.ToLower(path)
	for _, quiet := range quietPaths {
		if lowercasePath == quiet {
			return true
		}
	}
	for _, probe := range browserProbes {
		if strings.HasPrefix(lowercasePath, probe) {
			return true
		}
	}
	return false
}
