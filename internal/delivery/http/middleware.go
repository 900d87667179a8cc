package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// originMatcher is one compiled allowed-origins entry. A trailing "*" in the
// configured entry turns it into a prefix match, e.g. "http://localhost:*"
// admits any local port.
type originMatcher struct {
	exact  string
	prefix string // non-empty for wildcard entries
}

// CORSMiddleware grants cross-origin access to the configured dashboard
// origins. The API only serves GET and POST, so preflight answers advertise
// exactly those.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	matchers := compileOriginMatchers(allowedOrigins)

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" && originAllowed(origin, matchers) {
			header := c.Writer.Header()
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Access-Control-Allow-Credentials", "true")
			header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			header.Set("Access-Control-Max-Age", "3600")
			header.Add("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func compileOriginMatchers(origins []string) []originMatcher {
	matchers := make([]originMatcher, 0, len(origins))
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if origin == "" {
			continue
		}
		if strings.HasSuffix(origin, "*") {
			matchers = append(matchers, originMatcher{prefix: strings.TrimSuffix(origin, "*")})
			continue
		}
		matchers = append(matchers, originMatcher{exact: origin})
	}
	return matchers
}

func originAllowed(origin string, matchers []originMatcher) bool {
	for _, m := range matchers {
		if m.prefix != "" {
			if strings.HasPrefix(origin, m.prefix) {
				return true
			}
			continue
		}
		if origin == m.exact {
			return true
		}
	}
	return false
}

// LoggerMiddleware logs requests (simple version for now)
func LoggerMiddleware() gin.HandlerFunc {
	return gin.Logger()
}

// RecoveryMiddleware recovers from panics
func RecoveryMiddleware() gin.HandlerFunc {
	return gin.Recovery()
}
