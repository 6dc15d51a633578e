package httpserver

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/PratikDhanave/machine-events-service/internal/auth"
	"github.com/PratikDhanave/machine-events-service/internal/logging"
)

// accessLog writes one line per request once the handler chain returns.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.Infof("[HTTP] %s %s %d %s from %s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), c.ClientIP())
	}
}

// tenantLimiter hands out one token bucket per tenant.
type tenantLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newTenantLimiter(rps float64, burst int) *tenantLimiter {
	return &tenantLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

func (l *tenantLimiter) allow(tenantID string) bool {
	l.mu.Lock()
	limiter, ok := l.limiters[tenantID]
	if !ok {
		limiter = rate.NewLimiter(l.rps, l.burst)
		l.limiters[tenantID] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// middleware must run after auth.APIKeyMiddleware.
func (l *tenantLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(auth.TenantID(c)) {
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}
