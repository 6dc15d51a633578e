package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"github.com/PratikDhanave/machine-events-service/internal/auth"
	"github.com/PratikDhanave/machine-events-service/internal/config"
	"github.com/PratikDhanave/machine-events-service/internal/handlers"
	"github.com/PratikDhanave/machine-events-service/internal/ingest"
	"github.com/PratikDhanave/machine-events-service/internal/stats"
	"github.com/PratikDhanave/machine-events-service/internal/store"
	"github.com/PratikDhanave/machine-events-service/internal/telemetry"
)

// Deps are the collaborators the router serves.
type Deps struct {
	Ledger     store.Ledger
	Ingest     *ingest.Service
	Aggregator *stats.Aggregator
	Ranker     *stats.Ranker
}

// NewRouter wires public endpoints and authenticated APIs.
// Public: /health, /ready, /metrics
// Authenticated and rate limited per tenant: /events/batch, /events/stats/*
func NewRouter(cfg config.Config, deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness: confirms the ledger is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := deps.Ledger.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authGroup := r.Group("/")
	authGroup.Use(
		auth.APIKeyMiddleware(cfg.APIKeys),
		newTenantLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst).middleware(),
	)

	handlers.RegisterEventRoutes(authGroup, deps.Ingest)
	handlers.RegisterStatsRoutes(authGroup, deps.Aggregator, deps.Ranker)

	return r
}

// NewHandler wraps the router with CORS and request tracing.
func NewHandler(cfg config.Config, router http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", auth.HeaderAPIKey},
	})
	return telemetry.WrapHandler(cfg.ServiceName, c.Handler(router))
}
