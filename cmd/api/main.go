package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/PratikDhanave/machine-events-service/internal/config"
	"github.com/PratikDhanave/machine-events-service/internal/httpserver"
	"github.com/PratikDhanave/machine-events-service/internal/ingest"
	"github.com/PratikDhanave/machine-events-service/internal/logging"
	"github.com/PratikDhanave/machine-events-service/internal/stats"
	"github.com/PratikDhanave/machine-events-service/internal/store"
	"github.com/PratikDhanave/machine-events-service/internal/telemetry"
)

// main boots the service: config → tracing → ledger → report cache → HTTP server.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	shutdownTracer := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			logging.Errorf("tracer shutdown: %v", err)
		}
	}()

	ledger, closeLedger, err := openLedger(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer closeLedger()

	var statsOpts []stats.Option
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		statsOpts = append(statsOpts, stats.WithCache(stats.NewRedisCache(rdb, cfg.ReportCacheTTL)))
		logging.Infof("report cache: redis at %s, ttl %s", cfg.RedisAddr, cfg.ReportCacheTTL)
	}

	gin.SetMode(gin.ReleaseMode)
	router := httpserver.NewRouter(cfg, httpserver.Deps{
		Ledger:     ledger,
		Ingest:     ingest.NewService(ingest.NewReconciler(ledger)),
		Aggregator: stats.NewAggregator(ledger, statsOpts...),
		Ranker:     stats.NewRanker(ledger, statsOpts...),
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      httpserver.NewHandler(cfg, router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.Infof("server started on %s (ledger: %s)", cfg.HTTPAddr, cfg.LedgerBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logging.Infof("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Errorf("forced shutdown: %v", err)
	}
}

// openLedger connects the configured backend. Postgres gets its schema
// migrated before the server accepts traffic.
func openLedger(ctx context.Context, cfg config.Config) (store.Ledger, func(), error) {
	if cfg.LedgerBackend == config.BackendMemory {
		logging.Warnf("using in-memory ledger; events are lost on restart")
		return store.NewMemoryLedger(), func() {}, nil
	}

	db, err := store.NewPostgresLedger(ctx, cfg.DBURL)
	if err != nil {
		return nil, nil, err
	}
	if err := db.EnsureSchema(); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, db.Close, nil
}
