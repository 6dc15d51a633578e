package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PratikDhanave/machine-events-service/internal/auth"
	"github.com/PratikDhanave/machine-events-service/internal/config"
	"github.com/PratikDhanave/machine-events-service/internal/ingest"
	"github.com/PratikDhanave/machine-events-service/internal/stats"
	"github.com/PratikDhanave/machine-events-service/internal/store"
)

type unreachableLedger struct{ *store.MemoryLedger }

func (unreachableLedger) Ping(context.Context) error { return errors.New("connection refused") }

func testConfig() config.Config {
	return config.Config{
		APIKeys:            map[string]string{"k1": "tenant1", "k2": "tenant2"},
		RateLimitRPS:       1,
		RateLimitBurst:     2,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		ServiceName:        "machine-events-test",
	}
}

func newTestRouter(ledger store.Ledger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(testConfig(), Deps{
		Ledger:     ledger,
		Ingest:     ingest.NewService(ingest.NewReconciler(ledger)),
		Aggregator: stats.NewAggregator(ledger),
		Ranker:     stats.NewRanker(ledger),
	})
}

func do(h http.Handler, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader("[]"))
	if key != "" {
		req.Header.Set(auth.HeaderAPIKey, key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	rec := do(newTestRouter(store.NewMemoryLedger()), http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReady(t *testing.T) {
	assert.Equal(t, http.StatusOK, do(newTestRouter(store.NewMemoryLedger()), http.MethodGet, "/ready", "").Code)

	rec := do(newTestRouter(unreachableLedger{store.NewMemoryLedger()}), http.MethodGet, "/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not_ready")
}

func TestMetricsIsPublic(t *testing.T) {
	r := newTestRouter(store.NewMemoryLedger())
	// touch an ingest path so the collectors have samples
	do(r, http.MethodPost, "/events/batch", "k1")

	rec := do(r, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "machine_events_ingest_batch_duration_seconds")
}

func TestEventRoutesRequireAPIKey(t *testing.T) {
	r := newTestRouter(store.NewMemoryLedger())

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/events/batch", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/events/stats", "bogus").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/events/batch", "k1").Code)
}

func TestRateLimitIsPerTenant(t *testing.T) {
	r := newTestRouter(store.NewMemoryLedger())

	for i := 0; i < 2; i++ {
		require.Equal(t, http.StatusOK, do(r, http.MethodPost, "/events/batch", "k1").Code)
	}
	rec := do(r, http.MethodPost, "/events/batch", "k1")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/events/batch", "k2").Code)
}

func TestTenantLimiterRefills(t *testing.T) {
	l := newTenantLimiter(1000, 1)
	assert.True(t, l.allow("t"))
	assert.False(t, l.allow("t"))
	time.Sleep(5 * time.Millisecond)
	assert.True(t, l.allow("t"))
}

func TestNewHandler_CORSPreflight(t *testing.T) {
	h := NewHandler(testConfig(), newTestRouter(store.NewMemoryLedger()))

	req := httptest.NewRequest(http.MethodOptions, "/events/batch", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", auth.HeaderAPIKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
}
