package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config contains runtime configuration required by the service.
type Config struct {
	HTTPAddr      string
	DBURL         string
	LedgerBackend string
	APIKeys       map[string]string // apiKey -> tenantID

	RedisAddr      string
	ReportCacheTTL time.Duration

	RateLimitRPS   float64
	RateLimitBurst int

	CORSAllowedOrigins []string

	ServiceName  string
	OTLPEndpoint string
}

// Load reads config.yaml from CONFIG_PATH (optional) and environment
// variables, which take precedence.
// API_KEYS format: "tenant1:key1,tenant2:key2"
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	if p := v.GetString("CONFIG_PATH"); p != "" {
		v.AddConfigPath(p)
	}

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("REPORT_CACHE_TTL", "5s")
	v.SetDefault("RATE_LIMIT_RPS", 50.0)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000")
	v.SetDefault("SERVICE_NAME", "machine-events-service")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	apiKeys, err := parseAPIKeys(v.GetString("API_KEYS"))
	if err != nil {
		return Config{}, err
	}

	// Local dev fallback so the service runs out-of-the-box.
	if len(apiKeys) == 0 {
		apiKeys["tenant-key-123"] = "tenant1"
	}

	dbURL := strings.TrimSpace(v.GetString("DB_URL"))
	backend := strings.TrimSpace(v.GetString("LEDGER_BACKEND"))
	if backend == "" {
		backend = BackendMemory
		if dbURL != "" {
			backend = BackendPostgres
		}
	}

	cfg := Config{
		HTTPAddr:           v.GetString("HTTP_ADDR"),
		DBURL:              dbURL,
		LedgerBackend:      backend,
		APIKeys:            apiKeys,
		RedisAddr:          strings.TrimSpace(v.GetString("REDIS_ADDR")),
		ReportCacheTTL:     v.GetDuration("REPORT_CACHE_TTL"),
		RateLimitRPS:       v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst:     v.GetInt("RATE_LIMIT_BURST"),
		CORSAllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		ServiceName:        v.GetString("SERVICE_NAME"),
		OTLPEndpoint:       strings.TrimSpace(v.GetString("OTEL_EXPORTER_OTLP_ENDPOINT")),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects combinations the service cannot start with.
func (c Config) Validate() error {
	switch c.LedgerBackend {
	case BackendPostgres:
		if c.DBURL == "" {
			return errors.New("DB_URL required for postgres ledger")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("LEDGER_BACKEND must be %q or %q", BackendPostgres, BackendMemory)
	}

	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be > 0")
	}
	if c.ReportCacheTTL < 0 {
		return errors.New("REPORT_CACHE_TTL must not be negative")
	}
	return nil
}

func parseAPIKeys(raw string) (map[string]string, error) {
	apiKeys := map[string]string{}

	for _, p := range strings.Split(strings.TrimSpace(raw), ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		parts := strings.SplitN(p, ":", 2)
		if len(parts) != 2 {
			return nil, errors.New(`API_KEYS must be "tenant:key,tenant:key"`)
		}
		tenant := strings.TrimSpace(parts[0])
		key := strings.TrimSpace(parts[1])
		if tenant == "" || key == "" {
			return nil, errors.New(`API_KEYS must be "tenant:key,tenant:key"`)
		}
		apiKeys[key] = tenant
	}

	return apiKeys, nil
}

func splitList(raw string) []string {
	out := []string{}
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
