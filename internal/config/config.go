// Package config provides configuration management for the export engine
// process. Configuration is loaded from environment variables (.env file
// optional); per-tenant credentials are resolved at dispatch time and are
// not part of process config since the engine serves many tenants.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	DataDir  string // base directory for runs.db / rates.db (always absolute)
	Port     int    // HTTP server port
	LogLevel string // debug, info, warn, error
	DevMode  bool

	// RateBudgetCalls and RateBudgetWindow define the default per-token
	// upstream rate budget (spec §4.1 operational default: 100 per 60s).
	RateBudgetCalls  int
	RateBudgetWindow time.Duration

	// RecordCeiling is loaded from FETCH_RECORD_CEILING. It is not passed to
	// the dispatcher; fetches use fetch.DefaultRecordCeiling.
	RecordCeiling int

	// StaleRunThreshold is how long a run may sit in pending/running before
	// the sweeper marks it failed with StuckRun (spec §4.8, default 15m).
	StaleRunThreshold time.Duration

	// RunWallClock is the per-run cancellation ceiling (spec §5).
	RunWallClock time.Duration

	// PivotCurrency is the currency the exchange-rate provider quotes
	// all other currencies against.
	PivotCurrency string

	// S3Bucket / S3Region configure the default spreadsheet-writer adapter.
	S3Bucket string
	S3Region string

	// ConfigsFile points at the JSON file the ConfigStore loads Export
	// Configurations from. Empty means no configurations are dispatchable
	// until one is loaded by some other means.
	ConfigsFile string

	// TenantTokens maps tenantId to its upstream API token, used by the
	// per-tenant upstream client factory. Loaded from
	// EXPORTENGINE_TENANT_TOKENS as "tenant:token,tenant2:token2".
	TenantTokens map[string]string

	// UpstreamBaseURL is the shared upstream API base URL across tenants.
	UpstreamBaseURL string
}

// Load reads configuration from environment variables.
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("EXPORTENGINE_DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:           absDataDir,
		Port:              getEnvAsInt("PORT", 8080),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		DevMode:           getEnvAsBool("DEV_MODE", false),
		RateBudgetCalls:   getEnvAsInt("UPSTREAM_RATE_BUDGET_CALLS", 100),
		RateBudgetWindow:  time.Duration(getEnvAsInt("UPSTREAM_RATE_BUDGET_WINDOW_SECONDS", 60)) * time.Second,
		RecordCeiling:     getEnvAsInt("FETCH_RECORD_CEILING", 10000),
		StaleRunThreshold: time.Duration(getEnvAsInt("STALE_RUN_THRESHOLD_MINUTES", 15)) * time.Minute,
		RunWallClock:      time.Duration(getEnvAsInt("RUN_WALL_CLOCK_MINUTES", 10)) * time.Minute,
		PivotCurrency:     getEnv("FXRATE_PIVOT_CURRENCY", "EUR"),
		S3Bucket:          getEnv("EXPORT_S3_BUCKET", ""),
		S3Region:          getEnv("EXPORT_S3_REGION", "eu-central-1"),
		ConfigsFile:       getEnv("EXPORTENGINE_CONFIGS_FILE", ""),
		TenantTokens:      parseTenantTokens(getEnv("EXPORTENGINE_TENANT_TOKENS", "")),
		UpstreamBaseURL:   getEnv("EXPORTENGINE_UPSTREAM_BASE_URL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks invariants on loaded configuration.
func (c *Config) Validate() error {
	if c.RateBudgetCalls <= 0 {
		return fmt.Errorf("invalid rate budget calls: %d", c.RateBudgetCalls)
	}
	if c.RateBudgetWindow <= 0 {
		return fmt.Errorf("invalid rate budget window: %s", c.RateBudgetWindow)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// parseTenantTokens decodes "tenant:token,tenant2:token2" into a lookup map.
func parseTenantTokens(raw string) map[string]string {
	tokens := make(map[string]string)
	if raw == "" {
		return tokens
	}
	for _, pair := range strings.Split(raw, ",") {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 || parts[0] == "" {
			continue
		}
		tokens[parts[0]] = parts[1]
	}
	return tokens
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
