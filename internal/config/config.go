// Package config loads restack configuration: defaults, then the YAML
// file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/restackio/restack/internal/fsutil"
	"github.com/restackio/restack/internal/model"
)

// DefaultPath is the config file looked up when none is given.
const DefaultPath = "restack.yaml"

// Load builds the effective configuration. A missing file is not an
// error; a present but malformed one is.
func Load(path string) (*model.Config, error) {
	// A .env file in the working directory feeds the env overrides.
	_ = godotenv.Load()

	cfg := model.DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := fsutil.ReadYAML(path, &cfg); err != nil {
			return nil, err
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnv(cfg *model.Config) {
	cfg.Logging.Level = getEnv("RESTACK_LOG_LEVEL", cfg.Logging.Level)
	cfg.Orchestrator.MaxConcurrentFiles = getEnvInt("RESTACK_MAX_CONCURRENT", cfg.Orchestrator.MaxConcurrentFiles)

	cfg.JobStore.Backend = getEnv("RESTACK_JOB_STORE", cfg.JobStore.Backend)
	cfg.JobStore.RedisAddr = getEnv("REDIS_ADDR", cfg.JobStore.RedisAddr)
	cfg.JobStore.RedisPassword = getEnv("REDIS_PASSWORD", cfg.JobStore.RedisPassword)
	cfg.JobStore.RedisDB = getEnvInt("REDIS_DB", cfg.JobStore.RedisDB)
	cfg.JobStore.RedisPrefix = getEnv("REDIS_PREFIX", cfg.JobStore.RedisPrefix)

	cfg.History.Backend = getEnv("RESTACK_HISTORY", cfg.History.Backend)
	cfg.History.DatabaseURL = getEnv("DATABASE_URL", cfg.History.DatabaseURL)

	cfg.Workspace.S3Bucket = getEnv("S3_BUCKET", cfg.Workspace.S3Bucket)
	cfg.Workspace.S3Region = getEnvWithFallback("S3_REGION", "AWS_DEFAULT_REGION", cfg.Workspace.S3Region)
	cfg.Workspace.S3AccessKey = getEnvWithFallback("S3_KEY", "AWS_ACCESS_KEY_ID", cfg.Workspace.S3AccessKey)
	cfg.Workspace.S3SecretKey = getEnvWithFallback("S3_SECRET", "AWS_SECRET_ACCESS_KEY", cfg.Workspace.S3SecretKey)
	cfg.Workspace.S3Endpoint = getEnv("S3_ENDPOINT", cfg.Workspace.S3Endpoint)

	cfg.Telemetry.Endpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.Telemetry.Endpoint)
}

func validate(cfg *model.Config) error {
	if cfg.Orchestrator.MaxConcurrentFiles < 1 {
		return fmt.Errorf("orchestrator.max_concurrent_files must be >= 1, got %d", cfg.Orchestrator.MaxConcurrentFiles)
	}
	if cfg.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must be >= 0, got %d", cfg.Retry.MaxRetries)
	}
	switch cfg.JobStore.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("job_store.backend must be memory or redis, got %q", cfg.JobStore.Backend)
	}
	switch cfg.History.Backend {
	case "memory", "postgres":
	default:
		return fmt.Errorf("history.backend must be memory or postgres, got %q", cfg.History.Backend)
	}
	switch cfg.Orchestrator.OnDependencyFailure {
	case "", model.DependencyFailureRun, model.DependencyFailureSkip:
	default:
		return fmt.Errorf("orchestrator.on_dependency_failure must be run or skip, got %q", cfg.Orchestrator.OnDependencyFailure)
	}
	if cfg.JobStore.Backend == "redis" && cfg.JobStore.RedisAddr == "" {
		return fmt.Errorf("job_store.redis_addr is required for the redis backend")
	}
	if cfg.History.Backend == "postgres" && cfg.History.DatabaseURL == "" {
		return fmt.Errorf("history.database_url is required for the postgres backend")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvWithFallback(key, legacyKey, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	if v := os.Getenv(legacyKey); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
