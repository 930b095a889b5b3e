package model

type Config struct {
	Project      ProjectConfig      `yaml:"project"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Retry        RetryConfig        `yaml:"retry"`
	JobStore     JobStoreConfig     `yaml:"job_store"`
	History      HistoryConfig      `yaml:"history"`
	Workspace    WorkspaceConfig    `yaml:"workspace"`
	Logging      LoggingConfig      `yaml:"logging"`
	Telemetry    TelemetryConfig    `yaml:"telemetry"`
}

type ProjectConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// DependencyFailurePolicy controls whether a task runs when one of its
// declared dependencies failed.
type DependencyFailurePolicy string

const (
	DependencyFailureRun  DependencyFailurePolicy = "run"
	DependencyFailureSkip DependencyFailurePolicy = "skip"
)

type OrchestratorConfig struct {
	MaxConcurrentFiles    int                     `yaml:"max_concurrent_files"`
	PreserveContext       bool                    `yaml:"preserve_context"`
	ValidateResults       bool                    `yaml:"validate_results"`
	OnDependencyFailure   DependencyFailurePolicy `yaml:"on_dependency_failure"`
	RejectOutputConflicts bool                    `yaml:"reject_output_conflicts"`
	WatchSourceTree       bool                    `yaml:"watch_source_tree"`
}

type RetryConfig struct {
	Enabled            bool `yaml:"enabled"`
	MaxRetries         int  `yaml:"max_retries"`
	BaseDelayMs        int  `yaml:"base_delay_ms"`
	ExponentialBackoff bool `yaml:"exponential_backoff"`
	MaxDelayMs         int  `yaml:"max_delay_ms"`
	Jitter             bool `yaml:"jitter"`
}

type JobStoreConfig struct {
	Backend       string `yaml:"backend"` // "memory" or "redis"
	RedisAddr     string `yaml:"redis_addr"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix"`
}

type HistoryConfig struct {
	Backend     string `yaml:"backend"` // "memory" or "postgres"
	DatabaseURL string `yaml:"database_url"`
}

type WorkspaceConfig struct {
	S3Bucket       string `yaml:"s3_bucket"`
	S3Region       string `yaml:"s3_region"`
	S3AccessKey    string `yaml:"s3_access_key"`
	S3SecretKey    string `yaml:"s3_secret_key"`
	S3Endpoint     string `yaml:"s3_endpoint"`
	S3UsePathStyle bool   `yaml:"s3_use_path_style"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Orchestrator: OrchestratorConfig{
			MaxConcurrentFiles:  5,
			PreserveContext:     true,
			ValidateResults:     true,
			OnDependencyFailure: DependencyFailureRun,
		},
		Retry: RetryConfig{
			Enabled:            true,
			MaxRetries:         2,
			BaseDelayMs:        1000,
			ExponentialBackoff: true,
			MaxDelayMs:         30000,
			Jitter:             true,
		},
		JobStore: JobStoreConfig{Backend: "memory"},
		History:  HistoryConfig{Backend: "memory"},
		Logging:  LoggingConfig{Level: "info"},
	}
}
