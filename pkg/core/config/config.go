// Package config loads and validates process configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
	StoreNone     = "none"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Model routing.
	ModelsConfigPath string
	Scripted         bool // Offline scripted completion provider, no credentials needed.
	GeminiAPIKey     string
	DeepSeekAPIKey   string
	QwenAPIKey       string

	// Research providers.
	PerplexityAPIKey string
	BrowserEnabled   bool

	// Document store.
	Store         string
	MongoURI      string
	MongoDatabase string
	DatabaseURL   string

	// Simulation limits.
	CallTimeout       time.Duration
	TrialTimeout      time.Duration
	Parallelism       int
	MaxAPISimulations int

	// Report archive.
	ReportStorage string // "local", "s3" or "none"
	ReportPath    string
	S3Bucket      string
	S3Region      string
	AWSAccessKey  string
	AWSSecretKey  string

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel  string
	LogFormat string
}

// Load reads configuration from environment variables with sensible
// defaults and validates it.
func Load() (Config, error) {
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FromEnv reads configuration from environment variables without
// validating it, for callers that layer overrides on top.
func FromEnv() Config {
	return Config{
		Port:              envInt("LEGALSIM_PORT", 8080),
		ReadTimeout:       envDuration("LEGALSIM_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:      envDuration("LEGALSIM_WRITE_TIMEOUT", 30*time.Minute),
		ModelsConfigPath:  envStr("LEGALSIM_MODELS_CONFIG", "config/models.yaml"),
		Scripted:          envBool("LEGALSIM_SCRIPTED", false),
		GeminiAPIKey:      envStr("GEMINI_API_KEY", ""),
		DeepSeekAPIKey:    envStr("DEEPSEEK_API_KEY", ""),
		QwenAPIKey:        envStr("QWEN_API_KEY", ""),
		PerplexityAPIKey:  envStr("PERPLEXITY_API_KEY", ""),
		BrowserEnabled:    envBool("LEGALSIM_BROWSER", false),
		Store:             strings.ToLower(envStr("LEGALSIM_STORE", StoreMongo)),
		MongoURI:          envStr("MONGODB_CONNECTION_STRING", ""),
		MongoDatabase:     envStr("LEGALSIM_MONGO_DATABASE", "legal_agent_system"),
		DatabaseURL:       envStr("DATABASE_URL", ""),
		CallTimeout:       envDuration("LEGALSIM_CALL_TIMEOUT", 60*time.Second),
		TrialTimeout:      envDuration("LEGALSIM_TRIAL_TIMEOUT", 5*time.Minute),
		Parallelism:       envInt("LEGALSIM_PARALLELISM", 1),
		MaxAPISimulations: envInt("LEGALSIM_MAX_API_SIMULATIONS", 10),
		ReportStorage:     strings.ToLower(envStr("LEGALSIM_REPORT_STORAGE", "none")),
		ReportPath:        envStr("LEGALSIM_REPORT_PATH", "reports"),
		S3Bucket:          envStr("LEGALSIM_S3_BUCKET", ""),
		S3Region:          envStr("LEGALSIM_S3_REGION", "us-east-1"),
		AWSAccessKey:      envStr("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:      envStr("AWS_SECRET_ACCESS_KEY", ""),
		OTELEndpoint:      envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:      envBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:       envStr("LEGALSIM_SERVICE_NAME", "legal-simulation"),
		LogLevel:          envStr("LEGALSIM_LOG_LEVEL", "info"),
		LogFormat:         envStr("LEGALSIM_LOG_FORMAT", "text"),
	}
}

// Validate checks that required credentials exist for the configured backends.
func (c Config) Validate() error {
	if !c.Scripted && c.GeminiAPIKey == "" && c.DeepSeekAPIKey == "" && c.QwenAPIKey == "" {
		return fmt.Errorf("config: one of GEMINI_API_KEY, DEEPSEEK_API_KEY or QWEN_API_KEY is required (or set LEGALSIM_SCRIPTED=true)")
	}
	switch c.Store {
	case StoreMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("config: MONGODB_CONNECTION_STRING is required for LEGALSIM_STORE=mongo")
		}
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("config: DATABASE_URL is required for LEGALSIM_STORE=postgres")
		}
	case StoreMemory, StoreNone:
	default:
		return fmt.Errorf("config: unknown LEGALSIM_STORE %q", c.Store)
	}
	switch c.ReportStorage {
	case "s3":
		if c.S3Bucket == "" {
			return fmt.Errorf("config: LEGALSIM_S3_BUCKET is required for LEGALSIM_REPORT_STORAGE=s3")
		}
	case "local", "none", "":
	default:
		return fmt.Errorf("config: unknown LEGALSIM_REPORT_STORAGE %q", c.ReportStorage)
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("config: LEGALSIM_PARALLELISM must be positive")
	}
	if c.MaxAPISimulations < 1 {
		return fmt.Errorf("config: LEGALSIM_MAX_API_SIMULATIONS must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
