package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Storage     StorageConfig   `toml:"storage"`
	Jobs        JobsConfig      `toml:"jobs"`
	Workers     WorkersConfig   `toml:"workers"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	LLM         LLMConfig       `toml:"llm"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	Sources     SourcesConfig   `toml:"sources"`
	Minio       MinioConfig     `toml:"minio"`
	Events      EventsConfig    `toml:"events"`
	Sections    SectionsConfig  `toml:"sections"`
	Export      ExportConfig    `toml:"export"`
	Logging     LoggingConfig   `toml:"logging"`
}

type ServerConfig struct {
	Port           int      `toml:"port"`
	Host           string   `toml:"host"`
	APIKey         string   `toml:"api_key"`         // Required X-API-Key value; empty disables the check
	AllowedOrigins []string `toml:"allowed_origins"` // CORS origins
}

type StorageConfig struct {
	Badger    BadgerConfig    `toml:"badger"`
	Artifacts ArtifactsConfig `toml:"artifacts"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

// ArtifactsConfig controls where session artifacts (transcripts, facts, sections) are written
type ArtifactsConfig struct {
	Dir string `toml:"dir"`
}

// JobsConfig selects the job store backend
type JobsConfig struct {
	Store    string `toml:"store"`     // "memory" or "badger"
	TTL      string `toml:"ttl"`       // Record expiry for the badger store (default: "24h")
	MaxAge   string `toml:"max_age"`   // Inactivity window for the memory store sweep (default: "1h")
	FailFast bool   `toml:"fail_fast"` // Abort transcript loading on the first item failure
}

// WorkersConfig sizes the job worker pool
type WorkersConfig struct {
	Concurrency int `toml:"concurrency"`
	QueueSize   int `toml:"queue_size"`
}

// SchedulerConfig contains cron schedules for housekeeping tasks
type SchedulerConfig struct {
	Enabled         bool   `toml:"enabled"`
	CleanupSchedule string `toml:"cleanup_schedule"` // 5-field cron format
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	// LLMProviderGemini uses Google Gemini API
	LLMProviderGemini LLMProvider = "gemini"
	// LLMProviderClaude uses Anthropic Claude API
	LLMProviderClaude LLMProvider = "claude"
	// LLMProviderOffline returns deterministic text without calling any API (development and tests)
	LLMProviderOffline LLMProvider = "offline"
)

// LLMConfig contains unified configuration for all AI providers
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "gemini", "claude" or "offline"
	Timeout         string      `toml:"timeout"`          // Per-call timeout (default: "5m")
	MaxRetries      int         `toml:"max_retries"`      // Retries on rate limit errors (default: 3)
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`       // default: "gemini-2.0-flash"
	RateLimit   string  `toml:"rate_limit"`  // Minimum spacing between calls (default: "1s")
	Temperature float32 `toml:"temperature"` // default: 0.3
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	MaxTokens   int     `toml:"max_tokens"`
	RateLimit   string  `toml:"rate_limit"`
	Temperature float32 `toml:"temperature"`
}

// SourcesConfig selects the document source used by the transcript loader
type SourcesConfig struct {
	Type     string `toml:"type"`      // "minio" or "filesystem"
	Dir      string `toml:"dir"`       // Root directory for the filesystem source, one folder per opportunity
	MaxBytes int64  `toml:"max_bytes"` // Largest document accepted (default: 25 MiB)
}

// MinioConfig contains object storage settings for the document source
type MinioConfig struct {
	Endpoint  string `toml:"endpoint"`
	AccessKey string `toml:"access_key"`
	SecretKey string `toml:"secret_key"`
	Bucket    string `toml:"bucket"`
	UseSSL    bool   `toml:"use_ssl"`
}

// EventsConfig configures job lifecycle event publishing
type EventsConfig struct {
	NATSURL       string `toml:"nats_url"` // Empty disables publishing
	SubjectPrefix string `toml:"subject_prefix"`
}

// SectionsConfig configures the report section catalog
type SectionsConfig struct {
	CatalogFile string `toml:"catalog_file"` // Optional TOML override of the built-in catalog
}

// ExportConfig controls rendering of generated sections to PDF
type ExportConfig struct {
	PDF bool `toml:"pdf"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:           8080,
			Host:           "localhost",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data/badger",
			},
			Artifacts: ArtifactsConfig{
				Dir: "./data/sessions",
			},
		},
		Jobs: JobsConfig{
			Store:  "memory",
			TTL:    "24h",
			MaxAge: "1h",
		},
		Workers: WorkersConfig{
			Concurrency: 4,
			QueueSize:   100,
		},
		Scheduler: SchedulerConfig{
			Enabled:         true,
			CleanupSchedule: "*/15 * * * *",
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderGemini,
			Timeout:         "5m",
			MaxRetries:      3,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.0-flash",
			RateLimit:   "1s",
			Temperature: 0.3,
		},
		Claude: ClaudeConfig{
			Model:       "claude-3-5-haiku-20241022",
			MaxTokens:   8192,
			RateLimit:   "1s",
			Temperature: 0.3,
		},
		Sources: SourcesConfig{
			Type:     "filesystem",
			Dir:      "./data/opportunities",
			MaxBytes: 25 * 1024 * 1024,
		},
		Minio: MinioConfig{
			Endpoint: "localhost:9000",
			Bucket:   "opportunity-files",
		},
		Events: EventsConfig{
			SubjectPrefix: "quill.jobs",
		},
		Export: ExportConfig{
			PDF: false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration with priority: defaults -> file1 -> file2 -> ... -> env
// Later files override earlier files. CLI flags are applied by the caller via ApplyFlagOverrides.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("QUILL_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("QUILL_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("QUILL_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if apiKey := os.Getenv("QUILL_API_KEY"); apiKey != "" {
		config.Server.APIKey = apiKey
	}
	if origins := os.Getenv("QUILL_ALLOWED_ORIGINS"); origins != "" {
		config.Server.AllowedOrigins = splitList(origins)
	}

	// Storage configuration
	if badgerPath := os.Getenv("QUILL_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}
	if artifactsDir := os.Getenv("QUILL_ARTIFACTS_DIR"); artifactsDir != "" {
		config.Storage.Artifacts.Dir = artifactsDir
	}

	// Jobs configuration
	if store := os.Getenv("QUILL_JOBS_STORE"); store != "" {
		config.Jobs.Store = store
	}
	if ttl := os.Getenv("QUILL_JOBS_TTL"); ttl != "" {
		config.Jobs.TTL = ttl
	}
	if failFast := os.Getenv("QUILL_JOBS_FAIL_FAST"); failFast != "" {
		if b, err := strconv.ParseBool(failFast); err == nil {
			config.Jobs.FailFast = b
		}
	}

	// Workers configuration
	if concurrency := os.Getenv("QUILL_WORKERS_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Workers.Concurrency = c
		}
	}

	// Logging configuration
	if level := os.Getenv("QUILL_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("QUILL_LOG_OUTPUT"); output != "" {
		config.Logging.Output = splitList(output)
	}

	// LLM configuration
	if provider := os.Getenv("QUILL_LLM_DEFAULT_PROVIDER"); provider != "" {
		config.LLM.DefaultProvider = LLMProvider(provider)
	}
	if apiKey := os.Getenv("QUILL_GEMINI_API_KEY"); apiKey != "" {
		config.Gemini.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" && config.Gemini.APIKey == "" {
		config.Gemini.APIKey = apiKey
	}
	if model := os.Getenv("QUILL_GEMINI_MODEL"); model != "" {
		config.Gemini.Model = model
	}
	if apiKey := os.Getenv("QUILL_CLAUDE_API_KEY"); apiKey != "" {
		config.Claude.APIKey = apiKey
	} else if apiKey := os.Getenv("ANTHROPIC_API_KEY"); apiKey != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = apiKey
	}
	if model := os.Getenv("QUILL_CLAUDE_MODEL"); model != "" {
		config.Claude.Model = model
	}

	// Document sources
	if sourceType := os.Getenv("QUILL_SOURCES_TYPE"); sourceType != "" {
		config.Sources.Type = sourceType
	}
	if dir := os.Getenv("QUILL_SOURCES_DIR"); dir != "" {
		config.Sources.Dir = dir
	}
	if endpoint := os.Getenv("QUILL_MINIO_ENDPOINT"); endpoint != "" {
		config.Minio.Endpoint = endpoint
	}
	if accessKey := os.Getenv("QUILL_MINIO_ACCESS_KEY"); accessKey != "" {
		config.Minio.AccessKey = accessKey
	}
	if secretKey := os.Getenv("QUILL_MINIO_SECRET_KEY"); secretKey != "" {
		config.Minio.SecretKey = secretKey
	}
	if bucket := os.Getenv("QUILL_MINIO_BUCKET"); bucket != "" {
		config.Minio.Bucket = bucket
	}

	// Events
	if natsURL := os.Getenv("QUILL_NATS_URL"); natsURL != "" {
		config.Events.NATSURL = natsURL
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks values that would otherwise fail later at startup
func (c *Config) Validate() error {
	switch c.Jobs.Store {
	case "memory", "badger":
	default:
		return fmt.Errorf("invalid jobs.store %q: expected memory or badger", c.Jobs.Store)
	}
	switch c.Sources.Type {
	case "minio", "filesystem":
	default:
		return fmt.Errorf("invalid sources.type %q: expected minio or filesystem", c.Sources.Type)
	}
	for name, value := range map[string]string{
		"jobs.ttl":     c.Jobs.TTL,
		"jobs.max_age": c.Jobs.MaxAge,
		"llm.timeout":  c.LLM.Timeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}
	switch c.LLM.DefaultProvider {
	case LLMProviderGemini, LLMProviderClaude, LLMProviderOffline:
	default:
		return fmt.Errorf("invalid llm.default_provider %q", c.LLM.DefaultProvider)
	}
	if c.Workers.Concurrency < 1 {
		return fmt.Errorf("workers.concurrency must be at least 1")
	}
	if c.Scheduler.Enabled {
		if err := ValidateSchedule(c.Scheduler.CleanupSchedule); err != nil {
			return fmt.Errorf("invalid scheduler.cleanup_schedule: %w", err)
		}
	}
	return nil
}

// ValidateSchedule validates a 5-field cron expression
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// ParseDurationOr parses a duration string, returning fallback when empty or invalid
func ParseDurationOr(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
