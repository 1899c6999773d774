package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	// Supabase
	SupabaseURL            string `validate:"required,url"`
	SupabaseServiceRoleKey string `validate:"required"`
	InputBucket            string `validate:"required"`
	OutputBucket           string `validate:"required"`
	ProjectsTable          string `validate:"required"`
	WaitlistTable          string `validate:"required"`

	// Database (optional, PostgREST is used when empty)
	DatabaseURL string

	// Replicate
	ReplicateAPIToken   string
	ReplicateAPIBaseURL string `validate:"required,url"`
	ReplicateModel      string `validate:"required"`
	GenerationTimeout   time.Duration
	PollInterval        time.Duration

	// Upper bound for an uploaded source image and a downloaded result
	MaxImageBytes int64

	// Waitlist pass, disabled when empty
	WaitlistTokenSecret string

	// Server
	Port               string `validate:"required"`
	Environment        string `validate:"oneof=development staging production test"`
	LogLevel           string
	CORSAllowedOrigins []string
	SentryDSN          string
}

func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", strings.ToLower), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}
	l := loader{k: k}

	timeout, err := time.ParseDuration(l.get("GENERATION_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("invalid GENERATION_TIMEOUT: %w", err)
	}

	pollInterval, err := time.ParseDuration(l.get("REPLICATE_POLL_INTERVAL", "1s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REPLICATE_POLL_INTERVAL: %w", err)
	}

	maxImageBytes, err := strconv.ParseInt(l.get("MAX_IMAGE_BYTES", "33554432"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_IMAGE_BYTES: %w", err)
	}

	cfg := &Config{
		SupabaseURL:            strings.TrimSuffix(l.get("SUPABASE_URL", ""), "/"),
		SupabaseServiceRoleKey: l.get("SUPABASE_SERVICE_ROLE_KEY", ""),
		InputBucket:            l.get("SUPABASE_INPUT_BUCKET", "input-images"),
		OutputBucket:           l.get("SUPABASE_OUTPUT_BUCKET", "output-images"),
		ProjectsTable:          l.get("SUPABASE_PROJECTS_TABLE", "projects"),
		WaitlistTable:          l.get("SUPABASE_WAITLIST_TABLE", "waitlist"),

		DatabaseURL: l.get("DATABASE_URL", ""),

		ReplicateAPIToken:   l.get("REPLICATE_API_TOKEN", ""),
		ReplicateAPIBaseURL: l.get("REPLICATE_API_BASE_URL", "https://api.replicate.com/v1"),
		ReplicateModel:      l.get("REPLICATE_MODEL", "google/nano-banana"),
		GenerationTimeout:   timeout,
		PollInterval:        pollInterval,
		MaxImageBytes:       maxImageBytes,

		WaitlistTokenSecret: l.get("WAITLIST_TOKEN_SECRET", ""),

		Port:               l.get("PORT", "8080"),
		Environment:        l.get("ENVIRONMENT", "development"),
		LogLevel:           l.get("LOG_LEVEL", "info"),
		CORSAllowedOrigins: splitList(l.get("CORS_ALLOWED_ORIGINS", "*")),
		SentryDSN:          l.get("SENTRY_DSN", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.GenerationTimeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be positive")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("REPLICATE_POLL_INTERVAL must be positive")
	}
	if c.MaxImageBytes <= 0 {
		return fmt.Errorf("MAX_IMAGE_BYTES must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// WaitlistPassEnabled reports whether /api/generate requires a signed waitlist pass.
func (c *Config) WaitlistPassEnabled() bool {
	return c.WaitlistTokenSecret != ""
}

type loader struct {
	k *koanf.Koanf
}

func (l loader) get(key, defaultValue string) string {
	if value := strings.TrimSpace(l.k.String(strings.ToLower(key))); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
