package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// ProviderConfig holds credentials and model selection for one vision provider.
type ProviderConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// ExtractionConfig selects and tunes the extraction provider.
type ExtractionConfig struct {
	Provider string
	Prompt   string
	Timeout  time.Duration
	OpenAI   ProviderConfig
	Gemini   ProviderConfig
}

// RedisConfig points at the session store. An empty Addr keeps sessions in memory.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Config aggregates application-wide configuration values.
type Config struct {
	Port             string
	DatabaseURL      string
	Redis            RedisConfig
	Extraction       ExtractionConfig
	Timezone         string
	Location         *time.Location
	PhoneRegion      string
	RateLimitCapture RateLimitConfig
	MaxUploadBytes   int64
	ContactStore     string
	VCardDir         string
	ContactWebhook   string
	LogLevel         string
	LogFormat        string
}

// fileConfig is the optional YAML overlay named by CONFIG_FILE.
//
//	extraction:
//	  provider: gemini
//	  timeout: 45s
//	  prompt: |
//	    Return one JSON object ...
//	  openai:
//	    model: gpt-4o-mini
//	timezone: Asia/Kolkata
type fileConfig struct {
	Extraction struct {
		Provider string `yaml:"provider"`
		Prompt   string `yaml:"prompt"`
		Timeout  string `yaml:"timeout"`
		OpenAI   struct {
			Model   string `yaml:"model"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"openai"`
		Gemini struct {
			Model   string `yaml:"model"`
			BaseURL string `yaml:"base_url"`
		} `yaml:"gemini"`
	} `yaml:"extraction"`
	Timezone          string `yaml:"timezone"`
	PhoneRegion       string `yaml:"phone_region"`
	ContactStore      string `yaml:"contact_store"`
	VCardDir          string `yaml:"vcard_dir"`
	ContactWebhookURL string `yaml:"contact_webhook_url"`
}

const defaultMaxUploadBytes = 10 << 20

// Load reads configuration from environment variables, layered over the
// optional CONFIG_FILE overlay, and applies sane defaults.
func Load() (*Config, error) {
	var file fileConfig
	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		loaded, err := loadFile(path)
		if err != nil {
			return nil, err
		}
		file = *loaded
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		Extraction: ExtractionConfig{
			Provider: strings.ToLower(getEnv("EXTRACTION_PROVIDER", orDefault(file.Extraction.Provider, "openai"))),
			Prompt:   file.Extraction.Prompt,
			OpenAI: ProviderConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   getEnv("OPENAI_MODEL", file.Extraction.OpenAI.Model),
				BaseURL: getEnv("OPENAI_BASE_URL", file.Extraction.OpenAI.BaseURL),
			},
			Gemini: ProviderConfig{
				APIKey:  os.Getenv("GEMINI_API_KEY"),
				Model:   getEnv("GEMINI_MODEL", file.Extraction.Gemini.Model),
				BaseURL: getEnv("GEMINI_BASE_URL", file.Extraction.Gemini.BaseURL),
			},
		},
		Timezone:       getEnv("TIMEZONE", orDefault(file.Timezone, "Asia/Kolkata")),
		PhoneRegion:    strings.ToUpper(getEnv("PHONE_REGION", orDefault(file.PhoneRegion, "IN"))),
		ContactStore:   strings.ToLower(getEnv("CONTACT_STORE", orDefault(file.ContactStore, "none"))),
		VCardDir:       getEnv("VCARD_DIR", orDefault(file.VCardDir, "contacts")),
		ContactWebhook: getEnv("CONTACT_WEBHOOK_URL", file.ContactWebhookURL),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "json"),
	}

	switch cfg.Extraction.Provider {
	case "openai", "gemini":
	default:
		return nil, fmt.Errorf("invalid EXTRACTION_PROVIDER value: %q", cfg.Extraction.Provider)
	}
	switch cfg.ContactStore {
	case "vcard", "http", "none":
	default:
		return nil, fmt.Errorf("invalid CONTACT_STORE value: %q", cfg.ContactStore)
	}
	if cfg.ContactStore == "http" && cfg.ContactWebhook == "" {
		return nil, fmt.Errorf("CONTACT_WEBHOOK_URL is required when CONTACT_STORE=http")
	}

	timeout, err := time.ParseDuration(getEnv("EXTRACTION_TIMEOUT", orDefault(file.Extraction.Timeout, "30s")))
	if err != nil || timeout <= 0 {
		return nil, fmt.Errorf("invalid EXTRACTION_TIMEOUT value: %v", err)
	}
	cfg.Extraction.Timeout = timeout

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE value: %w", err)
	}
	cfg.Location = loc

	db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil || db < 0 {
		return nil, fmt.Errorf("invalid REDIS_DB value: %q", os.Getenv("REDIS_DB"))
	}
	cfg.Redis.DB = db

	maxUpload, err := strconv.ParseInt(getEnv("MAX_UPLOAD_BYTES", strconv.Itoa(defaultMaxUploadBytes)), 10, 64)
	if err != nil || maxUpload <= 0 {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_BYTES value: %q", os.Getenv("MAX_UPLOAD_BYTES"))
	}
	cfg.MaxUploadBytes = maxUpload

	rl, err := parseRateLimit(getEnv("RATE_LIMIT_CAPTURE", "30/min"))
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_CAPTURE value: %w", err)
	}
	cfg.RateLimitCapture = rl

	return cfg, nil
}

func loadFile(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CONFIG_FILE: %w", err)
	}
	var file fileConfig
	if err := yaml.Unmarshal(b, &file); err != nil {
		return nil, fmt.Errorf("parse CONFIG_FILE YAML: %w", err)
	}
	return &file, nil
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}
