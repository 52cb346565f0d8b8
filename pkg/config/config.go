package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the server and provider settings read from the environment.
type Config struct {
	Addr        string
	DatabaseURL string // empty selects in-memory storage
	CORSOrigins []string

	LLMProvider        string
	GenAIAPIKey        string
	GoogleDefaultModel string
	GoogleImageModel   string
	GoogleBaseURL      string

	AdapterTimeout    time.Duration
	ProviderRateLimit float64 // requests per second per provider, 0 is unlimited
	ProviderRateBurst int
	ExecutionTimeout  time.Duration

	LogLevel slog.Level
}

// Default returns the settings used when no variable is set.
func Default() Config {
	return Config{
		Addr:               ":8080",
		CORSOrigins:        []string{"http://localhost:3003"},
		LLMProvider:        "google",
		GoogleDefaultModel: "gemini-2.5-flash",
		GoogleImageModel:   "gemini-2.5-flash-image",
		AdapterTimeout:     60 * time.Second,
		ProviderRateBurst:  1,
		ExecutionTimeout:   5 * time.Minute,
		LogLevel:           slog.LevelInfo,
	}
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom reads the configuration through lookup, which has the
// signature of os.LookupEnv.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := Default()
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("ADDR"); ok {
		cfg.Addr = v
	}
	if v, ok := get("DATABASE_URL"); ok {
		cfg.DatabaseURL = v
	}
	if v, ok := get("CORS_ORIGINS"); ok {
		cfg.CORSOrigins = splitList(v)
	}
	if v, ok := get("LLM_PROVIDER"); ok {
		cfg.LLMProvider = strings.ToLower(v)
	}
	if v, ok := get("GENAI_API_KEY"); ok {
		cfg.GenAIAPIKey = v
	}
	if v, ok := get("GOOGLE_DEFAULT_MODEL"); ok {
		cfg.GoogleDefaultModel = v
	}
	if v, ok := get("GOOGLE_IMAGE_MODEL"); ok {
		cfg.GoogleImageModel = v
	}
	if v, ok := get("GOOGLE_BASE_URL"); ok {
		cfg.GoogleBaseURL = v
	}

	var err error
	if v, ok := get("ADAPTER_TIMEOUT"); ok {
		if cfg.AdapterTimeout, err = parseDuration("ADAPTER_TIMEOUT", v); err != nil {
			return Config{}, err
		}
	}
	if v, ok := get("EXECUTION_TIMEOUT"); ok {
		if cfg.ExecutionTimeout, err = parseDuration("EXECUTION_TIMEOUT", v); err != nil {
			return Config{}, err
		}
	}
	if v, ok := get("PROVIDER_RATE_LIMIT"); ok {
		cfg.ProviderRateLimit, err = strconv.ParseFloat(v, 64)
		if err != nil || cfg.ProviderRateLimit < 0 {
			return Config{}, fmt.Errorf("PROVIDER_RATE_LIMIT must be a non-negative number, got %q", v)
		}
	}
	if v, ok := get("PROVIDER_RATE_BURST"); ok {
		cfg.ProviderRateBurst, err = strconv.Atoi(v)
		if err != nil || cfg.ProviderRateBurst < 1 {
			return Config{}, fmt.Errorf("PROVIDER_RATE_BURST must be a positive integer, got %q", v)
		}
	}
	if v, ok := get("LOG_LEVEL"); ok {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}
	return cfg, nil
}

func parseDuration(key, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
