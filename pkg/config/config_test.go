package config_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"agentflow-runner/pkg/config"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFrom(env(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(config.Default(), cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFrom(env(map[string]string{
		"ADDR":                ":9090",
		"DATABASE_URL":        "postgres://localhost/agentflow",
		"CORS_ORIGINS":        "http://a.test, ,http://b.test",
		"LLM_PROVIDER":        " Google ",
		"GENAI_API_KEY":       "secret",
		"GOOGLE_BASE_URL":     "http://gemini.local",
		"ADAPTER_TIMEOUT":     "15s",
		"EXECUTION_TIMEOUT":   "2m",
		"PROVIDER_RATE_LIMIT": "2.5",
		"PROVIDER_RATE_BURST": "4",
		"LOG_LEVEL":           "debug",
		"GOOGLE_IMAGE_MODEL":  "",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := config.Default()
	want.Addr = ":9090"
	want.DatabaseURL = "postgres://localhost/agentflow"
	want.CORSOrigins = []string{"http://a.test", "http://b.test"}
	want.GenAIAPIKey = "secret"
	want.GoogleBaseURL = "http://gemini.local"
	want.AdapterTimeout = 15 * time.Second
	want.ExecutionTimeout = 2 * time.Minute
	want.ProviderRateLimit = 2.5
	want.ProviderRateBurst = 4
	want.LogLevel = slog.LevelDebug

	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFrom_Invalid(t *testing.T) {
	t.Parallel()
	tests := []struct {
		key, value string
	}{
		{"ADAPTER_TIMEOUT", "soon"},
		{"EXECUTION_TIMEOUT", "-1s"},
		{"PROVIDER_RATE_LIMIT", "-3"},
		{"PROVIDER_RATE_BURST", "0"},
		{"LOG_LEVEL", "chatty"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Parallel()
			if _, err := config.LoadFrom(env(map[string]string{tt.key: tt.value})); err == nil {
				t.Errorf("expected error for %s=%q, got nil", tt.key, tt.value)
			}
		})
	}
}
