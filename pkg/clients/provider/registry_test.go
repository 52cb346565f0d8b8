package provider_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"agentflow-runner/pkg/clients/llm"
	"agentflow-runner/pkg/clients/provider"
	"agentflow-runner/pkg/clients/search"
)

func named(reply string) llm.ClientFunc {
	return func(context.Context, llm.Request) (any, error) { return reply, nil }
}

func TestRegistry_Routing(t *testing.T) {
	t.Parallel()
	reg := provider.NewRegistry("Google")
	if err := reg.Register(provider.Provider{
		Name: "google",
		LLM:  named("from google"),
		Search: search.ClientFunc(func(_ context.Context, req search.Request) (any, error) {
			return "found " + req.Query, nil
		}),
	}); err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}
	if err := reg.Register(provider.Provider{Name: " Local ", LLM: named("from local")}); err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}

	if diff := cmp.Diff([]string{"google", "local"}, reg.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	tests := []struct {
		name     string
		provider string
		want     any
	}{
		{name: "blank uses default", provider: "", want: "from google"},
		{name: "case insensitive", provider: "LOCAL", want: "from local"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := reg.Generate(context.Background(), llm.Request{Provider: tt.provider})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}

	got, err := reg.Search(context.Background(), search.Request{Query: "go"})
	if err != nil || got != "found go" {
		t.Errorf("expected 'found go', got %v (err %v)", got, err)
	}
	if _, err := reg.Search(context.Background(), search.Request{Provider: "local", Query: "go"}); !errors.Is(err, provider.ErrSearchUnsupported) {
		t.Errorf("expected ErrSearchUnsupported, got %v", err)
	}
	if _, err := reg.Generate(context.Background(), llm.Request{Provider: "openai"}); !errors.Is(err, provider.ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestRegistry_RegisterRejects(t *testing.T) {
	t.Parallel()
	reg := provider.NewRegistry("google")
	if err := reg.Register(provider.Provider{Name: "  ", LLM: named("x")}); err == nil {
		t.Error("expected error for empty name, got nil")
	}
	if err := reg.Register(provider.Provider{Name: "google"}); err == nil {
		t.Error("expected error for nil llm client, got nil")
	}
}

func TestRegistry_RateLimit(t *testing.T) {
	t.Parallel()
	reg := provider.NewRegistry("google", provider.WithRateLimit(0.001, 1))
	if err := reg.Register(provider.Provider{Name: "google", LLM: named("ok")}); err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}

	if _, err := reg.Generate(context.Background(), llm.Request{}); err != nil {
		t.Fatalf("first call should use the burst, got %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := reg.Generate(ctx, llm.Request{}); err == nil {
		t.Error("expected second call to be throttled, got nil")
	}
}

func TestRegistry_Unlimited(t *testing.T) {
	t.Parallel()
	reg := provider.NewRegistry("google", provider.WithRateLimit(0, 0))
	if err := reg.Register(provider.Provider{Name: "google", LLM: named("ok")}); err != nil {
		t.Fatalf("unexpected register error: %v", err)
	}
	for i := range 20 {
		if _, err := reg.Generate(context.Background(), llm.Request{}); err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
	}
}
