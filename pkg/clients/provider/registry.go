package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	"agentflow-runner/pkg/clients/llm"
	"agentflow-runner/pkg/clients/search"
)

var (
	// ErrUnknownProvider is returned when a request names an unregistered provider.
	ErrUnknownProvider = errors.New("provider is not registered")
	// ErrSearchUnsupported is returned when the provider has no search capability.
	ErrSearchUnsupported = errors.New("provider does not support search")
)

// Provider is one named model backend. Search is nil when the backend
// cannot answer grounded search queries.
type Provider struct {
	Name   string
	LLM    llm.Client
	Search search.Client
}

// Registry routes llm and search requests to providers by name and
// throttles calls per provider.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	limiters    map[string]*rate.Limiter
	defaultName string
	limit       rate.Limit
	burst       int
}

var (
	_ llm.Client    = (*Registry)(nil)
	_ search.Client = (*Registry)(nil)
)

// Option configures a Registry.
type Option func(*Registry)

// WithRateLimit allows rps requests per second per provider with the given
// burst. A non-positive rps disables throttling.
func WithRateLimit(rps float64, burst int) Option {
	return func(r *Registry) {
		if rps <= 0 {
			r.limit = rate.Inf
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limit = rate.Limit(rps)
		r.burst = burst
	}
}

// NewRegistry creates an empty registry. Requests that leave the provider
// blank go to defaultProvider.
func NewRegistry(defaultProvider string, opts ...Option) *Registry {
	r := &Registry{
		providers:   make(map[string]Provider),
		limiters:    make(map[string]*rate.Limiter),
		defaultName: normalize(defaultProvider),
		limit:       rate.Inf,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds or replaces a provider. Names are case-insensitive.
func (r *Registry) Register(p Provider) error {
	name := normalize(p.Name)
	if name == "" {
		return fmt.Errorf("provider name cannot be empty")
	}
	if p.LLM == nil {
		return fmt.Errorf("provider %q: llm client cannot be nil", name)
	}
	p.Name = name

	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
	if r.limit != rate.Inf {
		r.limiters[name] = rate.NewLimiter(r.limit, r.burst)
	}
	slog.Info("registered provider", "provider", name, "search", p.Search != nil)
	return nil
}

// Names lists registered providers in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the provider for name, or the default provider when name
// is blank.
func (r *Registry) Lookup(name string) (Provider, error) {
	key := normalize(name)
	if key == "" {
		key = r.defaultName
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[key]
	if !ok {
		return Provider{}, fmt.Errorf("LLM provider '%s': %w", key, ErrUnknownProvider)
	}
	return p, nil
}

// Generate forwards req to the provider it names.
func (r *Registry) Generate(ctx context.Context, req llm.Request) (any, error) {
	p, err := r.Lookup(req.Provider)
	if err != nil {
		return nil, err
	}
	if err := r.wait(ctx, p.Name); err != nil {
		return nil, err
	}
	return p.LLM.Generate(ctx, req)
}

// Search forwards req to the provider it names.
func (r *Registry) Search(ctx context.Context, req search.Request) (any, error) {
	p, err := r.Lookup(req.Provider)
	if err != nil {
		return nil, err
	}
	if p.Search == nil {
		return nil, fmt.Errorf("provider '%s': %w", p.Name, ErrSearchUnsupported)
	}
	if err := r.wait(ctx, p.Name); err != nil {
		return nil, err
	}
	return p.Search.Search(ctx, req)
}

func (r *Registry) wait(ctx context.Context, name string) error {
	r.mu.RLock()
	limiter := r.limiters[name]
	r.mu.RUnlock()
	if limiter == nil {
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("provider '%s' rate limit: %w", name, err)
	}
	return nil
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
