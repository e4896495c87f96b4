package ai

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

type ProviderFactory func(ctx context.Context, model string) (Provider, error)

// Registry maps provider names to factories. Model references are written
// "provider:model"; a reference without a provider prefix goes to the
// default provider.
type Registry struct {
	mu              sync.RWMutex
	factories       map[string]ProviderFactory
	defaultProvider string
}

func NewRegistry(defaultProvider string) *Registry {
	return &Registry{
		factories:       make(map[string]ProviderFactory),
		defaultProvider: normalizeName(defaultProvider),
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(name string, f ProviderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[normalizeName(name)] = f
}

func (r *Registry) Get(ctx context.Context, name string, model string) (Provider, error) {
	name = normalizeName(name)
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown ai provider: %s", name)
	}
	return f(ctx, model)
}

// Resolve splits ref into provider and model and builds the provider. A
// prefix that names no registered provider is part of the model id
// ("llama3:latest"), and OpenRouter ids contain a slash ("openai/gpt-4o"),
// so only a colon before the first slash can start a prefix.
func (r *Registry) Resolve(ctx context.Context, ref string) (Provider, string, error) {
	ref = strings.TrimSpace(ref)
	provider, model := r.split(ref)
	if model == "" {
		return nil, "", fmt.Errorf("ai: model is required")
	}
	p, err := r.Get(ctx, provider, model)
	if err != nil {
		return nil, "", err
	}
	return p, model, nil
}

func (r *Registry) split(ref string) (provider, model string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i := strings.Index(ref, ":")
	if i > 0 {
		if slash := strings.Index(ref, "/"); slash < 0 || slash > i {
			name := normalizeName(ref[:i])
			if _, ok := r.factories[name]; ok {
				return name, ref[i+1:]
			}
		}
	}
	return r.defaultProvider, ref
}
