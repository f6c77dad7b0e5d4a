package llm

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/tessera-ai/reasonkit/internal/registry"
)

// Registry holds named provider-instance adapters plus an optional
// default. Populated once at startup; read-mostly afterward.
type Registry struct {
	base       *registry.BaseRegistry[Adapter]
	mu         sync.RWMutex
	order      []string // insertion order, for the "first registered" default policy
	defaultID  string
	hasDefault bool
}

func NewRegistry() *Registry {
	return &Registry{base: registry.NewBaseRegistry[Adapter]()}
}

// Add registers a provider instance under id. Fails with
// duplicate_provider if id is already registered.
func (r *Registry) Add(id string, adapter Adapter) error {
	if err := r.base.Register(id, adapter); err != nil {
		if errors.Is(err, registry.ErrAlreadyRegistered) {
			return errDuplicateProvider(id)
		}
		return err
	}
	r.mu.Lock()
	r.order = append(r.order, id)
	r.mu.Unlock()
	return nil
}

// Get looks up a provider instance by id, returning unknown_provider if
// absent.
func (r *Registry) Get(id string) (Adapter, error) {
	a, ok := r.base.Get(id)
	if !ok {
		return nil, errUnknownProvider(id)
	}
	return a, nil
}

func (r *Registry) Remove(id string) error {
	if err := r.base.Remove(id); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return errUnknownProvider(id)
		}
		return err
	}
	r.mu.Lock()
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	return nil
}

func (r *Registry) List() []Adapter {
	return r.base.List()
}

// SetDefault marks id as the default provider instance. The id must
// already be registered.
func (r *Registry) SetDefault(id string) error {
	if _, ok := r.base.Get(id); !ok {
		return errUnknownProvider(id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultID = id
	r.hasDefault = true
	return nil
}

// Default returns the default-selection policy result: the provider
// whose ID equals the configured default, otherwise the first
// successfully initialized instance.
func (r *Registry) Default() (Adapter, error) {
	r.mu.RLock()
	id := r.defaultID
	has := r.hasDefault
	r.mu.RUnlock()

	if has {
		if a, ok := r.base.Get(id); ok {
			return a, nil
		}
		slog.Warn("default provider id configured but not registered", "provider_id", id)
	}

	r.mu.RLock()
	order := r.order
	r.mu.RUnlock()
	for _, candidateID := range order {
		if a, ok := r.base.Get(candidateID); ok {
			return a, nil
		}
	}
	return nil, errUnknownProvider("(no default; registry is empty)")
}

// NewAdapter constructs an Adapter for providerType (openai, anthropic,
// gemini, grok) using apiKey and model. Mirrors the original prototype's
// provider_factory one-liners.
func NewAdapter(providerType, apiKey, model, baseURL string) (Adapter, error) {
	switch providerType {
	case "openai":
		a := NewOpenAIProvider(apiKey, model)
		if baseURL != "" {
			a.baseURL = baseURL
		}
		return a, nil
	case "anthropic":
		a := NewAnthropicProvider(apiKey, model)
		if baseURL != "" {
			a.baseURL = baseURL
		}
		return a, nil
	case "gemini":
		a := NewGeminiProvider(apiKey, model)
		if baseURL != "" {
			a.baseURL = baseURL
		}
		return a, nil
	case "grok":
		a := NewGrokProvider(apiKey, model)
		if baseURL != "" {
			a.baseURL = baseURL
		}
		return a, nil
	default:
		return nil, newErr(KindUnknownProvider, providerType, "unrecognized provider_type", nil)
	}
}
