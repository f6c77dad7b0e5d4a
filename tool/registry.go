package tool

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/tessera-ai/reasonkit/internal/registry"
)

// RegistryError is the typed error raised by Registry operations.
type RegistryError struct {
	Action  string
	Message string
	Err     error
}

func (e *RegistryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("tool registry: %s: %s: %v", e.Action, e.Message, e.Err)
	}
	return fmt.Sprintf("tool registry: %s: %s", e.Action, e.Message)
}

func (e *RegistryError) Unwrap() error { return e.Err }

// Registry is a name-unique, optionally category-indexed catalog of
// tools, populated once at startup. Safe for concurrent reads after
// initialization; mutation is not safe under concurrent engine use.
type Registry struct {
	base *registry.BaseRegistry[Tool]

	mu         sync.RWMutex
	categories map[Category]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		base:       registry.NewBaseRegistry[Tool](),
		categories: make(map[Category]map[string]struct{}),
	}
}

// Register adds t under its Name(). Fails if the name already exists
// unless override is true.
func (r *Registry) Register(t Tool, category Category, override bool) error {
	name := t.Name()
	if name == "" {
		return &RegistryError{Action: "register", Message: "tool name cannot be empty"}
	}

	if override {
		if err := r.base.RegisterOverride(name, t); err != nil {
			return &RegistryError{Action: "register", Message: err.Error(), Err: err}
		}
	} else if err := r.base.Register(name, t); err != nil {
		if errors.Is(err, registry.ErrAlreadyRegistered) {
			return &RegistryError{Action: "register", Message: fmt.Sprintf("tool %q already registered", name), Err: err}
		}
		return &RegistryError{Action: "register", Message: err.Error(), Err: err}
	}

	if category != "" {
		r.mu.Lock()
		if r.categories[category] == nil {
			r.categories[category] = make(map[string]struct{})
		}
		r.categories[category][name] = struct{}{}
		r.mu.Unlock()
	}

	return nil
}

func (r *Registry) Unregister(name string) error {
	if err := r.base.Remove(name); err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return &RegistryError{Action: "unregister", Message: fmt.Sprintf("tool %q not found", name), Err: err}
		}
		return &RegistryError{Action: "unregister", Message: err.Error(), Err: err}
	}
	r.mu.Lock()
	for _, members := range r.categories {
		delete(members, name)
	}
	r.mu.Unlock()
	return nil
}

func (r *Registry) Get(name string) (Tool, error) {
	t, ok := r.base.Get(name)
	if !ok {
		return nil, &RegistryError{Action: "get", Message: fmt.Sprintf("tool %q not found", name)}
	}
	return t, nil
}

// List returns every registered tool, sorted by name for deterministic
// output.
func (r *Registry) List() []Tool {
	all := r.base.List()
	sort.Slice(all, func(i, j int) bool { return all[i].Name() < all[j].Name() })
	return all
}

// ListByCategory returns the tools registered under category, sorted by
// name.
func (r *Registry) ListByCategory(category Category) []Tool {
	r.mu.RLock()
	names := make([]string, 0, len(r.categories[category]))
	for name := range r.categories[category] {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	out := make([]Tool, 0, len(names))
	for _, name := range names {
		if t, ok := r.base.Get(name); ok {
			out = append(out, t)
		}
	}
	return out
}

func (r *Registry) Count() int { return r.base.Count() }

var (
	globalOnce     sync.Once
	globalRegistry *Registry
)

// GlobalRegistry returns a lazily-initialized, process-wide Registry.
// It exists purely as a package-level convenience handle for callers
// (CLIs, scripts) that don't need a scoped instance; the reasoning
// engine and its tests always construct their own Registry rather than
// reaching for this one.
func GlobalRegistry() *Registry {
	globalOnce.Do(func() { globalRegistry = NewRegistry() })
	return globalRegistry
}

// SchemaEntry is the per-provider-format advertisement of one tool,
// shaped to drop directly into an llm.ToolDefinition.
type SchemaEntry struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ExportSchemas returns every registered tool's schema, sorted by name,
// ready for handoff to a provider adapter.
func (r *Registry) ExportSchemas() []SchemaEntry {
	tools := r.List()
	out := make([]SchemaEntry, 0, len(tools))
	for _, t := range tools {
		out = append(out, SchemaEntry{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
	}
	return out
}
