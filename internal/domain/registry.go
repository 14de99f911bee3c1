package domain

import "fmt"

// Registry is a compile-time name→constructor table. This replaces the
// original's dynamic `notify.providers.{name}` module import with a fixed Go
// map built at process start: every provider this binary can dispatch to
// must be registered once in cmd/notifyd before Lifecycle.Run starts.
type Registry struct {
	factories map[string]ProviderFactory
}

// NewRegistry builds an empty registry; callers add providers with Register.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// Register associates a provider name with its constructor. Re-registering
// the same name overwrites the previous entry.
func (r *Registry) Register(name string, factory ProviderFactory) {
	r.factories[name] = factory
}

// New constructs a provider instance by name, returning an error if the name
// isn't registered (Wrapper.Invoke wraps it in ErrProviderLoad).
func (r *Registry) New(name string, kwargs map[string]any) (Provider, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("no provider registered under name %q", name)
	}
	p, err := factory(kwargs)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Names returns every registered provider name, mostly useful for
// diagnostics/logging at startup.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	return names
}
