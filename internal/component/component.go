// Package component defines the contract flow nodes implement and the
// registry the runner resolves node types against. A component receives its
// named inputs already bound (static node data, run tweaks, then upstream
// edge values) and exposes named outputs for downstream nodes.
package component

import (
	"context"
	"sort"
	"sync"

	appErrors "channelflow-backend/pkg/errors"
)

// Inputs carries the named input values bound to a node before it runs.
// Values arrive JSON-decoded, so numeric lookups tolerate float64.
type Inputs map[string]any

// Has reports whether key is present, even with a nil value.
func (in Inputs) Has(key string) bool {
	_, ok := in[key]
	return ok
}

// String returns the string at key, or def when absent or differently typed.
func (in Inputs) String(key, def string) string {
	if v, ok := in[key].(string); ok {
		return v
	}
	return def
}

// Float returns the number at key, or def when absent or not numeric.
func (in Inputs) Float(key string, def float64) float64 {
	switch v := in[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

// Int returns the integer at key, or def when absent or not numeric.
func (in Inputs) Int(key string, def int) int {
	switch v := in[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Bool returns the bool at key, or def when absent or not a bool.
func (in Inputs) Bool(key string, def bool) bool {
	if v, ok := in[key].(bool); ok {
		return v
	}
	return def
}

// Items returns the list of maps at key. Both []map[string]any and the
// []any shape produced by encoding/json are accepted; anything else is nil.
func (in Inputs) Items(key string) []map[string]any {
	switch v := in[key].(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, 0, len(v))
		for _, e := range v {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

// Map returns the map at key, or nil.
func (in Inputs) Map(key string) map[string]any {
	if v, ok := in[key].(map[string]any); ok {
		return v
	}
	return nil
}

// Clone returns a shallow copy safe for per-run overlays.
func (in Inputs) Clone() Inputs {
	out := make(Inputs, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Outputs carries the named values a node exposes after running.
type Outputs map[string]any

// PortSpec describes one named input or output handle.
type PortSpec struct {
	Name        string `json:"name"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description,omitempty"`
}

// Spec describes a component type and its handles.
type Spec struct {
	Type        string     `json:"type"`
	DisplayName string     `json:"display_name"`
	Description string     `json:"description,omitempty"`
	Inputs      []PortSpec `json:"inputs"`
	Outputs     []PortSpec `json:"outputs"`
}

// HasInput reports whether name is a declared input handle.
func (s Spec) HasInput(name string) bool {
	for _, p := range s.Inputs {
		if p.Name == name {
			return true
		}
	}
	return false
}

// HasOutput reports whether name is a declared output handle.
func (s Spec) HasOutput(name string) bool {
	for _, p := range s.Outputs {
		if p.Name == name {
			return true
		}
	}
	return false
}

// RequiredInputs lists the input handles a run must bind.
func (s Spec) RequiredInputs() []string {
	var out []string
	for _, p := range s.Inputs {
		if p.Required {
			out = append(out, p.Name)
		}
	}
	return out
}

// Component is a runnable node implementation.
type Component interface {
	Spec() Spec
	Run(ctx context.Context, in Inputs) (Outputs, error)
}

// Resolver resolves a component type to its spec. *Registry implements it;
// SpecSet lets validation run where no live components exist, such as the CLI.
type Resolver interface {
	Spec(componentType string) (Spec, bool)
}

// SpecSet is a spec-only Resolver.
type SpecSet map[string]Spec

// NewSpecSet indexes specs by type.
func NewSpecSet(specs ...Spec) SpecSet {
	out := make(SpecSet, len(specs))
	for _, s := range specs {
		out[s.Type] = s
	}
	return out
}

// Spec implements Resolver.
func (s SpecSet) Spec(componentType string) (Spec, bool) {
	spec, ok := s[componentType]
	return spec, ok
}

// Registry resolves component types to implementations.
type Registry struct {
	mu         sync.RWMutex
	components map[string]Component
}

// NewRegistry builds a registry from the given components.
func NewRegistry(components ...Component) (*Registry, error) {
	r := &Registry{components: make(map[string]Component)}
	for _, c := range components {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a component; duplicate types are rejected.
func (r *Registry) Register(c Component) error {
	spec := c.Spec()
	if spec.Type == "" {
		return appErrors.NewValidation("component type must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.components[spec.Type]; exists {
		return appErrors.NewValidationf("component type %q already registered", spec.Type)
	}
	r.components[spec.Type] = c
	return nil
}

// Get returns the component registered for the type.
func (r *Registry) Get(componentType string) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[componentType]
	return c, ok
}

// Spec implements Resolver.
func (r *Registry) Spec(componentType string) (Spec, bool) {
	c, ok := r.Get(componentType)
	if !ok {
		return Spec{}, false
	}
	return c.Spec(), true
}

// Specs lists registered component specs sorted by type.
func (r *Registry) Specs() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Spec, 0, len(r.components))
	for _, c := range r.components {
		out = append(out, c.Spec())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}
