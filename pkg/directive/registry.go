// Package directive maps directive names to their usage contract, failure
// policy and step constructor.
//
// Directive implementations register themselves from init() functions, so the
// registry is populated before main runs and is read-only afterwards.
package directive

import (
	"fmt"
	"sort"
	"sync"

	"github.com/leapstack-labs/wrangle/pkg/step"
	"github.com/leapstack-labs/wrangle/pkg/usage"
)

// Constructor builds a step from bound arguments. Constructors validate
// argument values that binding cannot check, such as an unknown method name.
type Constructor func(info step.Info, args *usage.Arguments) (step.Step, error)

// Definition describes one directive.
type Definition struct {
	Name        string
	Description string
	Usage       *usage.Definition
	Policy      step.Policy
	New         Constructor
}

// Lookup resolves directive definitions by name.
type Lookup interface {
	Get(name string) (Definition, bool)
}

// Registry stores directive definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition. Registering a name twice, or a definition
// whose usage is for another name, panics.
func (r *Registry) Register(def Definition) {
	if def.Usage == nil || def.New == nil {
		panic(fmt.Sprintf("directive: %q registered without usage or constructor", def.Name))
	}
	if def.Usage.Directive() != def.Name {
		panic(fmt.Sprintf("directive: %q registered with usage for %q", def.Name, def.Usage.Directive()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.defs[def.Name]; dup {
		panic(fmt.Sprintf("directive: %q registered twice", def.Name))
	}
	r.defs[def.Name] = def
}

// Get returns the definition for name.
func (r *Registry) Get(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// List returns all definitions sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Count returns the number of registered directives.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.defs)
}

// globalRegistry holds the directives registered at init time.
var globalRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry { return globalRegistry }

// Register adds a definition to the process-wide registry.
// Call this from init() functions in directive packages.
func Register(def Definition) { globalRegistry.Register(def) }

// Get returns a definition from the process-wide registry.
func Get(name string) (Definition, bool) { return globalRegistry.Get(name) }

// List returns all definitions in the process-wide registry.
func List() []Definition { return globalRegistry.List() }
