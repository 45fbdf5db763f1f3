// Package functions holds the tool registry the model can call into.
package functions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"google.golang.org/genai"
)

// Action is one local operation. Results should be map[string]any; anything
// else is wrapped by the relay before it reaches the model.
type Action func(ctx context.Context, args map[string]any) (any, error)

// Registry maps tool names to their declaration and action
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
	decls   map[string]*genai.FunctionDeclaration
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		actions: make(map[string]Action),
		decls:   make(map[string]*genai.FunctionDeclaration),
	}
}

// Register adds a tool. Registering the same name twice is an error.
func (r *Registry) Register(decl *genai.FunctionDeclaration, action Action) error {
	if decl == nil || decl.Name == "" {
		return fmt.Errorf("function declaration needs a name")
	}
	if action == nil {
		return fmt.Errorf("function %s: nil action", decl.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[decl.Name]; exists {
		return fmt.Errorf("function %s already registered", decl.Name)
	}
	r.actions[decl.Name] = action
	r.decls[decl.Name] = decl
	return nil
}

// MustRegister is Register for static tool tables
func (r *Registry) MustRegister(decl *genai.FunctionDeclaration, action Action) {
	if err := r.Register(decl, action); err != nil {
		panic(err)
	}
}

// Lookup returns the action registered under name
func (r *Registry) Lookup(name string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	action, ok := r.actions[name]
	return action, ok
}

// Names returns registered tool names in sorted order
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.actions))
	for name := range r.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Declarations returns the declarations in name order
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	names := r.Names()

	r.mu.RLock()
	defer r.mu.RUnlock()

	decls := make([]*genai.FunctionDeclaration, 0, len(names))
	for _, name := range names {
		decls = append(decls, r.decls[name])
	}
	return decls
}

// Tools wraps the declarations for a Live connect config
func (r *Registry) Tools() []*genai.Tool {
	decls := r.Declarations()
	if len(decls) == 0 {
		return nil
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}
