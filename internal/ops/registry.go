// Package ops holds the named benchmark operations and their competing
// implementations.
//
// An operation is registered once with two or more implementations. Every
// implementation receives the same input tables and must produce an
// equivalent table; the first implementation registered is the reference
// the others are compared against.
package ops

import (
	"context"
	"fmt"
	"sync"

	"github.com/ng-nicholas/tabbench/internal/bencherr"
	"github.com/ng-nicholas/tabbench/internal/queryir"
	"github.com/ng-nicholas/tabbench/internal/table"
)

// Func runs one implementation of an operation over its inputs.
type Func func(ctx context.Context, inputs []*table.Table) (*table.Table, error)

// Implementation is one named way of computing an operation.
type Implementation struct {
	Name string
	Fn   Func
}

// Operation is a registered operation.
type Operation struct {
	Name            string
	Implementations []Implementation
}

// Backend executes query IR nodes. Both the in-memory frame engine and the
// SQL engines satisfy it.
type Backend interface {
	Name() string
	Execute(ctx context.Context, q queryir.Query, inputs []*table.Table) (*table.Table, error)
}

// Registry maps operation names to their implementations. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	ops   map[string]*Operation
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]*Operation)}
}

// Register adds an operation with at least two implementations. A name
// that is already registered fails with DuplicateOperationError and leaves
// the first registration in place.
func (r *Registry) Register(name string, first, second Implementation, more ...Implementation) error {
	impls := append([]Implementation{first, second}, more...)
	seen := make(map[string]bool, len(impls))
	for _, impl := range impls {
		if impl.Name == "" || impl.Fn == nil {
			return bencherr.NewInvalidConfig("implementations", "operation %q has an implementation without a name or function", name)
		}
		if seen[impl.Name] {
			return bencherr.NewInvalidConfig("implementations", "operation %q lists implementation %q twice", name, impl.Name)
		}
		seen[impl.Name] = true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.ops[name]; dup {
		return &bencherr.DuplicateOperationError{Name: name}
	}
	r.ops[name] = &Operation{Name: name, Implementations: impls}
	r.order = append(r.order, name)
	return nil
}

// Lookup returns the operation registered under name.
func (r *Registry) Lookup(name string) (*Operation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	if !ok {
		return nil, &bencherr.UnknownOperationError{Name: name}
	}
	return op, nil
}

// Names returns the registered operation names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of registered operations.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Bind wraps a back end and a query as an implementation named after the
// back end.
func Bind(b Backend, q queryir.Query) Implementation {
	return Implementation{
		Name: b.Name(),
		Fn: func(ctx context.Context, inputs []*table.Table) (*table.Table, error) {
			return b.Execute(ctx, q, inputs)
		},
	}
}

// Build registers name as q executed by each back end, in order. At least
// two back ends are required.
func (r *Registry) Build(name string, q queryir.Query, backends ...Backend) error {
	if len(backends) < 2 {
		return bencherr.NewInvalidConfig("backends", "operation %q needs at least two back ends, got %d", name, len(backends))
	}
	impls := make([]Implementation, len(backends))
	for i, b := range backends {
		impls[i] = Bind(b, q)
	}
	if err := r.Register(name, impls[0], impls[1], impls[2:]...); err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}
	return nil
}
