package pipeline

import (
	"strings"
	"sync"
)

// Handler compiles one category of function calls. Handlers are stateless;
// one instance serves every compilation.
type Handler interface {
	// Supports reports whether the handler claims the (lowercased) name.
	Supports(name string) bool
	// Handle compiles a call. name is lowercased; args are the operand
	// sub-pipelines in source order.
	Handle(name string, state SQLState, ctx *ExecutionContext, args []Argument) (SQLState, error)
}

// Registry maps function names, case-insensitively, to handlers. It is built
// once and read-only afterwards, so it can be shared across compilations.
type Registry struct {
	handlers []Handler
	byName   map[string]Handler
}

// NewRegistry indexes the given handlers. When two handlers claim the same
// name the one registered first wins.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{handlers: handlers, byName: make(map[string]Handler)}
	return r
}

// HandlerFor returns the handler claiming name, or nil.
func (r *Registry) HandlerFor(name string) Handler {
	name = strings.ToLower(name)
	if h, ok := r.byName[name]; ok {
		return h
	}
	for _, h := range r.handlers {
		if h.Supports(name) {
			return h
		}
	}
	return nil
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the registry with all built-in handler categories.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry(
			logicalHandler{},
			comparisonHandler{},
			collectionHandler{},
			stringHandler{},
			mathHandler{},
			datetimeHandler{},
			typeHandler{},
		)
		// Pre-index every claimed name so lookups after construction never
		// write to the map and the registry is safe to share.
		for _, h := range defaultRegistry.handlers {
			for _, n := range allFunctionNames {
				if _, taken := defaultRegistry.byName[n]; !taken && h.Supports(n) {
					defaultRegistry.byName[n] = h
				}
			}
		}
	})
	return defaultRegistry
}

// nameSet builds a membership set for a handler's Supports method.
func nameSet(names ...string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[strings.ToLower(n)] = true
	}
	return m
}

// allFunctionNames enumerates every name any built-in handler claims, used to
// pre-populate the default registry index.
var allFunctionNames = func() []string {
	var names []string
	for _, set := range []map[string]bool{
		logicalNames, comparisonNames, collectionNames,
		stringNames, mathNames, datetimeNames, typeNames,
	} {
		for n := range set {
			names = append(names, n)
		}
	}
	return names
}()
