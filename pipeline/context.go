package pipeline

import (
	"github.com/joelmontavon/fhir4ds/dialect"
	"github.com/joelmontavon/fhir4ds/schema"
	"github.com/joelmontavon/fhir4ds/terminology"
)

// Tracer receives one call per executed operation. Implementations must not
// mutate the states they are handed.
type Tracer interface {
	Trace(op string, before, after SQLState)
}

// ExecutionContext is the read-only configuration of one compilation run.
// Operations may read from it but never write to it; the same context can be
// shared across concurrent compilations.
type ExecutionContext struct {
	// Dialect generates engine-specific SQL syntax.
	Dialect dialect.Dialect

	// Schema classifies FHIR fields as array- or single-valued.
	Schema schema.Lookup

	// Terminology resolves value-set references to SQL filter conditions.
	// Only retrieve operations consult it; nil is fine otherwise.
	Terminology terminology.Client

	// Parameters resolves %name external constants to SQL text.
	Parameters map[string]string

	// Tracer, when set, observes every operation execution.
	Tracer Tracer

	// Registry overrides the default function handler registry. Nil means
	// DefaultRegistry.
	Registry *Registry
}

// NewExecutionContext returns a context for the given dialect using the R4
// schema lookup and the default handler registry.
func NewExecutionContext(d dialect.Dialect) *ExecutionContext {
	return &ExecutionContext{
		Dialect: d,
		Schema:  schema.R4(),
	}
}

func (ctx *ExecutionContext) registry() *Registry {
	if ctx.Registry != nil {
		return ctx.Registry
	}
	return DefaultRegistry()
}

func (ctx *ExecutionContext) trace(op string, before, after SQLState) {
	if ctx.Tracer != nil {
		ctx.Tracer.Trace(op, before, after)
	}
}
