// Package pipeline implements the compilation core: an immutable state value
// threaded through an ordered sequence of operations, each of which extends
// the SQL built so far. Dialect-specific syntax is delegated to the dialect
// package; FHIR cardinality questions to the schema package.
package pipeline

import "maps"

// ContextMode describes whether the value flowing through the pipeline is a
// single value or a collection.
type ContextMode uint8

const (
	SingleValue ContextMode = iota
	Collection
)

func (m ContextMode) String() string {
	if m == Collection {
		return "collection"
	}
	return "single-value"
}

// ArrayOrigin records how a collection-valued fragment came to be. Path
// navigation uses it to choose between filter semantics (take the first
// matching element) and map semantics (project every element).
type ArrayOrigin uint8

const (
	// OriginNone: the fragment is still addressable through PathContext, or
	// is not an array at all.
	OriginNone ArrayOrigin = iota
	// OriginFiltered: the fragment is a computed array produced by a
	// filtering operation (where, split, collection literal). Navigating a
	// scalar field out of it takes the first element.
	OriginFiltered
	// OriginIterated: the fragment is a computed array produced by an
	// iterating operation (select). Navigating projects every element.
	OriginIterated
)

// CTE is one named sub-query accumulated during compilation. The final query
// prepends all CTEs, in order, with a WITH clause.
type CTE struct {
	Name string
	SQL  string
}

// SQLState is the immutable compilation state: the SQL built so far plus the
// metadata operations need to extend it. Operations never mutate a state they
// receive; Evolve returns an updated copy.
type SQLState struct {
	// BaseTable and JSONColumn identify the source relation and its JSON
	// payload column. Set once per compilation, never changed.
	BaseTable  string
	JSONColumn string

	// Fragment is the SQL expression for the value produced so far.
	Fragment string

	// CTEs are the named sub-queries accumulated so far, in emission order.
	CTEs []CTE

	// IsCollection is true when Fragment denotes zero or more values.
	IsCollection bool

	// PathContext is the logical JSON path Fragment corresponds to, while the
	// value is still addressable within the source document ("$", "$.name").
	// Empty once the fragment has left the document (literals, computed
	// values, filtered arrays).
	PathContext string

	// ResourceType is the FHIR resource type in scope, when known.
	ResourceType string

	// Variables maps bound names (query aliases) to their SQL representation.
	Variables map[string]string

	// Origin classifies collection fragments for path navigation.
	Origin ArrayOrigin
}

// NewState returns the initial state of a compilation: the raw JSON column of
// the base table, at the document root.
func NewState(baseTable, jsonColumn string) SQLState {
	return SQLState{
		BaseTable:   baseTable,
		JSONColumn:  jsonColumn,
		Fragment:    baseTable + "." + jsonColumn,
		PathContext: "$",
	}
}

// Mode derives the context mode from IsCollection, so the two can never
// disagree.
func (s SQLState) Mode() ContextMode {
	if s.IsCollection {
		return Collection
	}
	return SingleValue
}

// RawBase is the unmodified base-table JSON column reference.
func (s SQLState) RawBase() string {
	return s.BaseTable + "." + s.JSONColumn
}

// EffectiveBase returns Fragment once it has diverged from the raw base
// reference, otherwise the raw base. Operations use it to ask "what am I
// operating on" without caring whether they run first in the pipeline.
func (s SQLState) EffectiveBase() string {
	if s.Fragment != "" {
		return s.Fragment
	}
	return s.RawBase()
}

// FreshBase returns a copy suitable for compiling an argument sub-pipeline:
// same table and column, fragment reset to the raw base at the document root,
// CTEs and bindings carried over so argument compilation appends to the same
// list.
func (s SQLState) FreshBase() SQLState {
	return SQLState{
		BaseTable:    s.BaseTable,
		JSONColumn:   s.JSONColumn,
		Fragment:     s.BaseTable + "." + s.JSONColumn,
		CTEs:         s.CTEs,
		PathContext:  "$",
		ResourceType: s.ResourceType,
		Variables:    s.Variables,
	}
}

// Changes is the set of fields an operation wants to replace. Nil pointer
// fields are carried over from the receiver unchanged; AddCTEs appends and
// Bind merges.
type Changes struct {
	Fragment     *string
	IsCollection *bool
	PathContext  *string
	ResourceType *string
	Origin       *ArrayOrigin

	// AddCTEs are appended to the accumulated CTE list. A CTE whose name is
	// already present is skipped.
	AddCTEs []CTE

	// ReplaceCTEs, when non-nil, substitutes the whole CTE list. Used when an
	// argument sub-pipeline hands its accumulated list back to the parent.
	ReplaceCTEs []CTE

	// Bind merges name to SQL bindings into Variables.
	Bind map[string]string
}

// Evolve returns a copy of s with the set fields of c applied. Evolve with a
// zero Changes returns a state equal to s.
func (s SQLState) Evolve(c Changes) SQLState {
	out := s
	if c.Fragment != nil {
		out.Fragment = *c.Fragment
	}
	if c.IsCollection != nil {
		out.IsCollection = *c.IsCollection
	}
	if c.PathContext != nil {
		out.PathContext = *c.PathContext
	}
	if c.ResourceType != nil {
		out.ResourceType = *c.ResourceType
	}
	if c.Origin != nil {
		out.Origin = *c.Origin
	}
	if c.ReplaceCTEs != nil {
		out.CTEs = c.ReplaceCTEs
	}
	if len(c.AddCTEs) > 0 {
		ctes := make([]CTE, len(out.CTEs), len(out.CTEs)+len(c.AddCTEs))
		copy(ctes, out.CTEs)
	next:
		for _, cte := range c.AddCTEs {
			for _, have := range ctes {
				if have.Name == cte.Name {
					continue next
				}
			}
			ctes = append(ctes, cte)
		}
		out.CTEs = ctes
	}
	if len(c.Bind) > 0 {
		vars := make(map[string]string, len(out.Variables)+len(c.Bind))
		maps.Copy(vars, out.Variables)
		maps.Copy(vars, c.Bind)
		out.Variables = vars
	}
	return out
}

// Helpers so operations can build Changes without temporaries.

func str(s string) *string              { return &s }
func boolp(b bool) *bool                { return &b }
func origin(o ArrayOrigin) *ArrayOrigin { return &o }
