package pipeline

import "github.com/joelmontavon/fhir4ds/dialect"

// navigate computes the state after stepping into field from the current
// value.
//
// While the value is still addressable inside the source document
// (PathContext non-empty), navigation extends the logical path and
// re-extracts from the raw base, so consecutive steps compile to one
// extraction with the full path rather than nested extractions. Stepping out
// of a collection takes the first element: a scalar field reached through an
// array filters down to one value rather than broadcasting, so
// Patient.name.family addresses $.name[0].family.
//
// Once the fragment is a computed array, the origin marker decides the
// strategy: filtered arrays keep the filter-then-navigate semantics (first
// matching element), iterated arrays project the field across every element
// into a new array.
//
// In every document-path and filtered case the result's IsCollection equals
// the schema classification of field, independent of the input's.
func navigate(state SQLState, ctx *ExecutionContext, field string) (SQLState, error) {
	if state.BaseTable == "" {
		return SQLState{}, &PreconditionError{Op: "path " + field, Reason: "no base table in state"}
	}
	yields := ctx.Schema.IsArrayField(state.ResourceType, field)
	d := ctx.Dialect

	switch {
	case state.Origin == OriginIterated:
		// Map semantics: project field across every element of the computed
		// array, producing a new array.
		elem := d.ExtractJSON("t.value", "$."+field)
		frag := "(SELECT " + d.AggregateToJSONArray(elem) + " FROM " + d.IterateJSONArray(state.Fragment, "$") + ")"
		return state.Evolve(Changes{
			Fragment:     &frag,
			IsCollection: boolp(true),
			PathContext:  str(""),
			Origin:       origin(OriginIterated),
		}), nil

	case state.Origin == OriginFiltered:
		// Filter semantics: the field comes from the first element of the
		// computed array.
		frag := extract(d, state.Fragment, "$[0]."+field, yields)
		return state.Evolve(Changes{
			Fragment:     &frag,
			IsCollection: &yields,
			PathContext:  str(""),
			Origin:       origin(OriginNone),
		}), nil

	case state.PathContext != "":
		path := state.PathContext
		if state.IsCollection {
			path += "[0]"
		}
		path += "." + field
		frag := extract(d, state.RawBase(), path, yields)
		return state.Evolve(Changes{
			Fragment:     &frag,
			IsCollection: &yields,
			PathContext:  &path,
			Origin:       origin(OriginNone),
		}), nil

	default:
		// Computed scalar or object fragment: extract directly from it.
		frag := extract(d, state.Fragment, "$."+field, yields)
		return state.Evolve(Changes{
			Fragment:     &frag,
			IsCollection: &yields,
			Origin:       origin(OriginNone),
		}), nil
	}
}

// extract chooses array- vs scalar-extraction syntax. Arrays keep JSON typing
// so later operations can iterate them; scalars unwrap to text so comparisons
// and string functions see plain values.
func extract(d dialect.Dialect, base, path string, asCollection bool) string {
	if asCollection {
		return d.ExtractJSON(base, path)
	}
	return d.ExtractJSONText(base, path)
}

// index computes the state after selecting the zero-based idx element of the
// current value. idx must be a non-negative integer literal; JSON path
// addressing cannot take a computed index on both engines.
func index(state SQLState, ctx *ExecutionContext, idx string) (SQLState, error) {
	if state.BaseTable == "" {
		return SQLState{}, &PreconditionError{Op: "indexer", Reason: "no base table in state"}
	}
	d := ctx.Dialect
	if state.PathContext != "" {
		path := state.PathContext + "[" + idx + "]"
		frag := d.ExtractJSON(state.RawBase(), path)
		return state.Evolve(Changes{
			Fragment:     &frag,
			IsCollection: boolp(false),
			PathContext:  &path,
			Origin:       origin(OriginNone),
		}), nil
	}
	frag := d.ExtractJSON(state.Fragment, "$["+idx+"]")
	return state.Evolve(Changes{
		Fragment:     &frag,
		IsCollection: boolp(false),
		PathContext:  str(""),
		Origin:       origin(OriginNone),
	}), nil
}
