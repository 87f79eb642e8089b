package pipeline

// Helpers shared by the handler categories.

// computed evolves state to a fragment that has left the source document.
func computed(state SQLState, frag string, isCollection bool, o ArrayOrigin) SQLState {
	return state.Evolve(Changes{
		Fragment:     &frag,
		IsCollection: &isCollection,
		PathContext:  str(""),
		Origin:       origin(o),
	})
}

// scalar evolves state to a computed single-valued fragment.
func scalar(state SQLState, frag string) SQLState {
	return computed(state, frag, false, OriginNone)
}

// iterSource returns the FROM-clause item iterating the current collection,
// aliased t with the element in t.value. Document-path collections iterate
// from the raw base so the path stays in one place; computed arrays iterate
// the fragment itself.
func iterSource(state SQLState, ctx *ExecutionContext) string {
	if state.PathContext != "" && state.Origin == OriginNone {
		return ctx.Dialect.IterateJSONArray(state.RawBase(), state.PathContext)
	}
	return ctx.Dialect.IterateJSONArray(state.EffectiveBase(), "$")
}

// iterSourceOrdered is iterSource with the element ordinal exposed, for
// handlers whose output depends on row order.
func iterSourceOrdered(state SQLState, ctx *ExecutionContext) string {
	if state.PathContext != "" && state.Origin == OriginNone {
		return ctx.Dialect.IterateJSONArrayOrdered(state.RawBase(), state.PathContext)
	}
	return ctx.Dialect.IterateJSONArrayOrdered(state.EffectiveBase(), "$")
}

// elemScope returns the state an iterating handler compiles per-element
// sub-expressions against: the loop variable t.value as base, at the
// document root of the element. CTEs and bindings carry over.
func elemScope(state SQLState) SQLState {
	return SQLState{
		BaseTable:   "t",
		JSONColumn:  "value",
		Fragment:    "t.value",
		CTEs:        state.CTEs,
		PathContext: "$",
		Variables:   state.Variables,
	}
}

// adoptCTEs carries sub-pipeline CTE accumulation back into the parent.
func adoptCTEs(state, sub SQLState) SQLState {
	return state.Evolve(Changes{ReplaceCTEs: sub.CTEs})
}

// wantArgs checks arity.
func wantArgs(fn string, args []Argument, min, max int) error {
	if len(args) < min || len(args) > max {
		reason := "wrong number of arguments"
		return &ArgumentError{Function: fn, Arg: -1, Reason: reason}
	}
	return nil
}
