package cql

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/joelmontavon/fhir4ds/expr"
	"github.com/joelmontavon/fhir4ds/pipeline"
)

// CompiledDefine is the SQL of one define statement.
type CompiledDefine struct {
	Name    string
	CTEName string
	// SQL selects the define's value from its CTE.
	SQL          string
	IsCollection bool
}

// LibraryResult is the outcome of compiling a whole library.
type LibraryResult struct {
	Library *Library
	Defines []CompiledDefine
	// CTEs lists every accumulated sub-query in dependency order; prepend
	// them with a WITH clause to any of the define SQL expressions.
	CTEs []pipeline.CTE
}

// Query assembles a runnable SELECT of the named define.
func (r *LibraryResult) Query(name string) (string, error) {
	for _, d := range r.Defines {
		if d.Name == name {
			var b strings.Builder
			b.WriteString("WITH ")
			for i, cte := range r.CTEs {
				if i > 0 {
					b.WriteString(",\n     ")
				}
				b.WriteString(cte.Name)
				b.WriteString(" AS (")
				b.WriteString(cte.SQL)
				b.WriteString(")")
			}
			fmt.Fprintf(&b, "\nSELECT result FROM %s", d.CTEName)
			return b.String(), nil
		}
	}
	return "", fmt.Errorf("no define named %q", name)
}

// compiler carries per-library compilation state: the value-set declarations,
// the defines compiled so far, and the retrieve counter that keeps CTE names
// deterministic.
type compiler struct {
	lib       *Library
	defines   map[string]CompiledDefine
	retrieves int
}

// CompileLibrary compiles every define of lib, in order, against
// baseTable.jsonColumn. Later defines see earlier ones as named CTEs.
func CompileLibrary(lib *Library, ctx *pipeline.ExecutionContext, baseTable, jsonColumn string) (*LibraryResult, error) {
	comp := &compiler{lib: lib, defines: make(map[string]CompiledDefine)}
	result := &LibraryResult{Library: lib}
	var ctes []pipeline.CTE

	for _, def := range lib.Defines {
		conv := pipeline.NewConverterWith(comp.extension)
		p, err := conv.Convert(def.Expr)
		if err != nil {
			return nil, fmt.Errorf("define %q: %w", def.Name, err)
		}
		init := pipeline.NewState(baseTable, jsonColumn).Evolve(pipeline.Changes{
			ResourceType: &lib.Context,
			AddCTEs:      ctes,
		})
		final, err := p.Compile(ctx, init)
		if err != nil {
			return nil, fmt.Errorf("define %q: %w", def.Name, err)
		}

		cteName := strcase.ToSnake(def.Name)
		cteSQL := fmt.Sprintf("SELECT %s AS result FROM %s", final.Fragment, baseTable)
		ctes = append(final.CTEs, pipeline.CTE{Name: cteName, SQL: cteSQL})

		cd := CompiledDefine{
			Name:         def.Name,
			CTEName:      cteName,
			SQL:          fmt.Sprintf("(SELECT result FROM %s)", cteName),
			IsCollection: final.IsCollection,
		}
		comp.defines[def.Name] = cd
		result.Defines = append(result.Defines, cd)
	}
	result.CTEs = ctes
	return result, nil
}

// extension converts the CQL node kinds the pipeline core does not know:
// retrieves, aliased queries, and references to earlier defines.
func (comp *compiler) extension(n expr.Node, c *pipeline.Converter) (pipeline.Pipeline, bool, error) {
	switch t := n.(type) {
	case *expr.Retrieve:
		comp.retrieves++
		op := retrieveOp{
			resourceType: t.ResourceType,
			valueSet:     comp.resolveValueSet(t.ValueSet),
			codePath:     t.CodePath,
			cteName:      fmt.Sprintf("%s_retrieve_%d", strcase.ToSnake(t.ResourceType), comp.retrieves),
		}
		return pipeline.Pipeline{op}, true, nil

	case *expr.Query:
		source, err := c.Convert(t.Source)
		if err != nil {
			return nil, false, err
		}
		op := queryOp{query: t}
		for _, rel := range t.Relationships {
			relSource, err := c.Argument(rel.Source)
			if err != nil {
				return nil, false, err
			}
			op.relSources = append(op.relSources, relSource)
		}
		if t.Where != nil {
			if op.where, err = c.Argument(t.Where); err != nil {
				return nil, false, err
			}
		}
		if t.Return != nil {
			if op.ret, err = c.Argument(t.Return); err != nil {
				return nil, false, err
			}
		}
		for _, s := range t.Sort {
			if s.Expr == nil {
				op.sorts = append(op.sorts, pipeline.Argument{})
				continue
			}
			sa, err := c.Argument(s.Expr)
			if err != nil {
				return nil, false, err
			}
			op.sorts = append(op.sorts, sa)
		}
		return append(source, op), true, nil

	case *expr.Identifier:
		if def, ok := comp.defines[t.Name]; ok {
			return pipeline.Pipeline{defineRefOp{def: def}}, true, nil
		}
		return nil, false, nil

	default:
		return nil, false, nil
	}
}

// resolveValueSet maps a declared value-set name to its canonical URL,
// passing unknown names through for the terminology client to judge.
func (comp *compiler) resolveValueSet(name string) string {
	if name == "" {
		return ""
	}
	if url, ok := comp.lib.ValueSets[name]; ok {
		return url
	}
	return name
}

// defaultCodePaths names the primary code element per resource type, used by
// retrieves that do not spell an explicit code path.
var defaultCodePaths = map[string]string{
	"AllergyIntolerance": "$.code",
	"Condition":          "$.code",
	"DiagnosticReport":   "$.code",
	"Encounter":          "$.type[0]",
	"Immunization":       "$.vaccineCode",
	"MedicationRequest":  "$.medicationCodeableConcept",
	"Observation":        "$.code",
	"Procedure":          "$.code",
}

// retrieveOp compiles a [ResourceType: "value set"] clause. It materializes
// the matching resources of the base table as a CTE and leaves the pipeline
// holding the JSON array of those resources.
type retrieveOp struct {
	resourceType string
	valueSet     string
	codePath     string
	cteName      string
}

func (o retrieveOp) Describe() string { return "retrieve [" + o.resourceType + "]" }

func (o retrieveOp) Execute(state pipeline.SQLState, ctx *pipeline.ExecutionContext) (pipeline.SQLState, error) {
	if state.BaseTable == "" {
		return pipeline.SQLState{}, fmt.Errorf("retrieve [%s]: no base table in state", o.resourceType)
	}
	d := ctx.Dialect
	cond := fmt.Sprintf("%s = '%s'",
		d.ExtractJSONText(state.JSONColumn, "$.resourceType"), o.resourceType)

	if o.valueSet != "" {
		if ctx.Terminology == nil {
			return pipeline.SQLState{}, fmt.Errorf("retrieve [%s: %q]: no terminology client configured", o.resourceType, o.valueSet)
		}
		codePath := o.codePath
		if codePath == "" {
			codePath = defaultCodePaths[o.resourceType]
		}
		if codePath == "" {
			codePath = "$.code"
		} else if !strings.HasPrefix(codePath, "$") {
			codePath = "$." + codePath
		}
		filter, err := ctx.Terminology.FilterSQL(o.valueSet, codePath, state.JSONColumn, d)
		if err != nil {
			return pipeline.SQLState{}, fmt.Errorf("retrieve [%s: %q]: %w", o.resourceType, o.valueSet, err)
		}
		cond += " AND " + filter
	}

	cte := pipeline.CTE{
		Name: o.cteName,
		SQL: fmt.Sprintf("SELECT %s.%s AS resource FROM %s WHERE %s",
			state.BaseTable, state.JSONColumn, state.BaseTable, cond),
	}
	frag := fmt.Sprintf("(SELECT %s FROM %s)", d.AggregateToJSONArray("resource"), o.cteName)

	isColl := true
	org := pipeline.OriginFiltered
	return state.Evolve(pipeline.Changes{
		Fragment:     &frag,
		IsCollection: &isColl,
		PathContext:  strPtr(""),
		ResourceType: &o.resourceType,
		Origin:       &org,
		AddCTEs:      []pipeline.CTE{cte},
	}), nil
}

// queryOp compiles an aliased query over the collection the pipeline holds:
// with/without relationships become correlated EXISTS tests, where filters,
// return projects, sort by orders the aggregated result.
type queryOp struct {
	query      *expr.Query
	relSources []pipeline.Argument
	where      pipeline.Argument
	ret        pipeline.Argument
	sorts      []pipeline.Argument
}

func (o queryOp) Describe() string { return "query " + o.query.Alias }

func (o queryOp) Execute(state pipeline.SQLState, ctx *pipeline.ExecutionContext) (pipeline.SQLState, error) {
	d := ctx.Dialect
	q := o.query

	scope := pipeline.NewState("t", "value").Evolve(pipeline.Changes{
		ResourceType: &state.ResourceType,
		AddCTEs:      state.CTEs,
		Bind:         map[string]string{q.Alias: "t.value"},
	})

	var conds []string
	for i, rel := range q.Relationships {
		relState, err := o.relSources[i].CompileFresh(state, ctx)
		if err != nil {
			return pipeline.SQLState{}, err
		}
		state = state.Evolve(pipeline.Changes{ReplaceCTEs: relState.CTEs})
		scope = scope.Evolve(pipeline.Changes{
			ReplaceCTEs: relState.CTEs,
			Bind:        map[string]string{rel.Alias: "r.value"},
		})

		suchArg, err := convertSuchThat(rel.SuchThat)
		if err != nil {
			return pipeline.SQLState{}, err
		}
		suchState, err := suchArg.CompileScoped(scope, ctx)
		if err != nil {
			return pipeline.SQLState{}, err
		}
		state = state.Evolve(pipeline.Changes{ReplaceCTEs: suchState.CTEs})

		exists := fmt.Sprintf("EXISTS (SELECT 1 FROM %s WHERE %s)",
			d.IterateJSONArrayAs(relState.Fragment, "$", "r"), suchState.Fragment)
		if rel.Kind == expr.RelWithout {
			exists = "NOT " + exists
		}
		conds = append(conds, exists)
	}

	if q.Where != nil {
		condState, err := o.where.CompileScoped(scope, ctx)
		if err != nil {
			return pipeline.SQLState{}, err
		}
		state = state.Evolve(pipeline.Changes{ReplaceCTEs: condState.CTEs})
		conds = append(conds, condState.Fragment)
	}

	projection := "t.value"
	org := pipeline.OriginFiltered
	if q.Return != nil {
		retState, err := o.ret.CompileScoped(scope, ctx)
		if err != nil {
			return pipeline.SQLState{}, err
		}
		state = state.Evolve(pipeline.Changes{ReplaceCTEs: retState.CTEs})
		projection = retState.Fragment
		org = pipeline.OriginIterated
	}

	var order []string
	for i, s := range q.Sort {
		dir := "ASC"
		if s.Direction == expr.SortDesc {
			dir = "DESC"
		}
		item := "v"
		if s.Expr != nil {
			sortState, err := o.sorts[i].CompileScoped(scope, ctx)
			if err != nil {
				return pipeline.SQLState{}, err
			}
			state = state.Evolve(pipeline.Changes{ReplaceCTEs: sortState.CTEs})
			item = sortState.Fragment
		}
		order = append(order, item+" "+dir)
	}

	src := d.IterateJSONArray(state.EffectiveBase(), "$")
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}
	var frag string
	if len(order) > 0 {
		frag = fmt.Sprintf("(SELECT %s FROM (SELECT %s AS v FROM %s%s ORDER BY %s) AS u)",
			d.AggregateToJSONArray("v"), projection, src, where, strings.Join(order, ", "))
	} else {
		frag = fmt.Sprintf("(SELECT %s FROM %s%s)",
			d.AggregateToJSONArray(projection), src, where)
	}

	isColl := true
	return state.Evolve(pipeline.Changes{
		Fragment:     &frag,
		IsCollection: &isColl,
		PathContext:  strPtr(""),
		Origin:       &org,
	}), nil
}

// convertSuchThat converts a relationship condition on its own, without the
// library extension: such-that conditions reference aliases, not defines.
func convertSuchThat(n expr.Node) (pipeline.Argument, error) {
	return pipeline.NewConverter().Argument(n)
}

// defineRefOp resolves a reference to an earlier define of the same library.
type defineRefOp struct {
	def CompiledDefine
}

func (o defineRefOp) Describe() string { return "define reference " + o.def.Name }

func (o defineRefOp) Execute(state pipeline.SQLState, ctx *pipeline.ExecutionContext) (pipeline.SQLState, error) {
	frag := o.def.SQL
	return state.Evolve(pipeline.Changes{
		Fragment:     &frag,
		IsCollection: &o.def.IsCollection,
		PathContext:  strPtr(""),
	}), nil
}

func strPtr(s string) *string { return &s }
