package dialect

import (
	"fmt"
	"strings"
)

// PostgreSQL generates SQL for PostgreSQL's jsonb functions. The $.field[0]
// path form is valid SQL/JSON path syntax, so paths pass through to
// jsonb_path_query* unchanged.
type PostgreSQL struct{}

func (PostgreSQL) Name() string { return "postgresql" }

func (PostgreSQL) ExtractJSON(base, path string) string {
	return fmt.Sprintf("jsonb_path_query_first(%s, %s)", base, QuoteString(path))
}

func (PostgreSQL) ExtractJSONText(base, path string) string {
	// #>> '{}' unwraps the jsonb scalar to text without the JSON quoting
	return fmt.Sprintf("(jsonb_path_query_first(%s, %s) #>> '{}')", base, QuoteString(path))
}

func (d PostgreSQL) IterateJSONArray(base, path string) string {
	return d.IterateJSONArrayAs(base, path, "t")
}

func (PostgreSQL) IterateJSONArrayAs(base, path, alias string) string {
	if path == "" || path == "$" {
		return fmt.Sprintf("jsonb_array_elements(%s) AS %s(value)", base, alias)
	}
	return fmt.Sprintf("jsonb_path_query(%s, %s) AS %s(value)", base, QuoteString(arrayElementsPath(path)), alias)
}

// arrayElementsPath appends [*] so jsonb_path_query yields one row per array
// element rather than the array itself.
func arrayElementsPath(path string) string {
	if strings.HasSuffix(path, "[*]") {
		return path
	}
	return path + "[*]"
}

func (PostgreSQL) IterateJSONArrayOrdered(base, path string) string {
	if path == "" || path == "$" {
		return fmt.Sprintf("jsonb_array_elements(%s) WITH ORDINALITY AS t(value, ord)", base)
	}
	return fmt.Sprintf("jsonb_path_query(%s, %s) WITH ORDINALITY AS t(value, ord)", base, QuoteString(arrayElementsPath(path)))
}

func (PostgreSQL) ElementOrdinal() string { return "t.ord" }

func (PostgreSQL) JSONArray(items ...string) string {
	return fmt.Sprintf("jsonb_build_array(%s)", strings.Join(items, ", "))
}

func (PostgreSQL) JSONTextValue(expr string) string {
	return fmt.Sprintf("(%s #>> '{}')", expr)
}

func (PostgreSQL) LastElement(expr string) string {
	return fmt.Sprintf("jsonb_path_query_first(%s, '$[last]')", expr)
}

func (PostgreSQL) AggregateToJSONArray(expr string) string {
	return fmt.Sprintf("jsonb_agg(%s)", expr)
}

func (PostgreSQL) JSONType(expr string) string {
	return fmt.Sprintf("jsonb_typeof(%s)", expr)
}

func (PostgreSQL) JSONTypeIs(expr, kind string) string {
	return fmt.Sprintf("(jsonb_typeof(%s) = %s)", expr, QuoteString(kind))
}

func (PostgreSQL) NumericType() string { return "DOUBLE PRECISION" }

// RoundTo casts through NUMERIC: PostgreSQL has no
// round(double precision, integer) overload.
func (PostgreSQL) RoundTo(expr, digits string) string {
	return fmt.Sprintf("round(CAST(%s AS NUMERIC), %s)", expr, digits)
}

func (PostgreSQL) JSONArrayLength(expr string) string {
	return fmt.Sprintf("jsonb_array_length(%s)", expr)
}

func (PostgreSQL) JSONObject(pairs ...string) string {
	return fmt.Sprintf("jsonb_build_object(%s)", strings.Join(pairs, ", "))
}

func (PostgreSQL) BooleanLiteral(v bool) string {
	if v {
		return "TRUE"
	}
	return "FALSE"
}

func (PostgreSQL) StringPosition(substr, s string) string {
	return fmt.Sprintf("position(%s in %s)", substr, s)
}

func (PostgreSQL) Substring(s, start, length string) string {
	if length == "" {
		return fmt.Sprintf("substring(%s from %s)", s, start)
	}
	return fmt.Sprintf("substring(%s from %s for %s)", s, start, length)
}

func (PostgreSQL) RegexpMatches(s, pattern string) string {
	return fmt.Sprintf("(%s ~ %s)", s, pattern)
}

func (PostgreSQL) RegexpReplace(s, pattern, repl string) string {
	return fmt.Sprintf("regexp_replace(%s, %s, %s, 'g')", s, pattern, repl)
}

func (PostgreSQL) SplitToJSONArray(s, sep string) string {
	return fmt.Sprintf("to_jsonb(string_to_array(%s, %s))", s, sep)
}

func (PostgreSQL) CurrentTimestamp() string { return "CURRENT_TIMESTAMP" }

func (PostgreSQL) CurrentDate() string { return "CURRENT_DATE" }

func (PostgreSQL) DateDiffYears(from, to string) string {
	return fmt.Sprintf("EXTRACT(YEAR FROM age(%s, %s))", to, from)
}

func (PostgreSQL) Median(expr string) string {
	return fmt.Sprintf("percentile_cont(0.5) WITHIN GROUP (ORDER BY %s)", expr)
}

func (PostgreSQL) DatePart(part, expr string) string {
	return fmt.Sprintf("EXTRACT(%s FROM %s)", strings.ToUpper(part), expr)
}

func (PostgreSQL) Cast(expr, sqlType string) string {
	return fmt.Sprintf("CAST(%s AS %s)", expr, sqlType)
}

// TryCast has no direct PostgreSQL equivalent; numeric and boolean targets are
// guarded with a format check, other targets fall back to a plain cast.
func (PostgreSQL) TryCast(expr, sqlType string) string {
	switch strings.ToUpper(sqlType) {
	case "INTEGER", "BIGINT":
		return fmt.Sprintf(`(CASE WHEN (%s)::text ~ '^-?[0-9]+$' THEN CAST(%s AS %s) END)`, expr, expr, sqlType)
	case "DECIMAL", "NUMERIC", "DOUBLE PRECISION":
		return fmt.Sprintf(`(CASE WHEN (%s)::text ~ '^-?[0-9]+(\.[0-9]+)?$' THEN CAST(%s AS %s) END)`, expr, expr, sqlType)
	case "BOOLEAN":
		return fmt.Sprintf(`(CASE WHEN lower((%s)::text) IN ('true','false','t','f','0','1') THEN CAST(%s AS BOOLEAN) END)`, expr, expr)
	case "TIMESTAMP":
		return fmt.Sprintf(`(CASE WHEN (%s)::text ~ '^[0-9]{4}-[0-9]{2}-[0-9]{2}([T ][0-9]{2}:[0-9]{2}(:[0-9]{2}(\.[0-9]+)?)?)?$' THEN CAST(%s AS TIMESTAMP) END)`, expr, expr)
	default:
		return fmt.Sprintf("CAST(%s AS %s)", expr, sqlType)
	}
}
