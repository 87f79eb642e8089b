package dialect

import (
	"fmt"
	"strings"
)

// DuckDB generates SQL for DuckDB's JSON extension. DuckDB accepts the
// $.field[0] path form directly and ships SQLite-compatible json_each for
// array iteration.
type DuckDB struct{}

func (DuckDB) Name() string { return "duckdb" }

func (DuckDB) ExtractJSON(base, path string) string {
	return fmt.Sprintf("json_extract(%s, %s)", base, QuoteString(path))
}

func (DuckDB) ExtractJSONText(base, path string) string {
	return fmt.Sprintf("json_extract_string(%s, %s)", base, QuoteString(path))
}

func (d DuckDB) IterateJSONArray(base, path string) string {
	return d.IterateJSONArrayAs(base, path, "t")
}

func (DuckDB) IterateJSONArrayAs(base, path, alias string) string {
	if path == "" || path == "$" {
		return fmt.Sprintf("json_each(%s) AS %s", base, alias)
	}
	return fmt.Sprintf("json_each(%s, %s) AS %s", base, QuoteString(path), alias)
}

// json_each already exposes the array index as key.
func (d DuckDB) IterateJSONArrayOrdered(base, path string) string {
	return d.IterateJSONArray(base, path)
}

func (DuckDB) ElementOrdinal() string { return "t.key" }

func (DuckDB) JSONArray(items ...string) string {
	return fmt.Sprintf("json_array(%s)", strings.Join(items, ", "))
}

func (DuckDB) JSONTextValue(expr string) string {
	return fmt.Sprintf("json_extract_string(%s, '$')", expr)
}

func (DuckDB) LastElement(expr string) string {
	return fmt.Sprintf("json_extract(%s, '$[#-1]')", expr)
}

func (DuckDB) AggregateToJSONArray(expr string) string {
	return fmt.Sprintf("json_group_array(%s)", expr)
}

func (DuckDB) JSONType(expr string) string {
	return fmt.Sprintf("json_type(%s)", expr)
}

// JSONTypeIs maps the logical JSON kinds to the type names DuckDB's
// json_type reports.
func (DuckDB) JSONTypeIs(expr, kind string) string {
	t := fmt.Sprintf("json_type(%s)", expr)
	switch kind {
	case "number":
		return fmt.Sprintf("(%s IN ('UBIGINT', 'BIGINT', 'DOUBLE'))", t)
	case "boolean":
		return fmt.Sprintf("(%s = 'BOOLEAN')", t)
	case "string":
		return fmt.Sprintf("(%s = 'VARCHAR')", t)
	case "array":
		return fmt.Sprintf("(%s = 'ARRAY')", t)
	default:
		return fmt.Sprintf("(%s = 'OBJECT')", t)
	}
}

func (DuckDB) NumericType() string { return "DOUBLE" }

func (DuckDB) RoundTo(expr, digits string) string {
	return fmt.Sprintf("round(%s, %s)", expr, digits)
}

func (DuckDB) JSONArrayLength(expr string) string {
	return fmt.Sprintf("json_array_length(%s)", expr)
}

func (DuckDB) JSONObject(pairs ...string) string {
	return fmt.Sprintf("json_object(%s)", strings.Join(pairs, ", "))
}

func (DuckDB) BooleanLiteral(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func (DuckDB) StringPosition(substr, s string) string {
	return fmt.Sprintf("strpos(%s, %s)", s, substr)
}

func (DuckDB) Substring(s, start, length string) string {
	if length == "" {
		return fmt.Sprintf("substr(%s, %s)", s, start)
	}
	return fmt.Sprintf("substr(%s, %s, %s)", s, start, length)
}

func (DuckDB) RegexpMatches(s, pattern string) string {
	return fmt.Sprintf("regexp_matches(%s, %s)", s, pattern)
}

func (DuckDB) RegexpReplace(s, pattern, repl string) string {
	return fmt.Sprintf("regexp_replace(%s, %s, %s, 'g')", s, pattern, repl)
}

func (DuckDB) SplitToJSONArray(s, sep string) string {
	return fmt.Sprintf("to_json(string_split(%s, %s))", s, sep)
}

func (DuckDB) CurrentTimestamp() string { return "current_timestamp" }

func (DuckDB) CurrentDate() string { return "current_date" }

func (DuckDB) DateDiffYears(from, to string) string {
	// date_diff counts calendar-year boundaries; correct down when the
	// anniversary has not been reached yet.
	return fmt.Sprintf(
		"(date_diff('year', %[1]s, %[2]s) - CASE WHEN (date_part('month', %[2]s), date_part('day', %[2]s)) < (date_part('month', %[1]s), date_part('day', %[1]s)) THEN 1 ELSE 0 END)",
		from, to,
	)
}

func (DuckDB) Median(expr string) string {
	return fmt.Sprintf("median(%s)", expr)
}

func (DuckDB) DatePart(part, expr string) string {
	return fmt.Sprintf("date_part(%s, %s)", QuoteString(part), expr)
}

func (DuckDB) Cast(expr, sqlType string) string {
	return fmt.Sprintf("CAST(%s AS %s)", expr, sqlType)
}

func (DuckDB) TryCast(expr, sqlType string) string {
	return fmt.Sprintf("TRY_CAST(%s AS %s)", expr, sqlType)
}
