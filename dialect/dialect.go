// Package dialect abstracts per-database-engine SQL generation.
//
// The pipeline core emits engine-neutral operations and delegates every piece
// of engine-specific syntax (JSON path extraction, array iteration and
// aggregation, date arithmetic, casts) to a Dialect. Adding a new target
// engine means implementing this one interface; no other package changes.
package dialect

import (
	"fmt"
	"strings"
)

// Dialect generates SQL text for one target database engine.
//
// Implementations are stateless and may be shared across concurrent
// compilations. JSON paths are passed in the $.field[0].other form; each
// implementation converts to its engine's native addressing.
type Dialect interface {
	// Name returns the registered dialect name, e.g. "duckdb".
	Name() string

	// ExtractJSON extracts the value at path from base, keeping JSON typing.
	ExtractJSON(base, path string) string
	// ExtractJSONText extracts the value at path from base as text.
	ExtractJSONText(base, path string) string
	// IterateJSONArray returns a FROM-clause item producing one row per
	// element of the array at path, aliased t with the element in t.value.
	IterateJSONArray(base, path string) string
	// IterateJSONArrayAs is IterateJSONArray with a caller-chosen alias, for
	// nested iterations that must not shadow the outer loop.
	IterateJSONArrayAs(base, path, alias string) string
	// IterateJSONArrayOrdered is IterateJSONArray with the element's array
	// position exposed as ElementOrdinal, for queries whose row order
	// matters (LIMIT/OFFSET).
	IterateJSONArrayOrdered(base, path string) string
	// ElementOrdinal is the ordinal column of IterateJSONArrayOrdered.
	ElementOrdinal() string
	// AggregateToJSONArray collects expr across rows into a JSON array.
	AggregateToJSONArray(expr string) string
	// JSONArray builds a JSON array literal from the given SQL expressions.
	JSONArray(items ...string) string
	// JSONTextValue unwraps the JSON scalar expr to plain text.
	JSONTextValue(expr string) string
	// LastElement extracts the last element of the JSON array expr.
	LastElement(expr string) string
	// JSONType returns the JSON type name of expr (object, array, string, ...).
	JSONType(expr string) string
	// JSONTypeIs tests whether the JSON value expr has the given logical kind
	// (one of boolean, number, string, array, object).
	JSONTypeIs(expr, kind string) string
	// JSONArrayLength returns the length of the JSON array expr.
	JSONArrayLength(expr string) string
	// JSONObject builds a JSON object literal from alternating key/value
	// SQL expressions.
	JSONObject(pairs ...string) string

	// BooleanLiteral spells a boolean constant.
	BooleanLiteral(v bool) string

	// StringPosition returns the 1-based position of substr in s, 0 if absent.
	StringPosition(substr, s string) string
	// Substring returns the substring of s starting at the 1-based position
	// start with the given length. length may be empty for "to the end".
	Substring(s, start, length string) string
	// RegexpMatches returns a boolean expression testing s against pattern.
	RegexpMatches(s, pattern string) string
	// RegexpReplace replaces all matches of pattern in s with repl.
	RegexpReplace(s, pattern, repl string) string
	// SplitToJSONArray splits s on sep, producing a JSON array of strings.
	SplitToJSONArray(s, sep string) string

	// CurrentTimestamp and CurrentDate are the evaluation instant literals.
	CurrentTimestamp() string
	CurrentDate() string
	// DateDiffYears returns the number of whole years between from and to.
	DateDiffYears(from, to string) string
	// Median returns the median aggregate of expr across rows.
	Median(expr string) string
	// DatePart extracts a calendar component (year, month, ...) from expr.
	DatePart(part, expr string) string

	// NumericType is the SQL type used for arithmetic on extracted values.
	NumericType() string
	// RoundTo rounds the numeric expr to digits decimal places.
	RoundTo(expr, digits string) string
	// Cast converts expr to the given SQL type, failing on bad input.
	Cast(expr, sqlType string) string
	// TryCast converts expr to the given SQL type, yielding NULL on bad input.
	TryCast(expr, sqlType string) string
}

// ForName returns the dialect registered under the given name
// (case-insensitive).
func ForName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "duckdb":
		return DuckDB{}, nil
	case "postgresql", "postgres":
		return PostgreSQL{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q (supported: duckdb, postgresql)", name)
	}
}

// Names lists the supported dialect names.
func Names() []string {
	return []string{"duckdb", "postgresql"}
}

// QuoteString renders s as a SQL string literal. Single quotes are doubled;
// both supported engines use the same spelling.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
