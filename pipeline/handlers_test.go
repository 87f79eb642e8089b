package pipeline_test

import (
	"strings"
	"testing"

	"github.com/joelmontavon/fhir4ds/dialect"
)

const familyText = "json_extract_string(fhir_resources.resource, '$.name[0].family')"

func TestStringFunctions(t *testing.T) {
	d := dialect.DuckDB{}
	tests := []struct {
		source, want string
	}{
		{"Patient.name.family.substring(0, 3)", "substr(" + familyText + ", 1, 3)"},
		{"Patient.name.family.substring(2)", "substr(" + familyText + ", 3)"},
		{"Patient.name.family.startsWith('Sm')", "(strpos(" + familyText + ", 'Sm') = 1)"},
		{"Patient.name.family.endsWith('th')", "(right(" + familyText + ", length('th')) = 'th')"},
		{"Patient.name.family.indexOf('m')", "(strpos(" + familyText + ", 'm') - 1)"},
		{"Patient.name.family.upper()", "upper(" + familyText + ")"},
		{"Patient.name.family.lower()", "lower(" + familyText + ")"},
		{"Patient.name.family.trim()", "trim(" + familyText + ")"},
		{"Patient.name.family.length()", "length(" + familyText + ")"},
		{"Patient.name.family.replace('a', 'b')", "replace(" + familyText + ", 'a', 'b')"},
		{"Patient.name.family.matches('^Sm')", "regexp_matches(" + familyText + ", '^Sm')"},
		{"Patient.name.family.replaceMatches('a+', 'a')", "regexp_replace(" + familyText + ", 'a+', 'a', 'g')"},
		{"Patient.name.family.split(' ')", "to_json(string_split(" + familyText + ", ' '))"},
		{
			"Patient.name.given.join(', ')",
			"(SELECT string_agg(json_extract_string(t.value, '$'), ', ') " +
				"FROM json_each(fhir_resources.resource, '$.name[0].given') AS t)",
		},
	}
	for _, tt := range tests {
		if got := compileSQL(t, d, tt.source); got.SQL != tt.want {
			t.Errorf("%s:\n got %s\nwant %s", tt.source, got.SQL, tt.want)
		}
	}
}

func TestStringContains(t *testing.T) {
	d := dialect.DuckDB{}
	got := compileSQL(t, d, "Patient.name.family.contains('mi')")
	want := "(strpos(" + familyText + ", 'mi') > 0)"
	if got.SQL != want {
		t.Errorf("got %s, want %s", got.SQL, want)
	}
}

func TestArithmetic(t *testing.T) {
	d := dialect.DuckDB{}
	tests := []struct {
		source, want string
	}{
		{"1 + 2", "(CAST(1 AS DOUBLE) + CAST(2 AS DOUBLE))"},
		{"5 - 3", "(CAST(5 AS DOUBLE) - CAST(3 AS DOUBLE))"},
		{"2 * 4", "(CAST(2 AS DOUBLE) * CAST(4 AS DOUBLE))"},
		{"1 / 2", "(CAST(1 AS DOUBLE) / CAST(2 AS DOUBLE))"},
		{"7 div 2", "CAST(trunc(CAST(7 AS DOUBLE) / CAST(2 AS DOUBLE)) AS INTEGER)"},
		{"7 mod 2", "(CAST(7 AS INTEGER) % CAST(2 AS INTEGER))"},
		{"'a' & 'b'", "(COALESCE('a', '') || COALESCE('b', ''))"},
	}
	for _, tt := range tests {
		if got := compileSQL(t, d, tt.source); got.SQL != tt.want {
			t.Errorf("%s:\n got %s\nwant %s", tt.source, got.SQL, tt.want)
		}
	}
}

func TestMathFunctions(t *testing.T) {
	d := dialect.DuckDB{}
	operand := "CAST(json_extract_string(fhir_resources.resource, '$.valueQuantity.value') AS DOUBLE)"
	tests := []struct {
		source, want string
	}{
		{"Observation.valueQuantity.value.abs()", "abs(" + operand + ")"},
		{"Observation.valueQuantity.value.ceiling()", "ceil(" + operand + ")"},
		{"Observation.valueQuantity.value.floor()", "floor(" + operand + ")"},
		{"Observation.valueQuantity.value.truncate()", "trunc(" + operand + ")"},
		{"Observation.valueQuantity.value.round()", "round(" + operand + ")"},
		{"Observation.valueQuantity.value.round(2)", "round(" + operand + ", 2)"},
		{"Observation.valueQuantity.value.sqrt()", "sqrt(" + operand + ")"},
		{"Observation.valueQuantity.value.power(2)", "power(" + operand + ", CAST(2 AS DOUBLE))"},
	}
	for _, tt := range tests {
		if got := compileSQL(t, d, tt.source); got.SQL != tt.want {
			t.Errorf("%s:\n got %s\nwant %s", tt.source, got.SQL, tt.want)
		}
	}
}

func TestAggregates(t *testing.T) {
	d := dialect.DuckDB{}
	got := compileSQL(t, d, "{1, 2, 3}.sum()")
	want := "(SELECT SUM(CAST(json_extract_string(t.value, '$') AS DOUBLE)) " +
		"FROM json_each(json_array(1, 2, 3)) AS t)"
	if got.SQL != want {
		t.Errorf("got:\n%s\nwant:\n%s", got.SQL, want)
	}

	got = compileSQL(t, d, "{1, 2, 3}.avg()")
	if !strings.Contains(got.SQL, "AVG(") {
		t.Errorf("avg missing: %s", got.SQL)
	}

	got = compileSQL(t, d, "{1, 2, 3}.median()")
	if !strings.Contains(got.SQL, "median(") {
		t.Errorf("median missing: %s", got.SQL)
	}
}

func TestBooleanReductions(t *testing.T) {
	d := dialect.DuckDB{}
	got := compileSQL(t, d, "{true, false}.allTrue()")
	want := "(SELECT COALESCE(bool_and(CAST(json_extract_string(t.value, '$') AS BOOLEAN)), true) " +
		"FROM json_each(json_array(true, false)) AS t)"
	if got.SQL != want {
		t.Errorf("got:\n%s\nwant:\n%s", got.SQL, want)
	}
	got = compileSQL(t, d, "{true, false}.anyFalse()")
	if !strings.Contains(got.SQL, "bool_or(NOT ") {
		t.Errorf("anyFalse shape: %s", got.SQL)
	}
}

func TestComparisons(t *testing.T) {
	d := dialect.DuckDB{}
	gender := "json_extract_string(fhir_resources.resource, '$.gender')"
	tests := []struct {
		source, want string
	}{
		{"Patient.gender = 'male'", "(" + gender + " = 'male')"},
		{"Patient.gender != 'male'", "(" + gender + " <> 'male')"},
	}
	for _, tt := range tests {
		if got := compileSQL(t, d, tt.source); got.SQL != tt.want {
			t.Errorf("%s:\n got %s\nwant %s", tt.source, got.SQL, tt.want)
		}
	}

	// relational comparisons try numeric, then timestamp, then plain text,
	// all over the VARCHAR rendering of both sides
	got := compileSQL(t, d, "Patient.birthDate < @2000-01-01")
	if !strings.HasPrefix(got.SQL, "(CASE WHEN TRY_CAST(CAST(") {
		t.Errorf("relational shape: %s", got.SQL)
	}
	if !strings.Contains(got.SQL, "WHEN TRY_CAST(CAST(json_extract_string(fhir_resources.resource, '$.birthDate') AS VARCHAR) AS TIMESTAMP) IS NOT NULL") {
		t.Errorf("timestamp tier missing: %s", got.SQL)
	}
	if !strings.Contains(got.SQL, "ELSE CAST(json_extract_string(fhir_resources.resource, '$.birthDate') AS VARCHAR) < CAST(DATE '2000-01-01' AS VARCHAR) END)") {
		t.Errorf("text fallback missing: %s", got.SQL)
	}
}

// PostgreSQL type-checks every CASE branch, so a date literal may never meet
// a text operand uncast in any tier.
func TestComparisonsPostgreSQL(t *testing.T) {
	d := dialect.PostgreSQL{}
	got := compileSQL(t, d, "Patient.birthDate < @2000-01-01")
	field := "CAST((jsonb_path_query_first(fhir_resources.resource, '$.birthDate') #>> '{}') AS VARCHAR)"
	if !strings.Contains(got.SQL, "THEN CAST("+field+" AS TIMESTAMP)") {
		t.Errorf("timestamp tier not guarded: %s", got.SQL)
	}
	if !strings.Contains(got.SQL, "ELSE "+field+" < CAST(DATE '2000-01-01' AS VARCHAR) END)") {
		t.Errorf("text fallback not cast: %s", got.SQL)
	}
	if strings.Contains(got.SQL, "ELSE (jsonb_path_query_first") {
		t.Errorf("raw text operand leaked into the fallback: %s", got.SQL)
	}

	// round with a precision goes through NUMERIC, which is the only
	// round(x, n) overload PostgreSQL has
	got = compileSQL(t, d, "Observation.valueQuantity.value.round(2)")
	want := "round(CAST(CAST((jsonb_path_query_first(fhir_resources.resource, '$.valueQuantity.value') #>> '{}') AS DOUBLE PRECISION) AS NUMERIC), 2)"
	if got.SQL != want {
		t.Errorf("round precision:\n got %s\nwant %s", got.SQL, want)
	}
}

func TestEquivalence(t *testing.T) {
	d := dialect.DuckDB{}
	got := compileSQL(t, d, "'Smith' ~ 'SMITH'")
	if !strings.Contains(got.SQL, "lower(CAST('Smith' AS VARCHAR)) = lower(CAST('SMITH' AS VARCHAR))") {
		t.Errorf("case-insensitive fallback missing: %s", got.SQL)
	}
	if !strings.Contains(got.SQL, "WHEN 'Smith' IS NULL AND 'SMITH' IS NULL THEN true") {
		t.Errorf("both-missing clause missing: %s", got.SQL)
	}

	got = compileSQL(t, d, "'a' !~ 'b'")
	if !strings.HasPrefix(got.SQL, "(NOT (CASE WHEN") {
		t.Errorf("negated equivalence shape: %s", got.SQL)
	}
}

func TestDatetimeFunctions(t *testing.T) {
	d := dialect.DuckDB{}
	birth := "json_extract_string(fhir_resources.resource, '$.birthDate')"

	got := compileSQL(t, d, "today()")
	if got.SQL != "current_date" {
		t.Errorf("today() = %s", got.SQL)
	}
	got = compileSQL(t, d, "now()")
	if got.SQL != "current_timestamp" {
		t.Errorf("now() = %s", got.SQL)
	}

	got = compileSQL(t, d, "Patient.birthDate.year()")
	want := "date_part('year', CAST(" + birth + " AS TIMESTAMP))"
	if got.SQL != want {
		t.Errorf("year():\n got %s\nwant %s", got.SQL, want)
	}

	// ageInYears on the bare resource reads birthDate implicitly
	got = compileSQL(t, d, "Patient.ageInYears()")
	if !strings.Contains(got.SQL, "CAST("+birth+" AS DATE)") {
		t.Errorf("implicit birthDate missing: %s", got.SQL)
	}
	if !strings.Contains(got.SQL, "current_date") {
		t.Errorf("reference date missing: %s", got.SQL)
	}
}

func TestTypeConversions(t *testing.T) {
	d := dialect.DuckDB{}
	value := "json_extract_string(fhir_resources.resource, '$.valueQuantity.value')"
	tests := []struct {
		source, want string
	}{
		{"Observation.valueQuantity.value.toInteger()", "TRY_CAST(" + value + " AS INTEGER)"},
		{"Observation.valueQuantity.value.toDecimal()", "TRY_CAST(" + value + " AS DOUBLE)"},
		{"Observation.valueQuantity.value.toString()", "CAST(" + value + " AS VARCHAR)"},
		{"Observation.valueQuantity.value.convertsToInteger()", "(TRY_CAST(" + value + " AS INTEGER) IS NOT NULL)"},
	}
	for _, tt := range tests {
		if got := compileSQL(t, d, tt.source); got.SQL != tt.want {
			t.Errorf("%s:\n got %s\nwant %s", tt.source, got.SQL, tt.want)
		}
	}
}

func TestTypeTests(t *testing.T) {
	d := dialect.DuckDB{}

	// document-path values are re-extracted with JSON typing for the test
	got := compileSQL(t, d, "Patient.deceasedBoolean is Boolean")
	want := "(json_type(json_extract(fhir_resources.resource, '$.deceasedBoolean')) = 'BOOLEAN')"
	if got.SQL != want {
		t.Errorf("is Boolean:\n got %s\nwant %s", got.SQL, want)
	}

	// non-primitive type names compare the resourceType discriminator
	got = compileSQL(t, d, "subject is Patient")
	if !strings.Contains(got.SQL, "'$.resourceType'") || !strings.Contains(got.SQL, "'Patient'") {
		t.Errorf("resourceType test missing: %s", got.SQL)
	}
}
