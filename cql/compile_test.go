package cql_test

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joelmontavon/fhir4ds/cql"
	"github.com/joelmontavon/fhir4ds/dialect"
	"github.com/joelmontavon/fhir4ds/pipeline"
	"github.com/joelmontavon/fhir4ds/terminology"
)

func compileLibrary(t *testing.T, source string, tc terminology.Client) *cql.LibraryResult {
	t.Helper()
	lib, err := cql.ParseLibrary(source)
	if err != nil {
		t.Fatalf("ParseLibrary: %v", err)
	}
	ctx := pipeline.NewExecutionContext(dialect.DuckDB{})
	if tc != nil {
		ctx.Terminology = tc
	}
	result, err := cql.CompileLibrary(lib, ctx, "fhir_resources", "resource")
	if err != nil {
		t.Fatalf("CompileLibrary: %v", err)
	}
	return result
}

func cteNames(r *cql.LibraryResult) []string {
	names := make([]string, len(r.CTEs))
	for i, cte := range r.CTEs {
		names[i] = cte.Name
	}
	return names
}

func TestCompileLibraryDefines(t *testing.T) {
	result := compileLibrary(t, `
library Demo version '1.0'

using FHIR version '4.0.1'

context Patient

define "Has Name":
  Patient.name.exists()

define "Flagged":
  "Has Name" and Patient.active
`, nil)

	if len(result.Defines) != 2 {
		t.Fatalf("got %d defines, want 2", len(result.Defines))
	}
	first := result.Defines[0]
	if first.Name != "Has Name" || first.CTEName != "has_name" {
		t.Errorf("first define = %q / %q", first.Name, first.CTEName)
	}
	if first.SQL != "(SELECT result FROM has_name)" {
		t.Errorf("first define SQL = %q", first.SQL)
	}
	if first.IsCollection {
		t.Error("exists() define reported as collection")
	}

	if diff := cmp.Diff([]string{"has_name", "flagged"}, cteNames(result)); diff != "" {
		t.Fatalf("CTE names mismatch (-want +got):\n%s", diff)
	}
	wantFirst := "SELECT (COALESCE(json_array_length(json_extract(fhir_resources.resource, '$.name')), 0) > 0) AS result FROM fhir_resources"
	if result.CTEs[0].SQL != wantFirst {
		t.Errorf("has_name CTE:\n got %s\nwant %s", result.CTEs[0].SQL, wantFirst)
	}
	wantSecond := "SELECT (CAST((SELECT result FROM has_name) AS BOOLEAN) AND CAST(json_extract_string(fhir_resources.resource, '$.active') AS BOOLEAN)) AS result FROM fhir_resources"
	if result.CTEs[1].SQL != wantSecond {
		t.Errorf("flagged CTE:\n got %s\nwant %s", result.CTEs[1].SQL, wantSecond)
	}
}

func TestLibraryQuery(t *testing.T) {
	result := compileLibrary(t, `
define "Has Name":
  Patient.name.exists()

define "Flagged":
  "Has Name" and Patient.active
`, nil)

	got, err := result.Query("Flagged")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	want := "WITH has_name AS (SELECT (COALESCE(json_array_length(json_extract(fhir_resources.resource, '$.name')), 0) > 0) AS result FROM fhir_resources),\n" +
		"     flagged AS (SELECT (CAST((SELECT result FROM has_name) AS BOOLEAN) AND CAST(json_extract_string(fhir_resources.resource, '$.active') AS BOOLEAN)) AS result FROM fhir_resources)\n" +
		"SELECT result FROM flagged"
	if got != want {
		t.Errorf("Query(Flagged):\n got %s\nwant %s", got, want)
	}

	if _, err := result.Query("Nope"); err == nil || !strings.Contains(err.Error(), `no define named "Nope"`) {
		t.Errorf("Query(Nope) error = %v", err)
	}
}

func TestRetrieveWithValueSet(t *testing.T) {
	tc := terminology.NewStaticClient(map[string][]terminology.Coding{
		"http://example.org/fhir/ValueSet/diabetes": {
			{System: "http://snomed.info/sct", Code: "44054006"},
			{System: "http://snomed.info/sct", Code: "73211009"},
		},
	})
	result := compileLibrary(t, `
library Chronic version '1.0'

valueset "Diabetes": 'http://example.org/fhir/ValueSet/diabetes'

context Patient

define "Has Diabetes":
  exists [Condition: "Diabetes"]
`, tc)

	if diff := cmp.Diff([]string{"condition_retrieve_1", "has_diabetes"}, cteNames(result)); diff != "" {
		t.Fatalf("CTE names mismatch (-want +got):\n%s", diff)
	}
	wantRetrieve := "SELECT fhir_resources.resource AS resource FROM fhir_resources" +
		" WHERE json_extract_string(resource, '$.resourceType') = 'Condition'" +
		" AND (json_extract_string(resource, '$.code') IN ('44054006', '73211009')" +
		" OR json_extract_string(resource, '$.code.coding[0].code') IN ('44054006', '73211009'))"
	if result.CTEs[0].SQL != wantRetrieve {
		t.Errorf("retrieve CTE:\n got %s\nwant %s", result.CTEs[0].SQL, wantRetrieve)
	}
	wantDefine := "SELECT (COALESCE(json_array_length((SELECT json_group_array(resource) FROM condition_retrieve_1)), 0) > 0) AS result FROM fhir_resources"
	if result.CTEs[1].SQL != wantDefine {
		t.Errorf("has_diabetes CTE:\n got %s\nwant %s", result.CTEs[1].SQL, wantDefine)
	}
}

func TestRetrievePlain(t *testing.T) {
	result := compileLibrary(t, `define "All Patients": [Patient]`, nil)

	wantRetrieve := "SELECT fhir_resources.resource AS resource FROM fhir_resources WHERE json_extract_string(resource, '$.resourceType') = 'Patient'"
	if result.CTEs[0].SQL != wantRetrieve {
		t.Errorf("retrieve CTE:\n got %s\nwant %s", result.CTEs[0].SQL, wantRetrieve)
	}
	if !result.Defines[0].IsCollection {
		t.Error("retrieve define not reported as collection")
	}
}

func TestRetrieveTerminologyErrors(t *testing.T) {
	src := `
valueset "Diabetes": 'http://example.org/fhir/ValueSet/diabetes'

define "Has Diabetes":
  exists [Condition: "Diabetes"]
`
	lib, err := cql.ParseLibrary(src)
	if err != nil {
		t.Fatalf("ParseLibrary: %v", err)
	}

	ctx := pipeline.NewExecutionContext(dialect.DuckDB{})
	if _, err := cql.CompileLibrary(lib, ctx, "fhir_resources", "resource"); err == nil ||
		!strings.Contains(err.Error(), "no terminology client configured") {
		t.Errorf("without client: err = %v", err)
	}

	ctx = pipeline.NewExecutionContext(dialect.DuckDB{})
	ctx.Terminology = terminology.NewStaticClient(map[string][]terminology.Coding{})
	if _, err := cql.CompileLibrary(lib, ctx, "fhir_resources", "resource"); err == nil ||
		!strings.Contains(err.Error(), "unknown value set") {
		t.Errorf("unknown set: err = %v", err)
	}
}

func TestQueryWhereReturn(t *testing.T) {
	result := compileLibrary(t, `
define "Male Genders":
  [Patient] p where p.gender = 'male' return p.gender
`, nil)

	if diff := cmp.Diff([]string{"patient_retrieve_1", "male_genders"}, cteNames(result)); diff != "" {
		t.Fatalf("CTE names mismatch (-want +got):\n%s", diff)
	}
	want := "SELECT (SELECT json_group_array(json_extract_string(t.value, '$.gender'))" +
		" FROM json_each((SELECT json_group_array(resource) FROM patient_retrieve_1)) AS t" +
		" WHERE (json_extract_string(t.value, '$.gender') = 'male')) AS result FROM fhir_resources"
	if result.CTEs[1].SQL != want {
		t.Errorf("male_genders CTE:\n got %s\nwant %s", result.CTEs[1].SQL, want)
	}
}

func TestQueryRelationships(t *testing.T) {
	result := compileLibrary(t, `
define "Patients With Conditions":
  [Patient] p with [Condition] c such that c.id = p.id
`, nil)

	names := []string{"patient_retrieve_1", "condition_retrieve_2", "patients_with_conditions"}
	if diff := cmp.Diff(names, cteNames(result)); diff != "" {
		t.Fatalf("CTE names mismatch (-want +got):\n%s", diff)
	}
	want := "SELECT (SELECT json_group_array(t.value)" +
		" FROM json_each((SELECT json_group_array(resource) FROM patient_retrieve_1)) AS t" +
		" WHERE EXISTS (SELECT 1 FROM json_each((SELECT json_group_array(resource) FROM condition_retrieve_2)) AS r" +
		" WHERE (json_extract_string(r.value, '$.id') = json_extract_string(t.value, '$.id')))) AS result FROM fhir_resources"
	if result.CTEs[2].SQL != want {
		t.Errorf("query CTE:\n got %s\nwant %s", result.CTEs[2].SQL, want)
	}

	without := compileLibrary(t, `
define "Patients Without Conditions":
  [Patient] p without [Condition] c such that c.id = p.id
`, nil)
	sql := without.CTEs[2].SQL
	if !strings.Contains(sql, "WHERE NOT EXISTS (SELECT 1 FROM") {
		t.Errorf("without clause did not negate the EXISTS test:\n%s", sql)
	}
}

func TestQuerySort(t *testing.T) {
	result := compileLibrary(t, `
define "Genders Descending":
  [Patient] p return p.gender sort by desc
`, nil)

	want := "SELECT (SELECT json_group_array(v)" +
		" FROM (SELECT json_extract_string(t.value, '$.gender') AS v" +
		" FROM json_each((SELECT json_group_array(resource) FROM patient_retrieve_1)) AS t" +
		" ORDER BY v DESC) AS u) AS result FROM fhir_resources"
	if result.CTEs[1].SQL != want {
		t.Errorf("sorted query CTE:\n got %s\nwant %s", result.CTEs[1].SQL, want)
	}
}

func TestCompileLibraryDeterminism(t *testing.T) {
	src := `
valueset "Diabetes": 'http://example.org/fhir/ValueSet/diabetes'

define "Has Diabetes":
  exists [Condition: "Diabetes"]

define "Both":
  "Has Diabetes" and Patient.active
`
	tc := terminology.NewStaticClient(map[string][]terminology.Coding{
		"http://example.org/fhir/ValueSet/diabetes": {
			{System: "http://snomed.info/sct", Code: "73211009"},
			{System: "http://snomed.info/sct", Code: "44054006"},
		},
	})
	var queries []string
	for i := 0; i < 3; i++ {
		result := compileLibrary(t, src, tc)
		q, err := result.Query("Both")
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		queries = append(queries, q)
	}
	if queries[0] != queries[1] || queries[1] != queries[2] {
		t.Errorf("library compilation is not deterministic:\n%s\n%s\n%s", queries[0], queries[1], queries[2])
	}
}
