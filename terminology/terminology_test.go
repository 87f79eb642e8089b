package terminology_test

import (
	"strings"
	"testing"

	"github.com/joelmontavon/fhir4ds/dialect"
	"github.com/joelmontavon/fhir4ds/terminology"
)

const diabetesVS = "http://example.org/fhir/ValueSet/diabetes"

func newClient() *terminology.StaticClient {
	return terminology.NewStaticClient(map[string][]terminology.Coding{
		diabetesVS: {
			{System: "http://snomed.info/sct", Code: "73211009"},
			{System: "http://snomed.info/sct", Code: "44054006"},
			{System: "http://hl7.org/fhir/sid/icd-10", Code: "E11"},
		},
		"http://example.org/fhir/ValueSet/empty": {},
	})
}

func TestFilterSQL(t *testing.T) {
	c := newClient()
	d := dialect.DuckDB{}

	got, err := c.FilterSQL(diabetesVS, "$.code", "r.resource", d)
	if err != nil {
		t.Fatal(err)
	}
	want := "(json_extract_string(r.resource, '$.code') IN ('44054006', '73211009', 'E11') OR " +
		"json_extract_string(r.resource, '$.code.coding[0].code') IN ('44054006', '73211009', 'E11'))"
	if got != want {
		t.Errorf("FilterSQL = %s, want %s", got, want)
	}
}

func TestFilterSQLDeterministic(t *testing.T) {
	c := newClient()
	d := dialect.PostgreSQL{}
	first, err := c.FilterSQL(diabetesVS, "$.code", "r.resource", d)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := c.FilterSQL(diabetesVS, "$.code", "r.resource", d)
		if err != nil {
			t.Fatal(err)
		}
		if again != first {
			t.Fatalf("iteration %d produced different SQL:\n%s\n%s", i, again, first)
		}
	}
}

func TestFilterSQLDuplicateCodes(t *testing.T) {
	c := terminology.NewStaticClient(map[string][]terminology.Coding{
		"vs": {
			{System: "a", Code: "x"},
			{System: "b", Code: "x"},
		},
	})
	got, err := c.FilterSQL("vs", "$.code", "r.resource", dialect.DuckDB{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(got, "'x'") != 2 {
		t.Errorf("duplicate code should appear once per IN list: %s", got)
	}
}

func TestFilterSQLEmptySet(t *testing.T) {
	c := newClient()
	got, err := c.FilterSQL("http://example.org/fhir/ValueSet/empty", "$.code", "r.resource", dialect.DuckDB{})
	if err != nil {
		t.Fatal(err)
	}
	if got != "false" {
		t.Errorf("empty value set should match nothing, got %s", got)
	}
}

func TestFilterSQLUnknownSet(t *testing.T) {
	c := newClient()
	if _, err := c.FilterSQL("http://example.org/fhir/ValueSet/nope", "$.code", "r.resource", dialect.DuckDB{}); err == nil {
		t.Error("expected error for unknown value set")
	}
}
