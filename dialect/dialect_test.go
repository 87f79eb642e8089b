package dialect_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/joelmontavon/fhir4ds/dialect"
)

func TestForName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{name: "duckdb", want: "duckdb"},
		{name: "DuckDB", want: "duckdb"},
		{name: "postgresql", want: "postgresql"},
		{name: "postgres", want: "postgresql"},
		{name: "POSTGRESQL", want: "postgresql"},
		{name: "sqlite", wantErr: true},
		{name: "", wantErr: true},
	}
	for _, tt := range tests {
		d, err := dialect.ForName(tt.name)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ForName(%q): expected error, got %v", tt.name, d)
			}
			continue
		}
		if err != nil {
			t.Errorf("ForName(%q): %v", tt.name, err)
			continue
		}
		if d.Name() != tt.want {
			t.Errorf("ForName(%q).Name() = %q, want %q", tt.name, d.Name(), tt.want)
		}
	}
}

func TestNames(t *testing.T) {
	got := dialect.Names()
	want := []string{"duckdb", "postgresql"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	for _, name := range got {
		if _, err := dialect.ForName(name); err != nil {
			t.Errorf("ForName(%q): %v", name, err)
		}
	}
}

func TestQuoteString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"phone", "'phone'"},
		{"", "''"},
		{"it's", "'it''s'"},
		{"''", "''''''"},
	}
	for _, tt := range tests {
		if got := dialect.QuoteString(tt.in); got != tt.want {
			t.Errorf("QuoteString(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}

func TestDuckDBExtraction(t *testing.T) {
	d := dialect.DuckDB{}
	tests := []struct {
		got, want string
	}{
		{d.ExtractJSON("r.resource", "$.name"), "json_extract(r.resource, '$.name')"},
		{d.ExtractJSONText("r.resource", "$.name[0].family"), "json_extract_string(r.resource, '$.name[0].family')"},
		{d.IterateJSONArray("r.resource", "$.name"), "json_each(r.resource, '$.name') AS t"},
		{d.IterateJSONArray("arr", "$"), "json_each(arr) AS t"},
		{d.IterateJSONArrayAs("arr", "$", "r"), "json_each(arr) AS r"},
		{d.IterateJSONArrayOrdered("arr", "$"), "json_each(arr) AS t"},
		{d.ElementOrdinal(), "t.key"},
		{d.AggregateToJSONArray("t.value"), "json_group_array(t.value)"},
		{d.JSONArrayLength("arr"), "json_array_length(arr)"},
		{d.JSONArray("1", "2"), "json_array(1, 2)"},
		{d.JSONTextValue("t.value"), "json_extract_string(t.value, '$')"},
		{d.LastElement("arr"), "json_extract(arr, '$[#-1]')"},
		{d.TryCast("x", "DOUBLE"), "TRY_CAST(x AS DOUBLE)"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %s, want %s", tt.got, tt.want)
		}
	}
}

func TestPostgreSQLExtraction(t *testing.T) {
	d := dialect.PostgreSQL{}
	tests := []struct {
		got, want string
	}{
		{d.ExtractJSON("r.resource", "$.name"), "jsonb_path_query_first(r.resource, '$.name')"},
		{d.ExtractJSONText("r.resource", "$.name[0].family"), "(jsonb_path_query_first(r.resource, '$.name[0].family') #>> '{}')"},
		{d.IterateJSONArray("arr", "$"), "jsonb_array_elements(arr) AS t(value)"},
		{d.IterateJSONArrayAs("arr", "$", "r"), "jsonb_array_elements(arr) AS r(value)"},
		{d.IterateJSONArrayOrdered("arr", "$"), "jsonb_array_elements(arr) WITH ORDINALITY AS t(value, ord)"},
		{d.IterateJSONArrayOrdered("r.resource", "$.name"), "jsonb_path_query(r.resource, '$.name[*]') WITH ORDINALITY AS t(value, ord)"},
		{d.ElementOrdinal(), "t.ord"},
		{d.AggregateToJSONArray("t.value"), "jsonb_agg(t.value)"},
		{d.JSONArrayLength("arr"), "jsonb_array_length(arr)"},
		{d.JSONTextValue("t.value"), "(t.value #>> '{}')"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %s, want %s", tt.got, tt.want)
		}
	}
}

func TestNumericTypes(t *testing.T) {
	if got := (dialect.DuckDB{}).NumericType(); got != "DOUBLE" {
		t.Errorf("DuckDB NumericType = %q", got)
	}
	if got := (dialect.PostgreSQL{}).NumericType(); got != "DOUBLE PRECISION" {
		t.Errorf("PostgreSQL NumericType = %q", got)
	}
}

func TestBooleanLiteral(t *testing.T) {
	if got := (dialect.DuckDB{}).BooleanLiteral(true); got != "true" {
		t.Errorf("DuckDB BooleanLiteral(true) = %q", got)
	}
	if got := (dialect.PostgreSQL{}).BooleanLiteral(false); got != "FALSE" {
		t.Errorf("PostgreSQL BooleanLiteral(false) = %q", got)
	}
}
