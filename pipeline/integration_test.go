//go:build integration

package pipeline_test

import (
	"database/sql"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/joelmontavon/fhir4ds/dialect"
	"github.com/joelmontavon/fhir4ds/fhirpath"
	"github.com/joelmontavon/fhir4ds/pipeline"
)

func openDuckDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("DuckDB not available: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE fhir_resources (resource JSON)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	resources := []string{
		`{"resourceType": "Patient", "gender": "male", "active": true,
		  "name": [{"use": "official", "family": "Chalmers", "given": ["Peter", "James"]},
		           {"use": "nickname", "given": ["Pete"]}],
		  "telecom": [{"system": "phone", "value": "555-1234"}]}`,
		`{"resourceType": "Patient", "gender": "female"}`,
	}
	for _, r := range resources {
		if _, err := db.Exec(`INSERT INTO fhir_resources VALUES (?)`, r); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	return db
}

// queryStrings runs the compiled query and returns every row's result as a
// text value, sorted, with NULL rendered as "<null>".
func queryStrings(t *testing.T, db *sql.DB, source string) []string {
	t.Helper()
	parsed, err := fhirpath.Parse(source)
	if err != nil {
		t.Fatalf("Parse(%q): %v", source, err)
	}
	ctx := pipeline.NewExecutionContext(dialect.DuckDB{})
	result, err := pipeline.Compile(parsed.Tree(), ctx, "fhir_resources", "resource")
	if err != nil {
		t.Fatalf("Compile(%q): %v", source, err)
	}
	// Cast in SQL so boolean and numeric results scan uniformly as text.
	q := "SELECT CAST(result AS VARCHAR) AS result FROM (" + result.Query("fhir_resources") + ") AS q"
	rows, err := db.Query(q)
	if err != nil {
		t.Fatalf("query %q: %v", source, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if v.Valid {
			out = append(out, v.String)
		} else {
			out = append(out, "<null>")
		}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	sort.Strings(out)
	return out
}

func TestCompiledQueriesAgainstDuckDB(t *testing.T) {
	db := openDuckDB(t)

	cases := []struct {
		source string
		want   []string
	}{
		{"Patient.name.family", []string{"<null>", "Chalmers"}},
		{"Patient.name.given.count()", []string{"0", "2"}},
		{"Patient.name.exists()", []string{"false", "true"}},
		{"Patient.gender = 'male'", []string{"false", "true"}},
		{"Patient.name.where(use = 'nickname').given.join('')", []string{"<null>", "Pete"}},
		{"Patient.telecom.where(system = 'phone').value", []string{"<null>", "555-1234"}},
		{"Patient.name.given.join(', ')", []string{"<null>", "Peter, James"}},
		{"'Peter' in Patient.name.given", []string{"false", "true"}},
		{"Patient.gender.upper()", []string{"FEMALE", "MALE"}},
		{"1 + 2 * 3", []string{"7.0", "7.0"}},
	}
	for _, tc := range cases {
		t.Run(tc.source, func(t *testing.T) {
			got := queryStrings(t, db, tc.source)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("results mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
