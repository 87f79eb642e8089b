package schema_test

import (
	"testing"

	"github.com/joelmontavon/fhir4ds/schema"
)

func TestIsArrayField(t *testing.T) {
	r4 := schema.R4()

	tests := []struct {
		resourceType string
		field        string
		want         bool
	}{
		// resource-level elements
		{"Patient", "name", true},
		{"Patient", "telecom", true},
		{"Patient", "identifier", true},
		{"Patient", "birthDate", false},
		{"Patient", "gender", false},
		{"Observation", "status", false},
		{"Condition", "category", true},

		// datatype elements, independent of the resource in scope
		{"Patient", "given", true},
		{"Patient", "family", false},
		{"", "given", true},
		{"", "coding", true},
		{"", "system", false},
		{"", "value", false},

		// unknown fields default to single-valued
		{"Patient", "nosuchfield", false},
		{"", "nosuchfield", false},

		// unknown resource type falls back to the datatype table
		{"NotAResource", "given", true},
	}
	for _, tt := range tests {
		if got := r4.IsArrayField(tt.resourceType, tt.field); got != tt.want {
			t.Errorf("IsArrayField(%q, %q) = %v, want %v", tt.resourceType, tt.field, got, tt.want)
		}
	}
}
