// Package schema classifies FHIR element paths for the SQL compiler.
//
// The only question the pipeline ever asks is whether navigating into a field
// yields a collection (a JSON array) or a single value. Answers come from
// tables derived from the R4 structure definitions; see internal/cmd/generate.
package schema

// Lookup answers cardinality questions for one FHIR release.
type Lookup interface {
	// IsArrayField reports whether field is array-valued when navigated from
	// resourceType. resourceType may be empty when the resource in scope is
	// unknown; the lookup then falls back to datatype-level classification.
	IsArrayField(resourceType, field string) bool
}

// R4 returns the element lookup for FHIR R4.
func R4() Lookup {
	return r4Lookup{}
}

type r4Lookup struct{}

func (r4Lookup) IsArrayField(resourceType, field string) bool {
	if fields, ok := r4ResourceArrays[resourceType]; ok {
		if arr, ok := fields[field]; ok {
			return arr
		}
	}
	return r4DatatypeArrays[field]
}
