// Package terminology resolves value-set references to SQL filter conditions.
//
// The compiler only ever needs one question answered: "does the code at this
// JSON path belong to this value set". Client renders that as a SQL condition
// for the target dialect; where the codes come from (a static table, a cached
// terminology server download) is the implementation's business.
package terminology

import (
	"fmt"
	"sort"
	"strings"

	"github.com/joelmontavon/fhir4ds/dialect"
)

// Client renders value-set membership tests as SQL.
type Client interface {
	// FilterSQL returns a boolean SQL condition that is true when the code
	// found at codePath within jsonColumn belongs to valueSet. valueSet is
	// the canonical URL or local name used in the source expression.
	FilterSQL(valueSet, codePath, jsonColumn string, d dialect.Dialect) (string, error)
}

// Coding is one system/code pair of an expanded value set.
type Coding struct {
	System string
	Code   string
}

// StaticClient resolves value sets from an in-memory expansion table.
type StaticClient struct {
	sets map[string][]Coding
}

// NewStaticClient returns a client answering from the given expansions, keyed
// by value-set URL or name.
func NewStaticClient(sets map[string][]Coding) *StaticClient {
	return &StaticClient{sets: sets}
}

// FilterSQL compiles membership to an IN list over the codes of the
// expansion. The codes are emitted in sorted order so the same value set
// always produces the same SQL.
func (c *StaticClient) FilterSQL(valueSet, codePath, jsonColumn string, d dialect.Dialect) (string, error) {
	codings, ok := c.sets[valueSet]
	if !ok {
		return "", fmt.Errorf("unknown value set %q", valueSet)
	}
	if len(codings) == 0 {
		return d.BooleanLiteral(false), nil
	}
	codes := make([]string, 0, len(codings))
	seen := make(map[string]bool, len(codings))
	for _, cd := range codings {
		if !seen[cd.Code] {
			seen[cd.Code] = true
			codes = append(codes, dialect.QuoteString(cd.Code))
		}
	}
	sort.Strings(codes)

	// The code element is either a bare code or a CodeableConcept; check the
	// direct path first, then the first coding.
	direct := d.ExtractJSONText(jsonColumn, codePath)
	coded := d.ExtractJSONText(jsonColumn, codePath+".coding[0].code")
	list := strings.Join(codes, ", ")
	return fmt.Sprintf("(%s IN (%s) OR %s IN (%s))", direct, list, coded, list), nil
}
