// Command generate-schema emits the cardinality tables in schema/gen_r4.go.
//
// By default it generates from the element summary embedded next to this
// file. Pass -definitions with a path to the official R4 definitions.json.zip
// to regenerate the summary from the published structure definitions first.
package main

import (
	_ "embed"
	"encoding/json"
	"flag"
	"log"
	"sort"

	. "github.com/dave/jennifer/jen"
)

//go:embed elements.json
var embeddedSummary []byte

// summary is the distilled cardinality data: per-resource root elements and
// datatype fields, true when the element's max cardinality is *.
type summary struct {
	Resources map[string]map[string]bool `json:"resources"`
	Datatypes map[string]bool            `json:"datatypes"`
}

func main() {
	definitions := flag.String("definitions", "", "path to the FHIR R4 definitions.json.zip")
	out := flag.String("out", "schema/gen_r4.go", "output file")
	flag.Parse()

	var sum summary
	if *definitions != "" {
		sum = summaryFromZIP(*definitions)
	} else if err := json.Unmarshal(embeddedSummary, &sum); err != nil {
		log.Fatal(err)
	}

	file := NewFile("schema")
	file.HeaderComment("Code generated by internal/cmd/generate-schema from the R4 element summary. DO NOT EDIT.")

	file.Comment("r4ResourceArrays maps resource type to root-level element cardinality:")
	file.Comment("true for max cardinality *, false for max cardinality 1.")
	file.Var().Id("r4ResourceArrays").Op("=").Map(String()).Map(String()).Bool().Values(DictFunc(func(d Dict) {
		for _, rt := range sortedKeys(sum.Resources) {
			fields := sum.Resources[rt]
			d[Lit(rt)] = Values(DictFunc(func(inner Dict) {
				for _, f := range sortedKeys(fields) {
					inner[Lit(f)] = Lit(fields[f])
				}
			}))
		}
	}))

	file.Comment("r4DatatypeArrays classifies fields of complex datatypes (HumanName,")
	file.Comment("Address, CodeableConcept, ...) reached below the resource root, keyed by")
	file.Comment("field name alone.")
	file.Var().Id("r4DatatypeArrays").Op("=").Map(String()).Bool().Values(DictFunc(func(d Dict) {
		for _, f := range sortedKeys(sum.Datatypes) {
			d[Lit(f)] = Lit(sum.Datatypes[f])
		}
	}))

	log.Printf("writing %s...", *out)
	if err := file.Save(*out); err != nil {
		log.Fatal(err)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
