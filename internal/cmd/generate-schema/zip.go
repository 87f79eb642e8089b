package main

import (
	"archive/zip"
	"encoding/json"
	"io"
	"log"
	"strings"
)

// The definitions archive holds the structure definitions as FHIR bundles.
// Only element paths and max cardinalities are needed here, so the bundle is
// decoded into this minimal shape.
type bundle struct {
	Entry []struct {
		Resource struct {
			ResourceType string `json:"resourceType"`
			Name         string `json:"name"`
			Kind         string `json:"kind"`
			Snapshot     struct {
				Element []struct {
					Path string `json:"path"`
					Max  string `json:"max"`
				} `json:"element"`
			} `json:"snapshot"`
		} `json:"resource"`
	} `json:"entry"`
}

func summaryFromZIP(path string) summary {
	log.Println("opening zip archive...")
	archive, err := zip.OpenReader(path)
	if err != nil {
		log.Fatal(err)
	}
	defer archive.Close()

	sum := summary{
		Resources: make(map[string]map[string]bool),
		Datatypes: make(map[string]bool),
	}

	resources := readAndParseJSON(&archive.Reader, "profiles-resources.json")
	for _, entry := range resources.Entry {
		sd := entry.Resource
		if sd.ResourceType != "StructureDefinition" || sd.Kind != "resource" {
			continue
		}
		fields := make(map[string]bool)
		for _, el := range sd.Snapshot.Element {
			rest, ok := strings.CutPrefix(el.Path, sd.Name+".")
			if !ok || strings.Contains(rest, ".") {
				continue
			}
			fields[rest] = el.Max == "*"
		}
		if len(fields) > 0 {
			sum.Resources[sd.Name] = fields
		}
	}

	types := readAndParseJSON(&archive.Reader, "profiles-types.json")
	for _, entry := range types.Entry {
		sd := entry.Resource
		if sd.ResourceType != "StructureDefinition" || sd.Kind != "complex-type" {
			continue
		}
		for _, el := range sd.Snapshot.Element {
			rest, ok := strings.CutPrefix(el.Path, sd.Name+".")
			if !ok || strings.Contains(rest, ".") {
				continue
			}
			// Array-ness wins when the same field name appears in several
			// datatypes; the lookup falls back to these without type context.
			if el.Max == "*" {
				sum.Datatypes[rest] = true
			} else if _, seen := sum.Datatypes[rest]; !seen {
				sum.Datatypes[rest] = false
			}
		}
	}
	return sum
}

func readAndParseJSON(archive *zip.Reader, name string) bundle {
	file, err := archive.Open(name)
	if err != nil {
		file, err = archive.Open("definitions.json/" + name)
	}
	if err != nil {
		log.Fatal(err)
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		log.Fatal(err)
	}
	var b bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		log.Fatal(err)
	}
	return b
}
