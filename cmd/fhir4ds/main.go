// Command fhir4ds compiles FHIRPath expressions and CQL libraries to SQL
// for analytical databases.
package main

import (
	"os"

	"github.com/joelmontavon/fhir4ds/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
