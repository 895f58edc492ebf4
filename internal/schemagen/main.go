// Command schemagen generates the JSON schema for the routing config.
package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/invopop/jsonschema"

	"github.com/mocksoul/dprintx/pkg/routing"
)

var outFile = flag.String("o", "routing.v1.json", "Output file for the generated schema")

func main() {
	flag.Parse()

	r := &jsonschema.Reflector{
		DoNotReference: false,
		ExpandedStruct: false,
	}

	err := r.AddGoComments("github.com/mocksoul/dprintx", "../../pkg/routing")
	if err != nil {
		log.Fatalf("add go comments: %v", err)
	}

	js := r.Reflect(&routing.Config{})

	jsData, err := json.MarshalIndent(js, "", "  ")
	if err != nil {
		log.Fatalf("generate JSON schema: %v", err)
	}

	// Write schema file.
	err = os.WriteFile(*outFile, append(jsData, '\n'), 0o600)
	if err != nil {
		log.Fatalf("write schema file: %v", err)
	}
}
