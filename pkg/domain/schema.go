package domain

import (
	_ "embed"
	"fmt"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

// DocumentSchema is the JSON Schema describing the current on-disk trip
// document shape. It validates structure, not cross-references: link
// consistency is the migration engine's and boundary validator's job.
//
//go:embed schema/trip-document.schema.json
var DocumentSchema []byte

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func documentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiledSchema, schemaErr = compiler.Compile(DocumentSchema)
		if schemaErr != nil {
			schemaErr = fmt.Errorf("compile trip document schema: %w", schemaErr)
		}
	})
	return compiledSchema, schemaErr
}

// ValidateDocumentJSON checks raw document bytes against the embedded schema
// and returns one error per violation, empty when the document is valid.
func ValidateDocumentJSON(data []byte) ([]string, error) {
	schema, err := documentSchema()
	if err != nil {
		return nil, err
	}
	result := schema.ValidateJSON(data)
	if result.IsValid() {
		return nil, nil
	}
	var problems []string
	for field, detail := range result.Errors {
		problems = append(problems, fmt.Sprintf("%s: %v", field, detail))
	}
	return problems, nil
}
