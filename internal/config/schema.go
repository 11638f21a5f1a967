package config

import (
	_ "embed" // Required for //go:embed directive
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	metronerrors "github.com/metron-labs/metron/pkg/metron/v1/errors"
)

// Embed the schema file content directly into the compiled binary.
// The path is relative to the location of this Go source file.
//
//go:embed metron_schema_v1.0.0.json
var schemaV1Bytes []byte

var (
	// schemaV1 holds the compiled schema object for efficient validation.
	schemaV1 *gojsonschema.Schema
	// schemaOnce ensures the schema is loaded and compiled only once.
	schemaOnce sync.Once
	// schemaErr stores any error encountered during the one-time schema load.
	schemaErr error
)

// loadSchema ensures the embedded schema is loaded and compiled thread-safely,
// only once. It returns the compiled schema or an error if compiling failed.
func loadSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		if len(schemaV1Bytes) == 0 {
			schemaErr = metronerrors.NewConfigError("embedded schema 'metron_schema_v1.0.0.json' is empty or not found (ensure file exists in internal/config/)", nil)
			return
		}
		loader := gojsonschema.NewBytesLoader(schemaV1Bytes)
		schemaV1, schemaErr = gojsonschema.NewSchema(loader)
		if schemaErr != nil {
			schemaErr = metronerrors.NewConfigError("failed to compile embedded schema 'metron_schema_v1.0.0.json'", schemaErr)
		}
	})
	return schemaV1, schemaErr
}

// ValidateWithSchema validates the given YAML document bytes against the
// embedded Metron v1.0.0 schema. It handles the YAML-to-JSON conversion
// required by the validator.
func ValidateWithSchema(documentYAML []byte) error {
	schema, err := loadSchema()
	if err != nil {
		return err
	}

	// The gojsonschema library works with JSON-like data structures, so the
	// input YAML is first unmarshalled into a generic interface{}. Strict
	// decoding is not used here; only the structure matters at this step.
	var jsonData interface{}
	if err := yaml.Unmarshal(documentYAML, &jsonData); err != nil {
		return metronerrors.NewConfigError("failed to parse configuration YAML for schema validation", err)
	}

	docLoader := gojsonschema.NewGoLoader(jsonData)
	result, err := schema.Validate(docLoader)
	if err != nil {
		return metronerrors.NewConfigError("schema validation process failed", err)
	}

	if !result.Valid() {
		errMsg := "configuration failed JSON schema validation:"
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "(root)" || field == "" {
				field = desc.Context().String()
			}
			errMsg += fmt.Sprintf("\n  - Field '%s': %s", field, desc.Description())
		}
		return metronerrors.NewValidationError(errMsg, nil)
	}

	return nil
}
