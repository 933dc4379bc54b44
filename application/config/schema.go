package config

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	schemavalidator "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/reglet-dev/sourcehost/domain/entities"
	domainerrors "github.com/reglet-dev/sourcehost/domain/errors"
)

// Schema returns the JSON schema of the configuration file.
func Schema() ([]byte, error) {
	return GenerateSchema(&entities.HostConfig{})
}

// GenerateSchema reflects a JSON schema (draft 2020-12) from v, expanding
// the top-level struct inline.
func GenerateSchema(v any) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
		FieldNameTag:   "yaml",
	}
	schema := reflector.Reflect(v)
	schema.Title = "sourcehost configuration"

	out, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, &domainerrors.SchemaError{Type: fmt.Sprintf("%T", v), Err: err}
	}
	return out, nil
}

const schemaURL = "sourcehost-config.json"

// CheckSchema validates cfg against the configuration's JSON Schema, the
// same document Schema returns. It reports JSON pointer locations, which
// makes it the form used by `config check`.
func CheckSchema(cfg entities.HostConfig) error {
	schema, err := Schema()
	if err != nil {
		return err
	}
	compiler := schemavalidator.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schema)); err != nil {
		return &domainerrors.SchemaError{Type: "HostConfig", Err: err}
	}
	compiled, err := compiler.Compile(schemaURL)
	if err != nil {
		return &domainerrors.SchemaError{Type: "HostConfig", Err: err}
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return &domainerrors.SchemaError{Type: "HostConfig", Err: err}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return &domainerrors.SchemaError{Type: "HostConfig", Err: err}
	}

	if err := compiled.Validate(doc); err != nil {
		return &domainerrors.ConfigError{Err: err}
	}
	return nil
}
