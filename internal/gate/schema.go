package gate

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.json
var schemaFS embed.FS

const (
	inboundSchemaName  = "inbound.schema.json"
	outboundSchemaName = "outbound.schema.json"
)

func compileSchema(name string) (*jsonschema.Schema, error) {
	raw, err := schemaFS.ReadFile("schema/" + name)
	if err != nil {
		return nil, err
	}

	resource := "mem://gate/" + name
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(resource, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	return compiler.Compile(resource)
}

// InboundSchema validates device messages.
func InboundSchema() (*jsonschema.Schema, error) {
	return compileSchema(inboundSchemaName)
}

// OutboundSchema describes server messages; devices and tests validate against it.
func OutboundSchema() (*jsonschema.Schema, error) {
	return compileSchema(outboundSchemaName)
}

// decodeInbound validates raw against the schema and decodes it.
func decodeInbound(schema *jsonschema.Schema, raw []byte) (Inbound, error) {
	var document interface{}
	if err := json.Unmarshal(raw, &document); err != nil {
		return Inbound{}, fmt.Errorf("malformed message: %w", err)
	}
	if err := schema.Validate(document); err != nil {
		return Inbound{}, fmt.Errorf("invalid message: %w", err)
	}

	var message Inbound
	if err := json.Unmarshal(raw, &message); err != nil {
		return Inbound{}, fmt.Errorf("malformed message: %w", err)
	}
	return message, nil
}
