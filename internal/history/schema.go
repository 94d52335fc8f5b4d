package history

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	invopop "github.com/invopop/jsonschema"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// Schema returns the JSON Schema of the persisted envelope, reflected from
// the Go types so the two cannot drift.
func Schema() ([]byte, error) {
	r := &invopop.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		Anonymous:                 true,
	}
	s := r.Reflect(&envelope{})
	s.Title = "bepaste clipboard history"
	s.Description = "Ledger stored under the clipboardHistory key, most recent entry first."
	return json.MarshalIndent(s, "", "  ")
}

func envelopeSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		data, err := Schema()
		if err != nil {
			schemaErr = fmt.Errorf("reflect schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("history.json", strings.NewReader(string(data))); err != nil {
			schemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("history.json")
	})
	return compiledSchema, schemaErr
}

// validateEnvelope checks raw against the envelope schema.
func validateEnvelope(raw []byte) error {
	schema, err := envelopeSchema()
	if err != nil {
		return err
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	if err := schema.Validate(doc); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			var msgs []string
			collectErrors(ve, &msgs)
			return fmt.Errorf("schema validation failed:\n%s", strings.Join(msgs, "\n"))
		}
		return fmt.Errorf("schema validation failed: %w", err)
	}
	return nil
}

func collectErrors(err *jsonschema.ValidationError, messages *[]string) {
	if err.InstanceLocation != "" {
		*messages = append(*messages, fmt.Sprintf("- %s: %s", err.InstanceLocation, err.Message))
	}
	for _, cause := range err.Causes {
		collectErrors(cause, messages)
	}
}
