package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/invopop/jsonschema"
)

const (
	schemaDraft = "http://json-schema.org/draft-07/schema#"
	schemaTitle = "CulinaryAI live assistant configuration"

	durationPattern = `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`
)

var durationType = reflect.TypeOf(time.Duration(0))

// newReflector reads field names from yaml tags and constraints from
// jsonschema tags. Definitions are inlined so the result is self-contained.
func newReflector() jsonschema.Reflector {
	return jsonschema.Reflector{
		AllowAdditionalProperties:  false,
		Anonymous:                  true,
		ExpandedStruct:             true,
		DoNotReference:             true,
		FieldNameTag:               "yaml",
		RequiredFromJSONSchemaTags: true,
		Mapper:                     mapType,
	}
}

// mapType writes durations the way YAML spells them, e.g. 2s or 720h.
func mapType(t reflect.Type) *jsonschema.Schema {
	if t == durationType {
		return &jsonschema.Schema{Type: "string", Pattern: durationPattern}
	}
	return nil
}

// GenerateSchema reflects the config file schema from Config.
func GenerateSchema() *jsonschema.Schema {
	r := newReflector()
	schema := r.Reflect(&Config{})
	schema.Version = schemaDraft
	schema.Title = schemaTitle
	schema.Description = "Config file schema " + SchemaVersion
	return schema
}

var schemaJSON = sync.OnceValues(func() ([]byte, error) {
	data, err := json.MarshalIndent(GenerateSchema(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config schema: %w", err)
	}
	return data, nil
})

// Schema returns a copy of the config file schema as indented JSON.
func Schema() []byte {
	data, err := schemaJSON()
	if err != nil {
		panic(err)
	}
	return slices.Clone(data)
}
