// Package schema generates JSON schemas for host-side document types, so
// plugin authors can validate manifests and payloads without reading Go
// source.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/polyhost-dev/polyhost-sdk/runtime/exprlang"
)

// Generate creates a JSON Schema (Draft 2020-12) from a Go struct by
// reflection.
func Generate(v any) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true, // inline the root struct instead of a $ref
	}
	s := reflector.Reflect(v)

	jsonBytes, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return jsonBytes, nil
}

// ForManifest returns the schema of the exprlang plugin manifest.
func ForManifest() ([]byte, error) {
	return Generate(&exprlang.Manifest{})
}
