package exprlang

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Manifest is the plugin document consumed by the exprlang runtime: a named
// set of functions, each an expression body over declared parameters.
//
// Example:
//
//	name: calculator
//	functions:
//	  add:
//	    params: [a, b]
//	    body: a + b
type Manifest struct {
	// Name is the plugin's display name.
	Name string `yaml:"name" json:"name" validate:"required"`

	// Version is an optional informational version string.
	Version string `yaml:"version,omitempty" json:"version,omitempty"`

	// Functions maps callable names to their definitions.
	Functions map[string]FunctionSpec `yaml:"functions" json:"functions" validate:"required,min=1,dive"`
}

// FunctionSpec declares one callable: an ordered parameter list and an
// expression body evaluated against those parameters.
type FunctionSpec struct {
	// Params are the positional parameter names, in declared order.
	Params []string `yaml:"params,omitempty" json:"params,omitempty" validate:"unique,dive,required"`

	// Body is the expression evaluated when the function is called.
	Body string `yaml:"body" json:"body" validate:"required"`
}

var validate = validator.New()

// ParseManifest decodes and validates a YAML manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	if err := validate.Struct(&m); err != nil {
		return nil, fmt.Errorf("manifest validation failed: %w", err)
	}
	return &m, nil
}

// probeManifest reports whether data looks like an exprlang manifest: a
// YAML mapping with a functions key. Used by Supports for content sniffing
// of text and byte sources.
func probeManifest(data []byte) bool {
	var doc struct {
		Functions map[string]any `yaml:"functions"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return false
	}
	return len(doc.Functions) > 0
}
