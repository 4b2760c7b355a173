package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// JSONFileSource reads elements from a JSON file containing either an array
// of element objects or an array of plain strings (which become labels).
type JSONFileSource struct{}

// Read loads and decodes the file named by scope.Path.
func (s *JSONFileSource) Read(ctx context.Context, scope Scope) ([]Element, error) {
	data, err := os.ReadFile(scope.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read element file: %w", err)
	}

	var elements []Element
	if err := json.Unmarshal(data, &elements); err == nil {
		return fillIDs(elements), nil
	}

	// Fall back to a bare string array
	var labels []string
	if err := json.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("element file %s is neither an element array nor a string array: %w", scope.Path, err)
	}

	return fromLabels(labels), nil
}

// YAMLFileSource reads elements from a YAML file with the same shapes the
// JSON source accepts.
type YAMLFileSource struct{}

// Read loads and decodes the file named by scope.Path.
func (s *YAMLFileSource) Read(ctx context.Context, scope Scope) ([]Element, error) {
	data, err := os.ReadFile(scope.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read element file: %w", err)
	}

	var elements []Element
	if err := yaml.Unmarshal(data, &elements); err == nil && len(elements) > 0 && elements[0].Label != "" {
		return fillIDs(elements), nil
	}

	var labels []string
	if err := yaml.Unmarshal(data, &labels); err != nil {
		return nil, fmt.Errorf("element file %s is neither an element array nor a string array: %w", scope.Path, err)
	}

	return fromLabels(labels), nil
}

// fillIDs gives every element without an explicit ID a positional one.
func fillIDs(elements []Element) []Element {
	for i := range elements {
		if elements[i].ID == "" {
			elements[i].ID = fmt.Sprintf("e%d", i+1)
		}
		if elements[i].Index == 0 && i > 0 {
			elements[i].Index = i
		}
	}
	return elements
}

func fromLabels(labels []string) []Element {
	elements := make([]Element, len(labels))
	for i, label := range labels {
		elements[i] = Element{
			ID:    fmt.Sprintf("e%d", i+1),
			Label: label,
			Index: i,
		}
	}
	return elements
}
