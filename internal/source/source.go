// Package source provides read-only access to dataset elements.
//
// A reconciliation session names two datasets by type (e.g. "jsonfile",
// "yamlfile"). The registry maps those types onto concrete element sources.
// Sources never mutate anything, and an unknown dataset type yields an
// empty element list rather than an error; the rest of the pipeline must
// tolerate a zero-count dataset.
package source

import (
	"context"
	"fmt"
	"sort"
)

// Element is one item of a dataset: a requirement, a document, a test case.
// Index is the element's stable position within its dataset.
type Element struct {
	ID      string `json:"id" yaml:"id"`
	Label   string `json:"label" yaml:"label"`
	Index   int    `json:"index" yaml:"index"`
	Content string `json:"content,omitempty" yaml:"content,omitempty"`
}

// Scope carries the per-dataset read parameters from session config.
type Scope struct {
	Path   string            // File path for file-backed sources
	Params map[string]string // Source-specific options
}

// Source reads the elements of one dataset. Implementations must be
// read-only and safe for reuse across sessions.
type Source interface {
	Read(ctx context.Context, scope Scope) ([]Element, error)
}

// Registry maps dataset type names onto sources.
type Registry struct {
	sources map[string]Source
}

// NewRegistry creates a registry with the built-in file-backed sources
// registered.
func NewRegistry() *Registry {
	r := &Registry{sources: make(map[string]Source)}
	r.Register("jsonfile", &JSONFileSource{})
	r.Register("yamlfile", &YAMLFileSource{})
	return r
}

// Register adds or replaces a source for a dataset type.
func (r *Registry) Register(datasetType string, s Source) {
	r.sources[datasetType] = s
}

// Read loads the elements for a dataset type. Unknown types return an
// empty slice and no error; the caller's coverage metrics simply read 0%.
// Elements come back with contiguous indexes in a deterministic order.
func (r *Registry) Read(ctx context.Context, datasetType string, scope Scope) ([]Element, error) {
	src, ok := r.sources[datasetType]
	if !ok {
		return []Element{}, nil
	}

	elements, err := src.Read(ctx, scope)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset type %q: %w", datasetType, err)
	}

	// Stable order, then reindex so gaps in input indexes cannot leak
	// into observation cells
	sort.SliceStable(elements, func(i, j int) bool {
		return elements[i].Index < elements[j].Index
	})
	for i := range elements {
		elements[i].Index = i
	}

	return elements, nil
}

// StaticSource serves a fixed element list. Used in tests and for inline
// dataset definitions.
type StaticSource struct {
	Elements []Element
}

// Read returns a copy of the fixed element list.
func (s *StaticSource) Read(ctx context.Context, scope Scope) ([]Element, error) {
	out := make([]Element, len(s.Elements))
	copy(out, s.Elements)
	return out, nil
}
