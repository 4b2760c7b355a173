// Package shape builds the canonical comparison shape for a session: the
// two datasets loaded into a fixed, immutable structure plus the analysis
// rubric every observation is scored against.
package shape

import (
	"context"
	"fmt"

	"github.com/dyluth/moot/internal/config"
	"github.com/dyluth/moot/internal/source"
)

// Step is one rubric step. Steps are a fixed constant list, never derived
// from data.
type Step struct {
	Number int
	Label  string
}

// Rubric is the fixed five-step analysis rubric.
var Rubric = []Step{
	{1, "identification"},
	{2, "completeness"},
	{3, "correctness"},
	{4, "quality"},
	{5, "integration"},
}

// Dataset is one side of the comparison.
type Dataset struct {
	Type     string
	Count    int
	Elements []source.Element
	Summary  string
}

// ProblemShape is the immutable comparison shape, built once at session
// start and read-only thereafter.
type ProblemShape struct {
	Dataset1 Dataset
	Dataset2 Dataset
	Steps    []Step
}

// Build loads both datasets and produces the session's ProblemShape.
// A dataset whose type has no registered source comes back with zero
// elements; that is not fatal, and coverage for it will simply read 0%.
func Build(ctx context.Context, reg *source.Registry, cfg config.DatasetsConfig) (*ProblemShape, error) {
	d1, err := loadDataset(ctx, reg, cfg.Dataset1)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset1: %w", err)
	}

	d2, err := loadDataset(ctx, reg, cfg.Dataset2)
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset2: %w", err)
	}

	return &ProblemShape{
		Dataset1: d1,
		Dataset2: d2,
		Steps:    Rubric,
	}, nil
}

// StepLabel returns the rubric label for a step number, or "" if the step
// is out of range.
func (p *ProblemShape) StepLabel(step int) string {
	for _, s := range p.Steps {
		if s.Number == step {
			return s.Label
		}
	}
	return ""
}

// Element returns the dataset1 element with the given ID.
func (p *ProblemShape) Element(elementID string) (source.Element, bool) {
	for _, e := range p.Dataset1.Elements {
		if e.ID == elementID {
			return e, true
		}
	}
	return source.Element{}, false
}

func loadDataset(ctx context.Context, reg *source.Registry, cfg config.DatasetConfig) (Dataset, error) {
	elements, err := reg.Read(ctx, cfg.Type, source.Scope{Path: cfg.Path, Params: cfg.Params})
	if err != nil {
		return Dataset{}, err
	}

	summary := cfg.Summary
	if summary == "" {
		summary = fmt.Sprintf("%d elements of type %s", len(elements), cfg.Type)
	}

	return Dataset{
		Type:     cfg.Type,
		Count:    len(elements),
		Elements: elements,
		Summary:  summary,
	}, nil
}
