// Package synthesis aggregates the final observation matrix into the
// session's three-way classification report. It runs exactly once, after
// the analysis phase, and only reads: averaged polarities classify each
// observed element as aligned with dataset2, unique to dataset1, or unique
// to dataset2, with a coverage metric over dataset1.
package synthesis

import (
	"sort"
	"strings"

	"github.com/dyluth/moot/internal/shape"
	"github.com/dyluth/moot/pkg/blackboard"
)

// Classification buckets for an observed element.
const (
	ClassUniqueToDataset1 = "unique_to_dataset1"
	ClassAligned          = "aligned"
	ClassUniqueToDataset2 = "unique_to_dataset2"
)

// Criticality buckets derived from the averaged criticality score.
const (
	CriticalityCritical = "critical"
	CriticalityMajor    = "major"
	CriticalityMinor    = "minor"
	CriticalityInfo     = "info"
)

// Polarity thresholds for the three-way classification.
const (
	gapThreshold     = -0.3
	alignedThreshold = 0.3
)

// MaxEvidencePerElement caps how many evidence strings are carried into a
// finding's joined evidence text.
const MaxEvidencePerElement = 3

// Finding is the synthesized verdict for one dataset element.
type Finding struct {
	ElementID      string  `json:"elementId"`
	ElementLabel   string  `json:"elementLabel"`
	ElementIndex   int     `json:"elementIndex"`
	Classification string  `json:"classification"`
	AvgPolarity    float64 `json:"avgPolarity"`
	Criticality    string  `json:"criticality"`
	Evidence       string  `json:"evidence"`
	CellCount      int     `json:"cellCount"`
}

// Report is the final output of a session.
type Report struct {
	Findings        []Finding `json:"findings"`
	AlignedCount    int       `json:"alignedCount"`
	UniqueToD1Count int       `json:"uniqueToD1Count"`
	UniqueToD2Count int       `json:"uniqueToD2Count"`
	TotalD1Coverage float64   `json:"totalD1Coverage"`
}

// Synthesize classifies every element that has at least one observation
// cell. Each element lands in exactly one bucket. Coverage is the fraction
// of dataset1 elements classified as aligned, and is 0 for an empty
// dataset1.
func Synthesize(ps *shape.ProblemShape, cells []*blackboard.ObservationCell) *Report {
	byElement := make(map[string][]*blackboard.ObservationCell)
	for _, c := range cells {
		byElement[c.ElementID] = append(byElement[c.ElementID], c)
	}

	report := &Report{Findings: make([]Finding, 0, len(byElement))}
	for elementID, elementCells := range byElement {
		f := synthesizeElement(ps, elementID, elementCells)
		report.Findings = append(report.Findings, f)

		switch f.Classification {
		case ClassAligned:
			report.AlignedCount++
		case ClassUniqueToDataset1:
			report.UniqueToD1Count++
		case ClassUniqueToDataset2:
			report.UniqueToD2Count++
		}
	}

	// Dataset1 elements in their original order, then unknown elements
	// (index -1) by ID.
	sort.Slice(report.Findings, func(i, j int) bool {
		a, b := report.Findings[i], report.Findings[j]
		ai, bi := sortIndex(a.ElementIndex), sortIndex(b.ElementIndex)
		if ai != bi {
			return ai < bi
		}
		return a.ElementID < b.ElementID
	})

	if ps != nil && ps.Dataset1.Count > 0 {
		report.TotalD1Coverage = float64(report.AlignedCount) / float64(ps.Dataset1.Count)
	}

	return report
}

func synthesizeElement(ps *shape.ProblemShape, elementID string, cells []*blackboard.ObservationCell) Finding {
	var polaritySum, criticalitySum float64
	var label string
	index := -1
	var evidence []string

	for _, c := range cells {
		polaritySum += c.Polarity
		criticalitySum += c.Criticality
		if label == "" {
			label = c.ElementLabel
		}
		if index < 0 && c.ElementIndex >= 0 {
			index = c.ElementIndex
		}
		if c.Evidence != "" && len(evidence) < MaxEvidencePerElement {
			evidence = append(evidence, c.Evidence)
		}
	}

	if ps != nil {
		if el, ok := ps.Element(elementID); ok {
			label = el.Label
			index = el.Index
		}
	}
	n := float64(len(cells))
	avgPolarity := polaritySum / n
	avgCriticality := criticalitySum / n

	return Finding{
		ElementID:      elementID,
		ElementLabel:   label,
		ElementIndex:   index,
		Classification: classify(avgPolarity),
		AvgPolarity:    avgPolarity,
		Criticality:    bucketCriticality(avgCriticality),
		Evidence:       strings.Join(evidence, "; "),
		CellCount:      len(cells),
	}
}

// sortIndex places unknown elements (negative index) after every dataset1
// element.
func sortIndex(i int) int {
	if i < 0 {
		return int(^uint(0) >> 1)
	}
	return i
}

func classify(avgPolarity float64) string {
	switch {
	case avgPolarity < gapThreshold:
		return ClassUniqueToDataset1
	case avgPolarity > alignedThreshold:
		return ClassAligned
	default:
		return ClassUniqueToDataset2
	}
}

func bucketCriticality(avg float64) string {
	switch {
	case avg < -0.7:
		return CriticalityCritical
	case avg < -0.3:
		return CriticalityMajor
	case avg < 0.3:
		return CriticalityMinor
	default:
		return CriticalityInfo
	}
}
