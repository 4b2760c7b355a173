// Package tesseract holds the analysis-phase observation matrix: one cell
// per (dataset element, rubric step) pair, merged across analysts over
// successive rounds. The engine owns the in-memory store and mirrors every
// merge into Redis through a Persister.
package tesseract

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dyluth/moot/pkg/blackboard"
)

// Persister mirrors merged cells into durable storage.
// Implemented by *blackboard.Client.
type Persister interface {
	UpsertObservation(ctx context.Context, sessionID string, cell *blackboard.ObservationCell) error
}

// Store accumulates observation cells for one session. Single-writer, no
// locking: the engine merges analyst responses sequentially after each
// round settles.
type Store struct {
	sessionID string
	persister Persister
	cells     map[string]*blackboard.ObservationCell // Key() → cell
}

// NewStore creates an empty observation store. persister may be nil (tests).
func NewStore(sessionID string, persister Persister) *Store {
	return &Store{
		sessionID: sessionID,
		persister: persister,
		cells:     make(map[string]*blackboard.ObservationCell),
	}
}

// UpsertCell merges an analyst's observation into the matrix. A later
// observation for the same (element, step) cell overwrites polarity and
// criticality, replaces the evidence only when the new evidence is
// non-empty, and unions the contributing agent into the cell's agent list.
func (s *Store) UpsertCell(ctx context.Context, cell *blackboard.ObservationCell, agent string) (*blackboard.ObservationCell, error) {
	if cell == nil {
		return nil, fmt.Errorf("observation cell cannot be nil")
	}
	if cell.ElementID == "" {
		return nil, fmt.Errorf("observation cell element ID cannot be empty")
	}
	if cell.Step < 1 {
		return nil, fmt.Errorf("observation cell step must be >= 1, got %d", cell.Step)
	}

	key := cell.Key()
	existing, ok := s.cells[key]
	if !ok {
		merged := *cell
		merged.ContributingAgents = unionAgents(nil, agent)
		merged.UpdatedAtMs = time.Now().UnixMilli()
		s.cells[key] = &merged
	} else {
		existing.Polarity = cell.Polarity
		existing.Criticality = cell.Criticality
		if cell.Evidence != "" {
			existing.Evidence = cell.Evidence
		}
		if cell.ElementLabel != "" {
			existing.ElementLabel = cell.ElementLabel
		}
		if cell.StepLabel != "" {
			existing.StepLabel = cell.StepLabel
		}
		existing.ContributingAgents = unionAgents(existing.ContributingAgents, agent)
		existing.UpdatedAtMs = time.Now().UnixMilli()
	}

	merged := s.cells[key]
	if s.persister != nil {
		if err := s.persister.UpsertObservation(ctx, s.sessionID, merged); err != nil {
			return merged, fmt.Errorf("failed to persist observation %s: %w", key, err)
		}
	}
	return merged, nil
}

// Cell returns the merged cell for an (element, step) pair.
func (s *Store) Cell(elementID string, step int) (*blackboard.ObservationCell, bool) {
	c, ok := s.cells[fmt.Sprintf("%s|%d", elementID, step)]
	return c, ok
}

// Cells returns all merged cells ordered by element index, element ID, then
// step, matching the blackboard listing order.
func (s *Store) Cells() []*blackboard.ObservationCell {
	out := make([]*blackboard.ObservationCell, 0, len(s.cells))
	for _, c := range s.cells {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ElementIndex != out[j].ElementIndex {
			return out[i].ElementIndex < out[j].ElementIndex
		}
		if out[i].ElementID != out[j].ElementID {
			return out[i].ElementID < out[j].ElementID
		}
		return out[i].Step < out[j].Step
	})
	return out
}

// ForElement returns the merged cells for one element, ordered by step.
func (s *Store) ForElement(elementID string) []*blackboard.ObservationCell {
	var out []*blackboard.ObservationCell
	for _, c := range s.cells {
		if c.ElementID == elementID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Step < out[j].Step })
	return out
}

// Len returns the number of populated cells.
func (s *Store) Len() int {
	return len(s.cells)
}

func unionAgents(agents []string, agent string) []string {
	if agent == "" {
		return agents
	}
	for _, a := range agents {
		if a == agent {
			return agents
		}
	}
	return append(agents, agent)
}
