package blackboard

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Phase identifies the stage a reconciliation session is in.
// Phases advance strictly forward; there are no backward transitions.
type Phase string

const (
	// PhaseConference is the opening round where every analyst proposes
	// concept nodes from its own perspective.
	PhaseConference Phase = "conference"

	// PhaseGraphBuilding is the bounded loop where analysts extend the
	// shared graph with nodes and edges and vote on graph completeness.
	PhaseGraphBuilding Phase = "graph_building"

	// PhaseAssignment is the single round where analysts claim graph nodes
	// and the engine load-balances unclaimed ones.
	PhaseAssignment Phase = "assignment"

	// PhaseAnalysis is the bounded loop where analysts score their assigned
	// nodes' source elements against the analysis rubric.
	PhaseAnalysis Phase = "analysis"

	// PhaseCompleted marks a finished session.
	PhaseCompleted Phase = "completed"
)

// SessionStatus is the externally controllable run state of a session.
// pausing or stopping a session is observed by the engine at round
// boundaries; already-committed graph and observation state is never
// rolled back.
type SessionStatus string

const (
	SessionStatusRunning SessionStatus = "running"
	SessionStatusPaused  SessionStatus = "paused"
	SessionStatusStopped SessionStatus = "stopped"

	// SessionStatusCompleted means the analysis loop ended with unanimous
	// consensus among active analysts.
	SessionStatusCompleted SessionStatus = "completed"

	// SessionStatusMaxIterations means the analysis loop hit its round cap
	// before consensus was reached. Results are still synthesized.
	SessionStatusMaxIterations SessionStatus = "completed_max_iterations"
)

// GraphNode is a concept in the shared knowledge graph. Nodes are created
// by any analyst during the conference and graph-building phases and are
// owned collectively: no analyst may delete another's node, and in fact no
// deletion operation exists anywhere in the schema.
type GraphNode struct {
	ID               string   `json:"id"`                 // UUID
	Label            string   `json:"label"`              // Deduplication key (case-insensitive)
	Description      string   `json:"description"`        // Free text from the proposing analyst
	NodeType         string   `json:"node_type"`          // e.g. "concept", "requirement", "component"
	SourceDataset    string   `json:"source_dataset"`     // "dataset1", "dataset2", or "both"
	SourceElementIDs []string `json:"source_element_ids"` // Dataset element IDs this node traces to
	CreatedBy        string   `json:"created_by"`         // Analyst role that proposed the node
	CreatedAtMs      int64    `json:"created_at_ms"`
}

// GraphEdge is a typed relation between two existing graph nodes. An edge
// is only ever inserted after both endpoint references have been resolved
// against the current node set; unresolvable proposals are dropped by the
// engine and counted, never stored.
type GraphEdge struct {
	ID           string `json:"id"`             // UUID
	SourceNodeID string `json:"source_node_id"` // Full UUID, resolved before insert
	TargetNodeID string `json:"target_node_id"` // Full UUID, resolved before insert
	EdgeType     string `json:"edge_type"`      // e.g. "implements", "depends_on", "conflicts_with"
	Label        string `json:"label"`
	CreatedBy    string `json:"created_by"`
	CreatedAtMs  int64  `json:"created_at_ms"`
}

// ObservationCell is one aggregated (element × rubric step) judgment.
// Cells are upserted, not appended: a later observation for the same
// (ElementID, Step) key overwrites the cell so it always reflects the most
// recent aggregate judgment for that pair.
type ObservationCell struct {
	ElementID          string   `json:"element_id"`
	Step               int      `json:"step"` // 1-based rubric step
	ElementIndex       int      `json:"element_index"`
	ElementLabel       string   `json:"element_label"`
	StepLabel          string   `json:"step_label"`
	Polarity           float64  `json:"polarity"`    // -1 (gap in dataset2) .. +1 (aligned)
	Criticality        float64  `json:"criticality"` // -1 (severe) .. +1 (no concern), bucketed at synthesis
	Evidence           string   `json:"evidence"`
	ContributingAgents []string `json:"contributing_agents"`
	UpdatedAtMs        int64    `json:"updated_at_ms"`
}

// Key returns the upsert key for this cell.
func (c *ObservationCell) Key() string {
	return ObservationField(c.ElementID, c.Step)
}

// LogEntry is one append-only blackboard record. Entries are never mutated;
// they exist only as shared context fed back into later analyst rounds and
// as an activity trail for observers.
type LogEntry struct {
	ID         string  `json:"id"`          // UUID
	AgentRole  string  `json:"agent_role"`  // Analyst role, or "engine"
	EntryType  string  `json:"entry_type"`  // e.g. "observation", "call_failure", "phase_event"
	Content    string  `json:"content"`
	Iteration  int     `json:"iteration"`
	Confidence float64 `json:"confidence"` // 0..1
	CreatedAtMs int64  `json:"created_at_ms"`
}

// SessionState is the single mutable record for a session. Only the engine
// writes it; the CLI reads it for status display and writes it for the
// pause/stop controls.
type SessionState struct {
	SessionID          string `json:"session_id"`
	Phase              Phase  `json:"phase"`
	CurrentIteration   int    `json:"current_iteration"`
	Status             SessionStatus `json:"status"`
	ConsensusVotes     int    `json:"consensus_votes"`
	GraphCompleteVotes int    `json:"graph_complete_votes"`
	EdgeFailures       int    `json:"edge_failures"` // Cumulative dropped edge proposals
	UpdatedAtMs        int64  `json:"updated_at_ms"`
}

// PhaseEvent is the fire-and-forget notification published on every phase
// transition and round completion for external observers. Delivery is
// best-effort; a failed publish never fails the round that produced it.
type PhaseEvent struct {
	SessionID string            `json:"session_id"`
	Phase     Phase             `json:"phase"`
	Event     string            `json:"event"` // e.g. "phase_started", "round_complete"
	Iteration int               `json:"iteration"`
	Detail    map[string]string `json:"detail,omitempty"`
	AtMs      int64             `json:"at_ms"`
}

// Validate checks if the GraphNode has valid field values.
func (n *GraphNode) Validate() error {
	if !isValidUUID(n.ID) {
		return fmt.Errorf("invalid node ID: not a valid UUID")
	}

	if strings.TrimSpace(n.Label) == "" {
		return fmt.Errorf("node label cannot be empty")
	}

	if n.NodeType == "" {
		return fmt.Errorf("node type cannot be empty")
	}

	if n.CreatedBy == "" {
		return fmt.Errorf("created_by cannot be empty")
	}

	return nil
}

// Validate checks if the GraphEdge has valid field values.
// Endpoint existence is the graph store's responsibility; here we only
// check that both endpoints are full UUIDs, i.e. already resolved.
func (e *GraphEdge) Validate() error {
	if !isValidUUID(e.ID) {
		return fmt.Errorf("invalid edge ID: not a valid UUID")
	}

	if !isValidUUID(e.SourceNodeID) {
		return fmt.Errorf("invalid source node ID: not a valid UUID (unresolved reference?)")
	}

	if !isValidUUID(e.TargetNodeID) {
		return fmt.Errorf("invalid target node ID: not a valid UUID (unresolved reference?)")
	}

	if e.EdgeType == "" {
		return fmt.Errorf("edge type cannot be empty")
	}

	if e.CreatedBy == "" {
		return fmt.Errorf("created_by cannot be empty")
	}

	return nil
}

// Validate checks if the ObservationCell has valid field values.
func (c *ObservationCell) Validate() error {
	if c.ElementID == "" {
		return fmt.Errorf("element ID cannot be empty")
	}

	if c.Step < 1 {
		return fmt.Errorf("invalid step: must be >= 1, got %d", c.Step)
	}

	if c.Polarity < -1 || c.Polarity > 1 {
		return fmt.Errorf("invalid polarity: must be in [-1,1], got %v", c.Polarity)
	}

	return nil
}

// Validate checks if the LogEntry has valid field values.
func (l *LogEntry) Validate() error {
	if !isValidUUID(l.ID) {
		return fmt.Errorf("invalid entry ID: not a valid UUID")
	}

	if l.AgentRole == "" {
		return fmt.Errorf("agent_role cannot be empty")
	}

	if l.EntryType == "" {
		return fmt.Errorf("entry_type cannot be empty")
	}

	if l.Confidence < 0 || l.Confidence > 1 {
		return fmt.Errorf("invalid confidence: must be in [0,1], got %v", l.Confidence)
	}

	return nil
}

// Validate checks if the SessionState has valid field values.
func (s *SessionState) Validate() error {
	if s.SessionID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	if err := s.Phase.Validate(); err != nil {
		return fmt.Errorf("invalid phase: %w", err)
	}

	if err := s.Status.Validate(); err != nil {
		return fmt.Errorf("invalid status: %w", err)
	}

	if s.CurrentIteration < 0 {
		return fmt.Errorf("invalid iteration: must be >= 0, got %d", s.CurrentIteration)
	}

	return nil
}

// Validate checks if the Phase is a valid enum value.
func (p Phase) Validate() error {
	switch p {
	case PhaseConference, PhaseGraphBuilding, PhaseAssignment,
		PhaseAnalysis, PhaseCompleted:
		return nil
	default:
		return fmt.Errorf("unknown phase: %q", p)
	}
}

// Validate checks if the SessionStatus is a valid enum value.
func (s SessionStatus) Validate() error {
	switch s {
	case SessionStatusRunning, SessionStatusPaused, SessionStatusStopped,
		SessionStatusCompleted, SessionStatusMaxIterations:
		return nil
	default:
		return fmt.Errorf("unknown session status: %q", s)
	}
}

// Interrupted reports whether the status is one of the absorbing interrupt
// states. The engine checks this at the top of every round.
func (s SessionStatus) Interrupted() bool {
	return s == SessionStatusPaused || s == SessionStatusStopped
}

// isValidUUID checks if a string is a valid UUID format.
func isValidUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
