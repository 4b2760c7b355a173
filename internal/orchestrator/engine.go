// Package orchestrator drives a reconciliation session through its phases:
// conference, graph building, assignment, analysis, finalize. The engine is
// the only writer of graph, observation, and session state; analysts only
// ever produce text that the engine validates and applies.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/dyluth/moot/internal/agent"
	"github.com/dyluth/moot/internal/config"
	"github.com/dyluth/moot/internal/graph"
	"github.com/dyluth/moot/internal/persona"
	"github.com/dyluth/moot/internal/shape"
	"github.com/dyluth/moot/internal/source"
	"github.com/dyluth/moot/internal/synthesis"
	"github.com/dyluth/moot/internal/tesseract"
	"github.com/dyluth/moot/pkg/blackboard"
	"github.com/google/uuid"
)

// blackboardTailSize bounds how many recent log entries are fed back into
// analysis prompts as shared context.
const blackboardTailSize = 20

// Engine runs one session at a time against the blackboard.
type Engine struct {
	client    *blackboard.Client
	cfg       *config.MootConfig
	generator agent.Generator
	personas  *persona.Registry
	sources   *source.Registry
}

// Summary is what Run hands back regardless of how the session ended.
type Summary struct {
	SessionID        string
	Phase            blackboard.Phase
	Status           blackboard.SessionStatus
	Iterations       int
	ConsensusReached bool
	Success          bool
	Report           *synthesis.Report
}

// NewEngine wires an engine from its collaborators. The persona registry is
// built from the config's analyst overrides.
func NewEngine(client *blackboard.Client, cfg *config.MootConfig, generator agent.Generator) (*Engine, error) {
	if client == nil {
		return nil, fmt.Errorf("blackboard client is required")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	cfg.ApplyDefaults()

	overrides := make(map[string]persona.Override)
	for role, a := range cfg.Analysts {
		overrides[role] = persona.Override{
			Name:         a.Name,
			Instructions: a.Instructions,
			Enabled:      a.Enabled,
		}
	}
	personas, err := persona.NewRegistry(overrides)
	if err != nil {
		return nil, fmt.Errorf("invalid analyst configuration: %w", err)
	}
	if len(personas.Active()) == 0 {
		return nil, fmt.Errorf("at least one analyst must be enabled")
	}

	return &Engine{
		client:    client,
		cfg:       cfg,
		generator: generator,
		personas:  personas,
		sources:   source.NewRegistry(),
	}, nil
}

// session carries the per-run working state so phase methods don't thread
// half a dozen arguments around.
type session struct {
	id          string
	ps          *shape.ProblemShape
	graph       *graph.Store
	tesseract   *tesseract.Store
	state       *blackboard.SessionState
	assignments map[string][]string // analyst role → assigned node IDs
}

// Run executes one full session. An external pause or stop observed at a
// round boundary exits cleanly: committed state stays intact, the summary
// so far is returned with Success=false, and no error is reported.
func (e *Engine) Run(ctx context.Context, sessionID string) (*Summary, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	log.Printf("[Engine] Starting session %s with %d analysts", sessionID, len(e.personas.Active()))

	ps, err := shape.Build(ctx, e.sources, e.cfg.Datasets)
	if err != nil {
		return nil, fmt.Errorf("failed to build problem shape: %w", err)
	}

	s := &session{
		id:          sessionID,
		ps:          ps,
		graph:       graph.NewStore(sessionID, e.client),
		tesseract:   tesseract.NewStore(sessionID, e.client),
		assignments: make(map[string][]string),
		state: &blackboard.SessionState{
			SessionID: sessionID,
			Phase:     blackboard.PhaseConference,
			Status:    blackboard.SessionStatusRunning,
		},
	}
	if err := e.saveState(ctx, s); err != nil {
		return nil, err
	}

	phases := []struct {
		phase blackboard.Phase
		run   func(context.Context, *session) error
	}{
		{blackboard.PhaseConference, e.runConference},
		{blackboard.PhaseGraphBuilding, e.runGraphBuilding},
		{blackboard.PhaseAssignment, e.runAssignment},
		{blackboard.PhaseAnalysis, e.runAnalysis},
	}

	for _, p := range phases {
		// An external pause/stop must survive the phase transition, so the
		// poll happens before the state write.
		if e.checkInterrupt(ctx, s) {
			log.Printf("[Engine] Session %s interrupted (%s) before %s", s.id, s.state.Status, p.phase)
			return e.summarize(s, nil), nil
		}

		s.state.Phase = p.phase
		if err := e.saveState(ctx, s); err != nil {
			return nil, err
		}
		e.publishEvent(ctx, s, "phase_started", nil)

		if err := p.run(ctx, s); err != nil {
			return nil, err
		}
		if s.state.Status.Interrupted() {
			log.Printf("[Engine] Session %s interrupted (%s) during %s", s.id, s.state.Status, p.phase)
			return e.summarize(s, nil), nil
		}
	}

	return e.finalize(ctx, s)
}

// finalize synthesizes the report and marks the session completed.
func (e *Engine) finalize(ctx context.Context, s *session) (*Summary, error) {
	report := synthesis.Synthesize(s.ps, s.tesseract.Cells())

	consensus := s.state.ConsensusVotes == len(e.personas.Active())
	s.state.Phase = blackboard.PhaseCompleted
	if consensus {
		s.state.Status = blackboard.SessionStatusCompleted
	} else {
		s.state.Status = blackboard.SessionStatusMaxIterations
	}
	if err := e.saveState(ctx, s); err != nil {
		return nil, err
	}

	e.publishEvent(ctx, s, "session_completed", map[string]string{
		"status":   string(s.state.Status),
		"findings": fmt.Sprintf("%d", len(report.Findings)),
	})
	e.logEvent("session_completed", map[string]interface{}{
		"session_id": s.id,
		"status":     string(s.state.Status),
		"iterations": s.state.CurrentIteration,
		"nodes":      s.graph.Len(),
		"cells":      s.tesseract.Len(),
	})

	summary := e.summarize(s, report)
	return summary, nil
}

func (e *Engine) summarize(s *session, report *synthesis.Report) *Summary {
	return &Summary{
		SessionID:        s.id,
		Phase:            s.state.Phase,
		Status:           s.state.Status,
		Iterations:       s.state.CurrentIteration,
		ConsensusReached: s.state.Status == blackboard.SessionStatusCompleted,
		Success:          !s.state.Status.Interrupted(),
		Report:           report,
	}
}

// checkInterrupt re-reads the externally writable session status. Called at
// the top of every round. A missing state record keeps the engine running.
func (e *Engine) checkInterrupt(ctx context.Context, s *session) bool {
	stored, err := e.client.GetSessionState(ctx, s.id)
	if err != nil {
		if !blackboard.IsNotFound(err) {
			log.Printf("[Engine] WARN: failed to poll session status: %v", err)
		}
		return false
	}
	if stored.Status.Interrupted() {
		s.state.Status = stored.Status
		return true
	}
	return false
}

// saveState persists the session state. The status field is externally
// writable (moot pause/stop), so a running write first re-reads the stored
// state and adopts an interrupted status instead of clobbering it; the
// caller's loop then sees the interrupt on s.state.
func (e *Engine) saveState(ctx context.Context, s *session) error {
	if s.state.Status == blackboard.SessionStatusRunning {
		if stored, err := e.client.GetSessionState(ctx, s.id); err == nil && stored.Status.Interrupted() {
			s.state.Status = stored.Status
		}
	}
	s.state.UpdatedAtMs = time.Now().UnixMilli()
	if err := e.client.PutSessionState(ctx, s.state); err != nil {
		return fmt.Errorf("failed to persist session state: %w", err)
	}
	return nil
}

// publishEvent broadcasts a phase event. Delivery is best-effort; a failed
// publish never fails the round that produced it.
func (e *Engine) publishEvent(ctx context.Context, s *session, event string, detail map[string]string) {
	err := e.client.PublishPhaseEvent(ctx, &blackboard.PhaseEvent{
		SessionID: s.id,
		Phase:     s.state.Phase,
		Event:     event,
		Iteration: s.state.CurrentIteration,
		Detail:    detail,
		AtMs:      time.Now().UnixMilli(),
	})
	if err != nil {
		log.Printf("[Engine] WARN: failed to publish phase event %s: %v", event, err)
	}
}

// appendLog writes a blackboard entry. Best-effort like publishEvent.
func (e *Engine) appendLog(ctx context.Context, s *session, role, entryType, content string, confidence float64) {
	entry := &blackboard.LogEntry{
		ID:          uuid.New().String(),
		AgentRole:   role,
		EntryType:   entryType,
		Content:     content,
		Iteration:   s.state.CurrentIteration,
		Confidence:  confidence,
		CreatedAtMs: time.Now().UnixMilli(),
	}
	if err := e.client.AppendLogEntry(ctx, s.id, entry); err != nil {
		log.Printf("[Engine] WARN: failed to append log entry: %v", err)
	}
}

// logEvent logs a structured event in JSON format.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "engine"
	data["event_type"] = eventType
	data["instance"] = e.cfg.Instance

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Engine] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
