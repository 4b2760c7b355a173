package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/dyluth/moot/internal/agent"
	"github.com/dyluth/moot/internal/persona"
	"github.com/dyluth/moot/internal/resolver"
	"github.com/dyluth/moot/pkg/blackboard"
	"golang.org/x/sync/errgroup"
)

// analystResult is one slot of a round's fan-out. err carries a call
// failure (timeout, crash, unwritable stdin); parse failures are not
// errors, the decoders absorb those.
type analystResult struct {
	analyst persona.Analyst
	raw     string
	err     error
}

// fanOut calls every active analyst in parallel and waits for all of them
// to settle. Goroutines always return nil so one analyst's failure never
// cancels the siblings; failures travel in the result slots.
func (e *Engine) fanOut(ctx context.Context, build func(persona.Analyst) agent.Request) []analystResult {
	analysts := e.personas.Active()
	results := make([]analystResult, len(analysts))

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range analysts {
		i, a := i, a
		g.Go(func() error {
			raw, err := e.generator.GenerateStructured(gctx, build(a))
			results[i] = analystResult{analyst: a, raw: raw, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// recordFailure logs a failed analyst call and records it on the
// blackboard. The analyst becomes a non-vote for the round.
func (e *Engine) recordFailure(ctx context.Context, s *session, r analystResult) {
	log.Printf("[Engine] WARN: analyst %s call failed: %v", r.analyst.Role, r.err)
	e.appendLog(ctx, s, r.analyst.Role, "call_failure", r.err.Error(), 0)
}

// runConference runs the single opening round: every analyst proposes
// concept nodes from its perspective and all proposals merge into the
// graph with label dedup. No voting in this phase.
func (e *Engine) runConference(ctx context.Context, s *session) error {
	if e.checkInterrupt(ctx, s) {
		return nil
	}

	results := e.fanOut(ctx, func(a persona.Analyst) agent.Request {
		return agent.ConferenceRequest(a, s.ps)
	})

	created, deduped := 0, 0
	for _, r := range results {
		if r.err != nil {
			e.recordFailure(ctx, s, r)
			continue
		}
		resp := agent.DecodeConference(r.raw)
		c, d := e.applyNodeProposals(ctx, s, r.analyst.Role, resp.ProposedNodes)
		created += c
		deduped += d
		if resp.Reasoning != "" {
			e.appendLog(ctx, s, r.analyst.Role, "conference", resp.Reasoning, 0)
		}
	}

	e.logEvent("conference_complete", map[string]interface{}{
		"session_id":    s.id,
		"nodes_created": created,
		"nodes_deduped": deduped,
	})
	e.publishEvent(ctx, s, "round_complete", map[string]string{
		"nodes": fmt.Sprintf("%d", s.graph.Len()),
	})
	return nil
}

// runGraphBuilding runs the bounded graph-extension loop. Each round every
// analyst sees the current graph and may add nodes and edges and vote
// "graph complete"; the loop exits early once votes reach the quorum
// fraction of active analysts.
func (e *Engine) runGraphBuilding(ctx context.Context, s *session) error {
	maxRounds := *e.cfg.Session.MaxGraphRounds
	quorum := *e.cfg.Session.GraphQuorum
	active := len(e.personas.Active())

	for round := 1; round <= maxRounds; round++ {
		if e.checkInterrupt(ctx, s) {
			return nil
		}
		s.state.CurrentIteration = round

		snapshot := s.graph.Snapshot()
		results := e.fanOut(ctx, func(a persona.Analyst) agent.Request {
			return agent.GraphBuildRequest(a, s.ps, snapshot, round, maxRounds)
		})

		// Nodes from every analyst land before any edges so that edges may
		// reference nodes proposed in the same round.
		votes := 0
		responses := make([]*agent.GraphBuildResponse, len(results))
		for i, r := range results {
			if r.err != nil {
				e.recordFailure(ctx, s, r)
				continue
			}
			responses[i] = agent.DecodeGraphBuild(r.raw)
			e.applyNodeProposals(ctx, s, r.analyst.Role, responses[i].ProposedNodes)
		}
		for i, resp := range responses {
			if resp == nil {
				continue
			}
			e.applyEdgeProposals(ctx, s, results[i].analyst.Role, resp.ProposedEdges)
			if resp.GraphComplete {
				votes++
			}
		}

		s.state.GraphCompleteVotes = votes
		if err := e.saveState(ctx, s); err != nil {
			return err
		}
		// saveState adopts a pause/stop committed mid-round; exit now
		// rather than after another full round.
		if s.state.Status.Interrupted() {
			return nil
		}
		e.publishEvent(ctx, s, "round_complete", map[string]string{
			"votes": fmt.Sprintf("%d/%d", votes, active),
			"nodes": fmt.Sprintf("%d", s.graph.Len()),
			"edges": fmt.Sprintf("%d", len(s.graph.Edges())),
		})
		e.logEvent("graph_round_complete", map[string]interface{}{
			"session_id": s.id,
			"round":      round,
			"votes":      votes,
			"active":     active,
		})

		if float64(votes) >= quorum*float64(active) {
			log.Printf("[Engine] Graph complete after round %d (%d/%d votes)", round, votes, active)
			return nil
		}
	}
	return nil
}

// applyNodeProposals merges node proposals into the graph, returning the
// count of created and deduplicated nodes.
func (e *Engine) applyNodeProposals(ctx context.Context, s *session, role string, proposals []agent.NodeProposal) (created, deduped int) {
	for _, p := range proposals {
		_, wasCreated, err := s.graph.UpsertNode(ctx, p.Label, p.Description, p.NodeType, p.SourceDataset, p.SourceElementIDs, role)
		if err != nil {
			log.Printf("[Engine] WARN: node proposal from %s rejected: %v", role, err)
			continue
		}
		if wasCreated {
			created++
		} else {
			deduped++
		}
	}
	return created, deduped
}

// applyEdgeProposals inserts edge proposals, dropping (and counting) any
// whose endpoint references do not resolve. A dropped edge never fails the
// round. A persistence failure is not a drop: the edge stands in memory,
// so it is logged without touching the counter.
func (e *Engine) applyEdgeProposals(ctx context.Context, s *session, role string, proposals []agent.EdgeProposal) {
	for _, p := range proposals {
		if _, err := s.graph.InsertEdge(ctx, p.Source, p.Target, p.EdgeType, p.Label, role); err != nil {
			if resolver.IsNotFoundError(err) || resolver.IsAmbiguousError(err) {
				s.state.EdgeFailures++
				log.Printf("[Engine] Dropped edge from %s: %v", role, err)
			} else {
				log.Printf("[Engine] WARN: edge from %s not persisted: %v", role, err)
			}
		}
	}
}

// runAnalysis runs the bounded analysis loop. Each round every analyst
// scores its assigned elements against the rubric and casts a consensus
// vote; the loop exits early only on a unanimous vote among active
// analysts.
func (e *Engine) runAnalysis(ctx context.Context, s *session) error {
	maxRounds := *e.cfg.Session.MaxAnalysisRounds
	active := len(e.personas.Active())
	s.state.CurrentIteration = 0

	for round := 1; round <= maxRounds; round++ {
		if e.checkInterrupt(ctx, s) {
			return nil
		}
		s.state.CurrentIteration = round

		tail := e.blackboardTail(ctx, s)
		results := e.fanOut(ctx, func(a persona.Analyst) agent.Request {
			return agent.AnalysisRequest(a, s.ps, e.renderAssignments(s, a.Role), tail, round, maxRounds)
		})

		votes := 0
		for _, r := range results {
			if r.err != nil {
				e.recordFailure(ctx, s, r)
				continue
			}
			resp := agent.DecodeAnalysis(r.raw)
			e.applyObservations(ctx, s, r.analyst.Role, resp.Observations)
			if resp.Consensus {
				votes++
			}
			if resp.Note != "" {
				e.appendLog(ctx, s, r.analyst.Role, "analysis_note", resp.Note, 0)
			}
		}

		s.state.ConsensusVotes = votes
		if err := e.saveState(ctx, s); err != nil {
			return err
		}
		if s.state.Status.Interrupted() {
			return nil
		}
		e.publishEvent(ctx, s, "round_complete", map[string]string{
			"votes": fmt.Sprintf("%d/%d", votes, active),
			"cells": fmt.Sprintf("%d", s.tesseract.Len()),
		})
		e.logEvent("analysis_round_complete", map[string]interface{}{
			"session_id": s.id,
			"round":      round,
			"votes":      votes,
			"active":     active,
		})

		if votes == active {
			log.Printf("[Engine] Unanimous consensus after round %d", round)
			return nil
		}
	}
	return nil
}

// applyObservations upserts an analyst's observations into the matrix,
// enriching each cell with labels from the problem shape.
func (e *Engine) applyObservations(ctx context.Context, s *session, role string, observations []agent.Observation) {
	for _, o := range observations {
		cell := &blackboard.ObservationCell{
			ElementID:   o.ElementID,
			Step:        o.Step,
			Polarity:    o.Polarity,
			Criticality: o.Criticality,
			Evidence:    o.Evidence,
			StepLabel:   s.ps.StepLabel(o.Step),
		}
		if el, ok := s.ps.Element(o.ElementID); ok {
			cell.ElementIndex = el.Index
			cell.ElementLabel = el.Label
		}
		if _, err := s.tesseract.UpsertCell(ctx, cell, role); err != nil {
			log.Printf("[Engine] WARN: observation from %s rejected: %v", role, err)
		}
	}
}

// blackboardTail renders the most recent log entries as prompt context.
func (e *Engine) blackboardTail(ctx context.Context, s *session) string {
	entries, err := e.client.TailLogEntries(ctx, s.id, blackboardTailSize)
	if err != nil {
		log.Printf("[Engine] WARN: failed to read blackboard tail: %v", err)
		return ""
	}

	var b strings.Builder
	for _, entry := range entries {
		fmt.Fprintf(&b, "  [%s/%s] %s\n", entry.AgentRole, entry.EntryType, entry.Content)
	}
	return b.String()
}
