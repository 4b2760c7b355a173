package orchestrator

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/dyluth/moot/internal/agent"
	"github.com/dyluth/moot/internal/persona"
	"github.com/dyluth/moot/internal/resolver"
)

// runAssignment runs the single assignment round: each analyst selects the
// nodes it wants to analyze, then the engine reconciles so that every node
// ends up with at least one owner.
func (e *Engine) runAssignment(ctx context.Context, s *session) error {
	if e.checkInterrupt(ctx, s) {
		return nil
	}

	snapshot := s.graph.Snapshot()
	results := e.fanOut(ctx, func(a persona.Analyst) agent.Request {
		return agent.AssignmentRequest(a, s.ps, snapshot)
	})

	selections := make(map[string][]string, len(results))
	for _, r := range results {
		if r.err != nil {
			e.recordFailure(ctx, s, r)
			continue
		}
		resp := agent.DecodeAssignment(r.raw)
		selections[r.analyst.Role] = e.resolveSelections(s, r.analyst.Role, resp.SelectedNodeIDs)
	}

	s.assignments = reconcile(e.personas.Active(), s.graph.NodeIDs(), selections)

	for role, nodeIDs := range s.assignments {
		refs := make([]string, len(nodeIDs))
		for i, id := range nodeIDs {
			refs[i] = resolver.ShortRef(id)
		}
		e.appendLog(ctx, s, role, "assignment", strings.Join(refs, ", "), 0)
	}
	e.publishEvent(ctx, s, "round_complete", map[string]string{
		"nodes": fmt.Sprintf("%d", s.graph.Len()),
	})
	e.logEvent("assignment_complete", map[string]interface{}{
		"session_id": s.id,
		"analysts":   len(s.assignments),
		"nodes":      s.graph.Len(),
	})
	return nil
}

// resolveSelections maps an analyst's node references to full IDs, dropping
// anything unresolvable, and deduplicates.
func (e *Engine) resolveSelections(s *session, role string, refs []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, ref := range refs {
		id, err := s.graph.Resolve(ref)
		if err != nil {
			log.Printf("[Engine] Dropped selection %q from %s: %v", ref, role, err)
			continue
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// reconcile produces the final node ownership map in two passes:
// every analyst's own selections are honored verbatim, then each node
// selected by nobody goes to whichever analyst currently owns the fewest
// nodes, ties broken by analyst order. Every node ends up with an owner.
func reconcile(analysts []persona.Analyst, nodeIDs []string, selections map[string][]string) map[string][]string {
	assignments := make(map[string][]string, len(analysts))
	if len(analysts) == 0 {
		return assignments
	}
	owned := make(map[string]bool)

	for _, a := range analysts {
		for _, id := range selections[a.Role] {
			assignments[a.Role] = append(assignments[a.Role], id)
			owned[id] = true
		}
	}

	for _, id := range nodeIDs {
		if owned[id] {
			continue
		}
		leastLoaded := ""
		for _, a := range analysts {
			if leastLoaded == "" || len(assignments[a.Role]) < len(assignments[leastLoaded]) {
				leastLoaded = a.Role
			}
		}
		assignments[leastLoaded] = append(assignments[leastLoaded], id)
	}

	return assignments
}

// renderAssignments produces the analysis-prompt text for one analyst: its
// assigned nodes with the dataset elements each node traces to.
func (e *Engine) renderAssignments(s *session, role string) string {
	var b strings.Builder
	for _, nodeID := range s.assignments[role] {
		node, ok := s.graph.Node(nodeID)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "Node [%s] %s", resolver.ShortRef(node.ID), node.Label)
		if node.Description != "" {
			b.WriteString(": " + node.Description)
		}
		b.WriteString("\n")
		for _, elementID := range node.SourceElementIDs {
			if el, ok := s.ps.Element(elementID); ok {
				fmt.Fprintf(&b, "  element %s: %s\n", el.ID, el.Label)
				if el.Content != "" {
					fmt.Fprintf(&b, "    %s\n", el.Content)
				}
			}
		}
	}
	if b.Len() == 0 {
		// An analyst with no traceable elements still reviews the whole of
		// dataset1 so its consensus vote stays meaningful.
		b.WriteString("No nodes traced to specific elements; review all dataset 1 elements:\n")
		for _, el := range s.ps.Dataset1.Elements {
			fmt.Fprintf(&b, "  element %s: %s\n", el.ID, el.Label)
		}
	}
	return b.String()
}
