package agent

import (
	"fmt"
	"strings"

	"github.com/dyluth/moot/internal/persona"
	"github.com/dyluth/moot/internal/shape"
)

// Phase names carried on requests so command-based agents can route on them.
const (
	PhaseConference    = "conference"
	PhaseGraphBuilding = "graph_building"
	PhaseAssignment    = "assignment"
	PhaseAnalysis      = "analysis"
)

const conferenceSchemaHint = `{"proposedNodes": [{"label": "...", "description": "...", "nodeType": "concept", "sourceDataset": "dataset1", "sourceElementIds": ["e1"]}], "reasoning": "..."}`

const graphBuildSchemaHint = `{"proposedNodes": [...], "proposedEdges": [{"source": "<node ref>", "target": "<node ref>", "edgeType": "depends_on"}], "graphComplete": true, "reasoning": "..."}`

const assignmentSchemaHint = `{"selectedNodeIds": ["<node ref>", ...], "reasoning": "..."}`

const analysisSchemaHint = `{"observations": [{"elementId": "e1", "step": 1, "polarity": 0.5, "criticality": 0.0, "evidence": "..."}], "consensus": false, "note": "...", "reasoning": "..."}`

// ConferenceRequest builds the opening round's request: propose concept
// nodes from the analyst's perspective given the full problem shape.
func ConferenceRequest(a persona.Analyst, ps *shape.ProblemShape) Request {
	var b strings.Builder
	b.WriteString("We are reconciling two datasets into a shared knowledge graph.\n\n")
	b.WriteString(renderShape(ps))
	b.WriteString("\nPropose the concept nodes you consider essential from your perspective. ")
	b.WriteString("Each node needs a short unique label. Respond with JSON only.\n")

	return Request{
		Phase:        PhaseConference,
		Role:         a.Role,
		Round:        1,
		SystemPrompt: systemPrompt(a),
		UserPrompt:   b.String(),
		SchemaHint:   conferenceSchemaHint,
	}
}

// GraphBuildRequest builds a graph-building round's request: extend the
// current graph with nodes and edges, and vote on completeness.
func GraphBuildRequest(a persona.Analyst, ps *shape.ProblemShape, graphSnapshot string, round, maxRounds int) Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Graph building round %d of %d.\n\n", round, maxRounds)
	b.WriteString(renderShape(ps))
	b.WriteString("\nCurrent graph:\n")
	b.WriteString(graphSnapshot)
	b.WriteString("\nPropose any missing nodes and edges. Reference existing nodes by the short id shown in brackets. ")
	b.WriteString("Set graphComplete to true if the graph already captures the problem adequately. Respond with JSON only.\n")

	return Request{
		Phase:        PhaseGraphBuilding,
		Role:         a.Role,
		Round:        round,
		SystemPrompt: systemPrompt(a),
		UserPrompt:   b.String(),
		SchemaHint:   graphBuildSchemaHint,
	}
}

// AssignmentRequest builds the assignment round's request: pick the nodes
// this analyst wants to own for analysis.
func AssignmentRequest(a persona.Analyst, ps *shape.ProblemShape, graphSnapshot string) Request {
	var b strings.Builder
	b.WriteString("The graph is final. Select the nodes you are best placed to analyze.\n\n")
	b.WriteString(renderShape(ps))
	b.WriteString("\nFinal graph:\n")
	b.WriteString(graphSnapshot)
	b.WriteString("\nList the node ids (short ids are fine) you select. Respond with JSON only.\n")

	return Request{
		Phase:        PhaseAssignment,
		Role:         a.Role,
		Round:        1,
		SystemPrompt: systemPrompt(a),
		UserPrompt:   b.String(),
		SchemaHint:   assignmentSchemaHint,
	}
}

// AnalysisRequest builds an analysis round's request: score the analyst's
// assigned elements against the rubric, with recent blackboard context from
// the other analysts.
func AnalysisRequest(a persona.Analyst, ps *shape.ProblemShape, assignedElements string, blackboardTail string, round, maxRounds int) Request {
	var b strings.Builder
	fmt.Fprintf(&b, "Analysis round %d of %d.\n\n", round, maxRounds)
	b.WriteString(renderShape(ps))
	b.WriteString("\nYour assigned elements:\n")
	b.WriteString(assignedElements)
	if blackboardTail != "" {
		b.WriteString("\nRecent notes from the other analysts:\n")
		b.WriteString(blackboardTail)
	}
	b.WriteString("\nScore each assigned element against each analysis step. ")
	b.WriteString("Polarity runs from -1 (present only in the first dataset) to 1 (fully aligned across both). ")
	b.WriteString("Criticality runs from -1 (severe problem) to 1 (no concern). ")
	b.WriteString("Set consensus to true only if you believe the analysis is complete and correct as it stands. Respond with JSON only.\n")

	return Request{
		Phase:        PhaseAnalysis,
		Role:         a.Role,
		Round:        round,
		SystemPrompt: systemPrompt(a),
		UserPrompt:   b.String(),
		SchemaHint:   analysisSchemaHint,
	}
}

func systemPrompt(a persona.Analyst) string {
	return fmt.Sprintf("You are %s, one analyst on a multi-perspective review panel.\n%s", a.Name, a.Instructions)
}

func renderShape(ps *shape.ProblemShape) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dataset 1 (%s, %d elements):\n", ps.Dataset1.Type, ps.Dataset1.Count)
	for _, el := range ps.Dataset1.Elements {
		fmt.Fprintf(&b, "  %s: %s\n", el.ID, el.Label)
	}
	fmt.Fprintf(&b, "Dataset 2 (%s): %s\n", ps.Dataset2.Type, ps.Dataset2.Summary)

	b.WriteString("Analysis steps:\n")
	for _, s := range ps.Steps {
		fmt.Fprintf(&b, "  %d. %s\n", s.Number, s.Label)
	}

	return b.String()
}
