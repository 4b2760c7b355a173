package agent

import (
	"strconv"
	"strings"

	"github.com/dyluth/moot/internal/parse"
)

// NodeProposal is one node suggested by an analyst.
type NodeProposal struct {
	Label            string
	Description      string
	NodeType         string
	SourceDataset    string
	SourceElementIDs []string
}

// EdgeProposal is one edge suggested by an analyst; Source and Target are
// node references (full IDs or short prefixes).
type EdgeProposal struct {
	Source   string
	Target   string
	EdgeType string
	Label    string
}

// Observation is one (element, step) judgment from an analysis round.
type Observation struct {
	ElementID   string
	Step        int
	Polarity    float64
	Criticality float64
	Evidence    string
}

// ConferenceResponse is the conference round's decoded payload.
type ConferenceResponse struct {
	ProposedNodes []NodeProposal
	Reasoning     string
}

// GraphBuildResponse is a graph-building round's decoded payload.
type GraphBuildResponse struct {
	ProposedNodes []NodeProposal
	ProposedEdges []EdgeProposal
	GraphComplete bool
	Reasoning     string
}

// AssignmentResponse is the assignment round's decoded payload.
type AssignmentResponse struct {
	SelectedNodeIDs []string
	Reasoning       string
}

// AnalysisResponse is an analysis round's decoded payload.
type AnalysisResponse struct {
	Observations []Observation
	Consensus    bool
	Note         string
	Reasoning    string
}

// DecodeConference extracts a conference response from raw model text.
// Decoding is best-effort: missing or malformed fields decode to their zero
// values rather than failing, so one bad field never discards a whole
// response.
func DecodeConference(raw string) *ConferenceResponse {
	obj := parse.ExtractOrDefault(raw, map[string]interface{}{})
	return &ConferenceResponse{
		ProposedNodes: decodeNodeProposals(obj["proposedNodes"]),
		Reasoning:     asString(obj["reasoning"]),
	}
}

// DecodeGraphBuild extracts a graph-building response from raw model text.
func DecodeGraphBuild(raw string) *GraphBuildResponse {
	obj := parse.ExtractOrDefault(raw, map[string]interface{}{})
	return &GraphBuildResponse{
		ProposedNodes: decodeNodeProposals(obj["proposedNodes"]),
		ProposedEdges: decodeEdgeProposals(obj["proposedEdges"]),
		GraphComplete: asBool(obj["graphComplete"]),
		Reasoning:     asString(obj["reasoning"]),
	}
}

// DecodeAssignment extracts an assignment response from raw model text.
func DecodeAssignment(raw string) *AssignmentResponse {
	obj := parse.ExtractOrDefault(raw, map[string]interface{}{})
	return &AssignmentResponse{
		SelectedNodeIDs: asStringSlice(obj["selectedNodeIds"]),
		Reasoning:       asString(obj["reasoning"]),
	}
}

// DecodeAnalysis extracts an analysis response from raw model text.
func DecodeAnalysis(raw string) *AnalysisResponse {
	obj := parse.ExtractOrDefault(raw, map[string]interface{}{})
	return &AnalysisResponse{
		Observations: decodeObservations(obj["observations"]),
		Consensus:    asBool(obj["consensus"]),
		Note:         asString(obj["note"]),
		Reasoning:    asString(obj["reasoning"]),
	}
}

func decodeNodeProposals(value interface{}) []NodeProposal {
	var out []NodeProposal
	for _, item := range asObjectSlice(value) {
		p := NodeProposal{
			Label:            asString(item["label"]),
			Description:      asString(item["description"]),
			NodeType:         asString(item["nodeType"]),
			SourceDataset:    asString(item["sourceDataset"]),
			SourceElementIDs: asStringSlice(item["sourceElementIds"]),
		}
		if strings.TrimSpace(p.Label) == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func decodeEdgeProposals(value interface{}) []EdgeProposal {
	var out []EdgeProposal
	for _, item := range asObjectSlice(value) {
		p := EdgeProposal{
			Source:   asString(item["source"]),
			Target:   asString(item["target"]),
			EdgeType: asString(item["edgeType"]),
			Label:    asString(item["label"]),
		}
		if p.Source == "" || p.Target == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func decodeObservations(value interface{}) []Observation {
	var out []Observation
	for _, item := range asObjectSlice(value) {
		o := Observation{
			ElementID:   asString(item["elementId"]),
			Step:        asInt(item["step"]),
			Polarity:    clamp(asFloat(item["polarity"]), -1, 1),
			Criticality: clamp(asFloat(item["criticality"]), -1, 1),
			Evidence:    asString(item["evidence"]),
		}
		if o.ElementID == "" || o.Step < 1 {
			continue
		}
		out = append(out, o)
	}
	return out
}

func asString(value interface{}) string {
	s, _ := value.(string)
	return s
}

func asBool(value interface{}) bool {
	switch v := value.(type) {
	case bool:
		return v
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(strings.ToLower(v)))
		return err == nil && b
	default:
		return false
	}
}

func asFloat(value interface{}) float64 {
	switch v := value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asInt(value interface{}) int {
	return int(asFloat(value))
}

func asStringSlice(value interface{}) []string {
	items, ok := value.([]interface{})
	if !ok {
		// A single bare string counts as a one-element selection.
		if s := asString(value); s != "" {
			return []string{s}
		}
		return nil
	}
	var out []string
	for _, item := range items {
		if s := asString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func asObjectSlice(value interface{}) []map[string]interface{} {
	items, ok := value.([]interface{})
	if !ok {
		return nil
	}
	var out []map[string]interface{}
	for _, item := range items {
		if obj, ok := item.(map[string]interface{}); ok {
			out = append(out, obj)
		}
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
