package blackboard

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Serialization helpers for converting between Go structs and Redis hashes
//
// Redis stores data as string-to-string maps (hashes). Complex fields like
// arrays are JSON-encoded into single hash fields. This keeps individual
// scalar fields queryable while still supporting structured data.

// NodeToHash converts a GraphNode to Redis hash format.
// The source_element_ids array is JSON-encoded.
func NodeToHash(n *GraphNode) (map[string]interface{}, error) {
	sourceIDsJSON, err := json.Marshal(n.SourceElementIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal source_element_ids: %w", err)
	}

	hash := map[string]interface{}{
		"id":                 n.ID,
		"label":              n.Label,
		"description":        n.Description,
		"node_type":          n.NodeType,
		"source_dataset":     n.SourceDataset,
		"source_element_ids": string(sourceIDsJSON),
		"created_by":         n.CreatedBy,
		"created_at_ms":      n.CreatedAtMs,
	}

	return hash, nil
}

// HashToNode converts a Redis hash to a GraphNode.
func HashToNode(hash map[string]string) (*GraphNode, error) {
	var sourceIDs []string
	if raw := hash["source_element_ids"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &sourceIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal source_element_ids: %w", err)
		}
	}

	// Empty slice instead of nil for consistency
	if sourceIDs == nil {
		sourceIDs = []string{}
	}

	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	node := &GraphNode{
		ID:               hash["id"],
		Label:            hash["label"],
		Description:      hash["description"],
		NodeType:         hash["node_type"],
		SourceDataset:    hash["source_dataset"],
		SourceElementIDs: sourceIDs,
		CreatedBy:        hash["created_by"],
		CreatedAtMs:      createdAtMs,
	}

	return node, nil
}

// EdgeToHash converts a GraphEdge to Redis hash format.
func EdgeToHash(e *GraphEdge) map[string]interface{} {
	return map[string]interface{}{
		"id":             e.ID,
		"source_node_id": e.SourceNodeID,
		"target_node_id": e.TargetNodeID,
		"edge_type":      e.EdgeType,
		"label":          e.Label,
		"created_by":     e.CreatedBy,
		"created_at_ms":  e.CreatedAtMs,
	}
}

// HashToEdge converts a Redis hash to a GraphEdge.
func HashToEdge(hash map[string]string) *GraphEdge {
	createdAtMs, _ := strconv.ParseInt(hash["created_at_ms"], 10, 64)

	return &GraphEdge{
		ID:           hash["id"],
		SourceNodeID: hash["source_node_id"],
		TargetNodeID: hash["target_node_id"],
		EdgeType:     hash["edge_type"],
		Label:        hash["label"],
		CreatedBy:    hash["created_by"],
		CreatedAtMs:  createdAtMs,
	}
}

// StateToHash converts a SessionState to Redis hash format.
func StateToHash(s *SessionState) map[string]interface{} {
	return map[string]interface{}{
		"session_id":           s.SessionID,
		"phase":                string(s.Phase),
		"current_iteration":    s.CurrentIteration,
		"status":               string(s.Status),
		"consensus_votes":      s.ConsensusVotes,
		"graph_complete_votes": s.GraphCompleteVotes,
		"edge_failures":        s.EdgeFailures,
		"updated_at_ms":        s.UpdatedAtMs,
	}
}

// HashToState converts a Redis hash to a SessionState.
func HashToState(hash map[string]string) (*SessionState, error) {
	currentIteration, err := strconv.Atoi(hash["current_iteration"])
	if err != nil {
		return nil, fmt.Errorf("invalid current_iteration field: %w", err)
	}

	consensusVotes, _ := strconv.Atoi(hash["consensus_votes"])
	graphCompleteVotes, _ := strconv.Atoi(hash["graph_complete_votes"])
	edgeFailures, _ := strconv.Atoi(hash["edge_failures"])
	updatedAtMs, _ := strconv.ParseInt(hash["updated_at_ms"], 10, 64)

	state := &SessionState{
		SessionID:          hash["session_id"],
		Phase:              Phase(hash["phase"]),
		CurrentIteration:   currentIteration,
		Status:             SessionStatus(hash["status"]),
		ConsensusVotes:     consensusVotes,
		GraphCompleteVotes: graphCompleteVotes,
		EdgeFailures:       edgeFailures,
		UpdatedAtMs:        updatedAtMs,
	}

	return state, nil
}
