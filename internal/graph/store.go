// Package graph implements the shared knowledge graph built collectively by
// the analysts. The store is the engine's in-memory working copy; every
// accepted mutation is mirrored durably through a Persister so other
// processes (moot graph, moot watch) can read the same graph from Redis.
//
// Nodes are deduplicated case-insensitively by label. Edges are only
// accepted when both endpoint references resolve against the current node
// set. Nothing is ever deleted.
package graph

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dyluth/moot/internal/resolver"
	"github.com/dyluth/moot/pkg/blackboard"
	"github.com/google/uuid"
)

// Persister mirrors accepted graph mutations into durable storage.
// Implemented by *blackboard.Client.
type Persister interface {
	PutNode(ctx context.Context, sessionID string, n *blackboard.GraphNode) error
	PutEdge(ctx context.Context, sessionID string, e *blackboard.GraphEdge) error
}

// Store holds the in-memory graph for one session.
// The engine is the only writer and applies mutations sequentially, so the
// store carries no locking.
type Store struct {
	sessionID string
	persister Persister

	nodes     map[string]*blackboard.GraphNode // node ID → node
	nodeOrder []string                         // insertion order for deterministic listing
	labels    map[string]string                // normalized label → node ID
	edges     []*blackboard.GraphEdge
}

// NewStore creates an empty graph store for a session.
// persister may be nil, in which case mutations stay in memory (tests).
func NewStore(sessionID string, persister Persister) *Store {
	return &Store{
		sessionID: sessionID,
		persister: persister,
		nodes:     make(map[string]*blackboard.GraphNode),
		labels:    make(map[string]string),
	}
}

// UpsertNode inserts a node unless its label is already taken
// (case-insensitive). On a label collision the existing node is returned
// unchanged with created=false; the proposal is not merged. A persistence
// failure is returned alongside the accepted node so the caller can count
// the failed write without re-rolling the in-memory state.
func (s *Store) UpsertNode(ctx context.Context, label, description, nodeType, sourceDataset string, sourceElementIDs []string, createdBy string) (*blackboard.GraphNode, bool, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return nil, false, fmt.Errorf("node label cannot be empty")
	}

	if existingID, ok := s.labels[blackboard.NormalizeLabel(label)]; ok {
		return s.nodes[existingID], false, nil
	}

	if nodeType == "" {
		nodeType = "concept"
	}

	node := &blackboard.GraphNode{
		ID:               uuid.New().String(),
		Label:            label,
		Description:      description,
		NodeType:         nodeType,
		SourceDataset:    sourceDataset,
		SourceElementIDs: append([]string{}, sourceElementIDs...),
		CreatedBy:        createdBy,
		CreatedAtMs:      time.Now().UnixMilli(),
	}

	s.nodes[node.ID] = node
	s.nodeOrder = append(s.nodeOrder, node.ID)
	s.labels[blackboard.NormalizeLabel(label)] = node.ID

	if s.persister != nil {
		if err := s.persister.PutNode(ctx, s.sessionID, node); err != nil {
			return node, true, fmt.Errorf("failed to persist node %s: %w", resolver.ShortRef(node.ID), err)
		}
	}

	return node, true, nil
}

// InsertEdge resolves both endpoint references against the current node set
// and inserts the edge. An unresolvable or ambiguous reference returns the
// resolver's typed error; the caller logs and counts it, the round
// continues, and nothing is stored.
func (s *Store) InsertEdge(ctx context.Context, sourceRef, targetRef, edgeType, label, createdBy string) (*blackboard.GraphEdge, error) {
	ids := s.NodeIDs()

	sourceID, err := resolver.Resolve(ids, sourceRef)
	if err != nil {
		return nil, fmt.Errorf("source reference: %w", err)
	}

	targetID, err := resolver.Resolve(ids, targetRef)
	if err != nil {
		return nil, fmt.Errorf("target reference: %w", err)
	}

	if edgeType == "" {
		edgeType = "relates_to"
	}

	edge := &blackboard.GraphEdge{
		ID:           uuid.New().String(),
		SourceNodeID: sourceID,
		TargetNodeID: targetID,
		EdgeType:     edgeType,
		Label:        label,
		CreatedBy:    createdBy,
		CreatedAtMs:  time.Now().UnixMilli(),
	}

	s.edges = append(s.edges, edge)

	if s.persister != nil {
		if err := s.persister.PutEdge(ctx, s.sessionID, edge); err != nil {
			return edge, fmt.Errorf("failed to persist edge %s: %w", resolver.ShortRef(edge.ID), err)
		}
	}

	return edge, nil
}

// Node returns the node with the given full ID.
func (s *Store) Node(nodeID string) (*blackboard.GraphNode, bool) {
	n, ok := s.nodes[nodeID]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (s *Store) Nodes() []*blackboard.GraphNode {
	out := make([]*blackboard.GraphNode, 0, len(s.nodeOrder))
	for _, id := range s.nodeOrder {
		out = append(out, s.nodes[id])
	}
	return out
}

// NodeIDs returns all node IDs in insertion order.
func (s *Store) NodeIDs() []string {
	out := make([]string, len(s.nodeOrder))
	copy(out, s.nodeOrder)
	return out
}

// Edges returns all edges in insertion order.
func (s *Store) Edges() []*blackboard.GraphEdge {
	out := make([]*blackboard.GraphEdge, len(s.edges))
	copy(out, s.edges)
	return out
}

// Len returns the node count.
func (s *Store) Len() int {
	return len(s.nodes)
}

// Resolve maps a node reference to a full node ID using the current node set.
func (s *Store) Resolve(ref string) (string, error) {
	return resolver.Resolve(s.NodeIDs(), ref)
}

// Snapshot renders the agent-facing view of the graph: short references,
// labels, and typed edges. Analysts see this text at the top of every
// graph-building and assignment prompt.
func (s *Store) Snapshot() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Nodes (%d):\n", len(s.nodeOrder)))
	for _, id := range s.nodeOrder {
		n := s.nodes[id]
		b.WriteString(fmt.Sprintf("  [%s] %s (%s, by %s)", resolver.ShortRef(n.ID), n.Label, n.NodeType, n.CreatedBy))
		if n.Description != "" {
			b.WriteString(": " + n.Description)
		}
		b.WriteString("\n")
	}

	b.WriteString(fmt.Sprintf("Edges (%d):\n", len(s.edges)))
	for _, e := range s.edges {
		b.WriteString(fmt.Sprintf("  [%s] -%s-> [%s]\n",
			resolver.ShortRef(e.SourceNodeID), e.EdgeType, resolver.ShortRef(e.TargetNodeID)))
	}

	return b.String()
}
