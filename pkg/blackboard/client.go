package blackboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the blackboard.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple
// goroutines, though the engine deliberately applies round mutations
// sequentially.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new blackboard client for the specified instance.
//
// Parameters:
//   - redisOpts: Redis connection options (address, password, DB, etc.)
//   - instanceName: Moot instance identifier (must not be empty)
//
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PutNode writes a graph node to Redis and records it in the session's node
// and label indexes. Validates the node before writing.
//
// Label dedup happens in the engine's in-memory graph store; the label index
// written here is the durable mirror that lets a fresh process rebuild the
// dedup table. Writing the same node twice is safe.
func (c *Client) PutNode(ctx context.Context, sessionID string, n *GraphNode) error {
	if err := n.Validate(); err != nil {
		return fmt.Errorf("invalid node: %w", err)
	}

	hash, err := NodeToHash(n)
	if err != nil {
		return fmt.Errorf("failed to serialize node: %w", err)
	}

	key := NodeKey(c.instanceName, sessionID, n.ID)
	if err := c.rdb.HSet(ctx, key, hash).Err(); err != nil {
		return fmt.Errorf("failed to write node to Redis: %w", err)
	}

	if err := c.rdb.SAdd(ctx, NodeIndexKey(c.instanceName, sessionID), n.ID).Err(); err != nil {
		return fmt.Errorf("failed to index node: %w", err)
	}

	labelField := NormalizeLabel(n.Label)
	if err := c.rdb.HSet(ctx, NodeLabelIndexKey(c.instanceName, sessionID), labelField, n.ID).Err(); err != nil {
		return fmt.Errorf("failed to index node label: %w", err)
	}

	return nil
}

// GetNode retrieves a graph node by ID.
// Returns (nil, redis.Nil) if the node doesn't exist; use IsNotFound to check.
func (c *Client) GetNode(ctx context.Context, sessionID, nodeID string) (*GraphNode, error) {
	key := NodeKey(c.instanceName, sessionID, nodeID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read node from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	node, err := HashToNode(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize node: %w", err)
	}

	return node, nil
}

// LookupLabel resolves a node label (case-insensitive) to a node ID.
// Returns ("", redis.Nil) if no node carries the label.
func (c *Client) LookupLabel(ctx context.Context, sessionID, label string) (string, error) {
	nodeID, err := c.rdb.HGet(ctx, NodeLabelIndexKey(c.instanceName, sessionID), NormalizeLabel(label)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", redis.Nil
		}
		return "", fmt.Errorf("failed to look up node label: %w", err)
	}
	return nodeID, nil
}

// ListNodes retrieves all graph nodes for a session, ordered by creation
// time then label for deterministic output.
func (c *Client) ListNodes(ctx context.Context, sessionID string) ([]*GraphNode, error) {
	ids, err := c.rdb.SMembers(ctx, NodeIndexKey(c.instanceName, sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list node IDs: %w", err)
	}

	nodes := make([]*GraphNode, 0, len(ids))
	for _, id := range ids {
		node, err := c.GetNode(ctx, sessionID, id)
		if err != nil {
			if IsNotFound(err) {
				continue // Index entry without a hash; skip rather than fail the listing
			}
			return nil, err
		}
		nodes = append(nodes, node)
	}

	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].CreatedAtMs != nodes[j].CreatedAtMs {
			return nodes[i].CreatedAtMs < nodes[j].CreatedAtMs
		}
		return nodes[i].Label < nodes[j].Label
	})

	return nodes, nil
}

// PutEdge writes a graph edge to Redis. Validates the edge before writing.
// Both endpoints must already be full UUIDs; reference resolution is the
// engine's job and happens before this call.
func (c *Client) PutEdge(ctx context.Context, sessionID string, e *GraphEdge) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid edge: %w", err)
	}

	key := EdgeKey(c.instanceName, sessionID, e.ID)
	if err := c.rdb.HSet(ctx, key, EdgeToHash(e)).Err(); err != nil {
		return fmt.Errorf("failed to write edge to Redis: %w", err)
	}

	if err := c.rdb.RPush(ctx, EdgeIndexKey(c.instanceName, sessionID), e.ID).Err(); err != nil {
		return fmt.Errorf("failed to index edge: %w", err)
	}

	return nil
}

// ListEdges retrieves all graph edges for a session in insertion order.
func (c *Client) ListEdges(ctx context.Context, sessionID string) ([]*GraphEdge, error) {
	ids, err := c.rdb.LRange(ctx, EdgeIndexKey(c.instanceName, sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list edge IDs: %w", err)
	}

	edges := make([]*GraphEdge, 0, len(ids))
	for _, id := range ids {
		hashData, err := c.rdb.HGetAll(ctx, EdgeKey(c.instanceName, sessionID, id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to read edge from Redis: %w", err)
		}
		if len(hashData) == 0 {
			continue
		}
		edges = append(edges, HashToEdge(hashData))
	}

	return edges, nil
}

// UpsertObservation writes an observation cell, overwriting any existing cell
// for the same (element, step) key. HSET gives exactly the upsert semantics
// the tesseract requires: the hash always reflects the most recent aggregate
// judgment per key.
func (c *Client) UpsertObservation(ctx context.Context, sessionID string, cell *ObservationCell) error {
	if err := cell.Validate(); err != nil {
		return fmt.Errorf("invalid observation cell: %w", err)
	}

	cellJSON, err := json.Marshal(cell)
	if err != nil {
		return fmt.Errorf("failed to marshal observation cell: %w", err)
	}

	key := ObservationsKey(c.instanceName, sessionID)
	if err := c.rdb.HSet(ctx, key, cell.Key(), string(cellJSON)).Err(); err != nil {
		return fmt.Errorf("failed to write observation cell to Redis: %w", err)
	}

	return nil
}

// ListObservations retrieves all observation cells for a session, ordered by
// element index then step.
func (c *Client) ListObservations(ctx context.Context, sessionID string) ([]*ObservationCell, error) {
	raw, err := c.rdb.HGetAll(ctx, ObservationsKey(c.instanceName, sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read observation cells: %w", err)
	}

	cells := make([]*ObservationCell, 0, len(raw))
	for field, cellJSON := range raw {
		var cell ObservationCell
		if err := json.Unmarshal([]byte(cellJSON), &cell); err != nil {
			return nil, fmt.Errorf("failed to unmarshal observation cell %q: %w", field, err)
		}
		cells = append(cells, &cell)
	}

	sort.Slice(cells, func(i, j int) bool {
		if cells[i].ElementIndex != cells[j].ElementIndex {
			return cells[i].ElementIndex < cells[j].ElementIndex
		}
		if cells[i].ElementID != cells[j].ElementID {
			return cells[i].ElementID < cells[j].ElementID
		}
		return cells[i].Step < cells[j].Step
	})

	return cells, nil
}

// AppendLogEntry appends an entry to the session's analyst log.
// The log is append-only; entries are never mutated or deleted.
func (c *Client) AppendLogEntry(ctx context.Context, sessionID string, entry *LogEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("invalid log entry: %w", err)
	}

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal log entry: %w", err)
	}

	if err := c.rdb.RPush(ctx, LogKey(c.instanceName, sessionID), string(entryJSON)).Err(); err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}

	return nil
}

// TailLogEntries retrieves the most recent limit entries from the analyst log
// in chronological order. limit <= 0 retrieves the full log.
func (c *Client) TailLogEntries(ctx context.Context, sessionID string, limit int) ([]*LogEntry, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	raw, err := c.rdb.LRange(ctx, LogKey(c.instanceName, sessionID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read log entries: %w", err)
	}

	entries := make([]*LogEntry, 0, len(raw))
	for _, entryJSON := range raw {
		var entry LogEntry
		if err := json.Unmarshal([]byte(entryJSON), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal log entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	return entries, nil
}

// PutSessionState writes the session state (full replacement).
func (c *Client) PutSessionState(ctx context.Context, state *SessionState) error {
	if err := state.Validate(); err != nil {
		return fmt.Errorf("invalid session state: %w", err)
	}

	key := SessionStateKey(c.instanceName, state.SessionID)
	if err := c.rdb.HSet(ctx, key, StateToHash(state)).Err(); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}

	return nil
}

// GetSessionState retrieves the state for a session.
// Returns (nil, redis.Nil) if the session doesn't exist.
func (c *Client) GetSessionState(ctx context.Context, sessionID string) (*SessionState, error) {
	key := SessionStateKey(c.instanceName, sessionID)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session state: %w", err)
	}

	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	state, err := HashToState(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize session state: %w", err)
	}

	return state, nil
}

// PublishPhaseEvent publishes a phase event for external observers.
// Delivery is fire-and-forget at the engine level: the engine logs publish
// failures and never fails a round on them.
func (c *Client) PublishPhaseEvent(ctx context.Context, event *PhaseEvent) error {
	eventJSON, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal phase event: %w", err)
	}

	channel := PhaseEventsChannel(c.instanceName)
	if err := c.rdb.Publish(ctx, channel, eventJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish phase event: %w", err)
	}

	return nil
}

// PhaseSubscription represents an active Pub/Sub subscription to phase events.
// Caller must call Close() when done to clean up resources.
type PhaseSubscription struct {
	events <-chan *PhaseEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of phase events.
// The channel is closed when the subscription is closed or the context is
// cancelled.
func (s *PhaseSubscription) Events() <-chan *PhaseEvent {
	return s.events
}

// Errors returns the channel of subscription errors. Errors are non-fatal:
// the subscription continues and the offending message is skipped.
func (s *PhaseSubscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements io.Closer.
// Safe to call multiple times.
func (s *PhaseSubscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribePhaseEvents subscribes to phase events for this instance.
// Caller must call subscription.Close() when done. Context cancellation also
// stops the subscription.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// Redis Pub/Sub is at-most-once: a slow subscriber may miss events.
func (c *Client) SubscribePhaseEvents(ctx context.Context) (*PhaseSubscription, error) {
	channel := PhaseEventsChannel(c.instanceName)
	pubsub := c.rdb.Subscribe(ctx, channel)

	eventsChan := make(chan *PhaseEvent, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var event PhaseEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal phase event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &event:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &PhaseSubscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// NormalizeLabel lowercases and trims a node label for dedup comparison.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

// IsNotFound returns true if the error is a Redis "key not found" error
// (redis.Nil). Use this to check GetNode, GetSessionState, or LookupLabel
// "not found" results.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
