package blackboard

import "fmt"

// Redis key pattern helpers
//
// All Redis keys and Pub/Sub channels are namespaced by instance name so that
// multiple Moot instances can safely coexist on a single Redis server. Keys
// are further scoped by session, since one instance may hold many sessions.
//
// Key pattern: moot:{instance_name}:session:{session_id}:{entity}...
// Channel pattern: moot:{instance_name}:{event_type}_events

// NodeKey returns the Redis key for a graph node hash.
// Pattern: moot:{instance}:session:{session_id}:node:{node_id}
func NodeKey(instanceName, sessionID, nodeID string) string {
	return fmt.Sprintf("moot:%s:session:%s:node:%s", instanceName, sessionID, nodeID)
}

// NodeIndexKey returns the Redis key for the set of all node IDs in a session.
// Pattern: moot:{instance}:session:{session_id}:node_ids
func NodeIndexKey(instanceName, sessionID string) string {
	return fmt.Sprintf("moot:%s:session:%s:node_ids", instanceName, sessionID)
}

// NodeLabelIndexKey returns the Redis key for the label dedup index hash.
// Fields are lowercased trimmed labels, values are node IDs. This is the
// durable side of case-insensitive node deduplication.
// Pattern: moot:{instance}:session:{session_id}:node_labels
func NodeLabelIndexKey(instanceName, sessionID string) string {
	return fmt.Sprintf("moot:%s:session:%s:node_labels", instanceName, sessionID)
}

// EdgeKey returns the Redis key for a graph edge hash.
// Pattern: moot:{instance}:session:{session_id}:edge:{edge_id}
func EdgeKey(instanceName, sessionID, edgeID string) string {
	return fmt.Sprintf("moot:%s:session:%s:edge:%s", instanceName, sessionID, edgeID)
}

// EdgeIndexKey returns the Redis key for the list of all edge IDs in a session.
// A list preserves insertion order for display.
// Pattern: moot:{instance}:session:{session_id}:edge_ids
func EdgeIndexKey(instanceName, sessionID string) string {
	return fmt.Sprintf("moot:%s:session:%s:edge_ids", instanceName, sessionID)
}

// ObservationsKey returns the Redis key for the observation cells hash.
// Fields follow ObservationField; values are JSON-encoded cells. Storing all
// cells in one hash gives HSET the exact upsert semantics the tesseract needs.
// Pattern: moot:{instance}:session:{session_id}:observations
func ObservationsKey(instanceName, sessionID string) string {
	return fmt.Sprintf("moot:%s:session:%s:observations", instanceName, sessionID)
}

// ObservationField returns the hash field for one (element, step) cell.
// Pattern: {element_id}|{step}
func ObservationField(elementID string, step int) string {
	return fmt.Sprintf("%s|%d", elementID, step)
}

// LogKey returns the Redis key for the append-only analyst log list.
// Pattern: moot:{instance}:session:{session_id}:log
func LogKey(instanceName, sessionID string) string {
	return fmt.Sprintf("moot:%s:session:%s:log", instanceName, sessionID)
}

// SessionStateKey returns the Redis key for the session state hash.
// Pattern: moot:{instance}:session:{session_id}:state
func SessionStateKey(instanceName, sessionID string) string {
	return fmt.Sprintf("moot:%s:session:%s:state", instanceName, sessionID)
}

// PhaseEventsChannel returns the Pub/Sub channel name for phase events.
// The channel carries phase transitions and round completions for real-time
// monitoring (moot watch).
// Pattern: moot:{instance_name}:phase_events
func PhaseEventsChannel(instanceName string) string {
	return fmt.Sprintf("moot:%s:phase_events", instanceName)
}
