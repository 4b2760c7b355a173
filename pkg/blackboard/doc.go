// Package blackboard provides type-safe Go definitions and Redis schema patterns
// for the Moot blackboard. The blackboard is the shared state system where all
// Moot components (engine, CLI, watchers) interact via well-defined data
// structures stored in Redis: knowledge graph nodes and edges, observation
// cells, the append-only analyst log, and per-session state.
//
// All Redis keys and channels are namespaced by instance name so that multiple
// Moot instances can safely coexist on a single Redis server.
package blackboard
