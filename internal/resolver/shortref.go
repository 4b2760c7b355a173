// Package resolver maps agent-supplied node references to full node IDs.
//
// Analysts address graph nodes by short reference: the first characters of
// the node's UUID. Short references keep agent output compact and cut down
// transcription errors, but they must be resolved against the live node set
// before any edge insert: an agent-supplied full ID is never trusted
// without this step.
package resolver

import (
	"errors"
	"fmt"
	"strings"
)

// ShortRefLength is the canonical display length for node references.
const ShortRefLength = 8

// MinRefLength is the minimum accepted prefix length on input.
// Set to 4 characters to balance tolerance of sloppy agent output with
// collision avoidance.
const MinRefLength = 4

// ShortRef returns the canonical short reference for a full node ID.
func ShortRef(nodeID string) string {
	if len(nodeID) <= ShortRefLength {
		return nodeID
	}
	return nodeID[:ShortRefLength]
}

// Resolve maps a node reference (full UUID or prefix) to a full node ID
// drawn from nodeIDs. Returns the full ID if exactly one match is found.
//
// The function handles three cases:
//  1. ref is a full UUID (36 chars, 4 hyphens): verified for membership
//  2. ref is too short (< MinRefLength after trimming): validation error
//  3. ref is a prefix: scanned for matches, unique result required
//
// Zero matches yield a *NotFoundError, multiple matches a *AmbiguousError.
// Resolve never panics; it is a pure function over its inputs.
func Resolve(nodeIDs []string, ref string) (string, error) {
	ref = strings.TrimSpace(strings.ToLower(ref))

	// Full UUID passes through once membership is confirmed
	if len(ref) == 36 && strings.Count(ref, "-") == 4 {
		for _, id := range nodeIDs {
			if strings.EqualFold(id, ref) {
				return id, nil
			}
		}
		return "", &NotFoundError{Ref: ref}
	}

	if len(ref) < MinRefLength {
		return "", fmt.Errorf("node reference must be at least %d characters (got %d)", MinRefLength, len(ref))
	}

	var matches []string
	for _, id := range nodeIDs {
		if strings.HasPrefix(strings.ToLower(id), ref) {
			matches = append(matches, id)
		}
	}

	switch len(matches) {
	case 0:
		return "", &NotFoundError{Ref: ref}
	case 1:
		return matches[0], nil
	default:
		return "", &AmbiguousError{Ref: ref, Matches: matches}
	}
}

// NotFoundError indicates no node matched the reference.
type NotFoundError struct {
	Ref string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no nodes found matching '%s'", e.Ref)
}

// AmbiguousError indicates multiple nodes matched the reference.
type AmbiguousError struct {
	Ref     string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous node reference '%s' matches %d nodes", e.Ref, len(e.Matches))
}

// IsNotFoundError checks if an error is (or wraps) a NotFoundError.
func IsNotFoundError(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsAmbiguousError checks if an error is (or wraps) an AmbiguousError.
func IsAmbiguousError(err error) bool {
	var target *AmbiguousError
	return errors.As(err, &target)
}
