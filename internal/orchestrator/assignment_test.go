package orchestrator

import (
	"testing"

	"github.com/dyluth/moot/internal/persona"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analysts(roles ...string) []persona.Analyst {
	out := make([]persona.Analyst, len(roles))
	for i, r := range roles {
		out[i] = persona.Analyst{Role: r, Name: r, Enabled: true}
	}
	return out
}

func TestReconcile(t *testing.T) {
	t.Run("self-selections are honored verbatim", func(t *testing.T) {
		got := reconcile(
			analysts("architect", "skeptic"),
			[]string{"n1", "n2"},
			map[string][]string{
				"architect": {"n1", "n2"},
				"skeptic":   {"n2"},
			},
		)

		assert.Equal(t, []string{"n1", "n2"}, got["architect"])
		assert.Equal(t, []string{"n2"}, got["skeptic"], "overlapping selections are kept for both analysts")
	})

	t.Run("orphan nodes go to the least-loaded analyst", func(t *testing.T) {
		got := reconcile(
			analysts("architect", "skeptic"),
			[]string{"n1", "n2", "n3"},
			map[string][]string{
				"architect": {"n1", "n2"},
			},
		)

		assert.Equal(t, []string{"n3"}, got["skeptic"])
	})

	t.Run("ties break by analyst order", func(t *testing.T) {
		got := reconcile(
			analysts("architect", "skeptic", "integrator"),
			[]string{"n1", "n2", "n3"},
			map[string][]string{},
		)

		assert.Equal(t, []string{"n1"}, got["architect"])
		assert.Equal(t, []string{"n2"}, got["skeptic"])
		assert.Equal(t, []string{"n3"}, got["integrator"])
	})

	t.Run("every node has at least one owner", func(t *testing.T) {
		nodeIDs := []string{"n1", "n2", "n3", "n4", "n5"}
		got := reconcile(
			analysts("architect", "skeptic"),
			nodeIDs,
			map[string][]string{"skeptic": {"n4"}},
		)

		owned := make(map[string]bool)
		for _, ids := range got {
			for _, id := range ids {
				owned[id] = true
			}
		}
		for _, id := range nodeIDs {
			assert.True(t, owned[id], "node %s must have an owner", id)
		}
	})

	t.Run("no analysts yields no assignments", func(t *testing.T) {
		got := reconcile(nil, []string{"n1"}, nil)
		require.Empty(t, got)
	})
}
