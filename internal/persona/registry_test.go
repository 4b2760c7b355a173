package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistry_Defaults(t *testing.T) {
	reg, err := NewRegistry(nil)
	require.NoError(t, err)

	active := reg.Active()
	require.Len(t, active, 5)

	// Deterministic order
	assert.Equal(t, "architect", active[0].Role)
	assert.Equal(t, "user_advocate", active[4].Role)

	for _, a := range active {
		assert.NotEmpty(t, a.Name, "role %s", a.Role)
		assert.NotEmpty(t, a.Instructions, "role %s", a.Role)
	}
}

func TestNewRegistry_Overrides(t *testing.T) {
	disabled := false
	reg, err := NewRegistry(map[string]Override{
		"skeptic":   {Enabled: &disabled},
		"architect": {Name: "Ada", Instructions: "Focus on boundaries."},
	})
	require.NoError(t, err)

	active := reg.Active()
	require.Len(t, active, 4)
	for _, a := range active {
		assert.NotEqual(t, "skeptic", a.Role)
	}

	architect, ok := reg.Get("architect")
	require.True(t, ok)
	assert.Equal(t, "Ada", architect.Name)
	assert.Equal(t, "Focus on boundaries.", architect.Instructions)

	// Disabled analysts remain addressable
	skeptic, ok := reg.Get("skeptic")
	require.True(t, ok)
	assert.False(t, skeptic.Enabled)
}

func TestNewRegistry_UnknownRoleRejected(t *testing.T) {
	_, err := NewRegistry(map[string]Override{"optimist": {}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown analyst role")
}

func TestNewRegistry_PartialOverrideKeepsDefaults(t *testing.T) {
	reg, err := NewRegistry(map[string]Override{"domain_expert": {Name: "Dr. Fields"}})
	require.NoError(t, err)

	a, _ := reg.Get("domain_expert")
	assert.Equal(t, "Dr. Fields", a.Name)
	assert.NotEmpty(t, a.Instructions)
	assert.True(t, a.Enabled)
}
