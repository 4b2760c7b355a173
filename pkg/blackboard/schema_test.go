package blackboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyPatterns(t *testing.T) {
	assert.Equal(t, "moot:dev:session:s1:node:n1", NodeKey("dev", "s1", "n1"))
	assert.Equal(t, "moot:dev:session:s1:node_ids", NodeIndexKey("dev", "s1"))
	assert.Equal(t, "moot:dev:session:s1:node_labels", NodeLabelIndexKey("dev", "s1"))
	assert.Equal(t, "moot:dev:session:s1:edge:e1", EdgeKey("dev", "s1", "e1"))
	assert.Equal(t, "moot:dev:session:s1:edge_ids", EdgeIndexKey("dev", "s1"))
	assert.Equal(t, "moot:dev:session:s1:observations", ObservationsKey("dev", "s1"))
	assert.Equal(t, "moot:dev:session:s1:log", LogKey("dev", "s1"))
	assert.Equal(t, "moot:dev:session:s1:state", SessionStateKey("dev", "s1"))
	assert.Equal(t, "moot:dev:phase_events", PhaseEventsChannel("dev"))
}

func TestObservationField(t *testing.T) {
	assert.Equal(t, "REQ-1|5", ObservationField("REQ-1", 5))
}

func TestNormalizeLabel(t *testing.T) {
	assert.Equal(t, "authentication", NormalizeLabel("  Authentication "))
	assert.Equal(t, NormalizeLabel("ERROR Handling"), NormalizeLabel("error handling"))
}
