package blackboard

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func validNode() *GraphNode {
	return &GraphNode{
		ID:               uuid.New().String(),
		Label:            "Authentication",
		Description:      "Login and session handling",
		NodeType:         "concept",
		SourceDataset:    "dataset1",
		SourceElementIDs: []string{"REQ-1"},
		CreatedBy:        "architect",
		CreatedAtMs:      1700000000000,
	}
}

func TestGraphNode_Validate(t *testing.T) {
	t.Run("valid node passes", func(t *testing.T) {
		assert.NoError(t, validNode().Validate())
	})

	t.Run("rejects non-UUID ID", func(t *testing.T) {
		n := validNode()
		n.ID = "not-a-uuid"
		assert.ErrorContains(t, n.Validate(), "invalid node ID")
	})

	t.Run("rejects blank label", func(t *testing.T) {
		n := validNode()
		n.Label = "   "
		assert.ErrorContains(t, n.Validate(), "label cannot be empty")
	})

	t.Run("rejects empty node type", func(t *testing.T) {
		n := validNode()
		n.NodeType = ""
		assert.ErrorContains(t, n.Validate(), "node type")
	})

	t.Run("rejects empty created_by", func(t *testing.T) {
		n := validNode()
		n.CreatedBy = ""
		assert.ErrorContains(t, n.Validate(), "created_by")
	})
}

func TestGraphEdge_Validate(t *testing.T) {
	valid := func() *GraphEdge {
		return &GraphEdge{
			ID:           uuid.New().String(),
			SourceNodeID: uuid.New().String(),
			TargetNodeID: uuid.New().String(),
			EdgeType:     "depends_on",
			Label:        "needs",
			CreatedBy:    "integrator",
		}
	}

	t.Run("valid edge passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("rejects unresolved short reference as endpoint", func(t *testing.T) {
		e := valid()
		e.SourceNodeID = "ab12cd34"
		assert.ErrorContains(t, e.Validate(), "invalid source node ID")
	})

	t.Run("rejects empty edge type", func(t *testing.T) {
		e := valid()
		e.EdgeType = ""
		assert.ErrorContains(t, e.Validate(), "edge type")
	})
}

func TestObservationCell_Validate(t *testing.T) {
	valid := func() *ObservationCell {
		return &ObservationCell{
			ElementID:    "REQ-1",
			Step:         2,
			ElementIndex: 0,
			ElementLabel: "Login",
			StepLabel:    "completeness",
			Polarity:     0.5,
			Criticality:  -0.2,
		}
	}

	t.Run("valid cell passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("rejects polarity out of range", func(t *testing.T) {
		c := valid()
		c.Polarity = 1.2
		assert.ErrorContains(t, c.Validate(), "polarity")

		c.Polarity = -1.2
		assert.ErrorContains(t, c.Validate(), "polarity")
	})

	t.Run("rejects step below 1", func(t *testing.T) {
		c := valid()
		c.Step = 0
		assert.ErrorContains(t, c.Validate(), "step")
	})

	t.Run("rejects empty element ID", func(t *testing.T) {
		c := valid()
		c.ElementID = ""
		assert.ErrorContains(t, c.Validate(), "element ID")
	})
}

func TestObservationCell_Key(t *testing.T) {
	c := &ObservationCell{ElementID: "REQ-7", Step: 3}
	assert.Equal(t, "REQ-7|3", c.Key())
}

func TestLogEntry_Validate(t *testing.T) {
	valid := func() *LogEntry {
		return &LogEntry{
			ID:         uuid.New().String(),
			AgentRole:  "skeptic",
			EntryType:  "observation",
			Content:    "coverage looks thin",
			Iteration:  1,
			Confidence: 0.7,
		}
	}

	t.Run("valid entry passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("rejects confidence out of range", func(t *testing.T) {
		l := valid()
		l.Confidence = 1.5
		assert.ErrorContains(t, l.Validate(), "confidence")
	})

	t.Run("rejects empty role and type", func(t *testing.T) {
		l := valid()
		l.AgentRole = ""
		assert.Error(t, l.Validate())

		l = valid()
		l.EntryType = ""
		assert.Error(t, l.Validate())
	})
}

func TestSessionState_Validate(t *testing.T) {
	valid := func() *SessionState {
		return &SessionState{
			SessionID:        "sess-1",
			Phase:            PhaseConference,
			CurrentIteration: 0,
			Status:           SessionStatusRunning,
		}
	}

	t.Run("valid state passes", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("rejects unknown phase", func(t *testing.T) {
		s := valid()
		s.Phase = "warmup"
		assert.ErrorContains(t, s.Validate(), "phase")
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		s := valid()
		s.Status = "crashed"
		assert.ErrorContains(t, s.Validate(), "status")
	})
}

func TestSessionStatus_Interrupted(t *testing.T) {
	assert.True(t, SessionStatusPaused.Interrupted())
	assert.True(t, SessionStatusStopped.Interrupted())
	assert.False(t, SessionStatusRunning.Interrupted())
	assert.False(t, SessionStatusCompleted.Interrupted())
	assert.False(t, SessionStatusMaxIterations.Interrupted())
}

func TestPhase_Validate(t *testing.T) {
	for _, p := range []Phase{PhaseConference, PhaseGraphBuilding, PhaseAssignment, PhaseAnalysis, PhaseCompleted} {
		assert.NoError(t, p.Validate(), "phase %s should be valid", p)
	}
	assert.Error(t, Phase("retrospective").Validate())
}
