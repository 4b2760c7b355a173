package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/moot/internal/agent"
	"github.com/dyluth/moot/internal/config"
	"github.com/dyluth/moot/internal/graph"
	"github.com/dyluth/moot/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig builds a config with a real three-element dataset1 and only
// two analysts enabled, to keep scripted fan-outs small.
func testConfig(t *testing.T, redisAddr string) *config.MootConfig {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dataset1.json")
	require.NoError(t, os.WriteFile(path, []byte(`["Login","Billing","Export"]`), 0o644))

	disabled := false
	cfg := &config.MootConfig{
		Version: "1.0",
		Redis:   config.RedisConfig{Addr: redisAddr},
		Datasets: config.DatasetsConfig{
			Dataset1: config.DatasetConfig{Type: "jsonfile", Path: path},
			Dataset2: config.DatasetConfig{Type: "live_system", Summary: "the implemented system"},
		},
		Agent: config.AgentConfig{Command: []string{"true"}},
		Analysts: map[string]config.Analyst{
			"domain_expert": {Enabled: &disabled},
			"integrator":    {Enabled: &disabled},
			"user_advocate": {Enabled: &disabled},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func setupEngine(t *testing.T, cfg *config.MootConfig, gen agent.Generator) (*Engine, *blackboard.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	cfg.Redis.Addr = mr.Addr()

	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, cfg.Instance)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	engine, err := NewEngine(client, cfg, gen)
	require.NoError(t, err)
	return engine, client
}

func TestNewEngine(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, mr.Addr())
	client, err := blackboard.NewClient(&redis.Options{Addr: mr.Addr()}, "test")
	require.NoError(t, err)
	defer client.Close()

	t.Run("rejects missing collaborators", func(t *testing.T) {
		_, err := NewEngine(nil, cfg, &agent.ScriptedGenerator{})
		assert.Error(t, err)
		_, err = NewEngine(client, nil, &agent.ScriptedGenerator{})
		assert.Error(t, err)
		_, err = NewEngine(client, cfg, nil)
		assert.Error(t, err)
	})

	t.Run("rejects a config disabling every analyst", func(t *testing.T) {
		disabled := false
		bad := testConfig(t, mr.Addr())
		bad.Analysts["architect"] = config.Analyst{Enabled: &disabled}
		bad.Analysts["skeptic"] = config.Analyst{Enabled: &disabled}

		_, err := NewEngine(client, bad, &agent.ScriptedGenerator{})
		assert.Error(t, err)
	})

	t.Run("rejects an unknown analyst role", func(t *testing.T) {
		bad := testConfig(t, mr.Addr())
		bad.Analysts["mystery"] = config.Analyst{}

		_, err := NewEngine(client, bad, &agent.ScriptedGenerator{})
		assert.Error(t, err)
	})
}

func TestRunFullSession(t *testing.T) {
	ctx := context.Background()

	gen := &agent.ScriptedGenerator{Responses: map[string][]string{
		"conference/architect": {`{"proposedNodes": [{"label": "Login flow", "sourceElementIds": ["e1"]}]}`},
		"conference/skeptic":   {`{"proposedNodes": [{"label": "Billing", "sourceElementIds": ["e2"]}, {"label": "LOGIN FLOW"}]}`},

		"graph_building/architect": {`{"graphComplete": true}`},
		"graph_building/skeptic":   {`{"proposedNodes": [{"label": "Export", "sourceElementIds": ["e3"]}], "graphComplete": true}`},

		"assignment/architect": {`{"selectedNodeIds": []}`},
		"assignment/skeptic":   {`{"selectedNodeIds": []}`},

		"analysis/architect": {
			`{"observations": [{"elementId": "e1", "step": 1, "polarity": 0.9, "evidence": "implemented"}], "consensus": false}`,
			`{"observations": [{"elementId": "e2", "step": 1, "polarity": -0.8, "criticality": -0.8, "evidence": "missing"}], "consensus": true}`,
		},
		"analysis/skeptic": {
			`{"observations": [{"elementId": "e3", "step": 1, "polarity": 0.0}], "consensus": true, "note": "export is ambiguous"}`,
			`{"consensus": true}`,
		},
	}}

	engine, client := setupEngine(t, testConfig(t, ""), gen)

	summary, err := engine.Run(ctx, "session-1")
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.True(t, summary.ConsensusReached)
	assert.Equal(t, blackboard.SessionStatusCompleted, summary.Status)
	assert.Equal(t, blackboard.PhaseCompleted, summary.Phase)
	assert.Equal(t, 2, summary.Iterations, "consensus on the second analysis round")

	// Label dedup: "LOGIN FLOW" merged into "Login flow".
	nodes, err := client.ListNodes(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, nodes, 3)

	// Three observed elements, one per classification bucket.
	require.NotNil(t, summary.Report)
	assert.Len(t, summary.Report.Findings, 3)
	assert.Equal(t, 1, summary.Report.AlignedCount)
	assert.Equal(t, 1, summary.Report.UniqueToD1Count)
	assert.Equal(t, 1, summary.Report.UniqueToD2Count)
	assert.InDelta(t, 1.0/3.0, summary.Report.TotalD1Coverage, 1e-9)

	// Durable mirror matches the in-memory result.
	cells, err := client.ListObservations(ctx, "session-1")
	require.NoError(t, err)
	assert.Len(t, cells, 3)

	state, err := client.GetSessionState(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, blackboard.SessionStatusCompleted, state.Status)
	assert.Equal(t, 2, state.ConsensusVotes)
}

func TestRunStopsAtAnalysisCap(t *testing.T) {
	ctx := context.Background()

	gen := &agent.ScriptedGenerator{Responses: map[string][]string{
		"conference/architect": {`{"proposedNodes": [{"label": "Login"}]}`},
		"conference/skeptic":   {`{}`},

		"graph_building/architect": {`{"graphComplete": true}`},
		"graph_building/skeptic":   {`{"graphComplete": true}`},

		"assignment/architect": {`{}`},
		"assignment/skeptic":   {`{}`},

		// The skeptic never agrees.
		"analysis/architect": {`{"consensus": true}`, `{"consensus": true}`},
		"analysis/skeptic":   {`{"consensus": false}`, `{"consensus": false}`},
	}}

	cfg := testConfig(t, "")
	two := 2
	cfg.Session.MaxAnalysisRounds = &two
	engine, _ := setupEngine(t, cfg, gen)

	summary, err := engine.Run(ctx, "session-cap")
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.False(t, summary.ConsensusReached)
	assert.Equal(t, blackboard.SessionStatusMaxIterations, summary.Status)
	assert.Equal(t, 2, summary.Iterations)
	require.NotNil(t, summary.Report)
}

func TestRunToleratesAnalystFailures(t *testing.T) {
	ctx := context.Background()

	// The skeptic has no scripts at all: every call fails. The session must
	// still run to completion on the architect's results, with the skeptic
	// a permanent non-vote.
	gen := &agent.ScriptedGenerator{Responses: map[string][]string{
		"conference/architect":     {`{"proposedNodes": [{"label": "Login", "sourceElementIds": ["e1"]}]}`},
		"graph_building/architect": {`{"graphComplete": true}`, `{"graphComplete": true}`},
		"assignment/architect":     {`{}`},
		"analysis/architect":       {`{"observations": [{"elementId": "e1", "step": 1, "polarity": 0.9}], "consensus": true}`},
	}}

	cfg := testConfig(t, "")
	one := 1
	cfg.Session.MaxAnalysisRounds = &one
	engine, client := setupEngine(t, cfg, gen)

	summary, err := engine.Run(ctx, "session-fail")
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.False(t, summary.ConsensusReached, "a failed analyst counts against consensus")
	assert.Equal(t, blackboard.SessionStatusMaxIterations, summary.Status)
	require.NotNil(t, summary.Report)
	assert.Len(t, summary.Report.Findings, 1)

	// Failures are recorded on the blackboard.
	entries, err := client.TailLogEntries(ctx, "session-fail", 0)
	require.NoError(t, err)
	failures := 0
	for _, entry := range entries {
		if entry.EntryType == "call_failure" && entry.AgentRole == "skeptic" {
			failures++
		}
	}
	assert.Greater(t, failures, 0)
}

func TestGraphBuildingQuorumExitsEarly(t *testing.T) {
	ctx := context.Background()

	// All five default analysts vote complete in round 1: the phase must
	// exit immediately instead of running to the round cap.
	responses := map[string][]string{}
	for _, role := range []string{"architect", "domain_expert", "skeptic", "integrator", "user_advocate"} {
		responses["conference/"+role] = []string{`{"proposedNodes": [{"label": "Node ` + role + `"}]}`}
		responses["graph_building/"+role] = []string{`{"graphComplete": true}`}
		responses["assignment/"+role] = []string{`{}`}
		responses["analysis/"+role] = []string{`{"consensus": true}`}
	}
	gen := &agent.ScriptedGenerator{Responses: responses}

	cfg := testConfig(t, "")
	cfg.Analysts = nil // all five defaults enabled
	engine, _ := setupEngine(t, cfg, gen)

	summary, err := engine.Run(ctx, "session-quorum")
	require.NoError(t, err)
	require.True(t, summary.ConsensusReached)

	graphCalls := 0
	for _, req := range gen.Requests {
		if req.Phase == agent.PhaseGraphBuilding {
			graphCalls++
		}
	}
	assert.Equal(t, 5, graphCalls, "one graph-building round, not the three-round cap")
}

// interruptingGenerator flips the session status through the blackboard on
// its first call in the given phase, simulating an external `moot pause` or
// `moot stop` mid-round. Fan-out calls it concurrently, hence the once.
type interruptingGenerator struct {
	inner     agent.Generator
	client    *blackboard.Client
	sessionID string
	phase     string
	status    blackboard.SessionStatus
	once      sync.Once
	mu        sync.Mutex
}

func (g *interruptingGenerator) GenerateStructured(ctx context.Context, req agent.Request) (string, error) {
	g.mu.Lock()
	out, err := g.inner.GenerateStructured(ctx, req)
	g.mu.Unlock()

	if req.Phase == g.phase {
		g.once.Do(func() {
			state, gerr := g.client.GetSessionState(ctx, g.sessionID)
			if gerr == nil {
				state.Status = g.status
				_ = g.client.PutSessionState(ctx, state)
			}
		})
	}
	return out, err
}

func TestRunExitsOnExternalPause(t *testing.T) {
	ctx := context.Background()

	scripted := &agent.ScriptedGenerator{Responses: map[string][]string{
		"conference/architect": {`{"proposedNodes": [{"label": "Login"}]}`},
		"conference/skeptic":   {`{}`},
	}}

	cfg := testConfig(t, "")
	engine, client := setupEngine(t, cfg, scripted)
	engine.generator = &interruptingGenerator{
		inner:     scripted,
		client:    client,
		sessionID: "session-pause",
		phase:     agent.PhaseConference,
		status:    blackboard.SessionStatusPaused,
	}

	summary, err := engine.Run(ctx, "session-pause")
	require.NoError(t, err, "an interrupt is a clean exit, not an error")

	assert.False(t, summary.Success)
	assert.Equal(t, blackboard.SessionStatusPaused, summary.Status)
	assert.Equal(t, blackboard.PhaseConference, summary.Phase, "paused before the next phase began")
	assert.Nil(t, summary.Report)

	// Committed conference state survives the interrupt.
	nodes, err := client.ListNodes(ctx, "session-pause")
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestRunExitsOnPauseDuringGraphBuilding(t *testing.T) {
	ctx := context.Background()

	// Nobody ever votes complete, so without the pause the phase would run
	// all three rounds. The pause lands mid-round 1; the round-end state
	// save must keep it rather than write running over it.
	scripted := &agent.ScriptedGenerator{Responses: map[string][]string{
		"conference/architect": {`{"proposedNodes": [{"label": "Login"}]}`},
		"conference/skeptic":   {`{}`},

		"graph_building/architect": {`{"graphComplete": false}`, `{"graphComplete": false}`, `{"graphComplete": false}`},
		"graph_building/skeptic":   {`{"graphComplete": false}`, `{"graphComplete": false}`, `{"graphComplete": false}`},
	}}

	cfg := testConfig(t, "")
	engine, client := setupEngine(t, cfg, scripted)
	engine.generator = &interruptingGenerator{
		inner:     scripted,
		client:    client,
		sessionID: "session-graph-pause",
		phase:     agent.PhaseGraphBuilding,
		status:    blackboard.SessionStatusPaused,
	}

	summary, err := engine.Run(ctx, "session-graph-pause")
	require.NoError(t, err)

	assert.False(t, summary.Success)
	assert.Equal(t, blackboard.SessionStatusPaused, summary.Status)
	assert.Equal(t, blackboard.PhaseGraphBuilding, summary.Phase)
	assert.Equal(t, 1, summary.Iterations, "paused after the first round")

	graphCalls := 0
	for _, req := range scripted.Requests {
		if req.Phase == agent.PhaseGraphBuilding {
			graphCalls++
		}
	}
	assert.Equal(t, 2, graphCalls, "no second round after the pause")

	state, err := client.GetSessionState(ctx, "session-graph-pause")
	require.NoError(t, err)
	assert.Equal(t, blackboard.SessionStatusPaused, state.Status)
}

func TestRunExitsOnStopDuringAnalysisRound(t *testing.T) {
	ctx := context.Background()

	// Nobody consents, so without the stop the session would run to the
	// round cap and finish with a max-iterations status.
	scripted := &agent.ScriptedGenerator{Responses: map[string][]string{
		"conference/architect": {`{"proposedNodes": [{"label": "Login", "sourceElementIds": ["e1"]}]}`},
		"conference/skeptic":   {`{}`},

		"graph_building/architect": {`{"graphComplete": true}`},
		"graph_building/skeptic":   {`{"graphComplete": true}`},

		"assignment/architect": {`{}`},
		"assignment/skeptic":   {`{}`},

		"analysis/architect": {`{"consensus": false}`, `{"consensus": false}`, `{"consensus": false}`},
		"analysis/skeptic":   {`{"consensus": false}`, `{"consensus": false}`, `{"consensus": false}`},
	}}

	cfg := testConfig(t, "")
	three := 3
	cfg.Session.MaxAnalysisRounds = &three
	engine, client := setupEngine(t, cfg, scripted)
	engine.generator = &interruptingGenerator{
		inner:     scripted,
		client:    client,
		sessionID: "session-stop",
		phase:     agent.PhaseAnalysis,
		status:    blackboard.SessionStatusStopped,
	}

	summary, err := engine.Run(ctx, "session-stop")
	require.NoError(t, err)

	assert.False(t, summary.Success)
	assert.Equal(t, blackboard.SessionStatusStopped, summary.Status)
	assert.Equal(t, blackboard.PhaseAnalysis, summary.Phase)
	assert.Equal(t, 1, summary.Iterations, "stopped after the first analysis round")

	analysisCalls := 0
	for _, req := range scripted.Requests {
		if req.Phase == agent.PhaseAnalysis {
			analysisCalls++
		}
	}
	assert.Equal(t, 2, analysisCalls, "no second round after the stop")

	state, err := client.GetSessionState(ctx, "session-stop")
	require.NoError(t, err)
	assert.Equal(t, blackboard.SessionStatusStopped, state.Status)
}

// edgeFailingPersister accepts nodes but refuses every edge write.
type edgeFailingPersister struct{}

func (edgeFailingPersister) PutNode(ctx context.Context, sessionID string, n *blackboard.GraphNode) error {
	return nil
}

func (edgeFailingPersister) PutEdge(ctx context.Context, sessionID string, e *blackboard.GraphEdge) error {
	return errors.New("redis write refused")
}

func TestEdgeFailuresCountsOnlyResolutionDrops(t *testing.T) {
	ctx := context.Background()

	engine, _ := setupEngine(t, testConfig(t, ""), &agent.ScriptedGenerator{})

	st := graph.NewStore("session-edges", edgeFailingPersister{})
	login, _, err := st.UpsertNode(ctx, "Login", "", "", "", nil, "architect")
	require.NoError(t, err)
	billing, _, err := st.UpsertNode(ctx, "Billing", "", "", "", nil, "architect")
	require.NoError(t, err)

	s := &session{id: "session-edges", graph: st, state: &blackboard.SessionState{}}

	engine.applyEdgeProposals(ctx, s, "architect", []agent.EdgeProposal{
		// Unresolvable target: a genuine drop, counted.
		{Source: login.ID, Target: "no-such-node", EdgeType: "relates_to"},
		// Resolves fine but the durable write fails: the edge stands in
		// memory and must not inflate the drop counter.
		{Source: login.ID, Target: billing.ID, EdgeType: "relates_to"},
	})

	assert.Equal(t, 1, s.state.EdgeFailures, "only the unresolvable edge is a drop")
	assert.Len(t, st.Edges(), 1, "the persist-failed edge is still applied in memory")
}
