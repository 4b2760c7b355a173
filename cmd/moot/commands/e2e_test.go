//go:build integration

package commands

import (
	"context"
	"testing"
	"time"

	"github.com/dyluth/moot/internal/agent"
	"github.com/dyluth/moot/internal/config"
	"github.com/dyluth/moot/internal/orchestrator"
	"github.com/dyluth/moot/internal/testutil"
	"github.com/dyluth/moot/pkg/blackboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestE2E_FullSession drives a complete session against a real Redis
// container with a real subprocess agent command.
func TestE2E_FullSession(t *testing.T) {
	env := testutil.SetupEnvironment(t)
	ctx, cancel := context.WithTimeout(env.Ctx, 2*time.Minute)
	defer cancel()

	datasetPath := env.WriteDataset("dataset1.json", `["User login", "Password reset", "Data export"]`)
	scriptPath := env.WriteAgentScript(testutil.PhaseRoutingAgentScript())

	cfg := &config.MootConfig{
		Version:  "1.0",
		Instance: env.InstanceName,
		Redis:    config.RedisConfig{Addr: env.RedisAddr},
		Datasets: config.DatasetsConfig{
			Dataset1: config.DatasetConfig{Type: "jsonfile", Path: datasetPath},
			Dataset2: config.DatasetConfig{Type: "live_system", Summary: "the implemented system"},
		},
		Agent: config.AgentConfig{Command: []string{scriptPath}},
	}
	cfg.ApplyDefaults()

	generator, err := agent.NewCommandGenerator(cfg.Agent.Command, 30*time.Second)
	require.NoError(t, err)

	engine, err := orchestrator.NewEngine(env.Client, cfg, generator)
	require.NoError(t, err)

	summary, err := engine.Run(ctx, "e2e-session")
	require.NoError(t, err)

	assert.True(t, summary.Success)
	assert.True(t, summary.ConsensusReached)
	assert.Equal(t, blackboard.SessionStatusCompleted, summary.Status)
	require.NotNil(t, summary.Report)
	require.NotEmpty(t, summary.Report.Findings)

	// Everything the engine built must be readable out-of-process.
	nodes, err := env.Client.ListNodes(ctx, "e2e-session")
	require.NoError(t, err)
	assert.NotEmpty(t, nodes)

	cells, err := env.Client.ListObservations(ctx, "e2e-session")
	require.NoError(t, err)
	assert.NotEmpty(t, cells)

	state, err := env.Client.GetSessionState(ctx, "e2e-session")
	require.NoError(t, err)
	assert.Equal(t, blackboard.SessionStatusCompleted, state.Status)
}

// TestE2E_StopInterrupt verifies the external stop control against a real
// Redis: a stop written mid-session is honored at a round boundary with
// committed state intact.
func TestE2E_StopInterrupt(t *testing.T) {
	env := testutil.SetupEnvironment(t)
	ctx, cancel := context.WithTimeout(env.Ctx, 2*time.Minute)
	defer cancel()

	datasetPath := env.WriteDataset("dataset1.json", `["User login"]`)
	// A slow agent, so the stop lands while the conference round is still
	// in flight.
	scriptPath := env.WriteAgentScript(`#!/bin/sh
cat > /dev/null
sleep 2
echo '{"proposedNodes": [{"label": "Authentication"}]}'
`)

	cfg := &config.MootConfig{
		Version:  "1.0",
		Instance: env.InstanceName,
		Redis:    config.RedisConfig{Addr: env.RedisAddr},
		Datasets: config.DatasetsConfig{
			Dataset1: config.DatasetConfig{Type: "jsonfile", Path: datasetPath},
			Dataset2: config.DatasetConfig{Type: "live_system", Summary: "the implemented system"},
		},
		Agent: config.AgentConfig{Command: []string{scriptPath}},
	}
	cfg.ApplyDefaults()

	generator, err := agent.NewCommandGenerator(cfg.Agent.Command, 30*time.Second)
	require.NoError(t, err)
	engine, err := orchestrator.NewEngine(env.Client, cfg, generator)
	require.NoError(t, err)

	// Seed the session state, start the engine, then flip the status to
	// stopped as soon as the state record appears.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 100; i++ {
			state, err := env.Client.GetSessionState(ctx, "e2e-stop")
			if err == nil {
				state.Status = blackboard.SessionStatusStopped
				if env.Client.PutSessionState(ctx, state) == nil {
					return
				}
			}
			time.Sleep(50 * time.Millisecond)
		}
	}()

	summary, err := engine.Run(ctx, "e2e-stop")
	<-done
	require.NoError(t, err, "a stop is a clean exit, not an error")
	assert.False(t, summary.Success)
	assert.Equal(t, blackboard.SessionStatusStopped, summary.Status)
}
