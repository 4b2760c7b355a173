//go:build integration

// Package testutil provides the shared environment for integration tests:
// a real Redis container, a connected blackboard client, and a scaffolded
// project directory with a scriptable agent command.
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	dockerclient "github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/dyluth/moot/pkg/blackboard"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Environment is an isolated integration test environment.
type Environment struct {
	T            *testing.T
	Ctx          context.Context
	TmpDir       string
	InstanceName string
	RedisAddr    string
	Client       *blackboard.Client

	container testcontainers.Container
}

// SetupEnvironment starts a Redis container, verifies it through the Docker
// API, connects a blackboard client, and moves the test into a temp project
// directory. Everything is cleaned up with the test.
func SetupEnvironment(t *testing.T) *Environment {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort(nat.Port("6379/tcp")),
	}
	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() {
		if err := redisC.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)
	addr := fmt.Sprintf("%s:%s", host, port.Port())

	verifyContainerRunning(t, ctx, redisC.GetContainerID())

	instanceName := fmt.Sprintf("test-%s", time.Now().Format("20060102-150405-000000"))
	client, err := blackboard.NewClient(&redis.Options{Addr: addr}, instanceName)
	require.NoError(t, err, "Failed to create blackboard client")
	t.Cleanup(func() { client.Close() })
	require.NoError(t, client.Ping(ctx), "Redis did not answer PING")

	tmpDir := t.TempDir()
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tmpDir))
	t.Cleanup(func() { os.Chdir(origDir) })

	return &Environment{
		T:            t,
		Ctx:          ctx,
		TmpDir:       tmpDir,
		InstanceName: instanceName,
		RedisAddr:    addr,
		Client:       client,
		container:    redisC,
	}
}

// verifyContainerRunning inspects the container directly through the Docker
// API, catching environments where testcontainers reports ready but the
// daemon disagrees.
func verifyContainerRunning(t *testing.T, ctx context.Context, containerID string) {
	t.Helper()

	cli, err := dockerclient.NewClientWithOpts(dockerclient.FromEnv, dockerclient.WithAPIVersionNegotiation())
	require.NoError(t, err, "Failed to create Docker client")
	defer cli.Close()

	info, err := cli.ContainerInspect(ctx, containerID)
	require.NoError(t, err, "Failed to inspect Redis container")
	require.True(t, info.State.Running, "Redis container is not running")
}

// WriteDataset writes a dataset element file into the project directory and
// returns its path.
func (env *Environment) WriteDataset(name string, content string) string {
	env.T.Helper()
	require.NoError(env.T, os.MkdirAll(filepath.Join(env.TmpDir, "datasets"), 0o755))
	path := filepath.Join(env.TmpDir, "datasets", name)
	require.NoError(env.T, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// WriteAgentScript writes an executable agent command into the project
// directory and returns its path. The script receives the request JSON on
// stdin, like a production agent command.
func (env *Environment) WriteAgentScript(script string) string {
	env.T.Helper()
	path := filepath.Join(env.TmpDir, "agent.sh")
	require.NoError(env.T, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// PhaseRoutingAgentScript returns an agent script that answers each phase
// with a fixed well-formed response, enough to drive a session end to end.
func PhaseRoutingAgentScript() string {
	return `#!/bin/sh
input=$(cat)
case "$input" in
  *'"phase":"conference"'*)
    echo '{"proposedNodes": [{"label": "Authentication", "sourceElementIds": ["e1"]}]}' ;;
  *'"phase":"graph_building"'*)
    echo '{"graphComplete": true}' ;;
  *'"phase":"assignment"'*)
    echo '{"selectedNodeIds": []}' ;;
  *)
    echo '{"observations": [{"elementId": "e1", "step": 1, "polarity": 0.9, "evidence": "present"}], "consensus": true}' ;;
esac
`
}
