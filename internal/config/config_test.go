package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `version: "1.0"
redis:
  addr: localhost:6379
datasets:
  dataset1:
    type: jsonfile
    path: requirements.json
  dataset2:
    type: jsonfile
    path: implementation.json
agent:
  command: ["./analyst.sh"]
`

func TestParse_MinimalConfigGetsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, DefaultInstanceName, cfg.Instance)
	assert.Equal(t, DefaultMaxGraphRounds, *cfg.Session.MaxGraphRounds)
	assert.Equal(t, DefaultMaxAnalysisRounds, *cfg.Session.MaxAnalysisRounds)
	assert.Equal(t, DefaultGraphQuorum, *cfg.Session.GraphQuorum)
	assert.Equal(t, DefaultAgentTimeoutSecs, *cfg.Agent.TimeoutSeconds)
}

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(`version: "1.0"
instance: demo
redis:
  addr: redis.internal:6379
session:
  max_graph_rounds: 5
  max_analysis_rounds: 2
  graph_quorum: 0.75
datasets:
  dataset1:
    type: yamlfile
    path: reqs.yml
  dataset2:
    type: jsonfile
    path: impl.json
    summary: "450 Go source files"
agent:
  command: ["python3", "analyst.py"]
  timeout_seconds: 30
analysts:
  skeptic:
    enabled: false
  architect:
    name: Systems Architect
    instructions: "Focus on boundaries."
`))
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Instance)
	assert.Equal(t, 5, *cfg.Session.MaxGraphRounds)
	assert.Equal(t, 0.75, *cfg.Session.GraphQuorum)
	assert.Equal(t, "450 Go source files", cfg.Datasets.Dataset2.Summary)
	assert.Equal(t, []string{"python3", "analyst.py"}, cfg.Agent.Command)

	require.Contains(t, cfg.Analysts, "skeptic")
	assert.False(t, *cfg.Analysts["skeptic"].Enabled)
	assert.Equal(t, "Systems Architect", cfg.Analysts["architect"].Name)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MootConfig)
		wantErr string
	}{
		{"wrong version", func(c *MootConfig) { c.Version = "2.0" }, "unsupported version"},
		{"missing redis addr", func(c *MootConfig) { c.Redis.Addr = "" }, "redis.addr"},
		{"missing dataset1 type", func(c *MootConfig) { c.Datasets.Dataset1.Type = "" }, "dataset1.type"},
		{"missing dataset2 type", func(c *MootConfig) { c.Datasets.Dataset2.Type = "" }, "dataset2.type"},
		{"missing agent command", func(c *MootConfig) { c.Agent.Command = nil }, "agent.command"},
		{"zero graph rounds", func(c *MootConfig) {
			v := 0
			c.Session = &SessionConfig{MaxGraphRounds: &v}
		}, "max_graph_rounds"},
		{"quorum above 1", func(c *MootConfig) {
			v := 1.5
			c.Session = &SessionConfig{GraphQuorum: &v}
		}, "graph_quorum"},
		{"quorum zero", func(c *MootConfig) {
			v := 0.0
			c.Session = &SessionConfig{GraphQuorum: &v}
		}, "graph_quorum"},
		{"zero timeout", func(c *MootConfig) {
			v := 0
			c.Agent.TimeoutSeconds = &v
		}, "timeout_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(minimalYAML))
			require.NoError(t, err)

			tt.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "moot.yml")
	require.NoError(t, os.WriteFile(path, []byte(minimalYAML), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)

	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(dir, "absent.yml"))
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.yml")
		require.NoError(t, os.WriteFile(bad, []byte("version: [unclosed"), 0644))
		_, err := Load(bad)
		assert.Error(t, err)
	})
}
