package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the session block omits a value.
const (
	DefaultMaxGraphRounds    = 3
	DefaultMaxAnalysisRounds = 10
	DefaultGraphQuorum       = 0.6
	DefaultAgentTimeoutSecs  = 120
	DefaultInstanceName      = "default"
)

// MootConfig represents the top-level moot.yml configuration.
type MootConfig struct {
	Version  string             `yaml:"version"`
	Instance string             `yaml:"instance,omitempty"`
	Redis    RedisConfig        `yaml:"redis"`
	Session  *SessionConfig     `yaml:"session,omitempty"`
	Datasets DatasetsConfig     `yaml:"datasets"`
	Agent    AgentConfig        `yaml:"agent"`
	Analysts map[string]Analyst `yaml:"analysts,omitempty"`
}

// RedisConfig names the Redis server backing the blackboard.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// SessionConfig holds the engine tunables. The quorum fraction applies to
// the graph-building completeness vote; analysis consensus is always
// unanimous among active analysts.
type SessionConfig struct {
	MaxGraphRounds    *int     `yaml:"max_graph_rounds,omitempty"`
	MaxAnalysisRounds *int     `yaml:"max_analysis_rounds,omitempty"`
	GraphQuorum       *float64 `yaml:"graph_quorum,omitempty"`
}

// DatasetsConfig names the two datasets a session reconciles.
type DatasetsConfig struct {
	Dataset1 DatasetConfig `yaml:"dataset1"`
	Dataset2 DatasetConfig `yaml:"dataset2"`
}

// DatasetConfig describes one dataset: its source type and read scope.
// Summary is optional free text describing the dataset as a whole, used in
// prompts when element-level detail is unavailable or unnecessary.
type DatasetConfig struct {
	Type    string            `yaml:"type"`
	Path    string            `yaml:"path,omitempty"`
	Params  map[string]string `yaml:"params,omitempty"`
	Summary string            `yaml:"summary,omitempty"`
}

// AgentConfig specifies how analyst calls are executed: an external command
// that receives the structured request on stdin and writes the raw model
// response to stdout. One process is spawned per analyst per round.
type AgentConfig struct {
	Command        []string `yaml:"command"`
	TimeoutSeconds *int     `yaml:"timeout_seconds,omitempty"`
}

// Analyst overrides one of the default analyst personas by role.
// A nil Enabled means "leave enabled"; instructions and name replace the
// defaults only when non-empty.
type Analyst struct {
	Name         string `yaml:"name,omitempty"`
	Instructions string `yaml:"instructions,omitempty"`
	Enabled      *bool  `yaml:"enabled,omitempty"`
}

// Load reads and validates a moot.yml file.
func Load(path string) (*MootConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates configuration bytes.
func Parse(data []byte) (*MootConfig, error) {
	var cfg MootConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// Validate performs strict validation on the configuration.
func (c *MootConfig) Validate() error {
	if c.Version != "1.0" {
		return fmt.Errorf("unsupported version: %s (expected: 1.0)", c.Version)
	}

	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr cannot be empty")
	}

	if c.Datasets.Dataset1.Type == "" {
		return fmt.Errorf("datasets.dataset1.type cannot be empty")
	}

	if c.Datasets.Dataset2.Type == "" {
		return fmt.Errorf("datasets.dataset2.type cannot be empty")
	}

	if len(c.Agent.Command) == 0 {
		return fmt.Errorf("agent.command cannot be empty")
	}

	if c.Session != nil {
		if c.Session.MaxGraphRounds != nil && *c.Session.MaxGraphRounds < 1 {
			return fmt.Errorf("session.max_graph_rounds must be >= 1, got %d", *c.Session.MaxGraphRounds)
		}
		if c.Session.MaxAnalysisRounds != nil && *c.Session.MaxAnalysisRounds < 1 {
			return fmt.Errorf("session.max_analysis_rounds must be >= 1, got %d", *c.Session.MaxAnalysisRounds)
		}
		if c.Session.GraphQuorum != nil {
			q := *c.Session.GraphQuorum
			if q <= 0 || q > 1 {
				return fmt.Errorf("session.graph_quorum must be in (0,1], got %v", q)
			}
		}
	}

	if c.Agent.TimeoutSeconds != nil && *c.Agent.TimeoutSeconds < 1 {
		return fmt.Errorf("agent.timeout_seconds must be >= 1, got %d", *c.Agent.TimeoutSeconds)
	}

	return nil
}

// ApplyDefaults fills in every omitted tunable. Parse calls it after
// unmarshalling; callers constructing a MootConfig by hand call it before
// using the tunables.
func (c *MootConfig) ApplyDefaults() {
	if c.Instance == "" {
		c.Instance = DefaultInstanceName
	}

	if c.Session == nil {
		c.Session = &SessionConfig{}
	}
	if c.Session.MaxGraphRounds == nil {
		v := DefaultMaxGraphRounds
		c.Session.MaxGraphRounds = &v
	}
	if c.Session.MaxAnalysisRounds == nil {
		v := DefaultMaxAnalysisRounds
		c.Session.MaxAnalysisRounds = &v
	}
	if c.Session.GraphQuorum == nil {
		v := DefaultGraphQuorum
		c.Session.GraphQuorum = &v
	}

	if c.Agent.TimeoutSeconds == nil {
		v := DefaultAgentTimeoutSecs
		c.Agent.TimeoutSeconds = &v
	}
}
