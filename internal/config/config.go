// ABOUTME: Configuration loading and parsing for the orchestrator
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete orchestrator configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Router    RouterConfig    `yaml:"router"`
	Allocator AllocatorConfig `yaml:"allocator"`
	Transport TransportConfig `yaml:"transport"`
	Lifecycle LifecycleConfig `yaml:"lifecycle"`
	Agents    []AgentConfig   `yaml:"agents"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	File   string `yaml:"file"`   // optional rotating file sink
}

// DatabaseConfig holds history persistence configuration.
// An empty path keeps the audit trail in memory only.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// RouterConfig holds task router tunables
type RouterConfig struct {
	QueueSize int    `yaml:"queue_size"`
	Strategy  string `yaml:"strategy"` // best_match, fastest_response, load_balanced
}

// AllocatorConfig holds task allocator tunables
type AllocatorConfig struct {
	MaxLoad        int     `yaml:"max_load"`
	MinSuccessRate float64 `yaml:"min_success_rate"`
	Strategy       string  `yaml:"strategy"`
}

// TransportConfig holds transport client tunables
type TransportConfig struct {
	PeerID               string `yaml:"peer_id"`
	MaxRetries           int    `yaml:"max_retries"`
	MaxReconnectAttempts int    `yaml:"max_reconnect_attempts"`

	HeartbeatInterval time.Duration `yaml:"-"`
	RetryBackoff      time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	HeartbeatIntervalRaw string `yaml:"heartbeat_interval"`
	RetryBackoffRaw      string `yaml:"retry_backoff"`
}

// LifecycleConfig holds supervision tunables
type LifecycleConfig struct {
	MaxRestartAttempts int  `yaml:"max_restart_attempts"`
	MaxResourceSamples int  `yaml:"max_resource_samples"`
	AutoStart          bool `yaml:"auto_start"`

	CheckInterval     time.Duration `yaml:"-"`
	HealthInterval    time.Duration `yaml:"-"`
	WarningThreshold  time.Duration `yaml:"-"`
	CriticalThreshold time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	CheckIntervalRaw     string `yaml:"check_interval"`
	HealthIntervalRaw    string `yaml:"health_interval"`
	WarningThresholdRaw  string `yaml:"warning_threshold"`
	CriticalThresholdRaw string `yaml:"critical_threshold"`
}

// AgentConfig describes one agent known at startup
type AgentConfig struct {
	ID                 string   `yaml:"id"`
	Name               string   `yaml:"name"`
	Capabilities       []string `yaml:"capabilities"`
	MaxConcurrentTasks int      `yaml:"max_concurrent_tasks"`
	Priority           float64  `yaml:"priority"`
	Tier               string   `yaml:"tier"`
	BaseCost           float64  `yaml:"base_cost"` // overrides the tier rate when > 0
	AutoStart          bool     `yaml:"auto_start"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Agents))
	for i, a := range c.Agents {
		if a.ID == "" {
			return fmt.Errorf("agents[%d].id is required", i)
		}
		if seen[a.ID] {
			return fmt.Errorf("agents[%d].id %q is duplicated", i, a.ID)
		}
		seen[a.ID] = true
		if len(a.Capabilities) == 0 {
			return fmt.Errorf("agents[%d] (%s) declares no capabilities", i, a.ID)
		}
		if a.Priority < 0 || a.Priority > 1 {
			return fmt.Errorf("agents[%d].priority must be in [0,1]", i)
		}
		if a.BaseCost < 0 {
			return fmt.Errorf("agents[%d].base_cost must be >= 0", i)
		}
	}

	if c.Allocator.MinSuccessRate < 0 || c.Allocator.MinSuccessRate > 1 {
		return fmt.Errorf("allocator.min_success_rate must be in [0,1]")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{cfg.Transport.HeartbeatIntervalRaw, "transport.heartbeat_interval", &cfg.Transport.HeartbeatInterval},
		{cfg.Transport.RetryBackoffRaw, "transport.retry_backoff", &cfg.Transport.RetryBackoff},
		{cfg.Lifecycle.CheckIntervalRaw, "lifecycle.check_interval", &cfg.Lifecycle.CheckInterval},
		{cfg.Lifecycle.HealthIntervalRaw, "lifecycle.health_interval", &cfg.Lifecycle.HealthInterval},
		{cfg.Lifecycle.WarningThresholdRaw, "lifecycle.warning_threshold", &cfg.Lifecycle.WarningThreshold},
		{cfg.Lifecycle.CriticalThresholdRaw, "lifecycle.critical_threshold", &cfg.Lifecycle.CriticalThreshold},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
