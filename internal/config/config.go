// Package config loads arbiter settings from a YAML file with ARBITER_*
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where LoadDefault looks for the config file.
const DefaultPath = ".arbiter/config.yaml"

// Backend configures one reasoning backend's CLI invocation.
type Backend struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	Timeout Duration `yaml:"timeout"`
}

// Config is the full arbiter configuration.
type Config struct {
	// BackendA and BackendB are the two debaters.
	BackendA Backend `yaml:"backend_a"`
	BackendB Backend `yaml:"backend_b"`

	// DBPath is the history store location.
	DBPath string `yaml:"db_path"`

	// Cache tuning.
	CacheTTL      Duration `yaml:"cache_ttl"`
	CacheCapacity int      `yaml:"cache_capacity"`

	// Consensus tuning. The wide-split policy is configurable because the
	// exact numeric rule is verified against worked examples, not derived.
	WeightA            float64 `yaml:"weight_a"`
	WeightB            float64 `yaml:"weight_b"`
	WideSplitThreshold int     `yaml:"wide_split_threshold"`

	// TargetConsensus is the default per-request target score.
	TargetConsensus int `yaml:"target_consensus"`

	// Logging.
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// Duration wraps time.Duration for YAML ("90s", "5m").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BackendA:           Backend{Command: "codex", Args: []string{"exec"}, Timeout: Duration(120 * time.Second)},
		BackendB:           Backend{Command: "gemini", Args: []string{"-p"}, Timeout: Duration(120 * time.Second)},
		DBPath:             ".arbiter/arbiter.db",
		CacheTTL:           Duration(5 * time.Minute),
		CacheCapacity:      256,
		WeightA:            0.5,
		WeightB:            0.5,
		WideSplitThreshold: 30,
		TargetConsensus:    75,
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// Load reads a config file over the defaults, then applies env overrides.
// A missing file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	applyEnv(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads from DefaultPath.
func LoadDefault() (*Config, error) { return Load(DefaultPath) }

func (c *Config) validate() error {
	if c.TargetConsensus < 0 || c.TargetConsensus > 100 {
		return fmt.Errorf("target_consensus must be 0-100, got %d", c.TargetConsensus)
	}
	if c.WideSplitThreshold < 0 || c.WideSplitThreshold > 100 {
		return fmt.Errorf("wide_split_threshold must be 0-100, got %d", c.WideSplitThreshold)
	}
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("cache_capacity must be positive, got %d", c.CacheCapacity)
	}
	if c.WeightA < 0 || c.WeightB < 0 || c.WeightA+c.WeightB == 0 {
		return fmt.Errorf("weights must be non-negative and not both zero")
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ARBITER_BACKEND_A"); v != "" {
		cfg.BackendA.Command, cfg.BackendA.Args = splitCommand(v)
	}
	if v := os.Getenv("ARBITER_BACKEND_B"); v != "" {
		cfg.BackendB.Command, cfg.BackendB.Args = splitCommand(v)
	}
	if v := os.Getenv("ARBITER_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ARBITER_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = Duration(d)
		}
	}
	if v := os.Getenv("ARBITER_TARGET_CONSENSUS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TargetConsensus = n
		}
	}
	if v := os.Getenv("ARBITER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ARBITER_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
}

func splitCommand(s string) (string, []string) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], fields[1:]
}
