package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the top-level structure parsed from citriage.yaml. Every
// guardrail and classifier knob lives here so tests can exercise boundary
// values without touching process state.
type Config struct {
	// Repo is the "owner/name" repository identifier. Usually supplied on
	// the command line; the file value is a fallback.
	Repo string `yaml:"repo"`
	// Workflow is the workflow file the triage targets.
	Workflow string `yaml:"workflow"`
	// BaseBranch is the base for fix PRs.
	BaseBranch string `yaml:"base_branch"`
	// Manifest is the dependency manifest fix actions append to.
	Manifest string `yaml:"manifest"`
	// BranchPrefix namespaces the branches the applier creates.
	BranchPrefix string `yaml:"branch_prefix"`

	ConfidenceThreshold int `yaml:"confidence_threshold"`
	ContextBefore       int `yaml:"context_before"`
	ContextAfter        int `yaml:"context_after"`

	MaxFiles int `yaml:"max_files"`
	MaxLines int `yaml:"max_lines"`

	// SecretPatterns are extra regexes redacted in addition to the
	// built-in set.
	SecretPatterns []string `yaml:"secret_patterns"`
}

// envOverlay holds the environment overrides applied on top of the file.
type envOverlay struct {
	Workflow   string `env:"CITRIAGE_WORKFLOW"`
	BaseBranch string `env:"CITRIAGE_BASE_BRANCH"`
	Manifest   string `env:"CITRIAGE_MANIFEST"`
}

// Load reads and parses a config from the given YAML file path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadDefault loads citriage.yaml from dir if present, or returns a
// default config when the file does not exist.
func LoadDefault(dir string) (*Config, error) {
	path := filepath.Join(dir, "citriage.yaml")
	if _, err := os.Stat(path); err != nil {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg, nil
	}
	return Load(path)
}

// ApplyEnv overlays CITRIAGE_* environment variables onto cfg.
func ApplyEnv(ctx context.Context, cfg *Config) error {
	var env envOverlay
	if err := envconfig.Process(ctx, &env); err != nil {
		return fmt.Errorf("processing environment: %w", err)
	}
	if env.Workflow != "" {
		cfg.Workflow = env.Workflow
	}
	if env.BaseBranch != "" {
		cfg.BaseBranch = env.BaseBranch
	}
	if env.Manifest != "" {
		cfg.Manifest = env.Manifest
	}
	return nil
}

// applyDefaults fills in the documented defaults for unset fields.
func applyDefaults(cfg *Config) {
	if cfg.Workflow == "" {
		cfg.Workflow = ".github/workflows/ci.yaml"
	}
	if cfg.BaseBranch == "" {
		cfg.BaseBranch = "main"
	}
	if cfg.Manifest == "" {
		cfg.Manifest = "requirements.txt"
	}
	if cfg.BranchPrefix == "" {
		cfg.BranchPrefix = "citriage"
	}
	if cfg.ConfidenceThreshold == 0 {
		cfg.ConfidenceThreshold = 3
	}
	if cfg.ContextBefore == 0 {
		cfg.ContextBefore = 5
	}
	if cfg.ContextAfter == 0 {
		cfg.ContextAfter = 5
	}
	if cfg.MaxFiles == 0 {
		cfg.MaxFiles = 10
	}
	if cfg.MaxLines == 0 {
		cfg.MaxLines = 500
	}
}

// Validate checks the config for values that would break the pipeline.
func (c *Config) Validate() error {
	if c.ConfidenceThreshold < 1 || c.ConfidenceThreshold > 5 {
		return fmt.Errorf("confidence_threshold %d out of range [1,5]", c.ConfidenceThreshold)
	}
	if c.ContextBefore < 0 || c.ContextAfter < 0 {
		return fmt.Errorf("context window must not be negative")
	}
	if c.MaxFiles < 1 {
		return fmt.Errorf("max_files %d must be positive", c.MaxFiles)
	}
	if c.MaxLines < 1 {
		return fmt.Errorf("max_lines %d must be positive", c.MaxLines)
	}
	return nil
}
