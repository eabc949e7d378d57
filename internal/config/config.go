// Package config holds the run configuration for crambench.
// Configuration is a YAML file; everything the harness varies between runs
// lives here so the evaluation loop itself carries no ambient state.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// StartMode selects how the shared memory is initialized.
type StartMode string

const (
	// StartCold begins with empty memory.
	StartCold StartMode = "cold"
	// StartWarm pre-seeds memory from a prior run's final content.
	StartWarm StartMode = "warm"
	// StartBootstrap pre-seeds like warm but is reported as its own condition.
	StartBootstrap StartMode = "bootstrap"
)

// Config is the full crambench configuration.
type Config struct {
	Run       RunConfig       `yaml:"run"`
	LLM       LLMConfig       `yaml:"llm"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Paths     PathsConfig     `yaml:"paths"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// RunConfig controls the evaluation loop.
type RunConfig struct {
	StartMode          StartMode `yaml:"start_mode"`
	SeedRunID          string    `yaml:"seed_run_id"` // prior run for warm/bootstrap
	CheckpointInterval int       `yaml:"checkpoint_interval"`
	MaxRetryAttempts   int       `yaml:"max_retry_attempts"`
	WorkerCount        int       `yaml:"worker_count"` // stateless mode only
	DatasetSubset      string    `yaml:"dataset_subset"`
}

// LLMConfig configures the generation and curation collaborators.
type LLMConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embedding_model"`
	Timeout        string `yaml:"timeout"`
}

// RetrievalConfig configures the vector retrieval collaborator.
type RetrievalConfig struct {
	TopK      int    `yaml:"top_k"`
	IndexPath string `yaml:"index_path"`
}

// PathsConfig locates durable state on disk.
type PathsConfig struct {
	Dataset       string `yaml:"dataset"`
	CheckpointDir string `yaml:"checkpoint_dir"`
	ResultsDB     string `yaml:"results_db"`
}

// LoggingConfig configures the shared logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns a configuration with working defaults for everything
// except credentials and the dataset path.
func Default() Config {
	return Config{
		Run: RunConfig{
			StartMode:          StartCold,
			CheckpointInterval: 10,
			MaxRetryAttempts:   3,
			WorkerCount:        4,
		},
		LLM: LLMConfig{
			Model:          "gemini-2.5-flash",
			EmbeddingModel: "gemini-embedding-001",
			Timeout:        "2m",
		},
		Retrieval: RetrievalConfig{
			TopK:      5,
			IndexPath: "crambench.index.db",
		},
		Paths: PathsConfig{
			CheckpointDir: "checkpoints",
			ResultsDB:     "crambench.results.db",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML config file over the defaults and validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks every recognized option.
func (c Config) Validate() error {
	switch c.Run.StartMode {
	case StartCold:
	case StartWarm, StartBootstrap:
		if c.Run.SeedRunID == "" {
			return fmt.Errorf("start_mode %q requires seed_run_id", c.Run.StartMode)
		}
	default:
		return fmt.Errorf("unknown start_mode %q", c.Run.StartMode)
	}

	if c.Run.CheckpointInterval < 1 {
		return fmt.Errorf("checkpoint_interval must be positive, got %d", c.Run.CheckpointInterval)
	}
	if c.Run.MaxRetryAttempts < 1 {
		return fmt.Errorf("max_retry_attempts must be positive, got %d", c.Run.MaxRetryAttempts)
	}
	if c.Run.WorkerCount < 1 {
		return fmt.Errorf("worker_count must be positive, got %d", c.Run.WorkerCount)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("retrieval top_k must be positive, got %d", c.Retrieval.TopK)
	}
	if c.Paths.Dataset == "" {
		return fmt.Errorf("paths.dataset is required")
	}
	if _, err := c.LLM.ParsedTimeout(); err != nil {
		return err
	}
	return nil
}

// ParsedTimeout returns the LLM call timeout as a duration.
func (l LLMConfig) ParsedTimeout() (time.Duration, error) {
	if l.Timeout == "" {
		return 2 * time.Minute, nil
	}
	d, err := time.ParseDuration(l.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid llm timeout %q: %w", l.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("llm timeout must be positive, got %s", l.Timeout)
	}
	return d, nil
}
