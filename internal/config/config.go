package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when --config is not given.
const DefaultPath = "skillbench.yaml"

type Config struct {
	Agent        Agent        `yaml:"agent"`
	Skill        Skill        `yaml:"skill"`
	Connectors   []Connector  `yaml:"connectors"`
	Prompt       Prompt       `yaml:"prompt"`
	OutputFile   string       `yaml:"output_file"`
	Runs         int          `yaml:"runs"`
	Expectations Expectations `yaml:"expectations"`
	Results      Results      `yaml:"results"`
	Cache        Cache        `yaml:"cache"`
	Secrets      Secrets      `yaml:"secrets"`
	Pricing      Pricing      `yaml:"pricing"`
	Chart        Chart        `yaml:"chart"`
}

type Agent struct {
	Name           string            `yaml:"name"`
	Image          string            `yaml:"image"`
	Model          string            `yaml:"model"`
	Provider       string            `yaml:"provider"`
	Adapter        string            `yaml:"adapter"`
	Env            map[string]string `yaml:"env"`
	TimeoutMinutes int               `yaml:"timeout_minutes"`
}

// Timeout bounds a single agent invocation.
func (a Agent) Timeout() time.Duration {
	return time.Duration(a.TimeoutMinutes) * time.Minute
}

// Skill names the packaged capability handed to the agent and where to get it.
// Exactly one of Repo or Dir is used; Dir wins when both are set.
type Skill struct {
	Name               string   `yaml:"name"`
	Repo               string   `yaml:"repo"`
	Commit             string   `yaml:"commit"`
	Dir                string   `yaml:"dir"`
	ManifestCandidates []string `yaml:"manifest_candidates"`
}

// Connector is a named external service (an MCP server) exposed to the agent.
type Connector struct {
	Name      string `yaml:"name"`
	URL       string `yaml:"url"`
	Transport string `yaml:"transport"`
}

type Prompt struct {
	File       string `yaml:"file"`
	AgentsFile string `yaml:"agents_file"`
}

type Expectations struct {
	Model         string   `yaml:"model"`
	TaskType      string   `yaml:"task_type"`
	SourceRef     string   `yaml:"source_ref"`
	MinBenchmarks int      `yaml:"min_benchmarks"`
	AllowList     []string `yaml:"allow_list"`
	DenyList      []string `yaml:"deny_list"`
}

type Results struct {
	Dir        string `yaml:"dir"`
	CSV        string `yaml:"csv"`
	SummaryCSV string `yaml:"summary_csv"`
}

// Cache is the dependency cache shared by every run. It is never reset
// between runs, so later runs may start warmer than earlier ones.
type Cache struct {
	Volume string `yaml:"volume"`
}

type Secrets struct {
	EnvFile string `yaml:"env_file"`
}

type Pricing struct {
	File string `yaml:"file"`
}

type Chart struct {
	File string `yaml:"file"`
}

// Load reads and validates the config at path. A missing file at DefaultPath
// yields the built-in defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && path == DefaultPath {
			cfg := Default()
			applyEnv(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Agent.Model = envOr("SKILLBENCH_MODEL", cfg.Agent.Model)
	cfg.Agent.Image = envOr("SKILLBENCH_IMAGE", cfg.Agent.Image)
}

func validate(cfg *Config) error {
	if cfg.Agent.Name == "" {
		return fmt.Errorf("agent: name is required")
	}
	if cfg.Agent.Image == "" {
		return fmt.Errorf("agent %q: image is required", cfg.Agent.Name)
	}
	if cfg.Agent.TimeoutMinutes < 1 {
		cfg.Agent.TimeoutMinutes = 30
	}
	if cfg.Skill.Name == "" {
		return fmt.Errorf("skill: name is required")
	}
	if cfg.Skill.Dir == "" && cfg.Skill.Repo == "" {
		return fmt.Errorf("skill %q: one of repo or dir is required", cfg.Skill.Name)
	}
	if cfg.Skill.Dir == "" && cfg.Skill.Commit == "" {
		return fmt.Errorf("skill %q: commit is required when cloning %s", cfg.Skill.Name, cfg.Skill.Repo)
	}
	for i, c := range cfg.Connectors {
		if c.Name == "" {
			return fmt.Errorf("connector %d: name is required", i)
		}
		if c.URL == "" {
			return fmt.Errorf("connector %q: url is required", c.Name)
		}
		if c.Transport == "" {
			cfg.Connectors[i].Transport = "http"
		}
	}
	if cfg.Prompt.File == "" {
		return fmt.Errorf("prompt: file is required")
	}
	if cfg.OutputFile == "" {
		return fmt.Errorf("output_file is required")
	}
	if cfg.Runs < 1 {
		return fmt.Errorf("runs must be at least 1")
	}
	e := &cfg.Expectations
	if e.Model == "" {
		return fmt.Errorf("expectations: model is required")
	}
	if len(e.AllowList) == 0 {
		return fmt.Errorf("expectations: allow_list must not be empty")
	}
	if e.MinBenchmarks < 1 {
		return fmt.Errorf("expectations: min_benchmarks must be at least 1")
	}
	if e.MinBenchmarks > len(e.AllowList) {
		return fmt.Errorf("expectations: min_benchmarks %d exceeds allow_list size %d", e.MinBenchmarks, len(e.AllowList))
	}
	if e.TaskType == "" {
		e.TaskType = "text-generation"
	}
	if cfg.Results.Dir == "" {
		cfg.Results.Dir = "runs"
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
