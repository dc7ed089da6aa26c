package config

// DefaultAllowList is the set of benchmarks the OLMo-7B model card reports.
var DefaultAllowList = []string{
	"arc_challenge", "arc_easy", "boolq", "copa", "hellaswag",
	"openbookqa", "piqa", "sciq", "winogrande", "mmlu", "truthfulqa",
}

// DefaultDenyList holds substrings that mark hyperparameters, architecture
// specs, model-size tags and random baselines.
var DefaultDenyList = []string{
	"d_model", "num_heads", "num_layers", "batch_size", "peak_lr",
	"warmup_steps", "weight_decay", "beta1", "beta2", "epsilon",
	"sequence_length", "1b", "7b", "random",
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Agent: Agent{
			Name:           "eval_skill",
			Image:          "skillbench-agent:latest",
			Provider:       "anthropic",
			Adapter:        "adapters/claude-code.sh",
			TimeoutMinutes: 30,
		},
		Skill: Skill{
			Name:   "hugging-face-evaluation",
			Repo:   "https://github.com/huggingface/skills.git",
			Commit: "fe044dc129e33aca7c2edc0084f02a7119b4109f",
			ManifestCandidates: []string{
				"skills/hugging-face-evaluation/SKILL.md",
				"hf_model_evaluation/skills/hugging-face-evaluation-manager/SKILL.md",
				"hf_model_evaluation/skills/hugging-face-evaluation/SKILL.md",
			},
		},
		Connectors: []Connector{
			{Name: "huggingface", URL: "https://huggingface.co/mcp", Transport: "http"},
		},
		Prompt: Prompt{
			File:       "build_olmo_yaml.md",
			AgentsFile: "AGENTS.md",
		},
		OutputFile: "olmo_7b_evaluations.yaml",
		Runs:       1,
		Expectations: Expectations{
			Model:         "OLMo-7B",
			TaskType:      "text-generation",
			MinBenchmarks: 9,
			AllowList:     append([]string(nil), DefaultAllowList...),
			DenyList:      append([]string(nil), DefaultDenyList...),
		},
		Results: Results{
			Dir:        "runs",
			CSV:        "results.csv",
			SummaryCSV: "summarized_results.csv",
		},
		Cache: Cache{Volume: "skillbench-cache"},
		Chart: Chart{File: "pass_rate_by_model.png"},
	}
}
