package runner_test

import (
	"path/filepath"
	"testing"

	"github.com/signalnine/skillbench/internal/config"
	"github.com/signalnine/skillbench/internal/runner"
	"github.com/signalnine/skillbench/internal/workspace"
)

func TestExitReasonFromCode(t *testing.T) {
	tests := []struct {
		code     int
		timedOut bool
		want     string
	}{
		{0, false, "completed"},
		{1, false, "crashed"},
		{2, false, "gave_up"},
		{124, true, "timeout"},
		{42, false, "crashed"},
	}
	for _, tt := range tests {
		got := runner.ExitReasonFromCode(tt.code, tt.timedOut)
		if got != tt.want {
			t.Errorf("ExitReasonFromCode(%d, %v) = %q, want %q", tt.code, tt.timedOut, got, tt.want)
		}
	}
}

func testInvocation(root string) *runner.Invocation {
	return &runner.Invocation{
		Agent: config.Agent{
			Name:    "eval_skill",
			Model:   "claude-sonnet-4-5",
			Adapter: "adapters/claude-code.sh",
			Env:     map[string]string{"ANTHROPIC_API_KEY": "from-config"},
		},
		SkillName: "hugging-face-evaluation",
		Connectors: []config.Connector{
			{Name: "huggingface", URL: "https://huggingface.co/mcp"},
			{Name: "github", URL: "https://api.githubcopilot.com/mcp"},
		},
		Workspace:   &workspace.Workspace{Layout: workspace.Layout{Root: root}},
		SessionID:   "6f1c",
		CacheVolume: "skillbench-cache",
		Secrets:     map[string]string{"ANTHROPIC_API_KEY": "from-secrets", "HF_TOKEN": "hf_abc"},
	}
}

func TestBuildEnv(t *testing.T) {
	env := runner.BuildEnv(testInvocation(t.TempDir()))
	want := map[string]string{
		"AGENT_NAME":        "eval_skill",
		"SKILL_NAME":        "hugging-face-evaluation",
		"SKILLS_DIR":        "/skills",
		"CONNECTORS":        "huggingface,github",
		"MCP_CONFIG":        "/mcp.json",
		"SESSION_DIR":       "/session",
		"SESSION_ID":        "6f1c",
		"TASK_DESCRIPTION":  "/task.md",
		"MODEL":             "claude-sonnet-4-5",
		"CACHE_DIR":         "/cache",
		"ANTHROPIC_API_KEY": "from-config",
		"HF_TOKEN":          "hf_abc",
	}
	for k, v := range want {
		if env[k] != v {
			t.Errorf("%s: got %q, want %q", k, env[k], v)
		}
	}
}

func TestBuildMounts(t *testing.T) {
	root := t.TempDir()
	mounts, err := runner.BuildMounts(testInvocation(root))
	if err != nil {
		t.Fatalf("BuildMounts: %v", err)
	}
	byTarget := map[string]bool{}
	for _, m := range mounts {
		byTarget[m.Target] = m.ReadOnly
		if !filepath.IsAbs(m.Source) {
			t.Errorf("%s: source %q is not absolute", m.Target, m.Source)
		}
	}
	for target, readOnly := range map[string]bool{
		"/skills":     true,
		"/session":    false,
		"/task.md":    true,
		"/mcp.json":   true,
		"/adapter.sh": true,
	} {
		got, ok := byTarget[target]
		if !ok {
			t.Errorf("missing mount %s", target)
			continue
		}
		if got != readOnly {
			t.Errorf("%s: read-only %v, want %v", target, got, readOnly)
		}
	}
}

func TestBuildAdapterCommand(t *testing.T) {
	cmd := runner.BuildAdapterCommand()
	if len(cmd) != 2 || cmd[1] != "/adapter.sh" {
		t.Errorf("got %v", cmd)
	}
}
