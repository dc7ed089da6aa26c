package workspace_test

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/skillbench/internal/config"
	"github.com/signalnine/skillbench/internal/workspace"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fixture builds a skills source, prompt files and a config pointing at them.
func fixture(t *testing.T) *config.Config {
	t.Helper()
	src := t.TempDir()
	skill := filepath.Join(src, "skills", "hugging-face-evaluation")
	writeFile(t, filepath.Join(skill, "SKILL.md"), "---\nname: hugging-face-evaluation\ndescription: Extract eval tables\n---\n")
	writeFile(t, filepath.Join(skill, "scripts", "extract.py"), "print('hi')\n")
	writeFile(t, filepath.Join(skill, "__pycache__", "extract.cpython-312.pyc"), "bytecode")
	writeFile(t, filepath.Join(skill, ".venv", "bin", "python"), "")
	writeFile(t, filepath.Join(src, "skills", "other", "SKILL.md"), "---\nname: other\n---\n")

	prompts := t.TempDir()
	writeFile(t, filepath.Join(prompts, "build_olmo_yaml.md"), "Build the OLMo-7B model-index.\n")
	writeFile(t, filepath.Join(prompts, "AGENTS.md"), "Be careful.\n")

	cfg := config.Default()
	cfg.Skill.Dir = src
	cfg.Prompt.File = filepath.Join(prompts, "build_olmo_yaml.md")
	cfg.Prompt.AgentsFile = filepath.Join(prompts, "AGENTS.md")
	return cfg
}

func TestProvision(t *testing.T) {
	cfg := fixture(t)
	runDir := filepath.Join(t.TempDir(), "run_1")

	ws, err := workspace.Provision(context.Background(), runDir, cfg)
	require.NoError(t, err)

	assert.Equal(t, "hugging-face-evaluation", ws.Skill.Name)
	assert.FileExists(t, filepath.Join(ws.SkillDir, "SKILL.md"))
	assert.FileExists(t, filepath.Join(ws.SkillDir, "scripts", "extract.py"))
	assert.NoDirExists(t, filepath.Join(ws.SkillDir, "__pycache__"))
	assert.NoDirExists(t, filepath.Join(ws.SkillDir, ".venv"))
	assert.NoDirExists(t, ws.Layout.SkillDir("other"))

	assert.FileExists(t, filepath.Join(ws.Workspace(), "build_olmo_yaml.md"))
	assert.FileExists(t, filepath.Join(ws.Workspace(), "AGENTS.md"))
	assert.FileExists(t, filepath.Join(ws.Workspace(), "scripts", "extract.py"))
	assert.DirExists(t, ws.SessionRoot())
	assert.Equal(t, filepath.Join(ws.Workspace(), "build_olmo_yaml.md"), ws.PromptPath)

	data, err := os.ReadFile(ws.MCPConfig())
	require.NoError(t, err)
	var mcp struct {
		Servers map[string]struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		} `json:"mcpServers"`
	}
	require.NoError(t, json.Unmarshal(data, &mcp))
	assert.Equal(t, "https://huggingface.co/mcp", mcp.Servers["huggingface"].URL)
	assert.Equal(t, "http", mcp.Servers["huggingface"].Type)
}

func TestProvisionRunsAreDisjoint(t *testing.T) {
	cfg := fixture(t)
	batch := t.TempDir()

	first, err := workspace.Provision(context.Background(), filepath.Join(batch, "run_1"), cfg)
	require.NoError(t, err)
	writeFile(t, filepath.Join(first.SkillDir, "scratch.txt"), "left by run 1")
	writeFile(t, filepath.Join(first.Workspace(), "olmo_7b_evaluations.yaml"), "model-index: []\n")

	second, err := workspace.Provision(context.Background(), filepath.Join(batch, "run_2"), cfg)
	require.NoError(t, err)
	assert.NotEqual(t, first.SkillDir, second.SkillDir)
	assert.NoFileExists(t, filepath.Join(second.SkillDir, "scratch.txt"))
	assert.NoFileExists(t, filepath.Join(second.Workspace(), "olmo_7b_evaluations.yaml"))
}

func TestProvisionReprovisionIsFresh(t *testing.T) {
	cfg := fixture(t)
	runDir := filepath.Join(t.TempDir(), "run_1")

	ws, err := workspace.Provision(context.Background(), runDir, cfg)
	require.NoError(t, err)
	writeFile(t, filepath.Join(ws.SkillDir, "scratch.txt"), "stale")

	ws, err = workspace.Provision(context.Background(), runDir, cfg)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(ws.SkillDir, "scratch.txt"))
}

func TestProvisionMissingAgentsFile(t *testing.T) {
	cfg := fixture(t)
	cfg.Prompt.AgentsFile = filepath.Join(t.TempDir(), "AGENTS.md")

	ws, err := workspace.Provision(context.Background(), filepath.Join(t.TempDir(), "run_1"), cfg)
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(ws.Workspace(), "AGENTS.md"))
}

func TestProvisionMissingPrompt(t *testing.T) {
	cfg := fixture(t)
	cfg.Prompt.File = filepath.Join(t.TempDir(), "missing.md")

	_, err := workspace.Provision(context.Background(), filepath.Join(t.TempDir(), "run_1"), cfg)
	assert.ErrorContains(t, err, "copying prompt")
}

func TestProvisionUnknownSkill(t *testing.T) {
	cfg := fixture(t)
	cfg.Skill.Name = "does-not-exist"
	cfg.Skill.ManifestCandidates = nil

	_, err := workspace.Provision(context.Background(), filepath.Join(t.TempDir(), "run_1"), cfg)
	assert.ErrorContains(t, err, "does-not-exist")
}

func TestProvisionFromGit(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	cfg := fixture(t)
	repo := cfg.Skill.Dir
	for _, args := range [][]string{
		{"init"},
		{"config", "user.email", "test@test.com"},
		{"config", "user.name", "Test"},
		{"add", "."},
		{"commit", "-m", "skills"},
	} {
		c := exec.Command("git", args...)
		c.Dir = repo
		out, err := c.CombinedOutput()
		require.NoError(t, err, string(out))
	}
	head, err := exec.Command("git", "-C", repo, "rev-parse", "HEAD").Output()
	require.NoError(t, err)

	cfg.Skill.Dir = ""
	cfg.Skill.Repo = repo
	cfg.Skill.Commit = strings.TrimSpace(string(head))

	ws, err := workspace.Provision(context.Background(), filepath.Join(t.TempDir(), "run_1"), cfg)
	require.NoError(t, err)
	assert.Equal(t, cfg.Skill.Commit, ws.Commit)
	assert.FileExists(t, filepath.Join(ws.SkillDir, "SKILL.md"))
	assert.NoDirExists(t, filepath.Join(ws.SkillDir, ".git"))
}

func TestLoadPrompt(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prompt.md")
	writeFile(t, path, "Extract the scores.\n")

	got, err := workspace.LoadPrompt(path)
	require.NoError(t, err)
	assert.Equal(t, "Extract the scores.\n", got)

	writeFile(t, path, "  \n")
	_, err = workspace.LoadPrompt(path)
	assert.Error(t, err)

	_, err = workspace.LoadPrompt(filepath.Join(dir, "missing.md"))
	assert.Error(t, err)
}

func TestRecoverOutput(t *testing.T) {
	l := workspace.Layout{Root: t.TempDir()}
	require.NoError(t, os.MkdirAll(l.Workspace(), 0o755))
	writeFile(t, filepath.Join(l.SkillsRepo(), "skills", "x", "olmo_7b_evaluations.yaml"), "model-index: []\n")

	ok, err := l.RecoverOutput("olmo_7b_evaluations.yaml")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, filepath.Join(l.Workspace(), "olmo_7b_evaluations.yaml"))

	ok, err = l.RecoverOutput("other.yaml")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLocateArtifact(t *testing.T) {
	l := workspace.Layout{Root: t.TempDir()}
	writeFile(t, filepath.Join(l.SkillsRepo(), "config.yaml"), "x: 1\n")
	writeFile(t, filepath.Join(l.Skills(), "s", "skill.yaml"), "x: 1\n")

	_, ok := l.LocateArtifact("olmo_7b_evaluations.yaml")
	assert.False(t, ok, "skills dirs must not be searched")

	writeFile(t, filepath.Join(l.Workspace(), "nested", "results.yaml"), "x: 1\n")
	path, ok := l.LocateArtifact("olmo_7b_evaluations.yaml")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(l.Workspace(), "nested", "results.yaml"), path)

	writeFile(t, filepath.Join(l.Root, "olmo_7b_evaluations.yaml"), "x: 1\n")
	path, _ = l.LocateArtifact("olmo_7b_evaluations.yaml")
	assert.Equal(t, filepath.Join(l.Root, "olmo_7b_evaluations.yaml"), path)

	writeFile(t, filepath.Join(l.Workspace(), "olmo_7b_evaluations.yaml"), "x: 1\n")
	path, _ = l.LocateArtifact("olmo_7b_evaluations.yaml")
	assert.Equal(t, filepath.Join(l.Workspace(), "olmo_7b_evaluations.yaml"), path)
}
