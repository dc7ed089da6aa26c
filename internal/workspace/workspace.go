package workspace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"

	"github.com/signalnine/skillbench/internal/config"
	"github.com/signalnine/skillbench/internal/gitops"
	"github.com/signalnine/skillbench/internal/skills"
)

// Workspace is a provisioned run directory.
type Workspace struct {
	Layout
	// Skill is the manifest found in the skills source.
	Skill *skills.Skill
	// SkillDir is the filtered per-run copy of the skill.
	SkillDir string
	// Commit is the skills source revision, empty for a local dir.
	Commit     string
	PromptPath string
}

type mcpServer struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type mcpConfig struct {
	Servers map[string]mcpServer `json:"mcpServers"`
}

// Provision creates a fresh run directory tree at runDir: the skills source,
// a filtered copy holding only the configured skill, and a workspace seeded
// with the prompt, the agents context file and the skill's scripts.
func Provision(ctx context.Context, runDir string, cfg *config.Config) (*Workspace, error) {
	l := Layout{Root: runDir}
	for _, dir := range []string{l.Workspace(), l.SessionRoot()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	ws := &Workspace{Layout: l}
	if err := ws.fetchSkills(ctx, cfg.Skill); err != nil {
		return nil, err
	}

	sk, err := skills.FindManifest(l.SkillsRepo(), cfg.Skill.ManifestCandidates, skillNames(cfg.Skill.Name)...)
	if err != nil {
		return nil, fmt.Errorf("locating skill %q: %w", cfg.Skill.Name, err)
	}
	ws.Skill = sk

	ws.SkillDir = l.SkillDir(filepath.Base(sk.Path))
	if err := os.RemoveAll(l.Skills()); err != nil {
		return nil, fmt.Errorf("clearing skills dir: %w", err)
	}
	if err := copyTree(sk.Path, ws.SkillDir, ignoredNames); err != nil {
		return nil, fmt.Errorf("copying skill %s: %w", sk.Name, err)
	}

	scripts := filepath.Join(sk.Path, "scripts")
	if info, err := os.Stat(scripts); err == nil && info.IsDir() {
		if err := copyTree(scripts, filepath.Join(l.Workspace(), "scripts"), nil); err != nil {
			return nil, fmt.Errorf("copying skill scripts: %w", err)
		}
	}

	ws.PromptPath, err = copyInto(cfg.Prompt.File, l.Workspace())
	if err != nil {
		return nil, fmt.Errorf("copying prompt: %w", err)
	}
	if cfg.Prompt.AgentsFile != "" {
		if _, err := copyInto(cfg.Prompt.AgentsFile, l.Workspace()); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("copying agents file: %w", err)
			}
			log.Warnf("agents file %s not found, continuing without it", cfg.Prompt.AgentsFile)
		}
	}

	if err := WriteMCPConfig(l.MCPConfig(), cfg.Connectors); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"run":    runDir,
		"skill":  sk.Name,
		"commit": ws.Commit,
	}).Debug("provisioned workspace")
	return ws, nil
}

func (ws *Workspace) fetchSkills(ctx context.Context, s config.Skill) error {
	dest := ws.SkillsRepo()
	if s.Dir != "" {
		if err := copyTree(s.Dir, dest, []string{".git"}); err != nil {
			return fmt.Errorf("copying skills dir %s: %w", s.Dir, err)
		}
		return nil
	}
	if err := gitops.CloneAtRef(ctx, s.Repo, s.Commit, dest); err != nil {
		return fmt.Errorf("cloning skills repo: %w", err)
	}
	commit, err := gitops.HeadCommit(ctx, dest)
	if err != nil {
		return err
	}
	ws.Commit = commit
	return nil
}

// skillNames lists the manifest names accepted for a skill. The evaluation
// skill was published under a "-manager" suffix for a while.
func skillNames(name string) []string {
	return lo.Uniq([]string{name, name + "-manager"})
}

// WriteMCPConfig writes the connector configuration handed to the agent.
func WriteMCPConfig(path string, connectors []config.Connector) error {
	cfg := mcpConfig{Servers: map[string]mcpServer{}}
	for _, c := range connectors {
		cfg.Servers[c.Name] = mcpServer{Type: c.Transport, URL: c.URL}
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling mcp config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing mcp config: %w", err)
	}
	return nil
}

// ConnectorNames returns the comma separated connector names.
func ConnectorNames(connectors []config.Connector) string {
	return strings.Join(lo.Map(connectors, func(c config.Connector, _ int) string { return c.Name }), ",")
}

func copyInto(src, dir string) (string, error) {
	dst := filepath.Join(dir, filepath.Base(src))
	if err := copyFile(src, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// LoadPrompt reads the instruction document verbatim.
func LoadPrompt(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading prompt: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", fmt.Errorf("prompt %s is empty", path)
	}
	return string(data), nil
}

// RecoverOutput copies the output file into the workspace when the agent
// wrote it inside the skills source instead. It reports whether the file is
// present in the workspace afterwards.
func (l Layout) RecoverOutput(output string) (bool, error) {
	target := filepath.Join(l.Workspace(), output)
	if _, err := os.Stat(target); err == nil {
		return true, nil
	}
	found := ""
	err := filepath.WalkDir(l.SkillsRepo(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && d.Name() == ".git" {
			return filepath.SkipDir
		}
		if !d.IsDir() && d.Name() == filepath.Base(output) {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return false, fmt.Errorf("searching skills repo: %w", err)
	}
	if found == "" {
		return false, nil
	}
	if err := copyFile(found, target); err != nil {
		return false, fmt.Errorf("recovering %s: %w", output, err)
	}
	log.WithField("from", found).Infof("recovered %s from skills repo", output)
	return true, nil
}

// LocateArtifact finds the evaluation artifact for a run: the workspace
// copy, then the run root, then the first YAML file anywhere else in the
// run outside the skills and session dirs.
func (l Layout) LocateArtifact(output string) (string, bool) {
	for _, p := range []string{
		filepath.Join(l.Workspace(), output),
		filepath.Join(l.Root, output),
	} {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	found := ""
	filepath.WalkDir(l.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if l.excluded(path) || strings.HasPrefix(d.Name(), ".") && path != l.Root {
				return filepath.SkipDir
			}
			return nil
		}
		if ext := filepath.Ext(path); ext == ".yaml" || ext == ".yml" {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found, found != ""
}
