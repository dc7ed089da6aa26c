package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/signalnine/skillbench/internal/config"
	"github.com/signalnine/skillbench/internal/docker"
	"github.com/signalnine/skillbench/internal/envfile"
	"github.com/signalnine/skillbench/internal/result"
	"github.com/signalnine/skillbench/internal/workspace"
)

// Container paths the adapter script relies on.
const (
	ContainerWorkspace = "/workspace"
	ContainerSkills    = "/skills"
	ContainerSession   = "/session"
	ContainerTask      = "/task.md"
	ContainerMCP       = "/mcp.json"
	ContainerAdapter   = "/adapter.sh"
	ContainerCache     = "/cache"
)

// Invocation is everything the agent framework is started with.
type Invocation struct {
	Agent       config.Agent
	SkillName   string
	Connectors  []config.Connector
	Workspace   *workspace.Workspace
	SessionID   string
	CacheVolume string
	Secrets     map[string]string
}

// Invoker starts the agent for one run and waits for it to exit.
type Invoker interface {
	Invoke(ctx context.Context, inv *Invocation) (*docker.RunResult, error)
}

// DockerInvoker runs the agent image with the adapter script as entrypoint.
type DockerInvoker struct{}

func (DockerInvoker) Invoke(ctx context.Context, inv *Invocation) (*docker.RunResult, error) {
	mounts, err := BuildMounts(inv)
	if err != nil {
		return nil, err
	}
	opts := &docker.RunOpts{
		Image:   inv.Agent.Image,
		Command: BuildAdapterCommand(),
		WorkDir: inv.Workspace.Workspace(),
		Env:     BuildEnv(inv),
		Timeout: inv.Agent.Timeout(),
		Mounts:  mounts,
		Labels: map[string]string{
			"skillbench.session": inv.SessionID,
			"skillbench.agent":   inv.Agent.Name,
		},
		UserID: fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
	}
	if inv.CacheVolume != "" {
		opts.Volumes = []docker.Volume{{Name: inv.CacheVolume, Target: ContainerCache}}
	}
	return docker.RunContainer(ctx, opts)
}

func BuildAdapterCommand() []string {
	return []string{"bash", ContainerAdapter}
}

// BuildEnv assembles the container environment. Configured agent env wins
// over secrets of the same name.
func BuildEnv(inv *Invocation) map[string]string {
	env := map[string]string{
		"AGENT_NAME":       inv.Agent.Name,
		"SKILL_NAME":       inv.SkillName,
		"SKILLS_DIR":       ContainerSkills,
		"CONNECTORS":       workspace.ConnectorNames(inv.Connectors),
		"MCP_CONFIG":       ContainerMCP,
		"SESSION_DIR":      ContainerSession,
		"SESSION_ID":       inv.SessionID,
		"TASK_DESCRIPTION": ContainerTask,
		"TASK_DIR":         ContainerWorkspace,
		"MODEL":            inv.Agent.Model,
	}
	if inv.CacheVolume != "" {
		env["CACHE_DIR"] = ContainerCache
	}
	for k, v := range inv.Agent.Env {
		env[k] = v
	}
	envfile.Merge(env, inv.Secrets)
	return env
}

// BuildMounts binds the per-run skills copy, session dir, task, connector
// config and adapter script into the container.
func BuildMounts(inv *Invocation) ([]docker.Mount, error) {
	adapterAbs, err := filepath.Abs(inv.Agent.Adapter)
	if err != nil {
		return nil, fmt.Errorf("resolving adapter path: %w", err)
	}
	ws := inv.Workspace
	mounts := []docker.Mount{
		{Source: ws.Skills(), Target: ContainerSkills, ReadOnly: true},
		{Source: ws.SessionDir(inv.SessionID), Target: ContainerSession},
		{Source: ws.Task(), Target: ContainerTask, ReadOnly: true},
		{Source: ws.MCPConfig(), Target: ContainerMCP, ReadOnly: true},
		{Source: adapterAbs, Target: ContainerAdapter, ReadOnly: true},
	}

	// Mount host ~/.claude/.credentials.json if it exists; the adapter copies
	// it into a writable ~/.claude/ at runtime.
	if home, err := os.UserHomeDir(); err == nil {
		credsFile := filepath.Join(home, ".claude", ".credentials.json")
		if _, err := os.Stat(credsFile); err == nil {
			mounts = append(mounts, docker.Mount{
				Source: credsFile, Target: "/tmp/.claude-credentials.json", ReadOnly: true,
			})
		}
	}
	return mounts, nil
}

func ExitReasonFromCode(code int, timedOut bool) string {
	if timedOut {
		return result.ExitTimeout
	}
	switch code {
	case 0:
		return result.ExitCompleted
	case 2:
		return result.ExitGaveUp
	default:
		return result.ExitCrashed
	}
}

// durationSeconds rounds d to whole seconds for meta.json.
func durationSeconds(d time.Duration) int {
	return int(d.Round(time.Second).Seconds())
}
