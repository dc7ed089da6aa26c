package docker_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/signalnine/skillbench/internal/docker"
)

func requireDocker(t *testing.T) {
	t.Helper()
	if os.Getenv("SKILLBENCH_DOCKER_TESTS") == "" {
		t.Skip("set SKILLBENCH_DOCKER_TESTS=1 to run Docker tests")
	}
}

func TestRunContainer(t *testing.T) {
	requireDocker(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	workDir := t.TempDir()
	taskPath := filepath.Join(t.TempDir(), "task.md")
	os.WriteFile(taskPath, []byte("extract the scores"), 0o644)

	result, err := docker.RunContainer(ctx, &docker.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"sh", "-c", "cat /task.md > output.txt && echo $SKILL_NAME"},
		WorkDir: workDir,
		Env:     map[string]string{"SKILL_NAME": "hugging-face-evaluation"},
		Mounts:  []docker.Mount{{Source: taskPath, Target: "/task.md", ReadOnly: true}},
		Timeout: 30 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if result.ExitCode != 0 {
		t.Errorf("exit code: got %d, want 0", result.ExitCode)
	}
	if result.TimedOut {
		t.Error("unexpected timeout")
	}
	if !strings.Contains(result.Logs, "hugging-face-evaluation") {
		t.Errorf("logs: got %q", result.Logs)
	}
	content, err := os.ReadFile(filepath.Join(workDir, "output.txt"))
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	if string(content) != "extract the scores" {
		t.Errorf("output: got %q", content)
	}
}

func TestRunContainerSharedVolume(t *testing.T) {
	requireDocker(t)
	ctx := context.Background()
	vol := docker.Volume{Name: "skillbench-test-cache", Target: "/cache"}

	for i, cmd := range []string{"echo warm > /cache/marker", "cat /cache/marker > marker.txt"} {
		workDir := t.TempDir()
		result, err := docker.RunContainer(ctx, &docker.RunOpts{
			Image:   "alpine:latest",
			Command: []string{"sh", "-c", cmd},
			WorkDir: workDir,
			Volumes: []docker.Volume{vol},
			Timeout: 30 * time.Second,
		})
		if err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		if result.ExitCode != 0 {
			t.Fatalf("run %d: exit code %d", i, result.ExitCode)
		}
		if i == 1 {
			content, _ := os.ReadFile(filepath.Join(workDir, "marker.txt"))
			if string(content) != "warm\n" {
				t.Errorf("cache not shared: got %q", content)
			}
		}
	}
}

func TestRunContainerTimeout(t *testing.T) {
	requireDocker(t)
	result, err := docker.RunContainer(context.Background(), &docker.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"sleep", "300"},
		WorkDir: t.TempDir(),
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if !result.TimedOut {
		t.Error("expected timeout")
	}
	if result.ExitCode != docker.TimeoutExitCode {
		t.Errorf("exit code: got %d, want %d", result.ExitCode, docker.TimeoutExitCode)
	}
}

func TestRunContainerCrash(t *testing.T) {
	requireDocker(t)
	result, err := docker.RunContainer(context.Background(), &docker.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"sh", "-c", "exit 1"},
		WorkDir: t.TempDir(),
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if result.ExitCode != 1 {
		t.Errorf("exit code: got %d, want 1", result.ExitCode)
	}
}

func TestPruneContainers(t *testing.T) {
	requireDocker(t)
	ctx := context.Background()
	id := filepath.Base(t.TempDir())

	result, err := docker.RunContainer(ctx, &docker.RunOpts{
		Image:   "alpine:latest",
		Command: []string{"true"},
		WorkDir: t.TempDir(),
		Labels:  map[string]string{"skillbench-prune-test": id},
		Timeout: 10 * time.Second,
	})
	if err != nil {
		t.Fatalf("RunContainer: %v", err)
	}
	if result.ExitCode != 0 {
		t.Fatalf("exit code: got %d, want 0", result.ExitCode)
	}

	// RunContainer removes its own container, so nothing carries the label
	n, err := docker.PruneContainers(ctx, "skillbench-prune-test="+id)
	if err != nil {
		t.Fatalf("PruneContainers: %v", err)
	}
	if n != 0 {
		t.Errorf("pruned: got %d, want 0", n)
	}
}
