package docker

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/moby/moby/api/types/container"
	"github.com/moby/moby/api/types/mount"
	"github.com/moby/moby/client"
	log "github.com/sirupsen/logrus"
)

// TimeoutExitCode is reported when the container is killed at its deadline.
const TimeoutExitCode = 124

type RunOpts struct {
	Image   string
	Command []string
	WorkDir string
	Env     map[string]string
	Timeout time.Duration
	Mounts  []Mount
	// Volumes are named volumes that outlive the container.
	Volumes     []Volume
	Labels      map[string]string
	UserID      string
	CPULimit    float64
	MemoryLimit int64
}

type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

type Volume struct {
	Name   string
	Target string
}

type RunResult struct {
	ExitCode int
	TimedOut bool
	Duration time.Duration
	Logs     string
}

// mounts converts the bind mounts and named volumes into API mounts. WorkDir
// is always bound read-write at /workspace.
func (o *RunOpts) mounts() []mount.Mount {
	mounts := []mount.Mount{
		{Type: mount.TypeBind, Source: o.WorkDir, Target: "/workspace"},
	}
	for _, m := range o.Mounts {
		mounts = append(mounts, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}
	for _, v := range o.Volumes {
		mounts = append(mounts, mount.Mount{
			Type:   mount.TypeVolume,
			Source: v.Name,
			Target: v.Target,
		})
	}
	return mounts
}

func RunContainer(ctx context.Context, opts *RunOpts) (*RunResult, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	defer cli.Close()

	envSlice := make([]string, 0, len(opts.Env))
	for k, v := range opts.Env {
		envSlice = append(envSlice, k+"="+v)
	}

	initTrue := true
	hostCfg := &container.HostConfig{
		Mounts:     opts.mounts(),
		Init:       &initTrue,
		ExtraHosts: []string{"host.docker.internal:host-gateway"},
	}
	if opts.CPULimit > 0 {
		hostCfg.NanoCPUs = int64(opts.CPULimit * 1e9)
	}
	if opts.MemoryLimit > 0 {
		hostCfg.Memory = opts.MemoryLimit
	}

	labels := map[string]string{"skillbench": "true"}
	for k, v := range opts.Labels {
		labels[k] = v
	}
	containerCfg := &container.Config{
		Image:      opts.Image,
		Cmd:        opts.Command,
		Env:        envSlice,
		WorkingDir: "/workspace",
		Labels:     labels,
	}
	if opts.UserID != "" {
		containerCfg.User = opts.UserID
	}

	createResp, err := cli.ContainerCreate(ctx, client.ContainerCreateOptions{
		Config:     containerCfg,
		HostConfig: hostCfg,
	})
	if err != nil {
		return nil, fmt.Errorf("creating container: %w", err)
	}
	containerID := createResp.ID
	defer func() {
		cli.ContainerRemove(context.Background(), containerID, client.ContainerRemoveOptions{Force: true})
	}()

	start := time.Now()
	if _, err := cli.ContainerStart(ctx, containerID, client.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("starting container: %w", err)
	}
	log.WithFields(log.Fields{"container": shortID(containerID), "image": opts.Image}).Debug("container started")

	timeoutCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	waitResult := cli.ContainerWait(timeoutCtx, containerID, client.ContainerWaitOptions{
		Condition: container.WaitConditionNotRunning,
	})
	for {
		select {
		case err := <-waitResult.Error:
			if err != nil {
				cli.ContainerKill(context.Background(), containerID, client.ContainerKillOptions{Signal: "SIGKILL"})
				log.WithField("container", shortID(containerID)).Warnf("agent timed out after %s", opts.Timeout)
				return &RunResult{
					ExitCode: TimeoutExitCode,
					TimedOut: true,
					Duration: time.Since(start),
					Logs:     containerLogs(cli, containerID, ""),
				}, nil
			}
			// nil error means no error on this channel; wait for result
		case status := <-waitResult.Result:
			return &RunResult{
				ExitCode: int(status.StatusCode),
				Duration: time.Since(start),
				Logs:     containerLogs(cli, containerID, "200"),
			}, nil
		}
	}
}

// PruneContainers removes stopped containers carrying label and returns how
// many were deleted.
func PruneContainers(ctx context.Context, label string) (int, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return 0, fmt.Errorf("creating docker client: %w", err)
	}
	defer cli.Close()

	res, err := cli.ContainerPrune(ctx, client.ContainerPruneOptions{
		Filters: make(client.Filters).Add("label", label),
	})
	if err != nil {
		return 0, fmt.Errorf("pruning containers: %w", err)
	}
	log.WithFields(log.Fields{"label": label, "reclaimed": res.Report.SpaceReclaimed}).Debug("containers pruned")
	return len(res.Report.ContainersDeleted), nil
}

func containerLogs(cli *client.Client, id, tail string) string {
	logReader, err := cli.ContainerLogs(context.Background(), id, client.ContainerLogsOptions{ShowStdout: true, ShowStderr: true, Tail: tail})
	if err != nil || logReader == nil {
		return ""
	}
	defer logReader.Close()
	data, _ := io.ReadAll(logReader)
	return string(data)
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
