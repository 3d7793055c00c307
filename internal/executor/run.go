package executor

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// RunSpec carries the isolation parameters docker_manager.py's run_container
// hardcodes per-call: no network, read-only rootfs, a tmpfs scratch area,
// memory/CPU caps and the shared-input/per-participant-output bind mounts.
type RunSpec struct {
	Image         string
	ContainerName string
	InputDir      string
	OutputDir     string
	MemoryLimitMB int64
	CPUQuota      float64
	Timeout       time.Duration
}

// RunResult mirrors ContainerResult from docker_manager.py.
type RunResult struct {
	ExitCode int64
	Duration time.Duration
	TimedOut bool
	Logs     string
}

// Run starts an isolated container from spec.Image, waits up to
// spec.Timeout for it to finish, and force-kills and removes it either
// way — equivalent to docker_manager.py's subprocess.run+TimeoutExpired
// handling, expressed with the docker client instead of shelling out, in
// the idiom core/container.go and backend/runner.go already use for the
// build/run lifecycle.
func Run(ctx context.Context, cli *client.Client, spec RunSpec) (RunResult, error) {
	start := time.Now()

	resp, err := cli.ContainerCreate(ctx,
		&dockercontainer.Config{
			Image: spec.Image,
			Tty:   false,
		},
		&dockercontainer.HostConfig{
			NetworkMode:    "none",
			ReadonlyRootfs: true,
			Tmpfs:          map[string]string{"/tmp": "size=100m"},
			Resources: dockercontainer.Resources{
				Memory:   spec.MemoryLimitMB * 1024 * 1024,
				NanoCPUs: int64(spec.CPUQuota * 1e9),
			},
			Mounts: []mount.Mount{
				{Type: mount.TypeBind, Source: spec.InputDir, Target: "/data/input", ReadOnly: true},
				{Type: mount.TypeBind, Source: spec.OutputDir, Target: "/data/output", ReadOnly: false},
			},
		},
		nil, nil, spec.ContainerName,
	)
	if err != nil {
		return RunResult{}, fmt.Errorf("creating container: %w", err)
	}
	defer removeContainer(cli, resp.ID)

	if err := cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return RunResult{}, fmt.Errorf("starting container: %w", err)
	}

	runCtx, cancel := context.WithTimeout(ctx, spec.Timeout)
	defer cancel()

	statusCh, errCh := cli.ContainerWait(runCtx, resp.ID, dockercontainer.WaitConditionNotRunning)
	select {
	case <-runCtx.Done():
		cli.ContainerKill(ctx, resp.ID, "KILL")
		return RunResult{
			ExitCode: -1,
			Duration: time.Since(start),
			TimedOut: true,
		}, nil
	case err := <-errCh:
		if err != nil {
			return RunResult{}, fmt.Errorf("waiting for container: %w", err)
		}
		return RunResult{}, fmt.Errorf("container wait closed unexpectedly")
	case status := <-statusCh:
		logs, logErr := collectLogs(ctx, cli, resp.ID)
		if logErr != nil {
			logs = ""
		}
		return RunResult{
			ExitCode: status.StatusCode,
			Duration: time.Since(start),
			TimedOut: false,
			Logs:     logs,
		}, nil
	}
}

func collectLogs(ctx context.Context, cli *client.Client, containerID string) (string, error) {
	out, err := cli.ContainerLogs(ctx, containerID, types.ContainerLogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", err
	}
	defer out.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, out); err != nil {
		return "", err
	}
	combined := stdout.String() + stderr.String()
	if len(combined) > 10000 {
		combined = combined[:10000]
	}
	return combined, nil
}

func removeContainer(cli *client.Client, containerID string) {
	_ = cli.ContainerRemove(context.Background(), containerID, types.ContainerRemoveOptions{Force: true})
}
