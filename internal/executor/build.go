package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
)

// Builder wraps a docker client the way core/container.go's RunContainer
// wraps one per call, except held for the lifetime of a worker process
// instead of dialed fresh every time.
type Builder struct {
	cli *client.Client
}

func NewBuilder() (*Builder, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("creating docker client: %w", err)
	}
	return &Builder{cli: cli}, nil
}

// BuildImage tars the submission's build context and builds it under tag,
// returning an error if the build fails. Equivalent in spirit to
// createDockerfile+ImagePull in backend/runner.go, except here the
// Dockerfile is the submission's own (already policy-checked) one instead
// of one synthesized by the platform.
func (b *Builder) BuildImage(ctx context.Context, buildDir, tag string) error {
	tarCtx, err := archive.TarWithOptions(buildDir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("tarring build context: %w", err)
	}
	defer tarCtx.Close()

	resp, err := b.cli.ImageBuild(ctx, tarCtx, types.ImageBuildOptions{
		Tags:           []string{tag},
		Dockerfile:     "Dockerfile",
		Remove:         true,
		ForceRemove:    true,
		NetworkMode:    "none",
		SuppressOutput: false,
	})
	if err != nil {
		return fmt.Errorf("building image %s: %w", tag, err)
	}
	defer resp.Body.Close()

	return drainBuildOutput(resp.Body)
}

// drainBuildOutput reads the build's streamed JSON messages and surfaces
// the first "errorDetail" it finds as a Go error, the way the docker CLI
// itself treats a zero exit code with an embedded build error.
func drainBuildOutput(r io.Reader) error {
	dec := json.NewDecoder(r)
	for {
		var msg struct {
			Error       string `json:"error"`
			ErrorDetail struct {
				Message string `json:"message"`
			} `json:"errorDetail"`
		}
		if err := dec.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("reading build output: %w", err)
		}
		if msg.Error != "" {
			return fmt.Errorf("build failed: %s", msg.Error)
		}
		if msg.ErrorDetail.Message != "" {
			return fmt.Errorf("build failed: %s", msg.ErrorDetail.Message)
		}
	}
}

// RemoveImage drops a built image once its runs are all finished.
func (b *Builder) RemoveImage(ctx context.Context, tag string) error {
	_, err := b.cli.ImageRemove(ctx, tag, types.ImageRemoveOptions{Force: true})
	return err
}
