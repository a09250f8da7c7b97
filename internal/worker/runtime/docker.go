package runtime

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
)

// DockerRuntime implements Runtime using the Docker SDK. The workspace is
// bind-mounted at /workspace inside the agent image.
type DockerRuntime struct {
	client *client.Client
}

// NewDockerRuntime creates a new Docker-based runtime.
func NewDockerRuntime() (*DockerRuntime, error) {
	// Initializes client from standard environment variables (DOCKER_HOST, etc.)
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &DockerRuntime{client: cli}, nil
}

func mapToEnvList(m map[string]string) []string {
	var env []string
	for k, v := range m {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}

// Run creates, starts, and waits for a container running the command.
// The container is removed afterwards; logs are demultiplexed into the
// result's stdout/stderr.
func (d *DockerRuntime) Run(ctx context.Context, spec RunSpec) (Result, error) {
	// Check if the image exists locally first to save time.
	if _, _, err := d.client.ImageInspectWithRaw(ctx, spec.Image); err != nil {
		reader, err := d.client.ImagePull(ctx, spec.Image, image.PullOptions{})
		if err != nil {
			return Result{}, fmt.Errorf("failed to pull image %s: %w", spec.Image, err)
		}
		io.Copy(io.Discard, reader)
		reader.Close()
	}

	containerConfig := &container.Config{
		Image:      spec.Image,
		Cmd:        []string{"sh", "-c", spec.Command},
		Env:        mapToEnvList(spec.Env),
		WorkingDir: "/workspace",
	}
	hostConfig := &container.HostConfig{
		Binds: []string{spec.WorkDir + ":/workspace"},
	}

	created, err := d.client.ContainerCreate(ctx, containerConfig, hostConfig, nil, nil, "")
	if err != nil {
		return Result{}, fmt.Errorf("failed to create container: %w", err)
	}
	defer func() {
		removeCtx := context.WithoutCancel(ctx)
		d.client.ContainerRemove(removeCtx, created.ID, container.RemoveOptions{Force: true})
	}()

	if err := d.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return Result{}, fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := d.client.ContainerWait(ctx, created.ID, container.WaitConditionNotRunning)

	var exitCode int
	select {
	case err := <-errCh:
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("container wait failed: %w", err)
	case status := <-statusCh:
		exitCode = int(status.StatusCode)
	case <-ctx.Done():
		stopCtx := context.WithoutCancel(ctx)
		timeout := 5
		d.client.ContainerStop(stopCtx, created.ID, container.StopOptions{Timeout: &timeout})
		return Result{}, ctx.Err()
	}

	res := Result{ExitCode: exitCode}

	logs, err := d.client.ContainerLogs(context.WithoutCancel(ctx), created.ID, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		return res, nil
	}
	defer logs.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, logs); err == nil {
		res.Stdout = stdout.String()
		res.Stderr = stderr.String()
	}

	return res, nil
}
