// Where: internal/container/docker.go
// What: Container runtime adapter over the Docker Engine SDK (image build, one-shot runs).
// Why: Pipeline stages need build/run with captured output and no dependency on the docker CLI.
package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/moby/go-archive"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/poruru/mdpack/internal/meta"
)

var ErrNonZeroExit = errors.New("container exited with non-zero status")

const (
	ManagedLabel = meta.LabelPrefix + ".managed"
	TargetLabel  = meta.LabelPrefix + ".target"

	hostNetwork = "host"
)

// DockerClient defines the subset of Docker SDK methods used by this package.
// This interface enables mocking the Docker client in tests.
type DockerClient interface {
	ImageBuild(ctx context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error)
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerWait(ctx context.Context, containerID string, condition container.WaitCondition) (<-chan container.WaitResponse, <-chan error)
	ContainerLogs(ctx context.Context, containerID string, options container.LogsOptions) (io.ReadCloser, error)
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
}

// NewDockerClient constructs a Docker SDK client using environment defaults.
func NewDockerClient() (DockerClient, error) {
	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	return dockerClient, nil
}

// ImageSpec describes one image build.
type ImageSpec struct {
	ContextDir string
	Tag        string
	BuildArgs  map[string]string
	Labels     map[string]string
}

// RunSpec describes one container run with the workspace bind-mounted.
type RunSpec struct {
	Name      string
	Image     string
	Workspace string
	MountAt   string
	Command   []string
	Labels    map[string]string
}

// Runtime builds images and runs one-shot containers.
type Runtime struct {
	client DockerClient
}

// NewRuntime wraps a docker client.
func NewRuntime(client DockerClient) *Runtime {
	return &Runtime{client: client}
}

// BuildImage builds spec.ContextDir and returns the build log.
func (r *Runtime) BuildImage(ctx context.Context, spec ImageSpec) (string, error) {
	buildContext, err := archive.TarWithOptions(spec.ContextDir, &archive.TarOptions{})
	if err != nil {
		return "", fmt.Errorf("pack build context %s: %w", spec.ContextDir, err)
	}
	defer buildContext.Close()

	args := make(map[string]*string, len(spec.BuildArgs))
	for key, value := range spec.BuildArgs {
		args[key] = &value
	}
	labels := map[string]string{ManagedLabel: "true"}
	for key, value := range spec.Labels {
		labels[key] = value
	}

	resp, err := r.client.ImageBuild(ctx, buildContext, build.ImageBuildOptions{
		Tags:        []string{spec.Tag},
		BuildArgs:   args,
		Labels:      labels,
		NetworkMode: hostNetwork,
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return "", fmt.Errorf("image build %s: %w", spec.Tag, err)
	}
	defer resp.Body.Close()

	var out bytes.Buffer
	if err := jsonmessage.DisplayJSONMessagesStream(resp.Body, &out, 0, false, nil); err != nil {
		return out.String(), fmt.Errorf("image build %s: %w", spec.Tag, err)
	}
	return out.String(), nil
}

// Remove stops and deletes a container by name. A missing container is not an error.
func (r *Runtime) Remove(ctx context.Context, name string) error {
	if err := r.client.ContainerStop(ctx, name, container.StopOptions{}); err != nil && !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("stop %s: %w", name, err)
	}
	if err := r.client.ContainerRemove(ctx, name, container.RemoveOptions{Force: true}); err != nil && !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("remove %s: %w", name, err)
	}
	return nil
}

// Run replaces any stale container named spec.Name, runs spec.Command to
// completion and returns the combined stdout/stderr. A non-zero exit status
// is reported as ErrNonZeroExit together with the output.
func (r *Runtime) Run(ctx context.Context, spec RunSpec) (string, error) {
	if err := r.Remove(ctx, spec.Name); err != nil {
		return "", err
	}

	labels := map[string]string{ManagedLabel: "true"}
	for key, value := range spec.Labels {
		labels[key] = value
	}
	created, err := r.client.ContainerCreate(ctx,
		&container.Config{
			Image:  spec.Image,
			Cmd:    spec.Command,
			Labels: labels,
		},
		&container.HostConfig{
			Binds:       []string{spec.Workspace + ":" + spec.MountAt},
			NetworkMode: hostNetwork,
		},
		nil, nil, spec.Name)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", spec.Name, err)
	}
	defer func() {
		_ = r.client.ContainerRemove(context.WithoutCancel(ctx), created.ID, container.RemoveOptions{Force: true})
	}()

	statusCh, errCh := r.client.ContainerWait(ctx, created.ID, container.WaitConditionNextExit)
	if err := r.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return "", fmt.Errorf("start %s: %w", spec.Name, err)
	}

	var exitCode int64
	select {
	case err := <-errCh:
		if err != nil {
			return "", fmt.Errorf("wait %s: %w", spec.Name, err)
		}
	case status := <-statusCh:
		if status.Error != nil && status.Error.Message != "" {
			return "", fmt.Errorf("wait %s: %s", spec.Name, status.Error.Message)
		}
		exitCode = status.StatusCode
	}

	output, err := r.logs(ctx, created.ID)
	if err != nil {
		return "", err
	}
	if exitCode != 0 {
		return output, fmt.Errorf("%w: %s exited with %d", ErrNonZeroExit, spec.Name, exitCode)
	}
	return output, nil
}

func (r *Runtime) logs(ctx context.Context, id string) (string, error) {
	reader, err := r.client.ContainerLogs(ctx, id, container.LogsOptions{ShowStdout: true, ShowStderr: true})
	if err != nil {
		return "", fmt.Errorf("logs %s: %w", id, err)
	}
	defer reader.Close()

	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, reader); err != nil {
		return out.String(), fmt.Errorf("read logs %s: %w", id, err)
	}
	return out.String(), nil
}
