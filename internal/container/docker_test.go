// Where: internal/container/docker_test.go
// What: Tests for the Docker runtime adapter using a fake SDK client.
package container

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	cerrdefs "github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

type fakeDockerClient struct {
	buildOptions build.ImageBuildOptions
	contextFiles []string
	buildBody    string

	created    *container.Config
	hostConfig *container.HostConfig
	name       string
	exitCode   int64
	logs       string

	stopped []string
	removed []string
	calls   []string
}

func (f *fakeDockerClient) ImageBuild(_ context.Context, buildContext io.Reader, options build.ImageBuildOptions) (build.ImageBuildResponse, error) {
	f.calls = append(f.calls, "build")
	f.buildOptions = options
	tr := tar.NewReader(buildContext)
	for {
		hdr, err := tr.Next()
		if err != nil {
			break
		}
		f.contextFiles = append(f.contextFiles, hdr.Name)
	}
	return build.ImageBuildResponse{Body: io.NopCloser(strings.NewReader(f.buildBody))}, nil
}

func (f *fakeDockerClient) ContainerCreate(_ context.Context, config *container.Config, hostConfig *container.HostConfig, _ *network.NetworkingConfig, _ *ocispec.Platform, name string) (container.CreateResponse, error) {
	f.calls = append(f.calls, "create")
	f.created = config
	f.hostConfig = hostConfig
	f.name = name
	return container.CreateResponse{ID: "cid"}, nil
}

func (f *fakeDockerClient) ContainerStart(_ context.Context, _ string, _ container.StartOptions) error {
	f.calls = append(f.calls, "start")
	return nil
}

func (f *fakeDockerClient) ContainerWait(_ context.Context, _ string, _ container.WaitCondition) (<-chan container.WaitResponse, <-chan error) {
	f.calls = append(f.calls, "wait")
	statusCh := make(chan container.WaitResponse, 1)
	statusCh <- container.WaitResponse{StatusCode: f.exitCode}
	return statusCh, make(chan error)
}

func (f *fakeDockerClient) ContainerLogs(_ context.Context, _ string, _ container.LogsOptions) (io.ReadCloser, error) {
	f.calls = append(f.calls, "logs")
	var buf bytes.Buffer
	if _, err := stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(f.logs)); err != nil {
		return nil, err
	}
	return io.NopCloser(&buf), nil
}

func (f *fakeDockerClient) ContainerStop(_ context.Context, id string, _ container.StopOptions) error {
	f.calls = append(f.calls, "stop")
	f.stopped = append(f.stopped, id)
	return cerrdefs.ErrNotFound
}

func (f *fakeDockerClient) ContainerRemove(_ context.Context, id string, _ container.RemoveOptions) error {
	f.calls = append(f.calls, "remove")
	f.removed = append(f.removed, id)
	if id != "cid" {
		return cerrdefs.ErrNotFound
	}
	return nil
}

func TestBuildImage(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("ARG VERSION\nFROM fedora:${VERSION}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fake := &fakeDockerClient{buildBody: `{"stream":"Step 1/2 : ARG VERSION\n"}` + "\n" + `{"stream":"Successfully tagged mdp-fedora-38\n"}` + "\n"}

	out, err := NewRuntime(fake).BuildImage(context.Background(), ImageSpec{
		ContextDir: dir,
		Tag:        "mdp-fedora-38",
		BuildArgs:  map[string]string{"VERSION": "38"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if !strings.Contains(out, "Successfully tagged mdp-fedora-38") {
		t.Fatalf("unexpected build log %q", out)
	}
	opts := fake.buildOptions
	if len(opts.Tags) != 1 || opts.Tags[0] != "mdp-fedora-38" {
		t.Fatalf("unexpected tags %v", opts.Tags)
	}
	if v := opts.BuildArgs["VERSION"]; v == nil || *v != "38" {
		t.Fatalf("unexpected VERSION build arg %v", v)
	}
	if opts.NetworkMode != "host" || opts.Labels[ManagedLabel] != "true" {
		t.Fatalf("unexpected options %+v", opts)
	}
	if len(fake.contextFiles) != 1 || fake.contextFiles[0] != "Dockerfile" {
		t.Fatalf("unexpected build context %v", fake.contextFiles)
	}
}

func TestBuildImageReportsStreamError(t *testing.T) {
	fake := &fakeDockerClient{buildBody: `{"stream":"Step 1/2\n"}` + "\n" + `{"errorDetail":{"message":"manifest unknown"},"error":"manifest unknown"}` + "\n"}
	out, err := NewRuntime(fake).BuildImage(context.Background(), ImageSpec{ContextDir: t.TempDir(), Tag: "mdp-ubuntu-22.04"})
	if err == nil || !strings.Contains(err.Error(), "manifest unknown") {
		t.Fatalf("expected stream error, got %v", err)
	}
	if !strings.Contains(out, "Step 1/2") {
		t.Fatalf("partial output should be kept: %q", out)
	}
}

func TestRunReplacesStaleContainer(t *testing.T) {
	fake := &fakeDockerClient{logs: "+ /app/generate.sh\nbuilt\n"}
	out, err := NewRuntime(fake).Run(context.Background(), RunSpec{
		Name:      "mdp-fedora-38-rpn",
		Image:     "mdp-fedora-38",
		Workspace: "/work/mdp-fedora-38-rpn",
		MountAt:   "/app",
		Command:   []string{"/bin/sh", "-x", "/app/generate.sh"},
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if out != "+ /app/generate.sh\nbuilt\n" {
		t.Fatalf("unexpected output %q", out)
	}
	want := "stop,remove,create,wait,start,logs,remove"
	if got := strings.Join(fake.calls, ","); got != want {
		t.Fatalf("calls = %s, want %s", got, want)
	}
	if fake.name != "mdp-fedora-38-rpn" || fake.created.Image != "mdp-fedora-38" {
		t.Fatalf("unexpected create: %s %+v", fake.name, fake.created)
	}
	if fake.hostConfig.Binds[0] != "/work/mdp-fedora-38-rpn:/app" || fake.hostConfig.NetworkMode != "host" {
		t.Fatalf("unexpected host config %+v", fake.hostConfig)
	}
}

func TestRunNonZeroExitKeepsOutput(t *testing.T) {
	fake := &fakeDockerClient{exitCode: 2, logs: "cmake: not found\n"}
	out, err := NewRuntime(fake).Run(context.Background(), RunSpec{Name: "n", Image: "i", Workspace: "/w", MountAt: "/app"})
	if !errors.Is(err, ErrNonZeroExit) {
		t.Fatalf("expected ErrNonZeroExit, got %v", err)
	}
	if out != "cmake: not found\n" {
		t.Fatalf("unexpected output %q", out)
	}
}
