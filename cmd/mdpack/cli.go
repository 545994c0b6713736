// Where: cmd/mdpack/cli.go
// What: CLI dependency wiring helpers.
// Why: Centralize construction for testability.
package main

import (
	"context"
	"io"
	"os"

	"github.com/poruru/mdpack/internal/app"
	"github.com/poruru/mdpack/internal/container"
	"github.com/poruru/mdpack/internal/pipeline"
)

var newDockerClient = container.NewDockerClient

// buildDependencies constructs the runtime dependencies of the CLI. The
// Docker client is created lazily so that commands such as resolve and
// version work without a daemon.
func buildDependencies(ctx context.Context) app.Dependencies {
	return app.Dependencies{
		Context:    ctx,
		Out:        os.Stdout,
		ErrOut:     os.Stderr,
		NewRuntime: newRuntime,
	}
}

func newRuntime() (pipeline.Runtime, io.Closer, error) {
	client, err := newDockerClient()
	if err != nil {
		return nil, nil, err
	}
	return container.NewRuntime(client), asCloser(client), nil
}

// asCloser returns the client as an io.Closer, or nil when it cannot be closed.
func asCloser(client container.DockerClient) io.Closer {
	if closer, ok := client.(io.Closer); ok {
		return closer
	}
	return nil
}
