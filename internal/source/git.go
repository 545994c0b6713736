// Where: internal/source/git.go
// What: Git client used for git sources (remote tag lookup, clone, checkout).
// Why: Shell out to the git binary through an injectable runner so tests never touch the network.
package source

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// CommandRunner executes external commands and returns their combined output.
type CommandRunner interface {
	RunOutput(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// ExecRunner implements CommandRunner using os/exec.
type ExecRunner struct{}

func (ExecRunner) RunOutput(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Git runs git commands through a CommandRunner.
type Git struct {
	runner CommandRunner
	bin    string
}

// GitOption configures Git.
type GitOption func(*Git)

// WithGitPath sets a custom git executable path.
func WithGitPath(path string) GitOption {
	return func(g *Git) {
		g.bin = path
	}
}

// NewGit creates a git client. A nil runner uses ExecRunner.
func NewGit(runner CommandRunner, opts ...GitOption) *Git {
	if runner == nil {
		runner = ExecRunner{}
	}
	g := &Git{runner: runner, bin: "git"}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// RemoteTag returns the commit a remote tag points to. For annotated tags
// the peeled "^{}" entry is preferred over the tag object itself.
func (g *Git) RemoteTag(ctx context.Context, remote, tag string) (string, error) {
	ref := "refs/tags/" + tag
	output, err := g.output(ctx, "", "ls-remote", remote, ref, ref+"^{}")
	if err != nil {
		return "", fmt.Errorf("ls-remote %s: %w", tag, err)
	}

	var direct, peeled string
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		// format: <hash>\trefs/tags/<tag>[^{}]
		parts := strings.Split(strings.TrimSpace(line), "\t")
		if len(parts) != 2 {
			continue
		}
		switch parts[1] {
		case ref:
			direct = parts[0]
		case ref + "^{}":
			peeled = parts[0]
		}
	}
	if peeled != "" {
		return peeled, nil
	}
	if direct != "" {
		return direct, nil
	}
	return "", fmt.Errorf("%w: %s", ErrTagNotFound, tag)
}

// Clone clones remote into dir, checks out ref and syncs submodules.
func (g *Git) Clone(ctx context.Context, remote, ref, dir string) error {
	if _, err := g.output(ctx, "", "clone", "--recurse-submodules", remote, dir); err != nil {
		return fmt.Errorf("clone: %w", err)
	}
	if _, err := g.output(ctx, dir, "checkout", ref); err != nil {
		return fmt.Errorf("checkout %s: %w", ref, err)
	}
	if _, err := g.output(ctx, dir, "submodule", "update", "--init", "--recursive"); err != nil {
		return fmt.Errorf("submodule update: %w", err)
	}
	return nil
}

func (g *Git) output(ctx context.Context, dir string, args ...string) (string, error) {
	out, err := g.runner.RunOutput(ctx, dir, g.bin, args...)
	if err != nil {
		if msg := strings.TrimSpace(string(out)); msg != "" {
			return "", fmt.Errorf("%w: %s", err, msg)
		}
		return "", err
	}
	return string(out), nil
}
