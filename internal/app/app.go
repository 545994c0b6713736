// Where: internal/app/app.go
// What: CLI entrypoint logic.
// Why: Provide a testable command dispatcher.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/poruru/mdpack/internal/config"
	"github.com/poruru/mdpack/internal/meta"
	"github.com/poruru/mdpack/internal/pipeline"
	"github.com/poruru/mdpack/internal/publish"
	"github.com/poruru/mdpack/internal/source"
	"github.com/poruru/mdpack/internal/version"
)

const defaultWorkDir = "."

// Dependencies holds the collaborators injected by cmd/mdpack. Factories are
// only invoked by commands that need them.
type Dependencies struct {
	Context      context.Context
	Out          io.Writer
	ErrOut       io.Writer
	NewRuntime   func() (pipeline.Runtime, io.Closer, error)
	NewPublisher func(ctx context.Context, opts publish.Options) (pipeline.Publisher, error)
	Sources      pipeline.SourceAcquirer
}

// CLI defines the command-line interface structure parsed by Kong.
type CLI struct {
	Root    string `name:"root" env:"MDPACK_ROOT" help:"Recipes root holding distro/ and scripts/ (default: nearest mdpack/ directory)"`
	WorkDir string `name:"work-dir" env:"MDPACK_WORK_DIR" help:"Directory for workspaces and delivered packages (default: .)"`
	EnvFile string `name:"env-file" help:"Path to .env file"`
	Verbose bool   `short:"v" help:"Enable debug logging on stderr"`
	NoColor bool   `name:"no-color" help:"Disable colored output"`

	Build   BuildCmd   `cmd:"" default:"withargs" help:"Build packages for every target of each manifest"`
	Resolve ResolveCmd `cmd:"" help:"Print the resolved manifest of one target"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

type VersionCmd struct{}

// Run is the main entry point for CLI command execution.
// Returns 0 on success, 1 on error.
func Run(args []string, deps Dependencies) int {
	out := deps.Out
	if out == nil {
		out = os.Stdout
	}

	cli := CLI{}
	exited, exitCode := false, 0
	parser, err := kong.New(&cli,
		kong.Name(meta.AppName),
		kong.Description("Build deb/rpm packages from a manifest in per-distro containers."),
		kong.Writers(out, out),
		kong.Exit(func(code int) { exited, exitCode = true, code }),
	)
	if err != nil {
		return exitWithError(out, err)
	}

	if len(args) == 0 {
		return runNoArgs(parser)
	}

	if err := config.LoadEnvFiles(envFileFromArgs(args), config.DefaultEnvFile); err != nil {
		return exitWithError(out, err)
	}

	ctx, err := parser.Parse(args)
	if exited {
		return exitCode
	}
	if err != nil {
		return exitWithError(out, err)
	}

	command := ""
	if node := ctx.Selected(); node != nil {
		command = node.Name
	}
	if handler, ok := commandHandlers[command]; ok {
		return handler(cli, deps.withDefaults(out), out)
	}

	fmt.Fprintln(out, "unknown command")
	return 1
}

type commandHandler func(CLI, Dependencies, io.Writer) int

var commandHandlers = map[string]commandHandler{
	"build":   runBuild,
	"resolve": runResolve,
	"version": runVersion,
}

// runVersion prints the version information of the CLI.
func runVersion(_ CLI, _ Dependencies, out io.Writer) int {
	fmt.Fprintln(out, version.GetVersion())
	return 0
}

// runNoArgs prints usage and fails, matching `mdpack` invoked without manifests.
func runNoArgs(parser *kong.Kong) int {
	ctx, err := kong.Trace(parser, nil)
	if err == nil {
		_ = ctx.PrintUsage(false)
	}
	return 1
}

// envFileFromArgs extracts --env-file before parsing so that the file can
// feed kong's env-backed flags.
func envFileFromArgs(args []string) string {
	for i, arg := range args {
		if arg == "--env-file" && i+1 < len(args) {
			return args[i+1]
		}
		if value, ok := strings.CutPrefix(arg, "--env-file="); ok {
			return value
		}
	}
	return ""
}

func (d Dependencies) withDefaults(out io.Writer) Dependencies {
	if d.Context == nil {
		d.Context = context.Background()
	}
	if d.Out == nil {
		d.Out = out
	}
	if d.ErrOut == nil {
		d.ErrOut = os.Stderr
	}
	if d.Sources == nil {
		d.Sources = source.NewAcquirer(nil, nil)
	}
	if d.NewPublisher == nil {
		d.NewPublisher = newS3Publisher
	}
	return d
}

func newS3Publisher(ctx context.Context, opts publish.Options) (pipeline.Publisher, error) {
	client, err := publish.NewS3Client(ctx, opts)
	if err != nil {
		return nil, err
	}
	var index *publish.Index
	if opts.IndexTable != "" {
		dynamo, err := publish.NewDynamoDBClient(ctx, opts)
		if err != nil {
			return nil, err
		}
		index = publish.NewIndex(dynamo, opts.IndexTable)
	}
	return publish.New(client, opts, index), nil
}

func newLogger(cli CLI, out io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if cli.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

func exitWithError(out io.Writer, err error) int {
	fmt.Fprintln(out, err)
	return 1
}
