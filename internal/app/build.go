// Where: internal/app/build.go
// What: build command (default command when manifests are given).
// Why: Wire configuration, runtime and console into the pipeline and map reports to exit codes.
package app

import (
	"io"
	"os"
	"path/filepath"

	"github.com/poruru/mdpack/internal/config"
	"github.com/poruru/mdpack/internal/pipeline"
	"github.com/poruru/mdpack/internal/publish"
	"github.com/poruru/mdpack/internal/ui"
)

type BuildCmd struct {
	Manifests       []string `arg:"" name:"manifest" help:"Manifest files, processed independently in order"`
	SkipTests       bool     `name:"skip-tests" help:"Do not run the distro test driver"`
	RequireArtifact bool     `name:"require-artifact" help:"Fail a target when no package file was produced"`
	PublishBucket   string   `name:"publish-bucket" env:"MDPACK_PUBLISH_BUCKET" help:"Upload delivered packages to this S3 bucket"`
	PublishPrefix   string   `name:"publish-prefix" env:"MDPACK_PUBLISH_PREFIX" help:"Key prefix for uploaded packages"`
	PublishEndpoint string   `name:"publish-endpoint" env:"MDPACK_PUBLISH_ENDPOINT" help:"Custom S3-compatible endpoint URL"`
	PublishIndex    string   `name:"publish-index-table" env:"MDPACK_PUBLISH_INDEX_TABLE" help:"DynamoDB table recording every uploaded package"`
}

// buildSettings is the effective configuration after layering defaults,
// the global config file and command-line values.
type buildSettings struct {
	Options pipeline.Options
	Publish publish.Options
}

func resolveBuildSettings(cli CLI) (buildSettings, error) {
	path, err := config.GlobalConfigPath()
	if err != nil {
		return buildSettings{}, err
	}
	cfg, err := config.LoadGlobalConfig(path)
	if err != nil {
		return buildSettings{}, err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return buildSettings{}, err
	}

	settings := buildSettings{
		Options: pipeline.Options{
			Root:            config.ResolveRecipesRoot(cli.Root, cfg.Root, cwd),
			WorkDir:         firstNonEmpty(cli.WorkDir, cfg.WorkDir, defaultWorkDir),
			SkipTests:       cli.Build.SkipTests || cfg.SkipTests,
			RequireArtifact: cli.Build.RequireArtifact || cfg.RequireArtifact,
		},
		Publish: publish.Options{
			Bucket:        firstNonEmpty(cli.Build.PublishBucket, cfg.Publish.Bucket),
			Prefix:        firstNonEmpty(cli.Build.PublishPrefix, cfg.Publish.Prefix),
			Endpoint:      firstNonEmpty(cli.Build.PublishEndpoint, cfg.Publish.Endpoint),
			Region:        cfg.Publish.Region,
			IndexTable:    firstNonEmpty(cli.Build.PublishIndex, cfg.Publish.IndexTable),
			IndexEndpoint: cfg.Publish.IndexEndpoint,
		},
	}
	return settings, nil
}

// runBuild processes every manifest. The exit code is 1 when any file fails
// validation or any target fails.
func runBuild(cli CLI, deps Dependencies, out io.Writer) int {
	settings, err := resolveBuildSettings(cli)
	if err != nil {
		return exitWithError(out, err)
	}
	if deps.NewRuntime == nil {
		return exitWithError(out, errRuntimeUnavailable)
	}
	runtime, closer, err := deps.NewRuntime()
	if err != nil {
		return exitWithError(out, err)
	}
	if closer != nil {
		defer closer.Close()
	}

	console := ui.New(out)
	if cli.NoColor {
		console.Color = false
	}
	runner := &pipeline.Runner{
		Runtime:  runtime,
		Sources:  deps.Sources,
		Observer: console,
		Logger:   newLogger(cli, deps.ErrOut),
		Options:  settings.Options,
	}
	if settings.Publish.Enabled() {
		publisher, err := deps.NewPublisher(deps.Context, settings.Publish)
		if err != nil {
			return exitWithError(out, err)
		}
		runner.Publisher = publisher
	}

	exitCode := 0
	for _, path := range cli.Build.Manifests {
		console.Header("📦", "Manifest "+filepath.Base(path))
		report, err := runner.RunFile(deps.Context, path)
		if err != nil {
			console.Error(path+": nothing built", err.Error())
			exitCode = 1
			continue
		}
		for _, target := range report.Targets {
			if target.Err == nil && target.Artifact != "" {
				console.Success("Delivered " + target.Artifact)
			}
		}
		if report.Failed() {
			exitCode = 1
		}
	}
	return exitCode
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
