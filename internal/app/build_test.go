// Where: internal/app/build_test.go
// What: Tests for build settings layering.
// Why: Keep flag, env and global config precedence stable.
package app

import (
	"path/filepath"
	"testing"

	"github.com/poruru/mdpack/internal/config"
)

func TestResolveBuildSettingsLayering(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("MDPACK_CONFIG_PATH", configPath)
	cfg := config.DefaultGlobalConfig()
	cfg.Root = "/opt/recipes"
	cfg.WorkDir = "/var/tmp/out"
	cfg.RequireArtifact = true
	cfg.Publish = config.PublishConfig{Bucket: "cfg-bucket", Prefix: "nightly", Region: "eu-west-1"}
	if err := config.SaveGlobalConfig(configPath, cfg); err != nil {
		t.Fatal(err)
	}

	cli := CLI{WorkDir: "/tmp/flag"}
	cli.Build.PublishBucket = "flag-bucket"
	cli.Build.SkipTests = true

	settings, err := resolveBuildSettings(cli)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	opts := settings.Options
	if opts.Root != "/opt/recipes" || opts.WorkDir != "/tmp/flag" {
		t.Fatalf("unexpected paths %+v", opts)
	}
	if !opts.SkipTests || !opts.RequireArtifact {
		t.Fatalf("boolean options not merged: %+v", opts)
	}
	pub := settings.Publish
	if pub.Bucket != "flag-bucket" || pub.Prefix != "nightly" || pub.Region != "eu-west-1" {
		t.Fatalf("unexpected publish options %+v", pub)
	}
}

func TestResolveBuildSettingsDefaults(t *testing.T) {
	t.Setenv("MDPACK_CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))

	settings, err := resolveBuildSettings(CLI{Root: "recipes"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if settings.Options.WorkDir != defaultWorkDir || settings.Options.Root != "recipes" {
		t.Fatalf("unexpected defaults %+v", settings.Options)
	}
	if settings.Publish.Enabled() {
		t.Fatalf("publishing must be off without a bucket")
	}
}

func TestFirstNonEmpty(t *testing.T) {
	if got := firstNonEmpty("", "b", "c"); got != "b" {
		t.Fatalf("got %q", got)
	}
	if got := firstNonEmpty("", ""); got != "" {
		t.Fatalf("got %q", got)
	}
}
