// Where: internal/app/resolve.go
// What: resolve command printing the per-target resolved manifest.
// Why: Let manifest authors inspect overrides and distro defaults without building anything.
package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/poruru/mdpack/internal/manifest"
	"github.com/poruru/mdpack/internal/pipeline"
	"gopkg.in/yaml.v3"
	sigsyaml "sigs.k8s.io/yaml"
)

var (
	errRuntimeUnavailable = errors.New("container runtime is not configured")
	errTargetNotDeclared  = errors.New("target is not declared in the manifest")
)

type ResolveCmd struct {
	Target   string `short:"t" required:"" help:"Target as <distro>:<version>"`
	Output   string `short:"o" enum:"yaml,json" default:"yaml" help:"Output format (yaml|json)"`
	Manifest string `arg:"" name:"manifest" help:"Manifest file"`
}

func runResolve(cli CLI, _ Dependencies, out io.Writer) int {
	target, err := manifest.ParseTarget(cli.Resolve.Target)
	if err != nil {
		return exitWithError(out, err)
	}
	settings, err := resolveBuildSettings(cli)
	if err != nil {
		return exitWithError(out, err)
	}

	runner := &pipeline.Runner{Options: settings.Options}
	plan, err := runner.Plan(cli.Resolve.Manifest)
	if err != nil {
		return exitWithError(out, err)
	}
	for _, planned := range plan.Targets {
		if planned.Target != target {
			continue
		}
		if planned.Err != nil {
			return exitWithError(out, planned.Err)
		}
		payload, err := encodeResolved(planned.Model.Root(), cli.Resolve.Output)
		if err != nil {
			return exitWithError(out, err)
		}
		_, _ = out.Write(payload)
		return 0
	}
	return exitWithError(out, fmt.Errorf("%w: %s", errTargetNotDeclared, target))
}

// encodeResolved renders the tree as YAML in manifest key order, or as
// indented JSON.
func encodeResolved(root *manifest.Node, format string) ([]byte, error) {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(root.YAML()); err != nil {
		return nil, err
	}
	if err := encoder.Close(); err != nil {
		return nil, err
	}
	if format != "json" {
		return buf.Bytes(), nil
	}

	payload, err := sigsyaml.YAMLToJSON(buf.Bytes())
	if err != nil {
		return nil, err
	}
	var indented bytes.Buffer
	if err := json.Indent(&indented, payload, "", "  "); err != nil {
		return nil, err
	}
	indented.WriteByte('\n')
	return indented.Bytes(), nil
}
