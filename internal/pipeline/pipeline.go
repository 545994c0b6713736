// Where: internal/pipeline/pipeline.go
// What: Per-manifest build orchestration (plan every target, then run stages target by target).
// Why: Validation failures stop a file before any build; a failing target never stops the next one.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"

	"github.com/poruru/mdpack/internal/container"
	"github.com/poruru/mdpack/internal/infra/fileops"
	"github.com/poruru/mdpack/internal/manifest"
	"github.com/poruru/mdpack/internal/meta"
	"github.com/poruru/mdpack/internal/pkgdesc"
	"github.com/poruru/mdpack/internal/publish"
	"github.com/poruru/mdpack/internal/workspace"
)

// Stage names one step of a target build.
type Stage string

const (
	StageResolve   Stage = "resolve"
	StageImage     Stage = "image"
	StageWorkspace Stage = "workspace"
	StageSource    Stage = "source"
	StageBuild     Stage = "build"
	StageCollect   Stage = "collect"
	StagePublish   Stage = "publish"
	StageTest      Stage = "test"
)

// Status is the outcome of a stage.
type Status int

const (
	StatusOK Status = iota
	StatusFailed
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "FAILED"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// StageResult is reported for every stage that ran or was skipped.
type StageResult struct {
	Target manifest.Target
	Stage  Stage
	Label  string
	Status Status
	Output string
	Err    error
}

// Runtime builds images and runs one-shot containers.
type Runtime interface {
	BuildImage(ctx context.Context, spec container.ImageSpec) (string, error)
	Run(ctx context.Context, spec container.RunSpec) (string, error)
}

// SourceAcquirer populates a workspace source directory.
type SourceAcquirer interface {
	Acquire(ctx context.Context, src manifest.Source, baseDir, dest string) error
}

// Publisher uploads delivered packages.
type Publisher interface {
	Publish(ctx context.Context, artifact publish.Artifact) (string, error)
}

// Observer receives progress events in order.
type Observer interface {
	TargetStarted(target manifest.Target)
	StageFinished(result StageResult)
}

type nopObserver struct{}

func (nopObserver) TargetStarted(manifest.Target) {}
func (nopObserver) StageFinished(StageResult)     {}

// Options tune a pipeline run.
type Options struct {
	// Root is the recipes root holding distro/ and scripts/.
	Root string
	// WorkDir receives workspaces and delivered packages.
	WorkDir         string
	SkipTests       bool
	RequireArtifact bool
}

// Runner executes manifests.
type Runner struct {
	Runtime   Runtime
	Sources   SourceAcquirer
	Publisher Publisher
	Observer  Observer
	Logger    *slog.Logger
	Options   Options
}

// PlannedTarget is a target resolved ahead of execution. Err is set when the
// target cannot be built at all (a malformed distro entry or missing distro
// defaults).
type PlannedTarget struct {
	Target manifest.Target
	Model  manifest.Model
	Err    error
}

// Plan is the validated execution plan of one manifest file.
type Plan struct {
	Path    string
	BaseDir string
	Targets []PlannedTarget
}

// TargetReport summarizes one target run.
type TargetReport struct {
	Target    manifest.Target
	Results   []StageResult
	Artifact  string
	Published string
	Err       error
}

// FileReport summarizes one manifest file run.
type FileReport struct {
	Path    string
	Targets []TargetReport
}

// Failed reports whether any target failed.
func (r FileReport) Failed() bool {
	for _, target := range r.Targets {
		if target.Err != nil {
			return true
		}
	}
	return false
}

// Plan loads a manifest and resolves and validates every declared target.
// A schema violation in any target fails the whole file; a malformed distro
// entry only fails that entry.
func (r *Runner) Plan(manifestPath string) (*Plan, error) {
	absPath, err := filepath.Abs(manifestPath)
	if err != nil {
		return nil, configError(err)
	}
	user, err := manifest.LoadFile(absPath)
	if err != nil {
		return nil, configError(err)
	}
	entries, err := manifest.TargetEntries(user)
	if err != nil {
		return nil, configError(err)
	}
	var targets []manifest.Target
	for _, entry := range entries {
		if entry.Err == nil {
			targets = append(targets, entry.Target)
		}
	}

	recipes := workspace.Recipes{Root: r.Options.Root}
	q := manifest.NewQualifiers(targets, recipes.Families()...)
	plan := &Plan{Path: manifestPath, BaseDir: filepath.Dir(absPath)}
	var errs []error
	for _, entry := range entries {
		target := entry.Target
		planned := PlannedTarget{Target: target}
		if entry.Err != nil {
			planned.Err = configError(entry.Err)
			plan.Targets = append(plan.Targets, planned)
			continue
		}
		defaults, err := manifest.LoadFile(recipes.Defaults(target.Distro))
		if err != nil {
			planned.Err = configError(fmt.Errorf("distro defaults for %s: %w", target, err))
			plan.Targets = append(plan.Targets, planned)
			continue
		}
		model, err := manifest.ForTarget(user, defaults, q, target)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", target, err))
			continue
		}
		planned.Model = model
		plan.Targets = append(plan.Targets, planned)
		r.logger().Debug("target resolved", "manifest", manifestPath, "target", target.String())
	}
	if len(errs) > 0 {
		return nil, configError(errors.Join(errs...))
	}
	return plan, nil
}

// RunFile plans and executes one manifest. The error is non-nil only when
// planning failed; per-target failures are in the report.
func (r *Runner) RunFile(ctx context.Context, manifestPath string) (FileReport, error) {
	report := FileReport{Path: manifestPath}
	plan, err := r.Plan(manifestPath)
	if err != nil {
		return report, err
	}
	workDir, err := filepath.Abs(r.Options.WorkDir)
	if err != nil {
		return report, &StageError{Kind: KindWorkspace, Stage: StageWorkspace, Err: err}
	}
	for _, planned := range plan.Targets {
		if ctx.Err() != nil {
			break
		}
		report.Targets = append(report.Targets, r.runTarget(ctx, plan, planned, workDir))
	}
	return report, ctx.Err()
}

type targetRun struct {
	runner *Runner
	target manifest.Target
	report *TargetReport
}

// stage runs fn, records its result and reports whether the target may continue.
func (t *targetRun) stage(stage Stage, kind Kind, label string, fn func() (string, error)) bool {
	output, err := fn()
	result := StageResult{Target: t.target, Stage: stage, Label: label, Status: StatusOK, Output: output}
	if err != nil {
		var stageErr *StageError
		if !errors.As(err, &stageErr) {
			stageErr = &StageError{Kind: kind, Stage: stage, Output: output, Err: err}
		}
		result.Status = StatusFailed
		result.Err = stageErr
		t.report.Err = stageErr
	}
	t.emit(result)
	return err == nil
}

func (t *targetRun) skip(stage Stage, label, reason string) {
	t.emit(StageResult{Target: t.target, Stage: stage, Label: label, Status: StatusSkipped, Output: reason})
}

func (t *targetRun) emit(result StageResult) {
	t.report.Results = append(t.report.Results, result)
	t.runner.observer().StageFinished(result)
	t.runner.logger().Debug("stage finished", "target", t.target.String(), "stage", string(result.Stage), "status", result.Status.String())
}

func (r *Runner) runTarget(ctx context.Context, plan *Plan, planned PlannedTarget, workDir string) TargetReport {
	target := planned.Target
	report := TargetReport{Target: target}
	run := &targetRun{runner: r, target: target, report: &report}
	r.observer().TargetStarted(target)

	if planned.Err != nil {
		run.stage(StageResolve, KindConfigValidation, "resolving manifest "+target.Slug(), func() (string, error) {
			return "", planned.Err
		})
		return report
	}

	model := planned.Model
	pkg := model.Package()
	recipes := workspace.Recipes{Root: r.Options.Root}
	ws := workspace.New(workDir, target, pkg.Name)
	containerName := target.ContainerName(pkg.Name)

	if !run.stage(StageImage, KindImageBuild, "building docker image "+target.Slug(), func() (string, error) {
		return r.Runtime.BuildImage(ctx, container.ImageSpec{
			ContextDir: recipes.ImageContext(target.Distro),
			Tag:        target.ImageTag(),
			BuildArgs:  map[string]string{"VERSION": target.Version},
			Labels:     map[string]string{container.TargetLabel: target.String()},
		})
	}) {
		return report
	}

	if !run.stage(StageWorkspace, KindWorkspace, "preparing workspace "+containerName, func() (string, error) {
		if err := ws.Reset(); err != nil {
			return "", err
		}
		return "", ws.StageBuild(recipes, model)
	}) {
		return report
	}

	if !run.stage(StageSource, KindSourceAcquisition, "fetching sources ("+string(model.Source().Type)+")", func() (string, error) {
		return "", r.Sources.Acquire(ctx, model.Source(), plan.BaseDir, ws.SourceDir())
	}) {
		return report
	}

	if !run.stage(StageBuild, KindContainerRun, "building app and package "+target.Slug(), func() (string, error) {
		return r.Runtime.Run(ctx, r.runSpec(target, containerName, ws, meta.BuildDriver))
	}) {
		return report
	}

	filename := pkgdesc.Filename(pkg)
	if !run.stage(StageCollect, KindArtifactMissing, "collecting "+filename, func() (string, error) {
		produced := ws.Path(filename)
		if !fileops.FileExists(produced) {
			if r.Options.RequireArtifact {
				return "", fmt.Errorf("%w: %s", ErrArtifactMissing, produced)
			}
			return "no package produced", nil
		}
		delivered := filepath.Join(workDir, pkgdesc.DeliveredName(target, pkg))
		if err := fileops.Move(produced, delivered); err != nil {
			return "", &StageError{Kind: KindWorkspace, Stage: StageCollect, Err: err}
		}
		report.Artifact = delivered
		return delivered, nil
	}) {
		return report
	}

	if r.Publisher != nil {
		label := "publishing " + pkgdesc.DeliveredName(target, pkg)
		if report.Artifact == "" {
			run.skip(StagePublish, label, "no package to publish")
		} else if !run.stage(StagePublish, KindPublish, label, func() (string, error) {
			uri, err := r.Publisher.Publish(ctx, publish.Artifact{
				Path:    report.Artifact,
				Name:    filepath.Base(report.Artifact),
				Target:  target.String(),
				Package: pkg.Name,
				Version: pkg.Version,
				Release: pkg.Release,
				Arch:    pkg.Arch,
				Type:    string(pkg.Type),
			})
			report.Published = uri
			return uri, err
		}) {
			return report
		}
	}

	if r.Options.SkipTests {
		return report
	}
	testLabel := "testing package " + target.Slug()
	staged, err := ws.StageTest(recipes, model)
	switch {
	case err != nil:
		run.stage(StageTest, KindWorkspace, testLabel, func() (string, error) { return "", err })
	case !staged:
		run.skip(StageTest, testLabel, "no "+meta.TestDriver+" for "+target.Distro)
	default:
		run.stage(StageTest, KindContainerRun, testLabel, func() (string, error) {
			return r.Runtime.Run(ctx, r.runSpec(target, containerName, ws, meta.TestDriver))
		})
	}
	return report
}

func (r *Runner) runSpec(target manifest.Target, name string, ws workspace.Workspace, script string) container.RunSpec {
	return container.RunSpec{
		Name:      name,
		Image:     target.ImageTag(),
		Workspace: ws.Dir,
		MountAt:   meta.WorkspaceMount,
		Command:   []string{meta.ContainerShell, "-x", path.Join(meta.WorkspaceMount, script)},
		Labels:    map[string]string{container.TargetLabel: target.String()},
	}
}

func (r *Runner) observer() Observer {
	if r.Observer == nil {
		return nopObserver{}
	}
	return r.Observer
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Logger
}

func configError(err error) error {
	return &StageError{Kind: KindConfigValidation, Stage: StageResolve, Err: err}
}
