// Where: internal/workspace/workspace.go
// What: Per-target build workspace (reset, env.sh, script staging).
// Why: The container only sees the workspace mounted at /app; everything it runs is staged here.
package workspace

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/poruru/mdpack/internal/infra/fileops"
	"github.com/poruru/mdpack/internal/manifest"
	"github.com/poruru/mdpack/internal/meta"
	"github.com/poruru/mdpack/internal/pkgdesc"
)

// ErrMissingDriver is returned when the distro has no build driver script.
var ErrMissingDriver = errors.New("distro build driver not found")

const (
	envScript     = "env.sh"
	depsScript    = "install_user_deps.sh"
	buildScript   = "build_app.sh"
	packageScript = "build_pkg.sh"
	sourceDir     = "src"
)

//go:embed templates/env.sh.tmpl
var envTemplateText string

var envTemplate = template.Must(template.New("env.sh").
	Funcs(sprig.TxtFuncMap()).
	Funcs(template.FuncMap{"shellquote": shellQuote}).
	Parse(envTemplateText))

// Recipes locates the distro and script assets under a recipes root.
type Recipes struct {
	Root string
}

func (r Recipes) distroDir(family string) string {
	return filepath.Join(r.Root, "distro", family)
}

// ImageContext is the docker build context of a distro family.
func (r Recipes) ImageContext(family string) string {
	return filepath.Join(r.distroDir(family), "docker")
}

// Defaults is the distro defaults manifest of a family.
func (r Recipes) Defaults(family string) string {
	return manifest.DefaultsPath(r.Root, family)
}

func (r Recipes) depsScript(family string) string {
	return filepath.Join(r.distroDir(family), depsScript)
}

func (r Recipes) buildDriver(family string) string {
	return filepath.Join(r.distroDir(family), meta.BuildDriver)
}

func (r Recipes) testDriver(family string) string {
	return filepath.Join(r.distroDir(family), meta.TestDriver)
}

func (r Recipes) buildScript(buildType string) string {
	return filepath.Join(r.Root, "scripts", "build", buildType+".sh")
}

func (r Recipes) packageScript(pkgType manifest.PackageType) string {
	return filepath.Join(r.Root, "scripts", "pkg", string(pkgType)+".sh")
}

// Families lists the distro families present under the recipes root.
func (r Recipes) Families() []string {
	matches, _ := filepath.Glob(filepath.Join(r.Root, "distro", "*"))
	families := make([]string, 0, len(matches))
	for _, match := range matches {
		if fileops.DirExists(match) {
			families = append(families, filepath.Base(match))
		}
	}
	return families
}

// Workspace is the host directory mounted into the build container.
type Workspace struct {
	Dir string
}

// New returns the workspace of one target under workDir.
func New(workDir string, target manifest.Target, pkgName string) Workspace {
	return Workspace{Dir: filepath.Join(workDir, target.ContainerName(pkgName))}
}

// Reset clears leftovers of a previous run and recreates the directory.
func (w Workspace) Reset() error {
	return fileops.ResetDir(w.Dir)
}

// SourceDir is where application sources are placed.
func (w Workspace) SourceDir() string {
	return filepath.Join(w.Dir, sourceDir)
}

// Path joins rel onto the workspace directory.
func (w Workspace) Path(rel string) string {
	return filepath.Join(w.Dir, rel)
}

// StageBuild writes env.sh, the descriptor and every script the build
// driver expects.
func (w Workspace) StageBuild(recipes Recipes, model manifest.Model) error {
	target := model.Target()
	build := model.Build()
	pkg := model.Package()

	if err := w.WriteEnv(model); err != nil {
		return err
	}
	if build.HasDeps {
		if err := copyIfExists(recipes.depsScript(target.Distro), w.Path(depsScript)); err != nil {
			return err
		}
	}
	if err := copyIfExists(recipes.buildScript(build.Type), w.Path(buildScript)); err != nil {
		return err
	}
	if _, err := pkgdesc.Write(w.Dir, pkg); err != nil {
		return err
	}
	if err := copyIfExists(recipes.packageScript(pkg.Type), w.Path(packageScript)); err != nil {
		return err
	}
	driver := recipes.buildDriver(target.Distro)
	if !fileops.FileExists(driver) {
		return fmt.Errorf("%w: %s", ErrMissingDriver, driver)
	}
	return fileops.CopyFile(driver, w.Path(meta.BuildDriver))
}

// StageTest refreshes env.sh and copies the test driver. It reports false
// when the distro has no test driver.
func (w Workspace) StageTest(recipes Recipes, model manifest.Model) (bool, error) {
	driver := recipes.testDriver(model.Target().Distro)
	if !fileops.FileExists(driver) {
		return false, nil
	}
	if err := w.WriteEnv(model); err != nil {
		return false, err
	}
	if err := fileops.CopyFile(driver, w.Path(meta.TestDriver)); err != nil {
		return false, err
	}
	return true, nil
}

// WriteEnv renders env.sh from the resolved manifest.
func (w Workspace) WriteEnv(model manifest.Model) error {
	content, err := RenderEnv(model)
	if err != nil {
		return err
	}
	return fileops.WriteFile(w.Path(envScript), content, 0o755)
}

type envVar struct {
	Name  string
	Value string
}

// RenderEnv returns the env.sh content of a model.
func RenderEnv(model manifest.Model) (string, error) {
	var vars []envVar
	add := func(name, value string, ok bool) {
		if ok {
			vars = append(vars, envVar{Name: name, Value: value})
		}
	}
	addList := func(name string, values []string) {
		if len(values) > 0 {
			vars = append(vars, envVar{Name: name, Value: strings.Join(values, " ")})
		}
	}

	target := model.Target()
	add("TARGET_DISTRO", target.Distro, true)
	add("TARGET_VERSION", target.Version, true)

	pkg := model.Package()
	for _, key := range []string{"package", "version", "release", "arch", "type"} {
		value, ok := model.String("pkg", key)
		add("PKG_"+strings.ToUpper(key), value, ok)
	}

	build := model.Build()
	add("APP_BUILD_TYPE", build.Type, build.Type != "")
	addList("APP_BUILD_CMAKE_OPTIONS", build.CMakeOptions)
	addList("APP_BUILD_DEPS", build.Deps)

	add("PKG_FILENAME", pkgdesc.Filename(pkg), true)

	var buf bytes.Buffer
	if err := envTemplate.Execute(&buf, struct{ Vars []envVar }{Vars: vars}); err != nil {
		return "", fmt.Errorf("render %s: %w", envScript, err)
	}
	return buf.String(), nil
}

// shellQuote wraps value in double quotes, escaping characters the shell
// would otherwise expand.
func shellQuote(value string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range value {
		switch r {
		case '"', '\\', '$', '`':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}

func copyIfExists(src, dst string) error {
	if !fileops.FileExists(src) {
		return nil
	}
	return fileops.CopyFile(src, dst)
}
