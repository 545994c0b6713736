// Where: internal/workspace/workspace_test.go
// What: Tests for workspace staging and env.sh generation.
package workspace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joho/godotenv"
	"github.com/poruru/mdpack/internal/manifest"
)

func writeRecipe(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatal(err)
	}
}

func fedoraRecipes(t *testing.T) Recipes {
	t.Helper()
	root := t.TempDir()
	writeRecipe(t, root, "distro/fedora/fedora.yaml", "pkg: {arch: x86_64}\n")
	writeRecipe(t, root, "distro/fedora/docker/Dockerfile", "FROM fedora\n")
	writeRecipe(t, root, "distro/fedora/install_user_deps.sh", "dnf install -y $APP_BUILD_DEPS\n")
	writeRecipe(t, root, "distro/fedora/generate.sh", ". /app/env.sh\n")
	writeRecipe(t, root, "distro/fedora/test.sh", "rpm -i /app/$PKG_FILENAME\n")
	writeRecipe(t, root, "scripts/build/cmake.sh", "cmake ..\n")
	writeRecipe(t, root, "scripts/pkg/rpm.sh", "rpmbuild\n")
	return Recipes{Root: root}
}

func fedoraModel(t *testing.T, build string) manifest.Model {
	t.Helper()
	root, err := manifest.Parse([]byte(`
app:
  build:
` + build + `
pkg:
  package: rpn
  version: 2.4.2
  release: 0
  arch: x86_64
  type: rpm
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return manifest.NewModel(root, manifest.Target{Distro: "fedora", Version: "38"})
}

func TestNewUsesContainerName(t *testing.T) {
	ws := New("/work", manifest.Target{Distro: "fedora", Version: "38"}, "rpn")
	if ws.Dir != filepath.Join("/work", "mdp-fedora-38-rpn") {
		t.Fatalf("unexpected workspace dir %s", ws.Dir)
	}
	if ws.SourceDir() != filepath.Join(ws.Dir, "src") {
		t.Fatalf("unexpected source dir %s", ws.SourceDir())
	}
}

func TestStageBuildWritesEverything(t *testing.T) {
	recipes := fedoraRecipes(t)
	model := fedoraModel(t, "    type: cmake\n    deps: [cmake, gcc-c++]\n    cmake_options: [-DA=1, -DB=2]")
	ws := New(t.TempDir(), model.Target(), "rpn")
	if err := ws.Reset(); err != nil {
		t.Fatalf("reset: %v", err)
	}

	if err := ws.StageBuild(recipes, model); err != nil {
		t.Fatalf("stage: %v", err)
	}
	for _, rel := range []string{"env.sh", "install_user_deps.sh", "build_app.sh", "build_pkg.sh", "generate.sh", "rpmbuild/SPECS/pkg.spec"} {
		if _, err := os.Stat(ws.Path(rel)); err != nil {
			t.Errorf("expected %s: %v", rel, err)
		}
	}

	env, err := godotenv.Read(ws.Path("env.sh"))
	if err != nil {
		t.Fatalf("parse env.sh: %v", err)
	}
	want := map[string]string{
		"TARGET_DISTRO":           "fedora",
		"TARGET_VERSION":          "38",
		"PKG_PACKAGE":             "rpn",
		"PKG_VERSION":             "2.4.2",
		"PKG_RELEASE":             "0",
		"PKG_TYPE":                "rpm",
		"APP_BUILD_TYPE":          "cmake",
		"APP_BUILD_DEPS":          "cmake gcc-c++",
		"APP_BUILD_CMAKE_OPTIONS": "-DA=1 -DB=2",
		"PKG_FILENAME":            "rpn-2.4.2-0.x86_64.rpm",
	}
	for key, value := range want {
		if env[key] != value {
			t.Errorf("%s = %q, want %q", key, env[key], value)
		}
	}
}

func TestStageBuildSkipsDepsScriptWithoutDeps(t *testing.T) {
	recipes := fedoraRecipes(t)
	model := fedoraModel(t, "    type: cmake")
	ws := New(t.TempDir(), model.Target(), "rpn")

	if err := ws.StageBuild(recipes, model); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if _, err := os.Stat(ws.Path("install_user_deps.sh")); !os.IsNotExist(err) {
		t.Fatalf("deps script must not be staged without deps: %v", err)
	}
	data, err := os.ReadFile(ws.Path("env.sh"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "APP_BUILD_DEPS") {
		t.Fatalf("APP_BUILD_DEPS must be omitted:\n%s", data)
	}
	if !strings.HasPrefix(string(data), "#!/bin/bash\n") {
		t.Fatalf("missing shebang:\n%s", data)
	}
}

func TestStageBuildRequiresDriver(t *testing.T) {
	recipes := fedoraRecipes(t)
	if err := os.Remove(filepath.Join(recipes.Root, "distro", "fedora", "generate.sh")); err != nil {
		t.Fatal(err)
	}
	model := fedoraModel(t, "    type: cmake")
	ws := New(t.TempDir(), model.Target(), "rpn")
	if err := ws.StageBuild(recipes, model); err == nil {
		t.Fatalf("expected missing driver error")
	}
}

func TestStageTest(t *testing.T) {
	recipes := fedoraRecipes(t)
	model := fedoraModel(t, "    type: cmake")
	ws := New(t.TempDir(), model.Target(), "rpn")

	ok, err := ws.StageTest(recipes, model)
	if err != nil || !ok {
		t.Fatalf("StageTest = %v, %v", ok, err)
	}
	if _, err := os.Stat(ws.Path("test.sh")); err != nil {
		t.Fatalf("test.sh not staged: %v", err)
	}

	if err := os.Remove(filepath.Join(recipes.Root, "distro", "fedora", "test.sh")); err != nil {
		t.Fatal(err)
	}
	if ok, err := ws.StageTest(recipes, model); err != nil || ok {
		t.Fatalf("missing test driver should skip, got %v, %v", ok, err)
	}
}

func TestRecipesFamilies(t *testing.T) {
	recipes := fedoraRecipes(t)
	writeRecipe(t, recipes.Root, "distro/ubuntu/ubuntu.yaml", "{}\n")
	got := strings.Join(recipes.Families(), ",")
	if got != "fedora,ubuntu" {
		t.Fatalf("unexpected families %q", got)
	}
}

func TestShellQuote(t *testing.T) {
	tests := map[string]string{
		"plain":        `"plain"`,
		"a b":          `"a b"`,
		`say "hi"`:     `"say \"hi\""`,
		"$HOME`id`\\x": "\"\\$HOME\\`id\\`\\\\x\"",
	}
	for in, want := range tests {
		if got := shellQuote(in); got != want {
			t.Errorf("shellQuote(%q) = %s, want %s", in, got, want)
		}
	}
}
