// Where: internal/manifest/validate_test.go
// What: Tests for manifest schema validation and per-target resolution.
package manifest

import (
	"errors"
	"strings"
	"testing"
)

const validManifest = `
distro:
  - ubuntu:22.04
  - fedora:38
app:
  source:
    type: dir
    path: ./src
  build:
    type: cmake
    deps: [cmake, g++]
pkg:
  package: rpn
  version: 2.4.2
  release: 0
  arch: x86_64
  type: rpm
  whatever_extra: {nested: true}
unknown_top_level: 42
`

func TestValidateAcceptsUnknownFields(t *testing.T) {
	if err := Validate(mustParse(t, validManifest)); err != nil {
		t.Fatalf("expected valid manifest, got %v", err)
	}
}

func TestValidateAcceptsNumericVersion(t *testing.T) {
	src := strings.Replace(validManifest, "version: 2.4.2", "version: 1.0", 1)
	if err := Validate(mustParse(t, src)); err != nil {
		t.Fatalf("numeric version should be accepted, got %v", err)
	}
}

func TestValidateNamesMissingVersion(t *testing.T) {
	src := strings.Replace(validManifest, "  version: 2.4.2\n", "", 1)
	err := Validate(mustParse(t, src))

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(verr.Violations) != 1 || verr.Violations[0].Path != "pkg.version" {
		t.Fatalf("expected a single pkg.version violation, got %+v", verr.Violations)
	}
	if !strings.Contains(err.Error(), "pkg.version") {
		t.Fatalf("error message should name pkg.version: %v", err)
	}
}

func TestValidateListsEveryViolation(t *testing.T) {
	src := `
distro: []
app:
  source: {path: ./src}
pkg:
  package: 7
`
	err := Validate(mustParse(t, src))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	paths := map[string]bool{}
	for _, v := range verr.Violations {
		paths[v.Path] = true
	}
	for _, want := range []string{"distro", "app.source.type", "app.build", "pkg.version", "pkg.package"} {
		if !paths[want] {
			t.Errorf("missing violation for %s in %+v", want, verr.Violations)
		}
	}
}

func TestValidateLeavesTargetEntriesToTargetEntries(t *testing.T) {
	src := strings.Replace(validManifest, "- fedora:38", "- fedora", 1)
	if err := Validate(mustParse(t, src)); err != nil {
		t.Fatalf("a malformed distro entry must not fail other targets, got %v", err)
	}
}

func TestValidateAcceptsNumericCommit(t *testing.T) {
	for _, commit := range []string{"1234567", "12e4567"} {
		src := strings.Replace(validManifest, "    path: ./src\n", "    path: ./src\n    commit: "+commit+"\n", 1)
		user := mustParse(t, src)
		if err := Validate(user); err != nil {
			t.Fatalf("commit %s should be accepted, got %v", commit, err)
		}
		model := NewModel(user, Target{Distro: "fedora", Version: "38"})
		if got := model.Source().Commit; got != commit {
			t.Fatalf("commit text must be kept, got %q want %q", got, commit)
		}
	}
}

func TestForTargetResolvesAndValidates(t *testing.T) {
	user := mustParse(t, `
distro: [ubuntu:22.04, fedora:38]
app:
  source: {type: dir, path: ./src}
  build: {type: cmake}
pkg:
  package: rpn
  version: 2.4.2
  ubuntu_type: deb
  fedora_type: rpm
`)
	defaults := mustParse(t, `
pkg:
  arch: x86_64
  ubuntu_arch: amd64
  priority: optional
`)
	targets, err := Targets(user)
	if err != nil {
		t.Fatalf("targets: %v", err)
	}
	q := NewQualifiers(targets)

	ubuntu, err := ForTarget(user, defaults, q, targets[0])
	if err != nil {
		t.Fatalf("ubuntu: %v", err)
	}
	if pkg := ubuntu.Package(); pkg.Type != PackageDeb || pkg.Arch != "amd64" {
		t.Fatalf("unexpected ubuntu package: %+v", pkg)
	}

	fedora, err := ForTarget(user, defaults, q, targets[1])
	if err != nil {
		t.Fatalf("fedora: %v", err)
	}
	if pkg := fedora.Package(); pkg.Type != PackageRPM || pkg.Arch != "x86_64" {
		t.Fatalf("unexpected fedora package: %+v", pkg)
	}
	if _, ok := user.Lookup("pkg", "arch"); ok {
		t.Fatalf("user tree must not be modified by ForTarget")
	}
}

func TestForTargetPlaceholderFailsRequiredField(t *testing.T) {
	user := mustParse(t, `
distro: [fedora:38]
app:
  source: {type: dir}
  build: {type: cmake}
pkg:
  ubuntu_package: rpn
  version: 1
`)
	targets, _ := Targets(user)
	_, err := ForTarget(user, Mapping(), NewQualifiers(targets, "ubuntu"), targets[0])
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if verr.Violations[0].Path != "pkg.package" {
		t.Fatalf("unexpected violations: %+v", verr.Violations)
	}
}
