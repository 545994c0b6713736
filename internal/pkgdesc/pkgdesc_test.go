// Where: internal/pkgdesc/pkgdesc_test.go
// What: Tests for descriptor rendering and package file names.
package pkgdesc

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/poruru/mdpack/internal/manifest"
)

func modelFor(t *testing.T, src string, target manifest.Target) manifest.Model {
	t.Helper()
	root, err := manifest.Parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return manifest.NewModel(root, target)
}

func TestFilename(t *testing.T) {
	fedora := manifest.Target{Distro: "fedora", Version: "35"}
	tests := []struct {
		name      string
		pkg       string
		want      string
		delivered string
	}{
		{
			name:      "with release",
			pkg:       "pkg: {package: rpn, version: 2.4.2, release: 0, arch: x86_64, type: rpm}",
			want:      "rpn-2.4.2-0.x86_64.rpm",
			delivered: "fedora-35-rpn-2.4.2-0.x86_64.rpm",
		},
		{
			name:      "without release",
			pkg:       "pkg: {package: rpn, version: 2.4.2, arch: x86_64, type: rpm}",
			want:      "rpn-2.4.2.x86_64.rpm",
			delivered: "fedora-35-rpn-2.4.2.x86_64.rpm",
		},
		{
			name:      "null release",
			pkg:       "pkg: {package: rpn, version: 2.4.2, release: null, arch: amd64, type: deb}",
			want:      "rpn-2.4.2.amd64.deb",
			delivered: "fedora-35-rpn-2.4.2.amd64.deb",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkg := modelFor(t, tt.pkg, fedora).Package()
			if got := Filename(pkg); got != tt.want {
				t.Fatalf("Filename = %q, want %q", got, tt.want)
			}
			if got := DeliveredName(fedora, pkg); got != tt.delivered {
				t.Fatalf("DeliveredName = %q, want %q", got, tt.delivered)
			}
		})
	}
}

func TestDebControlOmitsAbsentFields(t *testing.T) {
	pkg := modelFor(t, `
pkg:
  package: rpn
  version: 2.4.2
  arch: amd64
  type: deb
  maintainer:
  homepage: https://example.com/rpn
  deps: [libc6, libstdc++6]
  description: |
    RPN calculator
    Reads stack programs.
`, manifest.Target{Distro: "ubuntu", Version: "22.04"}).Package()

	d, err := Lookup(pkg.Type)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	got, err := d.Render(pkg)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	want := "Package: rpn\n" +
		"Version: 2.4.2\n" +
		"Architecture: amd64\n" +
		"Description: RPN calculator\n" +
		" Reads stack programs.\n" +
		"Homepage: https://example.com/rpn\n" +
		"Depends: libc6, libstdc++6\n"
	if got != want {
		t.Fatalf("control mismatch:\n got: %q\nwant: %q", got, want)
	}
}

func TestRPMSpec(t *testing.T) {
	pkg := modelFor(t, `
pkg:
  package: rpn
  version: 2.4.2
  release: 1
  license: MIT
  arch: x86_64
  type: rpm
  summary: RPN calculator
  deps: glibc
  description: A small calculator.
`, manifest.Target{Distro: "fedora", Version: "38"}).Package()

	got, err := rpmSpec{}.Render(pkg)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	wantHead := "Name: rpn\n" +
		"Version: 2.4.2\n" +
		"Release: 1\n" +
		"License: MIT\n" +
		"BuildArchitectures: x86_64\n" +
		"Summary: RPN calculator\n" +
		"Requires: glibc\n" +
		"%description\nA small calculator.\n" +
		"%define _build_id_links none\n"
	if !strings.HasPrefix(got, wantHead) {
		t.Fatalf("unexpected spec head:\n%s", got)
	}
	for _, fragment := range []string{
		"cp -rf /app/install/. %{buildroot}/",
		"> /app/rpmbuild/files_list",
		"%files -f /app/rpmbuild/files_list",
	} {
		if !strings.Contains(got, fragment) {
			t.Errorf("spec missing %q:\n%s", fragment, got)
		}
	}
}

func TestWriteUsesDescriptorLocation(t *testing.T) {
	ws := t.TempDir()
	pkg := modelFor(t, "pkg: {package: rpn, version: 1, arch: amd64, type: deb}", manifest.Target{}).Package()

	path, err := Write(ws, pkg)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if path != filepath.Join(ws, "install", "DEBIAN", "control") {
		t.Fatalf("unexpected path %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.HasPrefix(string(data), "Package: rpn\nVersion: 1\n") {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestUnknownPackageType(t *testing.T) {
	pkg := modelFor(t, "pkg: {package: rpn, version: 1, type: apk}", manifest.Target{}).Package()
	if _, err := Write(t.TempDir(), pkg); !errors.Is(err, ErrUnknownPackageType) {
		t.Fatalf("expected ErrUnknownPackageType, got %v", err)
	}
}
