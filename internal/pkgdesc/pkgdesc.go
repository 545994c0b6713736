// Where: internal/pkgdesc/pkgdesc.go
// What: Package descriptor rendering (DEBIAN/control, rpm spec) and package file names.
// Why: Packaging metadata is derived from the resolved manifest, one renderer per package type.
package pkgdesc

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/poruru/mdpack/internal/infra/fileops"
	"github.com/poruru/mdpack/internal/manifest"
	"github.com/poruru/mdpack/internal/meta"
)

// ErrUnknownPackageType is returned for pkg.type values without a descriptor.
var ErrUnknownPackageType = errors.New("unknown package type")

//go:embed templates/*.tmpl
var templateFS embed.FS

var templateCache sync.Map

// Descriptor renders the packaging-system-native metadata of one package type.
type Descriptor interface {
	// RelPath is the descriptor location inside the workspace.
	RelPath() string
	Render(pkg manifest.Package) (string, error)
}

var descriptors = map[manifest.PackageType]Descriptor{
	manifest.PackageDeb: debControl{},
	manifest.PackageRPM: rpmSpec{},
}

// Lookup returns the descriptor registered for a package type.
func Lookup(kind manifest.PackageType) (Descriptor, error) {
	d, ok := descriptors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPackageType, kind)
	}
	return d, nil
}

// Write renders the descriptor for pkg.Type into workspace and returns its path.
func Write(workspace string, pkg manifest.Package) (string, error) {
	d, err := Lookup(pkg.Type)
	if err != nil {
		return "", err
	}
	content, err := d.Render(pkg)
	if err != nil {
		return "", fmt.Errorf("render %s descriptor: %w", pkg.Type, err)
	}
	dest := filepath.Join(workspace, filepath.FromSlash(d.RelPath()))
	if err := fileops.WriteFile(dest, content, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", d.RelPath(), err)
	}
	return dest, nil
}

// Filename returns "<package>-<version>[-<release>].<arch>.<type>",
// e.g. "rpn-2.4.2-0.x86_64.rpm".
func Filename(pkg manifest.Package) string {
	var b strings.Builder
	b.WriteString(pkg.Name)
	b.WriteString("-")
	b.WriteString(pkg.Version)
	if pkg.Release != "" {
		b.WriteString("-")
		b.WriteString(pkg.Release)
	}
	b.WriteString(".")
	b.WriteString(pkg.Arch)
	b.WriteString(".")
	b.WriteString(string(pkg.Type))
	return b.String()
}

// DeliveredName prefixes Filename with the target slug,
// e.g. "fedora-35-rpn-2.4.2-0.x86_64.rpm".
func DeliveredName(target manifest.Target, pkg manifest.Package) string {
	return target.Slug() + "-" + Filename(pkg)
}

type field struct {
	Name  string
	Value string
}

// collect returns the manifest attributes present in pkg, in order.
func collect(pkg manifest.Package, mapping [][2]string) []field {
	fields := make([]field, 0, len(mapping))
	for _, m := range mapping {
		if value, ok := pkg.Field(m[1]); ok {
			fields = append(fields, field{Name: m[0], Value: value})
		}
	}
	return fields
}

type debControl struct{}

var debFields = [][2]string{
	{"Package", "package"},
	{"Version", "version"},
	{"Architecture", "arch"},
	{"Description", "description"},
	{"Maintainer", "maintainer"},
	{"Section", "section"},
	{"Priority", "priority"},
	{"Homepage", "homepage"},
	{"Depends", "deps"},
}

func (debControl) RelPath() string {
	return "install/DEBIAN/control"
}

func (debControl) Render(pkg manifest.Package) (string, error) {
	fields := collect(pkg, debFields)
	for i := range fields {
		fields[i].Value = foldDebValue(fields[i].Value)
	}
	return renderTemplate("control.tmpl", struct{ Fields []field }{Fields: fields})
}

// foldDebValue turns a multi-line value into control-file continuation lines.
func foldDebValue(value string) string {
	lines := strings.Split(strings.TrimSpace(value), "\n")
	for i := 1; i < len(lines); i++ {
		line := strings.TrimRight(lines[i], " \t")
		if line == "" {
			line = "."
		}
		lines[i] = " " + line
	}
	return strings.Join(lines, "\n")
}

type rpmSpec struct{}

var rpmFields = [][2]string{
	{"Name", "package"},
	{"Version", "version"},
	{"Release", "release"},
	{"License", "license"},
	{"BuildArchitectures", "arch"},
	{"Summary", "summary"},
	{"URL", "homepage"},
	{"Requires", "deps"},
}

func (rpmSpec) RelPath() string {
	return "rpmbuild/SPECS/pkg.spec"
}

func (rpmSpec) Render(pkg manifest.Package) (string, error) {
	description, _ := pkg.Field("description")
	data := struct {
		Fields      []field
		Description string
		InstallDir  string
		FilesList   string
	}{
		Fields:      collect(pkg, rpmFields),
		Description: description,
		InstallDir:  path.Join(meta.WorkspaceMount, "install"),
		FilesList:   path.Join(meta.WorkspaceMount, "rpmbuild", "files_list"),
	}
	return renderTemplate("pkg.spec.tmpl", data)
}

func renderTemplate(name string, data any) (string, error) {
	tmpl, err := loadTemplate(name)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func loadTemplate(name string) (*template.Template, error) {
	if value, ok := templateCache.Load(name); ok {
		return value.(*template.Template), nil
	}
	tmpl, err := template.New(name).Funcs(sprig.TxtFuncMap()).ParseFS(templateFS, "templates/"+name)
	if err != nil {
		return nil, err
	}
	templateCache.Store(name, tmpl)
	return tmpl, nil
}
