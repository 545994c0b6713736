// Where: internal/manifest/model.go
// What: Typed, read-only view over a resolved manifest tree.
// Why: Downstream components read canonical fields through one accessor layer.
package manifest

import (
	"strings"
)

// SourceType selects how the build workspace is populated.
type SourceType string

const (
	SourceDir     SourceType = "dir"
	SourceGit     SourceType = "git"
	SourceArchive SourceType = "archive"
)

// PackageType selects the packaging system.
type PackageType string

const (
	PackageDeb PackageType = "deb"
	PackageRPM PackageType = "rpm"
)

// Model is a validated, resolved manifest for one target. It mirrors the
// tree 1:1; typed accessors treat null placeholders as absent.
type Model struct {
	root   *Node
	target Target
}

// NewModel wraps a resolved tree. No validation happens here.
func NewModel(resolved *Node, target Target) Model {
	return Model{root: resolved, target: target}
}

// Root returns the underlying resolved tree.
func (m Model) Root() *Node {
	return m.root
}

// Target returns the target the model was resolved for.
func (m Model) Target() Target {
	return m.target
}

// Lookup returns the node at path, including null placeholders.
func (m Model) Lookup(path ...string) (*Node, bool) {
	return m.root.Lookup(path...)
}

// String returns the text of a non-null scalar at path.
func (m Model) String(path ...string) (string, bool) {
	node, ok := m.root.Lookup(path...)
	if !ok || node.Kind != KindScalar {
		return "", false
	}
	return node.Value, true
}

// List returns the scalar items of a sequence at path. A lone scalar is
// returned as a one-item list.
func (m Model) List(path ...string) ([]string, bool) {
	node, ok := m.root.Lookup(path...)
	if !ok || node.IsNull() {
		return nil, false
	}
	return scalarItems(node), true
}

// Source describes app.source.
type Source struct {
	Type   SourceType
	Path   string
	URL    string
	Tag    string
	Commit string
}

// Source returns app.source.
func (m Model) Source() Source {
	get := func(key string) string {
		value, _ := m.String("app", "source", key)
		return value
	}
	return Source{
		Type:   SourceType(get("type")),
		Path:   get("path"),
		URL:    get("url"),
		Tag:    get("tag"),
		Commit: get("commit"),
	}
}

// Build describes app.build.
type Build struct {
	Type         string
	Deps         []string
	HasDeps      bool
	CMakeOptions []string
}

// Build returns app.build.
func (m Model) Build() Build {
	buildType, _ := m.String("app", "build", "type")
	deps, hasDeps := m.List("app", "build", "deps")
	options, _ := m.List("app", "build", "cmake_options")
	return Build{
		Type:         buildType,
		Deps:         deps,
		HasDeps:      hasDeps,
		CMakeOptions: options,
	}
}

// Package describes pkg.
type Package struct {
	Name    string
	Version string
	Release string
	Arch    string
	Type    PackageType

	node *Node
}

// Package returns pkg.
func (m Model) Package() Package {
	get := func(key string) string {
		value, _ := m.String("pkg", key)
		return value
	}
	node, _ := m.root.Get("pkg")
	return Package{
		Name:    get("package"),
		Version: get("version"),
		Release: get("release"),
		Arch:    get("arch"),
		Type:    PackageType(get("type")),
		node:    node,
	}
}

// Field returns a pkg attribute rendered as text. Sequences are joined
// with ", "; null placeholders and empty sequences report false.
func (p Package) Field(key string) (string, bool) {
	node, ok := p.node.Get(key)
	if !ok || node.IsNull() {
		return "", false
	}
	switch node.Kind {
	case KindScalar:
		return node.Value, true
	case KindSequence:
		items := scalarItems(node)
		if len(items) == 0 {
			return "", false
		}
		return strings.Join(items, ", "), true
	default:
		return "", false
	}
}

func scalarItems(node *Node) []string {
	switch node.Kind {
	case KindScalar:
		return []string{node.Value}
	case KindSequence:
		items := make([]string, 0, len(node.Items))
		for _, item := range node.Items {
			if item.Kind == KindScalar {
				items = append(items, item.Value)
			}
		}
		return items
	default:
		return nil
	}
}
