// Where: internal/manifest/load.go
// What: Manifest and distro defaults loading, and per-target resolution.
// Why: Compose merge, override resolution and validation in one ordered step.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
)

// LoadFile reads and parses a manifest or distro defaults file.
func LoadFile(path string) (*Node, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	root, err := Parse(payload)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if root.Kind != KindMapping {
		return nil, fmt.Errorf("parse %s: top level must be a mapping, got %s", path, root.Kind)
	}
	return root, nil
}

// DefaultsPath returns the distro defaults file location under a recipes root.
func DefaultsPath(root, family string) string {
	return filepath.Join(root, "distro", family, family+".yaml")
}

// ForTarget builds the Model of one target: the user manifest is cloned,
// completed with the distro defaults, qualified, resolved and validated.
// Neither input is modified.
func ForTarget(user, defaults *Node, q Qualifiers, target Target) (Model, error) {
	merged := Merge(user.Clone(), defaults)
	resolved := ResolveFor(merged, q, target)
	if err := Validate(resolved); err != nil {
		return Model{}, err
	}
	return NewModel(resolved, target), nil
}
