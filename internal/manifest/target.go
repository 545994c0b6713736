// Where: internal/manifest/target.go
// What: distro:version target parsing.
// Why: Every pipeline run iterates targets; names derived from them must be deterministic.
package manifest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/poruru/mdpack/internal/meta"
)

var errMalformedTarget = errors.New("target must be <distro>:<version>")

// Target is one (distro family, version) pair of a manifest.
type Target struct {
	Distro  string
	Version string
}

// ParseTarget parses "ubuntu:22.04" style specifiers.
func ParseTarget(spec string) (Target, error) {
	parts := strings.Split(strings.TrimSpace(spec), ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Target{}, fmt.Errorf("%w: %q", errMalformedTarget, spec)
	}
	return Target{Distro: parts[0], Version: parts[1]}, nil
}

func (t Target) String() string {
	if t.Version == "" {
		return t.Distro
	}
	return t.Distro + ":" + t.Version
}

// Slug returns "<distro>-<version>", the prefix of delivered artifacts.
func (t Target) Slug() string {
	if t.Version == "" {
		return t.Distro
	}
	return t.Distro + "-" + t.Version
}

// ImageTag returns the container image tag built for this target.
func (t Target) ImageTag() string {
	return meta.ImagePrefix + "-" + t.Slug()
}

// ContainerName combines the image tag and the package name so that
// workspaces of different packages or targets never collide.
func (t Target) ContainerName(pkg string) string {
	return t.ImageTag() + "-" + pkg
}

// TargetEntry is one item of the "distro" list. Err is a *ValidationError
// when the item is not a <distro>:<version> string; Target then carries the
// raw text in Distro so the entry can still be reported.
type TargetEntry struct {
	Target Target
	Err    error
}

// TargetEntries reads the raw "distro" list of a manifest tree in order.
// Only a missing, empty or non-list "distro" is an error; malformed items
// are returned as entries with Err set.
func TargetEntries(root *Node) ([]TargetEntry, error) {
	list, ok := root.Get("distro")
	if !ok || list.Kind != KindSequence || len(list.Items) == 0 {
		return nil, &ValidationError{Violations: []Violation{{
			Path:    "distro",
			Message: "expected a non-empty list of <distro>:<version> strings",
		}}}
	}
	entries := make([]TargetEntry, 0, len(list.Items))
	for i, item := range list.Items {
		path := fmt.Sprintf("distro[%d]", i)
		if item.Kind != KindScalar {
			entries = append(entries, TargetEntry{
				Target: Target{Distro: path},
				Err:    &ValidationError{Violations: []Violation{{Path: path, Message: "expected a string"}}},
			})
			continue
		}
		target, err := ParseTarget(item.Value)
		if err != nil {
			entries = append(entries, TargetEntry{
				Target: Target{Distro: strings.TrimSpace(item.Value)},
				Err:    &ValidationError{Violations: []Violation{{Path: path, Message: err.Error()}}},
			})
			continue
		}
		entries = append(entries, TargetEntry{Target: target})
	}
	return entries, nil
}

// Targets returns the well-formed targets of a manifest tree. Malformed
// entries are skipped and reported together as a *ValidationError.
func Targets(root *Node) ([]Target, error) {
	entries, err := TargetEntries(root)
	if err != nil {
		return nil, err
	}
	var (
		targets    []Target
		violations []Violation
	)
	for _, entry := range entries {
		var verr *ValidationError
		if errors.As(entry.Err, &verr) {
			violations = append(violations, verr.Violations...)
			continue
		}
		targets = append(targets, entry.Target)
	}
	if len(violations) > 0 {
		return targets, &ValidationError{Violations: violations}
	}
	return targets, nil
}
