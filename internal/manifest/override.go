// Where: internal/manifest/override.go
// What: Distro/version override extraction and resolution.
// Why: Qualified keys like "ubuntu_22.04_deps" are moved out of the canonical
// namespace into an explicit override table, then resolved per target.
package manifest

import (
	"sort"
	"strings"
)

// Qualifier scopes an override to a distro family and, optionally, one version.
type Qualifier struct {
	Distro  string
	Version string
}

// Override is a qualified value for the canonical key Key.
type Override struct {
	Qualifier
	Key   string
	Value *Node
}

// QualifiedKey renders the override back into its manifest spelling.
func (o Override) QualifiedKey() string {
	if o.Version == "" {
		return o.Distro + "_" + o.Key
	}
	return o.Distro + "_" + o.Version + "_" + o.Key
}

// Qualifiers recognizes qualified keys for a known set of distro families.
type Qualifiers struct {
	families []string
	versions map[string][]string
}

// NewQualifiers builds a recognizer from manifest targets and any extra
// family names (typically the families available under the recipes root).
func NewQualifiers(targets []Target, families ...string) Qualifiers {
	q := Qualifiers{versions: map[string][]string{}}
	seen := map[string]bool{}
	add := func(family string) {
		if family == "" || seen[family] {
			return
		}
		seen[family] = true
		q.families = append(q.families, family)
	}
	for _, target := range targets {
		add(target.Distro)
		if target.Version != "" {
			q.versions[target.Distro] = append(q.versions[target.Distro], target.Version)
		}
	}
	for _, family := range families {
		add(family)
	}
	// Longest family first so "opensuse-leap_x" is not read as "opensuse".
	sort.SliceStable(q.families, func(i, j int) bool {
		return len(q.families[i]) > len(q.families[j])
	})
	for family := range q.versions {
		versions := q.versions[family]
		sort.SliceStable(versions, func(i, j int) bool { return len(versions[i]) > len(versions[j]) })
	}
	return q
}

// Parse splits a qualified key into its qualifier and canonical key.
// After a family prefix, a declared version or any digit-led segment is
// read as the version; anything else stays in the key, so with no
// bullseye target "debian_bullseye_deps" is a debian override of
// "bullseye_deps".
func (q Qualifiers) Parse(key string) (Qualifier, string, bool) {
	for _, family := range q.families {
		prefix := family + "_"
		if !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
			continue
		}
		rest := key[len(prefix):]
		for _, version := range q.versions[family] {
			vprefix := version + "_"
			if strings.HasPrefix(rest, vprefix) && len(rest) > len(vprefix) {
				return Qualifier{Distro: family, Version: version}, rest[len(vprefix):], true
			}
		}
		if idx := strings.IndexByte(rest, '_'); idx > 0 && idx < len(rest)-1 && isDigit(rest[0]) {
			return Qualifier{Distro: family, Version: rest[:idx]}, rest[idx+1:], true
		}
		return Qualifier{Distro: family}, rest, true
	}
	return Qualifier{}, "", false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// Qualify moves qualified keys of every mapping in n into override tables
// and adds a null placeholder for each canonical key that only existed in
// qualified form. n is modified in place and returned.
func Qualify(n *Node, q Qualifiers) *Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindSequence:
		for _, item := range n.Items {
			Qualify(item, q)
		}
	case KindMapping:
		for _, ov := range n.Overrides {
			Qualify(ov.Value, q)
		}
		fields := make([]Field, 0, len(n.Fields))
		for _, field := range n.Fields {
			Qualify(field.Value, q)
			if qual, key, ok := q.Parse(field.Key); ok {
				n.Overrides = append(n.Overrides, Override{Qualifier: qual, Key: key, Value: field.Value})
				continue
			}
			fields = append(fields, field)
		}
		n.Fields = fields
		for _, ov := range n.Overrides {
			if !n.Has(ov.Key) {
				n.Fields = append(n.Fields, Field{Key: ov.Key, Value: Null()})
			}
		}
	}
	return n
}

// Resolve returns a copy of n in which every canonical key carries the
// value selected for (distro, version): a version-qualified override first,
// then a distro-qualified one, then the base value. Null overrides are
// ignored. The result holds no override tables.
func Resolve(n *Node, distro, version string) *Node {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindSequence:
		out := Sequence()
		for _, item := range n.Items {
			out.Items = append(out.Items, Resolve(item, distro, version))
		}
		return out
	case KindMapping:
		out := Mapping()
		for _, field := range n.Fields {
			value := field.Value
			if ov, ok := n.pick(field.Key, distro, version); ok {
				value = ov
			}
			out.Fields = append(out.Fields, Field{Key: field.Key, Value: Resolve(value, distro, version)})
		}
		return out
	default:
		return n.Clone()
	}
}

// pick picks the override for key with version precedence.
func (n *Node) pick(key, distro, version string) (*Node, bool) {
	if version != "" {
		if v, ok := n.override(Qualifier{Distro: distro, Version: version}, key); ok && !v.IsNull() {
			return v, true
		}
	}
	if v, ok := n.override(Qualifier{Distro: distro}, key); ok && !v.IsNull() {
		return v, true
	}
	return nil, false
}

func (n *Node) override(qual Qualifier, key string) (*Node, bool) {
	for i := len(n.Overrides) - 1; i >= 0; i-- {
		ov := n.Overrides[i]
		if ov.Qualifier == qual && ov.Key == key {
			return ov.Value, true
		}
	}
	return nil, false
}

// ResolveFor qualifies a copy of n and resolves it for one target.
func ResolveFor(n *Node, q Qualifiers, target Target) *Node {
	return Resolve(Qualify(n.Clone(), q), target.Distro, target.Version)
}
