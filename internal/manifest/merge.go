// Where: internal/manifest/merge.go
// What: Fill-missing-keys merge between a user manifest and distro defaults.
// Why: Distro defaults only complete a manifest; they never replace what the user wrote.
package manifest

// Merge adds to base every key of supplement that base lacks, recursing
// only where both sides hold mappings. A key already present in base keeps
// its value whatever its kind; sequences and scalars are never combined.
// base is modified in place and returned; supplement is only read.
func Merge(base, supplement *Node) *Node {
	if base == nil {
		return supplement.Clone()
	}
	if supplement == nil || base.Kind != KindMapping || supplement.Kind != KindMapping {
		return base
	}

	for _, field := range supplement.Fields {
		existing, ok := base.Get(field.Key)
		if !ok {
			base.Fields = append(base.Fields, Field{Key: field.Key, Value: field.Value.Clone()})
			continue
		}
		if existing != nil && existing.Kind == KindMapping && field.Value != nil && field.Value.Kind == KindMapping {
			Merge(existing, field.Value)
		}
	}

	for _, ov := range supplement.Overrides {
		existing, ok := base.override(ov.Qualifier, ov.Key)
		if !ok {
			base.Overrides = append(base.Overrides, Override{
				Qualifier: ov.Qualifier,
				Key:       ov.Key,
				Value:     ov.Value.Clone(),
			})
			continue
		}
		if existing.Kind == KindMapping && ov.Value != nil && ov.Value.Kind == KindMapping {
			Merge(existing, ov.Value)
		}
	}
	return base
}
