// Where: internal/manifest/node.go
// What: Ordered tagged-variant tree for manifest documents.
// Why: Keep key order and scalar text exactly as written while supporting presence checks.
package manifest

import (
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Kind identifies the variant held by a Node.
type Kind int

const (
	KindNull Kind = iota
	KindScalar
	KindSequence
	KindMapping
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindSequence:
		return "sequence"
	case KindMapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Field is one canonical key/value pair of a mapping node.
type Field struct {
	Key   string
	Value *Node
}

// Node is a manifest tree element: null, scalar, ordered sequence, or
// ordered mapping. Mapping nodes carry distro/version overrides in a
// separate table once the tree has been qualified (see Qualify).
type Node struct {
	Kind      Kind
	Tag       string
	Value     string
	Items     []*Node
	Fields    []Field
	Overrides []Override
}

// Null returns a null node.
func Null() *Node {
	return &Node{Kind: KindNull, Tag: "!!null"}
}

// Scalar returns a string scalar node.
func Scalar(value string) *Node {
	return &Node{Kind: KindScalar, Tag: "!!str", Value: value}
}

// Sequence returns a sequence node holding items in order.
func Sequence(items ...*Node) *Node {
	return &Node{Kind: KindSequence, Items: items}
}

// Strings returns a sequence of string scalars.
func Strings(values ...string) *Node {
	items := make([]*Node, 0, len(values))
	for _, value := range values {
		items = append(items, Scalar(value))
	}
	return Sequence(items...)
}

// Mapping returns a mapping node holding fields in order.
func Mapping(fields ...Field) *Node {
	return &Node{Kind: KindMapping, Fields: fields}
}

// IsNull reports whether n is absent or an explicit null.
func (n *Node) IsNull() bool {
	return n == nil || n.Kind == KindNull
}

// Get returns the canonical field stored under key.
func (n *Node) Get(key string) (*Node, bool) {
	if n == nil || n.Kind != KindMapping {
		return nil, false
	}
	for i := len(n.Fields) - 1; i >= 0; i-- {
		if n.Fields[i].Key == key {
			return n.Fields[i].Value, true
		}
	}
	return nil, false
}

// Has reports whether a canonical key is present, even with a null value.
func (n *Node) Has(key string) bool {
	_, ok := n.Get(key)
	return ok
}

// Set replaces the value of key or appends a new field.
func (n *Node) Set(key string, value *Node) {
	for i := len(n.Fields) - 1; i >= 0; i-- {
		if n.Fields[i].Key == key {
			n.Fields[i].Value = value
			return
		}
	}
	n.Fields = append(n.Fields, Field{Key: key, Value: value})
}

// Keys returns the canonical keys in declaration order.
func (n *Node) Keys() []string {
	if n == nil || n.Kind != KindMapping {
		return nil
	}
	keys := make([]string, 0, len(n.Fields))
	for _, field := range n.Fields {
		keys = append(keys, field.Key)
	}
	return keys
}

// Lookup walks nested mappings along path.
func (n *Node) Lookup(path ...string) (*Node, bool) {
	current := n
	for _, key := range path {
		next, ok := current.Get(key)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, current != nil
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Kind: n.Kind, Tag: n.Tag, Value: n.Value}
	if n.Items != nil {
		out.Items = make([]*Node, 0, len(n.Items))
		for _, item := range n.Items {
			out.Items = append(out.Items, item.Clone())
		}
	}
	if n.Fields != nil {
		out.Fields = make([]Field, 0, len(n.Fields))
		for _, field := range n.Fields {
			out.Fields = append(out.Fields, Field{Key: field.Key, Value: field.Value.Clone()})
		}
	}
	if n.Overrides != nil {
		out.Overrides = make([]Override, 0, len(n.Overrides))
		for _, ov := range n.Overrides {
			out.Overrides = append(out.Overrides, Override{
				Qualifier: ov.Qualifier,
				Key:       ov.Key,
				Value:     ov.Value.Clone(),
			})
		}
	}
	return out
}

// Text returns the scalar text of n, or "" for non-scalars.
func (n *Node) Text() string {
	if n == nil || n.Kind != KindScalar {
		return ""
	}
	return n.Value
}

// Interface converts n into plain Go values (map[string]any, []any, scalars).
// Overrides that are still attached are rendered back as qualified keys.
func (n *Node) Interface() any {
	if n == nil {
		return nil
	}
	switch n.Kind {
	case KindScalar:
		return scalarValue(n)
	case KindSequence:
		items := make([]any, 0, len(n.Items))
		for _, item := range n.Items {
			items = append(items, item.Interface())
		}
		return items
	case KindMapping:
		out := make(map[string]any, len(n.Fields)+len(n.Overrides))
		for _, field := range n.Fields {
			out[field.Key] = field.Value.Interface()
		}
		for _, ov := range n.Overrides {
			out[ov.QualifiedKey()] = ov.Value.Interface()
		}
		return out
	default:
		return nil
	}
}

// YAML converts n back into a yaml.v3 node, preserving key order.
func (n *Node) YAML() *yaml.Node {
	if n == nil {
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	switch n.Kind {
	case KindScalar:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: n.Tag, Value: n.Value}
	case KindSequence:
		out := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range n.Items {
			out.Content = append(out.Content, item.YAML())
		}
		return out
	case KindMapping:
		out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, field := range n.Fields {
			out.Content = append(out.Content, Scalar(field.Key).YAML(), field.Value.YAML())
		}
		for _, ov := range n.Overrides {
			out.Content = append(out.Content, Scalar(ov.QualifiedKey()).YAML(), ov.Value.YAML())
		}
		return out
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

func scalarValue(n *Node) any {
	switch n.Tag {
	case "!!int":
		if v, err := strconv.ParseInt(n.Value, 0, 64); err == nil {
			return v
		}
	case "!!float":
		if v, err := strconv.ParseFloat(n.Value, 64); err == nil {
			return v
		}
	case "!!bool":
		if v, err := strconv.ParseBool(n.Value); err == nil {
			return v
		}
	}
	return n.Value
}

// Parse decodes a YAML document into a Node tree. An empty document
// yields an empty mapping.
func Parse(data []byte) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return Mapping(), nil
	}
	return fromYAML(doc.Content[0])
}

func fromYAML(y *yaml.Node) (*Node, error) {
	switch y.Kind {
	case yaml.DocumentNode:
		if len(y.Content) == 0 {
			return Null(), nil
		}
		return fromYAML(y.Content[0])
	case yaml.AliasNode:
		if y.Alias == nil {
			return Null(), nil
		}
		return fromYAML(y.Alias)
	case yaml.ScalarNode:
		if y.ShortTag() == "!!null" {
			return Null(), nil
		}
		return &Node{Kind: KindScalar, Tag: y.ShortTag(), Value: y.Value}, nil
	case yaml.SequenceNode:
		out := Sequence()
		for _, item := range y.Content {
			child, err := fromYAML(item)
			if err != nil {
				return nil, err
			}
			out.Items = append(out.Items, child)
		}
		return out, nil
	case yaml.MappingNode:
		out := Mapping()
		for i := 0; i+1 < len(y.Content); i += 2 {
			keyNode := y.Content[i]
			if keyNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("line %d: mapping keys must be scalars", keyNode.Line)
			}
			child, err := fromYAML(y.Content[i+1])
			if err != nil {
				return nil, err
			}
			out.Set(keyNode.Value, child)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported yaml node kind %d", y.Line, y.Kind)
	}
}
