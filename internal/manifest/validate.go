// Where: internal/manifest/validate.go
// What: Schema validation of manifest trees.
// Why: Reject malformed manifests with every violation listed before any build runs.
package manifest

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const schemaURL = "manifest.schema.json"

//go:embed schema/manifest.schema.json
var schemaJSON []byte

var (
	schemaOnce     sync.Once
	schemaErr      error
	compiledSchema *jsonschema.Schema

	quotedName = regexp.MustCompile(`'([^']*)'`)
)

// Violation is one failed schema constraint.
type Violation struct {
	Path    string
	Message string
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Message
	}
	return v.Path + ": " + v.Message
}

// ValidationError lists every violated constraint of one manifest.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "invalid manifest: " + strings.Join(parts, "; ")
}

// Validate checks the required shape of a manifest tree. Unknown fields
// are always accepted.
func Validate(root *Node) error {
	sch, err := loadSchema()
	if err != nil {
		return err
	}
	document, err := jsonDocument(root)
	if err != nil {
		return err
	}
	err = sch.Validate(document)
	if err == nil {
		return nil
	}
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return fmt.Errorf("validate manifest: %w", err)
	}
	return &ValidationError{Violations: collectViolations(verr)}
}

func loadSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			schemaErr = fmt.Errorf("load manifest schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile(schemaURL)
	})
	return compiledSchema, schemaErr
}

// jsonDocument normalizes the tree into the value shapes encoding/json
// produces, which is what the schema validator expects.
func jsonDocument(root *Node) (any, error) {
	payload, err := json.Marshal(root.Interface())
	if err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	decoder := json.NewDecoder(bytes.NewReader(payload))
	decoder.UseNumber()
	var document any
	if err := decoder.Decode(&document); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return document, nil
}

func collectViolations(root *jsonschema.ValidationError) []Violation {
	var out []Violation
	var walk func(*jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, toViolations(e)...)
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(root)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return out[i].Message < out[j].Message
	})
	return out
}

// toViolations splits "missing properties" errors into one violation per
// field, so the error names e.g. "pkg.version" directly.
func toViolations(e *jsonschema.ValidationError) []Violation {
	path := pointerToPath(e.InstanceLocation)
	if strings.HasSuffix(e.KeywordLocation, "/required") {
		names := quotedName.FindAllStringSubmatch(e.Message, -1)
		if len(names) > 0 {
			out := make([]Violation, 0, len(names))
			for _, name := range names {
				out = append(out, Violation{Path: joinPath(path, name[1]), Message: "is required"})
			}
			return out
		}
	}
	return []Violation{{Path: path, Message: e.Message}}
}

func pointerToPath(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return ""
	}
	segments := strings.Split(pointer, "/")
	var b strings.Builder
	for i, segment := range segments {
		segment = strings.ReplaceAll(strings.ReplaceAll(segment, "~1", "/"), "~0", "~")
		if isIndex(segment) {
			b.WriteString("[" + segment + "]")
			continue
		}
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(segment)
	}
	return b.String()
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

func isIndex(segment string) bool {
	if segment == "" {
		return false
	}
	for i := 0; i < len(segment); i++ {
		if !isDigit(segment[i]) {
			return false
		}
	}
	return true
}
