// Where: internal/ui/console.go
// What: Console output helpers for pipeline progress.
// Why: Keep stage lines, colors and failure output consistent across commands.
package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/poruru/mdpack/internal/manifest"
	"github.com/poruru/mdpack/internal/pipeline"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[1;31m"
	colorGreen = "\033[1;32m"
	colorDim   = "\033[2m"
)

// IsTerminal reports whether the writer is a terminal device.
var IsTerminal = func(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok || file == nil {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Console provides helper methods for formatted output.
type Console struct {
	Out   io.Writer
	Color bool
}

// New creates a Console; colors are enabled when out is a terminal.
func New(out io.Writer) *Console {
	return &Console{Out: out, Color: IsTerminal(out)}
}

// Header prints a section header with an emoji.
// Example: 📦 Processing rpn.yaml
func (c *Console) Header(emoji, title string) {
	fmt.Fprintf(c.Out, "%s %s\n", emoji, title)
}

// Info prints an info message with an arrow.
func (c *Console) Info(msg string) {
	fmt.Fprintf(c.Out, "➜ %s\n", msg)
}

// Success prints a success message with a checkmark.
func (c *Console) Success(msg string) {
	fmt.Fprintf(c.Out, "✅ %s\n", msg)
}

// Error prints a failure message, followed by detail lines when present.
func (c *Console) Error(msg string, detail string) {
	fmt.Fprintf(c.Out, "%s\n", c.paint(colorRed, "❌ "+msg))
	if detail = strings.TrimRight(detail, "\n"); detail != "" {
		fmt.Fprintln(c.Out, indent(detail, "   "))
	}
}

// TargetStarted implements pipeline.Observer.
func (c *Console) TargetStarted(target manifest.Target) {
	c.Info("Processing " + target.Slug())
}

// StageFinished implements pipeline.Observer.
func (c *Console) StageFinished(result pipeline.StageResult) {
	fmt.Fprint(c.Out, Render(result, c.Color))
}

// Render formats one stage outcome: "\t<label> .. ok|FAILED|skipped", then
// the captured output and error of a failed stage.
func Render(result pipeline.StageResult, color bool) string {
	var b strings.Builder
	status := result.Status.String()
	if color {
		switch result.Status {
		case pipeline.StatusOK:
			status = colorGreen + status + colorReset
		case pipeline.StatusFailed:
			status = colorRed + status + colorReset
		default:
			status = colorDim + status + colorReset
		}
	}
	fmt.Fprintf(&b, "\t%s .. %s", result.Label, status)
	if result.Status == pipeline.StatusSkipped && result.Output != "" {
		fmt.Fprintf(&b, " (%s)", result.Output)
	}
	b.WriteByte('\n')
	if result.Status != pipeline.StatusFailed {
		return b.String()
	}
	if output := strings.TrimRight(result.Output, "\n"); output != "" {
		b.WriteString(indent(output, "\t\t"))
		b.WriteByte('\n')
	}
	if result.Err != nil {
		line := result.Err.Error()
		if color {
			line = colorRed + line + colorReset
		}
		b.WriteString(indent(line, "\t\t"))
		b.WriteByte('\n')
	}
	return b.String()
}

func (c *Console) paint(color, text string) string {
	if !c.Color {
		return text
	}
	return color + text + colorReset
}

func indent(text, prefix string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
