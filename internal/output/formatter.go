// Package output renders analysis results as text, markdown, JSON or TOON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	toon "github.com/toon-format/toon-go"
)

// Format represents an output format.
type Format string

const (
	FormatText     Format = "text"
	FormatJSON     Format = "json"
	FormatMarkdown Format = "markdown"
	FormatTOON     Format = "toon"
)

// ParseFormat converts a string to Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "markdown", "md":
		return FormatMarkdown
	case "toon":
		return FormatTOON
	default:
		return FormatText
	}
}

// Structured reports whether the format is meant for other programs.
func (f Format) Structured() bool {
	return f == FormatJSON || f == FormatTOON
}

// Renderable defines data that can render itself in multiple formats.
type Renderable interface {
	RenderText(w io.Writer, colored bool) error
	RenderMarkdown(w io.Writer) error
	// RenderData returns the underlying data for JSON and TOON serialization.
	RenderData() any
}

// Formatter writes results in one format. Status messages go to the same
// writer for text and markdown and to stderr for JSON and TOON, so that
// structured output stays parseable.
type Formatter struct {
	format  Format
	writer  io.Writer
	status  io.Writer
	file    *os.File
	colored bool
}

// NewWriterFormatter creates a formatter writing to w.
func NewWriterFormatter(format Format, w io.Writer, colored bool) *Formatter {
	f := &Formatter{format: format, writer: w, status: w, colored: colored}
	if format.Structured() {
		f.status = os.Stderr
	}
	return f
}

// NewFormatter creates a formatter writing to output, or stdout when output
// is empty. File output is never colored and its status messages go to
// stderr.
func NewFormatter(format Format, output string, colored bool) (*Formatter, error) {
	if output == "" {
		return NewWriterFormatter(format, os.Stdout, colored), nil
	}
	file, err := os.Create(output)
	if err != nil {
		return nil, err
	}
	f := NewWriterFormatter(format, file, false)
	f.file = file
	f.status = os.Stderr
	return f, nil
}

// Close closes the formatter's writer if it's a file.
func (f *Formatter) Close() error {
	if f.file != nil {
		return f.file.Close()
	}
	return nil
}

// Colored returns whether colored output is enabled.
func (f *Formatter) Colored() bool {
	return f.colored
}

// Output writes data in the configured format.
func (f *Formatter) Output(data any) error {
	r, ok := data.(Renderable)
	switch {
	case f.format == FormatJSON && ok:
		return f.outputJSON(r.RenderData())
	case f.format == FormatTOON && ok:
		return f.outputTOON(r.RenderData())
	case f.format == FormatMarkdown && ok:
		return r.RenderMarkdown(f.writer)
	case ok:
		return r.RenderText(f.writer, f.colored)
	case f.format == FormatTOON:
		return f.outputTOON(data)
	case f.format == FormatMarkdown:
		fmt.Fprintln(f.writer, "```json")
		if err := f.outputJSON(data); err != nil {
			return err
		}
		_, err := fmt.Fprintln(f.writer, "```")
		return err
	}
	return f.outputJSON(data)
}

func (f *Formatter) outputJSON(data any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func (f *Formatter) outputTOON(data any) error {
	out, err := toon.Marshal(data, toon.WithIndent(2))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f.writer, string(out))
	return err
}

// Warning prints a status line flagged as a warning.
func (f *Formatter) Warning(format string, args ...any) {
	f.message(color.FgYellow, "WARNING: ", format, args...)
}

// Info prints a status line.
func (f *Formatter) Info(format string, args ...any) {
	f.message(color.FgCyan, "", format, args...)
}

func (f *Formatter) message(attr color.Attribute, prefix, format string, args ...any) {
	if f.colored {
		color.New(attr).Fprintf(f.status, format+"\n", args...)
		return
	}
	fmt.Fprintf(f.status, prefix+format+"\n", args...)
}
