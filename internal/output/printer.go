package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

// Format selects how a Printer renders results.
type Format string

const (
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unknown output format %q", name)
	}
}

// Tabular is implemented by results that can be rendered as a table.
// JSON and YAML output encode the value itself.
type Tabular interface {
	Headers() []string
	Rows() [][]string
}

// Printer writes results and status messages to one writer.
type Printer struct {
	w      io.Writer
	format Format
}

// NewPrinter creates a Printer for the named format.
func NewPrinter(w io.Writer, format string) (*Printer, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	return &Printer{w: w, format: f}, nil
}

// Format returns the printer's output format.
func (p *Printer) Format() Format { return p.format }

// Print renders v in the printer's format.
func (p *Printer) Print(v Tabular) error {
	switch p.format {
	case FormatJSON:
		return PrintJSON(p.w, v)
	case FormatYAML:
		return PrintYAML(p.w, v)
	default:
		t := NewTable(v.Headers())
		for _, row := range v.Rows() {
			t.AddRow(row)
		}
		return t.Render(p.w)
	}
}

// PrintJSON writes data as indented JSON.
func PrintJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// PrintYAML writes data as YAML.
func PrintYAML(w io.Writer, data any) error {
	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)
	if err := encoder.Encode(data); err != nil {
		return err
	}
	return encoder.Close()
}

// Status messages are only printed in table mode so machine-readable output
// stays parseable.

func (p *Printer) Success(format string, args ...any) {
	p.status(color.New(color.FgGreen, color.Bold), "✔ ", format, args...)
}

func (p *Printer) Error(format string, args ...any) {
	p.status(color.New(color.FgRed, color.Bold), "✘ ", format, args...)
}

func (p *Printer) Info(format string, args ...any) {
	p.status(color.New(color.FgCyan), "", format, args...)
}

func (p *Printer) Warning(format string, args ...any) {
	p.status(color.New(color.FgYellow), "! ", format, args...)
}

func (p *Printer) status(c *color.Color, prefix, format string, args ...any) {
	if p.format != FormatTable {
		return
	}
	c.Fprintf(p.w, prefix+format+"\n", args...)
}
