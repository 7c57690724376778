package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)
	headingColor = color.New(color.FgWhite, color.Bold)
)

// Printer writes console messages. Errors go to err, everything else to out.
type Printer struct {
	out io.Writer
	err io.Writer
}

// New returns a Printer writing to out and err.
func New(out, err io.Writer) *Printer {
	if out == nil {
		out = os.Stdout
	}
	if err == nil {
		err = os.Stderr
	}
	return &Printer{out: out, err: err}
}

// Default returns a Printer bound to stdout and stderr.
func Default() *Printer {
	return New(os.Stdout, os.Stderr)
}

func (p *Printer) Success(format string, a ...interface{}) {
	successColor.Fprintf(p.out, "✓ "+format+"\n", a...)
}

func (p *Printer) Error(format string, a ...interface{}) {
	errorColor.Fprintf(p.err, "✗ "+format+"\n", a...)
}

func (p *Printer) Info(format string, a ...interface{}) {
	infoColor.Fprintf(p.out, format+"\n", a...)
}

func (p *Printer) Warn(format string, a ...interface{}) {
	warnColor.Fprintf(p.out, "⚠ "+format+"\n", a...)
}

// Notice prints an informational marker line, uncolored.
func (p *Printer) Notice(format string, a ...interface{}) {
	fmt.Fprintf(p.out, "ℹ "+format+"\n", a...)
}

// Heading prints a "=== title ===" banner.
func (p *Printer) Heading(title string) {
	headingColor.Fprintf(p.out, "=== %s ===\n", title)
}

// Plain prints an uncolored line.
func (p *Printer) Plain(format string, a ...interface{}) {
	fmt.Fprintf(p.out, format+"\n", a...)
}

func (p *Printer) JSON(v interface{}) error {
	enc := json.NewEncoder(p.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) YAML(v interface{}) error {
	enc := yaml.NewEncoder(p.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

var std = Default()

// Error prints to stderr through the default Printer.
func Error(format string, a ...interface{}) { std.Error(format, a...) }
