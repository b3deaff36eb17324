package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/globalassist/globalassist/sdk/go/config"
	"github.com/globalassist/globalassist/sdk/go/guard"
)

// Printer renders command results in the configured format.
type Printer struct {
	out    io.Writer
	format string

	title   lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	badge   lipgloss.Style
}

// NewPrinter styles output for w. Styles degrade to plain text when w is not
// a terminal.
func NewPrinter(w io.Writer, format string) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		out:     w,
		format:  format,
		title:   r.NewStyle().Bold(true).Foreground(lipgloss.Color("99")),
		muted:   r.NewStyle().Foreground(lipgloss.Color("241")),
		success: r.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
		warn:    r.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
		badge:   r.NewStyle().Foreground(lipgloss.Color("205")),
	}
}

// Structured reports whether output is machine readable.
func (p *Printer) Structured() bool { return p.format != config.OutputText }

// Result prints v as JSON or YAML, or calls text for human output.
func (p *Printer) Result(v any, text func(w io.Writer)) error {
	switch p.format {
	case config.OutputJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case config.OutputYAML:
		plain, err := plainValue(v)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(plain); err != nil {
			return err
		}
		return enc.Close()
	default:
		text(p.out)
		return nil
	}
}

// plainValue round-trips v through JSON so YAML output uses the same field
// names as the API.
func plainValue(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *Printer) Title(s string) string   { return p.title.Render(s) }
func (p *Printer) Muted(s string) string   { return p.muted.Render(s) }
func (p *Printer) Badge(s string) string   { return p.badge.Render(s) }
func (p *Printer) Success(s string) string { return p.success.Render(s) }

// Notice prints a one-line status message in text mode only.
func (p *Printer) Notice(format string, args ...any) {
	if p.Structured() {
		return
	}
	fmt.Fprintln(p.out, p.success.Render(fmt.Sprintf(format, args...)))
}

// Warn prints a highlighted line in text mode only.
func (p *Printer) Warn(format string, args ...any) {
	if p.Structured() {
		return
	}
	fmt.Fprintln(p.out, p.warn.Render(fmt.Sprintf(format, args...)))
}

// Redirect describes where the guard sent the user.
func (p *Printer) Redirect(d guard.Decision) {
	if reason := d.Reason(); reason != "" {
		p.Warn("%s", reason)
	}
	p.Warn("-> %s", d.Path)
}
