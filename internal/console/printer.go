// Package console renders gitflow's user-facing output and prompts.
// Color is disabled when NO_COLOR is set (https://no-color.org) or the output is not a TTY.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	mutedStyle   = lipgloss.NewStyle().Faint(true)
	boldStyle    = lipgloss.NewStyle().Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
)

// Printer writes progress lines. It satisfies flow.Printer.
type Printer struct {
	w     io.Writer
	color bool
}

// NewPrinter returns a printer writing to w, colored when w is a terminal.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w, color: ColorEnabled(w)}
}

// NewPlainPrinter returns a printer that never emits escape sequences.
func NewPlainPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// ColorEnabled reports whether w is a terminal and NO_COLOR is unset.
func ColorEnabled(w io.Writer) bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}

func (p *Printer) style(s lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return s.Render(text)
}

func (p *Printer) line(s lipgloss.Style, format string, args ...any) {
	_, _ = fmt.Fprintln(p.w, p.style(s, fmt.Sprintf(format, args...)))
}

func (p *Printer) Infof(format string, args ...any)    { p.line(infoStyle, format, args...) }
func (p *Printer) Successf(format string, args ...any) { p.line(successStyle, format, args...) }
func (p *Printer) Warnf(format string, args ...any)    { p.line(warningStyle, format, args...) }
func (p *Printer) Errorf(format string, args ...any)   { p.line(errorStyle, format, args...) }

// Printf writes unstyled output.
func (p *Printer) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

// Bold returns s in bold.
func (p *Printer) Bold(s string) string { return p.style(boldStyle, s) }

// Muted returns s dimmed.
func (p *Printer) Muted(s string) string { return p.style(mutedStyle, s) }

// Heading returns s styled as a section header.
func (p *Printer) Heading(s string) string { return p.style(headerStyle, s) }
