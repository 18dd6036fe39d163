package tui

import (
	"fmt"
	"io"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/muesli/termenv"
)

// StepPrinter writes one line per resolved node as events arrive.
type StepPrinter struct {
	out     io.Writer
	profile termenv.Profile
}

// NewStepPrinter creates a printer. color false forces plain text.
func NewStepPrinter(out io.Writer, color bool) *StepPrinter {
	p := termenv.Ascii
	if color {
		p = termenv.ColorProfile()
	}
	return &StepPrinter{out: out, profile: p}
}

// Step prints s.
func (p *StepPrinter) Step(s domain.StepRecord) {
	mark, color := "✓", "#22c55e"
	switch {
	case s.Excluded:
		mark, color = "-", "#9ca3af"
	case s.Skipped:
		mark, color = "~", "#f59e0b"
	case !s.Success:
		mark, color = "✗", "#ef4444"
	}
	head := p.profile.String(fmt.Sprintf("%s %-20s", mark, s.NodeID)).Foreground(p.profile.Color(color))
	detail := p.profile.String(fmt.Sprintf("%s/%s", s.Agent, s.Action)).Faint()
	if s.DurationMs > 0 {
		fmt.Fprintf(p.out, "%s %s %s\n", head, detail, p.profile.String(fmt.Sprintf("%.0fms", s.DurationMs)).Faint())
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", head, detail)
}

// Error prints a run failure.
func (p *StepPrinter) Error(msg string) {
	fmt.Fprintln(p.out, p.profile.String("✗ "+msg).Foreground(p.profile.Color("#ef4444")).Bold())
}
