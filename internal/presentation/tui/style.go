package tui

import (
	"io"

	"github.com/advancedresearch/agent-safety-layers/pkg/domain"
	"github.com/muesli/termenv"
)

// Styler colours decision output according to the writer's color profile.
type Styler struct {
	out *termenv.Output
}

// NewStyler creates a Styler for w. Non-terminal writers get plain text.
func NewStyler(w io.Writer, opts ...termenv.OutputOption) *Styler {
	return &Styler{out: termenv.NewOutput(w, opts...)}
}

// Outcome renders an outcome: green when confirmed, amber when an update is requested.
func (s *Styler) Outcome(o domain.Outcome) string {
	color := "#22c55e"
	if o == domain.UpdateRequested {
		color = "#f59e0b"
	}
	return s.out.String(o.String()).Foreground(s.out.Color(color)).Bold().String()
}

// Action renders an action name.
func (s *Styler) Action(a string) string {
	return s.out.String(a).Foreground(s.out.Color("#818cf8")).String()
}

// Faint renders secondary text.
func (s *Styler) Faint(text string) string {
	return s.out.String(text).Faint().String()
}

// Title renders a heading.
func (s *Styler) Title(text string) string {
	return s.out.String(text).Foreground(s.out.Color("#c084fc")).Bold().String()
}
