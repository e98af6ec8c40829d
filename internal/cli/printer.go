package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Printer renders chat output. Assistant answers get a bordered panel,
// tool activity and errors get colored one-liners.
type Printer struct {
	out io.Writer

	assistantPanel lipgloss.Style
	userLabel      lipgloss.Style
	toolLine       lipgloss.Style
	errorLine      lipgloss.Style
	infoLine       lipgloss.Style
}

// NewPrinter creates a printer writing to out
func NewPrinter(out io.Writer) *Printer {
	return &Printer{
		out: out,
		assistantPanel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1).
			Width(76),
		userLabel: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true),
		toolLine: lipgloss.NewStyle().
			Foreground(lipgloss.Color("244")),
		errorLine: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		infoLine: lipgloss.NewStyle().
			Foreground(lipgloss.Color("108")),
	}
}

// Assistant renders a final assistant answer
func (p *Printer) Assistant(text string) {
	fmt.Fprintln(p.out, p.assistantPanel.Render(text))
}

// Prompt renders the input prompt label
func (p *Printer) Prompt() {
	fmt.Fprint(p.out, p.userLabel.Render("you> "))
}

// Tool renders a line of tool activity
func (p *Printer) Tool(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.toolLine.Render(fmt.Sprintf(format, args...)))
}

// Error renders an error line
func (p *Printer) Error(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.errorLine.Render(fmt.Sprintf(format, args...)))
}

// Info renders an informational line
func (p *Printer) Info(format string, args ...interface{}) {
	fmt.Fprintln(p.out, p.infoLine.Render(fmt.Sprintf(format, args...)))
}
