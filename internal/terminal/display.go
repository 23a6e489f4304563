// Package terminal renders controller output for the command line front end.
package terminal

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"flowmic/internal/domain"
	"flowmic/internal/presenter"
)

var (
	colorText    = lipgloss.Color("#cdd6f4")
	colorMuted   = lipgloss.Color("#a6adc8")
	colorTitle   = lipgloss.Color("#74c7ec")
	colorPending = lipgloss.Color("#fab387")
	colorLive    = lipgloss.Color("#f38ba8")
	colorSuccess = lipgloss.Color("#a6e3a1")
	colorBorder  = lipgloss.Color("#45475a")
	colorHypo    = lipgloss.Color("#2196f3")
	colorHyper   = lipgloss.Color("#f44336")
	colorFlow    = lipgloss.Color("#4caf50")
)

const barWidth = 20

// Display writes statuses and result panels to a terminal. It implements
// ports.Display.
type Display struct {
	mu  sync.Mutex
	out io.Writer

	title  lipgloss.Style
	muted  lipgloss.Style
	text   lipgloss.Style
	panel  lipgloss.Style
	tones  map[presenter.Tone]lipgloss.Style
	series [3]lipgloss.Style
}

func New(out io.Writer) *Display {
	r := lipgloss.NewRenderer(out)
	base := r.NewStyle()
	return &Display{
		out:   out,
		title: base.Foreground(colorTitle).Bold(true),
		muted: base.Foreground(colorMuted),
		text:  base.Foreground(colorText),
		panel: base.
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1),
		tones: map[presenter.Tone]lipgloss.Style{
			presenter.ToneNeutral: base.Foreground(colorMuted),
			presenter.TonePending: base.Foreground(colorPending),
			presenter.ToneLive:    base.Foreground(colorLive).Bold(true),
			presenter.ToneSuccess: base.Foreground(colorSuccess),
			presenter.ToneFailure: base.Foreground(colorLive),
		},
		series: [3]lipgloss.Style{
			base.Foreground(colorHypo),
			base.Foreground(colorHyper),
			base.Foreground(colorFlow),
		},
	}
}

// CaptureStateChanged is silent; statuses already narrate the recording.
func (d *Display) CaptureStateChanged(domain.CaptureState, domain.Controls) {}

func (d *Display) StatusChanged(status domain.Status) {
	line := d.tones[presenter.ToneOf(status)].Render(presenter.Message(status))
	if status.Reason == domain.StatusFailed && status.Detail != "" {
		line += " " + d.muted.Render("("+status.Detail+")")
	}
	d.println(line)
}

func (d *Display) ResultRendered(view domain.ResultView) {
	d.println(d.Panel(view))
}

func (d *Display) PreviewChanged(preview domain.Preview) {
	if preview.Name == "" {
		return
	}
	d.println(d.muted.Render("Selected " + preview.Name))
}

// Panel formats a result view as a bordered block with one bar per state.
func (d *Display) Panel(view domain.ResultView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", d.title.Render("Transcription:"), d.text.Render(view.Transcription))
	fmt.Fprintf(&b, "%s %s\n", d.title.Render("Emotion:"), d.text.Render(view.Emotion))
	b.WriteString(d.text.Render(view.Dominant))
	b.WriteString("\n")

	b.WriteString(d.title.Render("Matches:"))
	if len(view.Matches) == 0 {
		b.WriteString(" " + d.muted.Render("none"))
	}
	for _, match := range view.Matches {
		b.WriteString("\n  " + d.text.Render(match))
	}
	b.WriteString("\n")

	for i, label := range [3]string{"hypo ", "hyper", "flow "} {
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s %s %5.1f%%", label, d.series[i].Render(bar(view.Series[i])), view.Series[i]))
	}
	return d.panel.Render(b.String())
}

func (d *Display) println(line string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, _ = fmt.Fprintln(d.out, line)
}

func bar(percent float64) string {
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	filled := int(percent/100*barWidth + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
}
