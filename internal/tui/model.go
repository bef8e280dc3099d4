// Package tui renders live download progress as a bubbletea program,
// one bar per task, for callers that want a dashboard instead of
// scrolling progress lines.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/arlofen/fetchcore/internal/core/task"
)

// progressMsg carries one task's latest event into the bubbletea loop.
// Pause/Resume style architectures pump these off an engine event
// channel on a background goroutine and send them with tea.Program.Send.
type progressMsg task.ProgressEvent

type row struct {
	ev       task.ProgressEvent
	filename string
	bar      progress.Model
	done     bool
}

// Model tracks one row per task id, keyed by insertion order so the
// dashboard doesn't reshuffle rows as tasks finish.
type Model struct {
	order     []string
	rows      map[string]*row
	width     int
	quitting  bool
	onQuit    func()
	remaining int
}

// New builds a Model for the given task ids, each labeled with its
// filename for display (looked up once, since CreateTask already
// resolved it before the download starts). onQuit is invoked exactly
// once if the user presses ctrl+c or q before every task finishes.
func New(ids []string, filenames map[string]string, onQuit func()) Model {
	rows := make(map[string]*row, len(ids))
	for _, id := range ids {
		rows[id] = &row{
			filename: filenames[id],
			bar:      progress.New(progress.WithScaledGradient(progressStart, progressEnd)),
		}
	}
	return Model{
		order:     append([]string(nil), ids...),
		rows:      rows,
		width:     80,
		onQuit:    onQuit,
		remaining: len(ids),
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			if !m.quitting && m.onQuit != nil {
				m.onQuit()
			}
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case progressMsg:
		ev := task.ProgressEvent(msg)
		r, ok := m.rows[ev.ID]
		if !ok {
			return m, nil
		}
		wasDone := r.done
		r.ev = ev
		r.done = ev.Status.IsTerminal() || ev.Status == task.StatusFailed || ev.Status == task.StatusPaused
		if r.done && !wasDone {
			m.remaining--
		}
		r.bar.Width = barWidth(m.width)
		cmd := r.bar.SetPercent(ev.Percent / 100)
		if m.remaining <= 0 {
			return m, tea.Batch(cmd, tea.Quit)
		}
		return m, cmd

	}

	// Anything else (notably the animation tick messages SetPercent's
	// returned command produces) is progress bar business; forward it
	// to every bar and let each ignore what isn't its own.
	var cmds []tea.Cmd
	for _, r := range m.rows {
		newModel, cmd := r.bar.Update(msg)
		if pm, ok := newModel.(progress.Model); ok {
			r.bar = pm
		}
		if cmd != nil {
			cmds = append(cmds, cmd)
		}
	}
	return m, tea.Batch(cmds...)
}

func barWidth(termWidth int) int {
	w := termWidth - 40
	if w < 10 {
		w = 10
	}
	if w > 50 {
		w = 50
	}
	return w
}

func (m Model) View() string {
	var b strings.Builder
	for _, id := range m.order {
		r := m.rows[id]
		short := id
		if len(short) > 8 {
			short = short[:8]
		}
		statusText := string(r.ev.Status)
		if statusText == "" {
			statusText = "queued"
		}
		statusStyle := lipgloss.NewStyle().Foreground(stateColor(statusText))

		fmt.Fprintf(&b, "%s  %-24s  %s  %s\n",
			styleID.Render(short),
			styleName.Render(truncate(r.filename, 24)),
			r.bar.ViewAs(r.ev.Percent/100),
			statusStyle.Render(statusText),
		)
		if r.ev.Total > 0 {
			fmt.Fprintf(&b, "          %s / %s", humanize.Bytes(uint64(r.ev.Downloaded)), humanize.Bytes(uint64(r.ev.Total)))
			if r.ev.Rate > 0 {
				fmt.Fprintf(&b, "  %s/s", humanize.Bytes(uint64(r.ev.Rate)))
			}
			b.WriteString("\n")
		}
		if r.ev.Status == task.StatusFailed && r.ev.Error != "" {
			fmt.Fprintf(&b, "          %s\n", styleError.Render(r.ev.Error))
		}
	}
	if m.quitting {
		b.WriteString(styleDim.Render("\npausing in place, resume later with `fetchctl resume`\n"))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
