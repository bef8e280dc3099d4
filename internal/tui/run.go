package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/arlofen/fetchcore/internal/core/task"
)

// Run drives a bubbletea program showing one progress bar per id,
// relaying events off the given channel until every task reaches a
// terminal state or the user quits. onQuit is called at most once, in
// time for the caller to pause the owned tasks before Run returns.
func Run(ids []string, filenames map[string]string, events <-chan task.ProgressEvent, onQuit func()) error {
	m := New(ids, filenames, onQuit)
	p := tea.NewProgram(m)

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				p.Send(progressMsg(ev))
			case <-stop:
				return
			}
		}
	}()

	_, err := p.Run()
	return err
}
