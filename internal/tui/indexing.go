package tui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"filedex/internal/index"
)

type indexingModel struct {
	spinner spinner.Model
	message string
	done    int
	total   int

	finished bool
	result   *index.Result
	err      error
}

// indexDoneMsg is sent when indexing completes.
type indexDoneMsg struct {
	result *index.Result
	err    error
}

// indexProgressMsg is sent per indexed file.
type indexProgressMsg struct {
	done    int
	total   int
	message string
}

// programRef lets the indexing goroutine send messages to the tea
// program. Set after tea.NewProgram returns, before Run.
type programRef struct {
	p *tea.Program
}

func newIndexingModel() indexingModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle
	return indexingModel{
		spinner: sp,
		message: "Scanning...",
	}
}

func runIndex(pipe *index.Pipeline, dir string, recursive bool, ref *programRef) {
	res, err := pipe.IndexDirectory(context.Background(), dir, recursive, func(done, total int, msg string) {
		if ref.p != nil {
			ref.p.Send(indexProgressMsg{done: done, total: total, message: msg})
		}
	})
	if ref.p != nil {
		ref.p.Send(indexDoneMsg{result: res, err: err})
	}
}

func (m indexingModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m indexingModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case indexDoneMsg:
		m.finished = true
		m.result = msg.result
		m.err = msg.err
		return m, nil
	case indexProgressMsg:
		m.done = msg.done
		m.total = msg.total
		m.message = msg.message
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "enter":
			if m.finished {
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m indexingModel) View() string {
	s := "\n" + titleStyle.Render("  Indexing") + "\n\n"

	if m.finished {
		if m.err != nil {
			s += errorStyle.Render(fmt.Sprintf("  Error: %v", m.err)) + "\n\n"
			s += dimStyle.Render("  Press Enter or q to exit.") + "\n"
			return s
		}
		s += successStyle.Render("  ✓ Indexing complete!") + "\n\n"
		if m.result != nil {
			s += fmt.Sprintf("  Files: %d found, %d indexed, %d with OCR\n",
				m.result.TotalFiles, m.result.IndexedFiles, m.result.FilesWithOCR)
			if m.result.Truncated {
				s += warnStyle.Render("  Scan stopped at the file ceiling.") + "\n"
			}
		}
		s += "\n" + dimStyle.Render("  Press Enter to exit.") + "\n"
		return s
	}

	s += fmt.Sprintf("  %s %s\n", m.spinner.View(), m.message)
	if m.total > 0 {
		s += fmt.Sprintf("  %d / %d files\n", m.done, m.total)
	}
	s += "\n" + dimStyle.Render("  Vision and text models may take a while per file...") + "\n"
	return s
}

// RunIndexing runs the indexing progress screen over one directory.
func RunIndexing(pipe *index.Pipeline, dir string, recursive bool) error {
	ref := &programRef{}
	model := newIndexingModel()
	p := tea.NewProgram(model, tea.WithAltScreen())
	ref.p = p

	go runIndex(pipe, dir, recursive, ref)

	_, err := p.Run()
	return err
}
