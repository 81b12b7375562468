package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"filedex/internal/search"
)

type searchState int

const (
	searchIdle searchState = iota
	searchRunning
)

// searchModel is the interactive search screen: a query box, a result
// list with a movable cursor, and an expandable detail pane for the
// selected file.
type searchModel struct {
	input   textinput.Model
	spinner spinner.Model
	eng     *search.Engine

	state    searchState
	query    string
	results  []search.Result
	cursor   int
	expanded bool
	searched bool

	width  int
	height int
}

// resultsMsg carries a finished search back into the update loop.
type resultsMsg struct {
	query   string
	results []search.Result
}

func newSearchModel(eng *search.Engine) searchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedStyle

	ti := textinput.New()
	ti.Placeholder = "Search files... (type:pdf label:invoice has:ocr)"
	ti.CharLimit = 500
	ti.Focus()

	return searchModel{
		spinner: sp,
		input:   ti,
		eng:     eng,
		state:   searchIdle,
	}
}

func runSearch(eng *search.Engine, query string) tea.Cmd {
	return func() tea.Msg {
		return resultsMsg{query: query, results: eng.Search(context.Background(), query, 20)}
	}
}

func (m searchModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m searchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		return m, nil

	case resultsMsg:
		// Ignore stale responses from an earlier query.
		if msg.query != m.query {
			return m, nil
		}
		m.state = searchIdle
		m.results = msg.results
		m.cursor = 0
		m.expanded = false
		m.searched = true
		return m, nil

	case spinner.TickMsg:
		if m.state == searchRunning {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit
		case "enter":
			query := strings.TrimSpace(m.input.Value())
			if query == "" || m.state == searchRunning {
				return m, nil
			}
			m.query = query
			m.state = searchRunning
			return m, tea.Batch(m.spinner.Tick, runSearch(m.eng, query))
		case "up":
			if m.cursor > 0 {
				m.cursor--
				m.expanded = false
			}
			return m, nil
		case "down":
			if m.cursor < len(m.results)-1 {
				m.cursor++
				m.expanded = false
			}
			return m, nil
		case "tab":
			if len(m.results) > 0 {
				m.expanded = !m.expanded
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m searchModel) View() string {
	var sb strings.Builder
	sb.WriteString("\n" + titleStyle.Render("  filedex") + "\n\n")
	sb.WriteString("  " + m.input.View() + "\n\n")

	switch {
	case m.state == searchRunning:
		sb.WriteString(fmt.Sprintf("  %s Searching...\n", m.spinner.View()))
	case m.searched && len(m.results) == 0:
		sb.WriteString(dimStyle.Render(fmt.Sprintf("  No results for %q", m.query)) + "\n")
	default:
		for i, r := range m.results {
			line := fmt.Sprintf("%s  %s · %s · %.0f%%", r.Name, r.Category, r.SizeFormatted, r.Relevance*100)
			if !r.Exists {
				line += "  " + warnStyle.Render("(missing)")
			}
			if i == m.cursor {
				sb.WriteString(selectedStyle.Render("  > "+line) + "\n")
				if m.expanded {
					sb.WriteString(m.renderDetail(r))
				}
			} else {
				sb.WriteString(listItemStyle.Render("    "+line) + "\n")
			}
		}
	}

	sb.WriteString("\n" + helpStyle.Render("  enter search · up/down select · tab details · esc quit") + "\n")
	return sb.String()
}

func (m searchModel) renderDetail(r search.Result) string {
	var sb strings.Builder
	sb.WriteString(dimStyle.Render("      "+r.Path) + "\n")
	if r.Label != "" {
		sb.WriteString(dimStyle.Render("      label: "+r.Label) + "\n")
	}
	if len(r.Tags) > 0 {
		sb.WriteString(dimStyle.Render("      tags: "+strings.Join(r.Tags, ", ")) + "\n")
	}
	if r.Caption != "" {
		sb.WriteString(dimStyle.Render("      "+truncateLine(r.Caption, 100)) + "\n")
	}
	if r.OCRPreview != "" {
		sb.WriteString(dimStyle.Render("      ocr: "+truncateLine(r.OCRPreview, 100)) + "\n")
	}
	return sb.String()
}

func truncateLine(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

// Run starts the interactive search screen.
func Run(eng *search.Engine) error {
	p := tea.NewProgram(newSearchModel(eng), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
