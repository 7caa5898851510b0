package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/timeline/internal/domain"
	"github.com/felixgeelhaar/timeline/internal/editor"
	"github.com/felixgeelhaar/timeline/internal/model"
)

// OutlineResult summarizes an outline viewing session
type OutlineResult struct {
	// Commits counts the structural edits accepted during the session
	Commits int
}

// outlineModel is the BubbleTea model for the outline viewer
type outlineModel struct {
	ed       *editor.Editor
	rows     []model.Task
	critical map[domain.TaskID]bool
	cursor   int
	help     help.Model
	status   string
	failed   bool
	commits  int
	quitting bool
	width    int
	height   int
}

func newOutlineModel(ed *editor.Editor) outlineModel {
	m := outlineModel{ed: ed, help: help.New()}
	m.refresh("")
	return m
}

// refresh reloads the visible rows and keeps the cursor on focus when it
// is still visible.
func (m *outlineModel) refresh(focus domain.TaskID) {
	m.rows = m.ed.GetFlattenedVisible()
	m.critical = make(map[domain.TaskID]bool)
	for _, id := range m.ed.GetCriticalPathIDs() {
		m.critical[id] = true
	}
	if focus != "" {
		for i, t := range m.rows {
			if t.ID == focus {
				m.cursor = i
				return
			}
		}
	}
	if m.cursor >= len(m.rows) {
		m.cursor = len(m.rows) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m outlineModel) selected() (model.Task, bool) {
	if m.cursor < 0 || m.cursor >= len(m.rows) {
		return model.Task{}, false
	}
	return m.rows[m.cursor], true
}

// apply runs one editor mutation on the selected row and reports its outcome
// in the status line.
func (m *outlineModel) apply(op string, fn func(domain.TaskID) (*editor.Commit, error)) {
	t, ok := m.selected()
	if !ok {
		return
	}
	c, err := fn(t.ID)
	if err != nil {
		m.status, m.failed = firstLine(err.Error()), true
		return
	}
	m.commits++
	m.status, m.failed = fmt.Sprintf("%s %s: %d task(s) changed", op, t.ID, len(c.Changed)), false
	m.refresh(t.ID)
}

// Init initializes the model
func (m outlineModel) Init() tea.Cmd {
	return nil
}

// Update handles messages and updates the model
func (m outlineModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit

		case key.Matches(msg, keys.Help):
			m.help.ShowAll = !m.help.ShowAll

		case key.Matches(msg, keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}

		case key.Matches(msg, keys.Down):
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}

		case key.Matches(msg, keys.Toggle):
			if t, ok := m.selected(); ok && m.isParent(t.ID) {
				if _, err := m.ed.SetExpanded(t.ID, !m.ed.Expanded(t.ID)); err != nil {
					m.status, m.failed = firstLine(err.Error()), true
				}
				m.refresh(t.ID)
			}

		case key.Matches(msg, keys.ExpandAll):
			t, _ := m.selected()
			m.ed.ExpandAll()
			m.refresh(t.ID)

		case key.Matches(msg, keys.CollapseAll):
			m.ed.CollapseAll()
			m.cursor = 0
			m.refresh("")

		case key.Matches(msg, keys.MoveUp):
			m.apply("move up", m.ed.MoveUp)

		case key.Matches(msg, keys.MoveDown):
			m.apply("move down", m.ed.MoveDown)

		case key.Matches(msg, keys.Indent):
			m.apply("indent", func(id domain.TaskID) (*editor.Commit, error) { return m.ed.MoveRight(id) })

		case key.Matches(msg, keys.Outdent):
			m.apply("outdent", m.ed.MoveLeft)
		}
	}

	return m, nil
}

// View renders the current state
func (m outlineModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Timeline"))
	b.WriteString("\n")
	if start, end, ok := m.ed.GetRange(); ok {
		b.WriteString(headerStyle.Render(fmt.Sprintf("%s → %s · %d tasks · %d critical",
			start.Format(time.DateOnly), end.Format(time.DateOnly), len(m.ed.Tasks()), len(m.critical))))
	} else {
		b.WriteString(headerStyle.Render("No tasks"))
	}
	b.WriteString("\n\n")

	for i, t := range m.rows {
		b.WriteString(m.renderRow(i, t))
		b.WriteString("\n")
	}

	if m.status != "" {
		b.WriteString("\n")
		if m.failed {
			b.WriteString(errorStyle.Render(m.status))
		} else {
			b.WriteString(statusStyle.Render(m.status))
		}
		b.WriteString("\n")
	}

	b.WriteString(helpStyle.Render(m.help.View(keys)))
	return b.String()
}

func (m outlineModel) renderRow(i int, t model.Task) string {
	cursor := "  "
	if i == m.cursor {
		cursor = "→ "
	}
	glyph := "  "
	if m.isParent(t.ID) {
		glyph = "▾ "
		if !m.ed.Expanded(t.ID) {
			glyph = "▸ "
		}
	}
	name := t.Name
	if name == "" {
		name = string(t.ID)
	}
	marker := " "
	if m.critical[t.ID] {
		marker = "*"
	}
	line := fmt.Sprintf("%s%s%s%s%-*s %s %s → %s %3d%%",
		cursor, marker, strings.Repeat("  ", t.Level), glyph,
		max(1, 28-2*t.Level), name, kindGlyph(t.Kind),
		t.Start.Format(time.DateOnly), t.End.Format(time.DateOnly), t.Progress)

	switch {
	case i == m.cursor:
		return selectedRowStyle.Render(line)
	case m.critical[t.ID]:
		return criticalStyle.Render(line)
	case t.IsSummary():
		return summaryStyle.Render(line)
	default:
		return rowStyle.Render(line)
	}
}

func (m outlineModel) isParent(id domain.TaskID) bool {
	return len(m.ed.GetChildren(id)) > 0
}

func kindGlyph(k domain.TaskKind) string {
	switch k {
	case domain.KindSummary:
		return "S"
	case domain.KindMilestone:
		return "M"
	default:
		return "T"
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// RunOutline launches the interactive outline viewer on ed. Structural
// edits made in the viewer are applied to ed.
func RunOutline(ed *editor.Editor) (*OutlineResult, error) {
	program := tea.NewProgram(newOutlineModel(ed), tea.WithAltScreen())
	finalModel, err := program.Run()
	if err != nil {
		return nil, fmt.Errorf("running outline UI: %w", err)
	}

	m, ok := finalModel.(outlineModel)
	if !ok {
		return nil, fmt.Errorf("unexpected model type: %T", finalModel)
	}
	return &OutlineResult{Commits: m.commits}, nil
}
