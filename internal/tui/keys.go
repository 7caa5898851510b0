package tui

import "github.com/charmbracelet/bubbles/key"

// outlineKeys defines the keyboard shortcuts of the outline viewer
type outlineKeys struct {
	Up          key.Binding
	Down        key.Binding
	Toggle      key.Binding
	ExpandAll   key.Binding
	CollapseAll key.Binding
	MoveUp      key.Binding
	MoveDown    key.Binding
	Indent      key.Binding
	Outdent     key.Binding
	Help        key.Binding
	Quit        key.Binding
}

var keys = outlineKeys{
	Up: key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	),
	Down: key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	),
	Toggle: key.NewBinding(
		key.WithKeys(" ", "enter"),
		key.WithHelp("space", "expand/collapse"),
	),
	ExpandAll: key.NewBinding(
		key.WithKeys("E"),
		key.WithHelp("E", "expand all"),
	),
	CollapseAll: key.NewBinding(
		key.WithKeys("C"),
		key.WithHelp("C", "collapse all"),
	),
	MoveUp: key.NewBinding(
		key.WithKeys("shift+up", "K"),
		key.WithHelp("K", "move up"),
	),
	MoveDown: key.NewBinding(
		key.WithKeys("shift+down", "J"),
		key.WithHelp("J", "move down"),
	),
	Indent: key.NewBinding(
		key.WithKeys("tab", ">"),
		key.WithHelp("tab", "indent"),
	),
	Outdent: key.NewBinding(
		key.WithKeys("shift+tab", "<"),
		key.WithHelp("shift+tab", "outdent"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// ShortHelp implements help.KeyMap
func (k outlineKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Toggle, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap
func (k outlineKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Toggle, k.ExpandAll, k.CollapseAll},
		{k.MoveUp, k.MoveDown, k.Indent, k.Outdent},
		{k.Help, k.Quit},
	}
}
