package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds the playback controls. It implements help.KeyMap.
type keyMap struct {
	Run       key.Binding
	Pause     key.Binding
	Reset     key.Binding
	SpeedUp   key.Binding
	SpeedDown key.Binding
	Quit      key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Run: key.NewBinding(
			key.WithKeys("r", "enter"),
			key.WithHelp("r", "run"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p", "pause/resume"),
		),
		Reset: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "reset"),
		),
		SpeedUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "faster"),
		),
		SpeedDown: key.NewBinding(
			key.WithKeys("-", "_"),
			key.WithHelp("-", "slower"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Run, k.Pause, k.Reset, k.SpeedUp, k.SpeedDown, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Run, k.Pause, k.Reset},
		{k.SpeedUp, k.SpeedDown, k.Quit},
	}
}
