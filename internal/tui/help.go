package tui

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/lipgloss"
)

var helpOverlayStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorFrame).
	Padding(1, 2).
	MarginTop(1)

// HelpModel renders the key bindings either as the full overlay toggled with
// "?" or as the one-line hint in the feed footer.
type HelpModel struct {
	help   help.Model
	keymap KeyMap
}

// NewHelpModel creates a help model for keymap.
func NewHelpModel(keymap KeyMap) HelpModel {
	h := help.New()
	h.Styles.ShortKey = dimStyle.Bold(true)
	h.Styles.ShortDesc = dimStyle
	return HelpModel{help: h, keymap: keymap}
}

// View renders every binding in a framed overlay.
func (m HelpModel) View(width int) string {
	m.help.ShowAll = true
	m.help.Width = max(width-6, 20) // border and padding
	body := lipgloss.JoinVertical(lipgloss.Left,
		TitleStyle.Render("Keys"),
		m.help.View(m.keymap),
		HelpStyle.Render("? or esc to close"),
	)
	return helpOverlayStyle.Render(body)
}

// ShortView renders the footer hint, truncated by the help model to width.
func (m HelpModel) ShortView(width int) string {
	m.help.ShowAll = false
	m.help.Width = width
	return m.help.View(m.keymap)
}
