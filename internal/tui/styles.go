package tui

import "github.com/charmbracelet/lipgloss"

// Palette shared by every screen.
const (
	colorAccent  = lipgloss.Color("205")
	colorFrame   = lipgloss.Color("62")
	colorText    = lipgloss.Color("252")
	colorMuted   = lipgloss.Color("241")
	colorFaint   = lipgloss.Color("238")
	colorLabel   = lipgloss.Color("99")
	colorOwn     = lipgloss.Color("34")
	colorWarning = lipgloss.Color("228")
	colorError   = lipgloss.Color("196")
)

var (
	// TitleStyle is used for screen titles.
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorFrame).
			MarginBottom(1)

	// SelectedItemStyle marks the highlighted row of a list.
	SelectedItemStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("170")).
				Bold(true)

	NormalItemStyle = lipgloss.NewStyle().Foreground(colorText)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(colorError).
			Bold(true)

	// HelpStyle is used for trailing key hints.
	HelpStyle = lipgloss.NewStyle().
			Foreground(colorMuted).
			MarginTop(1)

	// PanelStyle frames the full-screen status panels (error, login, quota).
	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorFrame).
			Padding(1, 3)
)

// Feed cards and toolbar
var (
	toolbarTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	cardTitleStyle      = lipgloss.NewStyle().Bold(true).Foreground(colorText)
	selectedTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	selectedGutterStyle = lipgloss.NewStyle().Foreground(colorAccent)
	dimStyle            = lipgloss.NewStyle().Foreground(colorMuted)
	ownStyle            = lipgloss.NewStyle().Bold(true).Foreground(colorOwn)
	labelStyle          = lipgloss.NewStyle().Foreground(colorLabel)
	reactedStyle        = lipgloss.NewStyle().Bold(true).Foreground(colorWarning)
	skeletonStyle       = lipgloss.NewStyle().Foreground(colorFaint)
	warningStyle        = lipgloss.NewStyle().Bold(true).Foreground(colorWarning)
	successStyle        = lipgloss.NewStyle().Foreground(colorOwn)
	spinnerStyle        = lipgloss.NewStyle().Foreground(colorAccent)
)

// Thread detail
var (
	detailTitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	commentAuthorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	opBadgeStyle       = lipgloss.NewStyle().Bold(true).Foreground(colorOwn)
)
