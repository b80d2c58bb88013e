package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/gwitter/internal/domain"
	"github.com/muesli/reflow/wordwrap"
	"github.com/pkg/browser"
)

// CommentLoader fetches the replies of a thread. *feed.Controller implements it.
type CommentLoader interface {
	LoadComments(ctx context.Context, number int) ([]domain.Comment, error)
}

// DetailModel shows one thread with its body and replies rendered as markdown.
type DetailModel struct {
	// Dependencies
	loader CommentLoader
	ctx    context.Context

	item     domain.DisplayItem
	comments []domain.Comment

	// UI components
	keymap   KeyMap
	spinner  spinner.Model
	viewport viewport.Model

	// State
	loadingComments bool
	commentsError   string
	toast           string

	width  int
	height int
	now    func() time.Time
}

// NewDetailModel creates a new detail view model
func NewDetailModel(item domain.DisplayItem, loader CommentLoader, ctx context.Context) DetailModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	vp := viewport.New(80, 20) // Will be resized in WindowSizeMsg
	vp.MouseWheelEnabled = true
	vp.MouseWheelDelta = 3

	return DetailModel{
		loader:          loader,
		ctx:             ctx,
		item:            item,
		keymap:          DefaultKeyMap(),
		spinner:         sp,
		viewport:        vp,
		loadingComments: item.CommentCount > 0 && loader != nil,
		now:             time.Now,
	}
}

// Init loads the replies when the thread has any.
func (m DetailModel) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, tea.WindowSize()}
	if m.loadingComments {
		cmds = append(cmds, m.loadComments())
	}
	return tea.Batch(cmds...)
}

// Update handles messages
func (m DetailModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		(&m).resize()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case commentsLoadedMsg:
		m.loadingComments = false
		m.comments = msg.comments
		(&m).updateViewportContent()
		return m, nil

	case commentsErrorMsg:
		m.loadingComments = false
		m.commentsError = msg.err.Error()
		(&m).updateViewportContent()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	return m, nil
}

// SetItem replaces the thread shown, e.g. after its reactions changed.
func (m *DetailModel) SetItem(item domain.DisplayItem) {
	if item.ID != m.item.ID {
		return
	}
	m.item = item
	m.updateViewportContent()
}

func (m *DetailModel) resize() {
	m.viewport.Width = max(m.width, 20)
	m.viewport.Height = max(m.height-3, 5) // header (2) + footer (1)
	m.updateViewportContent()
}

// handleKeyPress processes keyboard input
func (m DetailModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}
	m.toast = ""

	switch {
	case key.Matches(msg, m.keymap.Back), msg.String() == "q":
		return m, func() tea.Msg { return closeDetailMsg{} }
	case key.Matches(msg, m.keymap.Open):
		if m.item.URL != "" {
			if err := browser.OpenURL(m.item.URL); err != nil {
				m.toast = fmt.Sprintf("Open failed: %v", err)
			}
		}
	case key.Matches(msg, m.keymap.Copy):
		if m.item.URL != "" {
			if err := clipboard.WriteAll(m.item.URL); err != nil {
				m.toast = fmt.Sprintf("Copy failed: %v", err)
			} else {
				m.toast = "Copied " + m.item.URL
			}
		}
	case key.Matches(msg, m.keymap.Down):
		m.viewport.LineDown(1)
	case key.Matches(msg, m.keymap.Up):
		m.viewport.LineUp(1)
	case key.Matches(msg, m.keymap.PageDown):
		m.viewport.HalfViewDown()
	case key.Matches(msg, m.keymap.PageUp):
		m.viewport.HalfViewUp()
	case key.Matches(msg, m.keymap.Top):
		m.viewport.GotoTop()
	case key.Matches(msg, m.keymap.Bottom):
		m.viewport.GotoBottom()
	}

	return m, nil
}

// View renders the thread
func (m DetailModel) View() string {
	width := m.width
	if width == 0 {
		width = 80
	}

	title := fmt.Sprintf("#%d %s", m.item.Number, m.item.Title)
	header := detailTitleStyle.Render(wordwrap.String(title, width))
	header = strings.SplitN(header, "\n", 2)[0]
	sub := dimStyle.Render(fmt.Sprintf("@%s · %s · %s", authorOrGhost(m.item.Author), relativeTime(m.item.CreatedAt, m.now()), formatReactionLine(m.item)))

	return lipgloss.JoinVertical(lipgloss.Left, header, sub, m.viewport.View(), m.renderFooter(width))
}

func (m DetailModel) renderFooter(width int) string {
	var left string
	switch {
	case m.toast != "":
		left = m.toast
	case m.loadingComments:
		left = m.spinner.View() + " Loading comments..."
	default:
		left = "[q]back [o]open [y]copy [j/k]scroll [g/G]top/bottom"
	}

	right := ""
	if m.viewport.TotalLineCount() > m.viewport.Height {
		switch {
		case m.viewport.AtTop():
			right = "TOP"
		case m.viewport.AtBottom():
			right = "END"
		default:
			right = fmt.Sprintf("%d%%", int(m.viewport.ScrollPercent()*100))
		}
	}

	padding := width - lipgloss.Width(left) - lipgloss.Width(right) - 1
	if padding < 1 {
		padding = 1
	}
	return dimStyle.Render(left) + strings.Repeat(" ", padding) + dimStyle.Render(right)
}

// updateViewportContent renders the body followed by all replies
func (m *DetailModel) updateViewportContent() {
	wrapWidth := max(m.viewport.Width-2, 20)

	var b strings.Builder
	b.WriteString(commentAuthorStyle.Render(authorOrGhost(m.item.Author)))
	b.WriteString(" ")
	b.WriteString(opBadgeStyle.Render("OP"))
	if len(m.item.Labels) > 0 {
		b.WriteString(" ")
		b.WriteString(labelStyle.Render("[" + strings.Join(m.item.Labels, "] [") + "]"))
	}
	b.WriteString("\n")
	if strings.TrimSpace(m.item.Body) == "" {
		b.WriteString(dimStyle.Render("(no description)"))
		b.WriteString("\n")
	} else {
		b.WriteString(renderMarkdown(m.item.Body, wrapWidth))
	}

	switch {
	case m.commentsError != "":
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("Error: " + m.commentsError))
	case m.loadingComments:
	case len(m.comments) == 0:
		b.WriteString("\n")
		b.WriteString(dimStyle.Render("No comments yet"))
	}

	for _, c := range m.comments {
		b.WriteString("\n")
		b.WriteString(dimStyle.Render(strings.Repeat("─", min(20, wrapWidth))))
		b.WriteString("\n")
		b.WriteString(commentAuthorStyle.Render(authorOrGhost(c.Author)))
		b.WriteString(" ")
		b.WriteString(dimStyle.Render(relativeTime(c.CreatedAt, m.now())))
		b.WriteString("\n")
		b.WriteString(renderMarkdown(c.Body, wrapWidth))
	}

	m.viewport.SetContent(b.String())
}

// loadComments creates a command to load comments
func (m DetailModel) loadComments() tea.Cmd {
	loader, ctx, number := m.loader, m.ctx, m.item.Number
	return func() tea.Msg {
		comments, err := loader.LoadComments(ctx, number)
		if err != nil {
			return commentsErrorMsg{err: err}
		}
		return commentsLoadedMsg{comments: comments}
	}
}

// renderMarkdown renders GitHub markdown for the terminal, falling back to
// plain wrapped text when rendering fails.
func renderMarkdown(src string, width int) string {
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err == nil {
		if out, err := r.Render(src); err == nil {
			return strings.TrimRight(out, "\n") + "\n"
		}
	}
	return wordwrap.String(src, width) + "\n"
}

func authorOrGhost(login string) string {
	if login == "" {
		return "ghost"
	}
	return login
}
