package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/h0rv/gwitter/internal/domain"
	"github.com/h0rv/gwitter/internal/history"
	"github.com/sahilm/fuzzy"
)

// recentRepoLimit is how many history entries the switcher offers.
const recentRepoLimit = 20

// RecentRepoLister lists previously opened repositories. *history.Store implements it.
type RecentRepoLister interface {
	RecentRepos(ctx context.Context, limit int) ([]history.Entry, error)
	Forget(ctx context.Context, ref domain.RepoRef) error
}

// SwitcherModel lets the user type a repository or pick a recent one.
type SwitcherModel struct {
	recents RecentRepoLister
	ctx     context.Context

	input   textinput.Model
	entries []history.Entry
	matches []history.Entry
	cursor  int
	picked  bool // the user moved the cursor since the last edit
	err     error

	width  int
	height int
}

// NewSwitcherModel creates a switcher prefilled with the current repository.
func NewSwitcherModel(current domain.RepoRef, recents RecentRepoLister, ctx context.Context) SwitcherModel {
	ti := textinput.New()
	ti.Placeholder = "owner/repo"
	ti.Prompt = "> "
	ti.CharLimit = 200
	ti.SetValue(current.String())
	ti.CursorEnd()
	ti.Focus()

	return SwitcherModel{
		recents: recents,
		ctx:     ctx,
		input:   ti,
	}
}

// Init loads the recent repositories.
func (m SwitcherModel) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, tea.WindowSize()}
	if m.recents != nil {
		cmds = append(cmds, m.loadRecents())
	}
	return tea.Batch(cmds...)
}

func (m SwitcherModel) loadRecents() tea.Cmd {
	recents, ctx := m.recents, m.ctx
	return func() tea.Msg {
		entries, err := recents.RecentRepos(ctx, recentRepoLimit)
		return recentReposMsg{entries: entries, err: err}
	}
}

// forget drops ref from the history and reloads the list.
func (m SwitcherModel) forget(ref domain.RepoRef) tea.Cmd {
	recents, ctx := m.recents, m.ctx
	return func() tea.Msg {
		if err := recents.Forget(ctx, ref); err != nil {
			return recentReposMsg{err: fmt.Errorf("forget %s: %w", ref, err)}
		}
		entries, err := recents.RecentRepos(ctx, recentRepoLimit)
		return recentReposMsg{entries: entries, err: err}
	}
}

// Update handles messages.
func (m SwitcherModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = max(msg.Width-4, 10)
		return m, nil

	case recentReposMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("load recent repositories: %w", msg.err)
			if msg.entries == nil && m.entries != nil {
				return m, nil
			}
		}
		m.entries = msg.entries
		(&m).filter()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "esc":
			return m, func() tea.Msg { return closeSwitcherMsg{} }
		case "up", "ctrl+p":
			if m.cursor > 0 {
				m.cursor--
			}
			m.picked = len(m.matches) > 0
			return m, nil
		case "down", "ctrl+n":
			if m.cursor < len(m.matches)-1 {
				m.cursor++
			}
			m.picked = len(m.matches) > 0
			return m, nil
		case "ctrl+x":
			if m.recents == nil || m.cursor >= len(m.matches) {
				return m, nil
			}
			return m, m.forget(m.matches[m.cursor].Ref)
		case "tab":
			if m.cursor < len(m.matches) {
				m.input.SetValue(m.matches[m.cursor].Ref.String())
				m.input.CursorEnd()
				(&m).filter()
			}
			return m, nil
		case "enter":
			ref, err := m.choice()
			if err != nil {
				m.err = err
				return m, nil
			}
			return m, func() tea.Msg { return RepoSelectedMsg{Ref: ref} }
		}
	}

	var cmd tea.Cmd
	before := m.input.Value()
	m.input, cmd = m.input.Update(msg)
	if m.input.Value() != before {
		m.err = nil
		(&m).filter()
	}
	return m, cmd
}

// choice returns the highlighted suggestion when the user navigated to one,
// otherwise the typed "owner/repo" or the best match.
func (m SwitcherModel) choice() (domain.RepoRef, error) {
	if m.picked && m.cursor < len(m.matches) {
		return m.matches[m.cursor].Ref, nil
	}
	if ref, err := domain.ParseRepoRef(m.input.Value()); err == nil {
		return ref, nil
	}
	if m.cursor < len(m.matches) {
		return m.matches[m.cursor].Ref, nil
	}
	return domain.RepoRef{}, fmt.Errorf("%q: expected owner/repo", strings.TrimSpace(m.input.Value()))
}

// filter fuzzy-matches the typed text against recent repositories. An empty
// query keeps history order.
func (m *SwitcherModel) filter() {
	query := strings.TrimSpace(m.input.Value())
	m.cursor = 0
	m.picked = false
	if query == "" {
		m.matches = m.entries
		return
	}

	names := make([]string, len(m.entries))
	for i, e := range m.entries {
		names[i] = e.Ref.String()
	}
	found := fuzzy.Find(query, names)
	m.matches = make([]history.Entry, 0, len(found))
	for _, f := range found {
		m.matches = append(m.matches, m.entries[f.Index])
	}
}

// View renders the model.
func (m SwitcherModel) View() string {
	var b strings.Builder
	b.WriteString(TitleStyle.Render("Switch repository"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")

	if m.err != nil {
		b.WriteString(ErrorStyle.Render(m.err.Error()))
		b.WriteString("\n\n")
	}

	if len(m.matches) == 0 && len(m.entries) > 0 {
		b.WriteString(dimStyle.Render("No recent repository matches"))
		b.WriteString("\n")
	}
	for i, e := range m.matches {
		line := fmt.Sprintf("%s  %s", e.Ref, dimStyle.Render(fmt.Sprintf("opened %d×", e.OpenCount)))
		if i == m.cursor {
			b.WriteString(SelectedItemStyle.Render("> " + e.Ref.String()))
			b.WriteString(dimStyle.Render(fmt.Sprintf("  opened %d×", e.OpenCount)))
		} else {
			b.WriteString(NormalItemStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}

	b.WriteString(HelpStyle.Render("enter open · tab complete · ↑/↓ select · ctrl+x forget · esc cancel"))
	return b.String()
}
