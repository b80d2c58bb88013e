package tui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/h0rv/gwitter/internal/feed"
)

// AppScreen represents the different screens in the application flow.
type AppScreen int

const (
	ScreenFeed AppScreen = iota
	ScreenDetail
	ScreenSwitcher
)

// Options are the presentation switches from the app configuration.
type Options struct {
	EnableAbout        bool
	EnableEgg          bool
	EnableRepoSwitcher bool
}

// Deps are the collaborators of the TUI. Only Controller is required.
type Deps struct {
	Controller *feed.Controller
	Login      SessionLogin
	Recents    RecentRepoLister
}

// AppModel is the root Bubble Tea model. The feed stays alive underneath the
// detail view and the repo switcher so its selection survives.
type AppModel struct {
	deps Deps
	opts Options
	ctx  context.Context

	currentScreen AppScreen
	feed          FeedModel
	detail        *DetailModel
	switcher      *SwitcherModel

	width  int
	height int
}

// NewAppModel creates the root model. The feed is loaded by Init.
func NewAppModel(deps Deps, opts Options, ctx context.Context) AppModel {
	return AppModel{
		deps:          deps,
		opts:          opts,
		ctx:           ctx,
		currentScreen: ScreenFeed,
		feed:          NewFeedModel(deps.Controller, deps.Login, ctx, opts),
	}
}

// Init starts the feed and resolves the initial repository.
func (m AppModel) Init() tea.Cmd {
	c, ctx := m.deps.Controller, m.ctx
	return tea.Batch(
		m.feed.Init(),
		tea.WindowSize(),
		func() tea.Msg { return repoLoadedMsg{err: c.Initialize(ctx)} },
	)
}

// Update handles messages and transitions between screens.
func (m AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		var cmds []tea.Cmd
		m.feed, cmds = m.updateFeed(msg, cmds)
		if m.detail != nil {
			updated, cmd := m.detail.Update(msg)
			d := updated.(DetailModel)
			m.detail = &d
			cmds = append(cmds, cmd)
		}
		if m.switcher != nil {
			updated, cmd := m.switcher.Update(msg)
			s := updated.(SwitcherModel)
			m.switcher = &s
			cmds = append(cmds, cmd)
		}
		return m, tea.Batch(cmds...)

	case QuitMsg:
		return m, tea.Quit

	case TitleMsg:
		return m, tea.SetWindowTitle(msg.Title)

	case repoLoadedMsg:
		if errors.Is(msg.err, feed.ErrSuperseded) {
			return m, nil
		}

	case StateChangedMsg:
		// Keep an open thread in sync with optimistic reaction updates.
		if m.detail != nil {
			state := m.deps.Controller.State()
			for _, item := range state.Items {
				if item.ID == m.detail.item.ID {
					m.detail.SetItem(item)
					break
				}
			}
		}

	case openDetailMsg:
		d := NewDetailModel(msg.item, m.deps.Controller, m.ctx)
		if m.width > 0 {
			updated, _ := d.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
			d = updated.(DetailModel)
		}
		m.detail = &d
		m.currentScreen = ScreenDetail
		return m, d.Init()

	case closeDetailMsg:
		m.detail = nil
		m.currentScreen = ScreenFeed
		return m, nil

	case openSwitcherMsg:
		s := NewSwitcherModel(m.deps.Controller.State().Repo, m.deps.Recents, m.ctx)
		m.switcher = &s
		m.currentScreen = ScreenSwitcher
		return m, s.Init()

	case closeSwitcherMsg:
		m.switcher = nil
		m.currentScreen = ScreenFeed
		return m, nil

	case RepoSelectedMsg:
		m.switcher = nil
		m.currentScreen = ScreenFeed
		c, ctx, ref := m.deps.Controller, m.ctx, msg.Ref
		return m, func() tea.Msg { return repoLoadedMsg{err: c.SwitchRepo(ctx, ref)} }

	case tea.KeyMsg, tea.MouseMsg:
		return m.updateCurrent(msg)

	case commentsLoadedMsg, commentsErrorMsg:
		if m.detail != nil {
			return m.updateCurrent(msg)
		}
		return m, nil

	case recentReposMsg:
		if m.switcher != nil {
			return m.updateCurrent(msg)
		}
		return m, nil
	}

	// Everything else (state changes, spinner ticks, login results) goes to
	// the feed, plus the active overlay.
	var cmds []tea.Cmd
	m.feed, cmds = m.updateFeed(msg, cmds)
	if m.currentScreen != ScreenFeed {
		var cmd tea.Cmd
		m, cmd = m.forwardOverlay(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m AppModel) updateFeed(msg tea.Msg, cmds []tea.Cmd) (FeedModel, []tea.Cmd) {
	updated, cmd := m.feed.Update(msg)
	return updated.(FeedModel), append(cmds, cmd)
}

// updateCurrent routes input to the visible screen only.
func (m AppModel) updateCurrent(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.currentScreen == ScreenFeed {
		var cmds []tea.Cmd
		m.feed, cmds = m.updateFeed(msg, cmds)
		return m, tea.Batch(cmds...)
	}
	return m.forwardOverlay(msg)
}

func (m AppModel) forwardOverlay(msg tea.Msg) (AppModel, tea.Cmd) {
	switch m.currentScreen {
	case ScreenDetail:
		if m.detail == nil {
			return m, nil
		}
		updated, cmd := m.detail.Update(msg)
		d := updated.(DetailModel)
		m.detail = &d
		return m, cmd
	case ScreenSwitcher:
		if m.switcher == nil {
			return m, nil
		}
		updated, cmd := m.switcher.Update(msg)
		s := updated.(SwitcherModel)
		m.switcher = &s
		return m, cmd
	}
	return m, nil
}

// View renders the current screen.
func (m AppModel) View() string {
	switch m.currentScreen {
	case ScreenDetail:
		if m.detail != nil {
			return m.detail.View()
		}
	case ScreenSwitcher:
		if m.switcher != nil {
			return m.switcher.View()
		}
	}
	return m.feed.View()
}

// Screen reports the visible screen.
func (m AppModel) Screen() AppScreen {
	return m.currentScreen
}
