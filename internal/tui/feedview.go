package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/h0rv/gwitter/internal/auth"
	"github.com/h0rv/gwitter/internal/domain"
	"github.com/h0rv/gwitter/internal/feed"
	"github.com/h0rv/gwitter/internal/gh"
	"github.com/h0rv/gwitter/internal/transform"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/pkg/browser"
)

// Layout constants
const (
	cardHeight   = 5 // four content lines plus a blank separator
	pageJumpSize = 5 // Number of cards to jump with Ctrl+D/U
	gutterWidth  = 2
)

const eggArt = `   __
 <(o )___
  ( ._> /
   ` + "`" + `---'`

// SessionLogin runs an interactive login. *auth.Holder implements it.
type SessionLogin interface {
	Login(ctx context.Context) (auth.Session, error)
	Logout()
}

// FeedModel is the scrolling list of issues or discussions.
type FeedModel struct {
	// Dependencies
	controller *feed.Controller
	login      SessionLogin
	ctx        context.Context
	opts       Options

	// UI components
	keymap  KeyMap
	help    HelpModel
	spinner spinner.Model
	probe   *viewportProbe

	// Feed state
	state    feed.State
	selected int // index of the selected card
	offset   int // index of the first visible card

	// View state
	width     int
	height    int
	showHelp  bool
	showAbout bool
	loggingIn bool
	device    *DeviceCodeMsg
	toast     string
	toastErr  bool

	now func() time.Time
}

// NewFeedModel creates the feed view and registers its viewport probe with
// the controller's scroll watcher.
func NewFeedModel(c *feed.Controller, login SessionLogin, ctx context.Context, opts Options) FeedModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle

	probe := &viewportProbe{}
	c.Watcher().SetProbe(probe)

	return FeedModel{
		controller: c,
		login:      login,
		ctx:        ctx,
		opts:       opts,
		keymap:     DefaultKeyMap(),
		help:       NewHelpModel(DefaultKeyMap()),
		spinner:    sp,
		probe:      probe,
		state:      c.State(),
		showAbout:  opts.EnableAbout,
		now:        time.Now,
	}
}

// Init starts the spinner.
func (m FeedModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages
func (m FeedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		(&m).adjustScroll()
		m.syncProbe()
		return m, nil

	case StateChangedMsg, repoLoadedMsg, pageLoadedMsg, identityMsg:
		(&m).refresh()
		return m, nil

	case reactionMsg:
		(&m).refresh()
		if msg.err != nil {
			if errors.Is(msg.err, gh.ErrUnauthorized) {
				m.setToast("Log in to react (press l)", true)
			} else {
				m.setToast(fmt.Sprintf("Reaction failed: %v", msg.err), true)
			}
		}
		return m, nil

	case DeviceCodeMsg:
		m.device = &msg
		return m, nil

	case loginMsg:
		m.loggingIn = false
		m.device = nil
		if msg.err != nil {
			m.setToast(fmt.Sprintf("Login failed: %v", msg.err), true)
			return m, nil
		}
		m.setToast("Logged in as "+msg.session.UserLogin, false)
		return m, m.refreshIdentity()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.MouseMsg:
		switch msg.Button {
		case tea.MouseButtonWheelDown:
			(&m).moveSelection(1)
		case tea.MouseButtonWheelUp:
			(&m).moveSelection(-1)
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	}

	return m, nil
}

// handleKeyPress processes keyboard input
func (m FeedModel) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, tea.Quit
	}

	// Help overlay
	if m.showHelp {
		if key.Matches(msg, m.keymap.Help, m.keymap.Quit, m.keymap.Back) {
			m.showHelp = false
		}
		return m, nil
	}

	m.toast = ""

	switch {
	case key.Matches(msg, m.keymap.Quit):
		return m, tea.Quit
	case key.Matches(msg, m.keymap.Help):
		m.showHelp = true
	case key.Matches(msg, m.keymap.Down):
		(&m).moveSelection(1)
	case key.Matches(msg, m.keymap.Up):
		(&m).moveSelection(-1)
	case key.Matches(msg, m.keymap.PageDown):
		(&m).moveSelection(pageJumpSize)
	case key.Matches(msg, m.keymap.PageUp):
		(&m).moveSelection(-pageJumpSize)
	case key.Matches(msg, m.keymap.Top):
		(&m).moveSelection(-m.selected)
	case key.Matches(msg, m.keymap.Bottom):
		(&m).moveSelection(len(m.state.Items) - 1 - m.selected)
	case key.Matches(msg, m.keymap.View):
		if item, ok := m.selectedItem(); ok {
			return m, func() tea.Msg { return openDetailMsg{item: item} }
		}
	case key.Matches(msg, m.keymap.Open):
		if item, ok := m.selectedItem(); ok && item.URL != "" {
			if err := browser.OpenURL(item.URL); err != nil {
				m.setToast(fmt.Sprintf("Open failed: %v", err), true)
			}
		}
	case key.Matches(msg, m.keymap.Copy):
		if item, ok := m.selectedItem(); ok && item.URL != "" {
			if err := clipboard.WriteAll(item.URL); err != nil {
				m.setToast(fmt.Sprintf("Copy failed: %v", err), true)
			} else {
				m.setToast("Copied "+item.URL, false)
			}
		}
	case key.Matches(msg, m.keymap.React):
		if item, ok := m.selectedItem(); ok {
			return m, m.toggleReaction(item.ID)
		}
	case key.Matches(msg, m.keymap.Login):
		if m.state.IsAuthenticated || m.loggingIn {
			return m, nil
		}
		if m.login == nil {
			m.setToast("Login is not configured", true)
			return m, nil
		}
		m.loggingIn = true
		return m, m.runLogin()
	case key.Matches(msg, m.keymap.Logout):
		if m.login == nil || !m.state.IsAuthenticated {
			return m, nil
		}
		m.login.Logout()
		m.setToast("Logged out", false)
		return m, m.refreshIdentity()
	case key.Matches(msg, m.keymap.Retry):
		return m, m.retry()
	case key.Matches(msg, m.keymap.LoadMore):
		return m, m.loadNextPage()
	case key.Matches(msg, m.keymap.SwitchRepo):
		if m.opts.EnableRepoSwitcher {
			return m, func() tea.Msg { return openSwitcherMsg{} }
		}
	case key.Matches(msg, m.keymap.About):
		if m.opts.EnableAbout {
			m.showAbout = !m.showAbout
			(&m).adjustScroll()
			m.syncProbe()
		}
	}

	return m, nil
}

func (m *FeedModel) setToast(text string, isErr bool) {
	m.toast = text
	m.toastErr = isErr
}

// refresh pulls a new snapshot from the controller.
func (m *FeedModel) refresh() {
	prevGen := m.state.Generation
	m.state = m.controller.State()
	if m.state.Generation != prevGen {
		m.selected = 0
		m.offset = 0
	}
	if m.selected >= len(m.state.Items) {
		m.selected = max(len(m.state.Items)-1, 0)
	}
	m.adjustScroll()
	m.syncProbe()
}

// moveSelection moves the cursor and reports downward moves to the scroll
// watcher.
func (m *FeedModel) moveSelection(delta int) {
	n := len(m.state.Items)
	if n == 0 || delta == 0 {
		return
	}
	m.selected += delta
	if m.selected < 0 {
		m.selected = 0
	}
	if m.selected >= n {
		m.selected = n - 1
	}
	m.adjustScroll()
	m.syncProbe()
	if delta > 0 {
		m.controller.Watcher().Notify()
	}
}

// adjustScroll ensures the selected card is visible
func (m *FeedModel) adjustScroll() {
	visible := m.visibleCards()
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+visible {
		m.offset = m.selected - visible + 1
	}
	if m.offset < 0 {
		m.offset = 0
	}
}

func (m FeedModel) syncProbe() {
	n := len(m.state.Items)
	lastVisible := n > 0 && n-1 < m.offset+m.visibleCards()
	m.probe.set(m.selected, lastVisible)
}

// bodyHeight is the number of lines between the toolbar and the footer.
func (m FeedModel) bodyHeight() int {
	h := m.height
	if h == 0 {
		h = 24
	}
	h -= 2 // toolbar + footer
	if m.aboutVisible() {
		h--
	}
	return max(h, cardHeight)
}

func (m FeedModel) visibleCards() int {
	return max(m.bodyHeight()/cardHeight, 1)
}

func (m FeedModel) aboutVisible() bool {
	return m.showAbout && m.state.RepoDescription != ""
}

func (m FeedModel) selectedItem() (domain.DisplayItem, bool) {
	if m.selected < 0 || m.selected >= len(m.state.Items) {
		return domain.DisplayItem{}, false
	}
	return m.state.Items[m.selected], true
}

// View renders the feed - fills entire terminal exactly
func (m FeedModel) View() string {
	width := m.width
	if width == 0 {
		width = 80
	}
	bodyHeight := m.bodyHeight()

	sections := []string{m.renderToolbar(width)}
	if m.aboutVisible() {
		about := truncate.StringWithTail(m.state.RepoDescription, uint(width), "…")
		sections = append(sections, dimStyle.Render(about))
	}

	var body string
	switch {
	case m.showHelp:
		helpLines := strings.Split(m.help.View(width), "\n")
		if len(helpLines) > bodyHeight {
			helpLines = helpLines[:bodyHeight]
		}
		body = strings.Join(helpLines, "\n")
	case m.device != nil:
		body = m.renderPanel(width, bodyHeight,
			warningStyle.Render("Confirm the login in your browser"),
			"Open "+m.device.VerificationURI,
			"and enter the code "+selectedTitleStyle.Render(m.device.UserCode),
		)
	default:
		body = m.renderBody(width, bodyHeight)
	}
	sections = append(sections, lipgloss.NewStyle().Height(bodyHeight).MaxHeight(bodyHeight).Render(body))
	sections = append(sections, m.renderFooter(width))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m FeedModel) renderBody(width, height int) string {
	noun := m.state.DataSource.Noun()

	// Loaded cards stay on screen; a failure after them is shown in the
	// trailer and the footer instead.
	if len(m.state.Items) > 0 && !m.state.IsRepoLoading {
		return m.renderList(width, height)
	}

	switch m.state.Phase() {
	case feed.PhaseLoadingRepo:
		return m.renderSkeletons(width, height/cardHeight)
	case feed.PhaseRateLimited:
		lines := []string{
			warningStyle.Render("GitHub API rate limit reached"),
			"",
			"Anonymous requests are limited to 60 per hour.",
			"Logged-in users get 5,000 requests per hour.",
		}
		if rl := m.state.RateLimit; rl.Known() && !rl.Reset.IsZero() {
			lines = append(lines, "", dimStyle.Render("Quota resets at "+rl.Reset.Local().Format("15:04")))
		}
		lines = append(lines, "", m.panelHints())
		return m.renderPanel(width, height, lines...)
	case feed.PhaseLoginRequired:
		return m.renderPanel(width, height,
			warningStyle.Render("Login required"),
			"",
			"GitHub only answers this request for signed-in users.",
			"",
			m.panelHints(),
		)
	case feed.PhaseError:
		return m.renderPanel(width, height,
			ErrorStyle.Render(m.state.RepoError),
			"",
			m.panelHints(),
		)
	case feed.PhaseIdle:
		hint := "Set request.owner and request.repo in your config"
		if m.opts.EnableRepoSwitcher {
			hint = "Press s to pick a repository"
		}
		return m.renderPanel(width, height, "No repository selected", "", dimStyle.Render(hint))
	case feed.PhaseEmpty:
		return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
			fmt.Sprintf("No %s Found", noun))
	}

	return m.renderList(width, height)
}

// listNotice describes why the feed stopped below loaded cards, or "".
func (m FeedModel) listNotice() string {
	if len(m.state.Items) == 0 {
		return ""
	}
	switch m.state.Phase() {
	case feed.PhaseRateLimited:
		msg := "Rate limit reached"
		if rl := m.state.RateLimit; rl.Known() && !rl.Reset.IsZero() {
			msg += ", resets at " + rl.Reset.Local().Format("15:04")
		}
		if !m.state.IsAuthenticated && m.login != nil {
			msg += " · press l to log in"
		}
		return warningStyle.Render(msg)
	case feed.PhaseLoginRequired:
		return warningStyle.Render("Login required to load more · press l to log in")
	case feed.PhaseError:
		return ErrorStyle.Render(m.state.RepoError + " · press n to retry")
	}
	return ""
}

func (m FeedModel) panelHints() string {
	hints := []string{"[r] retry"}
	if !m.state.IsAuthenticated && m.login != nil {
		hints = append([]string{"[l] log in"}, hints...)
	}
	if m.opts.EnableRepoSwitcher {
		hints = append(hints, "[s] switch repository")
	}
	return dimStyle.Render(strings.Join(hints, "  "))
}

func (m FeedModel) renderPanel(width, height int, lines ...string) string {
	content := lipgloss.JoinVertical(lipgloss.Center, lines...)
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, PanelStyle.Render(content))
}

func (m FeedModel) renderList(width, height int) string {
	visible := m.visibleCards()
	end := min(m.offset+visible, len(m.state.Items))

	var cards []string
	for i := m.offset; i < end; i++ {
		cards = append(cards, m.renderCard(m.state.Items[i], i == m.selected, width))
	}

	// Trailer below the last card when there is room for it
	if end == len(m.state.Items) && (end-m.offset)*cardHeight < height {
		switch phase := m.state.Phase(); {
		case m.state.IsLoading:
			cards = append(cards, m.spinner.View()+dimStyle.Render(" Loading more..."))
		case m.listNotice() != "":
			cards = append(cards, "  "+m.listNotice())
		case phase == feed.PhaseEnd && m.opts.EnableEgg:
			egg := lipgloss.JoinVertical(lipgloss.Center,
				ownStyle.Render(eggArt),
				dimStyle.Render(fmt.Sprintf("You read all %d %s. Go touch grass.", len(m.state.Items), strings.ToLower(m.state.DataSource.Noun()))),
			)
			cards = append(cards, lipgloss.PlaceHorizontal(width, lipgloss.Center, egg))
		case phase == feed.PhaseEnd:
			cards = append(cards, dimStyle.Render(fmt.Sprintf("  No more %s", strings.ToLower(m.state.DataSource.Noun()))))
		}
	}

	return strings.Join(cards, "\n")
}

// renderCard renders one thread as four lines plus a separator.
func (m FeedModel) renderCard(item domain.DisplayItem, selected bool, width int) string {
	inner := max(width-gutterWidth, 10)

	gutter := "  "
	titleStyle := cardTitleStyle
	if selected {
		gutter = selectedGutterStyle.Render("▌ ")
		titleStyle = selectedTitleStyle
	}

	lines := []string{
		formatTitleLine(item, inner, titleStyle),
		m.formatMetaLine(item, inner),
		formatExcerpt(item.Body, inner),
		formatReactionLine(item),
	}

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(gutter)
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

// formatTitleLine truncates the title and right-aligns the thread number.
func formatTitleLine(item domain.DisplayItem, width int, style lipgloss.Style) string {
	suffix := ""
	if item.Number > 0 {
		suffix = fmt.Sprintf("#%d", item.Number)
	}

	available := width - len(suffix) - 1
	if available < 5 {
		available = 5
	}
	title := runewidth.Truncate(item.Title, available, "…")

	padding := width - runewidth.StringWidth(title) - len(suffix)
	if padding < 1 {
		padding = 1
	}
	return style.Render(title) + strings.Repeat(" ", padding) + dimStyle.Render(suffix)
}

func (m FeedModel) formatMetaLine(item domain.DisplayItem, width int) string {
	author := item.Author
	if author == "" {
		author = "ghost"
	}

	parts := []string{"@" + author}
	if !item.CreatedAt.IsZero() {
		parts = append(parts, relativeTime(item.CreatedAt, m.now()))
	}
	if item.Category != "" {
		parts = append(parts, item.Category)
	}
	meta := dimStyle.Render(strings.Join(parts, " · "))

	if item.IsOwnedByCurrentUser {
		meta += " " + ownStyle.Render("● you")
	}
	for _, l := range item.Labels {
		meta += " " + labelStyle.Render("["+l+"]")
	}
	return truncate.StringWithTail(meta, uint(width), "…")
}

// formatExcerpt collapses the body to its first words.
func formatExcerpt(body string, width int) string {
	text := strings.Join(strings.Fields(body), " ")
	if text == "" {
		return dimStyle.Render("(no description)")
	}
	return dimStyle.Render(truncate.StringWithTail(text, uint(width), "…"))
}

func formatReactionLine(item domain.DisplayItem) string {
	var parts []string
	for _, r := range item.Reactions {
		part := fmt.Sprintf("%s %d", transform.Emoji(r.Content), r.Count)
		if r.Content == "THUMBS_UP" && item.ViewerReacted {
			part = reactedStyle.Render(part)
		}
		parts = append(parts, part)
	}
	parts = append(parts, fmt.Sprintf("💬 %d", item.CommentCount))
	return strings.Join(parts, "  ")
}

func (m FeedModel) renderSkeletons(width, count int) string {
	count = max(count, 1)
	bar := func(w int) string {
		return skeletonStyle.Render(strings.Repeat("░", max(w, 1)))
	}
	inner := max(width-gutterWidth, 10)

	var b strings.Builder
	for i := 0; i < count; i++ {
		prefix := "  "
		if i == 0 {
			prefix = m.spinner.View()
		}
		b.WriteString(prefix + bar(inner*2/3) + "\n")
		b.WriteString("  " + bar(inner/3) + "\n")
		b.WriteString("  " + bar(inner) + "\n")
		b.WriteString("  " + bar(inner/5) + "\n\n")
	}
	return b.String()
}

// renderToolbar renders the title on the left and session status on the right
func (m FeedModel) renderToolbar(width int) string {
	left := toolbarTitleStyle.Render("gwitter")
	if m.state.Repo.Valid() {
		left += " " + m.state.Repo.String()
	}
	left += dimStyle.Render(fmt.Sprintf(" · %s (%d)", m.state.DataSource.Noun(), len(m.state.Items)))

	var status []string
	if m.state.IsLoading || m.loggingIn {
		status = append(status, m.spinner.View()+"loading")
	}
	if m.state.IsAuthenticated && m.state.UserLogin != "" {
		status = append(status, "@"+m.state.UserLogin)
	} else {
		status = append(status, "anonymous")
	}
	if rl := m.state.RateLimit; rl.Known() {
		status = append(status, fmt.Sprintf("api %d/%d", rl.Remaining, rl.Limit))
	}
	status = append(status, "[?]help")
	right := dimStyle.Render(strings.Join(status, " | "))

	padding := width - lipgloss.Width(left) - lipgloss.Width(right) - 1
	if padding < 1 {
		padding = 1
	}
	return left + strings.Repeat(" ", padding) + right
}

// renderFooter renders the toast or key hints on the left and position on the right
func (m FeedModel) renderFooter(width int) string {
	var left string
	switch {
	case m.toast != "" && m.toastErr:
		left = ErrorStyle.Render(m.toast)
	case m.toast != "":
		left = successStyle.Render(m.toast)
	case m.listNotice() != "":
		left = m.listNotice()
	default:
		left = m.help.ShortView(width / 2)
	}

	right := ""
	if n := len(m.state.Items); n > 0 {
		right = fmt.Sprintf("%d/%d", m.selected+1, n)
		if m.state.HasNextPage {
			right += "+"
		}
	}

	padding := width - lipgloss.Width(left) - lipgloss.Width(right) - 1
	if padding < 1 {
		padding = 1
	}
	return left + strings.Repeat(" ", padding) + dimStyle.Render(right)
}

// toggleReaction creates a command that flips the viewer's 👍
func (m FeedModel) toggleReaction(id string) tea.Cmd {
	c, ctx := m.controller, m.ctx
	return func() tea.Msg {
		reacted, err := c.ToggleReaction(ctx, id)
		return reactionMsg{id: id, reacted: reacted, err: err}
	}
}

func (m FeedModel) runLogin() tea.Cmd {
	login, ctx := m.login, m.ctx
	return func() tea.Msg {
		s, err := login.Login(ctx)
		return loginMsg{session: s, err: err}
	}
}

// refreshIdentity re-derives ownership for the new session off the event
// loop, since the controller reports the change back through the program.
func (m FeedModel) refreshIdentity() tea.Cmd {
	c, ctx := m.controller, m.ctx
	return func() tea.Msg {
		return identityMsg{err: c.RefreshIdentity(ctx)}
	}
}

func (m FeedModel) retry() tea.Cmd {
	c, ctx := m.controller, m.ctx
	return func() tea.Msg {
		return repoLoadedMsg{err: c.Retry(ctx)}
	}
}

func (m FeedModel) loadNextPage() tea.Cmd {
	c, ctx := m.controller, m.ctx
	return func() tea.Msg {
		_, err := c.LoadNextPage(ctx)
		return pageLoadedMsg{err: err}
	}
}

// relativeTime formats t relative to now ("3h ago").
func relativeTime(t, now time.Time) string {
	d := now.Sub(t)

	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	case d < 365*24*time.Hour:
		return fmt.Sprintf("%dmo ago", int(d.Hours()/24/30))
	default:
		return fmt.Sprintf("%dy ago", int(d.Hours()/24/365))
	}
}
