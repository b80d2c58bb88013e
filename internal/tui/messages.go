// Package tui provides Bubble Tea models for the interactive feed.
package tui

import (
	"github.com/h0rv/gwitter/internal/auth"
	"github.com/h0rv/gwitter/internal/domain"
	"github.com/h0rv/gwitter/internal/history"
)

// StateChangedMsg is sent whenever the feed controller changes state.
// The program wires it to the controller's change callback.
type StateChangedMsg struct{}

// DeviceCodeMsg asks the user to confirm a device login in the browser.
type DeviceCodeMsg struct {
	VerificationURI string
	UserCode        string
}

// TitleMsg sets the terminal title.
type TitleMsg struct {
	Title string
}

// RepoSelectedMsg is emitted when the user picks a repository in the switcher.
type RepoSelectedMsg struct {
	Ref domain.RepoRef
}

// QuitMsg is emitted when the user requests to quit.
type QuitMsg struct{}

type (
	repoLoadedMsg     struct{ err error }
	pageLoadedMsg     struct{ err error }
	identityMsg       struct{ err error }
	openDetailMsg     struct{ item domain.DisplayItem }
	closeDetailMsg    struct{}
	commentsLoadedMsg struct{ comments []domain.Comment }
	commentsErrorMsg  struct{ err error }
	openSwitcherMsg   struct{}
	closeSwitcherMsg  struct{}
)

type reactionMsg struct {
	id      string
	reacted bool
	err     error
}

type loginMsg struct {
	session auth.Session
	err     error
}

type recentReposMsg struct {
	entries []history.Entry
	err     error
}
