// Package domain defines the normalized types for a repository discussion feed.
// These types represent the feed independent of the GitHub GraphQL API structure.
package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DataSource selects which kind of thread the feed is built from.
type DataSource string

const (
	DataSourceIssue      DataSource = "issue"
	DataSourceDiscussion DataSource = "discussion"
)

// ParseDataSource maps a configuration value to a DataSource.
// An empty value selects issues.
func ParseDataSource(s string) (DataSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "issue", "issues":
		return DataSourceIssue, nil
	case "discussion", "discussions":
		return DataSourceDiscussion, nil
	}
	return "", fmt.Errorf("unknown data source %q (issue|discussion)", s)
}

// Noun returns the plural display noun for the source ("Issues", "Discussions").
func (d DataSource) Noun() string {
	if d == DataSourceDiscussion {
		return "Discussions"
	}
	return "Issues"
}

// RepoRef identifies the repository whose threads are displayed.
type RepoRef struct {
	Owner string
	Repo  string
}

// IsZero reports whether neither owner nor repo is set.
func (r RepoRef) IsZero() bool {
	return r.Owner == "" && r.Repo == ""
}

// Valid reports whether both owner and repo are set.
func (r RepoRef) Valid() bool {
	return r.Owner != "" && r.Repo != ""
}

func (r RepoRef) String() string {
	if r.IsZero() {
		return ""
	}
	return r.Owner + "/" + r.Repo
}

// ParseRepoRef parses "owner/repo". Surrounding whitespace and a leading
// "https://github.com/" are tolerated.
func ParseRepoRef(s string) (RepoRef, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "github.com/")
	s = strings.TrimSuffix(s, "/")
	owner, repo, ok := strings.Cut(s, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return RepoRef{}, errors.New("expected owner/repo")
	}
	return RepoRef{Owner: owner, Repo: repo}, nil
}

// Author is the account that created a thread or comment.
type Author struct {
	Login     string
	AvatarURL string
	URL       string
}

// ReactionGroup is the number of reactions of one kind on a thread.
type ReactionGroup struct {
	Content string // GraphQL ReactionContent, e.g. "THUMBS_UP"
	Count   int
}

// ThreadNode is an issue or discussion as returned by the API.
// Nodes are immutable once fetched.
type ThreadNode struct {
	ID             string
	Number         int
	Title          string
	Body           string
	URL            string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Author         *Author // nil when the account was deleted
	ReactionCount  int
	ReactionGroups []ReactionGroup
	CommentCount   int
	Labels         []string
	Category       string // discussions only
	ViewerReacted  bool   // viewer already gave a THUMBS_UP
}

// AuthorLogin returns the author's login or an empty string for deleted accounts.
func (n ThreadNode) AuthorLogin() string {
	if n.Author == nil {
		return ""
	}
	return n.Author.Login
}

// DisplayItem is the view model derived from a ThreadNode and the current identity.
type DisplayItem struct {
	ID                   string
	Number               int
	Title                string
	Body                 string
	URL                  string
	Author               string
	AvatarURL            string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Labels               []string
	Category             string
	Reactions            []ReactionGroup
	ReactionCount        int
	CommentCount         int
	ViewerReacted        bool
	IsOwnedByCurrentUser bool
}

// Page is one page of a feed.
type Page struct {
	Nodes       []ThreadNode
	HasNextPage bool
	EndCursor   string

	// Repository metadata returned alongside the page.
	RepoDescription string
	RepoURL         string
}

// Comment is a reply inside a thread.
type Comment struct {
	ID        string
	Author    string // may be empty if the user was deleted
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RateLimit is the last quota snapshot reported by the API.
type RateLimit struct {
	Limit     int // -1 when unknown
	Remaining int // -1 when unknown
	Used      int
	Reset     time.Time
}

// Known reports whether any rate limit header has been observed.
func (r RateLimit) Known() bool {
	return r.Limit >= 0 && r.Remaining >= 0
}
