package feed

import (
	"github.com/h0rv/gwitter/internal/domain"
)

// Phase is the single thing a renderer should show for a state.
type Phase int

const (
	// PhaseIdle: no repository selected yet.
	PhaseIdle Phase = iota
	// PhaseLoadingRepo: first page of a repository is being fetched.
	PhaseLoadingRepo
	PhaseRateLimited
	PhaseLoginRequired
	PhaseError
	// PhaseEmpty: the repository has no threads of the configured kind.
	PhaseEmpty
	PhaseReady
	// PhaseEnd: ready and every page has been loaded.
	PhaseEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseLoadingRepo:
		return "loading"
	case PhaseRateLimited:
		return "rate-limited"
	case PhaseLoginRequired:
		return "login-required"
	case PhaseError:
		return "error"
	case PhaseEmpty:
		return "empty"
	case PhaseReady:
		return "ready"
	case PhaseEnd:
		return "end"
	default:
		return "idle"
	}
}

// State is an immutable snapshot of a controller.
type State struct {
	Repo       domain.RepoRef
	DataSource domain.DataSource
	Items      []domain.DisplayItem
	Generation uint64

	IsLoading         bool
	IsRepoLoading     bool
	HasNextPage       bool
	RateLimitExceeded bool
	NeedsLogin        bool
	RepoError         string

	// ListenerAttached reports whether scrolling can trigger the next page.
	ListenerAttached bool

	IsAuthenticated bool
	UserLogin       string
	TokenSource     string

	RepoDescription string
	RepoURL         string
	RateLimit       domain.RateLimit
}

// Phase derives what to render. Rate limiting and missing login take
// precedence over errors. None of them clear loaded items, which stay
// visible above the message.
func (s State) Phase() Phase {
	switch {
	case s.RateLimitExceeded:
		return PhaseRateLimited
	case s.NeedsLogin:
		return PhaseLoginRequired
	case s.RepoError != "":
		return PhaseError
	case s.IsRepoLoading:
		return PhaseLoadingRepo
	case !s.Repo.Valid():
		return PhaseIdle
	case len(s.Items) == 0:
		return PhaseEmpty
	case !s.HasNextPage:
		return PhaseEnd
	}
	return PhaseReady
}
