// Package feed orchestrates a repository feed: it resolves the repository,
// picks the credential, fetches pages, keeps the display list in sync with
// the login state and turns API failures into renderable state.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/h0rv/gwitter/internal/auth"
	"github.com/h0rv/gwitter/internal/config"
	"github.com/h0rv/gwitter/internal/domain"
	"github.com/h0rv/gwitter/internal/gh"
	"github.com/h0rv/gwitter/internal/store"
)

// ErrSuperseded is returned when a response arrives after the repository
// changed. The response is discarded.
var ErrSuperseded = errors.New("superseded by a newer repository load")

// PageFetcher fetches one feed page. *gh.Client implements it.
type PageFetcher interface {
	FetchPage(ctx context.Context, q gh.Query) (*domain.Page, error)
}

// Reactor toggles the viewer's 👍. Optional on a PageFetcher.
type Reactor interface {
	AddReaction(ctx context.Context, subjectID string) error
	RemoveReaction(ctx context.Context, subjectID string) error
}

// CommentFetcher loads thread replies. Optional on a PageFetcher.
type CommentFetcher interface {
	FetchComments(ctx context.Context, kind domain.DataSource, ref domain.RepoRef, number, limit int) ([]domain.Comment, error)
}

// ClientFactory builds a fetcher bound to a token; "" means anonymous.
type ClientFactory interface {
	ForToken(token string) PageFetcher
}

// FactoryFunc adapts a function to ClientFactory.
type FactoryFunc func(token string) PageFetcher

func (f FactoryFunc) ForToken(token string) PageFetcher { return f(token) }

// SessionSource reports the current login. *auth.Holder implements it.
type SessionSource interface {
	Session() auth.Session
}

// RepoHistory persists the last opened repository. *history.Store implements it.
type RepoHistory interface {
	LoadLastRepo(ctx context.Context) (domain.RepoRef, error)
	SaveLastRepo(ctx context.Context, ref domain.RepoRef) error
}

// RepoParams exposes the repository named by the invocation (command line
// flags) and reflects the current one back to it.
type RepoParams interface {
	RepoFromParams() (domain.RepoRef, bool)
	UpdateParams(ref domain.RepoRef)
}

// QuotaSource reports the last known API quota. *gh.Factory implements it.
type QuotaSource interface {
	RateLimit() domain.RateLimit
}

// Options are the controller settings derived from the configuration.
type Options struct {
	DataSource         domain.DataSource
	PageSize           int
	OwnerToken         string
	StaticRepo         domain.RepoRef
	OnlyShowOwner      bool
	EnableRepoSwitcher bool
	ScrollDebounce     time.Duration
	CommentLimit       int
}

// OptionsFromConfig maps a validated configuration onto Options.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		DataSource:         cfg.App.DataSource,
		PageSize:           cfg.Request.PageSize,
		OwnerToken:         cfg.Request.OwnerToken(),
		StaticRepo:         cfg.Request.RepoRef(),
		OnlyShowOwner:      cfg.App.OnlyShowOwner,
		EnableRepoSwitcher: cfg.App.EnableRepoSwitcher,
		ScrollDebounce:     cfg.App.ScrollDebounce,
		CommentLimit:       50,
	}
}

// Option configures optional collaborators.
type Option func(*Controller)

// WithHistory sets the last-repo store used by the repo switcher.
func WithHistory(h RepoHistory) Option {
	return func(c *Controller) { c.history = h }
}

// WithParams sets the invocation parameters collaborator.
func WithParams(p RepoParams) Option {
	return func(c *Controller) { c.params = p }
}

// WithQuota sets the quota source reported in State.
func WithQuota(q QuotaSource) Option {
	return func(c *Controller) { c.quota = q }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithOnChange registers a callback invoked after every state transition.
// It runs on the goroutine that caused the transition, without locks held.
func WithOnChange(fn func()) Option {
	return func(c *Controller) { c.onChange = fn }
}

// Controller drives one feed. All methods are safe for concurrent use; at most
// one page fetch is in flight for the current repository.
type Controller struct {
	opts    Options
	factory ClientFactory
	session SessionSource
	history RepoHistory
	params  RepoParams
	quota   QuotaSource
	logger  *slog.Logger

	onChange func()
	watcher  *ScrollWatcher

	mu          sync.Mutex
	store       *store.Store
	initialized bool
	// life is the context of Initialize; scroll-triggered loads run in it.
	life context.Context

	isLoading     bool
	isRepoLoading bool
	latch         bool
	rateLimited   bool
	needsLogin    bool
	repoError     string
	tokenSource   auth.TokenSource
}

// NewController creates a controller. Nothing is fetched until Initialize.
func NewController(opts Options, factory ClientFactory, session SessionSource, options ...Option) *Controller {
	if opts.DataSource == "" {
		opts.DataSource = domain.DataSourceIssue
	}
	if opts.ScrollDebounce == 0 {
		opts.ScrollDebounce = DefaultScrollDebounce
	}

	c := &Controller{
		opts:    opts,
		factory: factory,
		session: session,
		logger:  slog.New(slog.DiscardHandler),
		store:   store.New(),
		life:    context.Background(),
	}
	for _, o := range options {
		o(c)
	}
	c.logger = c.logger.With("component", "feed", "controller", uuid.NewString()[:8])
	c.watcher = NewScrollWatcher(opts.ScrollDebounce, c.canLoadMore, c.loadMoreFromScroll)
	return c
}

// Watcher returns the scroll watcher the renderer feeds scroll events to.
func (c *Controller) Watcher() *ScrollWatcher {
	return c.watcher
}

// Initialize resolves the initial repository and loads it. Only the first
// call has an effect.
func (c *Controller) Initialize(ctx context.Context) error {
	c.mu.Lock()
	if c.initialized {
		c.mu.Unlock()
		return nil
	}
	c.initialized = true
	c.life = ctx
	c.mu.Unlock()

	ref := c.resolveInitialRepo(ctx)
	if ref.Valid() && c.opts.EnableRepoSwitcher && c.params != nil {
		c.params.UpdateParams(ref)
	}
	return c.LoadRepo(ctx, ref)
}

func (c *Controller) resolveInitialRepo(ctx context.Context) domain.RepoRef {
	if c.opts.EnableRepoSwitcher {
		if c.params != nil {
			if ref, ok := c.params.RepoFromParams(); ok && ref.Valid() {
				c.logger.Debug("initial repo from params", "repo", ref)
				return ref
			}
		}
		if c.history != nil {
			ref, err := c.history.LoadLastRepo(ctx)
			if err != nil {
				c.logger.Warn("failed to load last repo", "error", err)
			} else if ref.Valid() {
				c.logger.Debug("initial repo from history", "repo", ref)
				return ref
			}
		}
	}
	return c.opts.StaticRepo
}

// SwitchRepo is the entry point for a user-initiated repository change. With
// the switcher enabled the choice is persisted before loading.
func (c *Controller) SwitchRepo(ctx context.Context, ref domain.RepoRef) error {
	if c.opts.EnableRepoSwitcher && ref.Valid() {
		if c.history != nil {
			if err := c.history.SaveLastRepo(ctx, ref); err != nil {
				c.logger.Warn("failed to save last repo", "repo", ref, "error", err)
			}
		}
		if c.params != nil {
			c.params.UpdateParams(ref)
		}
	}
	return c.LoadRepo(ctx, ref)
}

// Retry reloads the current repository from the first page.
func (c *Controller) Retry(ctx context.Context) error {
	c.mu.Lock()
	ref := c.store.Repo()
	c.mu.Unlock()
	return c.LoadRepo(ctx, ref)
}

// LoadRepo resets the feed to ref and fetches its first page. Any response
// still in flight for a previous repository will be discarded.
func (c *Controller) LoadRepo(ctx context.Context, ref domain.RepoRef) error {
	c.mu.Lock()
	gen := c.store.Reset(ref)
	c.watcher.Detach()
	c.latch = false
	c.rateLimited = false
	c.needsLogin = false
	c.repoError = ""

	q, err := gh.BuildQuery(c.opts.DataSource, ref.Owner, ref.Repo, "", c.opts.PageSize, c.queryOptions())
	if err != nil {
		c.isLoading = false
		c.isRepoLoading = false
		c.repoError = userMessage(err, ref)
		c.mu.Unlock()
		c.logger.Warn("invalid repository", "repo", ref, "error", err)
		c.notify()
		return err
	}

	c.isLoading = true
	c.isRepoLoading = true
	fetcher := c.fetcherLocked()
	src := c.tokenSource
	c.mu.Unlock()
	c.notify()

	c.logger.Info("loading repo",
		"repo", ref,
		"data_source", c.opts.DataSource,
		"token_source", src,
		"generation", gen,
	)

	page, err := fetcher.FetchPage(ctx, q)

	c.mu.Lock()
	if gen != c.store.Generation() {
		c.mu.Unlock()
		c.logger.Debug("discarding stale response", "repo", ref, "generation", gen)
		return ErrSuperseded
	}
	c.isLoading = false
	c.isRepoLoading = false
	if err != nil {
		c.applyErrorLocked(err, ref)
		c.mu.Unlock()
		c.logger.Warn("failed to load repo", "repo", ref, "error", err)
		c.notify()
		return err
	}

	c.store.ReplaceNodes(page.Nodes)
	c.store.SetPagination(page.EndCursor, page.HasNextPage)
	c.store.SetRepoInfo(page.RepoDescription, page.RepoURL)
	c.rateLimited = false
	if page.HasNextPage && c.store.Len() > 0 {
		c.watcher.Attach()
	}
	n := c.store.Len()
	c.mu.Unlock()

	c.logger.Info("repo loaded", "repo", ref, "items", n, "has_next_page", page.HasNextPage, "generation", gen)
	c.notify()
	return nil
}

// LoadNextPage fetches the page after the current cursor. It does nothing
// and returns false while a load is in flight, when there is no next page or
// when a load for the current cursor already started.
func (c *Controller) LoadNextPage(ctx context.Context) (bool, error) {
	c.mu.Lock()
	cursor, hasNext := c.store.Pagination()
	ref := c.store.Repo()
	if c.isLoading || !hasNext || c.latch || !ref.Valid() {
		c.mu.Unlock()
		return false, nil
	}

	q, err := gh.BuildQuery(c.opts.DataSource, ref.Owner, ref.Repo, cursor, c.opts.PageSize, c.queryOptions())
	if err != nil {
		c.repoError = userMessage(err, ref)
		c.mu.Unlock()
		c.notify()
		return false, err
	}

	c.isLoading = true
	c.latch = true
	gen := c.store.Generation()
	fetcher := c.fetcherLocked()
	src := c.tokenSource
	c.mu.Unlock()
	c.notify()

	c.logger.Debug("loading next page", "repo", ref, "cursor", cursor, "token_source", src, "generation", gen)

	page, err := fetcher.FetchPage(ctx, q)

	c.mu.Lock()
	if gen != c.store.Generation() {
		c.mu.Unlock()
		c.logger.Debug("discarding stale page", "repo", ref, "cursor", cursor, "generation", gen)
		return true, ErrSuperseded
	}
	c.isLoading = false
	c.latch = false
	if err != nil {
		c.applyErrorLocked(err, ref)
		c.mu.Unlock()
		c.logger.Warn("failed to load next page", "repo", ref, "cursor", cursor, "error", err)
		c.notify()
		return true, err
	}

	c.store.AppendNodes(page.Nodes)
	c.store.SetPagination(page.EndCursor, page.HasNextPage)
	c.rateLimited = false
	c.repoError = ""
	if !page.HasNextPage {
		c.watcher.Detach()
	}
	n := c.store.Len()
	c.mu.Unlock()

	c.logger.Debug("page loaded", "repo", ref, "items", n, "has_next_page", page.HasNextPage)
	c.notify()
	return true, nil
}

// RefreshIdentity re-derives the display list for the current session. It
// is called after a login or logout. When the current repository never loaded
// because of the rate limit or a missing login, a signed-in session reloads
// it from the first page; otherwise nothing is refetched.
func (c *Controller) RefreshIdentity(ctx context.Context) error {
	s := c.session.Session()

	c.mu.Lock()
	c.store.SetViewerLogin(s.UserLogin)
	blocked := c.needsLogin || c.rateLimited
	reload := s.IsAuthenticated && blocked && c.store.Len() == 0 && c.store.Repo().Valid()
	if s.IsAuthenticated && !reload {
		c.needsLogin = false
		c.rateLimited = false
	}
	c.mu.Unlock()

	c.logger.Debug("identity refreshed", "user", s.UserLogin, "reload", reload)
	if reload {
		return c.Retry(ctx)
	}
	c.notify()
	return nil
}

// ToggleReaction adds or removes the viewer's 👍 on an item. The change is
// shown immediately and rolled back if the API call fails.
func (c *Controller) ToggleReaction(ctx context.Context, id string) (bool, error) {
	if !c.session.Session().IsAuthenticated {
		return false, &gh.Error{Kind: gh.ErrUnauthorized, Message: "Login required to react"}
	}

	c.mu.Lock()
	item, err := c.store.Item(id)
	if err != nil {
		c.mu.Unlock()
		return false, err
	}
	reacted := !item.ViewerReacted
	if err := c.store.ApplyReaction(id, reacted); err != nil {
		c.mu.Unlock()
		return false, err
	}
	gen := c.store.Generation()
	fetcher := c.fetcherLocked()
	c.mu.Unlock()
	c.notify()

	reactor, ok := fetcher.(Reactor)
	if ok {
		if reacted {
			err = reactor.AddReaction(ctx, id)
		} else {
			err = reactor.RemoveReaction(ctx, id)
		}
	} else {
		err = errors.New("client cannot react")
	}

	c.mu.Lock()
	if gen == c.store.Generation() {
		if err != nil {
			if rbErr := c.store.RollbackReaction(id); rbErr != nil {
				c.logger.Warn("reaction rollback failed", "item", id, "error", rbErr)
			}
		} else {
			c.store.CommitReaction(id)
		}
	}
	c.mu.Unlock()
	c.notify()

	if err != nil {
		c.logger.Warn("reaction failed", "item", id, "error", err)
		return false, err
	}
	return reacted, nil
}

// LoadComments fetches the replies of the item with the given number.
func (c *Controller) LoadComments(ctx context.Context, number int) ([]domain.Comment, error) {
	c.mu.Lock()
	ref := c.store.Repo()
	fetcher := c.fetcherLocked()
	c.mu.Unlock()

	cf, ok := fetcher.(CommentFetcher)
	if !ok {
		return nil, errors.New("client cannot load comments")
	}
	comments, err := cf.FetchComments(ctx, c.opts.DataSource, ref, number, c.opts.CommentLimit)
	if err != nil {
		return nil, fmt.Errorf("load comments for #%d: %w", number, err)
	}
	return comments, nil
}

// State returns a snapshot of the feed.
func (c *Controller) State() State {
	s := c.session.Session()

	c.mu.Lock()
	defer c.mu.Unlock()

	_, hasNext := c.store.Pagination()
	desc, url := c.store.RepoInfo()
	st := State{
		Repo:              c.store.Repo(),
		DataSource:        c.opts.DataSource,
		Items:             c.store.Items(),
		Generation:        c.store.Generation(),
		IsLoading:         c.isLoading,
		IsRepoLoading:     c.isRepoLoading,
		HasNextPage:       hasNext,
		RateLimitExceeded: c.rateLimited,
		NeedsLogin:        c.needsLogin,
		RepoError:         c.repoError,
		ListenerAttached:  c.watcher.Attached(),
		IsAuthenticated:   s.IsAuthenticated,
		UserLogin:         s.UserLogin,
		TokenSource:       c.tokenSource.String(),
		RepoDescription:   desc,
		RepoURL:           url,
		RateLimit:         domain.RateLimit{Limit: -1, Remaining: -1},
	}
	if c.quota != nil {
		st.RateLimit = c.quota.RateLimit()
	}
	return st
}

// fetcherLocked picks the effective token for the next request and keeps
// ownership flags in line with the session.
func (c *Controller) fetcherLocked() PageFetcher {
	s := c.session.Session()
	token, src := auth.EffectiveToken(s.Token, c.opts.OwnerToken)
	c.tokenSource = src
	if c.store.ViewerLogin() != s.UserLogin {
		c.store.SetViewerLogin(s.UserLogin)
	}
	return c.factory.ForToken(token)
}

func (c *Controller) queryOptions() gh.QueryOptions {
	return gh.QueryOptions{OnlyShowOwner: c.opts.OnlyShowOwner}
}

func (c *Controller) applyErrorLocked(err error, ref domain.RepoRef) {
	switch {
	case gh.IsRateLimitError(err):
		c.rateLimited = true
	case errors.Is(err, gh.ErrUnauthorized):
		c.needsLogin = true
	default:
		c.repoError = userMessage(err, ref)
	}
}

// canLoadMore gates scroll-triggered loads.
func (c *Controller) canLoadMore() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.isLoading && c.store.Len() > 0
}

func (c *Controller) loadMoreFromScroll() {
	c.mu.Lock()
	ctx := c.life
	c.mu.Unlock()
	if _, err := c.LoadNextPage(ctx); err != nil && !errors.Is(err, ErrSuperseded) {
		c.logger.Debug("scroll load failed", "error", err)
	}
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange()
	}
}

// userMessage turns an error into the text shown in the error panel.
func userMessage(err error, ref domain.RepoRef) string {
	var apiErr *gh.Error
	switch {
	case errors.Is(err, gh.ErrConfig) && errors.As(err, &apiErr):
		return apiErr.Message
	case errors.Is(err, gh.ErrNotFound):
		return fmt.Sprintf("Repository %s not found or private", ref)
	case errors.Is(err, gh.ErrGraphQL) && errors.As(err, &apiErr):
		return apiErr.Message
	}
	return "Failed to load repository"
}
