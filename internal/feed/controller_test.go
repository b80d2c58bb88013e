package feed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/h0rv/gwitter/internal/auth"
	"github.com/h0rv/gwitter/internal/config"
	"github.com/h0rv/gwitter/internal/domain"
	"github.com/h0rv/gwitter/internal/gh"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI is both the client factory and the client.
type fakeAPI struct {
	mu      sync.Mutex
	tokens  []string
	queries []gh.Query
	handler func(ctx context.Context, q gh.Query) (*domain.Page, error)

	reactErr  error
	reactGate chan struct{}
	reactions []string
}

func (f *fakeAPI) ForToken(token string) PageFetcher {
	f.mu.Lock()
	f.tokens = append(f.tokens, token)
	f.mu.Unlock()
	return f
}

func (f *fakeAPI) FetchPage(ctx context.Context, q gh.Query) (*domain.Page, error) {
	f.mu.Lock()
	f.queries = append(f.queries, q)
	h := f.handler
	f.mu.Unlock()
	return h(ctx, q)
}

func (f *fakeAPI) AddReaction(_ context.Context, id string) error {
	return f.react("+" + id)
}

func (f *fakeAPI) RemoveReaction(_ context.Context, id string) error {
	return f.react("-" + id)
}

// react records the mutation and blocks on reactGate when one is set.
func (f *fakeAPI) react(op string) error {
	f.mu.Lock()
	f.reactions = append(f.reactions, op)
	gate, err := f.reactGate, f.reactErr
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeAPI) reactionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reactions)
}

func (f *fakeAPI) FetchComments(_ context.Context, _ domain.DataSource, ref domain.RepoRef, number, _ int) ([]domain.Comment, error) {
	return []domain.Comment{{ID: fmt.Sprintf("%s#%d", ref, number), Body: "hi"}}, nil
}

func (f *fakeAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func (f *fakeAPI) lastQuery() gh.Query {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.queries[len(f.queries)-1]
}

func (f *fakeAPI) lastToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[len(f.tokens)-1]
}

type fakeSession struct {
	mu sync.Mutex
	s  auth.Session
}

func (f *fakeSession) Session() auth.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.s
}

func (f *fakeSession) set(s auth.Session) {
	f.mu.Lock()
	f.s = s
	f.mu.Unlock()
}

type fakeHistory struct {
	last  domain.RepoRef
	saved []domain.RepoRef
	err   error
}

func (f *fakeHistory) LoadLastRepo(context.Context) (domain.RepoRef, error) { return f.last, f.err }

func (f *fakeHistory) SaveLastRepo(_ context.Context, ref domain.RepoRef) error {
	f.saved = append(f.saved, ref)
	f.last = ref
	return nil
}

type fakeParams struct {
	ref     domain.RepoRef
	updated []domain.RepoRef
}

func (f *fakeParams) RepoFromParams() (domain.RepoRef, bool) { return f.ref, f.ref.Valid() }
func (f *fakeParams) UpdateParams(ref domain.RepoRef)        { f.updated = append(f.updated, ref) }

var (
	repoA = domain.RepoRef{Owner: "panda8246", Repo: "tiny-blog"}
	repoB = domain.RepoRef{Owner: "golang", Repo: "go"}
)

func nodes(prefix string, n int, author string) []domain.ThreadNode {
	out := make([]domain.ThreadNode, n)
	for i := range out {
		out[i] = domain.ThreadNode{
			ID:     fmt.Sprintf("%s_%d", prefix, i),
			Number: i + 1,
			Title:  fmt.Sprintf("%s post %d", prefix, i),
			Author: &domain.Author{Login: author},
		}
	}
	return out
}

// pagedHandler serves pages of two items per repo; the first page of each
// repo has a next page and the second does not.
func pagedHandler(_ context.Context, q gh.Query) (*domain.Page, error) {
	repo := q.Variables["repo"].(string)
	if q.Variables["after"] == nil {
		return &domain.Page{Nodes: nodes(repo+"_p1", 2, "panda8246"), HasNextPage: true, EndCursor: repo + "_c1", RepoDescription: "desc " + repo}, nil
	}
	return &domain.Page{Nodes: nodes(repo+"_p2", 2, "someone"), HasNextPage: false, EndCursor: repo + "_c2"}, nil
}

func newTestController(t *testing.T, api *fakeAPI, session *fakeSession, opts Options, options ...Option) *Controller {
	t.Helper()
	if opts.PageSize == 0 {
		opts.PageSize = 2
	}
	if session == nil {
		session = &fakeSession{}
	}
	return NewController(opts, api, session, options...)
}

func TestController_TokenPrecedence(t *testing.T) {
	api := &fakeAPI{handler: pagedHandler}
	session := &fakeSession{}

	c := newTestController(t, api, session, Options{OwnerToken: "ghp_owner"})
	require.NoError(t, c.LoadRepo(context.Background(), repoA))
	assert.Equal(t, "ghp_owner", api.lastToken())
	assert.Equal(t, "owner", c.State().TokenSource)

	session.set(auth.Session{IsAuthenticated: true, Token: "gho_session", UserLogin: "panda8246"})
	_, err := c.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gho_session", api.lastToken(), "session token is recomputed per request")
	assert.Equal(t, "session", c.State().TokenSource)

	anon := newTestController(t, api, &fakeSession{}, Options{})
	require.NoError(t, anon.LoadRepo(context.Background(), repoA))
	assert.Equal(t, "", api.lastToken())
	assert.Equal(t, "anonymous", anon.State().TokenSource)
}

func TestController_LoadRepo(t *testing.T) {
	api := &fakeAPI{handler: pagedHandler}
	var changes int
	var mu sync.Mutex
	c := newTestController(t, api, nil, Options{DataSource: domain.DataSourceDiscussion}, WithOnChange(func() {
		mu.Lock()
		changes++
		mu.Unlock()
	}))

	require.NoError(t, c.LoadRepo(context.Background(), repoA))

	st := c.State()
	assert.Equal(t, repoA, st.Repo)
	assert.Len(t, st.Items, 2)
	assert.True(t, st.HasNextPage)
	assert.False(t, st.IsLoading)
	assert.False(t, st.IsRepoLoading)
	assert.True(t, st.ListenerAttached)
	assert.Equal(t, "desc tiny-blog", st.RepoDescription)
	assert.Equal(t, PhaseReady, st.Phase())

	q := api.lastQuery()
	assert.Equal(t, domain.DataSourceDiscussion, q.Kind, "configured data source is used on every load")
	assert.Nil(t, q.Variables["after"])
	assert.Equal(t, 2, q.Variables["first"])

	mu.Lock()
	assert.GreaterOrEqual(t, changes, 2)
	mu.Unlock()
}

func TestController_RepoSwitchResetsCursorAndItems(t *testing.T) {
	api := &fakeAPI{handler: pagedHandler}
	c := newTestController(t, api, nil, Options{})
	ctx := context.Background()

	require.NoError(t, c.LoadRepo(ctx, repoA))
	_, err := c.LoadNextPage(ctx)
	require.NoError(t, err)
	require.Len(t, c.State().Items, 4)

	var during State
	api.mu.Lock()
	api.handler = func(ctx context.Context, q gh.Query) (*domain.Page, error) {
		during = c.State()
		return pagedHandler(ctx, q)
	}
	api.mu.Unlock()

	require.NoError(t, c.SwitchRepo(ctx, repoB))

	assert.Empty(t, during.Items, "items are cleared before the fetch")
	assert.True(t, during.HasNextPage)
	assert.True(t, during.IsRepoLoading)
	assert.Equal(t, PhaseLoadingRepo, during.Phase())
	assert.False(t, during.ListenerAttached)
	assert.Nil(t, api.lastQuery().Variables["after"], "cursor is reset")
	assert.Equal(t, "go", api.lastQuery().Variables["repo"])

	st := c.State()
	assert.Equal(t, repoB, st.Repo)
	assert.Len(t, st.Items, 2)
}

func TestController_LoadNextPage(t *testing.T) {
	api := &fakeAPI{handler: pagedHandler}
	c := newTestController(t, api, nil, Options{})
	ctx := context.Background()

	require.NoError(t, c.LoadRepo(ctx, repoA))

	loaded, err := c.LoadNextPage(ctx)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "tiny-blog_c1", api.lastQuery().Variables["after"])

	st := c.State()
	require.Len(t, st.Items, 4)
	assert.Equal(t, "tiny-blog_p1_0", st.Items[0].ID)
	assert.Equal(t, "tiny-blog_p2_1", st.Items[3].ID)
	assert.False(t, st.HasNextPage)
	assert.False(t, st.ListenerAttached, "listener detaches when pagination ends")
	assert.Equal(t, PhaseEnd, st.Phase())

	// No next page: no-op.
	calls := api.callCount()
	loaded, err = c.LoadNextPage(ctx)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, calls, api.callCount())
}

func TestController_LoadNextPageNoOpWhileLoading(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{}, 1)
	api := &fakeAPI{handler: func(ctx context.Context, q gh.Query) (*domain.Page, error) {
		if q.Variables["after"] != nil {
			started <- struct{}{}
			<-release
		}
		return pagedHandler(ctx, q)
	}}
	c := newTestController(t, api, nil, Options{})
	ctx := context.Background()
	require.NoError(t, c.LoadRepo(ctx, repoA))

	done := make(chan error, 1)
	go func() {
		_, err := c.LoadNextPage(ctx)
		done <- err
	}()
	<-started

	st := c.State()
	assert.True(t, st.IsLoading)
	calls := api.callCount()

	// Loading and latched: both guards drop the request.
	loaded, err := c.LoadNextPage(ctx)
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, calls, api.callCount())

	close(release)
	require.NoError(t, <-done)
	assert.False(t, c.State().IsLoading)
	assert.Len(t, c.State().Items, 4)
}

func TestController_LoadNextPageNoOpWhileRepoLoading(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAPI{handler: func(ctx context.Context, q gh.Query) (*domain.Page, error) {
		close(started)
		<-release
		return pagedHandler(ctx, q)
	}}
	c := newTestController(t, api, nil, Options{})

	done := make(chan error, 1)
	go func() { done <- c.LoadRepo(context.Background(), repoA) }()
	<-started

	loaded, err := c.LoadNextPage(context.Background())
	require.NoError(t, err)
	assert.False(t, loaded)
	assert.Equal(t, 1, api.callCount())

	close(release)
	require.NoError(t, <-done)
}

func TestController_EmptyRepoSetsErrorWithoutRequest(t *testing.T) {
	tests := []domain.RepoRef{
		{},
		{Owner: "panda8246"},
		{Repo: "tiny-blog"},
	}

	for _, ref := range tests {
		t.Run(ref.String(), func(t *testing.T) {
			api := &fakeAPI{handler: pagedHandler}
			c := newTestController(t, api, nil, Options{})

			err := c.LoadRepo(context.Background(), ref)
			require.Error(t, err)
			assert.ErrorIs(t, err, gh.ErrConfig)

			st := c.State()
			assert.Equal(t, "Repository owner and name are required", st.RepoError)
			assert.Equal(t, PhaseError, st.Phase())
			assert.False(t, st.IsLoading)
			assert.Equal(t, 0, api.callCount())
		})
	}
}

func TestController_ErrorMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"not found", &gh.Error{Kind: gh.ErrNotFound, Message: "Could not resolve"}, "Repository panda8246/tiny-blog not found or private"},
		{"graphql", &gh.Error{Kind: gh.ErrGraphQL, Message: "Something broke"}, "Something broke"},
		{"transport", errors.New("dial tcp: refused"), "Failed to load repository"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{handler: func(context.Context, gh.Query) (*domain.Page, error) { return nil, tt.err }}
			c := newTestController(t, api, nil, Options{})

			err := c.LoadRepo(context.Background(), repoA)
			require.Error(t, err)

			st := c.State()
			assert.Equal(t, tt.want, st.RepoError)
			assert.False(t, st.RateLimitExceeded)
			assert.False(t, st.IsRepoLoading)
		})
	}
}

func TestController_RateLimitKeepsItems(t *testing.T) {
	api := &fakeAPI{handler: pagedHandler}
	c := newTestController(t, api, nil, Options{})
	ctx := context.Background()
	require.NoError(t, c.LoadRepo(ctx, repoA))
	before := c.State().Items

	api.mu.Lock()
	api.handler = func(context.Context, gh.Query) (*domain.Page, error) {
		return nil, fmt.Errorf("fetch issue page: %w", &gh.Error{Kind: gh.ErrRateLimit, Message: "API rate limit exceeded"})
	}
	api.mu.Unlock()

	loaded, err := c.LoadNextPage(ctx)
	assert.True(t, loaded)
	require.Error(t, err)

	st := c.State()
	assert.True(t, st.RateLimitExceeded)
	assert.Equal(t, before, st.Items)
	assert.Empty(t, st.RepoError)
	assert.False(t, st.IsLoading)
	assert.Equal(t, PhaseRateLimited, st.Phase())

	// The latch is released, so a later attempt can succeed.
	api.mu.Lock()
	api.handler = pagedHandler
	api.mu.Unlock()
	_, err = c.LoadNextPage(ctx)
	require.NoError(t, err)
	assert.False(t, c.State().RateLimitExceeded)
	assert.Len(t, c.State().Items, 4)
}

func TestController_UnauthorizedNeedsLogin(t *testing.T) {
	api := &fakeAPI{}
	api.handler = func(ctx context.Context, q gh.Query) (*domain.Page, error) {
		if api.lastToken() == "" {
			return nil, &gh.Error{Kind: gh.ErrUnauthorized, Message: "Bad credentials"}
		}
		return pagedHandler(ctx, q)
	}
	session := &fakeSession{}
	c := newTestController(t, api, session, Options{})

	require.Error(t, c.LoadRepo(context.Background(), repoA))
	assert.True(t, c.State().NeedsLogin)
	assert.Equal(t, PhaseLoginRequired, c.State().Phase())

	session.set(auth.Session{IsAuthenticated: true, Token: "gho", UserLogin: "panda8246"})
	require.NoError(t, c.RefreshIdentity(context.Background()))

	st := c.State()
	assert.False(t, st.NeedsLogin)
	assert.Len(t, st.Items, 2)
	assert.Equal(t, PhaseReady, st.Phase())
}

func TestController_LoginRecoversRateLimitedRepo(t *testing.T) {
	api := &fakeAPI{}
	api.handler = func(ctx context.Context, q gh.Query) (*domain.Page, error) {
		if api.lastToken() == "" {
			return nil, &gh.Error{Kind: gh.ErrRateLimit, Message: "API rate limit exceeded"}
		}
		return pagedHandler(ctx, q)
	}
	session := &fakeSession{}
	c := newTestController(t, api, session, Options{})
	ctx := context.Background()

	require.Error(t, c.LoadRepo(ctx, repoA))
	assert.Equal(t, PhaseRateLimited, c.State().Phase())
	calls := api.callCount()

	// Without a session nothing is refetched.
	require.NoError(t, c.RefreshIdentity(ctx))
	assert.Equal(t, PhaseRateLimited, c.State().Phase())
	assert.Equal(t, calls, api.callCount())

	session.set(auth.Session{IsAuthenticated: true, Token: "gho", UserLogin: "panda8246"})
	require.NoError(t, c.RefreshIdentity(ctx))

	st := c.State()
	assert.Equal(t, calls+1, api.callCount())
	assert.Equal(t, "gho", api.lastToken())
	assert.False(t, st.RateLimitExceeded)
	assert.Len(t, st.Items, 2)
	assert.True(t, st.ListenerAttached)
	assert.Equal(t, PhaseReady, st.Phase())
}

func TestController_LoginKeepsItemsAfterRateLimitedPage(t *testing.T) {
	api := &fakeAPI{handler: pagedHandler}
	session := &fakeSession{}
	c := newTestController(t, api, session, Options{})
	ctx := context.Background()
	require.NoError(t, c.LoadRepo(ctx, repoA))

	api.mu.Lock()
	api.handler = func(context.Context, gh.Query) (*domain.Page, error) {
		return nil, &gh.Error{Kind: gh.ErrRateLimit, Message: "API rate limit exceeded"}
	}
	api.mu.Unlock()
	_, err := c.LoadNextPage(ctx)
	require.Error(t, err)
	calls := api.callCount()

	session.set(auth.Session{IsAuthenticated: true, Token: "gho", UserLogin: "panda8246"})
	require.NoError(t, c.RefreshIdentity(ctx))

	st := c.State()
	assert.Equal(t, calls, api.callCount())
	assert.False(t, st.RateLimitExceeded)
	assert.Len(t, st.Items, 2)
	assert.Equal(t, PhaseReady, st.Phase())
}

func TestController_StaleResponseDiscarded(t *testing.T) {
	releaseA := make(chan struct{})
	startedA := make(chan struct{})
	api := &fakeAPI{handler: func(ctx context.Context, q gh.Query) (*domain.Page, error) {
		if q.Variables["repo"] == repoA.Repo {
			close(startedA)
			<-releaseA
		}
		return pagedHandler(ctx, q)
	}}
	c := newTestController(t, api, nil, Options{})

	errA := make(chan error, 1)
	go func() { errA <- c.LoadRepo(context.Background(), repoA) }()
	<-startedA

	require.NoError(t, c.LoadRepo(context.Background(), repoB))
	close(releaseA)
	assert.ErrorIs(t, <-errA, ErrSuperseded)

	st := c.State()
	assert.Equal(t, repoB, st.Repo)
	require.Len(t, st.Items, 2)
	for _, item := range st.Items {
		assert.Contains(t, item.ID, "go_p1")
	}
	assert.False(t, st.IsLoading)
}

func TestController_StaleNextPageDiscarded(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	api := &fakeAPI{handler: func(ctx context.Context, q gh.Query) (*domain.Page, error) {
		if q.Variables["repo"] == repoA.Repo && q.Variables["after"] != nil {
			close(started)
			<-release
		}
		return pagedHandler(ctx, q)
	}}
	c := newTestController(t, api, nil, Options{})
	ctx := context.Background()
	require.NoError(t, c.LoadRepo(ctx, repoA))

	errNext := make(chan error, 1)
	go func() {
		_, err := c.LoadNextPage(ctx)
		errNext <- err
	}()
	<-started

	require.NoError(t, c.LoadRepo(ctx, repoB))
	close(release)
	assert.ErrorIs(t, <-errNext, ErrSuperseded)

	st := c.State()
	assert.Len(t, st.Items, 2)
	assert.True(t, st.HasNextPage)

	// The new repository can still paginate.
	loaded, err := c.LoadNextPage(ctx)
	require.NoError(t, err)
	assert.True(t, loaded)
	assert.Equal(t, "go_c1", api.lastQuery().Variables["after"])
}

func TestController_InitializeResolution(t *testing.T) {
	tests := []struct {
		name     string
		switcher bool
		params   domain.RepoRef
		last     domain.RepoRef
		static   domain.RepoRef
		want     domain.RepoRef
	}{
		{"params win", true, repoB, domain.RepoRef{Owner: "x", Repo: "y"}, repoA, repoB},
		{"history second", true, domain.RepoRef{}, repoB, repoA, repoB},
		{"static fallback", true, domain.RepoRef{}, domain.RepoRef{}, repoA, repoA},
		{"switcher disabled ignores params", false, repoB, repoB, repoA, repoA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{handler: pagedHandler}
			params := &fakeParams{ref: tt.params}
			hist := &fakeHistory{last: tt.last}
			c := newTestController(t, api, nil, Options{StaticRepo: tt.static, EnableRepoSwitcher: tt.switcher},
				WithParams(params), WithHistory(hist))

			require.NoError(t, c.Initialize(context.Background()))
			assert.Equal(t, tt.want, c.State().Repo)
			if tt.switcher {
				assert.Equal(t, []domain.RepoRef{tt.want}, params.updated)
			} else {
				assert.Empty(t, params.updated)
			}
		})
	}
}

func TestController_InitializeRunsOnce(t *testing.T) {
	api := &fakeAPI{handler: pagedHandler}
	c := newTestController(t, api, nil, Options{StaticRepo: repoA})

	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Initialize(context.Background()))
	assert.Equal(t, 1, api.callCount())
}

func TestController_InitializeWithoutRepo(t *testing.T) {
	api := &fakeAPI{handler: pagedHandler}
	c := newTestController(t, api, nil, Options{EnableRepoSwitcher: true}, WithHistory(&fakeHistory{err: errors.New("disk")}))

	err := c.Initialize(context.Background())
	assert.ErrorIs(t, err, gh.ErrConfig)
	assert.Equal(t, "Repository owner and name are required", c.State().RepoError)
	assert.Equal(t, 0, api.callCount())
}

func TestController_SwitchRepoPersists(t *testing.T) {
	api := &fakeAPI{handler: pagedHandler}
	params := &fakeParams{}
	hist := &fakeHistory{}
	c := newTestController(t, api, nil, Options{EnableRepoSwitcher: true}, WithParams(params), WithHistory(hist))

	require.NoError(t, c.SwitchRepo(context.Background(), repoB))
	assert.Equal(t, []domain.RepoRef{repoB}, hist.saved)
	assert.Equal(t, []domain.RepoRef{repoB}, params.updated)

	disabled := newTestController(t, api, nil, Options{}, WithParams(params), WithHistory(hist))
	require.NoError(t, disabled.SwitchRepo(context.Background(), repoA))
	assert.Len(t, hist.saved, 1, "nothing is persisted without the switcher")
}

func TestController_Retry(t *testing.T) {
	fail := true
	api := &fakeAPI{}
	api.handler = func(ctx context.Context, q gh.Query) (*domain.Page, error) {
		if fail {
			return nil, errors.New("boom")
		}
		return pagedHandler(ctx, q)
	}
	c := newTestController(t, api, nil, Options{})

	require.Error(t, c.LoadRepo(context.Background(), repoA))
	assert.Equal(t, PhaseError, c.State().Phase())

	fail = false
	require.NoError(t, c.Retry(context.Background()))
	assert.Empty(t, c.State().RepoError)
	assert.Len(t, c.State().Items, 2)
}

func TestController_RefreshIdentityWithoutRefetch(t *testing.T) {
	api := &fakeAPI{handler: pagedHandler}
	session := &fakeSession{}
	c := newTestController(t, api, session, Options{})
	require.NoError(t, c.LoadRepo(context.Background(), repoA))

	for _, item := range c.State().Items {
		assert.False(t, item.IsOwnedByCurrentUser)
	}

	calls := api.callCount()
	session.set(auth.Session{IsAuthenticated: true, Token: "gho", UserLogin: "panda8246"})
	require.NoError(t, c.RefreshIdentity(context.Background()))

	st := c.State()
	assert.Equal(t, calls, api.callCount())
	assert.True(t, st.IsAuthenticated)
	assert.Equal(t, "panda8246", st.UserLogin)
	for _, item := range st.Items {
		assert.True(t, item.IsOwnedByCurrentUser)
	}
}

func TestController_ToggleReaction(t *testing.T) {
	api := &fakeAPI{handler: pagedHandler}
	session := &fakeSession{s: auth.Session{IsAuthenticated: true, Token: "gho", UserLogin: "me"}}
	c := newTestController(t, api, session, Options{})
	require.NoError(t, c.LoadRepo(context.Background(), repoA))
	id := c.State().Items[0].ID

	reacted, err := c.ToggleReaction(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, reacted)
	assert.True(t, c.State().Items[0].ViewerReacted)
	assert.Equal(t, 1, c.State().Items[0].ReactionCount)

	api.mu.Lock()
	api.reactErr = errors.New("forbidden")
	api.mu.Unlock()

	_, err = c.ToggleReaction(context.Background(), id)
	require.Error(t, err)
	assert.True(t, c.State().Items[0].ViewerReacted, "failed removal is rolled back")
	assert.Equal(t, []string{"+" + id, "-" + id}, api.reactions)
}

func TestController_ToggleReactionLogsFailedRollback(t *testing.T) {
	api := &fakeAPI{handler: pagedHandler, reactErr: errors.New("forbidden"), reactGate: make(chan struct{})}
	session := &fakeSession{s: auth.Session{IsAuthenticated: true, Token: "gho", UserLogin: "me"}}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	c := newTestController(t, api, session, Options{}, WithLogger(logger))
	require.NoError(t, c.LoadRepo(context.Background(), repoA))
	id := c.State().Items[0].ID

	// Both toggles of the same item fail; the first restores the original
	// state and the second has nothing left to revert.
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.ToggleReaction(context.Background(), id)
			assert.Error(t, err)
		}()
	}
	require.Eventually(t, func() bool { return api.reactionCount() == 2 }, time.Second, 5*time.Millisecond)
	close(api.reactGate)
	wg.Wait()

	assert.Contains(t, logs.String(), "reaction rollback failed")
	assert.Contains(t, logs.String(), "no rollback state available")
	assert.False(t, c.State().Items[0].ViewerReacted)
}

func TestController_ToggleReactionRequiresLogin(t *testing.T) {
	api := &fakeAPI{handler: pagedHandler}
	c := newTestController(t, api, nil, Options{})
	require.NoError(t, c.LoadRepo(context.Background(), repoA))

	_, err := c.ToggleReaction(context.Background(), c.State().Items[0].ID)
	assert.ErrorIs(t, err, gh.ErrUnauthorized)
	assert.Empty(t, api.reactions)
}

func TestController_LoadComments(t *testing.T) {
	api := &fakeAPI{handler: pagedHandler}
	c := newTestController(t, api, nil, Options{})
	require.NoError(t, c.LoadRepo(context.Background(), repoA))

	comments, err := c.LoadComments(context.Background(), 3)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "panda8246/tiny-blog#3", comments[0].ID)
}

type fakeProbe struct {
	mu      sync.Mutex
	offset  int
	visible bool
}

func (p *fakeProbe) LastItemVisible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

func (p *fakeProbe) ScrollOffset() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.offset
}

func (p *fakeProbe) scrollTo(offset int, visible bool) {
	p.mu.Lock()
	p.offset = offset
	p.visible = visible
	p.mu.Unlock()
}

func TestController_ScrollLoadsNextPage(t *testing.T) {
	api := &fakeAPI{handler: pagedHandler}
	c := newTestController(t, api, nil, Options{ScrollDebounce: 10 * time.Millisecond})
	probe := &fakeProbe{}
	c.Watcher().SetProbe(probe)

	require.NoError(t, c.LoadRepo(context.Background(), repoA))
	require.True(t, c.State().ListenerAttached)

	probe.scrollTo(1, true)
	c.Watcher().Notify()

	assert.Eventually(t, func() bool { return len(c.State().Items) == 4 }, time.Second, 5*time.Millisecond)
	assert.False(t, c.State().ListenerAttached)
}

func TestController_SinglePageNeverListens(t *testing.T) {
	api := &fakeAPI{handler: func(context.Context, gh.Query) (*domain.Page, error) {
		return &domain.Page{Nodes: nodes("only", 2, "x"), HasNextPage: false}, nil
	}}
	c := newTestController(t, api, nil, Options{ScrollDebounce: 5 * time.Millisecond})
	probe := &fakeProbe{}
	c.Watcher().SetProbe(probe)

	require.NoError(t, c.LoadRepo(context.Background(), repoA))
	assert.False(t, c.State().ListenerAttached)

	probe.scrollTo(5, true)
	c.Watcher().Notify()

	assert.Never(t, func() bool { return api.callCount() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestController_EmptyFirstPage(t *testing.T) {
	api := &fakeAPI{handler: func(context.Context, gh.Query) (*domain.Page, error) {
		return &domain.Page{HasNextPage: true, EndCursor: "c"}, nil
	}}
	c := newTestController(t, api, nil, Options{})

	require.NoError(t, c.LoadRepo(context.Background(), repoA))
	st := c.State()
	assert.Equal(t, PhaseEmpty, st.Phase())
	assert.False(t, st.ListenerAttached, "no listener without items")
}

func TestNewController_Defaults(t *testing.T) {
	c := NewController(Options{}, &fakeAPI{handler: pagedHandler}, &fakeSession{})
	assert.Equal(t, domain.DataSourceIssue, c.opts.DataSource)
	assert.Equal(t, DefaultScrollDebounce, c.opts.ScrollDebounce)
	assert.Equal(t, PhaseIdle, c.State().Phase())
	assert.False(t, c.State().RateLimit.Known())
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Request.Token = "?ghp_?abc"
	cfg.Request.Owner = "panda8246"
	cfg.Request.Repo = "tiny-blog"
	cfg.App.OnlyShowOwner = true

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, "ghp_abc", opts.OwnerToken)
	assert.Equal(t, repoA, opts.StaticRepo)
	assert.Equal(t, 10, opts.PageSize)
	assert.True(t, opts.OnlyShowOwner)
	assert.Equal(t, cfg.App.ScrollDebounce, opts.ScrollDebounce)
}

func TestController_OnlyShowOwnerFiltersQuery(t *testing.T) {
	api := &fakeAPI{handler: pagedHandler}
	c := newTestController(t, api, nil, Options{OnlyShowOwner: true})

	require.NoError(t, c.LoadRepo(context.Background(), repoA))
	assert.Equal(t, map[string]any{"createdBy": "panda8246"}, api.lastQuery().Variables["filterBy"])
}
