package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Session is the login state of this process.
type Session struct {
	IsAuthenticated bool
	Token           string
	UserLogin       string
}

// Authenticator obtains a token interactively or from the environment.
type Authenticator interface {
	Authenticate(ctx context.Context) (string, error)
}

// Identifier resolves the login that owns a token.
type Identifier interface {
	Identify(ctx context.Context, token string) (string, error)
}

// IdentifierFunc adapts a function to Identifier.
type IdentifierFunc func(ctx context.Context, token string) (string, error)

func (f IdentifierFunc) Identify(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

// ErrNoAuthenticator is returned by Login when the holder cannot log in.
var ErrNoAuthenticator = errors.New("no login method configured")

// Holder tracks the session for the lifetime of the process. It is safe for
// concurrent use.
type Holder struct {
	mu       sync.RWMutex
	session  Session
	auth     Authenticator
	identity Identifier
	logger   *slog.Logger
}

// NewHolder returns an unauthenticated holder.
func NewHolder(authenticator Authenticator, identity Identifier, logger *slog.Logger) *Holder {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Holder{auth: authenticator, identity: identity, logger: logger}
}

// Session returns a snapshot of the current session.
func (h *Holder) Session() Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.session
}

// Login runs the authenticator and stores the resulting session. A failed
// login leaves the previous session untouched.
func (h *Holder) Login(ctx context.Context) (Session, error) {
	if h.auth == nil {
		return Session{}, ErrNoAuthenticator
	}
	token, err := h.auth.Authenticate(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("login: %w", err)
	}
	return h.UseToken(ctx, token)
}

// UseToken stores a session for an already obtained token.
func (h *Holder) UseToken(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, errors.New("login: empty token")
	}

	var login string
	if h.identity != nil {
		var err error
		login, err = h.identity.Identify(ctx, token)
		if err != nil {
			return Session{}, fmt.Errorf("resolve user: %w", err)
		}
	}

	s := Session{IsAuthenticated: true, Token: token, UserLogin: login}
	h.mu.Lock()
	h.session = s
	h.mu.Unlock()

	h.logger.Info("logged in", "user", login)
	return s, nil
}

// Logout forgets the session.
func (h *Holder) Logout() {
	h.mu.Lock()
	h.session = Session{}
	h.mu.Unlock()
	h.logger.Info("logged out")
}
