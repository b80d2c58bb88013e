// Package auth resolves the GitHub credential used for every request.
//
// Three sources exist: a token obtained by logging in during this process
// (the session), a token configured by the operator (the owner token) and no
// token at all. EffectiveToken decides between them; Holder tracks the session.
package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// TokenProvider obtains an existing GitHub token from the local machine.
// Implementations may use different sources (CLI tools, environment variables, etc).
type TokenProvider interface {
	GetToken() (string, error)
}

// GhCliProvider obtains tokens by shelling out to the GitHub CLI (`gh auth token`).
type GhCliProvider struct {
	// Hostname defaults to github.com.
	Hostname string
}

// GetToken shells out to `gh auth token` to retrieve the current token.
// Returns an error if gh CLI is not installed, not authenticated, or the command fails.
func (g *GhCliProvider) GetToken() (string, error) {
	host := g.Hostname
	if host == "" {
		host = "github.com"
	}
	cmd := exec.Command("gh", "auth", "token", "--hostname", host)
	output, err := cmd.Output()
	if err != nil {
		var execErr *exec.Error
		if errors.As(err, &execErr) && errors.Is(execErr.Err, exec.ErrNotFound) {
			return "", errors.New("gh CLI not found in PATH")
		}
		return "", fmt.Errorf("gh auth token failed: %w", err)
	}

	token := strings.TrimSpace(string(output))
	if token == "" {
		return "", errors.New("gh auth token returned empty token")
	}

	return token, nil
}

// EnvProvider obtains tokens from the GITHUB_TOKEN environment variable.
type EnvProvider struct{}

// GetToken reads the GITHUB_TOKEN environment variable.
// Returns an error if the variable is not set or is empty.
func (e *EnvProvider) GetToken() (string, error) {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		return "", errors.New("GITHUB_TOKEN environment variable not set or empty")
	}
	return token, nil
}

// ProviderAuthenticator logs in by asking each provider in turn for a token
// that already exists on this machine.
type ProviderAuthenticator struct {
	Providers []TokenProvider
}

// DefaultProviders is the gh CLI followed by GITHUB_TOKEN.
func DefaultProviders() []TokenProvider {
	return []TokenProvider{&GhCliProvider{}, &EnvProvider{}}
}

// Authenticate returns the first token a provider yields.
func (p *ProviderAuthenticator) Authenticate(ctx context.Context) (string, error) {
	providers := p.Providers
	if providers == nil {
		providers = DefaultProviders()
	}

	var errs []error
	for _, provider := range providers {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		token, err := provider.GetToken()
		if err == nil {
			return token, nil
		}
		errs = append(errs, err)
	}

	return "", fmt.Errorf(
		"failed to obtain GitHub token (%w).\n"+
			"Please either:\n"+
			"  1. Run 'gh auth login' to authenticate with GitHub CLI,\n"+
			"  2. Set the GITHUB_TOKEN environment variable, or\n"+
			"  3. Configure request.client_id to log in with the device flow",
		errors.Join(errs...),
	)
}
