package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

// DeviceFlow logs in with the OAuth device authorization grant: the user
// enters a short code on github.com while the process polls for the token.
type DeviceFlow struct {
	config *oauth2.Config
	// Prompt shows the verification URL and user code. It must not block.
	Prompt func(*oauth2.DeviceAuthResponse)
}

// NewDeviceFlow configures the flow for an OAuth app. When tokenURL is set it
// replaces GitHub's token endpoint, which lets the exchange go through a proxy.
func NewDeviceFlow(clientID, clientSecret, tokenURL string, prompt func(*oauth2.DeviceAuthResponse)) *DeviceFlow {
	endpoint := github.Endpoint
	if tokenURL != "" {
		endpoint.TokenURL = tokenURL
	}
	return &DeviceFlow{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
			Scopes:       []string{"public_repo"},
		},
		Prompt: prompt,
	}
}

// WithEndpoint replaces the whole OAuth endpoint.
func (d *DeviceFlow) WithEndpoint(endpoint oauth2.Endpoint) *DeviceFlow {
	d.config.Endpoint = endpoint
	return d
}

// Authenticate requests a device code, shows it and waits for the user to
// approve. It returns when a token is issued, the code expires or ctx ends.
func (d *DeviceFlow) Authenticate(ctx context.Context) (string, error) {
	if d.config.ClientID == "" {
		return "", errors.New("device flow requires request.client_id")
	}

	da, err := d.config.DeviceAuth(ctx)
	if err != nil {
		return "", fmt.Errorf("request device code: %w", err)
	}
	if d.Prompt != nil {
		d.Prompt(da)
	}

	tok, err := d.config.DeviceAccessToken(ctx, da)
	if err != nil {
		return "", fmt.Errorf("wait for authorization: %w", err)
	}
	return tok.AccessToken, nil
}
