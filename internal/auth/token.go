package auth

// TokenSource names where the effective token came from. It is safe to log.
type TokenSource int

const (
	TokenAnonymous TokenSource = iota
	TokenOwner
	TokenSession
)

func (s TokenSource) String() string {
	switch s {
	case TokenSession:
		return "session"
	case TokenOwner:
		return "owner"
	default:
		return "anonymous"
	}
}

// EffectiveToken picks the token for the next request: the session token when
// present, otherwise the owner token, otherwise none.
func EffectiveToken(sessionToken, ownerToken string) (string, TokenSource) {
	if sessionToken != "" {
		return sessionToken, TokenSession
	}
	if ownerToken != "" {
		return ownerToken, TokenOwner
	}
	return "", TokenAnonymous
}
