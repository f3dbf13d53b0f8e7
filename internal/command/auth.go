package command

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Credentials holds the optional bearer token attached to command requests.
//
// The controller accepts either a JWT or a static API key on the same
// Authorization header. When the token parses as a JWT its expiry is
// checked locally so a doomed request is reported before it is sent;
// a static key has no expiry and is passed through as-is.
//
// Verification of the signature is the controller's job, not ours: the
// client never holds the signing secret.
type Credentials struct {
	token     string
	expiresAt time.Time // zero when the token is not a JWT or carries no exp
}

// NewCredentials wraps a bearer token. An empty token yields empty
// credentials (no Authorization header is sent).
func NewCredentials(token string) Credentials {
	creds := Credentials{token: token}
	if token == "" {
		return creds
	}

	// Parse without verifying: we only want the exp claim, if any.
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return creds // static API key, no expiry to check
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		creds.expiresAt = exp.Time
	}
	return creds
}

// Empty reports whether no token is configured.
func (c Credentials) Empty() bool {
	return c.token == ""
}

// Expired reports whether the token is a JWT whose expiry has passed.
func (c Credentials) Expired(now time.Time) bool {
	return !c.expiresAt.IsZero() && now.After(c.expiresAt)
}

// Authorize attaches the bearer token to a request, if configured.
func (c Credentials) Authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
