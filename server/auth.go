package server

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrAnonymous is returned when a request carries no usable identity.
var ErrAnonymous = errors.New("anonymous user")

// Authenticator resolves a request to an authenticated username.
// Session management itself belongs to the surrounding platform; the
// engine only consumes this interface.
type Authenticator interface {
	Authenticate(r *http.Request) (string, error)
}

// PlayerDirectory is the slice of the store the authenticator needs.
type PlayerDirectory interface {
	PlayerExists(username string) (bool, error)
}

// CookieAuth reads the platform's session cookie and verifies the
// named player exists.
type CookieAuth struct {
	CookieName string
	Players    PlayerDirectory
}

func (a *CookieAuth) Authenticate(r *http.Request) (string, error) {
	cookie, err := r.Cookie(a.CookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrAnonymous
	}

	exists, err := a.Players.PlayerExists(cookie.Value)
	if err != nil {
		return "", fmt.Errorf("verify player: %w", err)
	}
	if !exists {
		return "", ErrAnonymous
	}
	return cookie.Value, nil
}
