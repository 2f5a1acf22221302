package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
)

// BasicAuthEngine accepts HTTP Basic credentials matching a single
// configured username/password pair.
type BasicAuthEngine struct {
	Username string
	Password string
}

// NewBasicAuthEngine creates a new BasicAuthEngine with the given username
// and password.
func NewBasicAuthEngine(username string, password string) *BasicAuthEngine {
	return &BasicAuthEngine{
		Username: username,
		Password: password,
	}
}

// AuthenticateRequest checks the Authorization header for valid Basic Auth
// credentials. It returns a User object if the credentials are valid, nil otherwise.
func (e *BasicAuthEngine) AuthenticateRequest(ctx context.Context, r *http.Request) (*User, error) {
	user, pass, ok := r.BasicAuth()
	if !ok {
		return nil, nil
	}

	// Compare digests so the comparison time does not depend on where the
	// strings first differ or on their lengths.
	userOK := secureCompare(user, e.Username)
	passOK := secureCompare(pass, e.Password)
	if !userOK || !passOK {
		return nil, nil
	}

	return &User{Username: user}, nil
}

func secureCompare(given string, expected string) bool {
	a := sha256.Sum256([]byte(given))
	b := sha256.Sum256([]byte(expected))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}
