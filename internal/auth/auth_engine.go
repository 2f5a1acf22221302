package auth

import (
	"context"
	"net/http"
)

// User identifies the caller behind an authenticated request.
type User struct {
	Username string
}

type AuthEngine interface {

	// AuthenticateRequest inspects the given HTTP request for valid
	// authentication credentials. If valid, it returns a User object; otherwise, it
	// returns nil. An error is returned if there was an issue processing
	// the authentication.
	AuthenticateRequest(ctx context.Context, rq *http.Request) (*User, error)
}
