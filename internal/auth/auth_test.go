package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"blobgate/internal/auth"

	"github.com/stretchr/testify/require"
)

const (
	Username = "uploader"
	Password = "s3cret"
)

func TestBasicAuth_Succeeds(t *testing.T) {
	t.Parallel()

	e := auth.NewBasicAuthEngine(Username, Password)

	req := httptest.NewRequestWithContext(t.Context(), http.MethodPost, "http://example.com/_upload", nil)
	req.SetBasicAuth(Username, Password)

	user, err := e.AuthenticateRequest(t.Context(), req)
	require.NoError(t, err, "expected Basic authentication to succeed")
	require.NotNil(t, user, "expected non-nil user from successful Basic authentication")
	require.Equal(t, Username, user.Username)
}

func TestBasicAuth_Rejects(t *testing.T) {
	t.Parallel()

	e := auth.NewBasicAuthEngine(Username, Password)

	tests := []struct {
		name   string
		header string
		user   string
		pass   string
	}{
		{name: "missing header"},
		{name: "wrong password", user: Username, pass: "wrong"},
		{name: "wrong username", user: "intruder", pass: Password},
		{name: "password prefix", user: Username, pass: Password[:3]},
		{name: "empty credentials", user: "", pass: ""},
		{name: "bearer scheme", header: "Bearer abc.def.ghi"},
		{name: "malformed base64", header: "Basic !!!not-base64"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequestWithContext(t.Context(), http.MethodDelete, "http://example.com/abc.png", nil)
			switch {
			case tc.header != "":
				req.Header.Set("Authorization", tc.header)
			case tc.name != "missing header":
				req.SetBasicAuth(tc.user, tc.pass)
			}

			user, err := e.AuthenticateRequest(t.Context(), req)
			require.NoError(t, err, "rejections are not errors")
			require.Nil(t, user, "expected nil user from failed Basic authentication")
		})
	}
}
