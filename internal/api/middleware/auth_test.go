package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func protectedServer(t *testing.T) *httptest.Server {
	t.Helper()

	mw := NewAuthMiddleware(testSecret)
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, url, authHeader string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestAuthenticate_ValidToken(t *testing.T) {
	srv := protectedServer(t)

	token, err := NewTriggerToken(testSecret, time.Minute)
	require.NoError(t, err)

	resp := doRequest(t, srv.URL, "Bearer "+token)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAuthenticate_MissingHeader(t *testing.T) {
	srv := protectedServer(t)

	resp := doRequest(t, srv.URL, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthenticate_MalformedHeader(t *testing.T) {
	srv := protectedServer(t)

	resp := doRequest(t, srv.URL, "Token abcdef")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthenticate_WrongSecret(t *testing.T) {
	srv := protectedServer(t)

	token, err := NewTriggerToken("another-secret-another-secret-ab", time.Minute)
	require.NoError(t, err)

	resp := doRequest(t, srv.URL, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthenticate_ExpiredToken(t *testing.T) {
	srv := protectedServer(t)

	token, err := NewTriggerToken(testSecret, -time.Minute)
	require.NoError(t, err)

	resp := doRequest(t, srv.URL, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthenticate_WrongIssuer(t *testing.T) {
	srv := protectedServer(t)

	claims := jwt.RegisteredClaims{
		Issuer:    "someone-else",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	resp := doRequest(t, srv.URL, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuthenticate_MissingExpiry(t *testing.T) {
	srv := protectedServer(t)

	claims := jwt.RegisteredClaims{
		Issuer:   schedulerIssuer,
		IssuedAt: jwt.NewNumericDate(time.Now()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	resp := doRequest(t, srv.URL, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
