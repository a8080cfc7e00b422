package auth

import (
	"context"
	"errors"
	"flag"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	gojwt "github.com/golang-jwt/jwt/v5"
)

func init() {
	flag.Set("logtostderr", "true")
	flag.Set("stderrthreshold", "INFO")
	flag.Set("v", "0")
}

func TestVerifyRoundTrip(t *testing.T) {
	a := NewJWTAuthenticator("secret")
	token, err := a.Mint("user-1", time.Hour)
	assert.Equal(t, err, nil)

	subject, err := a.Verify(token)
	assert.Equal(t, err, nil)
	assert.Equal(t, subject, "user-1")
}

func TestVerifySubFallback(t *testing.T) {
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{"sub": "user-2"}).SignedString([]byte("secret"))
	assert.Equal(t, err, nil)

	subject, err := NewJWTAuthenticator("secret").Verify(signed)
	assert.Equal(t, err, nil)
	assert.Equal(t, subject, "user-2")
}

func TestVerifyRejects(t *testing.T) {
	a := NewJWTAuthenticator("secret")

	_, err := a.Verify("")
	assert.Equal(t, errors.Is(err, ErrUnauthenticated), true)

	_, err = a.Verify("not.a.token")
	assert.Equal(t, errors.Is(err, ErrUnauthenticated), true)

	other, _ := NewJWTAuthenticator("other").Mint("user-1", time.Hour)
	_, err = a.Verify(other)
	assert.Equal(t, errors.Is(err, ErrUnauthenticated), true)

	expired, _ := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"userId": "user-1",
		"exp":    time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("secret"))
	_, err = a.Verify(expired)
	assert.Equal(t, errors.Is(err, ErrUnauthenticated), true)

	noSubject, _ := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{"x": 1}).SignedString([]byte("secret"))
	_, err = a.Verify(noSubject)
	assert.Equal(t, errors.Is(err, ErrUnauthenticated), true)
}

func TestUnverifiedSubject(t *testing.T) {
	token, err := NewJWTAuthenticator("someone-elses-key").Mint("user-3", time.Hour)
	assert.Equal(t, err, nil)

	subject, err := UnverifiedSubject(token)
	assert.Equal(t, err, nil)
	assert.Equal(t, subject, "user-3")

	_, err = UnverifiedSubject("garbage")
	assert.Equal(t, errors.Is(err, ErrUnauthenticated), true)
}

func TestSetSecret(t *testing.T) {
	a := NewJWTAuthenticator("one")
	token, _ := a.Mint("user-1", 0)
	a.SetSecret("two")
	_, err := a.Verify(token)
	assert.NotEqual(t, err, nil)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=abc", nil)
	assert.Equal(t, TokenFromRequest(r), "abc")

	r = httptest.NewRequest("GET", "/api/chats/1", nil)
	r.Header.Set("Authorization", "Bearer xyz")
	assert.Equal(t, TokenFromRequest(r), "xyz")

	r = httptest.NewRequest("GET", "/api/chats/1", nil)
	assert.Equal(t, TokenFromRequest(r), "")
}

func TestWatchSecretFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	assert.Equal(t, os.WriteFile(path, []byte("first\n"), 0o600), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := NewJWTAuthenticator("")
	assert.Equal(t, WatchSecretFile(ctx, a, path), nil)

	first, _ := a.Mint("user-1", 0)
	_, err := a.Verify(first)
	assert.Equal(t, err, nil)

	assert.Equal(t, os.WriteFile(path, []byte("second\n"), 0o600), nil)

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := a.Verify(first); err != nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	_, err = a.Verify(first)
	assert.NotEqual(t, err, nil)
}
