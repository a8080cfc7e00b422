package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/golang/glog"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Authenticator turns a bearer token into a stable subject id.
type Authenticator interface {
	Verify(token string) (string, error)
}

// JWTAuthenticator verifies HMAC signed tokens. The subject is read from the
// "userId" claim, falling back to the registered "sub" claim.
type JWTAuthenticator struct {
	mu     sync.RWMutex
	secret []byte
	parser *gojwt.Parser
}

func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{
		secret: []byte(secret),
		parser: gojwt.NewParser(gojwt.WithValidMethods([]string{"HS256", "HS384", "HS512"})),
	}
}

// SetSecret replaces the signing key. Tokens signed with the old key stop
// verifying immediately.
func (a *JWTAuthenticator) SetSecret(secret string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.secret = []byte(secret)
}

func (a *JWTAuthenticator) key(*gojwt.Token) (any, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.secret) == 0 {
		return nil, errors.New("no signing key")
	}
	return a.secret, nil
}

func (a *JWTAuthenticator) Verify(token string) (string, error) {
	if token == "" {
		return "", ErrUnauthenticated
	}
	parsed, err := a.parser.Parse(token, a.key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	claims, ok := parsed.Claims.(gojwt.MapClaims)
	if !ok {
		return "", ErrUnauthenticated
	}
	return subjectOf(claims)
}

func subjectOf(claims gojwt.MapClaims) (string, error) {
	if userID, ok := claims["userId"].(string); ok && userID != "" {
		return userID, nil
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub, nil
	}
	return "", fmt.Errorf("%w: token has no subject", ErrUnauthenticated)
}

// UnverifiedSubject reads the subject of a token without checking its
// signature. Clients use it to stamp their own ops; the server never does.
func UnverifiedSubject(token string) (string, error) {
	claims := gojwt.MapClaims{}
	if _, _, err := gojwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return subjectOf(claims)
}

// Mint signs a token for subject. ttl of zero means no expiry.
func (a *JWTAuthenticator) Mint(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := gojwt.MapClaims{
		"userId": subject,
		"sub":    subject,
		"iat":    now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	a.mu.RLock()
	secret := a.secret
	a.mu.RUnlock()
	signed, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	glog.V(1).Infof("[auth] minted token for %s", subject)
	return signed, nil
}

// TokenFromRequest reads the token from the "token" query parameter or an
// "Authorization: Bearer" header.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
