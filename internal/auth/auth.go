// ABOUTME: Bearer authentication for the HTTP API
// ABOUTME: Static bcrypt-hashed API keys plus HS256 session tokens

package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingClaim = errors.New("missing required claim")
	ErrUnknownKey   = errors.New("unknown api key")
)

// dummyHash keeps key comparison constant-time when no key matches, so a
// caller cannot distinguish "wrong key" from "no keys configured".
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

type contextKey struct{}

// Subject returns the authenticated subject from the request context, or ""
// when the request was not authenticated.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(contextKey{}).(string)
	return s
}

func withSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, contextKey{}, subject)
}

// Authenticator validates bearer credentials for the HTTP API. A credential
// is either a configured API key or a session token previously issued for
// one. With no keys configured the authenticator is disabled and every
// request passes through anonymously.
type Authenticator struct {
	keys   map[string]string // subject -> bcrypt hash of the key
	secret []byte
}

// NewAuthenticator builds an authenticator from bcrypt key hashes keyed by
// subject name. The secret signs session tokens and must be non-empty when
// any keys are configured.
func NewAuthenticator(keys map[string]string, secret []byte) (*Authenticator, error) {
	if len(keys) > 0 && len(secret) == 0 {
		return nil, fmt.Errorf("api keys configured without a token secret")
	}
	return &Authenticator{keys: keys, secret: secret}, nil
}

// Enabled reports whether any API keys are configured.
func (a *Authenticator) Enabled() bool {
	return len(a.keys) > 0
}

// CheckKey compares a presented key against every configured hash and
// returns the matching subject. Comparison cost is paid even on a miss.
func (a *Authenticator) CheckKey(key string) (string, error) {
	for subject, hash := range a.keys {
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) == nil {
			return subject, nil
		}
	}
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(key))
	return "", ErrUnknownKey
}

// IssueToken creates an HS256 session token for a subject.
func (a *Authenticator) IssueToken(subject string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(expiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// VerifyToken validates a session token and returns its subject.
func (a *Authenticator) VerifyToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return "", ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidToken
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	return sub, nil
}

// authenticate resolves a bearer credential to a subject, trying session
// tokens first and then raw API keys.
func (a *Authenticator) authenticate(credential string) (string, error) {
	if subject, err := a.VerifyToken(credential); err == nil {
		return subject, nil
	}
	return a.CheckKey(credential)
}

func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimPrefix(authHeader, "Bearer ")
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// Require wraps a handler with bearer authentication. When the
// authenticator is disabled it passes requests through unchanged.
func (a *Authenticator) Require(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		credential, errMsg := extractBearerToken(r.Header.Get("Authorization"))
		if errMsg != "" {
			http.Error(w, `{"error":"`+errMsg+`"}`, http.StatusUnauthorized)
			return
		}
		subject, err := a.authenticate(credential)
		if err != nil {
			http.Error(w, `{"error":"invalid credentials"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(withSubject(r.Context(), subject)))
	})
}
