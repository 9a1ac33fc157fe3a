// Package admin exchanges the operator password for a signed bearer token and
// verifies those tokens on the admin API.
package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrNotConfigured means no admin password or signing secret is set.
	ErrNotConfigured = errors.New("admin access not configured")
	// ErrInvalidPassword is returned by Login for a wrong password.
	ErrInvalidPassword = errors.New("invalid password")
	// ErrUnauthorized is returned by Verify for a missing, forged, expired or
	// revoked token.
	ErrUnauthorized = errors.New("unauthorized")
)

const (
	issuer     = "leakdiag"
	subject    = "admin"
	defaultTTL = 24 * time.Hour
)

// SessionStore persists issued token ids.
type SessionStore interface {
	CreateSession(ctx context.Context, id string, expiresAt time.Time) error
	SessionActive(ctx context.Context, id string, now time.Time) (bool, error)
	DeleteSession(ctx context.Context, id string) error
}

// Options configures a Gateway. PasswordHash (bcrypt) wins over Password.
type Options struct {
	Password     string
	PasswordHash string
	Secret       string
	TTL          time.Duration
}

// Token is an issued bearer token.
type Token struct {
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Session is a verified token.
type Session struct {
	ID        string
	ExpiresAt time.Time
}

// Gateway issues and verifies admin tokens.
type Gateway struct {
	hash     []byte
	secret   []byte
	ttl      time.Duration
	sessions SessionStore
	now      func() time.Time
}

// NewGateway prepares the password hash. A gateway built without a password
// is valid but every Login fails with ErrNotConfigured.
func NewGateway(opts Options, sessions SessionStore) (*Gateway, error) {
	g := &Gateway{
		secret:   []byte(opts.Secret),
		ttl:      opts.TTL,
		sessions: sessions,
		now:      time.Now,
	}
	if g.ttl <= 0 {
		g.ttl = defaultTTL
	}

	switch {
	case opts.PasswordHash != "":
		if _, err := bcrypt.Cost([]byte(opts.PasswordHash)); err != nil {
			return nil, fmt.Errorf("admin password hash: %w", err)
		}
		g.hash = []byte(opts.PasswordHash)
	case opts.Password != "":
		hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		g.hash = hash
	}
	return g, nil
}

// Configured reports whether Login can ever succeed.
func (g *Gateway) Configured() bool {
	return len(g.hash) > 0 && len(g.secret) > 0
}

// Login checks password and, on success, records and returns a new token.
func (g *Gateway) Login(ctx context.Context, password string) (Token, error) {
	if !g.Configured() {
		return Token{}, ErrNotConfigured
	}
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(password)); err != nil {
		return Token{}, ErrInvalidPassword
	}

	now := g.now()
	expires := now.Add(g.ttl)
	id := uuid.NewString()
	claims := jwt.RegisteredClaims{
		ID:        id,
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return Token{}, fmt.Errorf("sign token: %w", err)
	}

	if err := g.sessions.CreateSession(ctx, id, expires); err != nil {
		return Token{}, err
	}
	return Token{Value: signed, ExpiresAt: expires.UTC()}, nil
}

// Verify validates the signature and expiry of token and checks that its
// session is still live. The session of an expired token is deleted.
func (g *Gateway) Verify(ctx context.Context, token string) (Session, error) {
	if token == "" || len(g.secret) == 0 {
		return Session{}, ErrUnauthorized
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return g.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithSubject(subject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(g.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) && claims.ID != "" {
			if derr := g.sessions.DeleteSession(ctx, claims.ID); derr != nil {
				return Session{}, derr
			}
		}
		return Session{}, ErrUnauthorized
	}

	active, err := g.sessions.SessionActive(ctx, claims.ID, g.now())
	if err != nil {
		return Session{}, err
	}
	if !active {
		return Session{}, ErrUnauthorized
	}
	return Session{ID: claims.ID, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// Logout revokes the session behind token. Invalid tokens are ignored.
func (g *Gateway) Logout(ctx context.Context, token string) error {
	sess, err := g.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil
		}
		return err
	}
	return g.sessions.DeleteSession(ctx, sess.ID)
}
