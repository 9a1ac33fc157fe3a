package admin

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type memSessions struct {
	mu      sync.Mutex
	expires map[string]time.Time
	failOn  string
}

func newMemSessions() *memSessions {
	return &memSessions{expires: map[string]time.Time{}}
}

func (m *memSessions) CreateSession(_ context.Context, id string, expiresAt time.Time) error {
	if m.failOn == "create" {
		return errors.New("db down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expires[id] = expiresAt
	return nil
}

func (m *memSessions) SessionActive(_ context.Context, id string, now time.Time) (bool, error) {
	if m.failOn == "active" {
		return false, errors.New("db down")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.expires[id]
	return ok && exp.After(now), nil
}

func (m *memSessions) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.expires, id)
	return nil
}

func (m *memSessions) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.expires)
}

func newTestGateway(t *testing.T, sessions SessionStore) (*Gateway, *time.Time) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	g, err := NewGateway(Options{PasswordHash: string(hash), Secret: "test-secret", TTL: time.Hour}, sessions)
	require.NoError(t, err)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	g.now = func() time.Time { return now }
	return g, &now
}

func TestLoginAndVerify(t *testing.T) {
	sessions := newMemSessions()
	g, _ := newTestGateway(t, sessions)
	ctx := context.Background()

	tok, err := g.Login(ctx, "hunter2")
	require.NoError(t, err)
	assert.NotEmpty(t, tok.Value)
	assert.Equal(t, time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC), tok.ExpiresAt)
	assert.Equal(t, 1, sessions.count())

	sess, err := g.Verify(ctx, tok.Value)
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.True(t, sess.ExpiresAt.Equal(tok.ExpiresAt))
}

func TestLoginWrongPassword(t *testing.T) {
	sessions := newMemSessions()
	g, _ := newTestGateway(t, sessions)

	_, err := g.Login(context.Background(), "wrong")
	assert.ErrorIs(t, err, ErrInvalidPassword)
	assert.Zero(t, sessions.count())
}

func TestLoginNotConfigured(t *testing.T) {
	g, err := NewGateway(Options{Secret: "s"}, newMemSessions())
	require.NoError(t, err)
	assert.False(t, g.Configured())

	_, err = g.Login(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	g, err = NewGateway(Options{Password: "pw"}, newMemSessions())
	require.NoError(t, err)
	_, err = g.Login(context.Background(), "pw")
	assert.ErrorIs(t, err, ErrNotConfigured, "no signing secret")
}

func TestNewGatewayFromPlainPassword(t *testing.T) {
	g, err := NewGateway(Options{Password: "s3cret", Secret: "k"}, newMemSessions())
	require.NoError(t, err)

	_, err = g.Login(context.Background(), "s3cret")
	assert.NoError(t, err)
	assert.Equal(t, defaultTTL, g.ttl)
}

func TestNewGatewayRejectsMalformedHash(t *testing.T) {
	_, err := NewGateway(Options{PasswordHash: "not-bcrypt", Secret: "k"}, newMemSessions())
	assert.Error(t, err)
}

func TestLoginSessionStoreFailure(t *testing.T) {
	sessions := newMemSessions()
	sessions.failOn = "create"
	g, _ := newTestGateway(t, sessions)

	_, err := g.Login(context.Background(), "hunter2")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidPassword)
}

func TestVerifyExpiredTokenDeletesSession(t *testing.T) {
	sessions := newMemSessions()
	g, now := newTestGateway(t, sessions)
	ctx := context.Background()

	tok, err := g.Login(ctx, "hunter2")
	require.NoError(t, err)
	require.Equal(t, 1, sessions.count())

	*now = now.Add(2 * time.Hour)
	_, err = g.Verify(ctx, tok.Value)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, sessions.count())
}

func TestVerifyRejects(t *testing.T) {
	sessions := newMemSessions()
	g, _ := newTestGateway(t, sessions)
	ctx := context.Background()

	tok, err := g.Login(ctx, "hunter2")
	require.NoError(t, err)

	other, _ := newTestGateway(t, newMemSessions())
	other.secret = []byte("different-secret")
	forged, err := other.Login(ctx, "hunter2")
	require.NoError(t, err)

	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		ID: "x", Issuer: issuer, Subject: subject,
		ExpiresAt: jwt.NewNumericDate(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.token"},
		{"wrong secret", forged.Value},
		{"alg none", noneAlg},
		{"tampered", tok.Value + "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Verify(ctx, tt.token)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestVerifyRevokedSession(t *testing.T) {
	sessions := newMemSessions()
	g, _ := newTestGateway(t, sessions)
	ctx := context.Background()

	tok, err := g.Login(ctx, "hunter2")
	require.NoError(t, err)

	require.NoError(t, g.Logout(ctx, tok.Value))
	assert.Zero(t, sessions.count())

	_, err = g.Verify(ctx, tok.Value)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NoError(t, g.Logout(ctx, tok.Value), "logout of a dead token is a no-op")
}

func TestVerifySessionStoreFailure(t *testing.T) {
	sessions := newMemSessions()
	g, _ := newTestGateway(t, sessions)
	ctx := context.Background()

	tok, err := g.Login(ctx, "hunter2")
	require.NoError(t, err)

	sessions.failOn = "active"
	_, err = g.Verify(ctx, tok.Value)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnauthorized)
}
