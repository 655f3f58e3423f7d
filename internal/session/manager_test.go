package session

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoldLion123RP/resume-builder-sub001/internal/persistence/local"
)

var secret = []byte("test-secret")

func TestIssueAndParseToken(t *testing.T) {
	issued, err := IssueToken(secret, "user-1", "Avery", time.Hour)
	require.NoError(t, err)

	claims, err := ParseToken(secret, issued, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
	assert.Equal(t, "Avery", claims.Name)
	assert.NotEmpty(t, claims.ID)
}

func TestParseTokenRejects(t *testing.T) {
	valid, err := IssueToken(secret, "user-1", "Avery", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(secret, "user-1", "Avery", -time.Minute)
	require.NoError(t, err)
	noSubject, err := IssueToken(secret, "", "Avery", time.Hour)
	require.NoError(t, err)
	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-1"}).SignedString(secret)
	require.NoError(t, err)
	wrongAlg, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject: "user-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(secret)
	require.NoError(t, err)

	tests := []struct {
		name   string
		secret []byte
		token  string
		want   error
	}{
		{"wrong secret", []byte("other"), valid, ErrInvalidToken},
		{"expired", secret, expired, ErrExpiredToken},
		{"missing subject", secret, noSubject, ErrInvalidToken},
		{"missing expiry", secret, noExpiry, ErrInvalidToken},
		{"wrong algorithm", secret, wrongAlg, ErrInvalidToken},
		{"garbage", secret, "not-a-token", ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseToken(tt.secret, tt.token, time.Now())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestManagerSignInOut(t *testing.T) {
	ctx := context.Background()
	m := NewManager(secret, nil, nil)

	_, ok := m.Subject()
	assert.False(t, ok, "new manager is signed out")

	token, err := IssueToken(secret, "user-1", "Avery", time.Hour)
	require.NoError(t, err)
	_, err = m.SignIn(ctx, token)
	require.NoError(t, err)

	subject, ok := m.Subject()
	assert.True(t, ok)
	assert.Equal(t, "user-1", subject)

	require.NoError(t, m.SignOut(ctx))
	_, ok = m.Subject()
	assert.False(t, ok)
}

func TestManagerSignInRejectsBadToken(t *testing.T) {
	m := NewManager(secret, nil, nil)
	_, err := m.SignIn(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, ok := m.Current()
	assert.False(t, ok)
}

func TestManagerWithoutSecret(t *testing.T) {
	token, err := IssueToken(secret, "user-1", "Avery", time.Hour)
	require.NoError(t, err)

	m := NewManager(nil, nil, nil)
	_, err = m.SignIn(context.Background(), token)
	assert.ErrorIs(t, err, ErrNoSecret)
}

func TestManagerExpiresInPlace(t *testing.T) {
	now := time.Now()
	m := NewManager(secret, nil, func() time.Time { return now })

	token, err := IssueToken(secret, "user-1", "Avery", time.Minute)
	require.NoError(t, err)
	_, err = m.SignIn(context.Background(), token)
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, ok := m.Subject()
	assert.False(t, ok, "expired sessions are treated as signed out")
}

func TestManagerRestoreFromLocalStore(t *testing.T) {
	ctx := context.Background()
	backend := local.NewMemoryStore()

	token, err := IssueToken(secret, "user-1", "Avery", time.Hour)
	require.NoError(t, err)
	first := NewManager(secret, NewLocalStore(backend), nil)
	_, err = first.SignIn(ctx, token)
	require.NoError(t, err)

	second := NewManager(secret, NewLocalStore(backend), nil)
	require.NoError(t, second.Restore(ctx))
	subject, ok := second.Subject()
	assert.True(t, ok)
	assert.Equal(t, "user-1", subject)

	require.NoError(t, second.SignOut(ctx))
	third := NewManager(secret, NewLocalStore(backend), nil)
	require.NoError(t, third.Restore(ctx))
	_, ok = third.Subject()
	assert.False(t, ok)
}

func TestManagerRestoreDiscardsStaleToken(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(local.NewMemoryStore())

	token, err := IssueToken([]byte("rotated"), "user-1", "Avery", time.Hour)
	require.NoError(t, err)
	require.NoError(t, store.SaveToken(ctx, token, time.Now().Add(time.Hour)))

	m := NewManager(secret, store, nil)
	require.NoError(t, m.Restore(ctx))
	_, ok := m.Subject()
	assert.False(t, ok)

	_, err = store.LoadToken(ctx)
	assert.ErrorIs(t, err, ErrNoToken)
}

func TestManagerRestoreEmpty(t *testing.T) {
	m := NewManager(secret, NewLocalStore(local.NewMemoryStore()), nil)
	require.NoError(t, m.Restore(context.Background()))
	_, ok := m.Subject()
	assert.False(t, ok)
}
