package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/arnavshah/workforce-api/pkg/models"
)

func TestTokens_RoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	tok, err := tokens.CreateToken(&models.User{ID: "u1", Username: "alice"})
	require.NoError(t, err)

	claims, err := tokens.VerifyToken(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, "alice", claims.Username)
}

func TestTokens_ExpiredIsSessionExpired(t *testing.T) {
	tokens := NewTokens("secret", time.Minute)
	tokens.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, err := tokens.CreateToken(&models.User{ID: "u1", Username: "alice"})
	require.NoError(t, err)

	_, err = tokens.VerifyToken(tok)
	assert.ErrorIs(t, err, models.ErrSessionExpired)
}

func TestTokens_RejectsForeignSignature(t *testing.T) {
	other := NewTokens("other-secret", time.Hour)
	tok, err := other.CreateToken(&models.User{ID: "u1", Username: "alice"})
	require.NoError(t, err)

	_, err = NewTokens("secret", time.Hour).VerifyToken(tok)
	assert.ErrorIs(t, err, models.ErrSessionExpired)
}

func TestTokens_RejectsNoneAlgorithm(t *testing.T) {
	claims := &Claims{Username: "alice", RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewTokens("secret", time.Hour).VerifyToken(tok)
	assert.ErrorIs(t, err, models.ErrSessionExpired)
}

type memUsers struct {
	users map[string]*models.User
}

func (m *memUsers) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	if u, ok := m.users[username]; ok {
		return u, nil
	}
	return nil, models.NotFound("user", username)
}

func (m *memUsers) CountUsers(context.Context) (int64, error) { return int64(len(m.users)), nil }

func (m *memUsers) CreateUser(_ context.Context, u *models.User) error {
	m.users[u.Username] = u
	return nil
}

func TestEnsureAdminExists(t *testing.T) {
	users := &memUsers{users: map[string]*models.User{}}
	h := Hasher{Cost: bcrypt.MinCost}

	require.NoError(t, EnsureAdminExists(context.Background(), users, h, "admin", "admin123", zerolog.Nop()))
	require.Len(t, users.users, 1)
	admin := users.users["admin"]
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.True(t, CheckPasswordHash("admin123", admin.PasswordHash))

	// second call is a no-op
	require.NoError(t, EnsureAdminExists(context.Background(), users, h, "root", "x", zerolog.Nop()))
	assert.Len(t, users.users, 1)
}

func TestAuthenticate(t *testing.T) {
	h := Hasher{Cost: bcrypt.MinCost}
	hash, err := h.HashPassword("password123")
	require.NoError(t, err)
	users := &memUsers{users: map[string]*models.User{
		"alice":  {ID: "u1", Username: "alice", PasswordHash: hash, IsActive: true},
		"former": {ID: "u2", Username: "former", PasswordHash: hash, IsActive: false},
	}}

	u, err := Authenticate(context.Background(), users, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	for _, tc := range []struct{ user, pass string }{
		{"alice", "wrong"},
		{"nobody", "password123"},
		{"former", "password123"},
	} {
		_, err := Authenticate(context.Background(), users, tc.user, tc.pass)
		assert.True(t, errors.Is(err, ErrInvalidCredentials), "%s/%s", tc.user, tc.pass)
	}
}
