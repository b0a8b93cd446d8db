package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	m := NewManager(TokenConfig{Secret: []byte("test-secret")})

	token, err := m.GenerateToken("player-1", "Asha", "https://cdn.example/a.png")
	require.NoError(t, err)

	claims, err := m.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "player-1", claims.PlayerID)
	assert.Equal(t, "Asha", claims.DisplayName)
	assert.Equal(t, "https://cdn.example/a.png", claims.AvatarURL)
}

func TestTokenWrongSecretRejected(t *testing.T) {
	m := NewManager(TokenConfig{Secret: []byte("test-secret")})
	other := NewManager(TokenConfig{Secret: []byte("different")})

	token, err := m.GenerateToken("player-1", "Asha", "")
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpiryRejected(t *testing.T) {
	m := NewManager(TokenConfig{Secret: []byte("test-secret"), TTL: -time.Minute})

	token, err := m.GenerateToken("player-1", "Asha", "")
	require.NoError(t, err)

	_, err = m.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenGarbageRejected(t *testing.T) {
	m := NewManager(TokenConfig{Secret: []byte("test-secret")})
	_, err := m.ValidateToken("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
