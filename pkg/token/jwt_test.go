package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTManager_TokenTypes(t *testing.T) {
	m := NewJWTManager("test-secret", 1, 7)

	access, err := m.GenerateToken(42, "ada", "USER")
	require.NoError(t, err)
	refresh, err := m.GenerateRefreshToken(42, "ada", "USER")
	require.NoError(t, err)

	claims, err := m.VerifyToken(access)
	require.NoError(t, err)
	assert.Equal(t, uint(42), claims.UserID)
	assert.Equal(t, "ada", claims.Username)
	assert.NotEmpty(t, claims.ID)

	_, err = m.VerifyToken(refresh)
	assert.ErrorIs(t, err, ErrWrongTokenType)

	claims, err = m.VerifyRefreshToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, TypeRefresh, claims.TokenType)
}

func TestJWTManager_RejectsForeignSecret(t *testing.T) {
	issued, err := NewJWTManager("one", 1, 1).GenerateToken(1, "u", "USER")
	require.NoError(t, err)

	_, err = NewJWTManager("two", 1, 1).VerifyToken(issued)
	assert.Error(t, err)
}
