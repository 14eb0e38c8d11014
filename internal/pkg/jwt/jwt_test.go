package jwt_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medconnect-service/internal/pkg/jwt"
)

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestGenerateAndVerify(t *testing.T) {
	t.Parallel()

	key := newKey(t)
	gen := jwt.NewGenerator(key, "medconnect", "medconnect-users", "k1", time.Hour)
	ver := jwt.NewVerifier(&key.PublicKey, "medconnect", "medconnect-users")

	id := jwt.Identity{UserID: "u1", Email: "u1@example.com", Name: "Amina", Roles: []string{jwt.RolePatient}}

	t.Run("access token round trip", func(t *testing.T) {
		t.Parallel()

		token, jti, err := gen.Generate(id, jwt.PurposeAccess, time.Hour)
		require.NoError(t, err)
		require.NotEmpty(t, jti)

		claims, err := ver.VerifyAccessToken(token)
		require.NoError(t, err)
		assert.Equal(t, "u1", claims.UserID)
		assert.Equal(t, jti, claims.ID)
		assert.True(t, claims.HasRole(jwt.RolePatient))
		assert.False(t, claims.IsAdmin())
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		t.Parallel()

		token, _, err := gen.Generate(id, jwt.PurposeRefresh, time.Hour)
		require.NoError(t, err)

		_, err = ver.Verify(token)
		require.NoError(t, err)
		_, err = ver.VerifyAccessToken(token)
		assert.ErrorIs(t, err, jwt.ErrNotAccessToken)
	})

	t.Run("expired", func(t *testing.T) {
		t.Parallel()

		token, _, err := gen.Generate(id, jwt.PurposeAccess, -time.Hour)
		require.NoError(t, err)

		_, err = ver.VerifyAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("wrong audience", func(t *testing.T) {
		t.Parallel()

		token, _, err := gen.Generate(id, jwt.PurposeAccess, time.Hour)
		require.NoError(t, err)

		other := jwt.NewVerifier(&key.PublicKey, "medconnect", "someone-else")
		_, err = other.VerifyAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("foreign key", func(t *testing.T) {
		t.Parallel()

		token, _, err := gen.Generate(id, jwt.PurposeAccess, time.Hour)
		require.NoError(t, err)

		other := jwt.NewVerifier(&newKey(t).PublicKey, "medconnect", "medconnect-users")
		_, err = other.VerifyAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("empty user id", func(t *testing.T) {
		t.Parallel()

		_, _, err := gen.Generate(jwt.Identity{}, jwt.PurposeAccess, time.Hour)
		assert.Error(t, err)
	})
}
