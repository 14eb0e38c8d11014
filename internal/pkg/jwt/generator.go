// internal/pkg/jwt/generator.go
package jwt

import (
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

const (
	PurposeAccess  = "access"
	PurposeRefresh = "refresh"
)

type Generator struct {
	priv     *rsa.PrivateKey
	issuer   string
	audience string
	kid      string // key id for rotation
	Ttl      time.Duration
}

func NewGenerator(priv *rsa.PrivateKey, issuer, audience, kid string, ttl time.Duration) *Generator {
	return &Generator{
		priv:     priv,
		issuer:   issuer,
		audience: audience,
		kid:      kid,
		Ttl:      ttl,
	}
}

// Identity is who a token is minted for.
type Identity struct {
	UserID string
	Email  string
	Name   string
	Roles  []string
}

// Generate signs a token and returns it with its jti.
func (g *Generator) Generate(id Identity, purpose string, ttl time.Duration) (string, string, error) {
	if g.priv == nil {
		return "", "", fmt.Errorf("jwt generator has nil private key")
	}
	if id.UserID == "" {
		return "", "", fmt.Errorf("jwt generator: empty user id")
	}

	now := time.Now()
	jti := ulid.Make().String()

	claims := &Claims{
		UserID:  id.UserID,
		Email:   id.Email,
		Name:    id.Name,
		Roles:   id.Roles,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    g.issuer,
			Subject:   id.UserID,
			Audience:  []string{g.audience},
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ID:        jti,
		},
	}

	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if g.kid != "" {
		tok.Header["kid"] = g.kid
	}

	signed, err := tok.SignedString(g.priv)
	return signed, jti, err
}

// GenerateAccessToken generates a standard access token
func (g *Generator) GenerateAccessToken(id Identity) (string, string, error) {
	return g.Generate(id, PurposeAccess, g.Ttl)
}

// GenerateRefreshToken generates a refresh token (longer TTL)
func (g *Generator) GenerateRefreshToken(id Identity) (string, string, error) {
	return g.Generate(Identity{UserID: id.UserID}, PurposeRefresh, 60*24*time.Hour)
}
