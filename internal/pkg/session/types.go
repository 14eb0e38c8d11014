// internal/pkg/session/types.go
package session

import (
	"slices"
	"time"
)

// Identity is the authenticated caller of one request.
type Identity struct {
	UserID    string    `json:"userId"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	Roles     []string  `json:"roles"`
	JTI       string    `json:"jti"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (i *Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}
