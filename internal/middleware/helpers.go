// internal/middleware/helpers.go
package middleware

import (
	"github.com/gin-gonic/gin"

	"medconnect-service/internal/domain/subscription"
	"medconnect-service/internal/pkg/session"
)

// SetIdentity stores the authenticated caller on the request.
func SetIdentity(c *gin.Context, id *session.Identity) {
	c.Set(identityKey, id)
}

// GetIdentity gets the authenticated caller from context
func GetIdentity(c *gin.Context) (*session.Identity, bool) {
	v, exists := c.Get(identityKey)
	if !exists {
		return nil, false
	}
	id, ok := v.(*session.Identity)
	return id, ok && id != nil
}

// MustGetIdentity gets the caller from context or panics
func MustGetIdentity(c *gin.Context) *session.Identity {
	id, ok := GetIdentity(c)
	if !ok {
		panic("identity not found in context")
	}
	return id
}

// GetUserID returns the caller's user id, or "" when unauthenticated.
func GetUserID(c *gin.Context) string {
	if id, ok := GetIdentity(c); ok {
		return id.UserID
	}
	return ""
}

// CurrentUser converts the caller into the subscription owner shape.
func CurrentUser(c *gin.Context) subscription.User {
	id := MustGetIdentity(c)
	return subscription.User{ID: id.UserID, Name: id.Name, Email: id.Email}
}
