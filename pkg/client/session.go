// pkg/client/session.go
package client

import "sync"

// Session is the auth context a Client sends with each request. It is owned
// by one Client and cleared when the server answers 401.
type Session struct {
	mu     sync.RWMutex
	token  string
	userID string
	role   string
}

func NewSession(token, userID, role string) *Session {
	return &Session{token: token, userID: userID, role: role}
}

func (s *Session) Set(token, userID, role string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.userID, s.role = token, userID, role
}

func (s *Session) Clear() {
	s.Set("", "", "")
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userID
}

func (s *Session) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

func (s *Session) Authenticated() bool {
	return s.Token() != ""
}
