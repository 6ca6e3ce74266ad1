package services

import (
	"sync"

	"github.com/BradenHooton/warden/internal/models"
)

// Session is the single authentication slot of one client context. Its zero
// value is an empty session. A Session must not be shared between contexts.
type Session struct {
	mu      sync.Mutex
	account *models.AccountSnapshot
}

// NewSession creates an empty Session
func NewSession() *Session {
	return &Session{}
}

// Active reports whether an account is authenticated in this session.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.account != nil
}
