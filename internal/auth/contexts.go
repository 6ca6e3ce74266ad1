package auth

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/warden/internal/services"
)

// ManagerFactory builds the session manager for a freshly opened client context.
type ManagerFactory func(session *services.Session) *services.AuthSessionManager

// ClientContext is one client's server-side state: exactly one Session and the
// manager bound to it.
type ClientContext struct {
	ID       string
	Session  *services.Session
	Manager  *services.AuthSessionManager
	lastSeen time.Time
}

// ContextRegistry owns the live client contexts. A session never outlives the
// context that holds it.
type ContextRegistry struct {
	mu          sync.Mutex
	contexts    map[string]*ClientContext
	newManager  ManagerFactory
	idleTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time
}

// NewContextRegistry creates a new ContextRegistry
func NewContextRegistry(factory ManagerFactory, idleTimeout time.Duration, logger *slog.Logger) *ContextRegistry {
	return &ContextRegistry{
		contexts:    make(map[string]*ClientContext),
		newManager:  factory,
		idleTimeout: idleTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

// Open creates a client context with an empty session.
func (r *ContextRegistry) Open() *ClientContext {
	session := services.NewSession()
	cc := &ClientContext{
		ID:      NewContextID(),
		Session: session,
		Manager: r.newManager(session),
	}

	r.mu.Lock()
	cc.lastSeen = r.now()
	r.contexts[cc.ID] = cc
	r.mu.Unlock()

	r.logger.Debug("client context opened", slog.String("context_id", cc.ID))
	return cc
}

// Lookup returns the live context for id and marks it as seen.
func (r *ContextRegistry) Lookup(id string) (*ClientContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cc, ok := r.contexts[id]
	if !ok {
		return nil, false
	}
	cc.lastSeen = r.now()
	return cc, true
}

// Close ends the context for id, logging out its session.
func (r *ContextRegistry) Close(id string) bool {
	r.mu.Lock()
	cc, ok := r.contexts[id]
	delete(r.contexts, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	cc.Manager.Logout()
	r.logger.Debug("client context closed", slog.String("context_id", id))
	return true
}

// EvictIdle closes every context not seen within the idle timeout and returns
// how many were closed.
func (r *ContextRegistry) EvictIdle() int {
	cutoff := r.now().Add(-r.idleTimeout)

	r.mu.Lock()
	var expired []*ClientContext
	for id, cc := range r.contexts {
		if cc.lastSeen.Before(cutoff) {
			expired = append(expired, cc)
			delete(r.contexts, id)
		}
	}
	r.mu.Unlock()

	loggedOut := 0
	for _, cc := range expired {
		if cc.Session.Active() {
			loggedOut++
		}
		cc.Manager.Logout()
	}
	if loggedOut > 0 {
		r.logger.Info("idle sessions logged out", slog.Int("count", loggedOut))
	}
	return len(expired)
}

// Len returns the number of live contexts
func (r *ContextRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.contexts)
}
