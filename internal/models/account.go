package models

import (
	"time"
)

// DefaultAccountKind is the kind assigned to accounts created without one.
const DefaultAccountKind = "user"

type Account struct {
	ID              string
	Kind            string // e.g. "user", "service"
	LoginIdentifier string
	Name            string
	PasswordHash    string // never exposed outside the store and verifier
	FailedLogins    int
	LastLogin       *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsPersisted reports whether the account has been assigned an identifier by a store.
func (a *Account) IsPersisted() bool {
	return a != nil && a.ID != ""
}

// Clone returns a deep copy so callers can't alias store-owned values.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.LastLogin != nil {
		t := *a.LastLogin
		c.LastLogin = &t
	}
	return &c
}

// Snapshot takes a detached copy of the display fields. The password hash and the
// failed-login counter are deliberately left out.
func (a *Account) Snapshot() *AccountSnapshot {
	s := &AccountSnapshot{
		ID:              a.ID,
		Kind:            a.Kind,
		LoginIdentifier: a.LoginIdentifier,
		Name:            a.Name,
		TakenAt:         time.Now(),
	}
	if a.LastLogin != nil {
		t := *a.LastLogin
		s.LastLogin = &t
	}
	return s
}

// AccountSnapshot is what a Session holds for the authenticated account.
type AccountSnapshot struct {
	ID              string
	Kind            string
	LoginIdentifier string
	Name            string
	LastLogin       *time.Time
	TakenAt         time.Time
}

// Clone returns a copy of the snapshot
func (s *AccountSnapshot) Clone() *AccountSnapshot {
	if s == nil {
		return nil
	}
	c := *s
	if s.LastLogin != nil {
		t := *s.LastLogin
		c.LastLogin = &t
	}
	return &c
}
