package authkit

import (
	"sync"
)

// Slot identifies which credential slot changed.
type Slot string

const (
	SlotPrimary       Slot = "primary"
	SlotImpersonation Slot = "impersonation"
)

// Change describes a single store mutation. External is true when the write
// happened outside this store instance (another tab on the shared storage).
type Change struct {
	Slot     Slot
	External bool
}

// TokenStore is the durable holder of the current credential and, optionally,
// an impersonation target. It holds zero or one value per slot, never errors
// for absent states, and has no side effects beyond storage I/O.
//
// Impersonation presence implies primary presence.
type TokenStore interface {
	// Identity returns the primary credential and principal, or "", nil.
	Identity() (token string, user *User)
	SetIdentity(token string, user *User) error
	ClearIdentity()

	Impersonated() *User
	SetImpersonated(user *User) error
	ClearImpersonated()

	// Clear empties both slots.
	Clear()

	// OnChange registers a listener for slot mutations. The returned func
	// removes the listener.
	OnChange(fn func(Change)) (unsubscribe func())
}

// MemoryStore is the tab-scoped TokenStore. Writes are atomic single-value
// replacements, so concurrent logical readers are safe.
type MemoryStore struct {
	mu           sync.Mutex
	token        string
	user         *User
	impersonated *User

	listenerID int
	listeners  map[int]func(Change)
}

var _ TokenStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		listeners: map[int]func(Change){},
	}
}

func (s *MemoryStore) Identity() (string, *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.user.Clone()
}

func (s *MemoryStore) SetIdentity(token string, user *User) error {
	s.mu.Lock()
	s.token = token
	s.user = user.Clone()
	s.mu.Unlock()

	s.notify(Change{Slot: SlotPrimary})
	return nil
}

func (s *MemoryStore) ClearIdentity() {
	s.mu.Lock()
	empty := s.token == "" && s.user == nil
	s.token = ""
	s.user = nil
	// the impersonation slot cannot outlive the primary credential
	hadImpersonation := s.impersonated != nil
	s.impersonated = nil
	s.mu.Unlock()

	if hadImpersonation {
		s.notify(Change{Slot: SlotImpersonation})
	}
	if !empty {
		s.notify(Change{Slot: SlotPrimary})
	}
}

func (s *MemoryStore) Impersonated() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.impersonated.Clone()
}

func (s *MemoryStore) SetImpersonated(user *User) error {
	s.mu.Lock()
	if s.token == "" {
		s.mu.Unlock()
		return ErrNoPrimaryCredential
	}
	s.impersonated = user.Clone()
	s.mu.Unlock()

	s.notify(Change{Slot: SlotImpersonation})
	return nil
}

func (s *MemoryStore) ClearImpersonated() {
	s.mu.Lock()
	had := s.impersonated != nil
	s.impersonated = nil
	s.mu.Unlock()

	if had {
		s.notify(Change{Slot: SlotImpersonation})
	}
}

func (s *MemoryStore) Clear() {
	s.ClearIdentity()
}

func (s *MemoryStore) OnChange(fn func(Change)) func() {
	s.mu.Lock()
	s.listenerID++
	id := s.listenerID
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *MemoryStore) notify(change Change) {
	s.mu.Lock()
	fns := make([]func(Change), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(change)
	}
}
