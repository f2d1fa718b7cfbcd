package authkit

import (
	"sync"
)

// EventKind identifies what part of the session state changed.
type EventKind string

const (
	EventPrimaryChanged       EventKind = "primary_changed"
	EventImpersonationChanged EventKind = "impersonation_changed"
)

// Event is delivered to SessionContext subscribers on every session state
// mutation, local or external.
type Event struct {
	Kind     EventKind
	External bool
	User     *User
	State    ImpersonationState
}

// SessionContext is the explicit, injectable object owning the token store
// and the impersonation manager. Components that used to rely on global
// storage and ad hoc change events subscribe here instead; cross-tab sync is
// the store's change feed surfaced through the same interface.
type SessionContext struct {
	store         TokenStore
	impersonation *ImpersonationManager
	logger        Logger

	mu         sync.Mutex
	nextID     int
	subs       map[int]func(Event)
	unsubStore func()
	closed     bool
}

func NewSessionContext(store TokenStore) *SessionContext {
	s := &SessionContext{
		store:         store,
		impersonation: NewImpersonationManager(store),
		logger:        defLogger{},
		subs:          map[int]func(Event){},
	}

	s.unsubStore = store.OnChange(func(change Change) {
		s.fanOut(change)
	})

	return s
}

func (s *SessionContext) WithLogger(logger Logger) *SessionContext {
	if logger != nil {
		s.logger = logger
		s.impersonation.WithLogger(logger)
	}
	return s
}

func (s *SessionContext) Store() TokenStore {
	return s.store
}

func (s *SessionContext) Impersonation() *ImpersonationManager {
	return s.impersonation
}

// Subscribe registers a listener for session state events. The returned
// func removes it. Listeners run synchronously on the mutating goroutine; a
// panicking listener is logged and does not break the fan-out.
func (s *SessionContext) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// Close detaches the context from the store's change feed. Subscribers
// receive no further events.
func (s *SessionContext) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	unsub := s.unsubStore
	s.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}

func (s *SessionContext) fanOut(change Change) {
	event := Event{External: change.External}
	switch change.Slot {
	case SlotImpersonation:
		event.Kind = EventImpersonationChanged
		event.State = s.impersonation.State()
	default:
		event.Kind = EventPrimaryChanged
		_, event.User = s.store.Identity()
		event.State = s.impersonation.State()
	}

	s.mu.Lock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		s.deliver(fn, event)
	}
}

func (s *SessionContext) deliver(fn func(Event), event Event) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Session event listener panicked", "kind", string(event.Kind), "panic", r)
		}
	}()
	fn(event)
}
