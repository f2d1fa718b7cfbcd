package authkit

import (
	"context"
)

// ImpersonationManager lets an administrator act as another principal
// without discarding their own session. It is the only writer of the
// impersonation slot; the primary credential is never touched.
type ImpersonationManager struct {
	store     TokenStore
	directory *Directory
	logger    Logger
}

func NewImpersonationManager(store TokenStore) *ImpersonationManager {
	return &ImpersonationManager{
		store:  store,
		logger: defLogger{},
	}
}

func (m *ImpersonationManager) WithLogger(logger Logger) *ImpersonationManager {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// WithDirectory enables target resolution by user id.
func (m *ImpersonationManager) WithDirectory(directory *Directory) *ImpersonationManager {
	m.directory = directory
	return m
}

// Start enters "act as user" mode for the given target. The primary
// principal must be an administrator.
func (m *ImpersonationManager) Start(ctx context.Context, target *User) error {
	if target == nil {
		return ErrUserNotFound
	}

	_, primary := m.store.Identity()
	if primary == nil {
		return ErrNoPrimaryCredential
	}
	if !primary.IsAdmin() {
		m.logger.Warn("Impersonation denied", "actor", primary.ID, "target", target.ID)
		return ErrImpersonationDenied
	}

	if err := m.store.SetImpersonated(target); err != nil {
		return err
	}

	m.logger.Info("Impersonation started", "actor", primary.ID, "target", target.ID)
	return nil
}

// StartByID resolves the target through the user directory, then starts
// impersonation.
func (m *ImpersonationManager) StartByID(ctx context.Context, userID string) error {
	if m.directory == nil {
		return ErrUserNotFound
	}

	profile, err := m.directory.Find(ctx, userID)
	if err != nil {
		return err
	}

	return m.Start(ctx, profile.Principal())
}

// Current returns the impersonated principal, or nil.
func (m *ImpersonationManager) Current() *User {
	return m.store.Impersonated()
}

// State returns the impersonation state as one value.
func (m *ImpersonationManager) State() ImpersonationState {
	user := m.store.Impersonated()
	return ImpersonationState{Active: user != nil, User: user}
}

// Stop leaves "act as user" mode. It is idempotent: stopping with no active
// impersonation is a no-op, not an error.
func (m *ImpersonationManager) Stop() {
	if m.store.Impersonated() == nil {
		return
	}
	m.store.ClearImpersonated()
	m.logger.Info("Impersonation stopped")
}

// OnChange observes impersonation mutations, including those made by other
// tabs through the shared store. The returned func removes the listener.
func (m *ImpersonationManager) OnChange(fn func(ImpersonationState)) (unsubscribe func()) {
	return m.store.OnChange(func(change Change) {
		if change.Slot != SlotImpersonation {
			return
		}
		fn(m.State())
	})
}
