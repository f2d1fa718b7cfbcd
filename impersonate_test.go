package authkit_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/authkit/go-authkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImpersonationKeepsPrimaryIntact(t *testing.T) {
	store := authkit.NewMemoryStore()
	require.NoError(t, store.SetIdentity("tok_admin", adminUser()))

	manager := authkit.NewImpersonationManager(store)
	target := &authkit.User{ID: "usr_2", Email: "user@example.com", Role: "member"}

	require.NoError(t, manager.Start(context.Background(), target))

	state := manager.State()
	assert.True(t, state.Active)
	require.NotNil(t, state.User)
	assert.Equal(t, "usr_2", state.User.ID)

	token, primary := store.Identity()
	assert.Equal(t, "tok_admin", token)
	require.NotNil(t, primary)
	assert.Equal(t, "usr_admin", primary.ID)

	manager.Stop()
	assert.Nil(t, manager.Current())

	token, primary = store.Identity()
	assert.Equal(t, "tok_admin", token)
	assert.Equal(t, "usr_admin", primary.ID)
}

func TestImpersonationRequiresAdmin(t *testing.T) {
	store := authkit.NewMemoryStore()
	require.NoError(t, store.SetIdentity("tok_member", &authkit.User{ID: "usr_3", Role: "member"}))

	manager := authkit.NewImpersonationManager(store)
	err := manager.Start(context.Background(), &authkit.User{ID: "usr_2"})
	assert.ErrorIs(t, err, authkit.ErrImpersonationDenied)
	assert.Nil(t, manager.Current())
}

func TestImpersonationRequiresPrimary(t *testing.T) {
	manager := authkit.NewImpersonationManager(authkit.NewMemoryStore())
	err := manager.Start(context.Background(), &authkit.User{ID: "usr_2"})
	assert.ErrorIs(t, err, authkit.ErrNoPrimaryCredential)
}

func TestImpersonationNilTarget(t *testing.T) {
	store := authkit.NewMemoryStore()
	require.NoError(t, store.SetIdentity("tok_admin", adminUser()))

	manager := authkit.NewImpersonationManager(store)
	err := manager.Start(context.Background(), nil)
	assert.ErrorIs(t, err, authkit.ErrUserNotFound)
}

func TestImpersonationStopIsIdempotent(t *testing.T) {
	store := authkit.NewMemoryStore()
	require.NoError(t, store.SetIdentity("tok_admin", adminUser()))

	manager := authkit.NewImpersonationManager(store)

	var states []authkit.ImpersonationState
	unsubscribe := manager.OnChange(func(s authkit.ImpersonationState) {
		states = append(states, s)
	})
	defer unsubscribe()

	manager.Stop()
	manager.Stop()
	assert.Empty(t, states)

	require.NoError(t, manager.Start(context.Background(), &authkit.User{ID: "usr_2"}))
	manager.Stop()
	manager.Stop()

	require.Len(t, states, 2)
	assert.True(t, states[0].Active)
	assert.False(t, states[1].Active)
}

func TestImpersonationStartByID(t *testing.T) {
	backend := newStubBackend(t)
	backend.mux.HandleFunc("GET /auth/api/user/all", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "usr_2", "email": "user@example.com", "role": "member"},
		})
	})

	store := authkit.NewMemoryStore()
	require.NoError(t, store.SetIdentity("tok_admin", adminUser()))

	directory := authkit.NewDirectory(newTestConfig(backend.url()), store)
	manager := authkit.NewImpersonationManager(store).WithDirectory(directory)

	require.NoError(t, manager.StartByID(context.Background(), "usr_2"))
	current := manager.Current()
	require.NotNil(t, current)
	assert.Equal(t, "user@example.com", current.Email)

	err := manager.StartByID(context.Background(), "usr_missing")
	assert.True(t, authkit.IsUserNotFound(err))
}
