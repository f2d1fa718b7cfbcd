package authkit

import (
	"context"
)

var userCtxKey = &contextKey{"user"}
var impersonationCtxKey = &contextKey{"impersonation"}

type contextKey struct {
	name string
}

// WithUser sets the resolved principal in the given context
func WithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userCtxKey, user)
}

// UserFromContext finds the principal the route guard resolved.
func UserFromContext(ctx context.Context) (*User, bool) {
	raw, ok := ctx.Value(userCtxKey).(*User)
	return raw, ok
}

// WithImpersonation sets the impersonation state in the given context
func WithImpersonation(ctx context.Context, state ImpersonationState) context.Context {
	return context.WithValue(ctx, impersonationCtxKey, state)
}

// ImpersonationFromContext finds the impersonation state, if any.
func ImpersonationFromContext(ctx context.Context) (ImpersonationState, bool) {
	raw, ok := ctx.Value(impersonationCtxKey).(ImpersonationState)
	return raw, ok
}

// EffectiveUser returns the principal requests should be evaluated as: the
// impersonation target when active, otherwise the primary principal.
func EffectiveUser(ctx context.Context) (*User, bool) {
	if state, ok := ImpersonationFromContext(ctx); ok && state.Active {
		return state.User, true
	}
	return UserFromContext(ctx)
}
