// Package authkit is the client-side session and identity coordination layer
// for consoles built on an authkit authentication backend.
//
// Token storage:
//   - TokenStore owns the primary credential and the impersonation slot. The
//     in-memory store is scoped to one running context ("tab"); FileStore
//     persists to disk and watches the file so a logout performed elsewhere is
//     observed as an external change.
//
// Login flows:
//   - Client drives credential login, popup-based OAuth login, logout and the
//     "who am I" checks used for route gating. It is the only writer of the
//     primary identity slot.
//   - PopupCoordinator models one external-login handshake as a small state
//     machine (Idle, PopupOpen, Completed, Cancelled, TimedOut) with a single
//     resolution, a liveness probe and a bounded wait.
//
// Coordination:
//   - ImpersonationManager lets an administrator act as another principal
//     without discarding their own session.
//   - SessionContext aggregates the store and the impersonation manager behind
//     one subscribe/notify surface, replacing ad hoc global state.
//   - RouteGuard fronts protected routes, failing closed and preserving the
//     originally requested location across the login round trip.
//   - SessionRegistry lists, filters and revokes the backend's session records
//     for any user.
package authkit
