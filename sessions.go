package authkit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

// SessionRegistry fetches, filters and revokes the server-side session
// records issued to any user. The fetched list is a local view only; callers
// must re-fetch to observe revocations made elsewhere.
type SessionRegistry struct {
	cfg    Config
	store  TokenStore
	http   *http.Client
	logger Logger
	base   string

	mu          sync.Mutex
	lastFetched []Session
}

func NewSessionRegistry(cfg Config, store TokenStore) *SessionRegistry {
	return &SessionRegistry{
		cfg:    cfg,
		store:  store,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: defLogger{},
		base:   normalizeBaseURL(cfg.GetBaseURL()),
	}
}

func (r *SessionRegistry) WithLogger(logger Logger) *SessionRegistry {
	if logger != nil {
		r.logger = logger
	}
	return r
}

func (r *SessionRegistry) WithHTTPClient(client *http.Client) *SessionRegistry {
	if client != nil {
		r.http = client
	}
	return r
}

// List fetches every session record from the registry backend.
func (r *SessionRegistry) List(ctx context.Context) ([]Session, error) {
	var sessions []Session
	status, err := doJSON(ctx, r.http, http.MethodGet, r.base+"/api/session", r.token(), nil, nil, &sessions)
	if err != nil {
		return nil, err
	}
	if isAuthStatus(status) {
		return nil, ErrUnauthorized
	}
	if !statusOK(status) {
		return nil, errors.New("session list failed", errors.CategoryOperation).
			WithTextCode(TextCodeNetworkFailure).
			WithMetadata(map[string]any{"status": status})
	}

	r.mu.Lock()
	r.lastFetched = append([]Session(nil), sessions...)
	r.mu.Unlock()

	return sessions, nil
}

// ListByUser fetches the full list and filters it locally; the backend has
// no per-user endpoint.
func (r *SessionRegistry) ListByUser(ctx context.Context, userID string) ([]Session, error) {
	sessions, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if s.UserID == userID {
			matched = append(matched, s)
		}
	}
	return matched, nil
}

// Search fetches the full list and keeps records matching the query as a
// case-insensitive substring over id, user id, ip address and user agent.
func (r *SessionRegistry) Search(ctx context.Context, query string) ([]Session, error) {
	sessions, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Matches(query) {
			matched = append(matched, s)
		}
	}
	return matched, nil
}

// Revoke destroys one session. Ids unknown to the last fetched view fail
// with ErrSessionNotFound before any server call; for known ids the server
// delete is awaited before the local record is dropped. A session's
// existence is the security-relevant fact, so removal is never optimistic.
func (r *SessionRegistry) Revoke(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	known := false
	for _, s := range r.lastFetched {
		if s.ID == sessionID {
			known = true
			break
		}
	}
	r.mu.Unlock()

	if !known {
		r.logger.Debug("Revoke requested for id outside the fetched view", "session", sessionID)
		return ErrSessionNotFound
	}

	if err := r.revokeRemote(ctx, sessionID); err != nil {
		return err
	}

	r.mu.Lock()
	kept := r.lastFetched[:0]
	for _, s := range r.lastFetched {
		if s.ID != sessionID {
			kept = append(kept, s)
		}
	}
	r.lastFetched = kept
	r.mu.Unlock()

	r.logger.Info("Session revoked", "session", sessionID)
	return nil
}

// RevokeFailure records one session that could not be revoked in a bulk
// operation.
type RevokeFailure struct {
	SessionID string
	Err       error
}

// BulkRevokeResult reports a bulk revocation outcome. Partial failure is
// never collapsed into silence: every failed session id is listed.
type BulkRevokeResult struct {
	Revoked []string
	Failed  []RevokeFailure
}

// RevokeAllForUser revokes every session the registry holds for the user.
// It is best-effort: remaining sessions are still attempted after a failure,
// and the result lists exactly which ones failed.
func (r *SessionRegistry) RevokeAllForUser(ctx context.Context, userID string) (*BulkRevokeResult, error) {
	sessions, err := r.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &BulkRevokeResult{}
	for _, s := range sessions {
		if err := r.revokeRemote(ctx, s.ID); err != nil {
			r.logger.Warn("Bulk revoke: session failed", "session", s.ID, "error", err)
			result.Failed = append(result.Failed, RevokeFailure{SessionID: s.ID, Err: err})
			continue
		}
		result.Revoked = append(result.Revoked, s.ID)
	}

	if len(result.Failed) > 0 {
		failed := make([]string, 0, len(result.Failed))
		for _, f := range result.Failed {
			failed = append(failed, f.SessionID)
		}
		return result, errors.New("some sessions could not be revoked", errors.CategoryOperation).
			WithTextCode(TextCodeRevokePartialFail).
			WithMetadata(map[string]any{"user_id": userID, "failed": failed})
	}

	return result, nil
}

func (r *SessionRegistry) revokeRemote(ctx context.Context, sessionID string) error {
	headers := map[string]string{"sessionId": sessionID}
	status, err := doJSON(ctx, r.http, http.MethodDelete, r.base+"/api/session", r.token(), headers, nil, nil)
	if err != nil {
		return err
	}
	if isAuthStatus(status) {
		return ErrUnauthorized
	}
	if status == http.StatusNotFound {
		return ErrSessionNotFound
	}
	if !statusOK(status) {
		return errors.New("session revoke failed", errors.CategoryOperation).
			WithTextCode(TextCodeNetworkFailure).
			WithMetadata(map[string]any{"status": status, "session_id": sessionID})
	}
	return nil
}

func (r *SessionRegistry) token() string {
	if r.store == nil {
		return ""
	}
	token, _ := r.store.Identity()
	return token
}
