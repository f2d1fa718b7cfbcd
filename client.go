package authkit

import (
	"context"
	"net/http"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-errors"
)

// Client orchestrates credential login, popup OAuth login, logout and the
// identity checks used for route gating. It is the sole writer of the
// primary slot in its TokenStore.
type Client struct {
	cfg    Config
	store  TokenStore
	opener WindowOpener
	http   *http.Client
	logger Logger
	base   string
}

func NewClient(cfg Config, store TokenStore, opener WindowOpener) *Client {
	return &Client{
		cfg:    cfg,
		store:  store,
		opener: opener,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: defLogger{},
		base:   normalizeBaseURL(cfg.GetBaseURL()),
	}
}

func (c *Client) WithLogger(logger Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

func (c *Client) WithHTTPClient(client *http.Client) *Client {
	if client != nil {
		c.http = client
	}
	return c
}

// Store exposes the token store so collaborators (guard, impersonation,
// session context) share the same identity slots.
func (c *Client) Store() TokenStore {
	return c.store
}

// LoginRequest is the credential pair sent to the backend.
type LoginRequest struct {
	Identifier string `json:"username"`
	Secret     string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Identifier, validation.Required),
		validation.Field(&r.Secret, validation.Required),
	)
}

// tokenResponse is the backend's shape for login and introspection replies.
// The user object is optional; when absent the stored principal is kept.
type tokenResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// Login exchanges a credential pair for a token and the resolved principal.
func (c *Client) Login(ctx context.Context, identifier, secret string) (*User, error) {
	payload := LoginRequest{Identifier: identifier, Secret: secret}
	if err := payload.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "invalid login payload").
			WithCode(errors.CodeBadRequest)
	}

	var out tokenResponse
	status, err := doJSON(ctx, c.http, http.MethodPost, c.base+"/auth/login", "", nil, payload, &out)
	if err != nil {
		c.logger.Error("Login request failed", "error", err)
		return nil, err
	}

	if isAuthStatus(status) {
		c.logger.Info("Login rejected", "identifier", identifier)
		return nil, ErrInvalidCredentials
	}
	if !statusOK(status) {
		return nil, errors.New("login failed", errors.CategoryOperation).
			WithTextCode(TextCodeNetworkFailure).
			WithMetadata(map[string]any{"status": status})
	}

	user := out.User
	if user == nil {
		// older backends only return {token}; materialize via introspection
		if tr, err := c.whoAmI(ctx, out.Token); err == nil && tr.User != nil {
			user = tr.User
		}
	}
	if user == nil {
		return nil, errors.New("login response missing principal", errors.CategoryOperation).
			WithTextCode(TextCodeNetworkFailure)
	}

	if err := c.store.SetIdentity(out.Token, user); err != nil {
		return nil, err
	}

	c.logger.Info("Login succeeded", "user", user.ID)
	return user.Clone(), nil
}

// OAuthLogin runs the popup handshake for the given provider and resolves
// the principal once the completion signal arrives.
func (c *Client) OAuthLogin(ctx context.Context, provider Provider) (*User, error) {
	if !provider.Valid() {
		c.logger.Warn("OAuth login requested for unknown provider", "provider", string(provider))
		return nil, ErrUnknownProvider
	}
	if c.opener == nil {
		c.logger.Error("OAuth login requested without a window opener")
		return nil, ErrPopupBlocked
	}

	coordinator := NewPopupCoordinator(c.opener,
		WithPopupTimeout(c.cfg.GetPopupTimeout()),
		WithProbeInterval(c.cfg.GetPopupProbeInterval()),
		WithWindowSize(c.cfg.GetPopupWidth(), c.cfg.GetPopupHeight()),
		WithExpectedOrigin(originOf(c.base)),
		WithPopupLogger(c.logger),
	)

	// ?popup=1 asks the backend to render a completion page for the opener
	// handshake instead of a full redirect
	popupURL := c.base + provider.AuthPath() + "?popup=1"
	if err := coordinator.Run(ctx, popupURL); err != nil {
		return nil, err
	}

	// the signal is only a wake-up; identity comes from the backend
	token, stored := c.store.Identity()
	tr, err := c.whoAmI(ctx, token)
	if err != nil {
		if IsUnauthorized(err) {
			c.store.Clear()
		}
		return nil, err
	}

	user := tr.User
	if user == nil {
		user = stored
	}
	if user == nil {
		return nil, errors.New("oauth login resolved no principal", errors.CategoryOperation).
			WithTextCode(TextCodeNetworkFailure)
	}

	if err := c.store.SetIdentity(tr.Token, user); err != nil {
		return nil, err
	}

	c.logger.Info("OAuth login succeeded", "provider", string(provider), "user", user.ID)
	return user.Clone(), nil
}

// Logout invalidates the server-side session best-effort and always clears
// the local store, including the impersonation slot. A client stuck believing
// it is authenticated is worse than a briefly lingering server session, so
// the returned error is advisory: local state is already cleared.
func (c *Client) Logout(ctx context.Context) error {
	token, _ := c.store.Identity()
	if token == "" {
		c.store.Clear()
		return nil
	}

	var remote error
	status, err := doJSON(ctx, c.http, http.MethodDelete, c.base+"/api/session", token, nil, nil, nil)
	switch {
	case err != nil:
		remote = errors.Wrap(err, errors.CategoryOperation, "server-side session invalidation failed").
			WithTextCode(TextCodeLogoutIncomplete)
	case !statusOK(status) && !isAuthStatus(status):
		remote = errors.New("server-side session invalidation failed", errors.CategoryOperation).
			WithTextCode(TextCodeLogoutIncomplete).
			WithMetadata(map[string]any{"status": status})
	}

	c.store.Clear()

	if remote != nil {
		c.logger.Warn("Logout completed locally only", "error", remote)
	} else {
		c.logger.Info("Logout completed")
	}
	return remote
}

// CurrentUser returns the locally stored principal, or nil. It never errors.
func (c *Client) CurrentUser(ctx context.Context) *User {
	_, user := c.store.Identity()
	return user
}

// IsAuthenticated reports whether an authenticated principal is present,
// reconfirming the credential with the backend. It never errors: a rejected
// credential clears local state, while a transport failure only fails the
// check closed (logged as unconfirmed rather than confirmed absent).
func (c *Client) IsAuthenticated(ctx context.Context) bool {
	token, _ := c.store.Identity()
	if token == "" {
		c.logger.Debug("Identity check: no local credential")
		return false
	}

	if _, err := c.whoAmI(ctx, token); err != nil {
		if IsUnauthorized(err) {
			// revoked elsewhere; next check must not show stale state
			c.logger.Info("Credential rejected by backend, clearing local session")
			c.store.Clear()
		} else {
			c.logger.Warn("Identity check unconfirmed, failing closed", "error", err)
		}
		return false
	}

	return true
}

// RefreshToken re-issues the credential via introspection. A rejected
// credential forces a local logout.
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	token, user := c.store.Identity()
	if token == "" {
		return "", ErrUnauthorized
	}

	tr, err := c.whoAmI(ctx, token)
	if err != nil {
		if IsUnauthorized(err) {
			c.store.Clear()
		}
		return "", err
	}

	if tr.User != nil {
		user = tr.User
	}
	if err := c.store.SetIdentity(tr.Token, user); err != nil {
		return "", err
	}
	return tr.Token, nil
}

func (c *Client) whoAmI(ctx context.Context, token string) (*tokenResponse, error) {
	var out tokenResponse
	status, err := doJSON(ctx, c.http, http.MethodGet, c.base+"/token", token, nil, nil, &out)
	if err != nil {
		return nil, err
	}
	if isAuthStatus(status) {
		return nil, ErrUnauthorized
	}
	if !statusOK(status) {
		return nil, errors.New("identity introspection failed", errors.CategoryOperation).
			WithTextCode(TextCodeNetworkFailure).
			WithMetadata(map[string]any{"status": status})
	}
	return &out, nil
}
