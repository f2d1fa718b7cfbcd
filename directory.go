package authkit

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/goliatone/go-errors"
)

// Directory is the read-mostly client for the identity service's user
// directory. The session layer uses it to resolve impersonation targets and
// session owners; it does not own the directory.
type Directory struct {
	cfg    Config
	store  TokenStore
	http   *http.Client
	logger Logger
	base   string

	mu          sync.Mutex
	lastFetched []DirectoryUser
}

func NewDirectory(cfg Config, store TokenStore) *Directory {
	return &Directory{
		cfg:    cfg,
		store:  store,
		http:   &http.Client{Timeout: 30 * time.Second},
		logger: defLogger{},
		base:   normalizeBaseURL(cfg.GetBaseURL()),
	}
}

func (d *Directory) WithLogger(logger Logger) *Directory {
	if logger != nil {
		d.logger = logger
	}
	return d
}

func (d *Directory) WithHTTPClient(client *http.Client) *Directory {
	if client != nil {
		d.http = client
	}
	return d
}

// Users fetches every directory profile.
func (d *Directory) Users(ctx context.Context) ([]DirectoryUser, error) {
	var users []DirectoryUser
	status, err := doJSON(ctx, d.http, http.MethodGet, d.base+"/auth/api/user/all", d.token(), nil, nil, &users)
	if err != nil {
		return nil, err
	}
	if isAuthStatus(status) {
		return nil, ErrUnauthorized
	}
	if !statusOK(status) {
		return nil, errors.New("user directory fetch failed", errors.CategoryOperation).
			WithTextCode(TextCodeNetworkFailure).
			WithMetadata(map[string]any{"status": status})
	}

	d.mu.Lock()
	d.lastFetched = append([]DirectoryUser(nil), users...)
	d.mu.Unlock()

	return users, nil
}

// Find fetches the directory and returns the profile for the given id.
func (d *Directory) Find(ctx context.Context, userID string) (*DirectoryUser, error) {
	users, err := d.Users(ctx)
	if err != nil {
		return nil, err
	}

	for i := range users {
		if users[i].ID == userID {
			u := users[i]
			return &u, nil
		}
	}

	d.logger.Debug("Directory has no record", "user", userID)
	return nil, ErrUserNotFound
}

// Search filters the directory locally by name, email or id.
func (d *Directory) Search(ctx context.Context, query string) ([]DirectoryUser, error) {
	users, err := d.Users(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]DirectoryUser, 0, len(users))
	for _, u := range users {
		if u.Matches(query) {
			matched = append(matched, u)
		}
	}
	return matched, nil
}

// Update writes a profile back to the directory.
func (d *Directory) Update(ctx context.Context, user DirectoryUser) error {
	status, err := doJSON(ctx, d.http, http.MethodPut, d.base+"/auth/api/user", d.token(), nil, user, nil)
	if err != nil {
		return err
	}
	if isAuthStatus(status) {
		return ErrUnauthorized
	}
	if !statusOK(status) {
		return errors.New("user update failed", errors.CategoryOperation).
			WithTextCode(TextCodeNetworkFailure).
			WithMetadata(map[string]any{"status": status, "user_id": user.ID})
	}
	return nil
}

// Delete removes a user from the directory. The id travels in a header, not
// the path.
func (d *Directory) Delete(ctx context.Context, userID string) error {
	headers := map[string]string{"userId": userID}
	status, err := doJSON(ctx, d.http, http.MethodDelete, d.base+"/auth/api/user", d.token(), headers, nil, nil)
	if err != nil {
		return err
	}
	if isAuthStatus(status) {
		return ErrUnauthorized
	}
	if status == http.StatusNotFound {
		return ErrUserNotFound
	}
	if !statusOK(status) {
		return errors.New("user delete failed", errors.CategoryOperation).
			WithTextCode(TextCodeNetworkFailure).
			WithMetadata(map[string]any{"status": status, "user_id": userID})
	}
	return nil
}

// ToggleBan flips the banned flag on a profile and writes it back.
func (d *Directory) ToggleBan(ctx context.Context, userID string) (*DirectoryUser, error) {
	user, err := d.Find(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.Banned = !user.Banned
	if err := d.Update(ctx, *user); err != nil {
		return nil, err
	}

	d.logger.Info("User ban toggled", "user", userID, "banned", user.Banned)
	return user, nil
}

func (d *Directory) token() string {
	if d.store == nil {
		return ""
	}
	token, _ := d.store.Identity()
	return token
}
