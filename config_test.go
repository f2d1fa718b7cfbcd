package authkit_test

import (
	"context"
	"testing"
	"time"

	"github.com/authkit/go-authkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("AUTHKIT_BASE_URL", "https://auth.example.com")

	cfg, err := authkit.LoadConfig(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "https://auth.example.com", cfg.GetBaseURL())
	assert.Equal(t, "/login", cfg.GetLoginRoute())
	assert.Equal(t, "redirect", cfg.GetRedirectQueryKey())
	assert.Equal(t, []string{"/login", "/signup"}, cfg.GetPublicRoutes())
	assert.Equal(t, 2*time.Minute, cfg.GetPopupTimeout())
	assert.Equal(t, 500*time.Millisecond, cfg.GetPopupProbeInterval())
	assert.Equal(t, 600, cfg.GetPopupWidth())
	assert.Equal(t, 600, cfg.GetPopupHeight())
	assert.Empty(t, cfg.GetStoragePath())
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("AUTHKIT_BASE_URL", "https://auth.example.com/")
	t.Setenv("AUTHKIT_LOGIN_ROUTE", "/signin")
	t.Setenv("AUTHKIT_REDIRECT_KEY", "next")
	t.Setenv("AUTHKIT_PUBLIC_ROUTES", "/signin,/about,/pricing")
	t.Setenv("AUTHKIT_POPUP_TIMEOUT", "30s")
	t.Setenv("AUTHKIT_POPUP_PROBE", "250ms")
	t.Setenv("AUTHKIT_STORAGE_PATH", "/var/lib/console/session.json")

	cfg, err := authkit.LoadConfig(context.Background())
	require.NoError(t, err)

	// the trailing slash is dropped so path concatenation stays predictable
	assert.Equal(t, "https://auth.example.com", cfg.GetBaseURL())
	assert.Equal(t, "/signin", cfg.GetLoginRoute())
	assert.Equal(t, "next", cfg.GetRedirectQueryKey())
	assert.Equal(t, []string{"/signin", "/about", "/pricing"}, cfg.GetPublicRoutes())
	assert.Equal(t, 30*time.Second, cfg.GetPopupTimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.GetPopupProbeInterval())
	assert.Equal(t, "/var/lib/console/session.json", cfg.GetStoragePath())
}

func TestLoadConfigRequiresBaseURL(t *testing.T) {
	t.Setenv("AUTHKIT_BASE_URL", "")

	_, err := authkit.LoadConfig(context.Background())
	require.Error(t, err)
}

func TestLoadConfigRejectsMalformedBaseURL(t *testing.T) {
	t.Setenv("AUTHKIT_BASE_URL", "not a url")

	_, err := authkit.LoadConfig(context.Background())
	require.Error(t, err)
}
