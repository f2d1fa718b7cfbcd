package authkit

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// RouteGuard gates protected routes on an authenticated principal. The check
// fails closed: an unauthenticated visitor, and any infrastructure failure
// during the check, both redirect to the login entry point with the
// originally requested location preserved.
type RouteGuard struct {
	client *Client
	cfg    Config
	Logger Logger
}

func NewRouteGuard(client *Client, cfg Config) *RouteGuard {
	if client == nil {
		panic("authkit: RouteGuard requires a Client")
	}
	return &RouteGuard{
		client: client,
		cfg:    cfg,
		Logger: defLogger{},
	}
}

// Protected wraps handlers behind the identity check.
func (g *RouteGuard) Protected() router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			if g.isPublic(c.Path()) {
				return next(c)
			}

			if !g.check(c) {
				location := g.loginRedirect(c.OriginalURL())
				g.Logger.Info("Unauthenticated request, redirecting", "path", c.OriginalURL(), "location", location)
				return c.Redirect(location, router.StatusSeeOther)
			}

			ctx := c.Context()
			if user := g.client.CurrentUser(ctx); user != nil {
				ctx = WithUser(ctx, user)
			}
			if target := g.client.Store().Impersonated(); target != nil {
				ctx = WithImpersonation(ctx, ImpersonationState{Active: true, User: target})
			}
			c.SetContext(ctx)
			return next(c)
		}
	}
}

// GetRedirect returns the originally requested location carried through the
// login round trip, falling back to def. Absolute URLs are rejected so the
// login flow cannot be used as an open redirect.
func (g *RouteGuard) GetRedirect(c router.Context, def string) string {
	r := c.Query(g.cfg.GetRedirectQueryKey(), "")
	if r == "" {
		return def
	}
	if decoded, err := url.QueryUnescape(r); err == nil {
		r = decoded
	}
	if !strings.HasPrefix(r, "/") || strings.HasPrefix(r, "//") {
		g.Logger.Warn("Discarding non-local redirect target", "target", r)
		return def
	}
	return r
}

func (g *RouteGuard) check(c router.Context) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.Logger.Error(
				"Identity check failed, failing closed",
				"path", c.OriginalURL(),
				"detail", print.MaybePrettyJSON(map[string]any{"panic": fmt.Sprint(r)}),
			)
			ok = false
		}
	}()
	return g.client.IsAuthenticated(c.Context())
}

func (g *RouteGuard) isPublic(path string) bool {
	if path == g.cfg.GetLoginRoute() {
		return true
	}
	for _, public := range g.cfg.GetPublicRoutes() {
		if public != "" && strings.HasPrefix(path, public) {
			return true
		}
	}
	return false
}

func (g *RouteGuard) loginRedirect(original string) string {
	login := g.cfg.GetLoginRoute()
	if original == "" || original == login {
		return login
	}
	return login + "?" + g.cfg.GetRedirectQueryKey() + "=" + url.QueryEscape(original)
}
