package authkit

import (
	"fmt"
	"strings"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds the options shared by the session coordination components
type Config interface {
	GetBaseURL() string
	GetLoginRoute() string
	GetRedirectQueryKey() string
	GetPublicRoutes() []string
	GetPopupTimeout() time.Duration
	GetPopupProbeInterval() time.Duration
	GetPopupWidth() int
	GetPopupHeight() int
	GetStoragePath() string
}

// Provider identifies an external OAuth entry point on the authkit backend.
type Provider string

const (
	ProviderDiscord   Provider = "discord"
	ProviderGoogle    Provider = "google"
	ProviderGithub    Provider = "github"
	ProviderMicrosoft Provider = "microsoftonline"
)

// AuthPath is the backend path the popup is pointed at for this provider.
func (p Provider) AuthPath() string {
	return "/oauth/" + string(p)
}

func (p Provider) Valid() bool {
	switch p {
	case ProviderDiscord, ProviderGoogle, ProviderGithub, ProviderMicrosoft:
		return true
	}
	return false
}

// RoleAdmin is the role required to operate the console as another principal.
const RoleAdmin = "admin"

// LoginSuccessMarker is the literal completion signal a popup posts to its
// opener once the external provider flow finished. The payload is only a
// wake-up signal, never an identity claim.
const LoginSuccessMarker = "Login-Success"

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHKIT "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHKIT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHKIT "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHKIT "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

// normalizeBaseURL strips the trailing slash so paths can be appended verbatim.
func normalizeBaseURL(base string) string {
	return strings.TrimRight(base, "/")
}
