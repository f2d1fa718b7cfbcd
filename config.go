package authkit

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/goliatone/go-errors"
	"github.com/sethvargo/go-envconfig"
)

// EnvConfig is the concrete Config loaded from the environment. The base URL
// is injected configuration; there is no command-line surface.
type EnvConfig struct {
	BaseURL            string        `env:"AUTHKIT_BASE_URL"`
	LoginRoute         string        `env:"AUTHKIT_LOGIN_ROUTE,    default=/login"`
	RedirectQueryKey   string        `env:"AUTHKIT_REDIRECT_KEY,   default=redirect"`
	PublicRoutes       []string      `env:"AUTHKIT_PUBLIC_ROUTES,  default=/login,/signup"`
	PopupTimeout       time.Duration `env:"AUTHKIT_POPUP_TIMEOUT,  default=2m"`
	PopupProbeInterval time.Duration `env:"AUTHKIT_POPUP_PROBE,    default=500ms"`
	PopupWidth         int           `env:"AUTHKIT_POPUP_WIDTH,    default=600"`
	PopupHeight        int           `env:"AUTHKIT_POPUP_HEIGHT,   default=600"`
	StoragePath        string        `env:"AUTHKIT_STORAGE_PATH"`
}

var _ Config = (*EnvConfig)(nil)

// LoadConfig reads and validates configuration from environment variables.
func LoadConfig(ctx context.Context) (*EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryOperation, "unable to load configuration")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryValidation, "invalid configuration").
			WithCode(errors.CodeBadRequest)
	}

	return &cfg, nil
}

func (c EnvConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.LoginRoute, validation.Required),
		validation.Field(&c.RedirectQueryKey, validation.Required),
		validation.Field(&c.PopupTimeout, validation.Required),
		validation.Field(&c.PopupProbeInterval, validation.Required),
	)
}

func (c *EnvConfig) GetBaseURL() string {
	return normalizeBaseURL(c.BaseURL)
}

func (c *EnvConfig) GetLoginRoute() string {
	return c.LoginRoute
}

func (c *EnvConfig) GetRedirectQueryKey() string {
	return c.RedirectQueryKey
}

func (c *EnvConfig) GetPublicRoutes() []string {
	return c.PublicRoutes
}

func (c *EnvConfig) GetPopupTimeout() time.Duration {
	return c.PopupTimeout
}

func (c *EnvConfig) GetPopupProbeInterval() time.Duration {
	return c.PopupProbeInterval
}

func (c *EnvConfig) GetPopupWidth() int {
	return c.PopupWidth
}

func (c *EnvConfig) GetPopupHeight() int {
	return c.PopupHeight
}

func (c *EnvConfig) GetStoragePath() string {
	return c.StoragePath
}
