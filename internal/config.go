package internal

import (
	"fmt"
	"log/slog"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/larder/internal/api"
)

// Auth modes.
const (
	AuthModeDisabled = api.AuthDisabled
	AuthModeToken    = api.AuthToken
	AuthModeJWT      = api.AuthJWT
)

var httpURL = regexp.MustCompile(`^https?://`)

// Store drivers.
const (
	StoreDriverSQLite    = "sqlite"
	StoreDriverPostgREST = "postgrest"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Store   StoreConfig       `yaml:"store"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Catalog CatalogConfig     `yaml:"catalog"`
	Import  ImportConfig      `yaml:"import"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.Store.Driver == StoreDriverSQLite {
		if err := c.SQLite.Validate(); err != nil {
			return err
		}
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Catalog.Validate(); err != nil {
		return err
	}
	return c.Import.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StoreConfig selects the item store backend.
type StoreConfig struct {
	Driver    string          `yaml:"driver"`
	PostgREST PostgRESTConfig `yaml:"postgrest"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	if c.Driver == "" {
		c.Driver = StoreDriverSQLite
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Driver, validation.Required, validation.In(StoreDriverSQLite, StoreDriverPostgREST)),
	); err != nil {
		return err
	}
	if c.Driver == StoreDriverPostgREST {
		return c.PostgREST.Validate()
	}
	return nil
}

// PostgRESTConfig points at a PostgREST-compatible endpoint.
type PostgRESTConfig struct {
	URL     string        `yaml:"url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// Validate validates the PostgREST configuration.
func (c *PostgRESTConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, validation.Required, validation.Match(httpURL)),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication; the user comes from the
//     X-User-ID header or falls back to DefaultUser. Suitable for local dev.
//   - "token": static Bearer token; Token must be non-empty and requests act as DefaultUser.
//   - "jwt": HS256 Bearer JWT signed with JWTSecret; the sub claim is the user.
type AuthConfig struct {
	Mode        string `yaml:"mode"`
	Token       string `yaml:"token"`
	JWTSecret   string `yaml:"jwt_secret"`
	DefaultUser string `yaml:"default_user"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken, AuthModeJWT)),
	); err != nil {
		return err
	}
	switch {
	case c.Mode == AuthModeToken && c.Token == "":
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	case c.Mode == AuthModeToken && c.DefaultUser == "":
		return fmt.Errorf("auth: mode is %q but default_user is empty", AuthModeToken)
	case c.Mode == AuthModeJWT && c.JWTSecret == "":
		return fmt.Errorf("auth: mode is %q but jwt_secret is empty", AuthModeJWT)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken || c.Mode == AuthModeJWT
}

// Settings converts the config into the API middleware settings.
func (c *AuthConfig) Settings() api.AuthSettings {
	return api.AuthSettings{
		Mode:        c.Mode,
		Token:       c.Token,
		JWTSecret:   c.JWTSecret,
		DefaultUser: c.DefaultUser,
	}
}

// CatalogConfig tunes catalog browsing.
type CatalogConfig struct {
	SearchDebounce time.Duration `yaml:"search_debounce"`
	FallbackImage  string        `yaml:"fallback_image"`
}

// Validate validates the catalog configuration.
func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SearchDebounce, validation.Min(time.Duration(0)), validation.Max(10*time.Second)),
		validation.Field(&c.FallbackImage, validation.Match(httpURL)),
	)
}

// ImportConfig holds the recipe import inbox settings.
type ImportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Inbox   string `yaml:"inbox"`
	UserID  string `yaml:"user_id"`
}

// Validate validates the import configuration.
func (c *ImportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Inbox, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.UserID, validation.When(c.Enabled, validation.Required)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Store: StoreConfig{
			Driver: StoreDriverSQLite,
			PostgREST: PostgRESTConfig{
				Timeout: 15 * time.Second,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./larder.db",
		},
		Auth: AuthConfig{
			Mode:        AuthModeDisabled,
			DefaultUser: "local",
		},
		Catalog: CatalogConfig{
			SearchDebounce: 300 * time.Millisecond,
		},
		Import: ImportConfig{
			Inbox:  "./inbox",
			UserID: "local",
		},
	}
}
