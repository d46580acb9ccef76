package internal

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app" toml:"app"`
	Finder FinderConfig      `yaml:"finder" toml:"finder"`
	Auth   AuthConfig        `yaml:"auth" toml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Finder.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP     HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
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

// FinderConfig holds the search root and walk settings.
type FinderConfig struct {
	// Root is the directory non-rooted queries resolve against. Empty means
	// the user's home directory.
	Root       string   `yaml:"root" toml:"root"`
	Workers    int      `yaml:"workers" toml:"workers"`
	ShowHidden bool     `yaml:"show_hidden" toml:"show_hidden"`
	Exclude    []string `yaml:"exclude" toml:"exclude"`

	// RespectGitignore prunes paths listed in .gitignore and .ignore files
	// from recursive searches.
	RespectGitignore bool `yaml:"respect_gitignore" toml:"respect_gitignore"`

	// Opener is the command used to open activated items. Empty selects the
	// platform default.
	Opener string `yaml:"opener" toml:"opener"`
}

var excludeName = validation.NewStringRule(func(s string) bool {
	return !strings.ContainsAny(s, `/\`)
}, "must be a plain directory name")

// Validate validates the finder configuration.
func (c *FinderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(0), validation.Max(1024)),
		validation.Field(&c.Exclude, validation.Each(validation.Required, excludeName)),
	)
}

// ResolveRoot returns Root, or the home directory when Root is empty.
func (c *FinderConfig) ResolveRoot() (string, error) {
	if c.Root != "" {
		return c.Root, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: home directory: %w", err)
	}
	return home, nil
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
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
		Finder: FinderConfig{
			Exclude:          []string{".git"},
			RespectGitignore: true,
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
