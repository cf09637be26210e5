// Package config locates the mdtask configuration directory and loads the
// settings file kept in it.
package config

import (
	"os"
	"path/filepath"
)

// AppName names the configuration directory and the binary.
const AppName = "mdtask"

// Files kept in the configuration directory.
const (
	OAuthClientFile = "oauth_client.json" // Google OAuth client credentials
	TokenFile       = "token.json"        // Google OAuth token
	SettingsFile    = "settings.yaml"
	IndexFile       = "index.db" // sync state, see package index
)

// Config is the per-run configuration: where files live, the global flags,
// and the loaded settings.
type Config struct {
	Dir   string
	Debug bool
	Quiet bool

	// Settings hold defaults until LoadSettings is called. The dispatcher
	// loads them before any command runs.
	Settings Settings
}

// New returns a Config rooted at configDir, or at DefaultConfigDir when
// configDir is empty.
func New(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}
	return &Config{Dir: configDir, Settings: DefaultSettings()}, nil
}

// DefaultConfigDir is $XDG_CONFIG_HOME/mdtask, falling back to
// $HOME/.config/mdtask.
func DefaultConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return AppName
	}
	return filepath.Join(home, ".config", AppName)
}

func (c *Config) path(name string) string {
	return filepath.Join(c.Dir, name)
}

func (c *Config) OAuthClientPath() string { return c.path(OAuthClientFile) }
func (c *Config) TokenPath() string       { return c.path(TokenFile) }
func (c *Config) SettingsPath() string    { return c.path(SettingsFile) }
func (c *Config) IndexPath() string       { return c.path(IndexFile) }

// EnsureDir creates the configuration directory, owner-only.
func (c *Config) EnsureDir() error {
	return os.MkdirAll(c.Dir, 0700)
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// HasOAuthClient reports whether Google OAuth client credentials are present.
func (c *Config) HasOAuthClient() bool { return exists(c.OAuthClientPath()) }

// HasToken reports whether a Google OAuth token is stored.
func (c *Config) HasToken() bool { return exists(c.TokenPath()) }

// RemoveToken deletes the stored Google OAuth token.
func (c *Config) RemoveToken() error {
	return os.Remove(c.TokenPath())
}

// LoadSettings reads the settings file into c.Settings.
func (c *Config) LoadSettings() error {
	s, err := LoadSettings(c.SettingsPath())
	if err != nil {
		return err
	}
	c.Settings = s
	return nil
}

// SaveSettings writes c.Settings to the settings file.
func (c *Config) SaveSettings() error {
	if err := c.EnsureDir(); err != nil {
		return err
	}
	return SaveSettings(c.SettingsPath(), c.Settings)
}
