// Package config loads and persists the deskauth configuration file and
// owns the filesystem paths deskauth writes to.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// ProviderConfig identifies the OAuth2 provider and the client registered
// with it. ClientID and ClientSecret have no defaults; deskauth refuses to
// start a login without them.
type ProviderConfig struct {
	ClientID     string   `toml:"client_id" json:"client_id"`
	ClientSecret string   `toml:"client_secret" json:"-"`
	AuthURL      string   `toml:"auth_url" json:"auth_url"`
	TokenURL     string   `toml:"token_url" json:"token_url"`
	UserinfoURL  string   `toml:"userinfo_url" json:"userinfo_url"`
	RevokeURL    string   `toml:"revoke_url,omitempty" json:"revoke_url,omitempty"`
	Scopes       []string `toml:"scopes" json:"scopes"`
	LoginHint    string   `toml:"login_hint,omitempty" json:"login_hint,omitempty"`
}

// ListenerConfig describes the loopback redirect endpoint. The host, port
// and path must match the redirect URI registered with the provider exactly.
type ListenerConfig struct {
	Port         int    `toml:"port" json:"port"`
	CallbackPath string `toml:"callback_path" json:"callback_path"`
}

// LoginConfig holds timing for the interactive flow.
type LoginConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds" json:"timeout_seconds"`
}

// HTTPConfig holds the timeout for provider HTTP calls, in seconds.
type HTTPConfig struct {
	Timeout float64 `toml:"timeout" json:"timeout"`
}

type Config struct {
	Provider ProviderConfig `toml:"provider" json:"provider"`
	Listener ListenerConfig `toml:"listener" json:"listener"`
	Login    LoginConfig    `toml:"login" json:"login"`
	HTTP     HTTPConfig     `toml:"http" json:"http"`
}

// DefaultConfig returns a config pointed at Google's endpoints with the
// profile and email scopes. Client credentials are deliberately empty.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderConfig{
			AuthURL:     "https://accounts.google.com/o/oauth2/auth",
			TokenURL:    "https://oauth2.googleapis.com/token",
			UserinfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
			RevokeURL:   "https://oauth2.googleapis.com/revoke",
			Scopes:      []string{"profile", "email"},
		},
		Listener: ListenerConfig{
			Port:         53682,
			CallbackPath: "/callback",
		},
		Login: LoginConfig{
			TimeoutSeconds: 25,
		},
		HTTP: HTTPConfig{
			Timeout: 30.0,
		},
	}
}

// RedirectURI returns the loopback redirect URI implied by the listener
// settings.
func (c Config) RedirectURI() string {
	return fmt.Sprintf("http://127.0.0.1:%d%s", c.Listener.Port, c.Listener.CallbackPath)
}

// Load reads the config file at path, falling back to ConfigFile() when path
// is empty. A missing file yields the defaults; a malformed file yields the
// defaults plus an error so callers can warn.
func Load(path string) (Config, error) {
	if path == "" {
		path = ConfigFile()
	}
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return applyEnvOverrides(cfg), nil
	}

	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return applyEnvOverrides(DefaultConfig()), fmt.Errorf("parsing config %s: %w", path, err)
	}
	if len(cfg.Provider.Scopes) == 0 {
		cfg.Provider.Scopes = []string{"profile", "email"}
	}

	return applyEnvOverrides(cfg), nil
}

// Save writes the config file, creating the config directory if needed.
// The file carries the client secret, so it is written atomically with
// owner-only permissions.
func Save(cfg Config, path string) error {
	if path == "" {
		path = ConfigFile()
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	if err := WriteFileAtomic(path, buf.Bytes()); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}

// Validate reports whether the config is complete enough to talk to the
// provider. Errors here are startup-fatal: no network call is attempted
// on an invalid config.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Provider.ClientID) == "" {
		return errors.New("provider.client_id is not configured")
	}
	if strings.TrimSpace(c.Provider.ClientSecret) == "" {
		return errors.New("provider.client_secret is not configured")
	}
	for name, raw := range map[string]string{
		"provider.auth_url":     c.Provider.AuthURL,
		"provider.token_url":    c.Provider.TokenURL,
		"provider.userinfo_url": c.Provider.UserinfoURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s is not a valid absolute URL: %q", name, raw)
		}
	}
	if c.Listener.Port <= 0 || c.Listener.Port > 65535 {
		return fmt.Errorf("listener.port %d out of range", c.Listener.Port)
	}
	if !strings.HasPrefix(c.Listener.CallbackPath, "/") {
		return fmt.Errorf("listener.callback_path %q must start with /", c.Listener.CallbackPath)
	}
	if c.Login.TimeoutSeconds <= 0 {
		return fmt.Errorf("login.timeout_seconds must be positive, got %d", c.Login.TimeoutSeconds)
	}
	return nil
}

func applyEnvOverrides(cfg Config) Config {
	if v := strings.TrimSpace(os.Getenv("DESKAUTH_CLIENT_ID")); v != "" {
		cfg.Provider.ClientID = v
	}
	if v := strings.TrimSpace(os.Getenv("DESKAUTH_CLIENT_SECRET")); v != "" {
		cfg.Provider.ClientSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("DESKAUTH_LOGIN_HINT")); v != "" {
		cfg.Provider.LoginHint = v
	}
	return cfg
}
