package config

import (
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
)

const appName = "deskauth"

// ConfigDir returns the deskauth configuration directory.
// DESKAUTH_CONFIG_DIR overrides the XDG default, which keeps tests and
// portable installs away from the real user config.
func ConfigDir() string {
	if v := os.Getenv("DESKAUTH_CONFIG_DIR"); v != "" {
		return v
	}
	return filepath.Join(xdg.ConfigHome, appName)
}

// ConfigFile returns the path of the TOML config file.
func ConfigFile() string { return filepath.Join(ConfigDir(), "config.toml") }

// SessionFile returns the path of the persisted session file.
func SessionFile() string { return filepath.Join(ConfigDir(), "session.json") }
