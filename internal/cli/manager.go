package cli

import (
	"context"
	"fmt"

	"github.com/jwhitfield/deskauth/internal/auth"
	"github.com/jwhitfield/deskauth/internal/browser"
	"github.com/jwhitfield/deskauth/internal/config"
	"github.com/jwhitfield/deskauth/internal/logging"
	"github.com/jwhitfield/deskauth/internal/login"
	"github.com/jwhitfield/deskauth/internal/session"
)

// newManager loads the config, validates it, and wires the login manager.
// Invalid configuration is fatal here: no network call may happen without
// a client id and secret.
func newManager(ctx context.Context) (*login.Manager, config.Config, error) {
	cfg, err := config.Load(config.ConfigFile())
	if err != nil {
		logging.FromContext(ctx).Warn("config file is malformed, using defaults", "err", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, cfg, fmt.Errorf("%w\nRun 'deskauth init' to set up the OAuth client", err)
	}

	store := session.NewStore(config.SessionFile())
	store.Load()

	m := login.NewManager(cfg, store, auth.NewClient(cfg), browser.System{})
	return m, cfg, nil
}
