package cli

import (
	"github.com/spf13/cobra"

	"github.com/jwhitfield/deskauth/internal/config"
	"github.com/jwhitfield/deskauth/internal/display"
	"github.com/jwhitfield/deskauth/internal/prompt"
)

var scopeDescriptions = []prompt.SelectOption{
	{Label: "profile (name, picture, locale)", Value: "profile"},
	{Label: "email (primary address)", Value: "email"},
	{Label: "openid (ID token issuance)", Value: "openid"},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Set up the OAuth client",
	Long:  "Writes the OAuth client id and secret to the config file. The redirect URI printed at the end must be registered with the provider.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(config.ConfigFile())
		if err != nil {
			cfg = config.DefaultConfig()
		}

		if jsonOutput {
			return display.OutputJSON(outWriter, display.ConfigJSON{
				Configured:  cfg.Validate() == nil,
				ConfigFile:  config.ConfigFile(),
				RedirectURI: cfg.RedirectURI(),
				Scopes:      cfg.Provider.Scopes,
			})
		}
		if quiet || !isTerminal() {
			outln("Edit " + config.ConfigFile() + " to set the OAuth client id and secret.")
			return nil
		}

		return runWizard(cfg)
	},
}

func runWizard(cfg config.Config) error {
	outln()
	outln("  Welcome to deskauth!")
	outln()
	outln("  Enter the OAuth client registered for this application.")
	outln("  The redirect URI " + cfg.RedirectURI() + " must be on its allowlist.")
	outln()

	clientID, err := prompt.Default.Input(prompt.InputConfig{
		Title:       "OAuth client ID",
		Placeholder: cfg.Provider.ClientID,
		Validate:    prompt.ValidateNotEmpty,
	})
	if err != nil {
		return err
	}

	clientSecret, err := prompt.Default.Input(prompt.InputConfig{
		Title:    "OAuth client secret",
		Secret:   true,
		Validate: prompt.ValidateNotEmpty,
	})
	if err != nil {
		return err
	}

	loginHint, err := prompt.Default.Input(prompt.InputConfig{
		Title:       "Login hint (optional email to pre-fill the provider's form)",
		Placeholder: cfg.Provider.LoginHint,
	})
	if err != nil {
		return err
	}

	scopes, err := prompt.Default.MultiSelect(prompt.MultiSelectConfig{
		Title:       "Scopes to request",
		Description: "Space to select, Enter to confirm. Extra scopes cost extra consent.",
		Options:     scopeOptions(cfg.Provider.Scopes),
	})
	if err != nil {
		return err
	}
	if len(scopes) == 0 {
		scopes = config.DefaultConfig().Provider.Scopes
	}

	confirmed, err := prompt.Default.Confirm(prompt.ConfirmConfig{
		Title:       "Write " + config.ConfigFile() + "?",
		Description: "The client secret is stored with owner-only permissions.",
		Affirmative: "Write",
		Negative:    "Cancel",
		Default:     true,
	})
	if err != nil {
		return err
	}
	if !confirmed {
		outln("\nNothing written.")
		return nil
	}

	cfg.Provider.ClientID = clientID
	cfg.Provider.ClientSecret = clientSecret
	cfg.Provider.LoginHint = loginHint
	cfg.Provider.Scopes = scopes

	if err := config.Save(cfg, config.ConfigFile()); err != nil {
		return err
	}

	outln()
	outln(display.RenderSuccess("Configuration written to " + config.ConfigFile()))
	outln()
	outln("  Register this redirect URI with the provider:")
	outln("    " + cfg.RedirectURI())
	outln()
	outln("  Then run 'deskauth login' to sign in.")
	return nil
}

// scopeOptions marks the already-configured scopes as selected and keeps
// any custom scope from the config file in the list.
func scopeOptions(configured []string) []prompt.SelectOption {
	known := make(map[string]bool, len(scopeDescriptions))
	options := make([]prompt.SelectOption, len(scopeDescriptions))
	for i, opt := range scopeDescriptions {
		for _, s := range configured {
			if s == opt.Value {
				opt.Selected = true
			}
		}
		known[opt.Value] = true
		options[i] = opt
	}
	for _, s := range configured {
		if !known[s] {
			options = append(options, prompt.SelectOption{Label: s, Value: s, Selected: true})
		}
	}
	return options
}
