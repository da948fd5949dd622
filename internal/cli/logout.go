package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jwhitfield/deskauth/internal/display"
	"github.com/jwhitfield/deskauth/internal/prompt"
)

var logoutYes bool

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and switch accounts",
	Long:  "Clears the stored session, then reopens the browser flow so a different account can sign in.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !logoutYes && !quiet && !jsonOutput && isTerminal() {
			confirmed, err := prompt.Default.Confirm(prompt.ConfirmConfig{
				Title:       "Sign out?",
				Description: "The browser will reopen so another account can sign in.",
				Affirmative: "Sign out",
				Negative:    "Cancel",
			})
			if err != nil {
				return err
			}
			if !confirmed {
				outln("Cancelled.")
				return nil
			}
		}

		m, cfg, err := newManager(cmd.Context())
		if err != nil {
			return err
		}

		timeout := time.Duration(cfg.Login.TimeoutSeconds) * time.Second
		profile, err := runWithSpinner(cmd.Context(), timeout, m.Logout)

		if jsonOutput {
			return display.OutputJSON(outWriter, display.ProfileToJSON(profile, err))
		}
		return reportLogin(profile, err)
	},
}

func init() {
	logoutCmd.Flags().BoolVarP(&logoutYes, "yes", "y", false, "Skip the confirmation prompt")
}
