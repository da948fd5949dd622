package cli

import (
	"github.com/spf13/cobra"

	"github.com/jwhitfield/deskauth/internal/config"
	"github.com/jwhitfield/deskauth/internal/display"
	"github.com/jwhitfield/deskauth/internal/session"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the stored session without signing in",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := session.NewStore(config.SessionFile())
		sess := store.Load()

		if jsonOutput {
			return display.OutputJSON(outWriter, display.ProfileToJSON(sess.Profile, nil))
		}

		if !sess.Authenticated() {
			if !quiet {
				outln(display.RenderSignedOut())
			}
			return nil
		}

		if quiet {
			outln(sess.Profile.Email)
			return nil
		}
		outln(display.RenderProfile(sess.Profile, noColor))
		return nil
	},
}
