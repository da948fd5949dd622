package cli

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jwhitfield/deskauth/internal/bridge"
	"github.com/jwhitfield/deskauth/internal/logging"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON command bridge on stdio",
	Long:  "Reads line-delimited JSON requests (get_user, logout, window_closed) on stdin and writes responses to stdout, for a frontend process that embeds the login flow.",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, _, err := newManager(cmd.Context())
		if err != nil {
			return err
		}

		logging.FromContext(cmd.Context()).Debug("bridge serving on stdio")
		return bridge.New(m, os.Stdin, os.Stdout).Run(cmd.Context())
	},
}
