package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwhitfield/deskauth/internal/display"
	"github.com/jwhitfield/deskauth/internal/login"
	"github.com/jwhitfield/deskauth/internal/session"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in through the browser",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, cfg, err := newManager(cmd.Context())
		if err != nil {
			return err
		}

		timeout := time.Duration(cfg.Login.TimeoutSeconds) * time.Second
		profile, err := runWithSpinner(cmd.Context(), timeout, m.GetUser)

		if jsonOutput {
			return display.OutputJSON(outWriter, display.ProfileToJSON(profile, err))
		}
		return reportLogin(profile, err)
	},
}

// runWithSpinner runs fn under the waiting spinner when stdout is an
// interactive terminal, plainly otherwise.
func runWithSpinner(ctx context.Context, timeout time.Duration, fn func(context.Context) (session.Profile, error)) (session.Profile, error) {
	if !display.SpinnerShouldShow(quiet, jsonOutput, !isTerminal()) {
		return fn(ctx)
	}

	var (
		profile session.Profile
		err     error
	)
	serr := display.SpinnerRun("Waiting for sign-in in the browser", time.Now().Add(timeout), func() {
		profile, err = fn(ctx)
	})
	if serr != nil {
		return profile, serr
	}
	return profile, err
}

func reportLogin(profile session.Profile, err error) error {
	switch {
	case errors.Is(err, login.ErrNotCompleted):
		if !quiet {
			outln(display.RenderFailure(err.Error()))
		}
		return err
	case err != nil:
		return err
	}

	if quiet {
		outln(profile.Email)
		return nil
	}
	outln(display.RenderSuccess("Signed in as " + profile.Email))
	outln()
	outln(display.RenderProfile(profile, noColor))
	return nil
}
