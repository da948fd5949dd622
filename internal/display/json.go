package display

import (
	"encoding/json"
	"io"

	"github.com/jwhitfield/deskauth/internal/session"
)

// ProfileJSON is the --json shape for login and whoami. Profile fields
// are empty when the user is signed out; Error is set only on failure.
type ProfileJSON struct {
	Authenticated bool            `json:"authenticated"`
	Profile       session.Profile `json:"profile"`
	Error         string          `json:"error,omitempty"`
}

// ConfigJSON is the --json shape for the init status report.
type ConfigJSON struct {
	Configured  bool     `json:"configured"`
	ConfigFile  string   `json:"config_file"`
	RedirectURI string   `json:"redirect_uri"`
	Scopes      []string `json:"scopes"`
}

// OutputJSON writes pretty-printed JSON to the given writer.
func OutputJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// ProfileToJSON converts a login outcome to its JSON shape.
func ProfileToJSON(p session.Profile, err error) ProfileJSON {
	out := ProfileJSON{Authenticated: !p.IsZero(), Profile: p}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}
