// Package session holds the signed-in user state: the provider profile and
// the refresh token, persisted as a single JSON file across restarts.
package session

// Profile mirrors the provider's userinfo response. A signed-out state is
// the zero value (empty strings, VerifiedEmail=false), never a nil
// variant, so UI layers can bind fields without null checks.
type Profile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	GivenName     string `json:"given_name"`
	FamilyName    string `json:"family_name"`
	Picture       string `json:"picture"`
	Locale        string `json:"locale"`
}

// IsZero reports whether the profile is the signed-out zero value.
func (p Profile) IsZero() bool {
	return p == Profile{}
}

// Session is the persisted login state. RefreshToken is only ever written
// together with the profile it was issued alongside; a session with a token
// but no profile is invalid and never stored.
type Session struct {
	Profile      Profile `json:"profile"`
	RefreshToken string  `json:"refresh_token,omitempty"`
}

// Authenticated reports whether the session carries a signed-in profile.
func (s Session) Authenticated() bool {
	return !s.Profile.IsZero()
}
