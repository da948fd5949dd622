package auth

import (
	"context"
	"fmt"

	"github.com/jwhitfield/deskauth/internal/httpclient"
	"github.com/jwhitfield/deskauth/internal/session"
)

// FetchProfile calls the provider's userinfo endpoint with the access token
// and returns the user's profile. Non-2xx responses and undecodable bodies
// are errors; a login is only persisted once this call has succeeded.
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (session.Profile, error) {
	var profile session.Profile
	resp, err := c.http.GetJSONCtx(ctx, c.userinfoURL, &profile, httpclient.WithBearer(accessToken))
	if err != nil {
		return session.Profile{}, fmt.Errorf("userinfo request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return session.Profile{}, fmt.Errorf("userinfo endpoint returned %d: %s", resp.StatusCode, httpclient.SummarizeBody(resp.Body))
	}
	if resp.JSONErr != nil {
		return session.Profile{}, fmt.Errorf("invalid userinfo response: %w", resp.JSONErr)
	}
	if profile.ID == "" && profile.Email == "" {
		return session.Profile{}, fmt.Errorf("userinfo response missing id and email: %s", httpclient.SummarizeBody(resp.Body))
	}
	return profile, nil
}
