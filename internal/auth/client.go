package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/jwhitfield/deskauth/internal/config"
	"github.com/jwhitfield/deskauth/internal/httpclient"
)

// TokenPair is the result of a token-endpoint exchange. It is transient:
// only the refresh token portion ever reaches the session file.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
	Scopes       []string
}

// Client talks to the provider's authorization, token, and userinfo
// endpoints for a single configured OAuth2 client.
type Client struct {
	oauth       *oauth2.Config
	userinfoURL string
	revokeURL   string
	loginHint   string
	http        *httpclient.Client
}

// NewClient builds a Client from validated configuration.
func NewClient(cfg config.Config) *Client {
	return &Client{
		oauth: &oauth2.Config{
			ClientID:     cfg.Provider.ClientID,
			ClientSecret: cfg.Provider.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.Provider.AuthURL,
				TokenURL: cfg.Provider.TokenURL,
			},
			RedirectURL: cfg.RedirectURI(),
			Scopes:      cfg.Provider.Scopes,
		},
		userinfoURL: cfg.Provider.UserinfoURL,
		revokeURL:   cfg.Provider.RevokeURL,
		loginHint:   cfg.Provider.LoginHint,
		http:        httpclient.NewFromConfig(cfg.HTTP.Timeout),
	}
}

// AuthCodeURL assembles the provider authorization URL for one attempt.
// access_type=offline forces the provider to issue a refresh token; the
// login hint, when configured, pre-fills the provider's account chooser.
func (c *Client) AuthCodeURL(state string, ch Challenge) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("code_challenge", ch.Challenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	}
	if c.loginHint != "" {
		opts = append(opts, oauth2.SetAuthURLParam("login_hint", c.loginHint))
	}
	return c.oauth.AuthCodeURL(state, opts...)
}

// ExchangeCode presents an authorization code and its PKCE verifier to the
// token endpoint. Fails closed: transport errors, OAuth error responses,
// and responses without an access token all come back as errors with no
// partial result.
func (c *Client) ExchangeCode(ctx context.Context, code, verifier string) (*TokenPair, error) {
	tok, err := c.oauth.Exchange(c.httpCtx(ctx), code,
		oauth2.SetAuthURLParam("code_verifier", verifier),
	)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	return pairFromToken(tok)
}

// Refresh exchanges a stored refresh token for a fresh token pair. No PKCE
// material is involved; PKCE protects the code exchange, not refresh.
// Callers must treat any error as the refresh token being dead and fall
// back to an interactive login rather than retrying.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, errors.New("no refresh token")
	}
	src := c.oauth.TokenSource(c.httpCtx(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	pair, err := pairFromToken(tok)
	if err != nil {
		return nil, err
	}
	// Providers often omit the refresh token on refresh; the stored one
	// stays valid in that case.
	if pair.RefreshToken == "" {
		pair.RefreshToken = refreshToken
	}
	return pair, nil
}

// Revoke invalidates a token at the provider's revocation endpoint
// (RFC 7009). A provider without one is a no-op. Revocation is best
// effort: logout proceeds locally whether or not the provider confirms.
func (c *Client) Revoke(ctx context.Context, token string) error {
	if c.revokeURL == "" || strings.TrimSpace(token) == "" {
		return nil
	}
	resp, err := c.http.PostFormCtx(ctx, c.revokeURL, map[string]string{"token": token}, nil)
	if err != nil {
		return fmt.Errorf("token revocation failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("revocation endpoint returned %d: %s", resp.StatusCode, httpclient.SummarizeBody(resp.Body))
	}
	return nil
}

// httpCtx routes the oauth2 transport through our configured HTTP client so
// token calls share the same timeout as every other provider call.
func (c *Client) httpCtx(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, c.http.Std())
}

func pairFromToken(tok *oauth2.Token) (*TokenPair, error) {
	if tok.AccessToken == "" {
		return nil, errors.New("token response missing access token")
	}
	pair := &TokenPair{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		pair.Scopes = strings.Fields(scope)
	}
	return pair, nil
}
