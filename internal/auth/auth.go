// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// auth.go - Bearer token acquisition against the Microsoft identity platform.
//
// Provider exchanges a tenant identifier for an AuthContext that every directory call
// reuses for the rest of the run. The token is acquired once and never refreshed
// mid-run.
//
// Acquisition order:
// 1. Cached access token (when a cache path is configured and the token is still valid)
// 2. Cached refresh token exchanged for a new access token
// 3. OAuth 2.0 device authorization grant: the user opens the verification URL
//    printed on the prompt writer and enters the displayed code
//
// The client is a well-known public client, so no secret is involved. The scope is
// the directory API resource's ".default" scope plus offline_access.
//
// Usage Example:
//   provider := auth.NewProvider(auth.DefaultClientID, auth.DefaultAuthority, auth.DefaultResource)
//   provider.CachePath = "tokens.json"
//   authCtx, err := provider.Acquire(ctx, tenantID)
//   if err != nil {
//       logging.AuthLogger.Error("Sign-in failed", "error", err)
//   }

package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/gebl/label-reassigner/internal/logging"
)

const (
	// DefaultClientID is the public client registered for directory administration tooling.
	DefaultClientID = "1b730954-1685-4b74-9bfd-dac224a7b894"
	// DefaultAuthority is the Microsoft identity platform host.
	DefaultAuthority = "https://login.microsoftonline.com"
	// DefaultResource is the directory API resource URI.
	DefaultResource = "https://graph.microsoft.com"
	// ContentTypeJSON is sent with every directory request.
	ContentTypeJSON = "application/json"
	// DefaultTokenLifetime is assumed when the identity provider omits expires_in.
	DefaultTokenLifetime = time.Hour
)

// AuthContext carries the bearer token used by all directory requests in a run.
// It is immutable after creation and safe to pass by value.
type AuthContext struct {
	BearerToken string
	Expiry      time.Time
	ContentType string
}

// AuthorizationHeader returns the value for the Authorization header.
func (a AuthContext) AuthorizationHeader() string {
	return "Bearer " + a.BearerToken
}

// AuthError is a fatal sign-in failure. It is never retried.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (%s): %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Provider acquires tokens for a tenant.
type Provider struct {
	ClientID   string
	Authority  string
	Resource   string
	CachePath  string       // Optional token cache file; empty disables caching
	Prompt     io.Writer    // Receives device sign-in instructions
	HTTPClient *http.Client // Optional client for identity requests

	now func() time.Time
}

// NewProvider creates a Provider. Empty arguments fall back to the defaults.
func NewProvider(clientID, authority, resource string) *Provider {
	if clientID == "" {
		clientID = DefaultClientID
	}
	if authority == "" {
		authority = DefaultAuthority
	}
	if resource == "" {
		resource = DefaultResource
	}
	logging.AuthLogger.Debug("Initializing token provider",
		"client_id", maskSensitiveData(clientID),
		"authority", authority,
		"resource", resource,
		"flow_type", "device_code")
	return &Provider{
		ClientID:  clientID,
		Authority: strings.TrimRight(authority, "/"),
		Resource:  strings.TrimRight(resource, "/"),
		Prompt:    os.Stderr,
		now:       time.Now,
	}
}

func (p *Provider) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}

// oauthConfig builds the OAuth2 configuration for tenantID.
func (p *Provider) oauthConfig(tenantID string) *oauth2.Config {
	base := p.Authority + "/" + url.PathEscape(tenantID) + "/oauth2/v2.0"
	return &oauth2.Config{
		ClientID: p.ClientID,
		Endpoint: oauth2.Endpoint{
			AuthURL:       base + "/authorize",
			TokenURL:      base + "/token",
			DeviceAuthURL: base + "/devicecode",
			AuthStyle:     oauth2.AuthStyleInParams,
		},
		Scopes: []string{p.Resource + "/.default", "offline_access"},
	}
}

func (p *Provider) withHTTPClient(ctx context.Context) context.Context {
	if p.HTTPClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.HTTPClient)
}

// Acquire returns an AuthContext for tenantID or an *AuthError.
func (p *Provider) Acquire(ctx context.Context, tenantID string) (AuthContext, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return AuthContext{}, &AuthError{Op: "validate", Err: errors.New("tenant id cannot be empty")}
	}
	ctx = p.withHTTPClient(ctx)
	now := p.clock()

	if p.CachePath != "" {
		if authCtx, ok := p.fromCache(ctx, tenantID, now); ok {
			return authCtx, nil
		}
	}

	logging.AuthLogger.Info("Starting device code sign-in", "tenant", tenantID)
	tok, err := p.deviceLogin(ctx, tenantID)
	if err != nil {
		return AuthContext{}, &AuthError{Op: "device code sign-in", Err: err}
	}
	authCtx, err := newAuthContext(tok.AccessToken, tok.Expiry, now)
	if err != nil {
		return AuthContext{}, err
	}
	p.store(tenantID, tok)
	logging.AuthLogger.Info("Signed in", "tenant", tenantID, "expires_at", authCtx.Expiry.Format(time.RFC3339))
	return authCtx, nil
}

// fromCache tries the cached access token, then the cached refresh token.
func (p *Provider) fromCache(ctx context.Context, tenantID string, now time.Time) (AuthContext, bool) {
	cached, err := LoadTokens(p.CachePath)
	if err != nil {
		logging.AuthLogger.Debug("No usable token cache", "path", p.CachePath, "error", err)
		return AuthContext{}, false
	}
	if cached.TenantID != "" && !strings.EqualFold(cached.TenantID, tenantID) {
		logging.AuthLogger.Info("Cached token belongs to another tenant, ignoring it",
			"cached_tenant", cached.TenantID, "tenant", tenantID)
		return AuthContext{}, false
	}

	if !cached.IsExpiredAt(now) {
		authCtx, err := newAuthContext(cached.AccessToken, time.Unix(cached.Expiry, 0), now)
		if err == nil {
			logging.AuthLogger.Info("Using cached access token", "expires_at", authCtx.Expiry.Format(time.RFC3339))
			return authCtx, true
		}
	}

	if cached.RefreshToken == "" {
		return AuthContext{}, false
	}
	logging.AuthLogger.Info("Cached access token expired, refreshing")
	tok, err := p.oauthConfig(tenantID).TokenSource(ctx, &oauth2.Token{RefreshToken: cached.RefreshToken}).Token()
	if err != nil {
		logging.AuthLogger.Warn("Token refresh failed, falling back to device sign-in", "error", err)
		return AuthContext{}, false
	}
	authCtx, err := newAuthContext(tok.AccessToken, tok.Expiry, now)
	if err != nil {
		logging.AuthLogger.Warn("Refreshed token is unusable", "error", err)
		return AuthContext{}, false
	}
	p.store(tenantID, tok)
	return authCtx, true
}

// deviceLogin runs the device authorization grant.
func (p *Provider) deviceLogin(ctx context.Context, tenantID string) (*oauth2.Token, error) {
	cfg := p.oauthConfig(tenantID)
	da, err := cfg.DeviceAuth(ctx)
	if err != nil {
		return nil, fmt.Errorf("device authorization request failed: %w", err)
	}
	logging.AuthLogger.Debug("Device authorization issued",
		"verification_uri", da.VerificationURI,
		"interval", da.Interval,
		"expires_at", da.Expiry)

	if p.Prompt != nil {
		fmt.Fprintf(p.Prompt, "To sign in, open %s and enter the code %s\n", da.VerificationURI, da.UserCode)
	}

	tok, err := cfg.DeviceAccessToken(ctx, da)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	return tok, nil
}

func (p *Provider) store(tenantID string, tok *oauth2.Token) {
	if p.CachePath == "" {
		return
	}
	expiry := tok.Expiry
	if expiry.IsZero() {
		expiry = p.clock().Add(DefaultTokenLifetime)
	}
	cache := &TokenCache{
		TenantID:     tenantID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       expiry.Unix(),
	}
	if err := cache.SaveTokens(p.CachePath); err != nil {
		logging.AuthLogger.Warn("Failed to save tokens", "path", p.CachePath, "error", err)
	}
}

// StaticAuth builds an AuthContext from a token acquired outside this program.
// A zero expiry is treated as DefaultTokenLifetime from now.
func StaticAuth(token string, expiry time.Time) (AuthContext, error) {
	return newAuthContext(token, expiry, time.Now())
}

func newAuthContext(token string, expiry, now time.Time) (AuthContext, error) {
	if strings.TrimSpace(token) == "" {
		return AuthContext{}, &AuthError{Op: "validate token", Err: errors.New("identity provider returned an empty access token")}
	}
	if expiry.IsZero() {
		logging.AuthLogger.Debug("Token carries no expiry, assuming default lifetime", "lifetime", DefaultTokenLifetime)
		expiry = now.Add(DefaultTokenLifetime)
	}
	if !expiry.After(now) {
		return AuthContext{}, &AuthError{Op: "validate token", Err: fmt.Errorf("access token expired at %s", expiry.Format(time.RFC3339))}
	}
	return AuthContext{BearerToken: token, Expiry: expiry, ContentType: ContentTypeJSON}, nil
}

// maskSensitiveData masks sensitive configuration values for logging
func maskSensitiveData(value string) string {
	if value == "" {
		return "<empty>"
	}
	if len(value) <= 8 {
		return "***"
	}
	return value[:4] + "***" + value[len(value)-4:]
}
