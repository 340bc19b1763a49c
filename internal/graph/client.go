// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// client.go - Directory API client for groups and their sensitivity labels.
//
// Client issues raw REST calls so the wire format stays exactly what the directory
// expects: filtered group listing with server-driven continuation links, and a PATCH
// that replaces a group's assignedLabels collection. Response payloads are decoded
// with the Microsoft Graph SDK models.
//
// Every request carries the run's AuthContext. The token is never refreshed here;
// a run uses a single token from start to finish.
//
// Usage Example:
//   client := graph.NewClient(graph.DefaultBaseURL, authCtx)
//   client.Limiter = graph.NewRateLimiter(5, 1)
//
//   page, err := client.FetchGroupsPage(ctx, query)
//   if err != nil {
//       logging.GraphLogger.Error("Failed to list groups", "error", err)
//   }

package graph

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	abstractions "github.com/microsoft/kiota-abstractions-go"

	"github.com/gebl/label-reassigner/internal/auth"
	"github.com/gebl/label-reassigner/internal/logging"
)

// DefaultBaseURL is the directory API root.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// DefaultTimeout bounds a single HTTP request.
const DefaultTimeout = 60 * time.Second

// Client handles directory API requests for groups.
type Client struct {
	BaseURL    string           // API root without trailing slash
	HTTPClient *http.Client     // Transport for REST calls
	Auth       auth.AuthContext // Bearer token for every request
	Limiter    *RateLimiter     // Optional request pacing; nil disables it
}

// NewClient creates a directory client for baseURL using authCtx.
func NewClient(baseURL string, authCtx auth.AuthContext) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	logging.GraphLogger.Debug("Creating directory client",
		"base_url", baseURL,
		"token_length", len(authCtx.BearerToken),
		"token_expiry", authCtx.Expiry.Format(time.RFC3339))
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
		Auth:       authCtx,
	}
}

// StaticTokenProvider implements the kiota AuthenticationProvider interface for a fixed token.
// Used with the Microsoft Graph Go SDK.
type StaticTokenProvider struct {
	AccessToken string
}

// AuthenticateRequest adds the Authorization header to the request.
func (s *StaticTokenProvider) AuthenticateRequest(ctx context.Context, request *abstractions.RequestInformation, additionalAuthenticationContext map[string]interface{}) error {
	if request == nil {
		return fmt.Errorf("request cannot be nil")
	}
	if request.Headers == nil {
		return fmt.Errorf("request headers cannot be nil")
	}
	if s.AccessToken == "" {
		return fmt.Errorf("access token cannot be empty")
	}
	request.Headers.Add("Authorization", "Bearer "+s.AccessToken)
	return nil
}
