// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// http.go - HTTP utilities for the directory API client.
//
// Key Features:
// - Authenticated request creation with the run's bearer token and JSON content type
// - Request pacing through the optional RateLimiter
// - Retry-After capture on throttling responses
// - Structured APIError construction for non-2xx responses
//
// Usage Example:
//   resp, err := c.MakeAuthenticatedRequest(ctx, http.MethodGet, url, nil)
//   if err != nil {
//       return err
//   }
//   return httputils.WithAutoCleanup(resp, func(resp *http.Response) error {
//       return c.HandleHTTPResponse(resp, "list groups")
//   })

package graph

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gebl/label-reassigner/internal/auth"
	httputils "github.com/gebl/label-reassigner/internal/http"
	"github.com/gebl/label-reassigner/internal/logging"
)

// MakeAuthenticatedRequest creates and executes a request carrying the run's token.
func (c *Client) MakeAuthenticatedRequest(ctx context.Context, method, url string, body io.Reader) (*http.Response, error) {
	if c.Auth.BearerToken == "" {
		return nil, fmt.Errorf("authentication required: no bearer token available")
	}

	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		logging.GraphLogger.Debug("Failed to create HTTP request", "error", err)
		return nil, err
	}
	contentType := c.Auth.ContentType
	if contentType == "" {
		contentType = auth.ContentTypeJSON
	}
	req.Header.Set("Authorization", c.Auth.AuthorizationHeader())
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", auth.ContentTypeJSON)

	httpClient := c.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	logging.GraphLogger.Debug("Sending request", "method", method, "url", url)
	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		logging.GraphLogger.Debug("Request failed", "method", method, "url", url, "error", err)
		return nil, err
	}
	logging.GraphLogger.Debug("Response received",
		"method", method,
		"status", resp.StatusCode,
		"request_id", resp.Header.Get("request-id"),
		"duration", time.Since(start))
	return resp, nil
}

// HandleHTTPResponse turns a non-2xx response into an *APIError.
// Throttling responses push back the rate limiter by their Retry-After delay.
func (c *Client) HandleHTTPResponse(resp *http.Response, operation string) error {
	if httputils.IsSuccess(resp.StatusCode) {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		if d := httputils.RetryAfter(resp.Header, time.Now()); d > 0 {
			logging.GraphLogger.Warn("Directory API throttled request", "operation", operation, "retry_after", d)
			c.Limiter.RecordRetryAfter(d)
		}
	}
	body, err := httputils.ReadBody(resp)
	if err != nil {
		logging.GraphLogger.Debug("Failed to read error body", "error", err)
	}
	apiErr := newAPIError(operation, resp.StatusCode, body)
	logging.GraphLogger.Debug("Error response",
		"operation", operation,
		"status", resp.StatusCode,
		"code", apiErr.Code,
		"body", string(body))
	return apiErr
}
