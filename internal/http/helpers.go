// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// helpers.go - Shared HTTP utilities for response cleanup and status handling.
//
// internal/graph issues the directory API's list and patch requests as raw HTTP.
// These helpers keep response bodies from leaking and read them with a size bound.
//
// Usage Example:
//   var body []byte
//   err := httputils.WithAutoCleanup(resp, func(resp *http.Response) error {
//       var readErr error
//       body, readErr = httputils.ReadBody(resp)
//       return readErr
//   })

package http

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MaxBodyBytes bounds how much of a response body is read into memory.
const MaxBodyBytes = 8 << 20

// WithAutoCleanup executes fn with resp and always closes the body afterwards.
func WithAutoCleanup(resp *http.Response, fn func(*http.Response) error) error {
	if resp == nil {
		return fmt.Errorf("nil response provided")
	}
	defer resp.Body.Close()
	return fn(resp)
}

// ReadBody reads up to MaxBodyBytes of the response body.
func ReadBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// DrainAndClose discards whatever is left of the body so the connection can be reused.
func DrainAndClose(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, MaxBodyBytes))
	resp.Body.Close()
}

// IsSuccess reports whether status is a 2xx code.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP date.
// It returns zero when the header is absent or unparsable.
func RetryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
