// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gebl/label-reassigner/internal/logging"
)

const (
	unknownPath = "unknown"
	// expiryBuffer treats tokens this close to expiry as already expired.
	expiryBuffer = 60 * time.Second
)

// TokenCache is the on-disk token file format.
type TokenCache struct {
	TenantID     string `json:"tenant_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Expiry       int64  `json:"expiry"` // Unix timestamp
}

// IsExpiredAt reports whether the access token is unusable at now.
func (tc *TokenCache) IsExpiredAt(now time.Time) bool {
	if tc.AccessToken == "" {
		return true
	}
	return now.Unix() > tc.Expiry-int64(expiryBuffer/time.Second)
}

// SaveTokens writes the cache to path with owner-only permissions.
func (tc *TokenCache) SaveTokens(path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = unknownPath
	}

	logging.AuthLogger.Debug("Saving tokens to cache",
		"path", path,
		"absolute_path", absPath,
		"access_token", maskSensitiveData(tc.AccessToken),
		"refresh_token", maskSensitiveData(tc.RefreshToken),
		"expires_at", time.Unix(tc.Expiry, 0).Format(time.RFC3339))

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create token cache %s: %w", absPath, err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(tc); err != nil {
		return fmt.Errorf("failed to encode token cache %s: %w", absPath, err)
	}
	return nil
}

// LoadTokens reads a token cache from path.
func LoadTokens(path string) (*TokenCache, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	tc := &TokenCache{}
	if err := json.NewDecoder(f).Decode(tc); err != nil {
		return nil, fmt.Errorf("failed to decode token cache %s: %w", path, err)
	}

	logging.AuthLogger.Debug("Tokens loaded from cache",
		"path", path,
		"tenant", tc.TenantID,
		"access_token", maskSensitiveData(tc.AccessToken),
		"refresh_token_available", tc.RefreshToken != "",
		"expires_at", time.Unix(tc.Expiry, 0).Format(time.RFC3339))
	return tc, nil
}
