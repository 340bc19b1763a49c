// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package graph

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_MakeAuthenticatedRequest(t *testing.T) {
	t.Run("sets auth and content headers", func(t *testing.T) {
		var got http.Header
		client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Clone()
			w.WriteHeader(http.StatusNoContent)
		})

		resp, err := client.MakeAuthenticatedRequest(context.Background(), http.MethodGet, srv.URL+"/groups", nil)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, "Bearer test-token", got.Get("Authorization"))
		assert.Equal(t, "application/json", got.Get("Content-Type"))
	})

	t.Run("missing token", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", testAuth())
		client.Auth.BearerToken = ""
		_, err := client.MakeAuthenticatedRequest(context.Background(), http.MethodGet, client.GroupsURL(), nil)
		assert.ErrorContains(t, err, "authentication required")
	})

	t.Run("invalid method", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", testAuth())
		_, err := client.MakeAuthenticatedRequest(context.Background(), "INVALID\nMETHOD", client.GroupsURL(), nil)
		assert.ErrorContains(t, err, "invalid method")
	})

	t.Run("cancelled context", func(t *testing.T) {
		client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := client.MakeAuthenticatedRequest(ctx, http.MethodGet, srv.URL, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestClient_HandleHTTPResponse(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantErr     bool
		wantCode    string
		wantMessage string
		wantText    string
	}{
		{name: "200 OK", status: http.StatusOK},
		{name: "204 No Content", status: http.StatusNoContent},
		{
			name:        "OData error envelope",
			status:      http.StatusBadRequest,
			body:        `{"error":{"code":"Request_BadRequest","message":"Invalid label id."}}`,
			wantErr:     true,
			wantCode:    "Request_BadRequest",
			wantMessage: "Invalid label id.",
			wantText:    "update group labels failed: HTTP 400 - Request_BadRequest: Invalid label id.",
		},
		{
			name:     "plain text body",
			status:   http.StatusInternalServerError,
			body:     "upstream exploded",
			wantErr:  true,
			wantText: "update group labels failed: HTTP 500 - upstream exploded",
		},
		{
			name:     "empty body",
			status:   http.StatusForbidden,
			wantErr:  true,
			wantText: "update group labels failed: HTTP 403",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient("", testAuth())
			resp := &http.Response{
				StatusCode: tt.status,
				Header:     http.Header{},
				Body:       io.NopCloser(strings.NewReader(tt.body)),
			}

			err := client.HandleHTTPResponse(resp, "update group labels")
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantCode, apiErr.Code)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.EqualError(t, err, tt.wantText)
		})
	}
}

func TestClient_HandleHTTPResponse_Throttled(t *testing.T) {
	client := NewClient("", testAuth())
	client.Limiter = NewRateLimiter(0, 1)

	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{"1"}},
		Body:       io.NopCloser(strings.NewReader(`{"error":{"code":"TooManyRequests","message":"slow down"}}`)),
	}
	err := client.HandleHTTPResponse(resp, "list groups")
	require.Error(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, client.Limiter.Wait(ctx), context.DeadlineExceeded)
}

func TestDecodeODataError(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantCode    string
		wantMessage string
	}{
		{name: "full envelope", body: `{"error":{"code":"Authorization_RequestDenied","message":"Insufficient privileges."}}`, wantCode: "Authorization_RequestDenied", wantMessage: "Insufficient privileges."},
		{name: "code only", body: `{"error":{"code":"Request_ResourceNotFound"}}`, wantCode: "Request_ResourceNotFound"},
		{name: "not json", body: "<html>bad gateway</html>"},
		{name: "empty", body: ""},
		{name: "no error member", body: `{"value":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, message := decodeODataError([]byte(tt.body))
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMessage, message)
		})
	}
}

func TestClient_LimiterAppliesToRequests(t *testing.T) {
	client, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	client.Limiter = NewRateLimiter(0, 1)
	client.Limiter.RecordRetryAfter(40 * time.Millisecond)

	start := time.Now()
	resp, err := client.MakeAuthenticatedRequest(context.Background(), http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.GreaterOrEqual(t, time.Since(start), 35*time.Millisecond)
}
