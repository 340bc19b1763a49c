// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package graph

import (
	"context"
	"fmt"

	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	msgraphsdkcore "github.com/microsoftgraph/msgraph-sdk-go-core"
)

// Organization identifies the tenant the token was issued for.
type Organization struct {
	ID          string
	DisplayName string
}

// NewSDKClient builds a Graph SDK client that shares this client's token and base URL.
func (c *Client) NewSDKClient() (*msgraphsdk.GraphServiceClient, error) {
	authProvider := &StaticTokenProvider{AccessToken: c.Auth.BearerToken}
	adapter, err := msgraphsdkcore.NewGraphRequestAdapterBase(authProvider, msgraphsdkcore.GraphClientOptions{
		GraphServiceVersion: "v1.0",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Graph request adapter: %w", err)
	}
	adapter.SetBaseUrl(c.BaseURL)
	return msgraphsdk.NewGraphServiceClient(adapter), nil
}

// Preflight reads the signed-in tenant's organization record.
// It confirms the token is accepted before any group is touched.
func (c *Client) Preflight(ctx context.Context) (Organization, error) {
	if err := c.Limiter.Wait(ctx); err != nil {
		return Organization{}, fmt.Errorf("waiting for rate limiter: %w", err)
	}
	sdk, err := c.NewSDKClient()
	if err != nil {
		return Organization{}, err
	}
	result, err := sdk.Organization().Get(ctx, nil)
	if err != nil {
		return Organization{}, fromSDKError("read organization", err)
	}

	orgs := result.GetValue()
	if len(orgs) == 0 || orgs[0] == nil {
		return Organization{}, fmt.Errorf("read organization failed: no organization visible to this token")
	}
	org := Organization{}
	if id := orgs[0].GetId(); id != nil {
		org.ID = *id
	}
	if name := orgs[0].GetDisplayName(); name != nil {
		org.DisplayName = *name
	}
	return org, nil
}
