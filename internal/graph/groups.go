// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	jsonserialization "github.com/microsoft/kiota-serialization-json-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"

	httputils "github.com/gebl/label-reassigner/internal/http"
	"github.com/gebl/label-reassigner/internal/logging"
	"github.com/gebl/label-reassigner/internal/paging"
)

// Group is a directory group as returned by the filtered listing.
type Group struct {
	ID          string
	DisplayName string
}

// LabelRef identifies a sensitivity label inside a group's assignedLabels collection.
type LabelRef struct {
	LabelID string `json:"labelId"`
}

type assignedLabelsPatch struct {
	AssignedLabels []LabelRef `json:"assignedLabels"`
}

// GroupsURL returns the group collection endpoint.
func (c *Client) GroupsURL() string {
	return c.BaseURL + "/groups"
}

// GroupURL returns the endpoint for a single group.
func (c *Client) GroupURL(groupID string) string {
	return c.GroupsURL() + "/" + url.PathEscape(groupID)
}

// FetchGroupsPage issues GET /groups?<query> and decodes one page.
// The query is sent exactly as given; it is either the first-page query or
// the cursor cut from a previous page's next link.
func (c *Client) FetchGroupsPage(ctx context.Context, query string) (paging.Page[Group], error) {
	endpoint := c.GroupsURL()
	if query != "" {
		endpoint += "?" + query
	}

	resp, err := c.MakeAuthenticatedRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return paging.Page[Group]{}, fmt.Errorf("list groups failed: %w", err)
	}

	var body []byte
	err = httputils.WithAutoCleanup(resp, func(resp *http.Response) error {
		if err := c.HandleHTTPResponse(resp, "list groups"); err != nil {
			return err
		}
		var readErr error
		body, readErr = httputils.ReadBody(resp)
		return readErr
	})
	if err != nil {
		return paging.Page[Group]{}, err
	}

	page, err := decodeGroupPage(body)
	if err != nil {
		return paging.Page[Group]{}, err
	}
	logging.GraphLogger.Debug("Decoded group page",
		"groups", len(page.Items),
		"has_next", page.NextCursor != "")
	return page, nil
}

// decodeGroupPage parses a group collection response into a Page.
func decodeGroupPage(body []byte) (paging.Page[Group], error) {
	node, err := jsonserialization.NewJsonParseNode(body)
	if err != nil {
		return paging.Page[Group]{}, fmt.Errorf("failed to parse group page: %w", err)
	}
	parsed, err := node.GetObjectValue(models.CreateGroupCollectionResponseFromDiscriminatorValue)
	if err != nil {
		return paging.Page[Group]{}, fmt.Errorf("failed to decode group page: %w", err)
	}
	collection, ok := parsed.(models.GroupCollectionResponseable)
	if !ok || collection == nil {
		return paging.Page[Group]{}, fmt.Errorf("failed to decode group page: unexpected payload")
	}

	page := paging.Page[Group]{}
	for _, g := range collection.GetValue() {
		if g == nil {
			continue
		}
		group := Group{}
		if id := g.GetId(); id != nil {
			group.ID = *id
		}
		if name := g.GetDisplayName(); name != nil {
			group.DisplayName = *name
		}
		if group.ID == "" {
			logging.GraphLogger.Warn("Skipping group without id", "display_name", group.DisplayName)
			continue
		}
		page.Items = append(page.Items, group)
	}
	if next := collection.GetOdataNextLink(); next != nil {
		page.NextCursor = *next
	}
	return page, nil
}

// PatchAssignedLabels replaces the group's assignedLabels with exactly labelID.
// Any other labels on the group are removed.
func (c *Client) PatchAssignedLabels(ctx context.Context, groupID, labelID string) error {
	if groupID == "" {
		return fmt.Errorf("group id cannot be empty")
	}
	payload, err := json.Marshal(assignedLabelsPatch{AssignedLabels: []LabelRef{{LabelID: labelID}}})
	if err != nil {
		return fmt.Errorf("failed to encode label patch: %w", err)
	}

	resp, err := c.MakeAuthenticatedRequest(ctx, http.MethodPatch, c.GroupURL(groupID), bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("update group labels failed: %w", err)
	}
	defer httputils.DrainAndClose(resp)
	if err := c.HandleHTTPResponse(resp, "update group labels"); err != nil {
		return err
	}
	logging.GraphLogger.Debug("Group labels updated", "group_id", groupID, "status", resp.StatusCode)
	return nil
}
