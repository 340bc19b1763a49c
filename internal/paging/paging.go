// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// paging.go - Cursor-driven iteration over a filtered directory collection.
//
// The directory returns an @odata.nextLink with every page except the last. The link
// is a complete query for the following page, so pagination state is the current full
// query string rather than a page index: the first request uses FirstQuery and every
// later request uses CursorQuery(nextLink) verbatim.
//
// Each page fetch runs under a retry policy. When the budget is exhausted the stream
// stops with a *FetchError and yields nothing further.
//
// Usage Example:
//   stream := paging.Stream(client.FetchGroupsPage, paging.FirstQuery(paging.BuildFilter(labelID), 100), retry.DefaultPolicy)
//   for stream.Next(ctx) {
//       for _, group := range stream.Page().Items {
//           ...
//       }
//   }
//   if err := stream.Err(); err != nil {
//       return err
//   }

package paging

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/gebl/label-reassigner/internal/logging"
	"github.com/gebl/label-reassigner/internal/retry"
)

// SelectFields is the projection requested for every group.
const SelectFields = "id,displayName"

// ErrCursorLoop reports a continuation link that points back at the page just read.
var ErrCursorLoop = errors.New("server returned a continuation link identical to the current query")

// Page is one server response. An empty NextCursor marks the final page.
type Page[T any] struct {
	Items      []T
	NextCursor string
}

// FetchFunc retrieves the page addressed by query.
type FetchFunc[T any] func(ctx context.Context, query string) (Page[T], error)

// FetchError is a page fetch that failed after its retry budget. It ends the run.
type FetchError struct {
	Page  int    // 1-based number of the page that could not be read
	Query string // query that was being fetched
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching page %d failed: %v", e.Page, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// BuildFilter returns the OData filter matching groups that carry labelID.
func BuildFilter(labelID string) string {
	return "assignedLabels/any(x:x/labelId eq '" + strings.ReplaceAll(labelID, "'", "''") + "')"
}

// FirstQuery builds the query string for the first page.
func FirstQuery(filter string, pageSize int) string {
	return "$top=" + strconv.Itoa(pageSize) +
		"&$select=" + SelectFields +
		"&$filter=" + escapeQueryValue(filter)
}

func escapeQueryValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// CursorQuery extracts the next request's query from a continuation link:
// everything from the first '$'. Links without a '$' fall back to the part after '?'.
func CursorQuery(nextLink string) string {
	if i := strings.IndexByte(nextLink, '$'); i >= 0 {
		return nextLink[i:]
	}
	if i := strings.IndexByte(nextLink, '?'); i >= 0 {
		return nextLink[i+1:]
	}
	return nextLink
}

// PageStream is a lazy, finite, non-restartable sequence of pages.
type PageStream[T any] struct {
	fetch  FetchFunc[T]
	policy retry.Policy

	query   string
	page    Page[T]
	fetched int
	final   bool  // the last page has been yielded
	pending error // reported on the call after the current page
	err     error
	done    bool
}

// Stream returns a PageStream that starts at firstQuery.
func Stream[T any](fetch FetchFunc[T], firstQuery string, policy retry.Policy) *PageStream[T] {
	return &PageStream[T]{
		fetch:  fetch,
		policy: policy,
		query:  firstQuery,
	}
}

// Next fetches the following page. It returns false when the sequence is
// exhausted or has failed; check Err to tell the two apart.
func (s *PageStream[T]) Next(ctx context.Context) bool {
	if s.done {
		return false
	}
	if s.final || s.pending != nil {
		s.err = s.pending
		s.done = true
		s.page = Page[T]{}
		return false
	}

	number := s.fetched + 1
	query := s.query
	logging.PagingLogger.Debug("Fetching page", "page", number, "query", query)

	page, err := retry.Execute(ctx, s.policy, func(ctx context.Context) (Page[T], error) {
		return s.fetch(ctx, query)
	})
	if err != nil {
		logging.PagingLogger.Error("Page fetch failed", "page", number, "error", err)
		s.err = &FetchError{Page: number, Query: query, Err: err}
		s.done = true
		s.page = Page[T]{}
		return false
	}

	s.fetched = number
	s.page = page
	if page.NextCursor == "" {
		s.final = true
		logging.PagingLogger.Debug("Reached last page", "page", number, "items", len(page.Items))
		return true
	}

	next := CursorQuery(page.NextCursor)
	if next == query {
		s.pending = &FetchError{Page: number + 1, Query: next, Err: ErrCursorLoop}
	}
	s.query = next
	logging.PagingLogger.Debug("Page fetched", "page", number, "items", len(page.Items), "next_query", next)
	return true
}

// Page returns the page read by the last successful call to Next.
func (s *PageStream[T]) Page() Page[T] {
	return s.page
}

// Pages returns how many pages have been fetched so far.
func (s *PageStream[T]) Pages() int {
	return s.fetched
}

// Err returns the *FetchError that ended the stream, or nil.
func (s *PageStream[T]) Err() error {
	return s.err
}
