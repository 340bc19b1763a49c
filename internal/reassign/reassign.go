// Copyright (c) 2025 Gabriel Lawrence
//
// Licensed under the MIT License. See LICENSE file in the project root for full license information.

// reassign.go - Label reassignment workflow.
//
// Reassigner walks every page of groups that currently carry a label and replaces each
// group's assignedLabels with that single label. Pages are fetched one at a time and
// the groups on a page are patched sequentially before the next page is requested.
//
// Failure handling differs by call site:
// - A page fetch that exhausts its retry budget aborts the run with *paging.FetchError.
//   Groups patched on earlier pages stay patched; later pages are never requested.
// - A group patch that exhausts its retry budget is written to the failure sink and
//   the run moves on to the next group.
//
// Usage Example:
//   r := &reassign.Reassigner{Directory: client, Sink: sink, Policy: retry.DefaultPolicy, PageSize: 100, Out: os.Stdout}
//   summary, err := r.Run(ctx, labelID)
//   if err != nil {
//       logging.MainLogger.Error("Run aborted", "error", err, "reassigned", summary.Reassigned)
//   }

package reassign

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gebl/label-reassigner/internal/failurelog"
	"github.com/gebl/label-reassigner/internal/graph"
	"github.com/gebl/label-reassigner/internal/logging"
	"github.com/gebl/label-reassigner/internal/paging"
	"github.com/gebl/label-reassigner/internal/retry"
)

const (
	// DefaultPageSize is the $top value used when PageSize is unset.
	DefaultPageSize = 100
	// MaxPageSize is the largest $top the directory accepts for groups.
	MaxPageSize = 999
)

// Directory is the subset of the directory API the workflow needs.
type Directory interface {
	FetchGroupsPage(ctx context.Context, query string) (paging.Page[graph.Group], error)
	PatchAssignedLabels(ctx context.Context, groupID, labelID string) error
}

// Summary reports what a run did.
type Summary struct {
	Pages      int
	Groups     int
	Reassigned int
	Failed     int
	Started    time.Time
	Finished   time.Time
}

// Duration returns the wall-clock length of the run.
func (s Summary) Duration() time.Duration {
	if s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

// Reassigner drives the reassignment of one label across all groups holding it.
type Reassigner struct {
	Directory Directory
	Sink      failurelog.Sink // receives one record per permanently failed group
	Policy    retry.Policy    // used for page fetches and group patches alike
	PageSize  int
	Out       io.Writer // per-group progress lines; nil discards them

	now func() time.Time
}

func (r *Reassigner) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}

func (r *Reassigner) validate(labelID string) error {
	if labelID == "" {
		return fmt.Errorf("label id cannot be empty")
	}
	if r.Directory == nil {
		return fmt.Errorf("directory client is required")
	}
	if r.PageSize < 0 || r.PageSize > MaxPageSize {
		return fmt.Errorf("page size must be between 0 (default) and %d, got %d", MaxPageSize, r.PageSize)
	}
	return r.Policy.Validate()
}

func (r *Reassigner) stream(labelID string) *paging.PageStream[graph.Group] {
	pageSize := r.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}
	first := paging.FirstQuery(paging.BuildFilter(labelID), pageSize)
	return paging.Stream(r.Directory.FetchGroupsPage, first, r.Policy)
}

// Run reassigns labelID to every group that currently holds it.
// The only errors returned are validation errors, *paging.FetchError and
// context cancellation; per-group failures are recorded in Sink instead.
func (r *Reassigner) Run(ctx context.Context, labelID string) (Summary, error) {
	summary := Summary{Started: r.clock()}
	if err := r.validate(labelID); err != nil {
		return summary, err
	}
	if r.Sink == nil {
		return summary, fmt.Errorf("failure sink is required")
	}

	logging.ReassignLogger.Info("Starting label reassignment",
		"label_id", labelID,
		"page_size", r.PageSize,
		"max_attempts", r.Policy.MaxAttempts,
		"retry_delay", r.Policy.Delay)

	stream := r.stream(labelID)
	for stream.Next(ctx) {
		page := stream.Page()
		summary.Pages = stream.Pages()
		logging.ReassignLogger.Debug("Processing page", "page", summary.Pages, "groups", len(page.Items))

		for _, group := range page.Items {
			if err := ctx.Err(); err != nil {
				summary.Finished = r.clock()
				return summary, err
			}
			ok, err := r.reassign(ctx, group, labelID)
			if err != nil {
				summary.Finished = r.clock()
				return summary, err
			}
			summary.Groups++
			if ok {
				summary.Reassigned++
			} else {
				summary.Failed++
			}
		}
	}
	summary.Finished = r.clock()
	if err := ctx.Err(); err != nil {
		return summary, err
	}

	if err := stream.Err(); err != nil {
		logging.ReassignLogger.Error("Run aborted by page fetch failure",
			"error", err,
			"pages", summary.Pages,
			"reassigned", summary.Reassigned,
			"failed", summary.Failed)
		return summary, err
	}

	logging.ReassignLogger.Info("Label reassignment complete",
		"pages", summary.Pages,
		"groups", summary.Groups,
		"reassigned", summary.Reassigned,
		"failed", summary.Failed,
		"duration", summary.Duration())
	return summary, nil
}

// reassign patches one group and reports whether it succeeded. A non-nil error
// means ctx ended before the retry budget was spent; no record is written then.
func (r *Reassigner) reassign(ctx context.Context, group graph.Group, labelID string) (bool, error) {
	err := retry.Do(ctx, r.Policy, func(ctx context.Context) error {
		return r.Directory.PatchAssignedLabels(ctx, group.ID, labelID)
	})
	if err == nil {
		logging.ReassignLogger.Debug("Group reassigned", "group_id", group.ID, "display_name", group.DisplayName)
		r.printf("✓ reassigned %s (%s)\n", group.DisplayName, group.ID)
		return true, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		logging.ReassignLogger.Info("Interrupted while patching group", "group_id", group.ID, "error", ctxErr)
		return false, ctxErr
	}

	rec := failureRecord(group, err, r.clock())
	logging.ReassignLogger.Warn("Group reassignment failed",
		"group_id", group.ID,
		"display_name", group.DisplayName,
		"error_code", rec.ErrorCode,
		"error", rec.RawError)
	r.printf("✗ failed %s (%s): %s\n", group.DisplayName, group.ID, rec.RawError)

	if sinkErr := r.Sink.Append(rec); sinkErr != nil {
		logging.ReassignLogger.Error("Failed to write failure record", "group_id", group.ID, "error", sinkErr)
	}
	return false, nil
}

// failureRecord builds the sink entry for a patch that exhausted its retries.
func failureRecord(group graph.Group, err error, at time.Time) failurelog.FailureRecord {
	rec := failurelog.FailureRecord{
		GroupID:          group.ID,
		GroupDisplayName: group.DisplayName,
		RawError:         err.Error(),
		Timestamp:        at,
	}
	var exhausted *retry.ExhaustedError
	if errors.As(err, &exhausted) {
		rec.RawError = exhausted.Err.Error()
	}
	var apiErr *graph.APIError
	if errors.As(err, &apiErr) {
		rec.ErrorCode = apiErr.Code
		rec.ErrorMessage = apiErr.Message
	}
	return rec
}

// DryRun walks the same pages Run would without patching anything.
// visit is called for every group in page order.
func (r *Reassigner) DryRun(ctx context.Context, labelID string, visit func(graph.Group)) (Summary, error) {
	summary := Summary{Started: r.clock()}
	if err := r.validate(labelID); err != nil {
		return summary, err
	}

	stream := r.stream(labelID)
	for stream.Next(ctx) {
		summary.Pages = stream.Pages()
		for _, group := range stream.Page().Items {
			summary.Groups++
			if visit != nil {
				visit(group)
			}
		}
	}
	summary.Finished = r.clock()
	return summary, stream.Err()
}

func (r *Reassigner) printf(format string, args ...any) {
	if r.Out == nil {
		return
	}
	fmt.Fprintf(r.Out, format, args...)
}
