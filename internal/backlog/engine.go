// Package backlog is the engine core: it validates filters, fetches
// and assembles the Epic→Story→Sub-task backlog, and drives ordered,
// duplicate-suppressed ticket provisioning. The tracker sits behind
// the Tracker interface so every front end (CLI, import flow, tests)
// depends on the same three operations and none embeds tracker
// specifics.
package backlog

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ebalint/stork/pkg/models"
)

// Tracker is the capability the engine needs from an issue tracker.
// Implementations must route every call through a transport that
// retries transient failures.
type Tracker interface {
	// SearchIssues returns all issues of one type matching the filter,
	// aggregated across pages in tracker-returned order.
	SearchIssues(ctx context.Context, issueType models.IssueType, filter models.FilterDescriptor) ([]models.IssueRef, error)

	// FindDuplicate returns the key of an existing issue equivalent to
	// the draft under the given parent, or "" when there is none.
	FindDuplicate(ctx context.Context, draft models.TicketDraft, parentKey string) (string, error)

	// CreateIssue creates one ticket and returns its reference with
	// the tracker-assigned key.
	CreateIssue(ctx context.Context, draft models.TicketDraft, parentKey string) (models.IssueRef, error)
}

// Engine bundles the backlog operations over one tracker. A single
// Engine serves concurrent invocations; all per-run state lives in the
// call.
type Engine struct {
	tracker Tracker
}

// New builds an Engine on top of a tracker.
func New(tracker Tracker) *Engine {
	return &Engine{tracker: tracker}
}

// fetchPartitions are the issue-type slices of a backlog fetch. The
// Task partition covers plain tasks and sub-tasks.
var fetchPartitions = []models.IssueType{
	models.TypeEpic,
	models.TypeStory,
	models.TypeTask,
}

// FetchBacklog retrieves the full backlog matching the filter. The
// three type partitions are independent and fetched concurrently;
// pages within one partition are strictly sequential because each page
// request depends on the previous cursor. Results keep partition order
// (epics, stories, tasks) and tracker order within each partition.
//
// Any partition failure aborts the fetch: the caller gets the error,
// not a silently incomplete backlog.
func (e *Engine) FetchBacklog(ctx context.Context, filter models.FilterDescriptor) ([]models.IssueRef, error) {
	partitions := make([][]models.IssueRef, len(fetchPartitions))

	g, gctx := errgroup.WithContext(ctx)
	for i, issueType := range fetchPartitions {
		i, issueType := i, issueType
		g.Go(func() error {
			issues, err := e.tracker.SearchIssues(gctx, issueType, filter)
			if err != nil {
				return err
			}
			partitions[i] = issues
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var combined []models.IssueRef
	for _, p := range partitions {
		combined = append(combined, p...)
	}
	return combined, nil
}

// FetchHierarchy is the common fetch-then-assemble path: one backlog
// fetch, one tree build.
func (e *Engine) FetchHierarchy(ctx context.Context, filter models.FilterDescriptor, opts ...HierarchyOption) (*models.HierarchyTree, error) {
	issues, err := e.FetchBacklog(ctx, filter)
	if err != nil {
		return nil, err
	}
	return BuildHierarchy(issues, opts...), nil
}
