// Package models defines data structures shared across the application.
package models

import "strings"

// IssueType is the tracker issue type of a ticket.
type IssueType string

const (
	TypeEpic    IssueType = "Epic"
	TypeStory   IssueType = "Story"
	TypeSubtask IssueType = "Sub-task"
	TypeTask    IssueType = "Task"
)

// ParseIssueType matches a string against the known issue types,
// ignoring case. The second return value reports whether the input
// matched.
func ParseIssueType(s string) (IssueType, bool) {
	for _, t := range []IssueType{TypeEpic, TypeStory, TypeSubtask, TypeTask} {
		if strings.EqualFold(s, string(t)) {
			return t, true
		}
	}
	return "", false
}

// Status is a tracker workflow status.
type Status string

const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusDone       Status = "Done"
	StatusBacklog    Status = "Backlog"
	StatusSelected   Status = "Selected for Development"
)

// KnownStatuses lists every status the engine accepts in a filter.
var KnownStatuses = []Status{
	StatusToDo,
	StatusInProgress,
	StatusDone,
	StatusBacklog,
	StatusSelected,
}

// ParseStatus matches a string against the known statuses, ignoring
// case, and returns the canonical form.
func ParseStatus(s string) (Status, bool) {
	for _, st := range KnownStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, true
		}
	}
	return "", false
}

// IssueRef is an immutable reference to an issue that exists in the
// tracker. A status change in the tracker produces a new IssueRef on
// the next fetch; instances are never mutated after construction.
type IssueRef struct {
	// Key is the full tracker identifier (e.g., "PROJ-123").
	Key string `json:"key"`

	// ID is the numeric tracker ID.
	ID string `json:"id"`

	// Type is the issue type.
	Type IssueType `json:"type"`

	// Summary is the issue's title field.
	Summary string `json:"summary"`

	// Status is the current workflow status name.
	Status string `json:"status,omitempty"`

	// Assignee is the assigned user, empty if unassigned.
	Assignee string `json:"assignee,omitempty"`

	// Labels attached to the issue.
	Labels []string `json:"labels,omitempty"`

	// ParentKey is the direct parent issue key (sub-tasks).
	ParentKey string `json:"parent_key,omitempty"`

	// EpicKey is the epic link key (stories under an epic).
	EpicKey string `json:"epic_key,omitempty"`

	// URL is the tracker's self link for the issue.
	URL string `json:"url,omitempty"`
}

// ParentRef returns the key this issue hangs under: the direct parent
// if set, otherwise the epic link. Empty means the issue declares no
// parent.
func (r IssueRef) ParentRef() string {
	if r.ParentKey != "" {
		return r.ParentKey
	}
	return r.EpicKey
}

// FilterDescriptor is a validated, canonical backlog filter. All
// fields are independently optional; a zero value means unconstrained.
// Labels are deduplicated and sorted so that equal filters translate
// to byte-identical queries.
type FilterDescriptor struct {
	Labels   []string
	Assignee string
	Status   Status
}

// TicketDraft is an unvalidated definition of a ticket to create.
// Because parent tickets may not exist yet, a draft can reference its
// parent either by index into the same draft list (ParentIndex) or by
// the key of an issue that already exists in the tracker (ParentKey).
type TicketDraft struct {
	Type        IssueType `json:"type"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Labels      []string  `json:"labels,omitempty"`

	// ParentIndex references another draft in the same list.
	ParentIndex *int `json:"parent_index,omitempty"`

	// ParentKey references an issue that already exists.
	ParentKey string `json:"parent_key,omitempty"`
}

// Outcome is the per-draft result of a provisioning run.
type Outcome string

const (
	OutcomeCreated          Outcome = "created"
	OutcomeSkippedDuplicate Outcome = "skipped_duplicate"
	OutcomeFailed           Outcome = "failed"
)

// ProvisioningResult records what happened to a single draft. A run
// produces exactly one result per draft, in draft-list order, and the
// results are immutable once returned.
type ProvisioningResult struct {
	// Index is the position of the draft in the input list.
	Index int `json:"index"`

	// Type and Summary identify the draft for reporting.
	Type    IssueType `json:"type"`
	Summary string    `json:"summary"`

	// Outcome is created, skipped_duplicate, or failed.
	Outcome Outcome `json:"outcome"`

	// Key is the created key, or the existing key for a duplicate.
	Key string `json:"key,omitempty"`

	// Reason explains a failed outcome.
	Reason string `json:"reason,omitempty"`
}

// HierarchyNode wraps one issue plus its ordered children.
type HierarchyNode struct {
	Issue IssueRef `json:"issue"`

	// Cyclic marks a node that was parked under Unparented because
	// attaching it would have made it its own ancestor.
	Cyclic bool `json:"cyclic,omitempty"`

	Children []*HierarchyNode `json:"children,omitempty"`
}

// HierarchyTree is the read-only result of assembling a flat issue
// list. Epics are the roots; issues whose parent could not be resolved
// within the input set land under Unparented rather than being
// dropped. Rebuilding is the only way to reflect new data.
type HierarchyTree struct {
	Epics      []*HierarchyNode `json:"epics"`
	Unparented []*HierarchyNode `json:"unparented,omitempty"`
}

// Size returns the total number of nodes in the tree.
func (t *HierarchyTree) Size() int {
	n := 0
	var walk func(nodes []*HierarchyNode)
	walk = func(nodes []*HierarchyNode) {
		for _, node := range nodes {
			n++
			walk(node.Children)
		}
	}
	walk(t.Epics)
	walk(t.Unparented)
	return n
}
