package backlog

import (
	"context"
	"fmt"

	"github.com/ebalint/stork/pkg/models"
)

// Provision creates the drafted tickets in strict topological order:
// every epic first, then stories, then sub-tasks, so that a child is
// never attempted before its parent's key is known. Each draft is
// checked against the tracker for an existing equivalent before a
// create is issued; duplicates are skipped, not recreated.
//
// Individual creation failures never abort the run. A failed draft
// poisons only its descendants, which are marked failed without a
// network call; siblings proceed. Already-created ancestors are not
// rolled back when a descendant fails; partial success is reported,
// and compensation is the caller's decision.
//
// The returned slice holds exactly one result per draft, in draft-list
// order. The only error returns are programmer-error inputs, caught by
// validation before any network call, and a cancellation note when the
// context dies mid-run (the results collected so far are still
// returned, with unprocessed drafts marked failed).
func (e *Engine) Provision(ctx context.Context, drafts []models.TicketDraft) ([]models.ProvisioningResult, error) {
	if err := validateDrafts(drafts); err != nil {
		return nil, err
	}

	results := make([]models.ProvisioningResult, len(drafts))
	for i, d := range drafts {
		results[i] = models.ProvisioningResult{Index: i, Type: d.Type, Summary: d.Summary}
	}

	// resolvedKey is the key a child should link to: the created key,
	// or the existing key when the parent was a duplicate. Owned
	// exclusively by this run; no locking needed.
	resolvedKey := make(map[int]string, len(drafts))
	failed := make(map[int]bool, len(drafts))

	canceled := false
	for _, i := range topologicalOrder(drafts) {
		if canceled || ctx.Err() != nil {
			canceled = true
			results[i].Outcome = models.OutcomeFailed
			results[i].Reason = "provisioning canceled before this draft was processed"
			continue
		}

		draft := drafts[i]

		parentKey := draft.ParentKey
		if draft.ParentIndex != nil {
			pi := *draft.ParentIndex
			if failed[pi] {
				// Fail-fast propagation: no network call for a draft
				// whose parent never resolved.
				failed[i] = true
				results[i].Outcome = models.OutcomeFailed
				results[i].Reason = fmt.Sprintf("parent draft %d failed", pi)
				continue
			}
			parentKey = resolvedKey[pi]
		}

		existing, err := e.tracker.FindDuplicate(ctx, draft, parentKey)
		if err != nil {
			failed[i] = true
			results[i].Outcome = models.OutcomeFailed
			results[i].Reason = fmt.Sprintf("duplicate check failed: %v", err)
			continue
		}
		if existing != "" {
			resolvedKey[i] = existing
			results[i].Outcome = models.OutcomeSkippedDuplicate
			results[i].Key = existing
			continue
		}

		created, err := e.tracker.CreateIssue(ctx, draft, parentKey)
		if err != nil {
			failed[i] = true
			results[i].Outcome = models.OutcomeFailed
			results[i].Reason = fmt.Sprintf("creation failed: %v", err)
			continue
		}

		resolvedKey[i] = created.Key
		results[i].Outcome = models.OutcomeCreated
		results[i].Key = created.Key
	}

	if canceled {
		return results, context.Cause(ctx)
	}
	return results, nil
}

// validateDrafts checks the creation graph before anything touches the
// network: a story must hang under an epic (drafted or existing), a
// sub-task under a story, and index references must stay inside the
// list.
func validateDrafts(drafts []models.TicketDraft) error {
	for i, draft := range drafts {
		requiredParent, ok := parentTypeOf(draft.Type)
		if !ok {
			return &DraftReferenceError{
				Index:  i,
				Reason: fmt.Sprintf("unsupported draft type %q", draft.Type),
			}
		}

		if draft.ParentIndex != nil && draft.ParentKey != "" {
			return &DraftReferenceError{
				Index:  i,
				Reason: "draft references a parent both by index and by key",
			}
		}

		if requiredParent == "" {
			if draft.ParentIndex != nil || draft.ParentKey != "" {
				return &DraftReferenceError{
					Index:  i,
					Reason: fmt.Sprintf("%s drafts cannot reference a parent", draft.Type),
				}
			}
			continue
		}

		if draft.ParentIndex == nil && draft.ParentKey == "" {
			return &DraftReferenceError{
				Index:  i,
				Reason: fmt.Sprintf("%s draft must reference a %s draft or an existing %s key", draft.Type, requiredParent, requiredParent),
			}
		}

		if draft.ParentIndex != nil {
			pi := *draft.ParentIndex
			if pi < 0 || pi >= len(drafts) {
				return &DraftReferenceError{
					Index:  i,
					Reason: fmt.Sprintf("parent index %d is outside the draft list", pi),
				}
			}
			if pi == i {
				return &DraftReferenceError{Index: i, Reason: "draft references itself as parent"}
			}
			if drafts[pi].Type != requiredParent {
				return &DraftReferenceError{
					Index:  i,
					Reason: fmt.Sprintf("%s draft must reference a %s, draft %d is a %s", draft.Type, requiredParent, pi, drafts[pi].Type),
				}
			}
		}
	}
	return nil
}

// parentTypeOf returns the draft type a given type must hang under.
// Epics have no parent; an empty result with ok=true means "no parent
// allowed".
func parentTypeOf(t models.IssueType) (models.IssueType, bool) {
	switch t {
	case models.TypeEpic:
		return "", true
	case models.TypeStory:
		return models.TypeEpic, true
	case models.TypeSubtask:
		return models.TypeStory, true
	default:
		return "", false
	}
}

// topologicalOrder yields draft indexes epics-first, then stories,
// then sub-tasks, stable within each group. Type implies depth here,
// so no general graph sort is needed.
func topologicalOrder(drafts []models.TicketDraft) []int {
	order := make([]int, 0, len(drafts))
	for _, t := range []models.IssueType{models.TypeEpic, models.TypeStory, models.TypeSubtask} {
		for i, d := range drafts {
			if d.Type == t {
				order = append(order, i)
			}
		}
	}
	return order
}
