package backlog

import (
	"sort"

	"github.com/ebalint/stork/pkg/models"
)

// HierarchyOption adjusts how a tree is assembled.
type HierarchyOption func(*hierarchyOptions)

type hierarchyOptions struct {
	less func(a, b models.IssueRef) bool
}

// WithChildSort orders every node's children (and the top-level
// buckets) by the given comparison instead of tracker order.
func WithChildSort(less func(a, b models.IssueRef) bool) HierarchyOption {
	return func(o *hierarchyOptions) {
		o.less = less
	}
}

// BuildHierarchy assembles a flat issue list into an Epic→Story→
// Sub-task tree. Issues whose declared parent is absent from the input
// land under Unparented instead of being dropped. Issues that would
// become their own ancestor are detached, flagged Cyclic, and parked
// under Unparented; the builder terminates on any input. Children keep
// tracker order unless a sort option is given. The result is read-only;
// rebuild to reflect new data.
func BuildHierarchy(issues []models.IssueRef, opts ...HierarchyOption) *models.HierarchyTree {
	var options hierarchyOptions
	for _, opt := range opts {
		opt(&options)
	}

	// Arena build: nodes are indexes into the input, children are
	// index lists. No mutable cross-references, which keeps cycle
	// detection a plain index walk.
	index := make(map[string]int, len(issues))
	for i, issue := range issues {
		if _, exists := index[issue.Key]; !exists {
			index[issue.Key] = i
		}
	}

	// Resolve each issue's declared parent to an index, -1 when the
	// reference is absent or points outside the input set.
	parent := make([]int, len(issues))
	for i, issue := range issues {
		parent[i] = -1
		if ref := issue.ParentRef(); ref != "" {
			// A self-reference resolves to i and falls out as a
			// one-node cycle below.
			if pi, ok := index[ref]; ok {
				parent[i] = pi
			}
		}
	}

	// A node is cyclic when walking its parent chain returns to it.
	// The walk is bounded by a visited set, so adversarial input can
	// neither loop nor recurse unboundedly. Flags are computed against
	// the unmodified chain first so that every member of a cycle is
	// flagged, then all flagged nodes are detached together.
	cyclic := make([]bool, len(issues))
	for i := range issues {
		visited := make(map[int]bool)
		for j := parent[i]; j >= 0; j = parent[j] {
			if j == i {
				cyclic[i] = true
				break
			}
			if visited[j] {
				break
			}
			visited[j] = true
		}
	}
	for i := range issues {
		if cyclic[i] {
			parent[i] = -1
		}
	}

	children := make([][]int, len(issues))
	var epicRoots, unparented []int
	for i, issue := range issues {
		switch {
		case parent[i] >= 0:
			children[parent[i]] = append(children[parent[i]], i)
		case issue.Type == models.TypeEpic && !cyclic[i]:
			epicRoots = append(epicRoots, i)
		default:
			unparented = append(unparented, i)
		}
	}

	var build func(i int) *models.HierarchyNode
	build = func(i int) *models.HierarchyNode {
		node := &models.HierarchyNode{Issue: issues[i], Cyclic: cyclic[i]}
		for _, ci := range sortIndexes(children[i], issues, options.less) {
			node.Children = append(node.Children, build(ci))
		}
		return node
	}

	tree := &models.HierarchyTree{}
	for _, i := range sortIndexes(epicRoots, issues, options.less) {
		tree.Epics = append(tree.Epics, build(i))
	}
	for _, i := range sortIndexes(unparented, issues, options.less) {
		tree.Unparented = append(tree.Unparented, build(i))
	}
	return tree
}

// sortIndexes applies the optional sort; without one, input order is
// preserved as-is.
func sortIndexes(idx []int, issues []models.IssueRef, less func(a, b models.IssueRef) bool) []int {
	if less == nil {
		return idx
	}
	sorted := append([]int(nil), idx...)
	sort.SliceStable(sorted, func(a, b int) bool {
		return less(issues[sorted[a]], issues[sorted[b]])
	})
	return sorted
}
