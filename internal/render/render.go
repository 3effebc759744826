// Package render turns a hierarchy tree into report output. It
// consumes the tree as plain data; nothing here reaches back into the
// engine.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ebalint/stork/pkg/models"
)

// Markdown renders the tree as a nested bullet list, epics first,
// unparented issues in their own trailing section.
func Markdown(tree *models.HierarchyTree) string {
	var b strings.Builder

	b.WriteString("# Backlog\n\n")
	if len(tree.Epics) == 0 && len(tree.Unparented) == 0 {
		b.WriteString("No issues matched.\n")
		return b.String()
	}

	for _, node := range tree.Epics {
		writeNode(&b, node, 0)
	}

	if len(tree.Unparented) > 0 {
		b.WriteString("\n## Unparented\n\n")
		for _, node := range tree.Unparented {
			writeNode(&b, node, 0)
		}
	}

	return b.String()
}

func writeNode(b *strings.Builder, node *models.HierarchyNode, depth int) {
	b.WriteString(strings.Repeat("  ", depth))
	fmt.Fprintf(b, "- **%s** %s", node.Issue.Key, node.Issue.Summary)
	if node.Issue.Status != "" {
		fmt.Fprintf(b, " _(%s)_", node.Issue.Status)
	}
	if node.Cyclic {
		b.WriteString(" `cyclic`")
	}
	b.WriteString("\n")

	for _, child := range node.Children {
		writeNode(b, child, depth+1)
	}
}

// JSON renders the tree as indented JSON.
func JSON(tree *models.HierarchyTree) ([]byte, error) {
	return json.MarshalIndent(tree, "", "  ")
}
