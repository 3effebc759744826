package jira

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ebalint/stork/pkg/models"
)

// BuildJQL translates a canonical filter into the tracker's query
// language. The output is deterministic: the same descriptor always
// yields byte-identical JQL. Absent fields are omitted entirely and
// every value is escaped against injection into the query syntax.
func BuildJQL(project string, issueType models.IssueType, filter models.FilterDescriptor) string {
	clauses := []string{}

	if project != "" {
		clauses = append(clauses, fmt.Sprintf("project = %s", quoteJQL(project)))
	}

	clauses = append(clauses, typeClause(issueType))

	// Labels combine with AND: an issue must carry every requested
	// label. Sorting keeps equal filters byte-identical.
	labels := append([]string(nil), filter.Labels...)
	sort.Strings(labels)
	for _, label := range labels {
		clauses = append(clauses, fmt.Sprintf("labels = %s", quoteJQL(label)))
	}

	if filter.Assignee != "" {
		clauses = append(clauses, fmt.Sprintf("assignee = %s", quoteJQL(filter.Assignee)))
	}
	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status = %s", quoteJQL(string(filter.Status))))
	}

	return strings.Join(clauses, " AND ")
}

// typeClause maps an issue type to its JQL restriction. The Task
// partition covers both plain tasks and sub-tasks, mirroring how the
// tracker files them.
func typeClause(t models.IssueType) string {
	if t == models.TypeTask {
		return fmt.Sprintf("issuetype in (%s, %s)",
			quoteJQL(string(models.TypeTask)), quoteJQL(string(models.TypeSubtask)))
	}
	return fmt.Sprintf("issuetype = %s", quoteJQL(string(t)))
}

// duplicateJQL builds the probe used before creating a ticket: same
// project, same type, same parent. The summary clause narrows the
// candidate set; exact matching happens on the results, since the
// tracker's ~ operator is a fuzzy text match.
func duplicateJQL(project string, t models.IssueType, parentKey, summary string) string {
	clauses := []string{
		fmt.Sprintf("project = %s", quoteJQL(project)),
		fmt.Sprintf("issuetype = %s", quoteJQL(string(t))),
	}

	if parentKey != "" {
		switch t {
		case models.TypeSubtask:
			clauses = append(clauses, fmt.Sprintf("parent = %s", quoteJQL(parentKey)))
		default:
			clauses = append(clauses, fmt.Sprintf("%q = %s", "Epic Link", quoteJQL(parentKey)))
		}
	}

	// Quoting the phrase inside the value asks for an exact-phrase
	// text match rather than term matching.
	clauses = append(clauses, fmt.Sprintf(`summary ~ %s`, quoteJQL(`"`+summary+`"`)))

	return strings.Join(clauses, " AND ")
}

// quoteJQL renders a value as a quoted JQL string. Backslashes and
// quotes are escaped; control characters are dropped since the query
// language has no way to express them.
func quoteJQL(value string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range value {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '"':
			b.WriteString(`\"`)
		case r < 0x20 || r == 0x7f:
			// dropped
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
