package github

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebalint/stork/pkg/models"
)

func TestAssembleDraftsWiresChildren(t *testing.T) {
	issues := []Issue{
		{
			Number: 10,
			Title:  "Payments",
			Labels: []string{"epic"},
			Body: "Payment epic.\n\n## Issues\n\n" +
				"- https://github.com/acme/backlog/issues/11\n" +
				"- https://github.com/acme/backlog/issues/12\n",
		},
		{
			Number: 11,
			Title:  "Login flow",
			Labels: []string{"story"},
			Body: "## Issues\n\n" +
				"- https://github.com/acme/backlog/issues/13\n",
		},
		{Number: 12, Title: "Checkout", Labels: []string{"story"}},
		{Number: 13, Title: "Add form", Labels: []string{"subtask"}},
	}

	drafts, err := AssembleDrafts(issues, "github.com")
	require.NoError(t, err)
	require.Len(t, drafts, 4)

	assert.Equal(t, models.TypeEpic, drafts[0].Type)
	assert.Equal(t, "Payments", drafts[0].Summary)
	assert.Nil(t, drafts[0].ParentIndex)

	require.NotNil(t, drafts[1].ParentIndex)
	assert.Equal(t, 0, *drafts[1].ParentIndex)
	require.NotNil(t, drafts[2].ParentIndex)
	assert.Equal(t, 0, *drafts[2].ParentIndex)

	assert.Equal(t, models.TypeSubtask, drafts[3].Type)
	require.NotNil(t, drafts[3].ParentIndex)
	assert.Equal(t, 1, *drafts[3].ParentIndex)
}

func TestAssembleDraftsSkipsUnlabeledIssues(t *testing.T) {
	issues := []Issue{
		{Number: 1, Title: "Payments", Labels: []string{"epic"}},
		{Number: 2, Title: "Random bug report", Labels: []string{"bug"}},
		{Number: 3, Title: "No labels at all"},
	}

	drafts, err := AssembleDrafts(issues, "github.com")
	require.NoError(t, err)
	require.Len(t, drafts, 1)
	assert.Equal(t, "Payments", drafts[0].Summary)
}

func TestAssembleDraftsIgnoresWrongTypeChildren(t *testing.T) {
	issues := []Issue{
		{
			Number: 1,
			Title:  "Payments",
			Labels: []string{"epic"},
			Body: "## Issues\n\n" +
				"- https://github.com/acme/backlog/issues/2\n" + // subtask, not story
				"- https://github.com/acme/backlog/issues/99\n", // not drafted
		},
		{Number: 2, Title: "Add form", Labels: []string{"subtask"}},
	}

	drafts, err := AssembleDrafts(issues, "github.com")
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Nil(t, drafts[1].ParentIndex, "an epic may only claim stories")
}

func TestAssembleDraftsLabelMatchingIsCaseInsensitive(t *testing.T) {
	issues := []Issue{
		{Number: 1, Title: "Payments", Labels: []string{"Epic"}},
		{Number: 2, Title: "Add form", Labels: []string{"Sub-Task"}},
	}

	drafts, err := AssembleDrafts(issues, "github.com")
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, models.TypeEpic, drafts[0].Type)
	assert.Equal(t, models.TypeSubtask, drafts[1].Type)
}

func TestParseChildIssues(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		domain string
		want   []int
	}{
		{
			name:   "no issues section",
			body:   "Just a description.",
			domain: "github.com",
			want:   nil,
		},
		{
			name: "section ends at the next header",
			body: "## Issues\n\n" +
				"- https://github.com/acme/backlog/issues/7\n\n" +
				"## Notes\n\n" +
				"- https://github.com/acme/backlog/issues/8\n",
			domain: "github.com",
			want:   []int{7},
		},
		{
			name: "foreign domains are ignored",
			body: "## Issues\n\n" +
				"- https://github.com/acme/backlog/issues/7\n" +
				"- https://git.acme.dev/acme/backlog/issues/8\n",
			domain: "git.acme.dev",
			want:   []int{8},
		},
		{
			name: "multiple links in one line",
			body: "## Issues\n" +
				"see https://github.com/acme/backlog/issues/1 and https://github.com/acme/backlog/issues/2",
			domain: "github.com",
			want:   []int{1, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseChildIssues(tt.body, tt.domain))
		})
	}
}
