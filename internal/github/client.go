// Package github turns labeled GitHub issues into ticket drafts for
// provisioning. Issues labeled epic, story, or subtask become drafts
// of that type; an "## Issues" section in an epic or story body links
// its children by issue URL.
package github

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	gogithub "github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"

	"github.com/ebalint/stork/internal/config"
	"github.com/ebalint/stork/internal/logging"
	"github.com/ebalint/stork/pkg/models"
)

// Issue is the slice of a GitHub issue the draft builder needs.
type Issue struct {
	Number int
	Title  string
	Body   string
	Labels []string
}

// Client reads issues from a GitHub repository.
type Client struct {
	client *gogithub.Client
	domain string
}

// NewClient builds an authenticated client for github.com or a GitHub
// Enterprise domain.
func NewClient(cfg *config.Config) (*Client, error) {
	if err := cfg.ValidateGitHub(); err != nil {
		return nil, err
	}

	domain := cfg.GitHub.Domain
	if domain == "" {
		domain = "github.com"
	}

	apiURL := "https://api.github.com/"
	if domain != "github.com" {
		apiURL = fmt.Sprintf("https://%s/api/v3/", domain)
	}

	logging.Debug("github configuration",
		"domain", domain,
		"api_url", apiURL,
		"token", logging.MaskSensitive(cfg.GitHub.Token))

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.GitHub.Token})
	tc := oauth2.NewClient(context.Background(), ts)

	client := gogithub.NewClient(tc)
	if domain != "github.com" {
		parsed, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = parsed
		client.UploadURL = parsed
	}

	return &Client{client: client, domain: domain}, nil
}

// CollectDrafts fetches the repository's open issues and assembles
// ticket drafts from those labeled epic, story, or subtask. The
// repository is "owner/repo".
func (c *Client) CollectDrafts(ctx context.Context, repository string) ([]models.TicketDraft, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 {
		return nil, fmt.Errorf("invalid repository format: %s, expected owner/repo", repository)
	}
	owner, repo := parts[0], parts[1]

	opts := &gogithub.IssueListByRepoOptions{
		State:       "open",
		ListOptions: gogithub.ListOptions{PerPage: 100},
	}

	var issues []Issue
	for {
		page, resp, err := c.client.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch github issues: %w", err)
		}

		for _, issue := range page {
			// The issues API also returns pull requests.
			if issue.PullRequestLinks != nil {
				continue
			}
			labels := make([]string, 0, len(issue.Labels))
			for _, label := range issue.Labels {
				labels = append(labels, label.GetName())
			}
			issues = append(issues, Issue{
				Number: issue.GetNumber(),
				Title:  issue.GetTitle(),
				Body:   issue.GetBody(),
				Labels: labels,
			})
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	logging.Info("fetched github issues",
		"repository", repository,
		"count", len(issues))

	return AssembleDrafts(issues, c.domain)
}

// AssembleDrafts converts labeled issues into drafts and wires child
// references from "## Issues" sections into parent indexes. Issues
// without a recognized type label are skipped. Child links that point
// at an issue of the wrong type (or one that is not drafted) are
// ignored rather than guessed at.
func AssembleDrafts(issues []Issue, domain string) ([]models.TicketDraft, error) {
	var drafts []models.TicketDraft
	draftIndex := make(map[int]int) // issue number -> draft index

	for _, issue := range issues {
		t, ok := draftType(issue.Labels)
		if !ok {
			logging.Debug("skipping issue without type label",
				"issue_number", issue.Number,
				"title", issue.Title)
			continue
		}
		draftIndex[issue.Number] = len(drafts)
		drafts = append(drafts, models.TicketDraft{
			Type:        t,
			Summary:     issue.Title,
			Description: issue.Body,
		})
	}

	for _, issue := range issues {
		di, ok := draftIndex[issue.Number]
		if !ok {
			continue
		}
		childType, ok := childTypeOf(drafts[di].Type)
		if !ok {
			continue
		}

		for _, childNum := range parseChildIssues(issue.Body, domain) {
			ci, ok := draftIndex[childNum]
			if !ok {
				logging.Warn("child reference points at an undrafted issue",
					"parent", issue.Number,
					"child", childNum)
				continue
			}
			if drafts[ci].Type != childType {
				logging.Warn("child reference has the wrong type",
					"parent", issue.Number,
					"child", childNum,
					"want", childType,
					"got", drafts[ci].Type)
				continue
			}
			parent := di
			drafts[ci].ParentIndex = &parent
		}
	}

	return drafts, nil
}

// draftType maps issue labels onto a draft type. Label matching is
// case-insensitive; the first match in epic→story→subtask order wins.
func draftType(labels []string) (models.IssueType, bool) {
	switch {
	case hasLabel(labels, "epic"):
		return models.TypeEpic, true
	case hasLabel(labels, "story"):
		return models.TypeStory, true
	case hasLabel(labels, "subtask"), hasLabel(labels, "sub-task"):
		return models.TypeSubtask, true
	default:
		return "", false
	}
}

// childTypeOf returns the draft type an "## Issues" section of the
// given type may reference.
func childTypeOf(t models.IssueType) (models.IssueType, bool) {
	switch t {
	case models.TypeEpic:
		return models.TypeStory, true
	case models.TypeStory:
		return models.TypeSubtask, true
	default:
		return "", false
	}
}

func hasLabel(labels []string, target string) bool {
	for _, label := range labels {
		if strings.EqualFold(label, target) {
			return true
		}
	}
	return false
}
