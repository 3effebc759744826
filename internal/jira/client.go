// Package jira implements the tracker side of the engine: an
// authenticated, retrying transport and a thin client for JQL search,
// duplicate probing, and ticket creation.
package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	gojira "github.com/andygrunwald/go-jira"
	"github.com/trivago/tgo/tcontainer"
	"golang.org/x/oauth2"

	"github.com/ebalint/stork/pkg/models"
)

// Config carries everything needed to talk to one Jira instance. It is
// passed in explicitly; the client keeps no ambient state.
type Config struct {
	BaseURL  string
	Username string
	Token    string

	// AuthMode is "basic" or "bearer".
	AuthMode string

	// Project is the project key used for queries and creation.
	Project string

	// EpicLinkField is the custom field carrying epic links.
	EpicLinkField string

	// PageSize is the maxResults value sent per search page.
	// Defaults to 50.
	PageSize int

	// MaxPages caps pagination as a guard against an upstream that
	// reports a bogus total. Defaults to 100.
	MaxPages int

	Retry RetryConfig
}

// Client provides access to the tracker through the resilient
// transport. All methods are safe for concurrent use.
type Client struct {
	client        *gojira.Client
	project       string
	epicLinkField string
	pageSize      int
	maxPages      int
}

// NewClient builds an authenticated client. The retry transport wraps
// the auth transport so that every attempt is authenticated
// independently.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("jira base URL not configured")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("jira API token not configured")
	}

	var base http.RoundTripper
	switch cfg.AuthMode {
	case "bearer":
		base = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}),
		}
	default:
		base = &gojira.BasicAuthTransport{
			Username: cfg.Username,
			Password: cfg.Token,
		}
	}

	httpClient := &http.Client{Transport: NewRetryTransport(base, cfg.Retry)}

	jc, err := gojira.NewClient(httpClient, cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create jira client: %w", err)
	}

	if cfg.EpicLinkField == "" {
		cfg.EpicLinkField = "customfield_10014"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = 100
	}

	return &Client{
		client:        jc,
		project:       cfg.Project,
		epicLinkField: cfg.EpicLinkField,
		pageSize:      cfg.PageSize,
		maxPages:      cfg.MaxPages,
	}, nil
}

// SearchIssues returns every issue of the given type matching the
// filter, aggregated across all pages in tracker-returned order.
func (c *Client) SearchIssues(ctx context.Context, issueType models.IssueType, filter models.FilterDescriptor) ([]models.IssueRef, error) {
	jql := BuildJQL(c.project, issueType, filter)
	return c.searchAll(ctx, jql)
}

// searchAll pages through a JQL search until the reported total is
// reached, an empty page comes back, or the page cap is hit. On a
// transport error the aggregated prefix travels with the FetchError;
// no partial result is returned as a success.
func (c *Client) searchAll(ctx context.Context, jql string) ([]models.IssueRef, error) {
	var collected []models.IssueRef

	startAt := 0
	for page := 0; page < c.maxPages; page++ {
		opts := &gojira.SearchOptions{
			StartAt:    startAt,
			MaxResults: c.pageSize,
			Fields:     c.searchFields(),
		}

		issues, resp, err := c.client.Issue.SearchWithContext(ctx, jql, opts)
		if err != nil {
			return nil, &FetchError{Partial: collected, Err: c.classify(err, resp)}
		}

		for _, issue := range issues {
			collected = append(collected, c.toIssueRef(issue))
		}

		if len(issues) == 0 || startAt+len(issues) >= resp.Total {
			return collected, nil
		}
		startAt += len(issues)
	}

	// Page cap reached: the upstream's total disagrees with what it
	// actually serves. Return what we have.
	return collected, nil
}

// FindDuplicate checks whether a ticket equivalent to the draft
// already exists under the given parent (empty for epics). Equivalence
// is a case-sensitive exact summary match plus same type and parent.
// Returns the existing key, or "" when there is none.
func (c *Client) FindDuplicate(ctx context.Context, draft models.TicketDraft, parentKey string) (string, error) {
	jql := duplicateJQL(c.project, draft.Type, parentKey, draft.Summary)

	candidates, err := c.searchAll(ctx, jql)
	if err != nil {
		return "", err
	}

	for _, candidate := range candidates {
		if candidate.Summary == draft.Summary && candidate.Type == draft.Type {
			return candidate.Key, nil
		}
	}
	return "", nil
}

// CreateIssue creates one ticket. Sub-tasks link to their parent
// through the parent field, stories to their epic through the epic
// link custom field. The tracker assigns the key.
func (c *Client) CreateIssue(ctx context.Context, draft models.TicketDraft, parentKey string) (models.IssueRef, error) {
	fields := &gojira.IssueFields{
		Project: gojira.Project{Key: c.project},
		Type:    gojira.IssueType{Name: string(draft.Type)},
		Summary: draft.Summary,
		Labels:  draft.Labels,
	}
	if draft.Description != "" {
		fields.Description = draft.Description
	}

	if parentKey != "" {
		switch draft.Type {
		case models.TypeSubtask:
			fields.Parent = &gojira.Parent{Key: parentKey}
		default:
			fields.Unknowns = tcontainer.MarshalMap{c.epicLinkField: parentKey}
		}
	}

	created, resp, err := c.client.Issue.CreateWithContext(ctx, &gojira.Issue{Fields: fields})
	if err != nil {
		return models.IssueRef{}, c.classify(err, resp)
	}

	return models.IssueRef{
		Key:       created.Key,
		ID:        created.ID,
		Type:      draft.Type,
		Summary:   draft.Summary,
		Labels:    draft.Labels,
		ParentKey: parentKey,
		URL:       created.Self,
	}, nil
}

func (c *Client) searchFields() []string {
	return []string{"summary", "status", "assignee", "labels", "issuetype", "parent", c.epicLinkField}
}

// toIssueRef converts a raw tracker issue into the engine's immutable
// reference type.
func (c *Client) toIssueRef(issue gojira.Issue) models.IssueRef {
	ref := models.IssueRef{
		Key: issue.Key,
		ID:  issue.ID,
		URL: issue.Self,
	}

	if issue.Fields == nil {
		return ref
	}

	ref.Summary = issue.Fields.Summary
	ref.Labels = issue.Fields.Labels

	if t, ok := models.ParseIssueType(issue.Fields.Type.Name); ok {
		ref.Type = t
	} else {
		ref.Type = models.IssueType(issue.Fields.Type.Name)
	}

	if issue.Fields.Status != nil {
		ref.Status = issue.Fields.Status.Name
	}
	if issue.Fields.Assignee != nil {
		if issue.Fields.Assignee.Name != "" {
			ref.Assignee = issue.Fields.Assignee.Name
		} else {
			ref.Assignee = issue.Fields.Assignee.DisplayName
		}
	}
	if issue.Fields.Parent != nil {
		ref.ParentKey = issue.Fields.Parent.Key
	}
	if raw, ok := issue.Fields.Unknowns[c.epicLinkField]; ok {
		if key, ok := raw.(string); ok {
			ref.EpicKey = key
		}
	}

	return ref
}

// classify maps a tracker error onto the engine's taxonomy: transient
// failures pass through from the transport, non-retryable 4xx becomes
// a PermanentFailure, everything else stays as-is.
func (c *Client) classify(err error, resp *gojira.Response) error {
	var transient *TransientFailure
	if errors.As(err, &transient) {
		return transient
	}

	if resp != nil && resp.Response != nil {
		code := resp.StatusCode
		if code >= 400 && code < 500 && code != http.StatusTooManyRequests {
			return &PermanentFailure{StatusCode: code, Body: err.Error()}
		}
	}

	return err
}
