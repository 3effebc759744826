package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ebalint/stork/pkg/models"
)

// fakeIssue is the wire shape the fake tracker serves.
type fakeIssue struct {
	Key     string
	Type    string
	Summary string
	Parent  string
	Epic    string
}

func (f fakeIssue) toJSON() map[string]any {
	fields := map[string]any{
		"summary":   f.Summary,
		"issuetype": map[string]any{"name": f.Type},
		"status":    map[string]any{"name": "To Do"},
		"labels":    []string{},
	}
	if f.Parent != "" {
		fields["parent"] = map[string]any{"key": f.Parent}
	}
	if f.Epic != "" {
		fields["customfield_10014"] = f.Epic
	}
	return map[string]any{
		"id":     f.Key,
		"key":    f.Key,
		"self":   "https://jira.example.com/browse/" + f.Key,
		"fields": fields,
	}
}

// serveSearch writes one page of a search response, honoring startAt
// and maxResults from the request.
func serveSearch(w http.ResponseWriter, r *http.Request, issues []fakeIssue) {
	startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
	maxResults, _ := strconv.Atoi(r.URL.Query().Get("maxResults"))
	if maxResults <= 0 {
		maxResults = 50
	}

	end := startAt + maxResults
	if end > len(issues) {
		end = len(issues)
	}
	page := []map[string]any{}
	if startAt < len(issues) {
		for _, issue := range issues[startAt:end] {
			page = append(page, issue.toJSON())
		}
	}

	json.NewEncoder(w).Encode(map[string]any{
		"startAt":    startAt,
		"maxResults": maxResults,
		"total":      len(issues),
		"issues":     page,
	})
}

func testClient(t *testing.T, srvURL string, pageSize int) *Client {
	t.Helper()
	client, err := NewClient(Config{
		BaseURL:  srvURL,
		Username: "bot",
		Token:    "token",
		Project:  "PROJ",
		PageSize: pageSize,
		Retry: RetryConfig{
			InitialInterval: time.Millisecond,
			AttemptTimeout:  time.Second,
		},
	})
	require.NoError(t, err)
	return client
}

func TestSearchIssuesAggregatesAllPages(t *testing.T) {
	backlog := []fakeIssue{
		{Key: "PROJ-1", Type: "Story", Summary: "First"},
		{Key: "PROJ-2", Type: "Story", Summary: "Second"},
		{Key: "PROJ-3", Type: "Story", Summary: "Third"},
		{Key: "PROJ-4", Type: "Story", Summary: "Fourth"},
		{Key: "PROJ-5", Type: "Story", Summary: "Fifth"},
	}

	var pages int32
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&pages, 1)
		serveSearch(w, r, backlog)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv.URL, 2)

	issues, err := client.SearchIssues(context.Background(), models.TypeStory, models.FilterDescriptor{})
	require.NoError(t, err)

	require.Len(t, issues, 5)
	for i, issue := range issues {
		assert.Equal(t, backlog[i].Key, issue.Key, "page order and within-page order must be preserved")
		assert.Equal(t, models.TypeStory, issue.Type)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&pages), "five issues at page size two is three pages")
}

func TestSearchIssuesStopsOnEmptyPage(t *testing.T) {
	// An upstream that reports a total it never serves must not loop.
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"startAt": 0, "maxResults": 50, "total": 999,
			"issues": []any{},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv.URL, 50)

	issues, err := client.SearchIssues(context.Background(), models.TypeStory, models.FilterDescriptor{})
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestSearchIssuesAttachesPartialBufferOnFailure(t *testing.T) {
	backlog := []fakeIssue{
		{Key: "PROJ-1", Type: "Story", Summary: "First"},
		{Key: "PROJ-2", Type: "Story", Summary: "Second"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		if startAt > 0 {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"errorMessages":["bad cursor"]}`)
			return
		}
		// Report a total one beyond what is served so the fetcher
		// asks for a second page.
		page := []map[string]any{backlog[0].toJSON(), backlog[1].toJSON()}
		json.NewEncoder(w).Encode(map[string]any{
			"startAt": 0, "maxResults": 2, "total": 3, "issues": page,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv.URL, 2)

	_, err := client.SearchIssues(context.Background(), models.TypeStory, models.FilterDescriptor{})
	require.Error(t, err)

	var fetchErr *FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Len(t, fetchErr.Partial, 2, "issues aggregated before the failing page travel with the error")

	var permanent *PermanentFailure
	assert.ErrorAs(t, err, &permanent)
	assert.Equal(t, http.StatusBadRequest, permanent.StatusCode)
}

func TestSearchIssuesSurfacesTransientFailure(t *testing.T) {
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv.URL, 50)

	_, err := client.SearchIssues(context.Background(), models.TypeStory, models.FilterDescriptor{})
	require.Error(t, err)

	var transient *TransientFailure
	require.ErrorAs(t, err, &transient)
	assert.Equal(t, 3, transient.Attempts)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFindDuplicateMatchesExactSummary(t *testing.T) {
	candidates := []fakeIssue{
		{Key: "PROJ-7", Type: "Story", Summary: "login flow", Epic: "PROJ-1"},
		{Key: "PROJ-8", Type: "Story", Summary: "Login flow", Epic: "PROJ-1"},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		serveSearch(w, r, candidates)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv.URL, 50)

	draft := models.TicketDraft{Type: models.TypeStory, Summary: "Login flow"}
	key, err := client.FindDuplicate(context.Background(), draft, "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, "PROJ-8", key, "summary match is case-sensitive exact")
}

func TestFindDuplicateReturnsEmptyWhenNoMatch(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		serveSearch(w, r, []fakeIssue{
			{Key: "PROJ-7", Type: "Story", Summary: "Login flow (v2)", Epic: "PROJ-1"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv.URL, 50)

	draft := models.TicketDraft{Type: models.TypeStory, Summary: "Login flow"}
	key, err := client.FindDuplicate(context.Background(), draft, "PROJ-1")
	require.NoError(t, err)
	assert.Empty(t, key)
}

func TestCreateIssueLinksSubtaskToParent(t *testing.T) {
	var payload map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"101","key":"PROJ-10","self":"https://jira.example.com/browse/PROJ-10"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv.URL, 50)

	draft := models.TicketDraft{Type: models.TypeSubtask, Summary: "Add form"}
	ref, err := client.CreateIssue(context.Background(), draft, "PROJ-2")
	require.NoError(t, err)

	assert.Equal(t, "PROJ-10", ref.Key)
	assert.Equal(t, "PROJ-2", ref.ParentKey)

	fields := payload["fields"].(map[string]any)
	assert.Equal(t, "PROJ", fields["project"].(map[string]any)["key"])
	assert.Equal(t, "Sub-task", fields["issuetype"].(map[string]any)["name"])
	assert.Equal(t, "Add form", fields["summary"])
	assert.Equal(t, "PROJ-2", fields["parent"].(map[string]any)["key"])
}

func TestCreateIssueLinksStoryToEpic(t *testing.T) {
	var payload map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"102","key":"PROJ-11","self":"https://jira.example.com/browse/PROJ-11"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv.URL, 50)

	draft := models.TicketDraft{Type: models.TypeStory, Summary: "Login flow"}
	ref, err := client.CreateIssue(context.Background(), draft, "PROJ-1")
	require.NoError(t, err)
	assert.Equal(t, "PROJ-11", ref.Key)

	fields := payload["fields"].(map[string]any)
	assert.Equal(t, "PROJ-1", fields["customfield_10014"], "story links to its epic through the epic link field")
	assert.Nil(t, fields["parent"])
}

func TestCreateIssueClassifiesPermanentFailure(t *testing.T) {
	var hits int32
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/issue", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"errorMessages":["summary is required"]}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv.URL, 50)

	_, err := client.CreateIssue(context.Background(), models.TicketDraft{Type: models.TypeStory, Summary: "x"}, "")
	require.Error(t, err)

	var permanent *PermanentFailure
	require.ErrorAs(t, err, &permanent)
	assert.Equal(t, http.StatusBadRequest, permanent.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "4xx is never retried")
}

func TestNewClientValidation(t *testing.T) {
	_, err := NewClient(Config{Token: "t"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL")

	_, err = NewClient(Config{BaseURL: "https://jira.example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}

func TestSearchIssuesConvertsParentReferences(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/search", func(w http.ResponseWriter, r *http.Request) {
		serveSearch(w, r, []fakeIssue{
			{Key: "PROJ-3", Type: "Sub-task", Summary: "Add form", Parent: "PROJ-2"},
			{Key: "PROJ-2", Type: "Story", Summary: "Login flow", Epic: "PROJ-1"},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := testClient(t, srv.URL, 50)

	issues, err := client.SearchIssues(context.Background(), models.TypeTask, models.FilterDescriptor{})
	require.NoError(t, err)
	require.Len(t, issues, 2)

	assert.Equal(t, "PROJ-2", issues[0].ParentKey)
	assert.Equal(t, "PROJ-2", issues[0].ParentRef())
	assert.Equal(t, "PROJ-1", issues[1].EpicKey)
	assert.Equal(t, "PROJ-1", issues[1].ParentRef())
	assert.Equal(t, models.TypeSubtask, issues[0].Type)
}
