package jira

import (
	"fmt"

	"github.com/ebalint/stork/pkg/models"
)

// TransientFailure reports that a request kept hitting retryable
// conditions (HTTP 429, 5xx, or a per-attempt timeout) until the retry
// budget ran out. It carries the last observed status code and
// response body. A status code of zero means every attempt timed out
// before a response arrived.
type TransientFailure struct {
	StatusCode int
	Body       string
	Attempts   int
}

func (e *TransientFailure) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request timed out after %d attempts", e.Attempts)
	}
	return fmt.Sprintf("request failed with status %d after %d attempts: %s",
		e.StatusCode, e.Attempts, e.Body)
}

// PermanentFailure reports a non-retryable tracker response (4xx other
// than 429). It is surfaced immediately, without retrying.
type PermanentFailure struct {
	StatusCode int
	Body       string
}

func (e *PermanentFailure) Error() string {
	return fmt.Sprintf("request rejected with status %d: %s", e.StatusCode, e.Body)
}

// FetchError wraps the error that aborted a paginated search. Partial
// holds the issues aggregated before the failing page; callers that
// can use incomplete data may inspect it, everyone else should treat
// the whole fetch as failed.
type FetchError struct {
	Partial []models.IssueRef
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("backlog fetch aborted after %d issues: %v", len(e.Partial), e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
