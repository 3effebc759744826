package backlog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ebalint/stork/pkg/models"
)

// ParseFilter validates a raw filter request and normalizes it into a
// canonical descriptor. Allowed keys are labels, assignee, and status;
// anything else is rejected. Absent keys mean unconstrained. A labels
// key holding an empty list is ambiguous (did the caller mean "no
// filter" or "no labels"?) and is rejected rather than guessed at.
// Pure function, no side effects.
func ParseFilter(raw map[string]any) (models.FilterDescriptor, error) {
	var filter models.FilterDescriptor

	for key, value := range raw {
		switch key {
		case "labels":
			labels, err := stringList(value)
			if err != nil {
				return models.FilterDescriptor{}, &FilterValidationError{Field: "labels", Reason: err.Error()}
			}
			if len(labels) == 0 {
				return models.FilterDescriptor{}, &FilterValidationError{
					Field:  "labels",
					Reason: "empty label list is ambiguous; omit the field to leave labels unconstrained",
				}
			}
			filter.Labels = normalizeLabels(labels)

		case "assignee":
			s, ok := value.(string)
			if !ok {
				return models.FilterDescriptor{}, &FilterValidationError{
					Field:  "assignee",
					Reason: fmt.Sprintf("expected string, got %T", value),
				}
			}
			if strings.TrimSpace(s) == "" {
				return models.FilterDescriptor{}, &FilterValidationError{
					Field:  "assignee",
					Reason: "empty assignee is ambiguous; omit the field to leave assignee unconstrained",
				}
			}
			filter.Assignee = s

		case "status":
			s, ok := value.(string)
			if !ok {
				return models.FilterDescriptor{}, &FilterValidationError{
					Field:  "status",
					Reason: fmt.Sprintf("expected string, got %T", value),
				}
			}
			status, ok := models.ParseStatus(s)
			if !ok {
				return models.FilterDescriptor{}, &FilterValidationError{
					Field:  "status",
					Reason: fmt.Sprintf("unrecognized status %q; allowed: %s", s, allowedStatuses()),
				}
			}
			filter.Status = status

		default:
			return models.FilterDescriptor{}, &FilterValidationError{
				Field:  key,
				Reason: "unknown filter field",
			}
		}
	}

	return filter, nil
}

// stringList coerces a raw value into a string slice. JSON decoding
// yields []any, direct callers pass []string; both are accepted.
func stringList(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("expected list of strings, got %T element", item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected list of strings, got %T", value)
	}
}

// normalizeLabels deduplicates and sorts so that equal label sets
// produce identical descriptors, and therefore identical queries.
func normalizeLabels(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		if !seen[label] {
			seen[label] = true
			out = append(out, label)
		}
	}
	sort.Strings(out)
	return out
}

func allowedStatuses() string {
	names := make([]string, len(models.KnownStatuses))
	for i, s := range models.KnownStatuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
