package github

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// findIssuesSection extracts the content of an "## Issues" section
// from an issue body, up to the next section header. Returns "" when
// there is no such section.
func findIssuesSection(body string) string {
	parts := strings.Split(body, "## Issues")
	if len(parts) < 2 {
		return ""
	}

	section := parts[1]
	if next := strings.Index(section, "## "); next != -1 {
		section = section[:next]
	}
	return section
}

// parseChildIssues returns the issue numbers linked inside the
// "## Issues" section of a body. Links must point at the given GitHub
// domain (github.com or an enterprise host).
func parseChildIssues(body, domain string) []int {
	section := findIssuesSection(body)
	if section == "" {
		return nil
	}

	pattern := fmt.Sprintf(`https://%s/[^/]+/[^/]+/issues/(\d+)`, regexp.QuoteMeta(domain))
	re := regexp.MustCompile(pattern)

	var nums []int
	for _, match := range re.FindAllStringSubmatch(section, -1) {
		if n, err := strconv.Atoi(match[1]); err == nil {
			nums = append(nums, n)
		}
	}
	return nums
}
