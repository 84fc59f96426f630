package github

import (
	"regexp"
)

var linkNextPattern = regexp.MustCompile(`<([^>]+)>;\s*rel="next"`)

// nextPageURL extracts the URL tagged rel="next" from a REST Link header,
// per spec.md §4.3. Returns "" when there is no next page.
func nextPageURL(linkHeader string) string {
	if linkHeader == "" {
		return ""
	}
	m := linkNextPattern.FindStringSubmatch(linkHeader)
	if m == nil {
		return ""
	}
	return m[1]
}

// pageInfo mirrors a GraphQL connection's pageInfo block for cursor-based
// pagination.
type pageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}
