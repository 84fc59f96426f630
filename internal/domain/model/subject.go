package model

import (
	"fmt"
	"strings"
)

// Repo identifies a repository on a forge. Immutable after creation.
type Repo struct {
	Host  string
	Owner string
	Name  string
}

// ID returns the host/owner/name derived form used as ContributionEvent.RepoID.
func (r Repo) ID() string {
	return fmt.Sprintf("%s/%s/%s", r.Host, r.Owner, r.Name)
}

// ParseRepoID splits a "host/owner/name" identifier into its components.
// Returns an error if the identifier does not have exactly three segments.
func ParseRepoID(id string) (Repo, error) {
	parts := strings.SplitN(id, "/", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Repo{}, fmt.Errorf("invalid repo id %q: expected host/owner/name", id)
	}
	return Repo{Host: parts[0], Owner: parts[1], Name: parts[2]}, nil
}

// User is a forge account: a stable id plus the login used for event
// attribution and downstream comparisons.
type User struct {
	ID    string
	Login string
}
