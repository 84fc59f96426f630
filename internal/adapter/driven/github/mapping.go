package github

import (
	"strconv"
	"time"

	"github.com/ossmk/ossmk/internal/domain/model"
)

// restIssueOrPR mirrors the fields GitHub's issues-list endpoint returns for
// both issues and PRs; presence of PullRequest distinguishes the two.
type restIssueOrPR struct {
	ID          int64     `json:"id"`
	User        *restUser `json:"user"`
	CreatedAt   time.Time `json:"created_at"`
	PullRequest *struct{} `json:"pull_request"`
}

type restUser struct {
	Login string `json:"login"`
}

func (i restIssueOrPR) toEvent(repoID string) model.ContributionEvent {
	kind := model.KindIssue
	if i.PullRequest != nil {
		kind = model.KindPR
	}
	return model.ContributionEvent{
		ID:        strconv.FormatInt(i.ID, 10),
		Kind:      kind,
		RepoID:    repoID,
		UserID:    loginOrUnknown(i.User),
		CreatedAt: i.CreatedAt.UTC(),
	}
}

// restCommit mirrors GitHub's commit-list response shape.
type restCommit struct {
	SHA    string `json:"sha"`
	Commit struct {
		Author struct {
			Date time.Time `json:"date"`
		} `json:"author"`
	} `json:"commit"`
	Author    *restUser `json:"author"`
	Committer *restUser `json:"committer"`
}

func (c restCommit) toEvent(repoID string) model.ContributionEvent {
	user := "unknown"
	switch {
	case c.Author != nil && c.Author.Login != "":
		user = c.Author.Login
	case c.Committer != nil && c.Committer.Login != "":
		user = c.Committer.Login
	}
	return model.ContributionEvent{
		ID:        c.SHA,
		Kind:      model.KindCommit,
		RepoID:    repoID,
		UserID:    user,
		CreatedAt: c.Commit.Author.Date.UTC(),
	}
}

// restReview mirrors GitHub's PR-review response shape.
type restReview struct {
	ID          int64     `json:"id"`
	User        *restUser `json:"user"`
	SubmittedAt time.Time `json:"submitted_at"`
	CreatedAt   time.Time `json:"created_at"`
}

func (r restReview) toEvent(repoID string) model.ContributionEvent {
	created := r.SubmittedAt
	if created.IsZero() {
		created = r.CreatedAt
	}
	return model.ContributionEvent{
		ID:        strconv.FormatInt(r.ID, 10),
		Kind:      model.KindReview,
		RepoID:    repoID,
		UserID:    loginOrUnknown(r.User),
		CreatedAt: created.UTC(),
	}
}

func loginOrUnknown(u *restUser) string {
	if u == nil || u.Login == "" {
		return "unknown"
	}
	return u.Login
}
