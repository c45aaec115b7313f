package models

import (
	"time"
)

// PullRequest is the persisted record of one synced pull request. Records are
// upserted keyed on (repository_id, github_pr_number) with last-write-wins
// semantics - downstream metrics consumers require no ordering guarantee.
type PullRequest struct {
	ID              string     `db:"id"                json:"id"`
	RepositoryID    string     `db:"repository_id"     json:"repository_id"`
	GitHubPRNumber  int        `db:"github_pr_number"  json:"github_pr_number"`
	Title           string     `db:"title"             json:"title"`
	AuthorLogin     string     `db:"author_login"      json:"author_login"`
	State           string     `db:"state"             json:"state"`
	Additions       int        `db:"additions"         json:"additions"`
	Deletions       int        `db:"deletions"         json:"deletions"`
	GitHubCreatedAt time.Time  `db:"github_created_at" json:"github_created_at"`
	GitHubUpdatedAt time.Time  `db:"github_updated_at" json:"github_updated_at"`
	MergedAt        *time.Time `db:"merged_at"         json:"merged_at,omitempty"`
	CreatedAt       time.Time  `db:"created_at"        json:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"        json:"updated_at"`
}
