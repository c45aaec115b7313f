package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	dbtx "gitpulse/db/tx"
	"gitpulse/models"
)

type PostgresPullRequestsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for pull_requests table
var pullRequestsColumns = []string{
	"id",
	"repository_id",
	"github_pr_number",
	"title",
	"author_login",
	"state",
	"additions",
	"deletions",
	"github_created_at",
	"github_updated_at",
	"merged_at",
	"created_at",
	"updated_at",
}

func NewPostgresPullRequestsRepository(db *sqlx.DB, schema string) *PostgresPullRequestsRepository {
	return &PostgresPullRequestsRepository{db: db, schema: schema}
}

// UpsertPullRequest writes one synced pull-request record, keyed on
// (repository_id, github_pr_number) with last-write-wins semantics.
func (r *PostgresPullRequestsRepository) UpsertPullRequest(
	ctx context.Context,
	pr *models.PullRequest,
) error {
	returningStr := strings.Join(pullRequestsColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.pull_requests
			(id, repository_id, github_pr_number, title, author_login, state,
			 additions, deletions, github_created_at, github_updated_at, merged_at,
			 created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (repository_id, github_pr_number) DO UPDATE SET
			title = EXCLUDED.title,
			author_login = EXCLUDED.author_login,
			state = EXCLUDED.state,
			additions = EXCLUDED.additions,
			deletions = EXCLUDED.deletions,
			github_created_at = EXCLUDED.github_created_at,
			github_updated_at = EXCLUDED.github_updated_at,
			merged_at = EXCLUDED.merged_at,
			updated_at = NOW()
		RETURNING %s`, r.schema, returningStr)

	q := dbtx.GetTransactional(ctx, r.db)
	err := q.QueryRowxContext(ctx, query,
		pr.ID,
		pr.RepositoryID,
		pr.GitHubPRNumber,
		pr.Title,
		pr.AuthorLogin,
		pr.State,
		pr.Additions,
		pr.Deletions,
		pr.GitHubCreatedAt,
		pr.GitHubUpdatedAt,
		pr.MergedAt,
	).StructScan(pr)
	if err != nil {
		return fmt.Errorf("failed to upsert pull request: %w", err)
	}

	return nil
}

func (r *PostgresPullRequestsRepository) CountByRepositoryID(
	ctx context.Context,
	repositoryID string,
) (int, error) {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s.pull_requests WHERE repository_id = $1`, r.schema)

	var count int
	q := dbtx.GetTransactional(ctx, r.db)
	if err := q.GetContext(ctx, &count, query, repositoryID); err != nil {
		return 0, fmt.Errorf("failed to count pull requests: %w", err)
	}

	return count, nil
}
