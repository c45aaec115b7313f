package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/samber/mo"

	// necessary import to wire up the postgres driver
	_ "github.com/lib/pq"

	dbtx "gitpulse/db/tx"
	"gitpulse/models"
)

type PostgresOAuthCredentialsRepository struct {
	db     *sqlx.DB
	schema string
}

// Column names for oauth_credentials table
var oauthCredentialsColumns = []string{
	"id",
	"tenant_id",
	"github_login",
	"access_token",
	"is_revoked",
	"revoked_at",
	"revocation_reason",
	"created_at",
	"updated_at",
}

func NewPostgresOAuthCredentialsRepository(db *sqlx.DB, schema string) *PostgresOAuthCredentialsRepository {
	return &PostgresOAuthCredentialsRepository{db: db, schema: schema}
}

func (r *PostgresOAuthCredentialsRepository) CreateOAuthCredential(
	ctx context.Context,
	credential *models.OAuthCredential,
) error {
	returningStr := strings.Join(oauthCredentialsColumns, ", ")

	query := fmt.Sprintf(`
		INSERT INTO %s.oauth_credentials
			(id, tenant_id, github_login, access_token, is_revoked, created_at, updated_at)
		VALUES ($1, $2, $3, $4, FALSE, NOW(), NOW())
		RETURNING %s`, r.schema, returningStr)

	q := dbtx.GetTransactional(ctx, r.db)
	err := q.QueryRowxContext(ctx, query,
		credential.ID,
		credential.TenantID,
		credential.GitHubLogin,
		credential.AccessToken,
	).StructScan(credential)
	if err != nil {
		return fmt.Errorf("failed to create oauth credential: %w", err)
	}

	return nil
}

func (r *PostgresOAuthCredentialsRepository) GetOAuthCredentialByID(
	ctx context.Context,
	id string,
) (mo.Option[*models.OAuthCredential], error) {
	columnsStr := strings.Join(oauthCredentialsColumns, ", ")
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s.oauth_credentials
		WHERE id = $1`, columnsStr, r.schema)

	var credential models.OAuthCredential
	q := dbtx.GetTransactional(ctx, r.db)
	err := q.GetContext(ctx, &credential, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return mo.None[*models.OAuthCredential](), nil
		}
		return mo.None[*models.OAuthCredential](), fmt.Errorf("failed to get oauth credential: %w", err)
	}

	return mo.Some(&credential), nil
}

// RevokeOAuthCredential marks the credential permanently revoked. Revocation is
// one-way within a record's lifetime - a new grant creates a new record.
func (r *PostgresOAuthCredentialsRepository) RevokeOAuthCredential(
	ctx context.Context,
	id string,
	reason string,
) error {
	query := fmt.Sprintf(`
		UPDATE %s.oauth_credentials
		SET is_revoked = TRUE,
		    revoked_at = COALESCE(revoked_at, NOW()),
		    revocation_reason = COALESCE(revocation_reason, $2),
		    updated_at = NOW()
		WHERE id = $1`, r.schema)

	q := dbtx.GetTransactional(ctx, r.db)
	result, err := q.ExecContext(ctx, query, id, reason)
	if err != nil {
		return fmt.Errorf("failed to revoke oauth credential: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("oauth credential not found")
	}

	return nil
}
