package accesstokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/idlink/internal/common"
	"github.com/dmitrijs2005/idlink/internal/dbx"
	"github.com/dmitrijs2005/idlink/internal/server/models"
)

// PostgresRepository implements CRUD operations for access tokens over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts token with its ttl in whole seconds.
func (r *PostgresRepository) Create(ctx context.Context, token *models.AccessToken) error {
	query := `
		INSERT INTO access_tokens (id, account_id, ttl_seconds, created_at)
		VALUES ($1, $2, $3, $4)
	`
	ttl := int64(token.TTL / time.Second)
	if _, err := r.db.ExecContext(ctx, query, token.ID, token.AccountID, ttl, token.Created); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Find returns the token row for id. Expired rows are reported as not found.
func (r *PostgresRepository) Find(ctx context.Context, id string) (*models.AccessToken, error) {
	query := `
		SELECT account_id, ttl_seconds, created_at
		FROM access_tokens
		WHERE id = $1
	`
	token := &models.AccessToken{ID: id}
	var ttl int64
	if err := r.db.QueryRowContext(ctx, query, id).Scan(&token.AccountID, &ttl, &token.Created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	token.TTL = time.Duration(ttl) * time.Second
	if token.Expired(time.Now()) {
		return nil, common.ErrorNotFound
	}
	return token, nil
}

// Delete removes a token by id.
func (r *PostgresRepository) Delete(ctx context.Context, id string) error {
	query := `
		DELETE FROM access_tokens
		WHERE id = $1
	`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
