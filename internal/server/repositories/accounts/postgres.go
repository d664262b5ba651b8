package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/idlink/internal/common"
	"github.com/dmitrijs2005/idlink/internal/dbx"
	"github.com/dmitrijs2005/idlink/internal/server/models"
)

const accountColumns = `id, username, email, password, name, gender, preferred_language, provider_user_id, picture_url, created_at, modified_at`

// PostgresRepository implements Repository over dbx.DBTX
// (satisfied by *sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	a := &models.Account{}
	var username, email sql.NullString
	err := row.Scan(&a.ID, &username, &email, &a.Password, &a.Name, &a.Gender,
		&a.PreferredLanguage, &a.ProviderUserID, &a.PictureURL, &a.Created, &a.Modified)
	if err != nil {
		return nil, err
	}
	a.Username = username.String
	a.Email = email.String
	return a, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func (r *PostgresRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) findByMatch(ctx context.Context, match Match) (*models.Account, error) {
	query := `SELECT ` + accountColumns + `
		FROM accounts
		WHERE ($1 <> '' AND email = $1) OR ($2 <> '' AND username = $2)
		ORDER BY created_at
		LIMIT 1`

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, match.Email, match.Username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

// FindOrCreate selects by match, then inserts with ON CONFLICT DO NOTHING.
// When a concurrent insert wins the race the winner's row is re-selected.
func (r *PostgresRepository) FindOrCreate(ctx context.Context, match Match, defaults *models.Account) (*models.Account, bool, error) {
	if !match.IsEmpty() {
		a, err := r.findByMatch(ctx, match)
		if err == nil {
			return a, false, nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return nil, false, err
		}
	}

	query := `INSERT INTO accounts (username, email, password, name, gender, preferred_language, provider_user_id, picture_url, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT DO NOTHING
		RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query,
		nullable(defaults.Username), nullable(defaults.Email), defaults.Password,
		defaults.Name, defaults.Gender, defaults.PreferredLanguage,
		defaults.ProviderUserID, defaults.PictureURL, defaults.Created, defaults.Modified))
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) || match.IsEmpty() {
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	a, err = r.findByMatch(ctx, match)
	if err != nil {
		return nil, false, err
	}
	return a, false, nil
}

// Update writes the non-empty fields of changes and bumps modified_at.
func (r *PostgresRepository) Update(ctx context.Context, id string, changes models.AccountChanges) (*models.Account, error) {
	query := `UPDATE accounts SET
			username = COALESCE(NULLIF($2, ''), username),
			email = COALESCE(NULLIF($3, ''), email),
			name = COALESCE(NULLIF($4, ''), name),
			gender = COALESCE(NULLIF($5, ''), gender),
			preferred_language = COALESCE(NULLIF($6, ''), preferred_language),
			provider_user_id = COALESCE(NULLIF($7, ''), provider_user_id),
			picture_url = COALESCE(NULLIF($8, ''), picture_url),
			modified_at = now()
		WHERE id = $1
		RETURNING ` + accountColumns

	a, err := scanAccount(r.db.QueryRowContext(ctx, query, id,
		changes.Username, changes.Email, changes.Name, changes.Gender,
		changes.PreferredLanguage, changes.ProviderUserID, changes.PictureURL))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %w", common.ErrorAlreadyExists, err)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}
