package identities

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/idlink/internal/common"
	"github.com/dmitrijs2005/idlink/internal/dbx"
	"github.com/dmitrijs2005/idlink/internal/server/models"
)

const identityColumns = `id, provider, auth_scheme, external_id, profile, credentials, account_id, created_at, modified_at`

// CredentialsCipher seals credential payloads before they are written.
type CredentialsCipher interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// PostgresRepository implements Repository over dbx.DBTX.
type PostgresRepository struct {
	db     dbx.DBTX
	cipher CredentialsCipher
}

// Option configures a PostgresRepository.
type Option func(*PostgresRepository)

// WithCipher stores credentials sealed by c.
func WithCipher(c CredentialsCipher) Option {
	return func(r *PostgresRepository) { r.cipher = c }
}

func NewPostgresRepository(db dbx.DBTX, opts ...Option) *PostgresRepository {
	r := &PostgresRepository{db: db}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scan(row rowScanner) (*models.ExternalIdentity, error) {
	i := &models.ExternalIdentity{}
	var profile, creds []byte
	if err := row.Scan(&i.ID, &i.Provider, &i.AuthScheme, &i.ExternalID, &profile, &creds,
		&i.AccountID, &i.Created, &i.Modified); err != nil {
		return nil, err
	}
	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &i.Profile); err != nil {
			return nil, fmt.Errorf("decode profile: %w", err)
		}
	}
	if r.cipher != nil && len(creds) > 0 {
		var err error
		if creds, err = r.cipher.Open(creds); err != nil {
			return nil, fmt.Errorf("open credentials: %w", err)
		}
	}
	c, err := models.DecodeCredentials(i.AuthScheme, creds)
	if err != nil {
		return nil, err
	}
	i.Credentials = c
	return i, nil
}

func (r *PostgresRepository) encodePayloads(i *models.ExternalIdentity) (profile, creds []byte, err error) {
	if profile, err = json.Marshal(i.Profile); err != nil {
		return nil, nil, fmt.Errorf("encode profile: %w", err)
	}
	if creds, err = models.EncodeCredentials(i.Credentials); err != nil {
		return nil, nil, fmt.Errorf("encode credentials: %w", err)
	}
	if r.cipher != nil {
		if creds, err = r.cipher.Seal(creds); err != nil {
			return nil, nil, fmt.Errorf("seal credentials: %w", err)
		}
	}
	return profile, creds, nil
}

func (r *PostgresRepository) one(ctx context.Context, query string, args ...any) (*models.ExternalIdentity, error) {
	i, err := r.scan(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return i, nil
}

func (r *PostgresRepository) FindByProvider(ctx context.Context, provider, externalID string) (*models.ExternalIdentity, error) {
	query := `SELECT ` + identityColumns + `
		FROM external_identities
		WHERE provider = $1 AND external_id = $2`
	return r.one(ctx, query, provider, externalID)
}

func (r *PostgresRepository) findByExternalID(ctx context.Context, externalID string) (*models.ExternalIdentity, error) {
	query := `SELECT ` + identityColumns + `
		FROM external_identities
		WHERE external_id = $1
		ORDER BY created_at
		LIMIT 1`
	return r.one(ctx, query, externalID)
}

func (r *PostgresRepository) insert(ctx context.Context, identity *models.ExternalIdentity, onConflict string) (*models.ExternalIdentity, error) {
	profile, creds, err := r.encodePayloads(identity)
	if err != nil {
		return nil, err
	}
	query := `INSERT INTO external_identities (provider, auth_scheme, external_id, profile, credentials, account_id, created_at, modified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)` + onConflict + `
		RETURNING ` + identityColumns

	return r.scan(r.db.QueryRowContext(ctx, query,
		identity.Provider, identity.AuthScheme, identity.ExternalID, profile, creds,
		identity.AccountID, identity.Created, identity.Modified))
}

// FindOrCreate selects by external id, then inserts ignoring a conflicting
// (provider, external id) pair and re-selects when the insert lost a race.
func (r *PostgresRepository) FindOrCreate(ctx context.Context, externalID string, defaults *models.ExternalIdentity) (*models.ExternalIdentity, bool, error) {
	i, err := r.findByExternalID(ctx, externalID)
	if err == nil {
		return i, false, nil
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, false, err
	}

	i, err = r.insert(ctx, defaults, `
		ON CONFLICT (provider, external_id) DO NOTHING`)
	if err == nil {
		return i, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("db error: %w", err)
	}

	i, err = r.findByExternalID(ctx, externalID)
	if err != nil {
		return nil, false, err
	}
	return i, false, nil
}

func (r *PostgresRepository) Create(ctx context.Context, identity *models.ExternalIdentity) (*models.ExternalIdentity, error) {
	i, err := r.insert(ctx, identity, "")
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %w", common.ErrorAlreadyExists, err)
		}
		if dbx.IsForeignKeyViolation(err) {
			return nil, fmt.Errorf("account %s: %w", identity.AccountID, common.ErrorNotFound)
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return i, nil
}

func (r *PostgresRepository) Update(ctx context.Context, identity *models.ExternalIdentity) error {
	profile, creds, err := r.encodePayloads(identity)
	if err != nil {
		return err
	}
	query := `UPDATE external_identities
		SET profile = $2, credentials = $3, modified_at = $4
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, identity.ID, profile, creds, identity.Modified)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.ExternalIdentity, error) {
	query := `SELECT ` + identityColumns + `
		FROM external_identities
		WHERE account_id = $1
		ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var result []*models.ExternalIdentity
	for rows.Next() {
		i, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, i)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}
