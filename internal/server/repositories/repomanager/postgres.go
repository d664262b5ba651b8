// Package repomanager provides RepositoryManager implementations that wire
// together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/idlink/internal/dbx"
	"github.com/dmitrijs2005/idlink/internal/server/migrations"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/accesstokens"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/identities"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook. Access tokens may live in a separate
// store (e.g. Redis) that ignores the DBTX.
type PostgresRepositoryManager struct {
	tokenStore accesstokens.Repository
	cipher     identities.CredentialsCipher
}

// Option configures a PostgresRepositoryManager.
type Option func(*PostgresRepositoryManager)

// WithTokenStore routes AccessTokens to store instead of the access_tokens table.
func WithTokenStore(store accesstokens.Repository) Option {
	return func(m *PostgresRepositoryManager) {
		m.tokenStore = store
	}
}

// WithCredentialsCipher seals identity credentials at rest.
func WithCredentialsCipher(c identities.CredentialsCipher) Option {
	return func(m *PostgresRepositoryManager) {
		m.cipher = c
	}
}

// Accounts returns an accounts.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return accounts.NewPostgresRepository(db)
}

// Identities returns an identities.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Identities(db dbx.DBTX) identities.Repository {
	if m.cipher != nil {
		return identities.NewPostgresRepository(db, identities.WithCipher(m.cipher))
	}
	return identities.NewPostgresRepository(db)
}

// AccessTokens returns the configured token store, or an
// accesstokens.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) AccessTokens(db dbx.DBTX) accesstokens.Repository {
	if m.tokenStore != nil {
		return m.tokenStore
	}
	return accesstokens.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager(opts ...Option) (RepositoryManager, error) {
	m := &PostgresRepositoryManager{}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}
