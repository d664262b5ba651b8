package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/idlink/internal/dbx"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/accesstokens"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/identities"
)

// InMemoryRepositoryManager hands out process-local repositories and ignores
// the DBTX. Transactions are not isolated.
type InMemoryRepositoryManager struct {
	accounts     *accounts.MemoryRepository
	identities   *identities.MemoryRepository
	accessTokens *accesstokens.MemoryRepository
}

func NewInMemoryRepositoryManager() *InMemoryRepositoryManager {
	return &InMemoryRepositoryManager{
		accounts:     accounts.NewMemoryRepository(),
		identities:   identities.NewMemoryRepository(),
		accessTokens: accesstokens.NewMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return m.accounts
}

func (m *InMemoryRepositoryManager) Identities(db dbx.DBTX) identities.Repository {
	return m.identities
}

func (m *InMemoryRepositoryManager) AccessTokens(db dbx.DBTX) accesstokens.Repository {
	return m.accessTokens
}
