package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/idlink/internal/dbx"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/accesstokens"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/identities"
)

// RepositoryManager vends repositories bound to a database handle, which may
// be the pool or an open transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Identities(db dbx.DBTX) identities.Repository
	AccessTokens(db dbx.DBTX) accesstokens.Repository
}
