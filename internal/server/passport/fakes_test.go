package passport

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/idlink/internal/dbx"
	"github.com/dmitrijs2005/idlink/internal/server/models"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/identities"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/repomanager"
)

// fakeManager serves the in-memory repositories unless a failing wrapper is set.
type fakeManager struct {
	*repomanager.InMemoryRepositoryManager
	accounts   accounts.Repository
	identities identities.Repository
}

func newFakeManager() *fakeManager {
	return &fakeManager{InMemoryRepositoryManager: repomanager.NewInMemoryRepositoryManager()}
}

func (m *fakeManager) Accounts(db dbx.DBTX) accounts.Repository {
	if m.accounts != nil {
		return m.accounts
	}
	return m.InMemoryRepositoryManager.Accounts(db)
}

func (m *fakeManager) Identities(db dbx.DBTX) identities.Repository {
	if m.identities != nil {
		return m.identities
	}
	return m.InMemoryRepositoryManager.Identities(db)
}

func (m *fakeManager) accountCount() int {
	return m.InMemoryRepositoryManager.Accounts(nil).(*accounts.MemoryRepository).Count()
}

func (m *fakeManager) identityCount() int {
	return m.InMemoryRepositoryManager.Identities(nil).(*identities.MemoryRepository).Count()
}

type failingAccounts struct {
	accounts.Repository
	findErr         error
	findOrCreateErr error
	updateErr       error

	mu      sync.Mutex
	updates int
}

func (f *failingAccounts) FindByID(ctx context.Context, id string) (*models.Account, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Repository.FindByID(ctx, id)
}

func (f *failingAccounts) FindOrCreate(ctx context.Context, match accounts.Match, defaults *models.Account) (*models.Account, bool, error) {
	if f.findOrCreateErr != nil {
		return nil, false, f.findOrCreateErr
	}
	return f.Repository.FindOrCreate(ctx, match, defaults)
}

func (f *failingAccounts) Update(ctx context.Context, id string, changes models.AccountChanges) (*models.Account, error) {
	f.mu.Lock()
	f.updates++
	f.mu.Unlock()
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.Repository.Update(ctx, id, changes)
}

type failingIdentities struct {
	identities.Repository
	findErr         error
	findOrCreateErr error
	updateErr       error
}

func (f *failingIdentities) FindByProvider(ctx context.Context, provider, externalID string) (*models.ExternalIdentity, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.Repository.FindByProvider(ctx, provider, externalID)
}

func (f *failingIdentities) FindOrCreate(ctx context.Context, externalID string, defaults *models.ExternalIdentity) (*models.ExternalIdentity, bool, error) {
	if f.findOrCreateErr != nil {
		return nil, false, f.findOrCreateErr
	}
	return f.Repository.FindOrCreate(ctx, externalID, defaults)
}

func (f *failingIdentities) Update(ctx context.Context, identity *models.ExternalIdentity) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	return f.Repository.Update(ctx, identity)
}
