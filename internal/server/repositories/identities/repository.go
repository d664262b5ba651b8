// Package identities declares the repository contract for external
// identities (provider links) and provides PostgreSQL and in-memory
// implementations.
package identities

import (
	"context"

	"github.com/dmitrijs2005/idlink/internal/server/models"
)

// Repository defines persistence operations for external identities.
type Repository interface {
	// FindByProvider returns the identity for (provider, externalID) or
	// common.ErrorNotFound.
	FindByProvider(ctx context.Context, provider, externalID string) (*models.ExternalIdentity, error)

	// FindOrCreate returns the first identity with externalID, or creates one
	// from defaults. The lookup is scoped by external id only. The boolean
	// reports whether a row was created.
	FindOrCreate(ctx context.Context, externalID string, defaults *models.ExternalIdentity) (*models.ExternalIdentity, bool, error)

	// Create inserts identity. It returns common.ErrorAlreadyExists when the
	// (provider, external id) pair is taken.
	Create(ctx context.Context, identity *models.ExternalIdentity) (*models.ExternalIdentity, error)

	// Update persists the profile, credentials and modified time of identity.
	Update(ctx context.Context, identity *models.ExternalIdentity) error

	// ListByAccount returns the identities linked to accountID, oldest first.
	ListByAccount(ctx context.Context, accountID string) ([]*models.ExternalIdentity, error)
}
