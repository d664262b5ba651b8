// Package accesstokens declares the repository contract for access tokens
// minted at login, with PostgreSQL, Redis and in-memory implementations.
package accesstokens

import (
	"context"

	"github.com/dmitrijs2005/idlink/internal/server/models"
)

// Repository defines operations for issuing, retrieving, and revoking access tokens.
type Repository interface {
	// Create stores token. The token id must be set by the caller.
	Create(ctx context.Context, token *models.AccessToken) error

	// Find looks up a token by id and returns common.ErrorNotFound when it is
	// absent or expired.
	Find(ctx context.Context, id string) (*models.AccessToken, error)

	// Delete removes a token by id. Deleting a non-existent token is not an error.
	Delete(ctx context.Context, id string) error
}
