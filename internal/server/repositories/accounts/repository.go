// Package accounts declares the repository contract for local accounts and
// provides PostgreSQL and in-memory implementations.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/idlink/internal/server/models"
)

// Match selects accounts whose email or username equals the given value.
// Empty fields do not participate.
type Match struct {
	Email    string
	Username string
}

// IsEmpty reports whether the match has no usable field.
func (m Match) IsEmpty() bool {
	return m.Email == "" && m.Username == ""
}

// Matches reports whether a satisfies m.
func (m Match) Matches(a *models.Account) bool {
	return (m.Email != "" && a.Email == m.Email) ||
		(m.Username != "" && a.Username == m.Username)
}

// Repository defines persistence operations for accounts.
type Repository interface {
	// FindByID returns the account or common.ErrorNotFound.
	FindByID(ctx context.Context, id string) (*models.Account, error)

	// FindOrCreate returns the first account satisfying match, or creates one
	// from defaults. The boolean reports whether a row was created. Concurrent
	// callers with the same match observe a single account.
	FindOrCreate(ctx context.Context, match Match, defaults *models.Account) (*models.Account, bool, error)

	// Update applies changes to the account and returns the stored result.
	// It returns common.ErrorNotFound when the account does not exist.
	Update(ctx context.Context, id string, changes models.AccountChanges) (*models.Account, error)
}
