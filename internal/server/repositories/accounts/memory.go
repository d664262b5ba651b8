package accounts

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/idlink/internal/common"
	"github.com/dmitrijs2005/idlink/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps accounts in process memory. It backs tests and
// single-node development setups.
type MemoryRepository struct {
	mu    sync.Mutex
	rows  map[string]*models.Account
	order []string
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*models.Account), now: time.Now}
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return a.Clone(), nil
}

func (r *MemoryRepository) FindOrCreate(ctx context.Context, match Match, defaults *models.Account) (*models.Account, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !match.IsEmpty() {
		for _, id := range r.order {
			if a := r.rows[id]; match.Matches(a) {
				return a.Clone(), false, nil
			}
		}
	}

	a := defaults.Clone()
	a.ID = uuid.NewString()
	if a.Created.IsZero() {
		a.Created = r.now()
	}
	if a.Modified.IsZero() {
		a.Modified = a.Created
	}
	r.rows[a.ID] = a
	r.order = append(r.order, a.ID)
	return a.Clone(), true, nil
}

func (r *MemoryRepository) Update(ctx context.Context, id string, changes models.AccountChanges) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.rows[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	for _, other := range r.rows {
		if other.ID == id {
			continue
		}
		if (changes.Email != "" && other.Email == changes.Email) ||
			(changes.Username != "" && other.Username == changes.Username) {
			return nil, common.ErrorAlreadyExists
		}
	}
	changes.Apply(a)
	a.Modified = r.now()
	return a.Clone(), nil
}

// Count returns the number of stored accounts.
func (r *MemoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}
