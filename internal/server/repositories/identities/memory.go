package identities

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/idlink/internal/common"
	"github.com/dmitrijs2005/idlink/internal/server/models"
	"github.com/google/uuid"
)

// MemoryRepository keeps identities in process memory.
type MemoryRepository struct {
	mu    sync.Mutex
	rows  map[string]*models.ExternalIdentity
	order []string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]*models.ExternalIdentity)}
}

func (r *MemoryRepository) FindByProvider(ctx context.Context, provider, externalID string) (*models.ExternalIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.find(func(i *models.ExternalIdentity) bool {
		return i.Provider == provider && i.ExternalID == externalID
	}); i != nil {
		return i.Clone(), nil
	}
	return nil, common.ErrorNotFound
}

func (r *MemoryRepository) FindOrCreate(ctx context.Context, externalID string, defaults *models.ExternalIdentity) (*models.ExternalIdentity, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if i := r.find(func(i *models.ExternalIdentity) bool { return i.ExternalID == externalID }); i != nil {
		return i.Clone(), false, nil
	}
	return r.insert(defaults), true, nil
}

func (r *MemoryRepository) Create(ctx context.Context, identity *models.ExternalIdentity) (*models.ExternalIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.find(func(i *models.ExternalIdentity) bool {
		return i.Provider == identity.Provider && i.ExternalID == identity.ExternalID
	}) != nil {
		return nil, common.ErrorAlreadyExists
	}
	return r.insert(identity), nil
}

func (r *MemoryRepository) Update(ctx context.Context, identity *models.ExternalIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[identity.ID]
	if !ok {
		return common.ErrorNotFound
	}
	row.Profile = identity.Profile.Clone()
	row.Credentials = models.CloneCredentials(identity.Credentials)
	row.Modified = identity.Modified
	return nil
}

func (r *MemoryRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.ExternalIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.ExternalIdentity
	for _, id := range r.order {
		if i := r.rows[id]; i.AccountID == accountID {
			result = append(result, i.Clone())
		}
	}
	return result, nil
}

func (r *MemoryRepository) find(pred func(*models.ExternalIdentity) bool) *models.ExternalIdentity {
	for _, id := range r.order {
		if i := r.rows[id]; pred(i) {
			return i
		}
	}
	return nil
}

// insert must be called with r.mu held.
func (r *MemoryRepository) insert(identity *models.ExternalIdentity) *models.ExternalIdentity {
	i := identity.Clone()
	i.ID = uuid.NewString()
	if i.Created.IsZero() {
		i.Created = time.Now()
		i.Modified = i.Created
	}
	r.rows[i.ID] = i
	r.order = append(r.order, i.ID)
	return i.Clone()
}

// Count returns the number of stored identities.
func (r *MemoryRepository) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}
