package accesstokens

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/idlink/internal/common"
	"github.com/dmitrijs2005/idlink/internal/server/models"
)

// MemoryRepository keeps access tokens in process memory.
type MemoryRepository struct {
	mu     sync.Mutex
	tokens map[string]models.AccessToken
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{tokens: make(map[string]models.AccessToken)}
}

func (r *MemoryRepository) Create(ctx context.Context, token *models.AccessToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t := *token
	t.Token = ""
	r.tokens[token.ID] = t
	return nil
}

func (r *MemoryRepository) Find(ctx context.Context, id string) (*models.AccessToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tokens[id]
	if !ok || t.Expired(time.Now()) {
		return nil, common.ErrorNotFound
	}
	return &t, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.tokens, id)
	return nil
}
