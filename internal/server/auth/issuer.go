package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/idlink/internal/common"
	"github.com/dmitrijs2005/idlink/internal/server/models"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/accesstokens"
	"github.com/google/uuid"
)

// TokenIssuer persists an AccessToken row and returns it with its signed
// JWT. It is the default token issuance hook of a login.
type TokenIssuer struct {
	store     accesstokens.Repository
	secretKey []byte
	now       func() time.Time
}

func NewTokenIssuer(store accesstokens.Repository, secretKey []byte) *TokenIssuer {
	return &TokenIssuer{store: store, secretKey: secretKey, now: time.Now}
}

// Issue mints a token for account valid for ttl.
func (i *TokenIssuer) Issue(ctx context.Context, account *models.Account, ttl time.Duration) (*models.AccessToken, error) {
	token := &models.AccessToken{
		ID:        uuid.NewString(),
		AccountID: account.ID,
		TTL:       ttl,
		Created:   i.now().UTC(),
	}

	signed, err := GenerateToken(token.ID, token.AccountID, i.secretKey, token.Created, ttl)
	if err != nil {
		return nil, fmt.Errorf("sign token: %w", err)
	}

	if err := i.store.Create(ctx, token); err != nil {
		return nil, fmt.Errorf("store token: %w", err)
	}

	token.Token = signed
	return token, nil
}

// Verify parses tokenString and checks that its access token row is still
// present. It returns the owning account id. A revoked or expired row
// matches common.ErrInvalidToken; a failing store does not.
func (i *TokenIssuer) Verify(ctx context.Context, tokenString string) (string, error) {
	claims, err := ParseToken(tokenString, i.secretKey)
	if err != nil {
		return "", err
	}
	if _, err := i.store.Find(ctx, claims.TokenID()); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", fmt.Errorf("%w: %w", common.ErrInvalidToken, err)
		}
		return "", fmt.Errorf("find token: %w", err)
	}
	return claims.AccountID(), nil
}

// Revoke deletes the access token row behind tokenString, so later Verify
// calls fail.
func (i *TokenIssuer) Revoke(ctx context.Context, tokenString string) error {
	claims, err := ParseToken(tokenString, i.secretKey)
	if err != nil {
		return err
	}
	return i.store.Delete(ctx, claims.TokenID())
}
