package passport

import (
	"context"
	"time"

	"github.com/dmitrijs2005/idlink/internal/server/models"
)

// DefaultTokenTTL is the access token lifetime when neither the caller nor
// the configuration sets one.
const DefaultTokenTTL = 365 * 24 * time.Hour

// TokenIssuer mints access tokens for resolved accounts.
type TokenIssuer interface {
	Issue(ctx context.Context, account *models.Account, ttl time.Duration) (*models.AccessToken, error)
}

// TokenIssuerFunc adapts a function to TokenIssuer.
type TokenIssuerFunc func(ctx context.Context, account *models.Account, ttl time.Duration) (*models.AccessToken, error)

func (f TokenIssuerFunc) Issue(ctx context.Context, account *models.Account, ttl time.Duration) (*models.AccessToken, error) {
	return f(ctx, account, ttl)
}

// Options tune a single login.
type Options struct {
	// AutoLogin controls token issuance. Nil means true.
	AutoLogin *bool
	// EmailOptional allows accounts without email and disables placeholder
	// emails.
	EmailOptional bool
	// TTL requests a token lifetime. Zero uses the service default. The
	// account settings cap it.
	TTL time.Duration
	// ProfileToAccount replaces the default profile mapper.
	ProfileToAccount ProfileMapperFunc
	// CreateAccessToken replaces the default token issuer.
	CreateAccessToken TokenIssuerFunc
}

func (o Options) autoLogin() bool {
	return o.AutoLogin == nil || *o.AutoLogin
}

// Bool returns a pointer to v, for Options.AutoLogin.
func Bool(v bool) *bool { return &v }

// LoginRequest is one login assertion from a provider strategy.
type LoginRequest struct {
	Provider    string
	AuthScheme  string
	Profile     *models.Profile
	Credentials models.Credentials
}

// LoginResult is the outcome of a successful login.
type LoginResult struct {
	Account  *models.Account
	Identity *models.ExternalIdentity
	// Token is nil when auto-login was disabled.
	Token *models.AccessToken
	// Created reports whether the account was created by this login.
	Created bool
	// Warning carries a non-fatal *MergeError.
	Warning error
}
