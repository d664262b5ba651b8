// Package passport reconciles federated logins with local accounts. A login
// looks up the external identity, or maps the provider profile to a
// candidate account, finds or creates that account, links the identity and
// optionally mints an access token.
package passport

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/idlink/internal/common"
	"github.com/dmitrijs2005/idlink/internal/dbx"
	"github.com/dmitrijs2005/idlink/internal/logging"
	"github.com/dmitrijs2005/idlink/internal/server/models"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/repomanager"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"
)

const tracerName = "github.com/dmitrijs2005/idlink/internal/server/passport"

// Config holds the service level login settings.
type Config struct {
	// AccountSettings describes the active account type.
	AccountSettings models.AccountSettings
	// DefaultTTL is the token lifetime when a login does not request one.
	DefaultTTL time.Duration
}

// Service performs logins and identity linking.
type Service struct {
	db       *sql.DB
	repos    repomanager.RepositoryManager
	mapper   ProfileMapperFunc
	issuer   TokenIssuer
	cfg      Config
	logger   logging.Logger
	tracer   trace.Tracer
	now      func() time.Time
	hashCost int
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithTracerProvider sets the provider spans are created from. The global
// provider is used otherwise.
func WithTracerProvider(tp trace.TracerProvider) ServiceOption {
	return func(s *Service) { s.tracer = tp.Tracer(tracerName) }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

// WithPasswordCost sets the bcrypt cost for generated passwords.
func WithPasswordCost(cost int) ServiceOption {
	return func(s *Service) { s.hashCost = cost }
}

// NewService constructs a Service. issuer may be nil when every login either
// disables auto-login or supplies Options.CreateAccessToken.
func NewService(db *sql.DB, repos repomanager.RepositoryManager, mapper *Mapper, issuer TokenIssuer,
	cfg Config, logger logging.Logger, opts ...ServiceOption) *Service {
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = DefaultTokenTTL
	}
	if mapper == nil {
		mapper = NewMapper(DefaultMapperConfig(), RandomSecrets{}, NewFacebookEnricher())
	}
	s := &Service{
		db:       db,
		repos:    repos,
		mapper:   mapper.Map,
		issuer:   issuer,
		cfg:      cfg,
		logger:   logger.With("module", "passport"),
		tracer:   otel.GetTracerProvider().Tracer(tracerName),
		now:      time.Now,
		hashCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login reconciles one provider assertion with a local account.
func (s *Service) Login(ctx context.Context, req LoginRequest, opts Options) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "passport.Login", trace.WithAttributes(
		attribute.String("idlink.provider", req.Provider),
		attribute.String("idlink.auth_scheme", req.AuthScheme),
	))
	defer span.End()

	res, err := s.login(ctx, req, opts)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Error(ctx, "login failed", "provider", req.Provider, "error", err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("idlink.account_id", res.Account.ID),
		attribute.Bool("idlink.account_created", res.Created),
	)
	s.logger.Info(ctx, "login reconciled",
		"provider", req.Provider, "account_id", res.Account.ID, "created", res.Created, "token", res.Token != nil)
	return res, nil
}

func (s *Service) login(ctx context.Context, req LoginRequest, opts Options) (*LoginResult, error) {
	if req.Profile == nil {
		req.Profile = &models.Profile{}
	}
	externalID := req.Profile.ExternalID()
	if externalID == "" {
		return nil, ErrMissingExternalID
	}

	identity, account, err := s.lookupIdentity(ctx, req, externalID)
	if err != nil {
		return nil, err
	}

	res := &LoginResult{Account: account, Identity: identity}
	if identity == nil {
		res, err = s.createFromProfile(ctx, req, externalID, opts)
		if err != nil {
			return nil, err
		}
	}

	res.Token, err = s.issueToken(ctx, res.Account, opts)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// lookupIdentity refreshes a known identity with this login's profile and
// credentials and resolves its account. It returns nils when the identity is
// unknown.
func (s *Service) lookupIdentity(ctx context.Context, req LoginRequest, externalID string) (*models.ExternalIdentity, *models.Account, error) {
	ctx, span := s.tracer.Start(ctx, "passport.lookupIdentity")
	defer span.End()

	repo := s.repos.Identities(s.db)
	identity, err := repo.FindByProvider(ctx, req.Provider, externalID)
	if errors.Is(err, common.ErrorNotFound) {
		span.SetAttributes(attribute.Bool("idlink.identity_found", false))
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fail(ErrLookupFailure, err)
	}
	span.SetAttributes(attribute.Bool("idlink.identity_found", true))

	identity.Credentials = req.Credentials
	identity.Profile = *req.Profile
	identity.Modified = s.now().UTC()
	if err := repo.Update(ctx, identity); err != nil {
		return nil, nil, fail(ErrCreateFailure, err)
	}

	account, err := s.repos.Accounts(s.db).FindByID(ctx, identity.AccountID)
	if err != nil {
		return nil, nil, fail(ErrLookupFailure, err)
	}
	return identity, account, nil
}

// createFromProfile maps the profile, finds or creates the account, merges
// the profile into it and links the identity.
func (s *Service) createFromProfile(ctx context.Context, req LoginRequest, externalID string, opts Options) (*LoginResult, error) {
	mapProfile := s.mapper
	if opts.ProfileToAccount != nil {
		mapProfile = opts.ProfileToAccount
	}
	candidate, err := mapProfile(req.Provider, req.Profile, opts)
	if err != nil {
		return nil, fail(ErrCreateFailure, err)
	}
	if candidate.Email == "" && !opts.EmailOptional {
		return nil, ErrMissingEmail
	}
	if candidate.Email == "" && candidate.Username == "" {
		return nil, fmt.Errorf("%w: profile yields neither username nor email", ErrMissingEmail)
	}

	res, err := s.reconcileAccount(ctx, candidate)
	if err != nil {
		return nil, err
	}

	res.Identity, err = s.linkIdentity(ctx, req, externalID, res.Account)
	if err != nil {
		return nil, err
	}
	return res, nil
}

// reconcileAccount finds or creates the account for candidate and fills its
// empty fields. A failed merge is reported in LoginResult.Warning.
func (s *Service) reconcileAccount(ctx context.Context, candidate *models.Account) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "passport.reconcileAccount")
	defer span.End()

	hash, err := bcrypt.GenerateFromPassword([]byte(candidate.Password), s.hashCost)
	if err != nil {
		return nil, fail(ErrCreateFailure, err)
	}

	now := s.now().UTC()
	defaults := candidate.Clone()
	defaults.Password = string(hash)
	defaults.Created = now
	defaults.Modified = now

	repo := s.repos.Accounts(s.db)
	match := accounts.Match{Email: candidate.Email, Username: candidate.Username}
	account, created, err := repo.FindOrCreate(ctx, match, defaults)
	if err != nil {
		return nil, fail(ErrCreateFailure, err)
	}
	span.SetAttributes(attribute.Bool("idlink.account_created", created))
	res := &LoginResult{Account: account, Created: created}

	changes := MergeIfAbsent(account, candidate)
	if changes.IsEmpty() {
		return res, nil
	}

	merged, err := repo.Update(ctx, account.ID, changes)
	if err != nil {
		res.Warning = &MergeError{AccountID: account.ID, Err: err}
		span.AddEvent("merge failed", trace.WithAttributes(attribute.String("error", err.Error())))
		s.logger.Warn(ctx, "profile merge skipped", "account_id", account.ID, "error", err)
		return res, nil
	}
	res.Account = merged
	return res, nil
}

func (s *Service) linkIdentity(ctx context.Context, req LoginRequest, externalID string, account *models.Account) (*models.ExternalIdentity, error) {
	ctx, span := s.tracer.Start(ctx, "passport.linkIdentity")
	defer span.End()

	now := s.now().UTC()
	defaults := &models.ExternalIdentity{
		Provider:    req.Provider,
		AuthScheme:  req.AuthScheme,
		ExternalID:  externalID,
		Profile:     *req.Profile,
		Credentials: req.Credentials,
		AccountID:   account.ID,
		Created:     now,
		Modified:    now,
	}
	identity, created, err := s.repos.Identities(s.db).FindOrCreate(ctx, externalID, defaults)
	if err != nil {
		return nil, fail(ErrCreateFailure, err)
	}
	span.SetAttributes(attribute.Bool("idlink.identity_created", created))
	return identity, nil
}

// TokenTTL returns the lifetime of a token requested with opts.
func (s *Service) TokenTTL(opts Options) time.Duration {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = s.cfg.DefaultTTL
	}
	if limit := s.cfg.AccountSettings.MaxTTL; limit > 0 && ttl > limit {
		ttl = limit
	}
	return ttl
}

func (s *Service) issueToken(ctx context.Context, account *models.Account, opts Options) (*models.AccessToken, error) {
	if !opts.autoLogin() {
		return nil, nil
	}

	ctx, span := s.tracer.Start(ctx, "passport.issueToken")
	defer span.End()

	issuer := s.issuer
	if opts.CreateAccessToken != nil {
		issuer = opts.CreateAccessToken
	}
	if issuer == nil {
		return nil, fail(ErrTokenIssuance, errors.New("no token issuer configured"))
	}

	token, err := issuer.Issue(ctx, account, s.TokenTTL(opts))
	if err != nil {
		return nil, fail(ErrTokenIssuance, err)
	}
	return token, nil
}

// Link attaches a provider identity to an existing account. A known identity
// of the same account is refreshed; one owned by another account is
// rejected with ErrIdentityLinked.
func (s *Service) Link(ctx context.Context, accountID string, req LoginRequest) (*models.ExternalIdentity, error) {
	ctx, span := s.tracer.Start(ctx, "passport.Link", trace.WithAttributes(
		attribute.String("idlink.provider", req.Provider),
		attribute.String("idlink.account_id", accountID),
	))
	defer span.End()

	if req.Profile == nil {
		req.Profile = &models.Profile{}
	}
	externalID := req.Profile.ExternalID()
	if externalID == "" {
		return nil, ErrMissingExternalID
	}

	var identity *models.ExternalIdentity
	err := s.inTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		if _, err := s.repos.Accounts(tx).FindByID(ctx, accountID); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return ErrAccountNotFound
			}
			return fail(ErrLookupFailure, err)
		}

		repo := s.repos.Identities(tx)
		now := s.now().UTC()
		existing, err := repo.FindByProvider(ctx, req.Provider, externalID)
		switch {
		case err == nil:
			if existing.AccountID != accountID {
				return ErrIdentityLinked
			}
			existing.Credentials = req.Credentials
			existing.Profile = *req.Profile
			existing.Modified = now
			if err := repo.Update(ctx, existing); err != nil {
				return fail(ErrCreateFailure, err)
			}
			identity = existing
			return nil
		case !errors.Is(err, common.ErrorNotFound):
			return fail(ErrLookupFailure, err)
		}

		identity, err = repo.Create(ctx, &models.ExternalIdentity{
			Provider:    req.Provider,
			AuthScheme:  req.AuthScheme,
			ExternalID:  externalID,
			Profile:     *req.Profile,
			Credentials: req.Credentials,
			AccountID:   accountID,
			Created:     now,
			Modified:    now,
		})
		if errors.Is(err, common.ErrorAlreadyExists) {
			return ErrIdentityLinked
		}
		if err != nil {
			return fail(ErrCreateFailure, err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.Warn(ctx, "link failed", "provider", req.Provider, "account_id", accountID, "error", err)
		return nil, err
	}

	s.logger.Info(ctx, "identity linked", "provider", req.Provider, "account_id", accountID, "identity_id", identity.ID)
	return identity, nil
}

// inTx runs fn in a transaction. Without a database handle (in-memory
// repositories) fn runs directly.
func (s *Service) inTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if s.db == nil {
		return fn(ctx, nil)
	}
	return dbx.WithTx(ctx, s.db, nil, fn)
}

// Identities lists the provider identities linked to accountID.
func (s *Service) Identities(ctx context.Context, accountID string) ([]*models.ExternalIdentity, error) {
	list, err := s.repos.Identities(s.db).ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fail(ErrLookupFailure, err)
	}
	return list, nil
}
