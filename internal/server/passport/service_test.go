package passport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/idlink/internal/logging"
	"github.com/dmitrijs2005/idlink/internal/server/auth"
	"github.com/dmitrijs2005/idlink/internal/server/models"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/identities"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("test-secret")

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	svc   *Service
	repos *fakeManager
	clock *clock
}

func newFixture(t *testing.T, cfg Config, opts ...ServiceOption) *fixture {
	t.Helper()
	repos := newFakeManager()
	clk := &clock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	issuer := auth.NewTokenIssuer(repos.AccessTokens(nil), testSecret)
	opts = append([]ServiceOption{WithClock(clk.Now), WithPasswordCost(bcrypt.MinCost)}, opts...)
	svc := NewService(nil, repos, nil, issuer, cfg, logging.Nop(), opts...)
	return &fixture{svc: svc, repos: repos, clock: clk}
}

func facebookRequest(creds string) LoginRequest {
	return LoginRequest{
		Provider:   "facebook",
		AuthScheme: models.SchemeOAuth2,
		Profile: &models.Profile{
			Provider: "facebook",
			ID:       "123",
			Emails:   []models.Email{{Value: "a@x.com"}},
			Raw:      map[string]any{"first_name": "A", "last_name": "B"},
		},
		Credentials: models.OAuth2Credentials{AccessToken: creds},
	}
}

func TestLogin_FirstFacebookLoginCreatesEverything(t *testing.T) {
	f := newFixture(t, Config{})

	res, err := f.svc.Login(context.Background(), facebookRequest("at-1"), Options{})
	require.NoError(t, err)

	assert.True(t, res.Created)
	assert.Nil(t, res.Warning)
	assert.Equal(t, "facebook.123", res.Account.Username)
	assert.Equal(t, "a@x.com", res.Account.Email)
	assert.Equal(t, "A B", res.Account.Name)
	assert.Equal(t, "en", res.Account.PreferredLanguage)
	assert.NotEmpty(t, res.Account.Password)

	assert.Equal(t, "facebook", res.Identity.Provider)
	assert.Equal(t, "123", res.Identity.ExternalID)
	assert.Equal(t, res.Account.ID, res.Identity.AccountID)
	assert.Equal(t, res.Identity.Created, res.Identity.Modified)

	require.NotNil(t, res.Token)
	assert.Equal(t, res.Account.ID, res.Token.AccountID)
	assert.Equal(t, DefaultTokenTTL, res.Token.TTL)
	claims, err := auth.ParseToken(res.Token.Token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, res.Account.ID, claims.AccountID())

	assert.Equal(t, 1, f.repos.accountCount())
	assert.Equal(t, 1, f.repos.identityCount())
}

func TestLogin_RepeatedLoginRefreshesIdentity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	first, err := f.svc.Login(ctx, facebookRequest("at-1"), Options{})
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	req := facebookRequest("at-2")
	req.Profile.DisplayName = "Renamed"
	second, err := f.svc.Login(ctx, req, Options{})
	require.NoError(t, err)

	assert.False(t, second.Created)
	assert.Equal(t, first.Account.ID, second.Account.ID)
	assert.Equal(t, first.Identity.ID, second.Identity.ID)
	assert.Equal(t, 1, f.repos.accountCount())
	assert.Equal(t, 1, f.repos.identityCount())

	stored, err := f.repos.Identities(nil).FindByProvider(ctx, "facebook", "123")
	require.NoError(t, err)
	assert.Equal(t, models.OAuth2Credentials{AccessToken: "at-2"}, stored.Credentials)
	assert.Equal(t, "Renamed", stored.Profile.DisplayName)
	assert.Equal(t, first.Identity.Created.Add(time.Hour), stored.Modified)
	assert.Equal(t, first.Identity.Created, stored.Created)
}

func TestLogin_TokenVariantUnifiesUsername(t *testing.T) {
	f := newFixture(t, Config{})

	req := facebookRequest("at")
	req.Provider = "facebook-token"
	res, err := f.svc.Login(context.Background(), req, Options{})
	require.NoError(t, err)

	assert.Equal(t, "facebook-login.123", res.Account.Username)
	assert.Equal(t, "facebook-token", res.Identity.Provider)
}

func TestLogin_EmailCollisionReusesAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	existing, _, err := f.repos.Accounts(nil).FindOrCreate(ctx, accounts.Match{Email: "a@x.com"},
		&models.Account{Username: "local", Email: "a@x.com", Password: "original-hash", Name: "Local Name"})
	require.NoError(t, err)

	res, err := f.svc.Login(ctx, facebookRequest("at"), Options{})
	require.NoError(t, err)

	assert.False(t, res.Created)
	assert.Equal(t, existing.ID, res.Account.ID)
	assert.Equal(t, 1, f.repos.accountCount())

	stored, err := f.repos.Accounts(nil).FindByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "original-hash", stored.Password)
	assert.Equal(t, "local", stored.Username)
	assert.Equal(t, "Local Name", stored.Name)
	assert.Equal(t, "https://graph.facebook.com/123/picture?type=large", stored.PictureURL)
	assert.Equal(t, existing.ID, res.Identity.AccountID)
}

func TestLogin_UsernameCollisionReusesAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	existing, _, err := f.repos.Accounts(nil).FindOrCreate(ctx, accounts.Match{Username: "github.octo"},
		&models.Account{Username: "github.octo", Password: "hash"})
	require.NoError(t, err)

	res, err := f.svc.Login(ctx, LoginRequest{
		Provider: "github", AuthScheme: "oauth2",
		Profile: &models.Profile{ID: "9", Username: "octo"},
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, existing.ID, res.Account.ID)
	assert.Equal(t, "octo@idlink.github.com", res.Account.Email)
}

func TestLogin_MissingEmailWritesNothing(t *testing.T) {
	tests := []struct {
		name string
		req  LoginRequest
		opts Options
	}{
		{
			name: "mapper override without email",
			req:  facebookRequest("at"),
			opts: Options{ProfileToAccount: func(provider string, p *models.Profile, o Options) (*models.Account, error) {
				return &models.Account{Username: "x." + p.ID, Password: "p"}, nil
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})

			_, err := f.svc.Login(context.Background(), tt.req, tt.opts)
			require.ErrorIs(t, err, ErrMissingEmail)
			assert.Equal(t, 0, f.repos.accountCount())
			assert.Equal(t, 0, f.repos.identityCount())
		})
	}
}

func TestLogin_EmailOptional(t *testing.T) {
	f := newFixture(t, Config{})

	res, err := f.svc.Login(context.Background(), LoginRequest{
		Provider: "github", AuthScheme: "oauth2",
		Profile: &models.Profile{ID: "9", Username: "octo"},
	}, Options{EmailOptional: true})
	require.NoError(t, err)
	assert.Empty(t, res.Account.Email)
	assert.Equal(t, "github.octo", res.Account.Username)
}

func TestLogin_OpenIDOnlyProfileCreatesAccount(t *testing.T) {
	for _, opts := range []Options{{}, {EmailOptional: true}} {
		f := newFixture(t, Config{})

		res, err := f.svc.Login(context.Background(), LoginRequest{
			Provider: "openid", AuthScheme: models.SchemeOpenID,
			Profile:     &models.Profile{OpenID: "https://op.example/u/1"},
			Credentials: models.OpenIDCredentials{Identifier: "https://op.example/u/1"},
		}, opts)
		require.NoError(t, err)
		assert.True(t, res.Created)
		assert.Equal(t, "openid.op-example-u-1", res.Account.Username)
		if opts.EmailOptional {
			assert.Empty(t, res.Account.Email)
		} else {
			assert.Equal(t, "op-example-u-1@idlink.openid.com", res.Account.Email)
		}
		assert.Equal(t, "https://op.example/u/1", res.Identity.ExternalID)
		assert.Equal(t, 1, f.repos.accountCount())
	}
}

func TestLogin_OpenIDFallbackExternalID(t *testing.T) {
	f := newFixture(t, Config{})

	res, err := f.svc.Login(context.Background(), LoginRequest{
		Provider: "openid", AuthScheme: models.SchemeOpenID,
		Profile:     &models.Profile{OpenID: "https://op.example/u/1", Username: "u1"},
		Credentials: models.OpenIDCredentials{Identifier: "https://op.example/u/1"},
	}, Options{})
	require.NoError(t, err)
	assert.Equal(t, "https://op.example/u/1", res.Identity.ExternalID)
}

func TestLogin_MissingExternalID(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.svc.Login(context.Background(), LoginRequest{Provider: "github"}, Options{})
	require.ErrorIs(t, err, ErrMissingExternalID)
}

func TestLogin_MergeFailureIsAWarning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	existing, _, err := f.repos.Accounts(nil).FindOrCreate(ctx, accounts.Match{Email: "a@x.com"},
		&models.Account{Email: "a@x.com", Password: "hash", Name: "Kept"})
	require.NoError(t, err)

	failing := &failingAccounts{Repository: f.repos.InMemoryRepositoryManager.Accounts(nil), updateErr: errors.New("update timeout")}
	f.repos.accounts = failing

	res, err := f.svc.Login(ctx, facebookRequest("at"), Options{})
	require.NoError(t, err)

	require.Error(t, res.Warning)
	assert.ErrorIs(t, res.Warning, ErrMergeFailure)
	var mergeErr *MergeError
	require.ErrorAs(t, res.Warning, &mergeErr)
	assert.Equal(t, existing.ID, mergeErr.AccountID)
	assert.Equal(t, 1, failing.updates)

	assert.Equal(t, existing.ID, res.Account.ID)
	assert.Empty(t, res.Account.Username, "unmerged snapshot is returned")
	assert.Equal(t, existing.ID, res.Identity.AccountID)
	require.NotNil(t, res.Token)

	stored, err := failing.Repository.FindByID(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kept", stored.Name)
	assert.Equal(t, "hash", stored.Password)
	assert.Empty(t, stored.Username)
}

func TestLogin_LookupFailureWritesNothing(t *testing.T) {
	f := newFixture(t, Config{})
	f.repos.identities = &failingIdentities{
		Repository: f.repos.InMemoryRepositoryManager.Identities(nil),
		findErr:    errors.New("connection reset"),
	}

	_, err := f.svc.Login(context.Background(), facebookRequest("at"), Options{})
	require.ErrorIs(t, err, ErrLookupFailure)
	assert.ErrorContains(t, err, "connection reset")
	assert.Equal(t, 0, f.repos.accountCount())
	assert.Equal(t, 0, f.repos.identityCount())
}

func TestLogin_OwnerLookupFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})
	_, err := f.svc.Login(ctx, facebookRequest("at"), Options{})
	require.NoError(t, err)

	f.repos.accounts = &failingAccounts{
		Repository: f.repos.InMemoryRepositoryManager.Accounts(nil),
		findErr:    errors.New("replica lag"),
	}
	_, err = f.svc.Login(ctx, facebookRequest("at"), Options{})
	require.ErrorIs(t, err, ErrLookupFailure)
}

func TestLogin_CreateFailures(t *testing.T) {
	t.Run("account", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.repos.accounts = &failingAccounts{
			Repository:      f.repos.InMemoryRepositoryManager.Accounts(nil),
			findOrCreateErr: errors.New("unique index broken"),
		}
		_, err := f.svc.Login(context.Background(), facebookRequest("at"), Options{})
		require.ErrorIs(t, err, ErrCreateFailure)
		assert.Equal(t, 0, f.repos.identityCount())
	})

	t.Run("identity", func(t *testing.T) {
		f := newFixture(t, Config{})
		f.repos.identities = &failingIdentities{
			Repository:      f.repos.InMemoryRepositoryManager.Identities(nil),
			findOrCreateErr: errors.New("disk full"),
		}
		_, err := f.svc.Login(context.Background(), facebookRequest("at"), Options{})
		require.ErrorIs(t, err, ErrCreateFailure)
		assert.Equal(t, 1, f.repos.accountCount(), "created account is not rolled back")
	})

	t.Run("identity refresh", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t, Config{})
		_, err := f.svc.Login(ctx, facebookRequest("at"), Options{})
		require.NoError(t, err)

		f.repos.identities = &failingIdentities{
			Repository: f.repos.InMemoryRepositoryManager.Identities(nil),
			updateErr:  errors.New("read only"),
		}
		_, err = f.svc.Login(ctx, facebookRequest("at-2"), Options{})
		require.ErrorIs(t, err, ErrCreateFailure)
	})

	t.Run("mapper", func(t *testing.T) {
		f := newFixture(t, Config{})
		_, err := f.svc.Login(context.Background(), facebookRequest("at"), Options{
			ProfileToAccount: func(string, *models.Profile, Options) (*models.Account, error) {
				return nil, errors.New("bad profile")
			},
		})
		require.ErrorIs(t, err, ErrCreateFailure)
	})
}

func TestLogin_IdentityLinkScopedByExternalID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	gitlab, err := f.svc.Login(ctx, LoginRequest{
		Provider: "gitlab", AuthScheme: "oauth2",
		Profile: &models.Profile{ID: "42", Username: "same"},
	}, Options{})
	require.NoError(t, err)

	github, err := f.svc.Login(ctx, LoginRequest{
		Provider: "github", AuthScheme: "oauth2",
		Profile: &models.Profile{ID: "42", Username: "other"},
	}, Options{})
	require.NoError(t, err)

	assert.Equal(t, gitlab.Identity.ID, github.Identity.ID)
	assert.Equal(t, "gitlab", github.Identity.Provider)
	assert.Equal(t, 1, f.repos.identityCount())
	assert.Equal(t, 2, f.repos.accountCount())
}

func TestLogin_Tokens(t *testing.T) {
	t.Run("auto login disabled", func(t *testing.T) {
		f := newFixture(t, Config{})
		res, err := f.svc.Login(context.Background(), facebookRequest("at"), Options{AutoLogin: Bool(false)})
		require.NoError(t, err)
		assert.Nil(t, res.Token)
	})

	t.Run("ttl capped by account settings", func(t *testing.T) {
		f := newFixture(t, Config{AccountSettings: models.AccountSettings{MaxTTL: 24 * time.Hour}})
		res, err := f.svc.Login(context.Background(), facebookRequest("at"), Options{TTL: 48 * time.Hour})
		require.NoError(t, err)
		assert.Equal(t, 24*time.Hour, res.Token.TTL)

		assert.Equal(t, time.Hour, f.svc.TokenTTL(Options{TTL: time.Hour}))
		assert.Equal(t, 24*time.Hour, f.svc.TokenTTL(Options{}))
	})

	t.Run("configured default", func(t *testing.T) {
		f := newFixture(t, Config{DefaultTTL: 2 * time.Hour})
		assert.Equal(t, 2*time.Hour, f.svc.TokenTTL(Options{}))
	})

	t.Run("issuer override", func(t *testing.T) {
		f := newFixture(t, Config{})
		var gotTTL time.Duration
		res, err := f.svc.Login(context.Background(), facebookRequest("at"), Options{
			TTL: time.Minute,
			CreateAccessToken: func(ctx context.Context, a *models.Account, ttl time.Duration) (*models.AccessToken, error) {
				gotTTL = ttl
				return &models.AccessToken{ID: "custom", AccountID: a.ID, TTL: ttl}, nil
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "custom", res.Token.ID)
		assert.Equal(t, time.Minute, gotTTL)
	})

	t.Run("issuance failure is fatal on both paths", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t, Config{})
		boom := Options{CreateAccessToken: func(context.Context, *models.Account, time.Duration) (*models.AccessToken, error) {
			return nil, errors.New("signer offline")
		}}

		_, err := f.svc.Login(ctx, facebookRequest("at"), boom)
		require.ErrorIs(t, err, ErrTokenIssuance)

		_, err = f.svc.Login(ctx, facebookRequest("at"), boom)
		require.ErrorIs(t, err, ErrTokenIssuance)
		assert.Equal(t, 1, f.repos.identityCount())
	})

	t.Run("no issuer configured", func(t *testing.T) {
		repos := newFakeManager()
		svc := NewService(nil, repos, nil, nil, Config{}, logging.Nop(), WithPasswordCost(bcrypt.MinCost))
		_, err := svc.Login(context.Background(), facebookRequest("at"), Options{})
		require.ErrorIs(t, err, ErrTokenIssuance)
	})
}

func TestLogin_ConcurrentFirstLoginsConverge(t *testing.T) {
	f := newFixture(t, Config{})

	const n = 16
	results := make([]*LoginResult, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Login(context.Background(), facebookRequest("at"), Options{AutoLogin: Bool(false)})
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Account.ID, results[i].Account.ID)
		assert.Equal(t, results[0].Identity.ID, results[i].Identity.ID)
	}
	assert.Equal(t, 1, f.repos.accountCount())
	assert.Equal(t, 1, f.repos.identityCount())
}

func TestLogin_RecordsSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	f := newFixture(t, Config{}, WithTracerProvider(tp))

	_, err := f.svc.Login(context.Background(), facebookRequest("at"), Options{})
	require.NoError(t, err)

	var names []string
	for _, s := range sr.Ended() {
		names = append(names, s.Name())
	}
	assert.ElementsMatch(t, []string{
		"passport.lookupIdentity",
		"passport.reconcileAccount",
		"passport.linkIdentity",
		"passport.issueToken",
		"passport.Login",
	}, names)
}

func TestLink(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, Config{})

	owner, err := f.svc.Login(ctx, facebookRequest("at"), Options{AutoLogin: Bool(false)})
	require.NoError(t, err)

	github := LoginRequest{
		Provider: "github", AuthScheme: "oauth2",
		Profile:     &models.Profile{ID: "gh-1", Username: "octo"},
		Credentials: models.OAuth2Credentials{AccessToken: "gh-at"},
	}

	linked, err := f.svc.Link(ctx, owner.Account.ID, github)
	require.NoError(t, err)
	assert.Equal(t, owner.Account.ID, linked.AccountID)
	assert.Equal(t, "github", linked.Provider)

	f.clock.Advance(time.Minute)
	github.Credentials = models.OAuth2Credentials{AccessToken: "gh-at-2"}
	again, err := f.svc.Link(ctx, owner.Account.ID, github)
	require.NoError(t, err)
	assert.Equal(t, linked.ID, again.ID)
	assert.Equal(t, models.OAuth2Credentials{AccessToken: "gh-at-2"}, again.Credentials)

	list, err := f.svc.Identities(ctx, owner.Account.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	other, err := f.svc.Login(ctx, LoginRequest{
		Provider: "google", AuthScheme: "oauth2",
		Profile: &models.Profile{ID: "g-1", Emails: []models.Email{{Value: "b@x.com"}}},
	}, Options{AutoLogin: Bool(false)})
	require.NoError(t, err)

	_, err = f.svc.Link(ctx, other.Account.ID, github)
	require.ErrorIs(t, err, ErrIdentityLinked)

	_, err = f.svc.Link(ctx, "missing", github)
	require.ErrorIs(t, err, ErrAccountNotFound)

	_, err = f.svc.Link(ctx, owner.Account.ID, LoginRequest{Provider: "github"})
	require.ErrorIs(t, err, ErrMissingExternalID)
}

func TestLink_RunsInTransaction(t *testing.T) {
	ctx := context.Background()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repos := newFakeManager()
	account, _, err := repos.Accounts(nil).FindOrCreate(ctx, accounts.Match{Username: "u"}, &models.Account{Username: "u"})
	require.NoError(t, err)

	svc := NewService(db, repos, nil, nil, Config{}, logging.Nop())

	mock.ExpectBegin()
	mock.ExpectCommit()
	_, err = svc.Link(ctx, account.ID, LoginRequest{Provider: "github", Profile: &models.Profile{ID: "1"}})
	require.NoError(t, err)

	mock.ExpectBegin()
	mock.ExpectRollback()
	_, err = svc.Link(ctx, "missing", LoginRequest{Provider: "github", Profile: &models.Profile{ID: "2"}})
	require.ErrorIs(t, err, ErrAccountNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

var _ identities.Repository = (*failingIdentities)(nil)
