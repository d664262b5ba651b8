// Package server wires configuration, storage, token issuance and the gRPC
// transport into a runnable application and handles graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/idlink/internal/cryptox"
	"github.com/dmitrijs2005/idlink/internal/logging"
	"github.com/dmitrijs2005/idlink/internal/server/auth"
	"github.com/dmitrijs2005/idlink/internal/server/config"
	"github.com/dmitrijs2005/idlink/internal/server/models"
	"github.com/dmitrijs2005/idlink/internal/server/passport"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/accesstokens"
	"github.com/dmitrijs2005/idlink/internal/server/repositories/repomanager"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/sync/errgroup"

	gs "github.com/dmitrijs2005/idlink/internal/server/grpc"
)

const (
	shutdownTimeout = 5 * time.Second
	credentialsSalt = "idlink/external_identities.credentials"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	redis   *redis.Client
	tracing *sdktrace.TracerProvider
	service *passport.Service
	server  *gs.GRPCServer
}

// NewApp builds every component described by c. Resources opened before a
// failing step are released.
func NewApp(ctx context.Context, c *config.Config) (_ *App, err error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	logger, err := newLogger(c.LogBackend)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	app := &App{config: c, logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
		}
	}()

	var serviceOpts []passport.ServiceOption
	if c.Tracing {
		exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("tracing init error: %w", err)
		}
		app.tracing = sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
		otel.SetTracerProvider(app.tracing)
		serviceOpts = append(serviceOpts, passport.WithTracerProvider(app.tracing))
	}

	var tokenStore accesstokens.Repository
	if c.TokenStore == config.TokenStoreRedis {
		app.redis = redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := app.redis.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis init error: %w", err)
		}
		tokenStore = accesstokens.NewRedisRepository(app.redis)
	}

	repos, err := app.initStorage(ctx, tokenStore)
	if err != nil {
		return nil, err
	}
	if tokenStore == nil {
		tokenStore = repos.AccessTokens(app.db)
	}

	issuer := auth.NewTokenIssuer(tokenStore, []byte(c.SecretKey))

	mapperCfg := passport.DefaultMapperConfig()
	mapperCfg.EmailProviders = c.EmailProviders
	mapperCfg.EmailDomain = c.EmailDomain
	mapper := passport.NewMapper(mapperCfg, passport.RandomSecrets{}, passport.NewFacebookEnricher())

	app.service = passport.NewService(app.db, repos, mapper, issuer, passport.Config{
		AccountSettings: models.AccountSettings{MaxTTL: c.TokenMaxTTL},
		DefaultTTL:      c.TokenTTL,
	}, logger, serviceOpts...)

	app.server, err = gs.NewGRPCServer(c.EndpointAddrGRPC, logger, app.service, issuer)
	if err != nil {
		return nil, fmt.Errorf("grpc init error: %w", err)
	}

	return app, nil
}

func newLogger(backend string) (logging.Logger, error) {
	if backend == config.LogBackendZap {
		z, err := logging.NewZap("prod")
		if err != nil {
			return nil, err
		}
		return z, nil
	}
	return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil))), nil
}

// initStorage opens the configured repositories. Postgres storage is migrated
// before use.
func (app *App) initStorage(ctx context.Context, tokenStore accesstokens.Repository) (repomanager.RepositoryManager, error) {
	if app.config.Storage == config.StorageMemory {
		app.logger.Warn(ctx, "Using in-memory storage, data is lost on restart")
		return repomanager.NewInMemoryRepositoryManager(), nil
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	app.db = db

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	var opts []repomanager.Option
	if tokenStore != nil {
		opts = append(opts, repomanager.WithTokenStore(tokenStore))
	}
	if app.config.CredentialsKey != "" {
		sealer, err := cryptox.NewPassphraseSealer(app.config.CredentialsKey, credentialsSalt)
		if err != nil {
			return nil, fmt.Errorf("credentials cipher init error: %w", err)
		}
		opts = append(opts, repomanager.WithCredentialsCipher(sealer))
	}
	repos, err := repomanager.NewPostgresRepositoryManager(opts...)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	if err := repos.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("migrations error: %w", err)
	}
	return repos, nil
}

// waitForSignal cancels the run when the process receives a termination
// signal.
func (app *App) waitForSignal(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer signal.Stop(sigs)

	select {
	case sig := <-sigs:
		app.logger.Info(ctx, "Received signal", "signal", sig.String())
		cancelFunc()
	case <-ctx.Done():
	}
}

// Run serves until ctx is cancelled, a signal arrives or the server fails,
// then releases resources.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		app.waitForSignal(gctx, cancelFunc)
		return nil
	})

	g.Go(func() error {
		return app.server.Run(gctx)
	})

	runErr := g.Wait()
	if runErr != nil {
		app.logger.Error(ctx, "Server stopped with error", "error", runErr)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return errors.Join(runErr, app.Close(closeCtx))
}

// Close releases the database, redis and tracing resources.
func (app *App) Close(ctx context.Context) error {
	var errs []error

	if app.tracing != nil {
		if err := app.tracing.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracing shutdown: %w", err))
		}
	}
	if app.redis != nil {
		if err := app.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("db close: %w", err))
		}
	}
	app.logger.Info(ctx, "App stopped")
	if z, ok := app.logger.(*logging.ZapLogger); ok {
		// stdout sync fails on some terminals
		_ = z.Sync()
	}

	return errors.Join(errs...)
}
