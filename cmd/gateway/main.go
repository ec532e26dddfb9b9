package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gateway "github.com/goliatone/go-trade-gateway"
	"github.com/goliatone/go-trade-gateway/activitymap"
	"github.com/goliatone/go-trade-gateway/provider/auth0"
	"github.com/goliatone/go-trade-gateway/provider/memory"
	"github.com/goliatone/go-trade-gateway/repository"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	envPath := flag.String("env", "", "path to a .env file (defaults to ./.env)")
	flag.Parse()

	if err := run(*configPath, *envPath); err != nil {
		fmt.Fprintf(os.Stderr, "gateway: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, envPath string) error {
	cfg, err := gateway.LoadConfig(configPath, envPath)
	if err != nil {
		return err
	}

	logger, err := gateway.NewZapLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repository.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.Migrate(ctx, db); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	repos := gateway.NewRepositoryManager(db)
	repos.MustValidate()

	hasher := gateway.NewPasswordHasher(cfg.Security.BcryptCost)

	idp, err := newIdentityProvider(ctx, cfg, hasher, logger)
	if err != nil {
		return err
	}

	tokens := gateway.NewTokenService(cfg, logger.Named("tokens"))
	activityLogger := logger.Named("activity")
	activity := activitymap.Sink(func(n activitymap.Normalized) {
		activityLogger.Info(n.Verb,
			"actor_id", n.ActorID,
			"object_type", n.ObjectType,
			"object_id", n.ObjectID,
			"channel", n.Channel,
			"metadata", n.Metadata,
			"occurred_at", n.OccurredAt,
		)
	})

	mirror := gateway.NewIdentityMirror(repos.Users(), idp, hasher).
		WithLogger(logger.Named("identity")).
		WithActivitySink(activity)

	authenticator := gateway.NewAuthenticator(idp, mirror, tokens).
		WithLogger(logger.Named("auth")).
		WithActivitySink(activity)

	orders := gateway.NewOrderManager(repos.Orders()).
		WithLogger(logger.Named("orders")).
		WithActivitySink(activity)

	app := gateway.NewHTTPApp(mirror, authenticator, orders, tokens, gateway.HTTPOptions{
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		AllowAdminSetup: cfg.Server.AllowAdminSetup,
		Logger:          logger.Named("http"),
		Health:          repos.Ping,
	})

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening",
			"address", cfg.Server.Address,
			"database", cfg.Database.Driver,
			"identity_provider", cfg.IdentityProvider.Kind,
		)
		errCh <- app.Listen(cfg.Server.Address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	if err := app.ShutdownWithTimeout(cfg.Server.ShutdownTimeout); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("listener stopped with error", "error", err)
	}
	return nil
}

func newIdentityProvider(ctx context.Context, cfg *gateway.Config, hasher gateway.PasswordHasher, logger *gateway.ZapLogger) (gateway.IdentityProvider, error) {
	switch cfg.IdentityProvider.Kind {
	case gateway.IdentityProviderAuth0:
		p, err := auth0.NewIdentityProvider(ctx, auth0.IdentityProviderConfig{
			Domain:         cfg.IdentityProvider.Domain,
			ClientID:       cfg.IdentityProvider.ClientID,
			ClientSecret:   cfg.IdentityProvider.ClientSecret,
			Connection:     cfg.IdentityProvider.Connection,
			RequestTimeout: cfg.IdentityProvider.RequestTimeout,
		})
		if err != nil {
			return nil, err
		}
		return p.WithLogger(logger.Named("auth0")), nil

	case gateway.IdentityProviderMemory, "":
		logger.Warn("using in-memory identity provider, identities are lost on restart")
		return memory.New(hasher), nil
	}

	return nil, fmt.Errorf("unknown identity provider %q", cfg.IdentityProvider.Kind)
}
