package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/nkiryanov/authsession/internal/db"
	"github.com/nkiryanov/authsession/internal/handlers"
	"github.com/nkiryanov/authsession/internal/logger"
	"github.com/nkiryanov/authsession/internal/metrics"
	"github.com/nkiryanov/authsession/internal/repository"
	"github.com/nkiryanov/authsession/internal/repository/memory"
	"github.com/nkiryanov/authsession/internal/repository/mongostore"
	"github.com/nkiryanov/authsession/internal/repository/postgres"
	"github.com/nkiryanov/authsession/internal/repository/redisstore"
	"github.com/nkiryanov/authsession/internal/service/auth"
	"github.com/nkiryanov/authsession/internal/service/auth/codec"
	"github.com/nkiryanov/authsession/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authsession/internal/service/user"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger logger.Logger

	// Release store connections, called in reverse order
	closers []func(ctx context.Context) error
}

func NewServerApp(ctx context.Context, c *Config) (_ *ServerApp, err error) {
	// Initialize logger
	logger, err := logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	app := &ServerApp{ListenAddr: c.ListenAddr, logger: logger}
	defer func() {
		// Do not leak connections opened before the failure
		if err != nil {
			app.Close()
		}
	}()

	// Postgres pool is shared by users and sessions if both live there
	var pool *pgxpool.Pool
	if c.DatabaseDSN != "" && !mongostore.IsMongoURI(c.DatabaseDSN) {
		pool, err = db.ConnectAndMigrate(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
		}
		app.closers = append(app.closers, func(context.Context) error {
			pool.Close()
			return nil
		})
	}

	// Initialize repositories
	userRepo, err := app.userRepo(ctx, c, pool)
	if err != nil {
		return nil, err
	}
	sessions, err := app.sessionStore(ctx, c, pool)
	if err != nil {
		return nil, err
	}

	// Initialize services
	rec := metrics.NewPrometheus()
	tokenCodec, err := codec.New(codec.Config{
		SecretKey: c.SecretKey,
		Format:    c.TokenFormat,
		Algorithm: c.TokenAlgorithm,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating token codec. Err: %w", err)
	}
	tokenManager, err := tokenmanager.New(tokenmanager.Config{
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
		Logger:     logger,
		Metrics:    rec,
	}, tokenCodec, sessions)
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}
	authService, err := auth.NewService(auth.Config{Logger: logger}, tokenManager, userRepo)
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}
	userService := user.NewService(auth.DefaultHasher, userRepo, tokenManager)

	app.Handler = handlers.NewRouter(authService, userService, rec, logger, tokenManager, userRepo)

	logger.Info("App initialized",
		"session_store", c.SessionStore,
		"token_format", c.TokenFormat,
		"access_ttl", c.AccessTTL,
		"refresh_ttl", c.RefreshTTL,
	)

	return app, nil
}

// Users live in mongodb or postgres depending on DSN scheme; in memory if DSN is empty
func (s *ServerApp) userRepo(ctx context.Context, c *Config, pool *pgxpool.Pool) (repository.UserRepo, error) {
	switch {
	case mongostore.IsMongoURI(c.DatabaseDSN):
		mdb, err := mongostore.Connect(ctx, c.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("error while connecting to mongodb. Err: %w", err)
		}
		repo, err := mongostore.NewUserRepo(ctx, mdb)
		if err != nil {
			_ = mdb.Client().Disconnect(ctx)
			return nil, fmt.Errorf("error while preparing users collection. Err: %w", err)
		}
		s.closers = append(s.closers, repo.Close)
		return repo, nil
	case pool != nil:
		return &postgres.UserRepo{DB: pool}, nil
	default:
		s.logger.Warn("Users are kept in memory and lost on restart")
		return memory.NewUserRepo(), nil
	}
}

func (s *ServerApp) sessionStore(ctx context.Context, c *Config, pool *pgxpool.Pool) (repository.SessionStore, error) {
	var store repository.SessionStore

	switch c.SessionStore {
	case StoreRedis:
		client, err := redisstore.Connect(ctx, c.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("error while connecting to redis. Err: %w", err)
		}
		store = redisstore.NewSessionStore(client)
	case StorePostgres:
		if pool == nil {
			return nil, errors.New("postgres session store requires postgres database")
		}
		store = postgres.NewSessionStore(pool)
	case StoreMemory:
		s.logger.Warn("Sessions are kept in memory and lost on restart")
		store = memory.NewSessionStore()
	default:
		return nil, fmt.Errorf("unknown session store %q", c.SessionStore)
	}

	s.closers = append(s.closers, func(context.Context) error { return store.Close() })
	return store, nil
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Listen and serve until context is cancelled
	g.Go(func() error {
		s.logger.Info("Starting server", "address", s.ListenAddr)
		err := httpServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	// Then close gracefully connections
	g.Go(func() error {
		<-gctx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := httpServer.Shutdown(timeoutCtx)
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
			return httpServer.Close()
		}
		s.logger.Info("HTTP server stopped")
		return err
	})

	return g.Wait()
}

// Close store connections
func (s *ServerApp) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](ctx); err != nil {
			s.logger.Warn("Error while closing store", "error", err)
		}
	}
	s.closers = nil
}
