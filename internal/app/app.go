package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/godilite/evaluation-engine/internal/config"
	handler "github.com/godilite/evaluation-engine/internal/grpc"
	"github.com/godilite/evaluation-engine/internal/httpapi"
	"github.com/godilite/evaluation-engine/internal/repository"
	"github.com/godilite/evaluation-engine/internal/service"
	"github.com/godilite/evaluation-engine/internal/taxonomy"
	"github.com/godilite/evaluation-engine/pkg/cache"
	dbbuilder "github.com/godilite/evaluation-engine/pkg/database"
	grpcsrv "github.com/godilite/evaluation-engine/pkg/grpc/server"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

type App struct {
	logger          *zap.Logger
	dbPool          *sql.DB
	cache           *cache.Cache
	grpcServer      *grpcsrv.Server
	httpServer      *http.Server
	httpListener    net.Listener
	shutdownTimeout time.Duration
}

type Option func(*appOptions)

type appOptions struct {
	grpcListener net.Listener
	httpListener net.Listener
}

// WithGRPCListener serves gRPC on lis instead of GRPC_PORT.
func WithGRPCListener(lis net.Listener) Option {
	return func(o *appOptions) { o.grpcListener = lis }
}

// WithHTTPListener serves the REST API on lis instead of HTTP_PORT.
func WithHTTPListener(lis net.Listener) Option {
	return func(o *appOptions) { o.httpListener = lis }
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	options := &appOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	engine, err := cfg.EngineOptions()
	if err != nil {
		return nil, err
	}

	dbOpts := []dbbuilder.Option{
		dbbuilder.WithDriver(cfg.DBDriver),
		dbbuilder.WithDataSource(cfg.DBPath),
		dbbuilder.WithLogger(logger),
	}
	if cfg.DBDriver == repository.DriverSQLite {
		dbOpts = append(dbOpts, dbbuilder.WithSchema(repository.SQLiteSchema))
	}
	dbPool, err := dbbuilder.New(dbOpts...)
	if err != nil {
		return nil, fmt.Errorf("database init failed: %w", err)
	}
	logger.Info("Database pool initialized", zap.String("driver", cfg.DBDriver))

	repo := repository.NewEvaluationRepository(dbPool, cfg.DBDriver)

	tax, err := loadTaxonomy(ctx, cfg, repo)
	if err != nil {
		_ = dbPool.Close()
		return nil, err
	}
	logger.Info("Taxonomy loaded",
		zap.String("source", cfg.TaxonomySource),
		zap.String("version", tax.Version()),
		zap.Int("questions", tax.QuestionCount()))

	evaluationService, err := service.NewEvaluationService(tax, engine, logger, service.WithStorage(repo))
	if err != nil {
		_ = dbPool.Close()
		return nil, fmt.Errorf("evaluation service init failed: %w", err)
	}

	// Interfaces stay nil without Redis so the handlers see no cache at all.
	var (
		cacheClient *cache.Cache
		store       cache.Store
		cacher      handler.Cacher
	)
	if cfg.CacheEnabled {
		cacheClient, err = cache.New(ctx,
			cache.WithAddress(cfg.RedisAddr),
			cache.WithKeyPrefix("evaluation-engine:"+tax.Version()+":"),
		)
		if err != nil {
			logger.Warn("Cache unavailable, serving without cache", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			cacheClient = nil
		} else {
			store, cacher = cacheClient, cacheClient
			logger.Info("Cache client initialized", zap.String("addr", cfg.RedisAddr))
		}
	}

	grpcHandlers := handler.NewGRPCHandlers(evaluationService, cacher, logger, cfg.CacheTTL)

	serverOpts := []grpcsrv.Option{
		grpcsrv.WithPort(cfg.GRPCPort),
		grpcsrv.WithLogger(logger),
		grpcsrv.WithReflection(cfg.GRPCReflectionEnabled),
		grpcsrv.WithLogging(true),
		grpcsrv.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	}
	if options.grpcListener != nil {
		serverOpts = append(serverOpts, grpcsrv.WithListener(options.grpcListener))
	}
	grpcServer, err := grpcsrv.New(serverOpts...)
	if err != nil {
		closeQuietly(cacheClient, dbPool)
		return nil, fmt.Errorf("failed to create gRPC server: %w", err)
	}

	grpcServer.RegisterServiceWithHealth(handler.ServiceName, func(s *grpc.Server) {
		handler.RegisterEvaluationAnalyticsServer(s, grpcHandlers)
	})

	httpHandler := httpapi.NewHandler(evaluationService, store, logger, cfg.CacheTTL)
	httpServer := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: httpHandler.Routes(httpapi.RouterOptions{
			AllowedOrigins: cfg.CORSAllowedOrigins,
			RateLimitRPS:   cfg.RateLimitRPS,
			RateLimitBurst: cfg.RateLimitBurst,
			RequestTimeout: cfg.HTTPRequestTimeout,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &App{
		logger:          logger,
		dbPool:          dbPool,
		cache:           cacheClient,
		grpcServer:      grpcServer,
		httpServer:      httpServer,
		httpListener:    options.httpListener,
		shutdownTimeout: shutdownTimeout,
	}, nil
}

func loadTaxonomy(ctx context.Context, cfg *config.Config, repo *repository.EvaluationRepository) (*taxonomy.Taxonomy, error) {
	if cfg.TaxonomySource == config.TaxonomyDatabase {
		tax, err := repo.LoadTaxonomy(ctx, cfg.TaxonomyVersion)
		if err != nil {
			return nil, fmt.Errorf("taxonomy %s: %w", cfg.TaxonomyVersion, err)
		}
		return tax, nil
	}

	tax := taxonomy.Default()
	if cfg.TaxonomyVersion != tax.Version() {
		return nil, fmt.Errorf("%w: built-in taxonomy is %s, TAXONOMY_VERSION is %s",
			config.ErrInvalidConfig, tax.Version(), cfg.TaxonomyVersion)
	}
	return tax, nil
}

// Run starts both servers and blocks until ctx is done or a shutdown signal is received.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application starting")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.grpcServer.Start()

	httpErr := make(chan error, 1)
	go func() {
		var err error
		if a.httpListener != nil {
			err = a.httpServer.Serve(a.httpListener)
		} else {
			err = a.httpServer.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			httpErr <- err
		}
		close(httpErr)
	}()
	a.logger.Info("HTTP server started", zap.String("addr", a.httpAddr()))

	var runErr error
	select {
	case <-ctx.Done():
	case err, ok := <-httpErr:
		if ok {
			a.logger.Error("HTTP server failed", zap.Error(err))
			runErr = fmt.Errorf("http server: %w", err)
		}
	}

	a.logger.Info("application shutting down")
	if err := a.Shutdown(context.Background()); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Shutdown stops both servers and releases the cache and database.
func (a *App) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.shutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		a.logger.Error("HTTP shutdown error", zap.Error(err))
		errs = append(errs, err)
	}
	if err := a.grpcServer.Shutdown(ctx); err != nil {
		a.logger.Error("gRPC shutdown error", zap.Error(err))
		errs = append(errs, err)
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Error("cache shutdown error", zap.Error(err))
		}
	}
	if err := a.dbPool.Close(); err != nil {
		a.logger.Error("database shutdown error", zap.Error(err))
	}

	if ctx.Err() == context.DeadlineExceeded {
		a.logger.Warn("shutdown completed but deadline exceeded")
	} else {
		a.logger.Info("graceful shutdown completed successfully")
	}

	_ = a.logger.Sync()
	return errors.Join(errs...)
}

func (a *App) httpAddr() string {
	if a.httpListener != nil {
		return a.httpListener.Addr().String()
	}
	return a.httpServer.Addr
}

func closeQuietly(c *cache.Cache, db *sql.DB) {
	if c != nil {
		_ = c.Close()
	}
	_ = db.Close()
}
