package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/backoffice/cmd/backoffice/cli"
	"github.com/odyssey-erp/backoffice/internal/app"
	"github.com/odyssey-erp/backoffice/internal/auth"
	"github.com/odyssey-erp/backoffice/internal/clients"
	"github.com/odyssey-erp/backoffice/internal/finance"
	"github.com/odyssey-erp/backoffice/internal/observability"
	"github.com/odyssey-erp/backoffice/internal/payables"
	"github.com/odyssey-erp/backoffice/internal/platform/cache"
	"github.com/odyssey-erp/backoffice/internal/platform/db"
	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
	"github.com/odyssey-erp/backoffice/internal/quotations"
	"github.com/odyssey-erp/backoffice/internal/rbac"
	"github.com/odyssey-erp/backoffice/internal/shared"
	"github.com/odyssey-erp/backoffice/internal/suppliers"
	"github.com/odyssey-erp/backoffice/jobs"
)

const usage = `usage: backoffice [command]

commands:
  serve                  run the HTTP API (default)
  migrate                apply the embedded database schema
  init-admin             create or reset the admin from ADMIN_EMAIL/ADMIN_PASSWORD/ADMIN_NAME
  jobs trigger <name>    enqueue a background job (payables:refresh-overdue, idempotency:cleanup)
  jobs inspect           print default queue statistics`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	cmd := "serve"
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "serve":
		err = serve(ctx, cfg, logger)
	case "migrate":
		err = migrate(ctx, cfg, logger)
	case "init-admin":
		err = initAdmin(ctx, cfg, logger)
	case "jobs":
		err = runJobs(ctx, cfg, logger, args)
	case "help", "-h", "--help":
		fmt.Println(usage)
		return
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error(cmd, slog.Any("error", err))
		os.Exit(1)
	}
}

func migrate(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := db.Migrate(ctx, pool); err != nil {
		return err
	}
	logger.Info("schema applied")
	return nil
}

func initAdmin(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	if cfg.AdminEmail == "" || cfg.AdminPassword == "" {
		return errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set")
	}
	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Admin bootstrap never issues tokens, so no session store is needed.
	svc := auth.NewService(auth.NewRepository(pool), auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL), nil, logger)
	user, created, err := svc.EnsureAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
	if err != nil {
		return err
	}
	logger.Info("admin ready", slog.Int64("user_id", user.ID), slog.String("email", user.Email), slog.Bool("created", created))
	return nil
}

func runJobs(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	ops := cli.NewJobsCLI(cfg.RedisAddr)
	defer func() {
		if err := ops.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			return errors.New("jobs trigger: job name required")
		}
		info, err := ops.Trigger(ctx, args[1])
		if err != nil {
			return err
		}
		logger.Info("job enqueued", slog.String("type", info.Type), slog.String("id", info.ID), slog.String("queue", info.Queue))
	case "inspect":
		stats, err := ops.InspectQueue()
		if err != nil {
			return err
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d failed=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry, stats.Failed)
	default:
		return fmt.Errorf("jobs: unknown subcommand %q", args[0])
	}
	return nil
}

func serve(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	httpx.SetDebug(!cfg.IsProduction())

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer dbpool.Close()
	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, dbpool); err != nil {
			return err
		}
	}

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr})
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	rbacMiddleware := rbac.Middleware{Service: rbac.NewService(nil), Logger: logger}

	authService := auth.NewService(
		auth.NewRepository(dbpool),
		auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL),
		auth.NewSessionStore(redisClient),
		logger,
	)

	handlers := buildHandlers(dbpool, cfg, logger, metrics, jobClient, rbacMiddleware)
	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Metrics:            metrics,
		Authenticator:      authService,
		AuthHandler:        auth.NewHandler(logger, authService, rbacMiddleware),
		QuotationsHandler:  handlers.quotations,
		FinanceHandler:     handlers.finance,
		PayablesHandler:    handlers.payables,
		SuppliersHandler:   handlers.suppliers,
		ClientsHandler:     handlers.clients,
		JobHandler:         jobs.NewHandler(inspector, logger, rbacMiddleware),
		PermissionsHandler: rbac.NewPermissionsHandler(rbacMiddleware.Service),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("env", cfg.AppEnv))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

type domainHandlers struct {
	quotations *quotations.Handler
	finance    *finance.Handler
	payables   *payables.Handler
	suppliers  *suppliers.Handler
	clients    *clients.Handler
}

func buildHandlers(pool *pgxpool.Pool, cfg *app.Config, logger *slog.Logger, metrics *observability.Metrics, notifier quotations.Notifier, mw rbac.Middleware) domainHandlers {
	quotationService := quotations.NewService(quotations.NewRepository(pool), cfg.QuotationConfig(), notifier, metrics, logger)
	financeService := finance.NewService(finance.NewRepository(pool), shared.NewIdempotencyStore(pool), metrics, logger)
	payablesService := payables.NewService(payables.NewRepository(pool), metrics, logger)

	return domainHandlers{
		quotations: quotations.NewHandler(logger, quotationService, mw),
		finance:    finance.NewHandler(logger, financeService, mw),
		payables:   payables.NewHandler(logger, payablesService, mw),
		suppliers:  suppliers.NewHandler(logger, suppliers.NewService(suppliers.NewRepository(pool), logger), mw),
		clients:    clients.NewHandler(logger, clients.NewService(clients.NewRepository(pool), logger), mw),
	}
}
