package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	auth "github.com/dvsa/dvsa-auth"
	"github.com/dvsa/dvsa-auth/internal/config"
	"github.com/dvsa/dvsa-auth/internal/database"
	"github.com/dvsa/dvsa-auth/internal/logger"
	"github.com/dvsa/dvsa-auth/internal/metrics"
	"github.com/dvsa/dvsa-auth/repository"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/uptrace/bun"
)

const shutdownTimeout = 30 * time.Second

// Init sets up logging and loads the configuration.
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	log := logger.SetupDefault(w, os.Getenv("ENV"))

	cfg, err := config.Load()
	if err != nil {
		return nil, log, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, logger.SetupDefault(w, cfg.Env), nil
}

// Run dispatches args (os.Args[1:]) to a subcommand.
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck skips the full init
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "1888"
		}
		return runHealthcheck(port)
	}

	cfg, log, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	log.Info("starting dvsa",
		slog.String("command", string(cmd)),
		slog.String("env", cfg.Env),
		slog.String("port", cfg.Port),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg, log)
	default:
		return runServe(cfg, log)
	}
}

// NewServer wires every dependency into a fiber app. The database must
// already hold the schema.
func NewServer(cfg *config.Config, db *bun.DB, log *slog.Logger) (*fiber.App, error) {
	tokens, err := auth.NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetIssuer(), log)
	if err != nil {
		return nil, err
	}

	repo := repository.NewRepositoryManager(db, tokens)
	if err := repo.Validate(); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(reg)

	auther := auth.NewAuthenticator(repo, tokens, cfg).
		WithLogger(log).
		WithActivitySink(collector)

	routeAuth, err := auth.NewHTTPAuthenticator(auther, tokens, cfg)
	if err != nil {
		return nil, err
	}
	routeAuth.WithLogger(log).WithRejectionListener(func(_ *fiber.Ctx, err error) {
		collector.RecordRejection(auth.HTTPStatus(err))
	})

	controller := auth.NewAuthController(repo, routeAuth,
		auth.WithControllerLogger(log),
		auth.WithControllerActivitySink(collector),
		auth.WithControllerDebug(!cfg.IsProd()),
	)

	app := fiber.New(fiber.Config{
		AppName:               "dvsa",
		ErrorHandler:          auth.ErrorHandler(log),
		DisableStartupMessage: true,
	})

	app.Use(requestid.New())
	app.Use(collector.Middleware())
	app.Use(recover.New())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler(reg)))
	auth.RegisterAuthRoutes(app, controller)

	return app, nil
}

// runServe opens the database, serves the API and shuts down gracefully
// on SIGINT or SIGTERM.
func runServe(cfg *config.Config, log *slog.Logger) error {
	db, err := database.Open(cfg.DatabaseURL, !cfg.IsProd())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Info("database connection established")

	if database.IsSQLite(cfg.DatabaseURL) {
		if err := database.CreateTables(context.Background(), db); err != nil {
			return err
		}
	}

	app, err := NewServer(cfg, db, log)
	if err != nil {
		return fmt.Errorf("failed to build server: %w", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	listenErr := make(chan error, 1)
	go func() {
		log.Info("API server starting", slog.String("addr", ":"+cfg.Port))
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-stop:
	}

	log.Info("shutting down API server...")

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("API server stopped gracefully")
	return nil
}

// runMigrate applies every pending migration. sqlite databases get their
// schema from the models instead.
func runMigrate(cfg *config.Config, log *slog.Logger) error {
	log.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if database.IsSQLite(cfg.DatabaseURL) {
		db, err := database.Open(cfg.DatabaseURL, false)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.CreateTables(context.Background(), db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	} else if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck GETs /health on the local port.
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL hides the password of a database url.
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	return u.Redacted()
}
