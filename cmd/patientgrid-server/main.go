package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/icrc/patientgrid/internal/config"
	"github.com/icrc/patientgrid/internal/domain/editing"
	"github.com/icrc/patientgrid/internal/domain/patientgrid"
	"github.com/icrc/patientgrid/internal/domain/wizard"
	"github.com/icrc/patientgrid/internal/platform/auth"
	"github.com/icrc/patientgrid/internal/platform/db"
	"github.com/icrc/patientgrid/internal/platform/fetchcache"
	"github.com/icrc/patientgrid/internal/platform/middleware"
	"github.com/icrc/patientgrid/internal/platform/openmrs"
	"github.com/icrc/patientgrid/internal/platform/sessionstore"
	"github.com/icrc/patientgrid/internal/platform/spreadsheet"
	"github.com/icrc/patientgrid/internal/platform/validate"
	"github.com/icrc/patientgrid/migrations"
)

const requestTimeout = 2 * time.Minute

func main() {
	rootCmd := &cobra.Command{
		Use:   "patientgrid-server",
		Short: "Patient grid API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(downloadCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	if cfg != nil && cfg.IsDev() {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run session database migrations",
	}

	withMigrator := func(fn func(ctx context.Context, m *db.Migrator) error) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if cfg.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required")
		}
		ctx := context.Background()
		pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return err
		}
		defer pool.Close()
		return fn(ctx, db.NewMigrator(pool, migrations.FS))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				count, err := m.Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(ctx context.Context, m *db.Migrator) error {
				statuses, err := m.Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Fprintln(out, "---------- ---------------------------------------- ---------- --------------------")
				for _, s := range statuses {
					status := "pending"
					appliedAt := ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	})

	return cmd
}

func downloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download <grid-uuid>",
		Short: "Write the spreadsheet matrix of a grid to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			if format != "csv" && format != "json" {
				return fmt.Errorf("--format must be csv or json")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
			client := openmrs.New(openmrs.Config{
				BaseURL:  cfg.OpenMRSBaseURL,
				Username: cfg.OpenMRSUsername,
				Password: cfg.OpenMRSPassword,
				Timeout:  cfg.OpenMRSTimeout,
			}, logger)
			gridCfg, err := config.LoadGridConfig(cfg.GridConfigFile)
			if err != nil {
				return err
			}
			svc := patientgrid.NewService(client, fetchcache.New(logger, cfg.CacheTTL), gridCfg.Labels, logger)

			matrix, err := svc.Download(cmd.Context(), "", args[0])
			if err != nil {
				return err
			}
			for _, w := range matrix.Warnings {
				logger.Warn().Str("grid_uuid", args[0]).Msg(w)
			}
			return writeMatrix(cmd.OutOrStdout(), matrix, format)
		},
	}
	cmd.Flags().String("format", "csv", "Output format (csv or json)")
	return cmd
}

func writeMatrix(w io.Writer, m *patientgrid.DownloadMatrix, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}
	return spreadsheet.WriteCSV(w, m.Rows)
}

// app holds the wired services of a running server.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	grids   *patientgrid.Service
	editing *editing.Service
	wizard  *wizard.Service
	checks  map[string]db.Pinger
	closers []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, checks: map[string]db.Pinger{}}

	gridCfg, err := config.LoadGridConfig(cfg.GridConfigFile)
	if err != nil {
		return nil, err
	}

	client := openmrs.New(openmrs.Config{
		BaseURL:  cfg.OpenMRSBaseURL,
		Username: cfg.OpenMRSUsername,
		Password: cfg.OpenMRSPassword,
		Timeout:  cfg.OpenMRSTimeout,
	}, logger.With().Str("component", "openmrs").Logger())
	a.checks["openmrs"] = client

	store, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	cache := fetchcache.New(logger.With().Str("component", "fetchcache").Logger(), cfg.CacheTTL)
	a.grids = patientgrid.NewService(client, cache, gridCfg.Labels, logger)
	a.editing = editing.NewService(a.grids, client, store, logger)
	a.grids.SetOverlayProvider(a.editing)
	a.grids.OnDelete(a.editing.Clear)
	a.wizard = wizard.NewService(a.grids, store, gridCfg, logger)
	return a, nil
}

func (a *app) openStore(ctx context.Context) (sessionstore.Store, error) {
	switch a.cfg.SessionStore {
	case config.SessionStorePostgres:
		pool, err := db.NewPool(ctx, a.cfg.DatabaseURL, a.cfg.DBMaxConns, a.cfg.DBMinConns)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		a.checks["database"] = pool
		if err := ensureMigrated(ctx, pool, a.logger); err != nil {
			return nil, err
		}
		a.logger.Info().Msg("session store: postgres")
		return sessionstore.NewPGStore(pool), nil

	case config.SessionStoreRedis:
		opts, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		a.closers = append(a.closers, func() { client.Close() })
		a.checks["redis"] = db.PingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		a.logger.Info().Str("addr", opts.Addr).Msg("session store: redis")
		return sessionstore.NewRedisStore(client, a.cfg.SessionTTL), nil

	default:
		a.logger.Warn().Msg("session store: memory, editing sessions and drafts are lost on restart")
		return sessionstore.NewMemoryStore(), nil
	}
}

func ensureMigrated(ctx context.Context, pool *pgxpool.Pool, logger zerolog.Logger) error {
	count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
	if err != nil {
		return fmt.Errorf("migrate session database: %w", err)
	}
	if count > 0 {
		logger.Info().Int("count", count).Msg("applied session database migrations")
	}
	return nil
}

func newServer(a *app) *echo.Echo {
	cfg := a.cfg
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{echo.HeaderContentDisposition},
	}))

	e.GET("/health", db.HealthHandler(a.checks))

	apiV1 := e.Group("/api/v1")
	if cfg.ResolvedAuthMode() == "development" {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.AuthSigningKey),
		}))
	}

	rateLimitCfg := middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		BurstSize:         cfg.RateLimitBurst,
	}
	if rateLimitCfg.RequestsPerSecond <= 0 {
		rateLimitCfg = middleware.DefaultRateLimitConfig()
	}
	apiV1.Use(middleware.RateLimit(rateLimitCfg))
	apiV1.Use(middleware.RequestTimeout(requestTimeout))

	patientgrid.NewHandler(a.grids).RegisterRoutes(apiV1)
	editing.NewHandler(a.editing).RegisterRoutes(apiV1)
	wizard.NewHandler(a.wizard).RegisterRoutes(apiV1)
	return e
}

func runServer() error {
	cfg, err := loadConfig()
	if err != nil {
		l := newLogger(nil)
		l.Error().Err(err).Msg("invalid configuration")
		return err
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Error().Err(err).Msg("failed to start")
		return err
	}
	defer a.Close()

	e := newServer(a)

	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Str("openmrs", cfg.OpenMRSBaseURL).Str("auth_mode", cfg.ResolvedAuthMode()).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
