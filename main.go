package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/EmpoweredVote/EV-Profiles/internal/auth"
	"github.com/EmpoweredVote/EV-Profiles/internal/config"
	"github.com/EmpoweredVote/EV-Profiles/internal/db"
	"github.com/EmpoweredVote/EV-Profiles/internal/logging"
	"github.com/EmpoweredVote/EV-Profiles/internal/middleware"
	"github.com/EmpoweredVote/EV-Profiles/internal/places"
	"github.com/EmpoweredVote/EV-Profiles/internal/profiles"
	"github.com/EmpoweredVote/EV-Profiles/internal/reports"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	_ = godotenv.Load(".env.local")

	cfg, err := config.Load("config.yaml")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer logger.Sync()

	d, err := db.Connect(cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := setup(d, cfg, logger); err != nil {
		logger.Fatal("Failed to set up database", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           newRouter(d, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server listening", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

// setup prepares extensions, the census reference schema and every module's
// tables. Profiles reference places and reports, so they go last.
func setup(d *gorm.DB, cfg *config.Config, logger *zap.Logger) error {
	if err := db.EnsureUUIDExtension(d); err != nil {
		return fmt.Errorf("enable uuid-ossp: %w", err)
	}

	sqlDB, err := d.DB()
	if err != nil {
		return err
	}
	if err := db.RunMigrations(sqlDB, cfg.Database.MigrationsPath, logger); err != nil {
		return err
	}

	for _, initFn := range []func(*gorm.DB) error{auth.Init, places.Init, reports.Init, profiles.Init} {
		if err := initFn(d); err != nil {
			return err
		}
	}
	return nil
}

func newRouter(d *gorm.DB, cfg *config.Config, logger *zap.Logger) http.Handler {
	sessions := auth.SessionInfo{DB: d}
	limit := middleware.RateLimit(cfg.RateLimit)

	validator := places.NewValidator(
		places.LimitsFromConfig(cfg.Geometry, cfg.Place),
		places.NewPostGISSource(d),
		logger.Named("places"),
	)
	placeSvc := places.NewService(places.NewGormStore(d), validator, logger.Named("places"))

	profileSvc := profiles.NewService(
		profiles.NewGormStore(d),
		placeSvc,
		reports.NewReportStore(d),
		profiles.SummaryEvaluator{},
		profiles.WithClearStale(cfg.Profile.ClearStaleEvaluation),
		profiles.WithLogger(logger.Named("profiles")),
	)

	authHandler := auth.NewHandler(d,
		func(ctx context.Context, userID string) ([]string, error) {
			list, err := placeSvc.List(ctx, userID)
			if err != nil {
				return nil, err
			}
			ids := make([]string, 0, len(list))
			for _, p := range list {
				ids = append(ids, p.ID.String())
			}
			return ids, nil
		},
		func(ctx context.Context, userID string) ([]string, error) {
			list, err := profileSvc.List(ctx, userID)
			if err != nil {
				return nil, err
			}
			ids := make([]string, 0, len(list))
			for _, p := range list {
				ids = append(ids, p.ID.String())
			}
			return ids, nil
		},
		cfg.Env != "local",
		logger.Named("auth"),
	)

	resources := reports.NewResources(d, logger.Named("reports"))
	resources.CatalogGuard = middleware.AdminMiddleware(sessions)

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Use(middleware.RequestLogger(logger.Named("http")))
	r.Get("/", RootHandler)

	r.Mount("/auth", auth.SetupRoutes(authHandler, sessions, limit))
	r.Mount("/users", auth.SetupUserRoutes(authHandler, sessions, limit))
	r.Mount("/places", places.SetupRoutes(places.NewHandler(placeSvc, logger.Named("places")), sessions, limit))
	r.Mount("/profiles", profiles.SetupRoutes(profiles.NewHandler(profileSvc, logger.Named("profiles")), sessions, limit))
	resources.Mount(r, sessions, limit)

	return r
}
