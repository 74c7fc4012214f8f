package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/parakaleo/clinic/internal/config"
	"github.com/parakaleo/clinic/internal/domain/consultation"
	"github.com/parakaleo/clinic/internal/domain/doctor"
	"github.com/parakaleo/clinic/internal/domain/lab"
	"github.com/parakaleo/clinic/internal/domain/patient"
	"github.com/parakaleo/clinic/internal/domain/pharmacy"
	"github.com/parakaleo/clinic/internal/domain/visit"
	"github.com/parakaleo/clinic/internal/platform/auth"
	"github.com/parakaleo/clinic/internal/platform/db"
	"github.com/parakaleo/clinic/internal/platform/middleware"
	"github.com/parakaleo/clinic/internal/platform/reporting"
	"github.com/parakaleo/clinic/internal/platform/websocket"
)

// visitOpener adapts the visit service to the patient.VisitCreator interface,
// avoiding a circular import between the patient and visit packages.
type visitOpener struct {
	visits *visit.Service
}

func (a *visitOpener) CreateVisit(ctx context.Context, patientID, priority string) (string, error) {
	v, err := a.visits.Create(ctx, patientID, visit.Priority(priority))
	if err != nil {
		return "", err
	}
	return v.VisitID, nil
}

// familyLookup adapts the patient service to the visit.FamilyDirectory
// interface for family check-in.
type familyLookup struct {
	patients *patient.Service
}

func (a *familyLookup) FamilyMembers(ctx context.Context, patientID string) ([]visit.FamilyMember, error) {
	members, err := a.patients.FamilyMembers(ctx, patientID)
	if err != nil {
		return nil, err
	}
	out := make([]visit.FamilyMember, 0, len(members))
	for _, m := range members {
		fm := visit.FamilyMember{
			PatientID: m.PatientID,
			Name:      m.Name,
			Age:       m.Age,
		}
		if m.Relationship != nil {
			fm.Relationship = *m.Relationship
		}
		out = append(out, fm)
	}
	return out, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "clinic-server",
		Short: "Clinic workflow API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("WARNING: migrate down is destructive and not supported by the built-in runner.")
			fmt.Println("Restore the database from a backup instead.")
			return nil
		},
	})

	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the preset medication catalog and doctor roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			pharmacySvc := pharmacy.NewService(pharmacy.NewRepo(pool), nil)
			meds, err := pharmacySvc.SeedPresets(ctx)
			if err != nil {
				return fmt.Errorf("seed preset medications: %w", err)
			}

			doctorSvc := doctor.NewService(doctor.NewRepo(pool))
			docs, err := doctorSvc.Seed(ctx)
			if err != nil {
				return fmt.Errorf("seed doctors: %w", err)
			}

			fmt.Printf("Seeded %d preset medication(s) and %d doctor(s).\n", meds, docs)
			return nil
		},
	}
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	// Database
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	// Echo server
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Global middleware
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Health checks and login sit outside the authenticated group.
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))
	e.POST("/api/v1/auth/login", loginHandler(cfg))

	// Authenticated API group
	apiV1 := e.Group("/api/v1")
	if cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware())
	} else {
		apiV1.Use(auth.JWTMiddleware(cfg.AuthSecret))
	}

	// Services
	patientSvc := patient.NewService(patient.NewRepo(pool))
	visitSvc := visit.NewService(visit.NewRepo(pool))
	patientSvc.SetVisitCreator(&visitOpener{visits: visitSvc})
	visitSvc.SetFamilyDirectory(&familyLookup{patients: patientSvc})

	pharmacySvc := pharmacy.NewService(pharmacy.NewRepo(pool), visitSvc)
	labSvc := lab.NewService(lab.NewRepo(pool), visitSvc)
	consultSvc := consultation.NewService(consultation.NewRepo(pool), visitSvc, pharmacySvc, labSvc)
	doctorSvc := doctor.NewService(doctor.NewRepo(pool))
	reportSvc := reporting.NewService(reporting.NewRepo(pool))

	// Multi-step flows (vitals recording, duplicate linking, consultation
	// outcomes, prescription resolution, lab completion) commit atomically or
	// not at all.
	runTx := func(ctx context.Context, fn func(context.Context) error) error {
		return db.RunInTx(ctx, pool, fn)
	}
	patientSvc.UseTx(runTx)
	visitSvc.UseTx(runTx)
	consultSvc.UseTx(runTx)
	pharmacySvc.UseTx(runTx)
	labSvc.UseTx(runTx)

	// Handlers
	patient.NewHandler(patientSvc, cfg.DefaultLocation).RegisterRoutes(apiV1)
	visit.NewHandler(visitSvc).RegisterRoutes(apiV1)
	consultation.NewHandler(consultSvc).RegisterRoutes(apiV1)
	pharmacy.NewHandler(pharmacySvc).RegisterRoutes(apiV1)
	lab.NewHandler(labSvc).RegisterRoutes(apiV1)
	doctor.NewHandler(doctorSvc).RegisterRoutes(apiV1)
	reporting.NewHandler(reportSvc).RegisterRoutes(apiV1)

	// Station-to-station message relay
	hub := websocket.NewHub()
	websocket.NewHandler(hub, logger).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
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
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
}

// loginHandler mints a station token. Stations authenticate with the shared
// clinic secret; the minted token carries the operator's name and role.
func loginHandler(cfg *config.Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req struct {
			Name   string `json:"name"`
			Role   string `json:"role"`
			Secret string `json:"secret"`
		}
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
		if req.Name == "" || !auth.ValidRole(req.Role) {
			return echo.NewHTTPError(http.StatusBadRequest, "name and a valid station role are required")
		}
		if !cfg.IsDev() && req.Secret != cfg.AuthSecret {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid clinic secret")
		}

		secret := cfg.AuthSecret
		if secret == "" {
			// Development only; Validate rejects an empty secret in prod.
			secret = "dev-secret"
		}
		ttl := time.Duration(cfg.TokenTTLMinutes) * time.Minute
		token, err := auth.MintToken(secret, req.Name, req.Role, ttl)
		if err != nil {
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to mint token")
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"token":      token,
			"name":       req.Name,
			"role":       req.Role,
			"expires_in": int(ttl.Seconds()),
		})
	}
}
