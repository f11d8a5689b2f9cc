package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cliniq/emr/internal/config"
	"github.com/cliniq/emr/internal/domain/canvas"
	"github.com/cliniq/emr/internal/domain/session"
	"github.com/cliniq/emr/internal/domain/template"
	"github.com/cliniq/emr/internal/platform/assistant"
	"github.com/cliniq/emr/internal/platform/auth"
	"github.com/cliniq/emr/internal/platform/db"
	"github.com/cliniq/emr/internal/platform/middleware"
	"github.com/cliniq/emr/internal/platform/seeding"
	"github.com/cliniq/emr/internal/platform/websocket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "emr-server",
		Short: "AI-assisted clinical workspace server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(seedPreviewCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the workspace API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func seedPreviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed-preview",
		Short: "Print the canvas a doctor's session would open with",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, _ := cmd.Flags().GetString("doctor")

			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
			seeder := seeding.NewSeeder(seeding.NewDirectory(), seeding.NewAnalyzer(nil), logger)

			comps, err := seeder.Seed(context.Background(), doctorID)
			if err != nil {
				return fmt.Errorf("seed failed: %w", err)
			}

			out, err := json.MarshalIndent(comps, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	cmd.Flags().String("doctor", "DOC001", "Doctor id from the built-in roster")
	return cmd
}

func runServer() error {
	// Logger
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}
	if cfg.IsDev() {
		logger.Warn().Msg("running in development mode, all requests get admin access")
	}

	ctx := context.Background()

	// Template store: Postgres when configured, in-memory otherwise.
	templateRepo := template.NewMemoryRepo()
	var pool *pgxpool.Pool
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to database")
		}
		defer pool.Close()
		if err := template.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal().Err(err).Msg("failed to ensure template schema")
		}
		templateRepo = template.NewPGRepo(pool)
		logger.Info().Msg("connected to database")
	} else {
		logger.Info().Msg("no DATABASE_URL set, templates are stored in memory")
	}

	// Assistant
	gemini := assistant.NewGeminiClient(cfg.GeminiAPIKey, logger,
		assistant.WithModel(cfg.GeminiModel),
		assistant.WithHTTPClient(&http.Client{Timeout: cfg.AssistantTimeoutDuration()}),
	)
	if !gemini.Configured() {
		logger.Warn().Msg("GEMINI_API_KEY not set, chat requests will be rejected")
	}

	// Workspace wiring
	hub := websocket.NewHub(logger)
	directory := seeding.NewDirectory()
	seeder := seeding.NewSeeder(directory, seeding.NewAnalyzer(nil), logger)
	reconciler := canvas.NewReconciler(canvas.NewHighlightScheduler(cfg.HighlightDecayDuration()), logger)
	sessionSvc := session.NewService(directory, seeder, gemini, reconciler, hub, logger)
	templateSvc := template.NewService(templateRepo)

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
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	// Auth middleware
	if cfg.ResolvedAuthMode() == "development" {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			Audience:   cfg.AuthAudience,
			JWKSURL:    cfg.AuthJWKSURL,
			SigningKey: []byte(cfg.JWTSigningKey),
		}))
	}

	// Health check
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	if pool != nil {
		e.GET("/health/db", db.HealthHandler(pool))
	}

	// API routes
	apiV1 := e.Group("/api/v1")
	session.NewHandler(sessionSvc, templateSvc).RegisterRoutes(apiV1)
	template.NewHandler(templateSvc).RegisterRoutes(apiV1)
	websocket.NewHandler(hub).RegisterRoutes(apiV1)

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
