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

	"github.com/Dosada05/alliance-board/config"
	"github.com/Dosada05/alliance-board/db"
	"github.com/Dosada05/alliance-board/handlers"
	"github.com/Dosada05/alliance-board/metrics"
	"github.com/Dosada05/alliance-board/middleware"
	"github.com/Dosada05/alliance-board/models"
	"github.com/Dosada05/alliance-board/realtime"
	"github.com/Dosada05/alliance-board/repositories"
	api "github.com/Dosada05/alliance-board/routes"
	"github.com/Dosada05/alliance-board/services"
	"github.com/Dosada05/alliance-board/storage"
	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "alliance-server",
		Short:        "Session store and realtime hub for the alliance board",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
	cmd.AddCommand(newTokenCmd())
	return cmd
}

// newTokenCmd выпускает токен для CLI и локальной разработки.
func newTokenCmd() *cobra.Command {
	var (
		userID string
		email  string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token signed with the server secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadServer(cmd.Context())
			if err != nil {
				return err
			}
			token, err := middleware.IssueToken(cfg.JWTSecretKey, models.User{ID: userID, Email: email}, ttl)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (subject)")
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func serve(ctx context.Context) error {
	// Загрузка конфигурации
	cfg, err := config.LoadServer(ctx)
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: config.LogLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	// Подключение к базе данных
	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		return err
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, dbConn); err != nil {
			logger.Error("failed to migrate database", slog.Any("error", err))
			return err
		}
		logger.Info("database schema ensured")
	}

	var uploader storage.FileUploader
	if cfg.R2Configured() {
		uploader, err = storage.NewCloudflareR2Uploader(ctx, storage.CloudflareR2UploaderConfig{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
			return err
		}
		logger.Info("Cloudflare R2 uploader initialized")
	} else {
		logger.Warn("R2 storage not configured, export archives disabled")
	}

	m := metrics.NewManager()

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := realtime.NewHub(logger, m)
	go hub.Run(hubCtx)
	logger.Info("WebSocket Hub started")

	sessionRepo := repositories.NewPostgresSessionRepository(dbConn)
	shareRepo := repositories.NewPostgresShareRepository(dbConn)
	userRepo := repositories.NewPostgresUserRepository(dbConn)

	sessionService := services.NewSessionService(sessionRepo, hub, logger)
	shareService := services.NewShareService(shareRepo, sessionRepo)
	userService := services.NewUserService(userRepo)

	router := chi.NewRouter()
	api.SetupRoutes(router, api.Handlers{
		Auth:      middleware.NewAuthenticator(cfg.JWTSecretKey, userService, logger),
		Sessions:  handlers.NewSessionHandler(sessionService),
		Shares:    handlers.NewShareHandler(shareService),
		Export:    handlers.NewExportHandler(sessionService, uploader),
		WebSocket: handlers.NewWebSocketHandler(hub, sessionService, cfg.CORSAllowedOrigins, logger),
		Proxy:     handlers.NewProxyHandler(cfg.TBAAPIKey, cfg.TBABaseURL, &http.Client{Timeout: 10 * time.Second}, m, logger),
	}, api.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Metrics:        m,
		DB:             dbConn,
	})
	logger.Info("Routes configured")

	// WriteTimeout не ставим: websocket-соединения живут долго.
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			return err
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
			return err
		}
		logger.Info("server shutdown complete")
	}
	return nil
}
