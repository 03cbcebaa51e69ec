package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safepath/internal/config"
	"safepath/internal/database"
	"safepath/internal/middleware"
	"safepath/internal/modules/auth"
	"safepath/internal/modules/vault"
	"safepath/internal/notification"
	"safepath/internal/pkg/clock"
	"safepath/internal/pkg/github"
	jwtsvc "safepath/internal/pkg/jwt"
	"safepath/internal/pkg/logging"
	"safepath/internal/pkg/response"
	"safepath/internal/pkg/secretbox"
	"safepath/internal/repository"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.AppEnv, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error(ctx, "api stopped", "error", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	db, err := database.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return err
	}
	if err := repository.AutoMigrate(db); err != nil {
		return err
	}

	r, err := newRouter(cfg, db, clock.Real(), nil, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "api listening", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// newRouter wires services and routes. githubClient may be nil.
func newRouter(cfg *config.Config, db *gorm.DB, clk clock.Clock, githubClient *http.Client, logger logging.Logger) (*gin.Engine, error) {
	codec := secretbox.New(cfg.VaultMasterKey)
	if err := codec.Validate(); err != nil {
		return nil, err
	}

	userRepo := repository.NewUserRepository(db)
	vaultRepo := repository.NewVaultRepository(db)

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTAccessTTL, cfg.RefreshTTL, cfg.ResetTokenTTL).WithClock(clk)
	mailer := notification.NewDevConsoleMailer(cfg.MailerEnabled, cfg.ResetURLBase, logger)

	authService := auth.NewService(userRepo, j, mailer, clk, logger)
	authHandler := auth.NewHandler(authService, auth.CookieConfig{
		Secure:   cfg.CookieSecure,
		SameSite: cfg.CookieSameSite,
		Path:     cfg.CookiePath,
	})

	ghValidator := github.NewValidator(github.Config{
		BaseURL:    cfg.GitHubAPIURL,
		UserAgent:  cfg.GitHubUserAgent,
		Timeout:    cfg.GitHubTimeout,
		HTTPClient: githubClient,
		Clock:      clk,
		Logger:     logger,
	})
	vaultService := vault.NewService(vaultRepo, codec, ghValidator, clk, cfg.VaultStaleAfter, logger)
	vaultHandler := vault.NewHandler(vaultService)

	if cfg.IsProdLike() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(middleware.RequestID())
	r.Use(middleware.ErrorLogger(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		response.Success(c, http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		authHandler.RegisterPublicRoutes(v1)

		protected := v1.Group("")
		protected.Use(middleware.JWTAuth(authService))
		{
			authHandler.RegisterProtectedRoutes(protected)
			vaultHandler.RegisterProtectedRoutes(protected)
		}
	}
	return r, nil
}
