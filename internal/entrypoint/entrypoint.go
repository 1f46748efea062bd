package entrypoint

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ama13/bookshelf/internal/auth"
	"github.com/ama13/bookshelf/internal/config"
	coverstore "github.com/ama13/bookshelf/internal/covers"
	"github.com/ama13/bookshelf/internal/database"
	"github.com/ama13/bookshelf/internal/database/audit"
	coversdb "github.com/ama13/bookshelf/internal/database/covers"
	http_controllers "github.com/ama13/bookshelf/internal/http"
	"github.com/ama13/bookshelf/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Run wires the application together and serves until interrupted.
func Run(cfg *config.Config, version string) {
	log.Printf("Starting Bookshelf v%s", version)

	db, err := database.NewDatabase(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	store, err := coverstore.NewStore(cfg.Uploads.Dir)
	if err != nil {
		log.Fatalf("Failed to initialize cover store: %v", err)
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get SQL database handle: %v", err)
	}

	sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}

	secret := cfg.Auth.SessionSecret
	if secret == "" {
		secret, err = auth.GenerateSessionSecret()
		if err != nil {
			log.Fatalf("Failed to generate session secret: %v", err)
		}
		log.Printf("WARNING: AUTH_SESSION_SECRET is not set; generated an ephemeral one. Sessions will not survive restarts.")
	}
	csrfSecret, err := hex.DecodeString(secret)
	if err != nil || len(csrfSecret) < 32 {
		// Non-hex secrets are used as raw bytes.
		csrfSecret = []byte(secret)
	}

	authService := auth.NewService(db, cfg.Auth)
	auditor := audit.NewRepository(db.DB)
	authController := auth.NewController(authService, sessionManager, auditor, cfg.Auth)
	defer authController.Stop()

	if hasUsers, err := authService.HasUsers(); err == nil && !hasUsers {
		log.Printf("WARNING: no users exist yet. Create one with: bookshelf create-user -login admin -role admin")
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		Database:       db,
		SessionManager: sessionManager,
		AuthService:    authService,
		AuthController: authController,
		CoverStore:     store,
		CSRFSecret:     csrfSecret,
		SecureCookies:  cfg.Auth.SecureCookies,
		TemplatesPath:  cfg.UI.TemplatesPath,
		StaticPath:     cfg.UI.StaticPath,
		Version:        version,
	})

	var sweeper *tasks.CoverSweeper
	if cfg.Maintenance.CoverSweepEnabled {
		sweeper = tasks.NewCoverSweeper(coversdb.NewRepository(db.DB), store)
		if err := sweeper.Start(cfg.Maintenance.CoverSweepSchedule); err != nil {
			log.Fatalf("Failed to start cover sweep: %v", err)
		}
	}

	Serve(router, cfg, func(ctx context.Context) {
		if sweeper != nil {
			sweeper.Stop()
		}
	})
}

// Serve runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully within the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}
