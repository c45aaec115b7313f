package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	githubclient "gitpulse/clients/github"
	"gitpulse/config"
	"gitpulse/db"
	"gitpulse/handlers"
	"gitpulse/middleware"
	"gitpulse/opsnotif"
	"gitpulse/services/credentials"
	"gitpulse/services/installations"
	"gitpulse/services/pullrequests"
	"gitpulse/services/repositories"
	"gitpulse/services/tenants"
	"gitpulse/services/txmanager"
	"gitpulse/usecases/sync"
)

func main() {
	if err := run(); err != nil {
		log.Printf("❌ Fatal error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	opsnotif.Init(cfg.OpsConfig.AlertWebhookURL, cfg.Environment)

	// Initialize error alert middleware
	alertMiddleware := middleware.NewErrorAlertMiddleware(middleware.AlertConfig{
		WebhookURL:  cfg.OpsConfig.AlertWebhookURL,
		Environment: cfg.Environment,
		AppName:     "gitpulse",
		LogsURL:     cfg.ServerLogsURL,
	})

	// Initialize database connection
	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer dbConn.Close()

	// Initialize repositories with shared connection
	tenantsRepo := db.NewPostgresTenantsRepository(dbConn, cfg.DatabaseSchema)
	installationsRepo := db.NewPostgresInstallationsRepository(dbConn, cfg.DatabaseSchema)
	trackedReposRepo := db.NewPostgresTrackedRepositoriesRepository(dbConn, cfg.DatabaseSchema)
	credentialsRepo := db.NewPostgresOAuthCredentialsRepository(dbConn, cfg.DatabaseSchema)
	pullRequestsRepo := db.NewPostgresPullRequestsRepository(dbConn, cfg.DatabaseSchema)

	// Initialize transaction manager
	txManager := txmanager.NewTransactionManager(dbConn)

	githubClient, err := githubclient.NewGitHubAPIClient(
		cfg.GitHubConfig.ClientID,
		cfg.GitHubConfig.ClientSecret,
		cfg.GitHubConfig.AppID,
		[]byte(cfg.GitHubConfig.AppPrivateKey),
		cfg.GitHubConfig.APIBaseURL,
		cfg.SyncConfig.RequestTimeout,
	)
	if err != nil {
		return err
	}

	tenantsService := tenants.NewTenantsService(tenantsRepo)
	installationsService := installations.NewInstallationsService(
		installationsRepo,
		trackedReposRepo,
		githubClient,
		txManager,
		cfg.SyncConfig.TokenRefreshMargin,
	)
	credentialsService := credentials.NewOAuthCredentialsService(credentialsRepo)
	reposService := repositories.NewTrackedRepositoriesService(trackedReposRepo)
	pullRequestsService := pullrequests.NewPullRequestsService(pullRequestsRepo)

	executor := sync.NewRetryExecutor(cfg.SyncConfig.MaxRetries, cfg.SyncConfig.RetryBaseDelay)
	syncUseCase := sync.NewSyncUseCase(
		githubClient,
		installationsService,
		credentialsService,
		reposService,
		pullRequestsService,
		executor,
		cfg.SyncConfig.FullSyncLookback,
	)

	scheduler := sync.NewSyncScheduler(syncUseCase, reposService, cfg.SyncConfig.Workers, cfg.SyncConfig.Interval)
	scheduler.UseTaskWrapper(alertMiddleware.WrapBackgroundTask)

	schedulerCtx, stopScheduler := context.WithCancel(context.Background())
	defer stopScheduler()
	scheduler.Start(schedulerCtx)

	webhooksHandler := handlers.NewGitHubWebhooksHandler(cfg.GitHubConfig.WebhookSecret, installationsService)
	onboardingHandler := handlers.NewOnboardingHandler(
		githubClient,
		tenantsService,
		installationsService,
		credentialsService,
		reposService,
	)

	// Create a new router
	router := mux.NewRouter()
	webhooksHandler.SetupEndpoints(router)
	onboardingHandler.SetupEndpoints(router)

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
			log.Printf("❌ Failed to write health check response: %v", err)
		}
	}).Methods("GET")

	// Setup CORS middleware
	allowedOrigins := strings.Split(cfg.CORSAllowedOrigins, ",")
	for i, origin := range allowedOrigins {
		allowedOrigins[i] = strings.TrimSpace(origin)
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	// Setup and handle graceful shutdown
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           alertMiddleware.HTTPMiddleware(c.Handler(router)),
		ReadHeaderTimeout: 30 * time.Second,
	}

	return handleGracefulShutdown(server, func() {
		stopScheduler()
		scheduler.Stop()
	})
}

func handleGracefulShutdown(server *http.Server, stopBackground func()) error {
	// Channel to listen for interrupt signal
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Start server in a goroutine
	go func() {
		log.Printf("✅ Listening on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("❌ Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	<-stop
	log.Printf("🛑 Shutdown signal received, cleaning up...")

	// Let in-flight syncs drain before closing the database connection
	stopBackground()

	// Create a deadline for shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Shutdown server gracefully
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("❌ Server shutdown error: %v", err)
		return err
	}

	log.Printf("✅ Server stopped gracefully")
	return nil
}
