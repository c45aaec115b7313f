package main

import (
	"context"
	"flag"
	"log"

	"github.com/joho/godotenv"

	githubclient "gitpulse/clients/github"
	"gitpulse/config"
	"gitpulse/db"
	"gitpulse/opsnotif"
	"gitpulse/services/credentials"
	"gitpulse/services/installations"
	"gitpulse/services/pullrequests"
	"gitpulse/services/repositories"
	"gitpulse/services/txmanager"
	"gitpulse/usecases/sync"
)

// syncrepo forces a one-off sync of a single tracked repository, bypassing the
// scheduler. Useful for support and for verifying credentials after onboarding.
func main() {
	repositoryID := flag.String("repo", "", "tracked repository ID to sync")
	flag.Parse()

	if *repositoryID == "" {
		log.Fatalf("❌ -repo flag is required")
	}

	log.Printf("🔄 Starting forced sync for repository %s...", *repositoryID)

	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using system environment variables")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}

	opsnotif.Init(cfg.OpsConfig.AlertWebhookURL, cfg.Environment)

	// Create database connection
	dbConn, err := db.NewConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer dbConn.Close()

	// Initialize services
	installationsRepo := db.NewPostgresInstallationsRepository(dbConn, cfg.DatabaseSchema)
	trackedReposRepo := db.NewPostgresTrackedRepositoriesRepository(dbConn, cfg.DatabaseSchema)
	credentialsRepo := db.NewPostgresOAuthCredentialsRepository(dbConn, cfg.DatabaseSchema)
	pullRequestsRepo := db.NewPostgresPullRequestsRepository(dbConn, cfg.DatabaseSchema)
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
		log.Fatalf("❌ Failed to create GitHub client: %v", err)
	}

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

	result, err := syncUseCase.SyncRepository(context.Background(), *repositoryID)
	if err != nil {
		log.Fatalf("❌ Sync failed: %v", err)
	}

	log.Printf("✅ Synced %s: %d pull requests across %d pages (%s sync)",
		result.FullName, result.PullRequests, result.PagesFetched, result.SyncType)
}
