package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type GitHubConfig struct {
	ClientID      string
	ClientSecret  string
	AppID         string
	AppPrivateKey string
	WebhookSecret string
	APIBaseURL    string // Optional override for GitHub Enterprise
}

// IsConfigured returns true if all required GitHub App configuration is present
func (c GitHubConfig) IsConfigured() bool {
	return c.ClientID != "" &&
		c.ClientSecret != "" &&
		c.AppID != "" &&
		c.AppPrivateKey != "" &&
		c.WebhookSecret != ""
	// Note: APIBaseURL is optional
}

type SyncConfig struct {
	TokenRefreshMargin time.Duration
	MaxRetries         int
	RetryBaseDelay     time.Duration
	RequestTimeout     time.Duration
	Workers            int
	Interval           time.Duration
	FullSyncLookback   time.Duration
}

type OpsConfig struct {
	AlertWebhookURL string
}

type AppConfig struct {
	// Core configuration (always required)
	DatabaseURL        string
	DatabaseSchema     string
	Port               string // Optional with default "8080"
	CORSAllowedOrigins string // Optional with default "*"
	Environment        string
	ServerLogsURL      string
	UseStrictConfig    bool // If true, error when any integration is not fully configured

	GitHubConfig GitHubConfig
	SyncConfig   SyncConfig
	OpsConfig    OpsConfig
}

func LoadConfig() (*AppConfig, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("⚠️ Could not load .env file, continuing with system env vars")
	}

	// Core required configuration
	databaseURL, err := getEnvRequired("DB_URL")
	if err != nil {
		return nil, err
	}

	databaseSchema, err := getEnvRequired("DB_SCHEMA")
	if err != nil {
		return nil, err
	}

	syncConfig, err := loadSyncConfig()
	if err != nil {
		return nil, err
	}

	config := &AppConfig{
		// Core configuration
		DatabaseURL:        databaseURL,
		DatabaseSchema:     databaseSchema,
		Port:               getEnvWithDefault("PORT", "8080"),
		CORSAllowedOrigins: getEnvWithDefault("CORS_ALLOWED_ORIGINS", "*"),
		Environment:        getEnvWithDefault("ENVIRONMENT", "dev"),
		ServerLogsURL:      getEnvWithDefault("SERVER_LOGS_URL", ""),
		UseStrictConfig:    getEnvWithDefault("USE_STRICT_CONFIG", "true") == "true",

		GitHubConfig: GitHubConfig{
			ClientID:      os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret:  os.Getenv("GITHUB_CLIENT_SECRET"),
			AppID:         os.Getenv("GITHUB_APP_ID"),
			AppPrivateKey: os.Getenv("GITHUB_APP_PRIVATE_KEY"),
			WebhookSecret: os.Getenv("GITHUB_WEBHOOK_SECRET"),
			APIBaseURL:    os.Getenv("GITHUB_API_BASE_URL"),
		},

		SyncConfig: *syncConfig,

		OpsConfig: OpsConfig{
			AlertWebhookURL: os.Getenv("OPS_ALERT_WEBHOOK_URL"),
		},
	}

	if config.GitHubConfig.IsConfigured() {
		log.Printf("✅ GitHub integration configured")
	} else {
		log.Printf("⚠️ GitHub integration not configured - sync features will be disabled")
		if config.UseStrictConfig {
			return nil, fmt.Errorf("GitHub integration is not fully configured (USE_STRICT_CONFIG=true)")
		}
	}

	if config.OpsConfig.AlertWebhookURL != "" {
		log.Printf("✅ Ops alerting configured")
	} else {
		log.Printf("⚠️ Ops alerting not configured - error alerts will only be logged")
	}

	return config, nil
}

func loadSyncConfig() (*SyncConfig, error) {
	refreshMarginSecs, err := getEnvIntWithDefault("SYNC_TOKEN_REFRESH_MARGIN_SECONDS", 120)
	if err != nil {
		return nil, err
	}
	maxRetries, err := getEnvIntWithDefault("SYNC_MAX_RETRIES", 3)
	if err != nil {
		return nil, err
	}
	retryBaseSecs, err := getEnvIntWithDefault("SYNC_RETRY_BASE_SECONDS", 1)
	if err != nil {
		return nil, err
	}
	requestTimeoutSecs, err := getEnvIntWithDefault("SYNC_REQUEST_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	workers, err := getEnvIntWithDefault("SYNC_WORKERS", 4)
	if err != nil {
		return nil, err
	}
	intervalSecs, err := getEnvIntWithDefault("SYNC_INTERVAL_SECONDS", 300)
	if err != nil {
		return nil, err
	}
	lookbackDays, err := getEnvIntWithDefault("SYNC_FULL_LOOKBACK_DAYS", 90)
	if err != nil {
		return nil, err
	}

	return &SyncConfig{
		TokenRefreshMargin: time.Duration(refreshMarginSecs) * time.Second,
		MaxRetries:         maxRetries,
		RetryBaseDelay:     time.Duration(retryBaseSecs) * time.Second,
		RequestTimeout:     time.Duration(requestTimeoutSecs) * time.Second,
		Workers:            workers,
		Interval:           time.Duration(intervalSecs) * time.Second,
		FullSyncLookback:   time.Duration(lookbackDays) * 24 * time.Hour,
	}, nil
}

func getEnvRequired(key string) (string, error) {
	value := os.Getenv(key)
	if value == "" {
		return "", fmt.Errorf("%s is not set", key)
	}
	return value, nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, value)
	}
	return parsed, nil
}
