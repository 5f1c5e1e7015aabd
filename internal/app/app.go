// Package app wires configuration, storage, clients, and services together.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mclennan/buyradar/internal/clients/alphavantage"
	"github.com/mclennan/buyradar/internal/clients/brave"
	"github.com/mclennan/buyradar/internal/clients/gemini"
	"github.com/mclennan/buyradar/internal/common"
	"github.com/mclennan/buyradar/internal/interfaces"
	"github.com/mclennan/buyradar/internal/services/prices"
	"github.com/mclennan/buyradar/internal/services/radar"
	"github.com/mclennan/buyradar/internal/storage/surrealdb"
)

// App holds all initialized services and clients. It is the shared core
// behind cmd/buyradar-server.
type App struct {
	Config       *common.Config
	Logger       *common.Logger
	Storage      interfaces.StorageManager
	PriceClient  interfaces.PriceDataClient
	SearchClient interfaces.WebSearchClient
	ModelClient  interfaces.ModelClient
	PriceService interfaces.PriceService
	RadarService interfaces.RadarService
	StartupTime  time.Time

	schedulerCancel context.CancelFunc
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// NewApp initializes storage, clients, and services.
// configPath may be empty, in which case the default resolution logic is used.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	binDir := getBinaryDir()

	// Load configuration - check provided path, BUYRADAR_CONFIG, then binary dir
	if configPath == "" {
		configPath = os.Getenv("BUYRADAR_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(binDir, "buyradar.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/buyradar.toml" // fallback for development
		}
	}

	config, err := common.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Resolve relative log file path to binary directory
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	storageManager, err := surrealdb.NewManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	ctx := context.Background()
	systemStore := storageManager.SystemStore()

	alphaKey, err := common.ResolveAPIKey(ctx, systemStore, "alphavantage_api_key", config.Clients.AlphaVantage.APIKey)
	if err != nil {
		logger.Warn().Msg("Alpha Vantage API key not configured - price refresh will be unavailable")
	}

	braveKey, err := common.ResolveAPIKey(ctx, systemStore, "brave_api_key", config.Clients.Brave.APIKey)
	if err != nil {
		logger.Warn().Msg("Brave API key not configured - analyses will run without web context")
	}

	geminiKey, err := common.ResolveAPIKey(ctx, systemStore, "gemini_api_key", config.Clients.Gemini.APIKey)
	if err != nil {
		logger.Warn().Msg("Gemini API key not configured - analysis will be unavailable")
	}

	priceClient := alphavantage.NewClient(alphaKey,
		alphavantage.WithBaseURL(config.Clients.AlphaVantage.BaseURL),
		alphavantage.WithLogger(logger),
		alphavantage.WithRateLimit(config.Clients.AlphaVantage.RateLimit),
		alphavantage.WithTimeout(config.Clients.AlphaVantage.GetTimeout()),
	)

	searchClient := brave.NewClient(braveKey,
		brave.WithBaseURL(config.Clients.Brave.BaseURL),
		brave.WithLogger(logger),
		brave.WithTimeout(config.Clients.Brave.GetTimeout()),
	)

	var modelClient interfaces.ModelClient
	if geminiKey != "" {
		client, err := gemini.NewClient(ctx, geminiKey,
			gemini.WithModel(config.Clients.Gemini.Model),
			gemini.WithLogger(logger),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini client: %w", err)
		}
		modelClient = client
	} else {
		modelClient = &unavailableModel{}
	}

	priceService := prices.NewService(
		storageManager.CompanyStore(),
		storageManager.PriceStore(),
		priceClient,
		logger,
	)

	radarService := radar.NewService(storageManager, priceService, searchClient, modelClient, &config.Radar, logger)

	a := &App{
		Config:       config,
		Logger:       logger,
		Storage:      storageManager,
		PriceClient:  priceClient,
		SearchClient: searchClient,
		ModelClient:  modelClient,
		PriceService: priceService,
		RadarService: radarService,
		StartupTime:  startupStart,
	}

	logger.Info().
		Str("version", common.GetFullVersion()).
		Str("environment", config.Environment).
		Dur("startup", time.Since(startupStart)).
		Msg("Application initialized")

	return a, nil
}

// Close shuts down the scheduler and storage.
func (a *App) Close() error {
	if a.schedulerCancel != nil {
		a.schedulerCancel()
	}
	if a.Storage != nil {
		return a.Storage.Close()
	}
	return nil
}

// unavailableModel stands in when no Gemini key is configured.
type unavailableModel struct{}

func (u *unavailableModel) Generate(ctx context.Context, prompt string) (string, error) {
	return "", fmt.Errorf("model client not configured")
}

func (u *unavailableModel) Model() string { return "unconfigured" }
