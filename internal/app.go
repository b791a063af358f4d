// internal/app.go
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	router "p2p-lending/internal/api"
	"p2p-lending/internal/api/handler"
	"p2p-lending/internal/config"
	"p2p-lending/internal/integrations/kyc"
	"p2p-lending/internal/integrations/wallet"
	"p2p-lending/internal/repository"
	"p2p-lending/internal/repository/file"
	"p2p-lending/internal/repository/postgres"
	"p2p-lending/internal/repository/redisstore"
	"p2p-lending/internal/service"
	"p2p-lending/internal/util"
	"p2p-lending/pkg/db"
)

// Application holds all the initialized components of the application.
type Application struct {
	Config *config.AppConfig
	Logger *slog.Logger

	// Record store
	Store *repository.SnapshotStore

	// Services
	LedgerService service.LedgerService

	// HTTP API
	HTTPHandler http.Handler
}

// NewApplication creates a new Application instance.
func NewApplication() *Application {
	return &Application{}
}

// Initialize initializes all application components.
func (app *Application) Initialize(ctx context.Context) error {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		app.Logger = util.GetLogger()
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	app.Config = cfg

	// 2. Initialize Logger
	util.InitLogger(cfg.Log.Level, cfg.Log.Format)
	app.Logger = util.GetLogger()
	app.Logger.Info("Application configuration loaded successfully.", "env", cfg.Env, "store_driver", cfg.Store.Driver)

	// 3. Open the record store
	backend, err := app.openBackend(ctx)
	if err != nil {
		return err
	}
	app.Store = repository.NewSnapshotStore(backend, app.Logger)
	if _, err := app.Store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load ledger snapshot: %w", err)
	}
	app.Logger.Info("Record store ready.")

	// 4. Initialize collaborators
	gate := service.NewVerificationGate(cfg.KYC.Required, app.identityVerifier(), app.Logger)

	var partner service.WalletPartner
	if cfg.Wallet.Enabled {
		partner = wallet.NewClient(wallet.Config{
			BaseURL: cfg.Wallet.BaseURL,
			APIKey:  cfg.Wallet.APIKey,
			Timeout: cfg.UpstreamTimeout,
		}, app.Logger)
		app.Logger.Info("Wallet partner confirmation enabled.", "base_url", cfg.Wallet.BaseURL)
	} else {
		app.Logger.Warn("Wallet partner confirmation disabled; transfers are local only.")
	}

	// 5. Initialize Services
	app.LedgerService = service.NewLedgerService(app.Store, gate, partner, app.Logger)
	app.Logger.Info("Services initialized.")

	// 6. Initialize HTTP Handlers and Router
	ledgerHandler := handler.NewLedgerHandler(app.LedgerService, app.Logger)
	app.HTTPHandler = router.NewRouter(ledgerHandler, app.Logger)
	app.Logger.Info("HTTP router and handlers initialized.")

	return nil
}

// openBackend connects the snapshot backend selected by STORE_DRIVER.
func (app *Application) openBackend(ctx context.Context) (repository.SnapshotBackend, error) {
	cfg := app.Config
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		database, err := db.NewPostgresDB(cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		repo := postgres.NewSnapshotRepository(database)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to prepare database schema: %w", err)
		}
		app.Logger.Info("Database connection established.", "host", cfg.DB.Host, "db", cfg.DB.DBName)
		return repo, nil

	case config.StoreDriverRedis:
		client, err := db.NewRedisClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		app.Logger.Info("Redis connection established.", "addr", cfg.Redis.Addr, "key", cfg.RedisKey)
		return redisstore.NewSnapshotRepository(client, cfg.RedisKey), nil

	case config.StoreDriverMemory:
		app.Logger.Warn("Using in-memory record store; state is lost on restart.")
		return repository.NewMemoryBackend(), nil

	default:
		backend, err := file.NewSnapshotBackend(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open snapshot file: %w", err)
		}
		app.Logger.Info("Using file record store.", "path", cfg.Store.Path)
		return backend, nil
	}
}

// identityVerifier picks the verification collaborator. Without an endpoint and without the
// explicit development mode there is none, and every verification fails.
func (app *Application) identityVerifier() service.IdentityVerifier {
	cfg := app.Config.KYC
	switch {
	case cfg.BaseURL != "":
		return kyc.NewClient(kyc.Config{
			BaseURL: cfg.BaseURL,
			APIKey:  cfg.APIKey,
			Timeout: app.Config.UpstreamTimeout,
		}, app.Logger)
	case cfg.DevMode:
		app.Logger.Warn("Identity verification running in development mode.")
		return kyc.DevVerifier{}
	default:
		if cfg.Required {
			app.Logger.Warn("Identity verification required but not configured; originations will be blocked.")
		}
		return nil
	}
}

// Shutdown gracefully shuts down application resources.
func (app *Application) Shutdown(ctx context.Context) error {
	app.Logger.Info("Shutting down application...")
	if app.Store != nil {
		if err := app.Store.Close(); err != nil {
			app.Logger.Error("Failed to close record store", "error", err)
			return fmt.Errorf("failed to close record store: %w", err)
		}
		app.Logger.Info("Record store closed.")
	}
	app.Logger.Info("Application shut down gracefully.")
	return nil
}
