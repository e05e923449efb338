package common

import (
	"context"
	"log"
	"strings"

	"linkauthority-go/internal/analyzer"
	"linkauthority-go/internal/config"
	"linkauthority-go/internal/database"
	"linkauthority-go/internal/exchange"
	"linkauthority-go/internal/formance"
	"linkauthority-go/internal/models"
	"linkauthority-go/internal/notify"
	"linkauthority-go/internal/registry"
	"linkauthority-go/internal/store"
	"linkauthority-go/internal/verification"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export or docker;
	// a missing .env file is fine.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	} else {
		log.Println("Loaded environment variables from .env file")
	}
}

// Services bundles everything a binary needs after wiring.
type Services struct {
	DbService *database.Service
	Ledger    store.PointsLedger
	Registry  *registry.Service
	Exchange  *exchange.Service
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the full service graph. The ledger backend comes
// from config: with SQLite the database service manages balances itself;
// with Formance the external stack holds balance state and SQLite keeps
// only the registry and the transaction log.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	fused := cfg.Ledger.Backend == config.LedgerBackendSqlite

	dbService, err := database.NewService(ctx, cfg.Database, fused)
	if err != nil {
		return nil, err
	}

	var ledger store.PointsLedger = dbService
	if !fused {
		zap.L().Info("Using Formance ledger backend")
		formanceService, err := formance.NewService(ctx, cfg.Ledger.Formance)
		if err != nil {
			dbService.Close()
			return nil, err
		}
		ledger = formanceService
	}

	niches, err := LoadNiches(cfg.Verification.NichesFile)
	if err != nil {
		dbService.Close()
		return nil, err
	}
	if len(niches) == 0 {
		zap.L().Info("No niche catalog loaded, category validation disabled")
	}

	verifier := verification.NewVerifier(cfg.Verification)
	siteAnalyzer := analyzer.New(cfg.Analyzer)
	notifier := notify.New(cfg.Notify)

	registryService := registry.NewService(dbService, siteAnalyzer, verifier, notifier, niches)
	exchangeService := exchange.NewService(dbService, ledger, verifier, notifier, fused, cfg.Sweep.PendingTTL)

	return &Services{
		DbService: dbService,
		Ledger:    ledger,
		Registry:  registryService,
		Exchange:  exchangeService,
	}, nil
}

// InitializeDatabaseOnly initializes just the SQLite service. Useful for
// read-only command-line utilities.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	fused := cfg.Ledger.Backend == config.LedgerBackendSqlite
	return database.NewService(ctx, cfg.Database, fused)
}

func (cs *Services) Close() {
	// With the SQLite backend the ledger IS the database service.
	if cs.Ledger != nil {
		if _, sameBackend := cs.Ledger.(*database.Service); !sameBackend {
			cs.Ledger.Close()
		}
	}
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
