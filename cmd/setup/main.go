package main

import (
	"context"
	"flag"
	"fmt"

	"linkauthority-go/internal/common"
	"linkauthority-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	zap.L().Info("Setting up SQLite database", zap.String("path", cfg.Database.Path))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	users, err := services.DbService.GetUsers(ctx)
	if err != nil {
		zap.L().Fatal("Failed to read users from database", zap.Error(err))
	}

	common.PrintHeader("LINKAUTHORITY SETUP", common.DefaultWidth)
	fmt.Printf("Database: %s\n", cfg.Database.Path)
	fmt.Printf("Ledger backend: %s\n", cfg.Ledger.Backend)
	fmt.Printf("Users: %d\n", len(users))
	common.PrintSeparator("=", common.DefaultWidth)

	zap.L().Info("Setup complete", zap.Int("users", len(users)))
}
