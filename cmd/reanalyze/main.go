package main

import (
	"context"
	"fmt"

	"linkauthority-go/internal/common"
	"linkauthority-go/internal/config"

	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	zap.L().Info("Re-analyzing all registered websites")

	result, err := services.Registry.Reanalyze(ctx)
	if err != nil {
		zap.L().Fatal("Re-analysis failed", zap.Error(err))
	}

	common.PrintHeader("RE-ANALYSIS SUMMARY", common.DefaultWidth)
	fmt.Printf("Total websites: %d\n", result.Total)
	fmt.Printf("Succeeded:      %d\n", result.Succeeded)
	fmt.Printf("Failed:         %d\n", result.Failed)
	for _, e := range result.Errors {
		fmt.Printf("✗ %s\n", e)
	}
	common.PrintSeparator("=", common.DefaultWidth)
}
