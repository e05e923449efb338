/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"linkauthority-go/internal/api"
	"linkauthority-go/internal/common"
	"linkauthority-go/internal/config"
	"linkauthority-go/internal/sweeper"

	"go.uber.org/zap"
)

func main() {
	noSweep := flag.Bool("no-sweep", false, "Disable the pending-transaction expiry sweep")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting LinkAuthority exchange server")

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	var sweep *sweeper.Sweeper
	if cfg.Sweep.Enabled && !*noSweep {
		sweep, err = sweeper.New(services.Exchange, cfg.Sweep)
		if err != nil {
			zap.L().Fatal("Failed to initialize expiry sweeper", zap.Error(err))
		}
		sweep.Start()
		zap.L().Info("Expiry sweeper running", zap.String("schedule", cfg.Sweep.Schedule))
	} else {
		zap.L().Info("Expiry sweeper disabled")
	}

	server := api.NewServer(cfg, services.DbService, services.Registry, services.Exchange)

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil {
			zap.L().Fatal("HTTP server failed", zap.Error(err))
		}
	case sig := <-sigChan:
		zap.L().Info("Shutdown signal received", zap.String("signal", sig.String()))
	}

	if sweep != nil {
		sweep.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
	} else {
		zap.L().Info("Server stopped gracefully")
	}
}
