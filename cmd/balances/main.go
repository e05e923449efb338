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
	"fmt"
	"strings"

	"linkauthority-go/internal/common"
	"linkauthority-go/internal/config"
	"linkauthority-go/internal/models"

	"go.uber.org/zap"
)

type reportStats struct {
	totalUsers       int
	usersWithHistory int
	mismatches       int
}

func formatReference(ref string) string {
	if ref == "" {
		return "exchange"
	}
	if len(ref) > 24 {
		return ref[:24] + "..."
	}
	return ref
}

func printTransaction(tx models.TransactionRecord, isLast bool) {
	fmt.Printf("%s %-8s %8s %-10s %s (%s)\n",
		common.BoxPrefix(isLast),
		tx.Type,
		tx.Points.String(),
		tx.Status,
		formatReference(tx.Reference),
		tx.CreatedAt.Format("2006-01-02 15:04:05"))
}

func printUserHeader(user models.User, balance string, websiteCount int) {
	fmt.Printf("\n┌─ User: %s (%s)\n", user.Name, user.Email)
	fmt.Printf("│  ID: %s\n", user.Id)
	fmt.Printf("│  Balance: %s points, Websites: %d\n", balance, websiteCount)
	common.PrintBoxSeparator(78)
}

func processUser(ctx context.Context, services *common.Services, user models.User, historyLimit int) (bool, error) {
	balance, err := services.Exchange.Balance(ctx, user.Id)
	if err != nil {
		return false, fmt.Errorf("failed to get balance: %w", err)
	}

	websiteCount, err := services.DbService.CountWebsitesByOwner(ctx, user.Id)
	if err != nil {
		return false, fmt.Errorf("failed to count websites: %w", err)
	}

	history, err := services.Exchange.History(ctx, user.Id, historyLimit, 0)
	if err != nil {
		return false, fmt.Errorf("failed to get history: %w", err)
	}

	printUserHeader(user, balance.String(), websiteCount)
	for i, tx := range history {
		printTransaction(tx, i == len(history)-1)
	}

	return len(history) > 0, nil
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	emailFlag := flag.String("email", "", "Filter by specific user email (optional)")
	limitFlag := flag.Int("limit", 10, "Transactions to show per user")
	reconcileFlag := flag.Bool("reconcile", false, "Replay the transaction log and verify each balance")
	flag.Parse()

	logger.Info("Starting balance report")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	var users []models.User
	if *emailFlag != "" {
		user, err := services.DbService.GetUserByEmail(ctx, strings.ToLower(*emailFlag))
		if err != nil {
			logger.Fatal("User not found", zap.String("email", *emailFlag), zap.Error(err))
		}
		users = []models.User{*user}
	} else {
		users, err = services.DbService.GetUsers(ctx)
		if err != nil {
			logger.Fatal("Failed to read users from database", zap.Error(err))
		}
	}

	common.PrintHeader("POINTS BALANCE REPORT", common.DefaultWidth)

	stats := reportStats{}
	for _, user := range users {
		stats.totalUsers++
		hasHistory, err := processUser(ctx, services, user, *limitFlag)
		if err != nil {
			logger.Error("Failed to process user",
				zap.String("user_id", user.Id),
				zap.String("user_name", user.Name),
				zap.Error(err))
			continue
		}
		if hasHistory {
			stats.usersWithHistory++
		}

		if *reconcileFlag {
			if err := services.Exchange.Reconcile(ctx, user.Id); err != nil {
				stats.mismatches++
				fmt.Printf("✗ reconcile: %v\n", err)
				continue
			}
			fmt.Printf("✓ reconcile: log replay matches the live balance\n")
		}
	}

	summary := fmt.Sprintf("SUMMARY: %d users queried, %d with transaction history",
		stats.totalUsers, stats.usersWithHistory)
	if *reconcileFlag {
		summary += fmt.Sprintf(", %d balance mismatches", stats.mismatches)
	}
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Balance report completed",
		zap.Int("users_queried", stats.totalUsers),
		zap.Int("users_with_history", stats.usersWithHistory))

	if stats.mismatches > 0 {
		logger.Fatal("Reconciliation found drift", zap.Int("mismatches", stats.mismatches))
	}
}
