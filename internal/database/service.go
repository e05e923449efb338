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

package database

import (
	"context"
	"database/sql"
	"fmt"

	"linkauthority-go/internal/models"
	"linkauthority-go/internal/store"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.PointsLedger.
var _ store.PointsLedger = (*Service)(nil)

// Service is the SQLite store. It always owns the registry and transaction
// records; it additionally owns point balances unless an external ledger
// backend (Formance) was selected, in which case manageBalances is false and
// the balance tables stay untouched.
type Service struct {
	db             *sql.DB
	manageBalances bool
}

func NewService(ctx context.Context, cfg models.DatabaseConfig, manageBalances bool) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_foreign_keys=1")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db, manageBalances: manageBalances}
	if err := service.initSchema(ctx, cfg.SeedDemoUsers); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized",
		zap.Bool("manage_balances", manageBalances))
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) initSchema(ctx context.Context, seedDemoUsers bool) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		external_id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		role TEXT NOT NULL DEFAULT 'member',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_users_email ON users(email);
	CREATE INDEX IF NOT EXISTS idx_users_external_id ON users(external_id);

	-- One owner per URL: the registered domain is unique across the table.
	CREATE TABLE IF NOT EXISTS websites (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		url TEXT NOT NULL UNIQUE,
		domain TEXT NOT NULL UNIQUE,
		domain_authority INTEGER NOT NULL,
		category TEXT NOT NULL,
		service_type TEXT NOT NULL,
		country TEXT NOT NULL DEFAULT '',
		state TEXT NOT NULL DEFAULT '',
		city TEXT NOT NULL DEFAULT '',
		is_verified BOOLEAN NOT NULL DEFAULT 0,
		verification_token TEXT NOT NULL,
		verification_method TEXT NOT NULL DEFAULT '',
		verified_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_websites_user_id ON websites(user_id);
	CREATE INDEX IF NOT EXISTS idx_websites_verified ON websites(is_verified);

	-- Point Balances (Current State - Hot Data)
	CREATE TABLE IF NOT EXISTS point_balances (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL UNIQUE,
		balance NUMERIC NOT NULL DEFAULT 0,
		last_transaction_id TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Transactions (Audit Trail - Cold Data). Append-only: points and
	-- tx_type never change after insert; status and verification_url are
	-- the only post-creation-mutable fields, and only while pending.
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tx_type TEXT NOT NULL CHECK (tx_type IN ('earn', 'spend')),
		points NUMERIC NOT NULL,
		source_url TEXT NOT NULL DEFAULT '',
		target_url TEXT NOT NULL DEFAULT '',
		anchor_text TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed', 'failed')),
		verification_url TEXT NOT NULL DEFAULT '',
		website_id TEXT NOT NULL DEFAULT '',
		counterpart_id TEXT NOT NULL DEFAULT '',
		reference TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		processed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_user_id ON transactions(user_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_website_id ON transactions(website_id);
	CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
	CREATE INDEX IF NOT EXISTS idx_transactions_expires_at ON transactions(expires_at);
	CREATE INDEX IF NOT EXISTS idx_transactions_counterpart ON transactions(counterpart_id);
	`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return err
	}

	if seedDemoUsers {
		demo := []struct {
			name  string
			email string
		}{
			{"Alice Johnson", "alice.johnson@example.com"},
			{"Bob Smith", "bob.smith@example.com"},
			{"Carol Williams", "carol.williams@example.com"},
		}

		for _, d := range demo {
			if existing, _ := s.GetUserByEmail(ctx, d.email); existing != nil {
				continue
			}
			_, err := s.CreateUserWithBonus(ctx, &models.User{
				Id:         uuid.New().String(),
				ExternalId: "demo|" + d.email,
				Name:       d.name,
				Email:      d.email,
				Role:       models.RoleMember,
			}, decimal.NewFromInt(models.SignupBonusPoints))
			if err != nil {
				zap.L().Error("Failed to seed demo user", zap.String("name", d.name), zap.Error(err))
			} else {
				zap.L().Info("Demo user created", zap.String("name", d.name))
			}
		}
	}

	return nil
}
