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

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"linkauthority-go/internal/models"
)

const (
	LedgerBackendSqlite   = "sqlite"
	LedgerBackendFormance = "formance"
)

func Load() (*models.Config, error) {
	connMaxLifetime, err := getEnvDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	connMaxIdleTime, err := getEnvDuration("DB_CONN_MAX_IDLE_TIME", 30*time.Second)
	if err != nil {
		return nil, err
	}

	pingTimeout, err := getEnvDuration("DB_PING_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	analyzerTimeout, err := getEnvDuration("ANALYZER_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}

	fetchTimeout, err := getEnvDuration("VERIFICATION_FETCH_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	pendingTTL, err := getEnvDuration("SWEEP_PENDING_TTL", 336*time.Hour)
	if err != nil {
		return nil, err
	}

	notifyTimeout, err := getEnvDuration("NOTIFY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	backend := getEnvString("LEDGER_BACKEND", LedgerBackendSqlite)
	if backend != LedgerBackendSqlite && backend != LedgerBackendFormance {
		return nil, fmt.Errorf("invalid LEDGER_BACKEND: %q (expected %q or %q)",
			backend, LedgerBackendSqlite, LedgerBackendFormance)
	}

	return &models.Config{
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "linkauthority.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
			SeedDemoUsers:   getEnvBool("SEED_DEMO_USERS", false),
		},
		Ledger: models.LedgerConfig{
			Backend: backend,
			Formance: models.FormanceConfig{
				StackURL:     getEnvString("FORMANCE_STACK_URL", ""),
				ClientID:     getEnvString("FORMANCE_CLIENT_ID", ""),
				ClientSecret: getEnvString("FORMANCE_CLIENT_SECRET", ""),
				LedgerName:   getEnvString("FORMANCE_LEDGER_NAME", "linkauthority"),
			},
		},
		Server: models.ServerConfig{
			Addr:            getEnvString("SERVER_ADDR", ":8080"),
			ShutdownTimeout: shutdownTimeout,
		},
		Auth: models.AuthConfig{
			JWTSecret:   getEnvString("JWT_SECRET", ""),
			AdminEmails: getEnvStringSlice("ADMIN_EMAILS"),
		},
		Analyzer: models.AnalyzerConfig{
			BaseURL: getEnvString("ANALYZER_BASE_URL", ""),
			APIKey:  getEnvString("ANALYZER_API_KEY", ""),
			Timeout: analyzerTimeout,
			UseStub: getEnvBool("ANALYZER_USE_STUB", false),
		},
		Verification: models.VerificationConfig{
			FetchTimeout: fetchTimeout,
			UserAgent:    getEnvString("VERIFICATION_USER_AGENT", "LinkAuthorityBot/1.0"),
			NichesFile:   getEnvString("NICHES_FILE", "niches.yaml"),
		},
		Sweep: models.SweepConfig{
			PendingTTL: pendingTTL,
			Schedule:   getEnvString("SWEEP_SCHEDULE", "@hourly"),
			Enabled:    getEnvBool("SWEEP_ENABLED", true),
		},
		Notify: models.NotifyConfig{
			WebhookURL: getEnvString("NOTIFY_WEBHOOK_URL", ""),
			Timeout:    notifyTimeout,
		},
	}, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvStringSlice(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	if value := os.Getenv(key); value != "" {
		duration, err := time.ParseDuration(value)
		if err != nil {
			return 0, fmt.Errorf("invalid duration for %s: %q (%w)", key, value, err)
		}
		return duration, nil
	}
	return defaultValue, nil
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
