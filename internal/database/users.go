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
	"errors"
	"fmt"
	"time"

	"linkauthority-go/internal/models"
	"linkauthority-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) GetUsers(ctx context.Context) ([]models.User, error) {
	zap.L().Debug("Querying users")

	rows, err := s.db.QueryContext(ctx, queryGetUsers)
	if err != nil {
		zap.L().Error("Failed to query users", zap.Error(err))
		return nil, fmt.Errorf("unable to query users: %w", err)
	}
	defer closeRows(rows)

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(&user.Id, &user.ExternalId, &user.Name, &user.Email, &user.Role,
			&user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("unable to scan user row: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating user rows: %w", err)
	}

	zap.L().Info("Retrieved users", zap.Int("count", len(users)))
	return users, nil
}

func (s *Service) GetUserById(ctx context.Context, userId string) (*models.User, error) {
	return s.getUser(ctx, queryGetUserById, userId)
}

// GetUserByExternalId looks up a user by the opaque identity supplied by the
// external OAuth provider.
func (s *Service) GetUserByExternalId(ctx context.Context, externalId string) (*models.User, error) {
	return s.getUser(ctx, queryGetUserByExternalId, externalId)
}

func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, queryGetUserByEmail, email)
}

func (s *Service) getUser(ctx context.Context, query, key string) (*models.User, error) {
	var user models.User
	err := s.db.QueryRowContext(ctx, query, key).Scan(
		&user.Id, &user.ExternalId, &user.Name, &user.Email, &user.Role,
		&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", store.ErrUserNotFound, key)
		}
		zap.L().Error("Failed to query user", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("unable to query user: %w", err)
	}
	return &user, nil
}

// CreateUserWithBonus inserts a new user together with their signup bonus:
// a completed earn row referenced "signup-bonus" and, when this service
// manages balances, the opening balance, all in one database transaction so
// a replay of the log reconstructs the balance from genesis.
func (s *Service) CreateUserWithBonus(ctx context.Context, user *models.User, bonus decimal.Decimal) (*models.User, error) {
	zap.L().Info("Creating user",
		zap.String("id", user.Id),
		zap.String("name", user.Name),
		zap.String("email", user.Email),
		zap.String("role", user.Role))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, queryInsertUser,
		user.Id, user.ExternalId, user.Name, user.Email, user.Role); err != nil {
		zap.L().Error("Failed to insert user", zap.String("email", user.Email), zap.Error(err))
		return nil, fmt.Errorf("unable to insert user: %w", err)
	}

	now := time.Now()
	bonusRow := &models.Transaction{
		Id:          uuid.New().String(),
		UserId:      user.Id,
		Type:        models.TransactionTypeEarn,
		Points:      bonus,
		Status:      models.TransactionStatusCompleted,
		Reference:   "signup-bonus",
		CreatedAt:   now,
		ProcessedAt: now,
	}
	if err := insertTransactionTx(ctx, tx, bonusRow); err != nil {
		return nil, err
	}

	if s.manageBalances {
		if _, err := s.applyDeltaTx(ctx, tx, user.Id, bonus, bonusRow.Id, true); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit user creation: %w", err)
	}

	zap.L().Info("User created with signup bonus",
		zap.String("id", user.Id),
		zap.String("bonus", bonus.String()))
	return s.GetUserById(ctx, user.Id)
}
