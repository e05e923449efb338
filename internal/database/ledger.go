package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"linkauthority-go/internal/models"
	"linkauthority-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// GetBalance returns the user's current points (O(1) lookup). A user with no
// balance row has zero points.
func (s *Service) GetBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	zap.L().Debug("Getting balance", zap.String("user_id", userId))

	var balanceStr string
	err := s.db.QueryRowContext(ctx, queryGetBalance, userId).Scan(&balanceStr)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		zap.L().Error("Failed to get balance", zap.String("user_id", userId), zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to get balance: %w", err)
	}

	balance, err := decimal.NewFromString(balanceStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse balance %q: %w", balanceStr, err)
	}
	return balance, nil
}

// TransferPoints atomically debits the buyer and credits the seller. The
// balance check happens inside the same transaction as both mutations, so a
// torn state is never observable and concurrent purchases against the same
// buyer serialize on the version column.
func (s *Service) TransferPoints(ctx context.Context, params store.TransferParams) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.applyDeltaTx(ctx, tx, params.FromUserId, params.Points.Neg(), params.Reference, false); err != nil {
		return err
	}
	if _, err := s.applyDeltaTx(ctx, tx, params.ToUserId, params.Points, params.Reference, true); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}

	zap.L().Info("Points transferred",
		zap.String("from", params.FromUserId),
		zap.String("to", params.ToUserId),
		zap.String("points", params.Points.String()),
		zap.String("reference", params.Reference))
	return nil
}

// RefundPoints moves points back seller to buyer. The seller side may go
// negative; the marketplace visibility rule restricts them at read time.
func (s *Service) RefundPoints(ctx context.Context, params store.TransferParams) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.applyDeltaTx(ctx, tx, params.FromUserId, params.Points.Neg(), params.Reference, true); err != nil {
		return err
	}
	if _, err := s.applyDeltaTx(ctx, tx, params.ToUserId, params.Points, params.Reference, true); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit refund: %w", err)
	}

	zap.L().Info("Points refunded",
		zap.String("from", params.FromUserId),
		zap.String("to", params.ToUserId),
		zap.String("points", params.Points.String()),
		zap.String("reference", params.Reference))
	return nil
}

// GrantPoints applies a single-sided adjustment (signup bonus, admin
// adjustment). The balance may go negative.
func (s *Service) GrantPoints(ctx context.Context, params store.GrantParams) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := s.applyDeltaTx(ctx, tx, params.UserId, params.Delta, params.Reference, true); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit grant: %w", err)
	}
	return nil
}

// applyDeltaTx adjusts one user's balance inside an open transaction with
// optimistic locking. Returns the new balance. When allowNegative is false a
// delta that would take the balance below zero fails with
// ErrInsufficientPoints before any write.
func (s *Service) applyDeltaTx(ctx context.Context, tx *sql.Tx, userId string, delta decimal.Decimal, lastTxId string, allowNegative bool) (decimal.Decimal, error) {
	acct := models.PointBalance{UserId: userId}
	var currentStr string

	err := tx.QueryRowContext(ctx, queryGetBalanceForUpdate, userId).Scan(&acct.Id, &currentStr, &acct.Version)
	if errors.Is(err, sql.ErrNoRows) {
		acct.Id = uuid.New().String()
		acct.Balance = decimal.Zero
		acct.Version = 1
		if _, err := tx.ExecContext(ctx, queryInsertBalance, acct.Id, userId, "0", 1); err != nil {
			return decimal.Zero, fmt.Errorf("failed to create balance row: %w", err)
		}
	} else if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get current balance: %w", err)
	} else {
		acct.Balance, err = decimal.NewFromString(currentStr)
		if err != nil {
			return decimal.Zero, fmt.Errorf("failed to parse current balance %q: %w", currentStr, err)
		}
	}

	newBalance := acct.Balance.Add(delta)
	if !allowNegative && newBalance.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: balance %s, need %s",
			store.ErrInsufficientPoints, acct.Balance.String(), delta.Neg().String())
	}

	result, err := tx.ExecContext(ctx, queryUpdateBalance, newBalance.String(), lastTxId, userId, acct.Version)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update balance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return decimal.Zero, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	return newBalance, nil
}
