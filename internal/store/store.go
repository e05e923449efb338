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

package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	// Validation errors: rejected synchronously before any state change.
	ErrMissingURL      = errors.New("url is required")
	ErrMissingCategory = errors.New("category is required")
	ErrInvalidInput    = errors.New("invalid input")

	// Conflict errors: rejected before mutation; the caller decides whether
	// to retry with different input.
	ErrDuplicateURL       = errors.New("url already registered")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrNoWebsites         = errors.New("buyer has no registered websites")

	// Lookup errors.
	ErrUserNotFound        = errors.New("user not found")
	ErrWebsiteNotFound     = errors.New("website not found")
	ErrTransactionNotFound = errors.New("transaction not found")

	// State errors.
	ErrNotPending             = errors.New("transaction is not pending")
	ErrNotOwner               = errors.New("caller does not own this website")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// TransferParams moves points between two users. The spend transaction's id
// is used as the external reference so the operation is idempotent and the
// ledger entry can be traced back to its exchange pair.
type TransferParams struct {
	FromUserId string
	ToUserId   string
	Points     decimal.Decimal
	Reference  string
}

// GrantParams applies a single-sided balance change: the signup bonus, an
// administrative adjustment, or nothing else. Delta may be negative.
type GrantParams struct {
	UserId    string
	Delta     decimal.Decimal
	Reference string
}

// PointsLedger is the balance backend contract that every ledger
// implementation (SQLite subledger, Formance Stack) must satisfy. Transaction
// records live in the exchange store regardless of the balance backend.
type PointsLedger interface {
	// GetBalance returns the user's current points.
	GetBalance(ctx context.Context, userId string) (decimal.Decimal, error)

	// TransferPoints atomically debits the buyer and credits the seller.
	// It fails with ErrInsufficientPoints before mutating either side if
	// the buyer's balance does not cover the amount; no partial transfer
	// is ever observable.
	TransferPoints(ctx context.Context, params TransferParams) error

	// RefundPoints moves points back seller to buyer when a pending pair
	// expires. The seller side may overdraft; the transient negative
	// balance restricts the seller at read time instead.
	RefundPoints(ctx context.Context, params TransferParams) error

	// GrantPoints applies a single-sided adjustment. May take the balance
	// negative.
	GrantPoints(ctx context.Context, params GrantParams) error

	// Close releases backend resources.
	Close()
}
