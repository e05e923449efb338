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

package exchange

import (
	"context"
	"time"

	"linkauthority-go/internal/database"
	"linkauthority-go/internal/notify"
	"linkauthority-go/internal/store"
	"linkauthority-go/internal/verification"
)

// BacklinkVerifier proves a published backlink exists and is dofollow.
type BacklinkVerifier interface {
	VerifyBacklink(ctx context.Context, pageURL, sourceURL string) (*verification.Link, error)
}

// Service orchestrates the exchange flow: user onboarding, marketplace
// listings, link requests, backlink verification, and settlement.
//
// Two ledger modes exist. With the SQLite backend the database service
// manages balances itself and every transfer is fused with its record rows
// in one SQL transaction. With the Formance backend the posting happens
// first against the external ledger (which enforces the balance check) and
// the record rows follow, compensated through the ledger if recording fails.
type Service struct {
	db         *database.Service
	ledger     store.PointsLedger
	verifier   BacklinkVerifier
	notifier   notify.Notifier
	fused      bool
	pendingTTL time.Duration
}

func NewService(db *database.Service, ledger store.PointsLedger, verifier BacklinkVerifier, notifier notify.Notifier, fused bool, pendingTTL time.Duration) *Service {
	return &Service{
		db:         db,
		ledger:     ledger,
		verifier:   verifier,
		notifier:   notifier,
		fused:      fused,
		pendingTTL: pendingTTL,
	}
}
