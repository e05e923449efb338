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

const (
	// User queries
	queryInsertUser = `
		INSERT INTO users (id, external_id, name, email, role) VALUES (?, ?, ?, ?, ?)`

	queryGetUsers = `
		SELECT id, external_id, name, email, role, created_at, updated_at
		FROM users
		ORDER BY created_at`

	queryGetUserById = `
		SELECT id, external_id, name, email, role, created_at, updated_at
		FROM users
		WHERE id = ?`

	queryGetUserByExternalId = `
		SELECT id, external_id, name, email, role, created_at, updated_at
		FROM users
		WHERE external_id = ?`

	queryGetUserByEmail = `
		SELECT id, external_id, name, email, role, created_at, updated_at
		FROM users
		WHERE email = ?`

	// Website queries
	websiteColumns = `id, user_id, url, domain, domain_authority, category, service_type,
		country, state, city, is_verified, verification_token, verification_method,
		verified_at, created_at, updated_at`

	queryInsertWebsite = `
		INSERT INTO websites (id, user_id, url, domain, domain_authority, category,
			service_type, country, state, city, verification_token)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetWebsiteById = `
		SELECT ` + websiteColumns + ` FROM websites WHERE id = ?`

	queryGetWebsiteByDomain = `
		SELECT ` + websiteColumns + ` FROM websites WHERE domain = ?`

	queryListWebsitesByOwner = `
		SELECT ` + websiteColumns + ` FROM websites
		WHERE user_id = ?
		ORDER BY created_at`

	queryCountWebsitesByOwner = `
		SELECT COUNT(*) FROM websites WHERE user_id = ?`

	queryListAllWebsites = `
		SELECT ` + websiteColumns + ` FROM websites
		ORDER BY created_at`

	queryListVerifiedWebsites = `
		SELECT ` + websiteColumns + ` FROM websites
		WHERE is_verified = 1
		ORDER BY domain_authority DESC, created_at`

	queryUpdateWebsiteAttrs = `
		UPDATE websites
		SET category = ?, service_type = ?, country = ?, state = ?, city = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	queryMarkWebsiteVerified = `
		UPDATE websites
		SET is_verified = 1, verification_method = ?, verified_at = ?,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	queryUpdateWebsiteAnalysis = `
		UPDATE websites
		SET domain_authority = ?, category = ?, service_type = ?,
		    country = ?, state = ?, city = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`

	// Balance queries
	queryGetBalance = `
		SELECT balance
		FROM point_balances
		WHERE user_id = ?`

	queryGetBalanceForUpdate = `
		SELECT id, balance, version
		FROM point_balances
		WHERE user_id = ?`

	queryInsertBalance = `
		INSERT INTO point_balances (id, user_id, balance, version)
		VALUES (?, ?, ?, ?)`

	queryUpdateBalance = `
		UPDATE point_balances
		SET balance = ?, last_transaction_id = ?, version = version + 1,
		    updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND version = ?`

	// Transaction queries
	transactionColumns = `id, user_id, tx_type, points, source_url, target_url,
		anchor_text, description, status, verification_url, website_id,
		counterpart_id, reference, expires_at, created_at, processed_at`

	queryInsertTransaction = `
		INSERT INTO transactions (id, user_id, tx_type, points, source_url, target_url,
			anchor_text, description, status, verification_url, website_id,
			counterpart_id, reference, expires_at, created_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransactionById = `
		SELECT ` + transactionColumns + ` FROM transactions WHERE id = ?`

	querySettleTransaction = `
		UPDATE transactions
		SET status = ?, verification_url = ?, processed_at = ?
		WHERE id = ? AND status = 'pending'`

	queryListExpiredPendingSpends = `
		SELECT ` + transactionColumns + ` FROM transactions
		WHERE tx_type = 'spend' AND status = 'pending'
		  AND counterpart_id != '' AND expires_at IS NOT NULL AND expires_at < ?
		ORDER BY expires_at`

	queryGetHostedLinks = `
		SELECT source_url, anchor_text, description
		FROM transactions
		WHERE website_id = ? AND tx_type = 'earn' AND status = 'completed'
		ORDER BY processed_at DESC, created_at DESC`

	queryGetTransactionHistory = `
		SELECT ` + transactionColumns + ` FROM transactions
		WHERE user_id = ?
		ORDER BY created_at DESC
		LIMIT ? OFFSET ?`

	// Every row moves the balance when it is appended; later status flips
	// are always compensated by new rows (the expiry refund pair), so the
	// replay sums every row regardless of status.
	queryReplayBalance = `
		SELECT COALESCE(SUM(CASE WHEN tx_type = 'spend' THEN -points ELSE points END), 0)
		FROM transactions
		WHERE user_id = ?`
)
