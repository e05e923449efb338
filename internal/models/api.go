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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegisterWebsiteRequest is the payload for registering a website.
type RegisterWebsiteRequest struct {
	URL         string    `json:"url" binding:"required"`
	Category    string    `json:"category" binding:"required"`
	ServiceType string    `json:"service_type" binding:"required"`
	Location    *Location `json:"location,omitempty"`
}

// UpdateWebsiteRequest is the payload for updating website attributes.
// The URL is immutable after creation and deliberately absent here.
type UpdateWebsiteRequest struct {
	Category    *string   `json:"category,omitempty"`
	ServiceType *string   `json:"service_type,omitempty"`
	Location    *Location `json:"location,omitempty"`
}

// LinkRequest is the payload for requesting a link on a marketplace website.
type LinkRequest struct {
	WebsiteId   string `json:"website_id" binding:"required"` // the hosting website
	SourceURL   string `json:"source_url" binding:"required"` // the buyer's promoted page
	AnchorText  string `json:"anchor_text" binding:"required"`
	Description string `json:"description,omitempty"`
}

// SubmitVerificationRequest is the payload for submitting a backlink proof.
type SubmitVerificationRequest struct {
	VerificationURL string `json:"verification_url" binding:"required"`
}

// AdminAdjustRequest is the payload for a privileged balance change.
type AdminAdjustRequest struct {
	UserId string `json:"user_id" binding:"required"`
	Delta  int64  `json:"delta" binding:"required"`
	Reason string `json:"reason,omitempty"`
}

// BalanceResponse reports a user's current points.
type BalanceResponse struct {
	UserId  string          `json:"user_id"`
	Balance decimal.Decimal `json:"balance"`
}

// MarketplaceWebsite is a marketplace listing entry. Only verified websites
// whose owner holds at least one point appear in listings.
type MarketplaceWebsite struct {
	Id              string   `json:"id"`
	URL             string   `json:"url"`
	DomainAuthority int      `json:"domain_authority"` // also the price in points
	Category        string   `json:"category"`
	ServiceType     string   `json:"service_type"`
	Location        Location `json:"location,omitempty"`
}

// WidgetLink is one hosted link in the public embed output. The shape is a
// fixed external contract consumed by the third-party embeddable script.
type WidgetLink struct {
	URL         string `json:"url"`
	Text        string `json:"text"`
	Description string `json:"description,omitempty"`
}

// ReanalyzeResult aggregates a bulk re-analysis run. Failures are counted,
// never thrown; one site's failure does not abort the batch.
type ReanalyzeResult struct {
	Total     int      `json:"total"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// TransactionRecord is a transaction in a user's history as served by the API.
type TransactionRecord struct {
	Id              string          `json:"id"`
	Type            string          `json:"type"`
	Points          decimal.Decimal `json:"points"`
	SourceURL       string          `json:"source_url,omitempty"`
	TargetURL       string          `json:"target_url,omitempty"`
	Status          string          `json:"status"`
	VerificationURL string          `json:"verification_url,omitempty"`
	Reference       string          `json:"reference,omitempty"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	ProcessedAt     time.Time       `json:"processed_at"`
}
