package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User roles, resolved at authentication time from configured admin emails.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// Service types describing a website's audience.
const (
	ServiceTypeLocal     = "local"
	ServiceTypeWorldwide = "worldwide"
)

// Domain-ownership verification methods.
const (
	VerificationMethodFile  = "file"
	VerificationMethodDNS   = "dns"
	VerificationMethodAdmin = "admin-override"
)

// Transaction types. A link exchange always produces exactly one spend row
// (buyer) and one earn row (seller), linked through CounterpartId.
const (
	TransactionTypeEarn  = "earn"
	TransactionTypeSpend = "spend"
)

// Transaction statuses. Completed and failed are terminal.
const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// SignupBonusPoints is credited to every user on first login, recorded as a
// completed earn row so a full replay of the log reconstructs the balance.
const SignupBonusPoints = 100

// User represents a member of the exchange
type User struct {
	Id         string    `db:"id"`
	ExternalId string    `db:"external_id"` // opaque identity from the OAuth provider
	Name       string    `db:"name"`
	Email      string    `db:"email"`
	Role       string    `db:"role"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// Location qualifies a local-audience website. Meaningful only when the
// website's service type is "local".
type Location struct {
	Country string `json:"country,omitempty"`
	State   string `json:"state,omitempty"`
	City    string `json:"city,omitempty"`
}

// Website represents a registered website. URL and Domain are immutable after
// creation; DomainAuthority changes only through an admin re-analysis.
type Website struct {
	Id                 string     `db:"id"`
	UserId             string     `db:"user_id"`
	URL                string     `db:"url"`
	Domain             string     `db:"domain"` // registered domain (eTLD+1), unique
	DomainAuthority    int        `db:"domain_authority"`
	Category           string     `db:"category"`
	ServiceType        string     `db:"service_type"`
	Location           Location   `db:"-"`
	IsVerified         bool       `db:"is_verified"`
	VerificationToken  string     `db:"verification_token"`
	VerificationMethod string     `db:"verification_method"`
	VerifiedAt         *time.Time `db:"verified_at"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

// PointBalance represents current balance state (hot data)
type PointBalance struct {
	Id                string          `db:"id"`
	UserId            string          `db:"user_id"`
	Balance           decimal.Decimal `db:"balance"`
	LastTransactionId string          `db:"last_transaction_id"`
	Version           int64           `db:"version"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

// Transaction represents one side of a link exchange in the append-only
// ledger (cold data). Points, type, and the URL fields never change after
// creation; status and verification URL are the only mutable fields, and
// only while the row is pending.
type Transaction struct {
	Id              string          `db:"id"`
	UserId          string          `db:"user_id"`
	Type            string          `db:"tx_type"`
	Points          decimal.Decimal `db:"points"`
	SourceURL       string          `db:"source_url"` // the buyer's promoted page
	TargetURL       string          `db:"target_url"` // the seller's site hosting the link
	AnchorText      string          `db:"anchor_text"`
	Description     string          `db:"description"`
	Status          string          `db:"status"`
	VerificationURL string          `db:"verification_url"`
	WebsiteId       string          `db:"website_id"`     // the hosting website
	CounterpartId   string          `db:"counterpart_id"` // the paired earn/spend row
	Reference       string          `db:"reference"`      // e.g. signup-bonus, admin-adjust, refund:<id>
	ExpiresAt       *time.Time      `db:"expires_at"`
	CreatedAt       time.Time       `db:"created_at"`
	ProcessedAt     time.Time       `db:"processed_at"`
}

// Signed returns the signed point amount of the row: positive for earn,
// negative for spend. Replaying Signed over every row from genesis
// reconstructs the user's balance exactly, since status flips are always
// compensated by appended refund rows.
func (t *Transaction) Signed() decimal.Decimal {
	if t.Type == TransactionTypeSpend {
		return t.Points.Neg()
	}
	return t.Points
}
