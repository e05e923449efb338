package models

import "time"

// Config represents the application configuration
type Config struct {
	Database     DatabaseConfig
	Ledger       LedgerConfig
	Server       ServerConfig
	Auth         AuthConfig
	Analyzer     AnalyzerConfig
	Verification VerificationConfig
	Sweep        SweepConfig
	Notify       NotifyConfig
}

// DatabaseConfig holds SQLite connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	SeedDemoUsers   bool
}

// LedgerConfig selects the points-ledger backend.
type LedgerConfig struct {
	Backend  string // "sqlite" or "formance"
	Formance FormanceConfig
}

// FormanceConfig holds Formance Stack connection settings
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// AuthConfig holds identity-token verification settings. The OAuth provider
// is external; we only verify its signed tokens and map emails to roles.
type AuthConfig struct {
	JWTSecret   string
	AdminEmails []string
}

// AnalyzerConfig holds the external content-analysis service settings
type AnalyzerConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// UseStub replaces the HTTP analyzer with the deterministic stub.
	UseStub bool
}

// VerificationConfig holds verification-engine settings
type VerificationConfig struct {
	FetchTimeout time.Duration
	UserAgent    string
	NichesFile   string
}

// SweepConfig holds pending-transaction expiry settings
type SweepConfig struct {
	PendingTTL time.Duration
	Schedule   string // cron spec, e.g. "@hourly"
	Enabled    bool
}

// NotifyConfig holds outbound webhook settings
type NotifyConfig struct {
	WebhookURL string
	Timeout    time.Duration
}
