package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config represents the application configuration
type Config struct {
	Backend  string
	Database DatabaseConfig
	Postgres PostgresConfig
	Mongo    MongoConfig
	Server   ServerConfig
	Ledger   LedgerConfig
}

// DatabaseConfig holds SQLite connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// PostgresConfig holds pgx pool settings
type PostgresConfig struct {
	DSN          string
	MaxConns     int
	PingTimeout  time.Duration
	QueryTimeout time.Duration
}

// MongoConfig holds document store settings
type MongoConfig struct {
	URI         string
	Database    string
	PingTimeout time.Duration
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr               string
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string
}

// LedgerConfig holds pricing and operation settings
type LedgerConfig struct {
	PricesFile            string
	RandomStringURL       string
	RandomStringTimeout   time.Duration
	EnrichmentConcurrency int
	InitialBalance        decimal.Decimal
	// ReconcileInterval of zero disables the background sweep.
	ReconcileInterval time.Duration
}
