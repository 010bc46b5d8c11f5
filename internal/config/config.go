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

	"metered-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

const defaultRandomStringURL = "https://www.random.org/strings/?num=1&len=8&digits=on&upperalpha=on&loweralpha=on&unique=on&format=plain&rnd=new"

func Load() (*models.Config, error) {
	backend := strings.ToLower(getEnvString("LEDGER_BACKEND", BackendSQLite))
	switch backend {
	case BackendSQLite, BackendPostgres, BackendMongo, BackendMemory:
	default:
		return nil, fmt.Errorf("invalid LEDGER_BACKEND %q (want sqlite, postgres, mongo or memory)", backend)
	}

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

	queryTimeout, err := getEnvDuration("DB_QUERY_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	randomStringTimeout, err := getEnvDuration("RANDOM_STRING_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	reconcileInterval, err := getEnvDuration("RECONCILE_INTERVAL", 0)
	if err != nil {
		return nil, err
	}

	initialBalance, err := getEnvDecimal("INITIAL_BALANCE", decimal.NewFromInt(100))
	if err != nil {
		return nil, err
	}

	cfg := &models.Config{
		Backend: backend,
		Database: models.DatabaseConfig{
			Path:            getEnvString("DATABASE_PATH", "ledger.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: connMaxLifetime,
			ConnMaxIdleTime: connMaxIdleTime,
			PingTimeout:     pingTimeout,
		},
		Postgres: models.PostgresConfig{
			DSN:          getEnvString("POSTGRES_DSN", ""),
			MaxConns:     getEnvInt("POSTGRES_MAX_CONNS", 10),
			PingTimeout:  pingTimeout,
			QueryTimeout: queryTimeout,
		},
		Mongo: models.MongoConfig{
			URI:         getEnvString("MONGO_URI", ""),
			Database:    getEnvString("MONGO_DATABASE", "ledger"),
			PingTimeout: pingTimeout,
		},
		Server: models.ServerConfig{
			Addr:               getEnvString("SERVER_ADDR", ":8080"),
			ShutdownTimeout:    shutdownTimeout,
			CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Ledger: models.LedgerConfig{
			PricesFile:            getEnvString("PRICES_FILE", ""),
			RandomStringURL:       getEnvString("RANDOM_STRING_URL", defaultRandomStringURL),
			RandomStringTimeout:   randomStringTimeout,
			EnrichmentConcurrency: getEnvInt("ENRICHMENT_CONCURRENCY", 16),
			InitialBalance:        initialBalance,
			ReconcileInterval:     reconcileInterval,
		},
	}

	if backend == BackendPostgres && cfg.Postgres.DSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required when LEDGER_BACKEND=postgres")
	}
	if backend == BackendMongo && cfg.Mongo.URI == "" {
		return nil, fmt.Errorf("MONGO_URI is required when LEDGER_BACKEND=mongo")
	}

	return cfg, nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
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

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	if value := os.Getenv(key); value != "" {
		d, err := decimal.NewFromString(value)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid number for %s: %q (%w)", key, value, err)
		}
		return d, nil
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

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
