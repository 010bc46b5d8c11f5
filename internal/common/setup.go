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

package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"metered-ledger-go/internal/config"
	"metered-ledger-go/internal/database"
	"metered-ledger-go/internal/docstore"
	"metered-ledger-go/internal/ledger"
	"metered-ledger-go/internal/models"
	"metered-ledger-go/internal/operations"
	"metered-ledger-go/internal/postgres"
	"metered-ledger-go/internal/store"
	"metered-ledger-go/internal/store/memory"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// Pinger is implemented by backends with a connectivity check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Services struct {
	Backend    store.Backend
	Ledger     *ledger.Service
	Operations *operations.Registry
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeBackend opens the store selected by cfg.Backend.
func InitializeBackend(ctx context.Context, cfg *models.Config) (store.Backend, error) {
	zap.L().Info("Opening ledger backend", zap.String("backend", cfg.Backend))

	var (
		backend store.Backend
		err     error
	)
	switch cfg.Backend {
	case config.BackendSQLite:
		var db *database.Service
		db, err = database.NewService(ctx, cfg.Database)
		if err == nil {
			backend = db
		}
	case config.BackendPostgres:
		var pg *postgres.Store
		pg, err = postgres.NewStore(ctx, cfg.Postgres)
		if err == nil {
			backend = pg
		}
	case config.BackendMongo:
		var docs *docstore.Store
		docs, err = docstore.NewStore(ctx, cfg.Mongo)
		if err == nil {
			backend = docs
		}
	case config.BackendMemory:
		zap.L().Warn("Using in-memory backend; data is lost on exit")
		backend = memory.NewMemory()
	default:
		err = fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", cfg.Backend, err)
	}
	return backend, nil
}

// InitializeServices opens the backend and wires the ledger and the
// operation registry on top of it.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	prices, err := LoadPriceTable(cfg.Ledger.PricesFile)
	if err != nil {
		return nil, err
	}
	zap.L().Info("Loaded price table",
		zap.Strings("operation_types", prices.Types()),
		zap.String("file", cfg.Ledger.PricesFile))

	backend, err := InitializeBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	random, err := operations.NewRandomStringClient(cfg.Ledger.RandomStringURL, cfg.Ledger.RandomStringTimeout)
	if err != nil {
		backend.Close()
		return nil, err
	}

	svc := ledger.NewServiceFromBackend(backend, prices,
		ledger.WithEnrichmentConcurrency(cfg.Ledger.EnrichmentConcurrency))

	return &Services{
		Backend:    backend,
		Ledger:     svc,
		Operations: operations.NewRegistry(random),
	}, nil
}

// InitializeLedgerOnly wires the ledger without the operation registry.
// Useful for read-only tools like the balance report.
func InitializeLedgerOnly(ctx context.Context, cfg *models.Config) (*Services, error) {
	prices, err := LoadPriceTable(cfg.Ledger.PricesFile)
	if err != nil {
		return nil, err
	}

	backend, err := InitializeBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Services{
		Backend: backend,
		Ledger:  ledger.NewServiceFromBackend(backend, prices),
	}, nil
}

// Pinger returns the backend's connectivity check, or nil when it has none.
func (cs *Services) Pinger() Pinger {
	if p, ok := cs.Backend.(Pinger); ok {
		return p
	}
	return nil
}

func (cs *Services) Close() {
	if cs.Backend != nil {
		cs.Backend.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
