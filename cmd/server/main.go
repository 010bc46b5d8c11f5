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

package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"metered-ledger-go/internal/api"
	"metered-ledger-go/internal/common"
	"metered-ledger-go/internal/config"
	"metered-ledger-go/internal/reconciler"
	"metered-ledger-go/internal/store"

	"go.uber.org/zap"
)

func main() {
	addrFlag := flag.String("addr", "", "Listen address (overrides SERVER_ADDR)")
	flag.Parse()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}
	if *addrFlag != "" {
		cfg.Server.Addr = *addrFlag
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting metered ledger server",
		zap.String("backend", cfg.Backend),
		zap.String("addr", cfg.Server.Addr))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	if cfg.Ledger.ReconcileInterval > 0 {
		lister, ok := services.Backend.(store.BalanceLister)
		if !ok {
			zap.L().Warn("Backend cannot list balances, reconciliation disabled", zap.String("backend", cfg.Backend))
		} else {
			r := reconciler.New(reconciler.Config{
				Ledger:          services.Ledger,
				Lister:          lister,
				StartingBalance: cfg.Ledger.InitialBalance,
				Interval:        cfg.Ledger.ReconcileInterval,
			})
			if err := r.Start(ctx); err != nil {
				zap.L().Fatal("Failed to start reconciler", zap.Error(err))
			}
			defer r.Stop()
		}
	}

	handler := api.NewLedgerService(services.Ledger, services.Operations, services.Pinger())

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewRouter(handler, cfg.Server.CORSAllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		zap.L().Info("HTTP server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.Strings("operation_types", services.Operations.Types()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zap.L().Info("Shutdown signal received, stopping server...")
	case err := <-serverErr:
		if err != nil {
			zap.L().Error("HTTP server failed", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Forced shutdown after timeout", zap.Error(err))
		return
	}
	zap.L().Info("Server stopped gracefully")
}
