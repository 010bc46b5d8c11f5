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

package reconciler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"metered-ledger-go/internal/ledger"
	"metered-ledger-go/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const defaultConcurrency = 8

var (
	unreconciledUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ledger_unreconciled_users",
		Help: "Users whose stored balance disagrees with their operation history",
	})

	sweepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_reconcile_sweeps_total",
		Help: "Reconciliation sweeps, labeled by outcome",
	}, []string{"outcome"})
)

// Config contains configuration for Reconciler
type Config struct {
	Ledger          *ledger.Service
	Lister          store.BalanceLister
	StartingBalance decimal.Decimal
	Interval        time.Duration
	Concurrency     int
}

// Reconciler periodically checks every stored balance against the cost of
// the user's operations, surfacing partial commits after the fact.
type Reconciler struct {
	ledger          *ledger.Service
	lister          store.BalanceLister
	startingBalance decimal.Decimal
	interval        time.Duration
	concurrency     int

	// users currently out of balance, with the time they were first seen
	flagged map[string]time.Time
	mutex   sync.RWMutex

	stopOnce sync.Once
	stopChan chan struct{}
	doneChan chan struct{}
}

func New(cfg Config) *Reconciler {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Reconciler{
		ledger:          cfg.Ledger,
		lister:          cfg.Lister,
		startingBalance: cfg.StartingBalance,
		interval:        cfg.Interval,
		concurrency:     concurrency,
		flagged:         make(map[string]time.Time),
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}
}

// Start runs a first sweep in the background and then one per interval.
func (r *Reconciler) Start(ctx context.Context) error {
	if r.interval <= 0 {
		return fmt.Errorf("reconcile interval must be positive, got %s", r.interval)
	}
	if r.ledger == nil || r.lister == nil {
		return fmt.Errorf("reconciler needs a ledger and a balance lister")
	}

	go r.loop(ctx)

	zap.L().Info("Balance reconciler started",
		zap.Duration("interval", r.interval),
		zap.String("starting_balance", r.startingBalance.String()))
	return nil
}

// Stop waits for an in-flight sweep to finish. Only call after a successful Start.
func (r *Reconciler) Stop() {
	zap.L().Info("Stopping balance reconciler")
	r.stopOnce.Do(func() { close(r.stopChan) })
	<-r.doneChan
	zap.L().Info("Balance reconciler stopped")
}

func (r *Reconciler) loop(ctx context.Context) {
	defer close(r.doneChan)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			r.runSweep(ctx)
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reconciler) runSweep(ctx context.Context) {
	checked, mismatched, err := r.Sweep(ctx)
	if err != nil {
		sweepsTotal.WithLabelValues("error").Inc()
		zap.L().Error("Reconciliation sweep failed", zap.Error(err))
		return
	}
	sweepsTotal.WithLabelValues("ok").Inc()
	zap.L().Debug("Reconciliation sweep finished",
		zap.Int("checked", checked),
		zap.Int("mismatched", mismatched))
}

// Sweep reconciles every user with a stored balance once. Per-user failures
// are logged and skipped; only a failure to list balances aborts the sweep.
func (r *Reconciler) Sweep(ctx context.Context) (checked, mismatched int, err error) {
	balances, err := r.lister.ListBalances(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list balances: %w", err)
	}

	results := make([]*ledger.Reconciliation, len(balances))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i := range balances {
		userId := balances[i].UserId
		i := i
		g.Go(func() error {
			result, err := r.ledger.ReconcileBalance(gctx, userId, r.startingBalance)
			if err != nil {
				zap.L().Error("Failed to reconcile user",
					zap.String("user_id", userId),
					zap.Error(err))
				return nil
			}
			results[i] = result
			return nil
		})
	}
	_ = g.Wait()

	now := time.Now().UTC()

	r.mutex.Lock()
	defer r.mutex.Unlock()

	for _, result := range results {
		if result == nil {
			continue
		}
		checked++

		_, wasFlagged := r.flagged[result.UserId]
		switch {
		case !result.Balanced():
			mismatched++
			if !wasFlagged {
				r.flagged[result.UserId] = now
				zap.L().Error("Balance drift detected",
					zap.String("user_id", result.UserId),
					zap.String("expected", result.Expected.String()),
					zap.String("actual", result.Actual.String()),
					zap.String("difference", result.Difference().String()),
					zap.Int("unpriced", result.Unpriced))
			}
		case wasFlagged:
			delete(r.flagged, result.UserId)
			zap.L().Info("Balance drift resolved", zap.String("user_id", result.UserId))
		}
	}

	unreconciledUsers.Set(float64(len(r.flagged)))
	return checked, mismatched, nil
}

// Flagged returns the users currently out of balance, sorted.
func (r *Reconciler) Flagged() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	users := make([]string, 0, len(r.flagged))
	for userId := range r.flagged {
		users = append(users, userId)
	}
	sort.Strings(users)
	return users
}
