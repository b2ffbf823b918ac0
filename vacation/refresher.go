/*
refresher.go - Periodic vacation accrual refresh

PURPOSE:
  Keeps the stored days_earned of every active employee current, so
  reports reading vacation_balances directly see today's accrual.
  Taken, carried and forfeited days are never touched.

CONFIGURATION:
  - Interval: how often to refresh (default: 24 hours)
  - Enabled: whether the refresher runs at all (default: true)

USAGE:
  r := NewAccrualRefresher(store, registry, logger)
  r.Start()
  // ... later
  r.Stop()

SEE ALSO:
  - accrual.go: DaysEarned
  - cmd/server/main.go: ACCRUAL_INTERVAL / ACCRUAL_ENABLED
*/
package vacation

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AccrualRefresher recomputes days_earned on a fixed interval.
type AccrualRefresher struct {
	Store    Store
	Rules    RuleSource
	Logger   *zap.Logger
	Interval time.Duration
	Enabled  bool
	Now      func() time.Time

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewAccrualRefresher(store Store, rs RuleSource, logger *zap.Logger) *AccrualRefresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccrualRefresher{
		Store:    store,
		Rules:    rs,
		Logger:   logger.Named("vacation.refresher"),
		Interval: 24 * time.Hour,
		Enabled:  true,
		Now:      time.Now,
	}
}

// Start runs one refresh immediately and then one per Interval.
func (r *AccrualRefresher) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.Enabled {
		r.Logger.Info("accrual refresher disabled, not starting")
		return
	}
	if r.ticker != nil {
		return
	}

	r.ticker = time.NewTicker(r.Interval)
	r.stop = make(chan struct{})
	r.wg.Add(1)
	go r.run()

	r.Logger.Info("accrual refresher started", zap.Duration("interval", r.Interval))
}

// Stop waits for an in-flight refresh to finish.
func (r *AccrualRefresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	close(r.stop)
	r.wg.Wait()
	r.ticker = nil
	r.Logger.Info("accrual refresher stopped")
}

func (r *AccrualRefresher) run() {
	defer r.wg.Done()

	ctx := context.Background()

	// Run immediately on start
	r.RunOnce(ctx)
	for {
		select {
		case <-r.ticker.C:
			r.RunOnce(ctx)
		case <-r.stop:
			return
		}
	}
}

// RunOnce refreshes every active employee for the current year and returns
// how many balances were updated.
func (r *AccrualRefresher) RunOnce(ctx context.Context) int {
	now := time.Now()
	if r.Now != nil {
		now = r.Now()
	}
	asOf := yearAsOf(now.Year(), now)

	employees, err := r.Store.ListActiveEmployees(ctx)
	if err != nil {
		r.Logger.Error("failed to list employees", zap.Error(err))
		return 0
	}

	updated, failed := 0, 0
	for _, emp := range employees {
		if ctx.Err() != nil {
			break
		}
		table, err := r.Rules.Lookup(emp.CountryCode)
		if err != nil {
			r.Logger.Warn("no rule table for employee", zap.String("employee_id", emp.ID), zap.Error(err))
			failed++
			continue
		}
		earned := DaysEarned(emp.HireDate, asOf, table)
		if err := r.Store.SetDaysEarned(ctx, emp.ID, asOf.Year, earned, now.UTC()); err != nil {
			r.Logger.Error("failed to update days earned", zap.String("employee_id", emp.ID), zap.Error(err))
			failed++
			continue
		}
		updated++
	}

	r.Logger.Info("accrual refresh completed",
		zap.Int("updated", updated),
		zap.Int("failed", failed),
		zap.String("as_of", asOf.String()),
	)
	return updated
}
