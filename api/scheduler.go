/*
scheduler.go - Automated reconciliation scheduler

PURPOSE:
  Periodically reconciles the current reporting month across the whole
  portfolio, verifies the cross-scope rollup, and records each run for
  audit and UI display.

DESIGN:
  - Runs a background goroutine; the check interval follows a
    time-of-day table (night audit hours check more often)
  - The interval table is injected via config; the scheduler holds no
    mutable interval state of its own
  - A rollup mismatch marks the run failed; it is never swallowed

USAGE:
  scheduler := NewReconciliationScheduler(store, engine, cfg, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - config/config.go: SchedulerConfig and IntervalFor
  - store/sqlite: run record persistence
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lodgeworks/billing-engine/billing"
	"github.com/lodgeworks/billing-engine/config"
	"github.com/lodgeworks/billing-engine/store/sqlite"
)

// ReconciliationScheduler handles automated portfolio reconciliation.
type ReconciliationScheduler struct {
	Store  *sqlite.Store
	Engine *billing.Engine
	Config config.SchedulerConfig
	Log    *logrus.Logger

	timer *time.Timer
	stop  chan bool
	wg    sync.WaitGroup
	mu    sync.Mutex
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(store *sqlite.Store, engine *billing.Engine, cfg config.SchedulerConfig, log *logrus.Logger) *ReconciliationScheduler {
	if log == nil {
		log = logrus.New()
	}
	return &ReconciliationScheduler{
		Store:  store,
		Engine: engine,
		Config: cfg,
		Log:    log,
		stop:   make(chan bool),
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Config.Enabled {
		rs.Log.Info("scheduler disabled, not starting")
		return
	}

	interval := rs.Config.IntervalFor(time.Now())
	rs.timer = time.NewTimer(interval)
	rs.wg.Add(1)

	go rs.run()

	rs.Log.WithField("interval", interval).Info("scheduler started")
}

// Stop stops the scheduler.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.timer != nil {
		rs.timer.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.Log.Info("scheduler stopped")
	}
}

func (rs *ReconciliationScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.reconcileNow()

	for {
		select {
		case <-rs.timer.C:
			rs.reconcileNow()
			rs.timer.Reset(rs.Config.IntervalFor(time.Now()))
		case <-rs.stop:
			return
		}
	}
}

func (rs *ReconciliationScheduler) reconcileNow() {
	ctx := context.Background()
	period := billing.MonthOf(billing.Today())
	req := billing.ReconcileRequest{Scope: billing.ScopePortfolio, Period: period}

	run := sqlite.RunRecord{
		ID:          uuid.NewString(),
		Scope:       req.Scope,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Status:      "running",
		StartedAt:   time.Now(),
	}
	if err := rs.Store.SaveRun(ctx, run); err != nil {
		rs.Log.WithError(err).Error("scheduler failed to record run")
		return
	}

	out, err := rs.Engine.Reconcile(ctx, req)
	if err == nil {
		run.ResultCount = len(out.Results)
		run.WarningCount = len(out.Warnings)
		err = rs.Engine.ValidateRollup(ctx, req)
	}

	completed := time.Now()
	run.CompletedAt = &completed
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
		rs.Log.WithError(err).WithField("period", period.String()).Error("scheduled reconciliation failed")
	} else {
		run.Status = "completed"
		rs.Log.WithFields(logrus.Fields{
			"period":   period.String(),
			"results":  run.ResultCount,
			"warnings": run.WarningCount,
		}).Info("scheduled reconciliation completed")
	}

	if err := rs.Store.SaveRun(ctx, run); err != nil {
		rs.Log.WithError(err).Error("scheduler failed to update run")
	}
}

// RunNow triggers an immediate reconciliation (for testing/admin).
func (rs *ReconciliationScheduler) RunNow() {
	rs.reconcileNow()
}
