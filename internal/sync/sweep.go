package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"finsync/internal/infrastructure/cache"
	"finsync/internal/models"
)

// ErrSweepBudgetExceeded marks a sweep cut short by its wall-clock ceiling.
// It is internal bookkeeping: remaining stale accounts are simply picked up
// by the next scheduled run, and the error never reaches a user.
var ErrSweepBudgetExceeded = errors.New("sweep wall-clock budget exceeded")

var (
	sweepTotal, _   = syncMeter.Int64Counter("sweep.runs.total", metric.WithDescription("Sweep runs by outcome"))
	sweepSynced, _  = syncMeter.Int64Counter("sweep.accounts.synced", metric.WithDescription("Accounts synced by sweeps"))
	sweepSkipped, _ = syncMeter.Int64Counter("sweep.accounts.skipped", metric.WithDescription("Accounts skipped by sweeps (fresh or ineligible)"))
)

const (
	// DefaultStaleThreshold is how old lastSyncAt must be before a sweep
	// re-syncs an account.
	DefaultStaleThreshold = 6 * time.Hour
	// DefaultSweepBudget is the hard wall-clock ceiling for one sweep run.
	DefaultSweepBudget = 5 * time.Minute
)

// SweepConfig tunes the staleness sweep.
type SweepConfig struct {
	StaleThreshold time.Duration
	Budget         time.Duration
}

// Sweep scans all users' accounts and re-syncs the stale ones under a
// wall-clock budget. It runs as a single sequential pass: browser sessions
// are the scarce resource, so there is no worker pool here.
type Sweep struct {
	users    models.UserRepository
	accounts models.AccountRepository
	orch     *Orchestrator
	cache    cache.Port

	threshold time.Duration
	budget    time.Duration
}

// NewSweep creates a staleness sweep. cache may be nil.
func NewSweep(users models.UserRepository, accounts models.AccountRepository, orch *Orchestrator, c cache.Port, cfg SweepConfig) *Sweep {
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = DefaultStaleThreshold
	}
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultSweepBudget
	}
	return &Sweep{
		users:     users,
		accounts:  accounts,
		orch:      orch,
		cache:     c,
		threshold: cfg.StaleThreshold,
		budget:    cfg.Budget,
	}
}

// Run executes one sweep pass. Per-user errors are folded into the summary
// without aborting the scan of subsequent users. The budget is checked
// between accounts, never inside one: a sync in progress is allowed to
// finish.
func (s *Sweep) Run(ctx context.Context) (*models.SweepSummary, error) {
	ctx, span := syncTracer.Start(ctx, "sweep.run")
	defer span.End()

	start := time.Now()
	summary := &models.SweepSummary{Details: []models.SweepUserDetail{}}

	userIDs, err := s.users.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	log.Printf("Sweep: scanning %d users (threshold=%v, budget=%v)", len(userIDs), s.threshold, s.budget)

	budgetHit := false
scan:
	for _, userID := range userIDs {
		detail := models.SweepUserDetail{UserID: userID}

		accounts, err := s.accounts.ListByUserID(ctx, userID)
		if err != nil {
			detail.Error = err.Error()
			summary.TotalErrors++
			summary.Details = append(summary.Details, detail)
			summary.UsersProcessed++
			log.Printf("Sweep: failed to list accounts for user %s: %v", userID, err)
			continue
		}

		for _, account := range accounts {
			if time.Since(start) > s.budget {
				budgetHit = true
				summary.Details = append(summary.Details, detail)
				summary.UsersProcessed++
				break scan
			}

			if !s.shouldSync(account) {
				sweepSkipped.Add(ctx, 1)
				continue
			}
			summary.AccountsConsidered++

			result, err := s.orch.SyncAccount(ctx, userID, account.ID)
			if err != nil {
				detail.Errors++
				summary.TotalErrors++
				log.Printf("Sweep: user %s account %s: %v", userID, account.ID, err)
				continue
			}
			if result.Success {
				detail.AccountsSynced++
				summary.TotalSynced++
			} else {
				detail.Errors++
				summary.TotalErrors++
			}
		}

		summary.Details = append(summary.Details, detail)
		summary.UsersProcessed++
	}

	summary.Duration = time.Since(start)
	summary.DurationString = summary.Duration.Round(time.Millisecond).String()
	summary.BudgetExceeded = budgetHit

	sweepSynced.Add(ctx, int64(summary.TotalSynced))
	outcome := "complete"
	if budgetHit {
		outcome = "budget-exceeded"
		span.AddEvent("budget exceeded", trace.WithAttributes(attribute.Int("users.processed", summary.UsersProcessed)))
		log.Printf("Sweep: %v (deferred remaining accounts to next run)", ErrSweepBudgetExceeded)
	}
	sweepTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))

	s.publishSummary(ctx, summary)

	log.Printf("Sweep complete: users=%d synced=%d errors=%d duration=%s",
		summary.UsersProcessed, summary.TotalSynced, summary.TotalErrors, summary.DurationString)
	return summary, nil
}

// shouldSync selects stale, sweep-eligible accounts. authRequired accounts
// stay excluded until the user re-links; never-synced accounts (zero
// lastSyncAt) count as stale.
func (s *Sweep) shouldSync(account *models.Account) bool {
	if !EligibleForSweep(account.SyncStatus) {
		return false
	}
	if account.LastSyncAt.IsZero() {
		return true
	}
	return time.Since(account.LastSyncAt) > s.threshold
}

// publishSummary caches the last summary for the operational endpoint.
// Best effort.
func (s *Sweep) publishSummary(ctx context.Context, summary *models.SweepSummary) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cache.SweepSummaryKey, string(payload), 24*time.Hour); err != nil {
		log.Printf("Sweep: failed to cache summary: %v", err)
	}
}
