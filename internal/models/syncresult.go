package models

import "time"

// SyncResult is the outcome of one sync attempt for one account.
// It is returned to callers and never persisted.
type SyncResult struct {
	AccountID       string `json:"accountId"`
	AccountName     string `json:"accountName"`
	Success         bool   `json:"success"`
	NewTransactions int    `json:"newTransactions"`
	Error           string `json:"error,omitempty"`
}

// SweepUserDetail is the per-user slice of a sweep summary.
type SweepUserDetail struct {
	UserID         string `json:"userId"`
	AccountsSynced int    `json:"accountsSynced"`
	Errors         int    `json:"errors"`
	Error          string `json:"error,omitempty"`
}

// SweepSummary aggregates one staleness sweep run.
type SweepSummary struct {
	UsersProcessed     int               `json:"usersProcessed"`
	TotalSynced        int               `json:"totalAccountsSynced"`
	TotalErrors        int               `json:"totalErrors"`
	Duration           time.Duration     `json:"-"`
	DurationString     string            `json:"duration"`
	Details            []SweepUserDetail `json:"details"`
	BudgetExceeded     bool              `json:"-"`
	AccountsConsidered int               `json:"-"`
}
