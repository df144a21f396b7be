package models

import "time"

// SyncStatus is the per-account sync lifecycle state.
type SyncStatus string

const (
	// SyncActive is the initial state, entered after a successful link or sync.
	SyncActive SyncStatus = "active"
	// SyncSyncing is transient; it only exists between the start and the
	// completion of a single orchestrator call.
	SyncSyncing SyncStatus = "syncing"
	// SyncError marks a recoverable failure; the account stays eligible for
	// the staleness sweep.
	SyncError SyncStatus = "error"
	// SyncAuthRequired marks a credential rejected by the provider. The user
	// must re-link before any automatic attempt resumes.
	SyncAuthRequired SyncStatus = "authRequired"
)

// Account is one financial account surfaced by a Connection.
type Account struct {
	ID           string     `json:"id" firestore:"id"`
	ConnectionID string     `json:"connectionId" firestore:"connectionId"`
	UserID       string     `json:"userId" firestore:"userId"`
	ExternalID   string     `json:"externalId" firestore:"externalId"`
	Name         string     `json:"name" firestore:"name"`
	AccountType  string     `json:"type" firestore:"type"`
	Balance      float64    `json:"balance" firestore:"balance"`
	Currency     string     `json:"currency" firestore:"currency"`
	SyncStatus   SyncStatus `json:"syncStatus" firestore:"syncStatus"`
	SyncError    *string    `json:"syncError,omitempty" firestore:"syncError"`
	LastSyncAt   time.Time  `json:"lastSyncAt" firestore:"lastSyncAt"`
	CreatedAt    time.Time  `json:"createdAt" firestore:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt" firestore:"updatedAt"`
}
