package sync

import "finsync/internal/models"

// The sync status state machine. Only the orchestrator writes an account's
// syncStatus: {active, error, authRequired} -> syncing on sync start, and
// syncing -> {active, error, authRequired} on sync end. The orchestrator's
// deferred cleanup guarantees no account is left in syncing once its call
// frame unwinds.

// CanStartSync reports whether an account in the given state may enter
// syncing.
func CanStartSync(status models.SyncStatus) bool {
	switch status {
	case models.SyncActive, models.SyncError, models.SyncAuthRequired:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state is one a sync call may end in.
func IsTerminal(status models.SyncStatus) bool {
	return status != models.SyncSyncing
}

// CanTransition reports whether the state machine allows moving from one
// status to another.
func CanTransition(from, to models.SyncStatus) bool {
	switch to {
	case models.SyncSyncing:
		return CanStartSync(from)
	case models.SyncActive, models.SyncError, models.SyncAuthRequired:
		return from == models.SyncSyncing
	default:
		return false
	}
}

// EligibleForSweep reports whether the staleness sweep may attempt this
// account. authRequired accounts are excluded until the user re-links;
// syncing accounts are owned by an in-flight call.
func EligibleForSweep(status models.SyncStatus) bool {
	return status == models.SyncActive || status == models.SyncError
}
