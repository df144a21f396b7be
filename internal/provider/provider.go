package provider

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrorKind classifies a provider failure for the orchestrator.
type ErrorKind string

const (
	// AuthExpired means the provider rejected the credential itself. The
	// account needs user re-authentication, not a retry.
	AuthExpired ErrorKind = "authExpired"
	// RateLimited means the provider refused the call due to throttling.
	RateLimited ErrorKind = "rateLimited"
	// Timeout means the call exceeded its configured budget.
	Timeout ErrorKind = "timeout"
	// Unknown covers every other failure.
	Unknown ErrorKind = "unknown"
)

// Error is the shared failure type of all provider adapters.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("provider error (%s): %s", e.Kind, e.Msg)
	}
	if e.Err != nil {
		return fmt.Sprintf("provider error (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("provider error (%s)", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError creates a provider Error wrapping an underlying cause.
func NewError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf extracts the ErrorKind from an error chain. Context deadline
// expiration counts as Timeout even when no adapter wrapped it.
func KindOf(err error) (ErrorKind, bool) {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Timeout, true
	}
	return "", false
}

// Stage identifies a point in an adapter's fetch flow. Progress events are
// informational; the orchestrator never depends on them for correctness.
type Stage string

const (
	StageLoggingIn        Stage = "loggingIn"
	StageWaitingForOTP    Stage = "waitingForOTP"
	StageNavigating       Stage = "navigating"
	StageParsingStatement Stage = "parsingStatement"
	StageFetchingAccounts Stage = "fetchingAccounts"
	StageFetchingTxns     Stage = "fetchingTransactions"
)

// Progress is a non-blocking progress event emitted during a fetch.
type Progress struct {
	Stage        Stage
	ConnectionID string
	At           time.Time
}

// ProgressFunc receives progress events. It must not block.
type ProgressFunc func(Progress)

// Account is a normalized account as reported by an external source.
type Account struct {
	ExternalID string
	Name       string
	Type       string
	Balance    float64
	Currency   string
}

// Transaction is a normalized transaction as reported by an external source.
// ProviderTxID is empty when the source has no stable transaction identifier.
type Transaction struct {
	ProviderTxID string
	Date         time.Time
	Amount       float64
	Description  string
	Currency     string
}

// Credential is a decrypted provider secret handed to an adapter for the
// duration of one fetch. It never crosses the HTTP boundary.
type Credential struct {
	// AccessToken is set for token providers.
	AccessToken string
	// Username/Password are set for browser providers.
	Username string
	Password string
	// ConnectionID scopes sessions and progress events.
	ConnectionID string
}

// Adapter fetches normalized accounts and transactions from one external
// source. Implementations fail with *Error and emit Progress events through
// the configured callback.
type Adapter interface {
	// Name returns the provider identifier used in dedup keys.
	Name() string
	FetchAccounts(ctx context.Context, cred Credential) ([]Account, error)
	FetchTransactions(ctx context.Context, cred Credential, accountExternalID string, from, to time.Time) ([]Transaction, error)
}
