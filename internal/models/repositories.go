package models

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrConnectionNotFound  = errors.New("connection not found")
	ErrTransactionNotFound = errors.New("transaction not found")
)

// UserRepository defines data access for Users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	ListIDs(ctx context.Context) ([]string, error)
}

// ConnectionRepository defines data access for Connections.
type ConnectionRepository interface {
	GetByID(ctx context.Context, userID, id string) (*Connection, error)
	// FindOrCreate keys on (userID, provider, externalItemID) so re-linking
	// the same item updates the stored credential instead of duplicating.
	FindOrCreate(ctx context.Context, conn *Connection) (*Connection, error)
	UpdateStatus(ctx context.Context, userID, id string, status ConnectionStatus) error
}

// AccountRepository defines data access for Accounts.
type AccountRepository interface {
	GetByID(ctx context.Context, userID, id string) (*Account, error)
	ListByUserID(ctx context.Context, userID string) ([]*Account, error)
	Upsert(ctx context.Context, account *Account) (*Account, error)
	UpdateSyncStatus(ctx context.Context, userID, id string, status SyncStatus, syncErr *string) error
}

// TransactionRepository defines data access for Transactions.
type TransactionRepository interface {
	ListByAccountID(ctx context.Context, userID, accountID string, from, to time.Time) ([]*Transaction, error)
	GetByID(ctx context.Context, userID, accountID, id string) (*Transaction, error)
}

// AccountSyncCommit is the unit the store must write atomically at the end of
// a successful sync: the account's new balance and terminal status plus the
// merged transactions.
type AccountSyncCommit struct {
	Account      *Account
	Transactions []*Transaction
}

// SyncWriter commits one account's sync outcome in a single batch so the
// balance and its transactions never diverge.
type SyncWriter interface {
	CommitAccountSync(ctx context.Context, commit AccountSyncCommit) error
}
