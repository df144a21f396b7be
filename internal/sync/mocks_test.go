package sync

import (
	"context"
	"sync"
	"time"

	"finsync/internal/models"
	"finsync/internal/provider"
)

// fakeStore is an in-memory document store implementing every repository the
// orchestrator and sweep touch. It records status transitions so tests can
// assert the state machine was honored.
type fakeStore struct {
	mu           sync.Mutex
	userIDs      []string
	accounts     map[string]*models.Account     // userID/accountID
	connections  map[string]*models.Connection  // userID/connectionID
	transactions map[string]*models.Transaction // accountID/txID

	statusHistory map[string][]models.SyncStatus // accountID -> transitions
	commits       int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		accounts:      make(map[string]*models.Account),
		connections:   make(map[string]*models.Connection),
		transactions:  make(map[string]*models.Transaction),
		statusHistory: make(map[string][]models.SyncStatus),
	}
}

func (f *fakeStore) addUser(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.userIDs = append(f.userIDs, userID)
}

func (f *fakeStore) addConnection(conn *models.Connection) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connections[conn.UserID+"/"+conn.ID] = conn
}

func (f *fakeStore) addAccount(account *models.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts[account.UserID+"/"+account.ID] = account
}

func (f *fakeStore) account(userID, id string) *models.Account {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *f.accounts[userID+"/"+id]
	return &copy
}

func (f *fakeStore) transactionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.transactions)
}

func (f *fakeStore) history(accountID string) []models.SyncStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.SyncStatus(nil), f.statusHistory[accountID]...)
}

// UserRepository

func (f *fakeStore) GetByID(ctx context.Context, id string) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func (f *fakeStore) ListIDs(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.userIDs...), nil
}

// AccountRepository

func (f *fakeStore) accountRepo() models.AccountRepository { return (*fakeAccountRepo)(f) }

type fakeAccountRepo fakeStore

func (f *fakeAccountRepo) GetByID(ctx context.Context, userID, id string) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[userID+"/"+id]
	if !ok {
		return nil, models.ErrAccountNotFound
	}
	copy := *account
	return &copy, nil
}

func (f *fakeAccountRepo) ListByUserID(ctx context.Context, userID string) ([]*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Account
	for _, account := range f.accounts {
		if account.UserID == userID {
			copy := *account
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (f *fakeAccountRepo) Upsert(ctx context.Context, account *models.Account) (*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copy := *account
	f.accounts[account.UserID+"/"+account.ID] = &copy
	return account, nil
}

func (f *fakeAccountRepo) UpdateSyncStatus(ctx context.Context, userID, id string, status models.SyncStatus, syncErr *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account, ok := f.accounts[userID+"/"+id]
	if !ok {
		return models.ErrAccountNotFound
	}
	account.SyncStatus = status
	account.SyncError = syncErr
	f.statusHistory[id] = append(f.statusHistory[id], status)
	return nil
}

// ConnectionRepository

func (f *fakeStore) connectionRepo() models.ConnectionRepository { return (*fakeConnectionRepo)(f) }

type fakeConnectionRepo fakeStore

func (f *fakeConnectionRepo) GetByID(ctx context.Context, userID, id string) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn, ok := f.connections[userID+"/"+id]
	if !ok {
		return nil, models.ErrConnectionNotFound
	}
	copy := *conn
	return &copy, nil
}

func (f *fakeConnectionRepo) FindOrCreate(ctx context.Context, conn *models.Connection) (*models.Connection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.connections {
		if existing.UserID == conn.UserID && existing.Provider == conn.Provider && existing.ExternalItemID == conn.ExternalItemID {
			existing.EncryptedCredential = conn.EncryptedCredential
			existing.Status = models.ConnectionActive
			copy := *existing
			return &copy, nil
		}
	}
	copy := *conn
	f.connections[conn.UserID+"/"+conn.ID] = &copy
	return conn, nil
}

func (f *fakeConnectionRepo) UpdateStatus(ctx context.Context, userID, id string, status models.ConnectionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	conn, ok := f.connections[userID+"/"+id]
	if !ok {
		return models.ErrConnectionNotFound
	}
	conn.Status = status
	return nil
}

// TransactionRepository

func (f *fakeStore) transactionRepo() models.TransactionRepository { return (*fakeTransactionRepo)(f) }

type fakeTransactionRepo fakeStore

func (f *fakeTransactionRepo) ListByAccountID(ctx context.Context, userID, accountID string, from, to time.Time) ([]*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.Transaction
	for _, txn := range f.transactions {
		if txn.AccountID == accountID && !txn.Date.Before(from) && !txn.Date.After(to) {
			copy := *txn
			out = append(out, &copy)
		}
	}
	return out, nil
}

func (f *fakeTransactionRepo) GetByID(ctx context.Context, userID, accountID, id string) (*models.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	txn, ok := f.transactions[accountID+"/"+id]
	if !ok {
		return nil, models.ErrTransactionNotFound
	}
	copy := *txn
	return &copy, nil
}

// SyncWriter

func (f *fakeStore) syncWriter() models.SyncWriter { return (*fakeSyncWriter)(f) }

type fakeSyncWriter fakeStore

func (f *fakeSyncWriter) CommitAccountSync(ctx context.Context, commit models.AccountSyncCommit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	account := *commit.Account
	f.accounts[account.UserID+"/"+account.ID] = &account
	f.statusHistory[account.ID] = append(f.statusHistory[account.ID], account.SyncStatus)
	for _, txn := range commit.Transactions {
		copy := *txn
		f.transactions[txn.AccountID+"/"+txn.ID] = &copy
	}
	f.commits++
	return nil
}

// fakeAdapter is a function-field provider adapter.
type fakeAdapter struct {
	NameValue             string
	FetchAccountsFunc     func(ctx context.Context, cred provider.Credential) ([]provider.Account, error)
	FetchTransactionsFunc func(ctx context.Context, cred provider.Credential, accountExternalID string, from, to time.Time) ([]provider.Transaction, error)
}

func (a *fakeAdapter) Name() string {
	if a.NameValue == "" {
		return "israel"
	}
	return a.NameValue
}

func (a *fakeAdapter) FetchAccounts(ctx context.Context, cred provider.Credential) ([]provider.Account, error) {
	if a.FetchAccountsFunc != nil {
		return a.FetchAccountsFunc(ctx, cred)
	}
	return nil, nil
}

func (a *fakeAdapter) FetchTransactions(ctx context.Context, cred provider.Credential, accountExternalID string, from, to time.Time) ([]provider.Transaction, error) {
	if a.FetchTransactionsFunc != nil {
		return a.FetchTransactionsFunc(ctx, cred, accountExternalID, from, to)
	}
	return nil, nil
}
