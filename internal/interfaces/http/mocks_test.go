package http

import (
	"context"
	"sync"
	"time"

	"finsync/internal/infrastructure/cache"
	"finsync/internal/models"
	"finsync/internal/provider"
	"finsync/internal/provider/token"
)

// MockAccountRepo implements models.AccountRepository for testing
type MockAccountRepo struct {
	GetByIDFunc          func(ctx context.Context, userID, id string) (*models.Account, error)
	ListByUserIDFunc     func(ctx context.Context, userID string) ([]*models.Account, error)
	UpsertFunc           func(ctx context.Context, account *models.Account) (*models.Account, error)
	UpdateSyncStatusFunc func(ctx context.Context, userID, id string, status models.SyncStatus, syncErr *string) error
}

func (m *MockAccountRepo) GetByID(ctx context.Context, userID, id string) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, userID, id)
	}
	return nil, models.ErrAccountNotFound
}

func (m *MockAccountRepo) ListByUserID(ctx context.Context, userID string) ([]*models.Account, error) {
	if m.ListByUserIDFunc != nil {
		return m.ListByUserIDFunc(ctx, userID)
	}
	return nil, nil
}

func (m *MockAccountRepo) Upsert(ctx context.Context, account *models.Account) (*models.Account, error) {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, account)
	}
	return account, nil
}

func (m *MockAccountRepo) UpdateSyncStatus(ctx context.Context, userID, id string, status models.SyncStatus, syncErr *string) error {
	if m.UpdateSyncStatusFunc != nil {
		return m.UpdateSyncStatusFunc(ctx, userID, id, status, syncErr)
	}
	return nil
}

// MockConnectionRepo implements models.ConnectionRepository for testing
type MockConnectionRepo struct {
	GetByIDFunc      func(ctx context.Context, userID, id string) (*models.Connection, error)
	FindOrCreateFunc func(ctx context.Context, conn *models.Connection) (*models.Connection, error)
	UpdateStatusFunc func(ctx context.Context, userID, id string, status models.ConnectionStatus) error
}

func (m *MockConnectionRepo) GetByID(ctx context.Context, userID, id string) (*models.Connection, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, userID, id)
	}
	return nil, models.ErrConnectionNotFound
}

func (m *MockConnectionRepo) FindOrCreate(ctx context.Context, conn *models.Connection) (*models.Connection, error) {
	if m.FindOrCreateFunc != nil {
		return m.FindOrCreateFunc(ctx, conn)
	}
	return conn, nil
}

func (m *MockConnectionRepo) UpdateStatus(ctx context.Context, userID, id string, status models.ConnectionStatus) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, userID, id, status)
	}
	return nil
}

// MockTransactionRepo implements models.TransactionRepository for testing
type MockTransactionRepo struct {
	ListByAccountIDFunc func(ctx context.Context, userID, accountID string, from, to time.Time) ([]*models.Transaction, error)
	GetByIDFunc         func(ctx context.Context, userID, accountID, id string) (*models.Transaction, error)
}

func (m *MockTransactionRepo) ListByAccountID(ctx context.Context, userID, accountID string, from, to time.Time) ([]*models.Transaction, error) {
	if m.ListByAccountIDFunc != nil {
		return m.ListByAccountIDFunc(ctx, userID, accountID, from, to)
	}
	return nil, nil
}

func (m *MockTransactionRepo) GetByID(ctx context.Context, userID, accountID, id string) (*models.Transaction, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, userID, accountID, id)
	}
	return nil, models.ErrTransactionNotFound
}

// MockSyncWriter implements models.SyncWriter for testing
type MockSyncWriter struct {
	CommitAccountSyncFunc func(ctx context.Context, commit models.AccountSyncCommit) error
}

func (m *MockSyncWriter) CommitAccountSync(ctx context.Context, commit models.AccountSyncCommit) error {
	if m.CommitAccountSyncFunc != nil {
		return m.CommitAccountSyncFunc(ctx, commit)
	}
	return nil
}

// MockUserRepo implements models.UserRepository for testing
type MockUserRepo struct {
	GetByIDFunc func(ctx context.Context, id string) (*models.User, error)
	ListIDsFunc func(ctx context.Context) ([]string, error)
}

func (m *MockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return &models.User{ID: id}, nil
}

func (m *MockUserRepo) ListIDs(ctx context.Context) ([]string, error) {
	if m.ListIDsFunc != nil {
		return m.ListIDsFunc(ctx)
	}
	return nil, nil
}

// MockAdapter implements provider.Adapter for testing
type MockAdapter struct {
	NameValue             string
	FetchAccountsFunc     func(ctx context.Context, cred provider.Credential) ([]provider.Account, error)
	FetchTransactionsFunc func(ctx context.Context, cred provider.Credential, accountExternalID string, from, to time.Time) ([]provider.Transaction, error)
}

func (m *MockAdapter) Name() string {
	if m.NameValue == "" {
		return "israel"
	}
	return m.NameValue
}

func (m *MockAdapter) FetchAccounts(ctx context.Context, cred provider.Credential) ([]provider.Account, error) {
	if m.FetchAccountsFunc != nil {
		return m.FetchAccountsFunc(ctx, cred)
	}
	return nil, nil
}

func (m *MockAdapter) FetchTransactions(ctx context.Context, cred provider.Credential, accountExternalID string, from, to time.Time) ([]provider.Transaction, error) {
	if m.FetchTransactionsFunc != nil {
		return m.FetchTransactionsFunc(ctx, cred, accountExternalID, from, to)
	}
	return nil, nil
}

// MockExchanger implements TokenExchanger for testing
type MockExchanger struct {
	ExchangeFunc func(ctx context.Context, publicToken string) (*token.ExchangeResult, error)
}

func (m *MockExchanger) ExchangePublicToken(ctx context.Context, publicToken string) (*token.ExchangeResult, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, publicToken)
	}
	return &token.ExchangeResult{AccessToken: "access-1", ItemID: "item-1", InstitutionName: "Test Bank"}, nil
}

// MockCache implements cache.Port for testing
type MockCache struct {
	mu      sync.Mutex
	entries map[string]string
}

func NewMockCache() *MockCache {
	return &MockCache{entries: make(map[string]string)}
}

func (c *MockCache) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	if !ok {
		return "", cache.ErrNotFound
	}
	return v, nil
}

func (c *MockCache) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *MockCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

func (c *MockCache) Name() string { return "mock" }
