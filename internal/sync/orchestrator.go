package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"finsync/internal/infrastructure/crypto"
	"finsync/internal/models"
	"finsync/internal/provider"
)

var (
	syncTracer      = otel.Tracer("finsync/sync")
	syncMeter       = otel.Meter("finsync/sync")
	syncDuration, _ = syncMeter.Float64Histogram("sync.account.duration", metric.WithDescription("Account sync duration in seconds"), metric.WithUnit("s"))
	syncTotal, _    = syncMeter.Int64Counter("sync.account.total", metric.WithDescription("Account syncs by outcome"))
)

const (
	// DefaultSyncWindowDays is how far back transactions are fetched.
	DefaultSyncWindowDays = 90
	// DefaultProviderTimeout bounds one account's provider phase.
	DefaultProviderTimeout = 12 * time.Minute
)

// AdapterFactory returns the provider adapter for a connection plus a
// cleanup that releases whatever the adapter holds (a browser session, for
// the browser provider). cleanup is never nil.
type AdapterFactory func(conn *models.Connection) (provider.Adapter, func(), error)

// Config tunes the orchestrator.
type Config struct {
	SyncWindowDays  int
	ProviderTimeout time.Duration
}

// Orchestrator composes the vault, provider adapters, deduplicator and
// state machine to sync one account or all accounts of a user.
type Orchestrator struct {
	accounts     models.AccountRepository
	connections  models.ConnectionRepository
	transactions models.TransactionRepository
	writer       models.SyncWriter
	encryptor    *crypto.Encryptor
	adapters     AdapterFactory

	window          time.Duration
	providerTimeout time.Duration

	// sf collapses a manual trigger racing the sweep for the same account
	// into a single flight, so one credential or browser session is never
	// driven by two flows at once.
	sf singleflight.Group
}

// NewOrchestrator creates a sync orchestrator.
func NewOrchestrator(
	accounts models.AccountRepository,
	connections models.ConnectionRepository,
	transactions models.TransactionRepository,
	writer models.SyncWriter,
	encryptor *crypto.Encryptor,
	adapters AdapterFactory,
	cfg Config,
) *Orchestrator {
	if cfg.SyncWindowDays <= 0 {
		cfg.SyncWindowDays = DefaultSyncWindowDays
	}
	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = DefaultProviderTimeout
	}
	return &Orchestrator{
		accounts:        accounts,
		connections:     connections,
		transactions:    transactions,
		writer:          writer,
		encryptor:       encryptor,
		adapters:        adapters,
		window:          time.Duration(cfg.SyncWindowDays) * 24 * time.Hour,
		providerTimeout: cfg.ProviderTimeout,
	}
}

// SyncAccount syncs one account end to end. Provider-level failures are
// converted into a persisted status + message and reported through the
// result; the returned error is reserved for the account or connection not
// being loadable at all.
func (o *Orchestrator) SyncAccount(ctx context.Context, userID, accountID string) (*models.SyncResult, error) {
	v, err, _ := o.sf.Do(userID+"/"+accountID, func() (interface{}, error) {
		return o.syncAccount(ctx, userID, accountID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.SyncResult), nil
}

func (o *Orchestrator) syncAccount(ctx context.Context, userID, accountID string) (*models.SyncResult, error) {
	ctx, span := syncTracer.Start(ctx, "sync.account",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("account.id", accountID),
		),
	)
	defer span.End()

	account, err := o.accounts.GetByID(ctx, userID, accountID)
	if err != nil {
		return nil, err
	}
	conn, err := o.connections.GetByID(ctx, userID, account.ConnectionID)
	if err != nil {
		return nil, err
	}

	result := &models.SyncResult{AccountID: account.ID, AccountName: account.Name}

	if !CanStartSync(account.SyncStatus) {
		result.Error = "sync already in progress"
		return result, nil
	}

	if err := o.accounts.UpdateSyncStatus(ctx, userID, accountID, models.SyncSyncing, nil); err != nil {
		return nil, fmt.Errorf("failed to mark account syncing: %w", err)
	}

	// The cleanup context survives cancellation so the terminal status write
	// happens even when the provider phase timed out.
	cleanupCtx := context.WithoutCancel(ctx)

	// Terminal-state guarantee: whatever happens below, including a panic in
	// an adapter, the account leaves syncing before this frame unwinds. The
	// success path clears the flag because CommitAccountSync already wrote
	// the terminal status atomically with the data.
	terminal := false
	defer func() {
		if terminal {
			return
		}
		msg := "sync aborted unexpectedly"
		if err := o.accounts.UpdateSyncStatus(cleanupCtx, userID, accountID, models.SyncError, &msg); err != nil {
			log.Printf("User %s: failed to clear syncing state for account %s: %v", userID, accountID, err)
		}
	}()

	start := time.Now()
	newCount, syncErr := o.performSync(ctx, account, conn)
	syncDuration.Record(ctx, time.Since(start).Seconds())

	if syncErr != nil {
		msg := syncErr.Error()
		kind, _ := provider.KindOf(syncErr)

		if kind == provider.AuthExpired {
			// The credential itself was rejected: the user must re-link.
			// Mark the connection too so the whole link is flagged.
			if err := o.accounts.UpdateSyncStatus(cleanupCtx, userID, accountID, models.SyncAuthRequired, &msg); err != nil {
				log.Printf("User %s: failed to mark account %s authRequired: %v", userID, accountID, err)
			} else {
				terminal = true
			}
			if err := o.connections.UpdateStatus(cleanupCtx, userID, conn.ID, models.ConnectionAuthRequired); err != nil {
				log.Printf("User %s: failed to mark connection %s authRequired: %v", userID, conn.ID, err)
			}
		} else {
			if err := o.accounts.UpdateSyncStatus(cleanupCtx, userID, accountID, models.SyncError, &msg); err != nil {
				log.Printf("User %s: failed to mark account %s errored: %v", userID, accountID, err)
			} else {
				terminal = true
			}
		}

		span.RecordError(syncErr)
		span.SetStatus(codes.Error, msg)
		syncTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "error"), attribute.String("kind", string(kind))))
		log.Printf("User %s: sync failed for account %s: %s", userID, accountID, msg)

		result.Error = msg
		return result, nil
	}

	terminal = true
	result.Success = true
	result.NewTransactions = newCount
	syncTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	log.Printf("User %s: synced account %s (%d new transactions)", userID, accountID, newCount)
	return result, nil
}

// performSync runs the provider phase and commits the outcome. The balance
// update and the merged transactions land in one atomic batch together with
// the terminal active status.
func (o *Orchestrator) performSync(ctx context.Context, account *models.Account, conn *models.Connection) (int, error) {
	cred, err := o.credentialFor(conn)
	if err != nil {
		return 0, err
	}

	adapter, cleanup, err := o.adapters(conn)
	if err != nil {
		return 0, fmt.Errorf("failed to build provider adapter: %w", err)
	}
	defer cleanup()

	pctx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()

	provAccounts, err := adapter.FetchAccounts(pctx, cred)
	if err != nil {
		return 0, err
	}

	var remote *provider.Account
	for i := range provAccounts {
		if provAccounts[i].ExternalID == account.ExternalID {
			remote = &provAccounts[i]
			break
		}
	}
	if remote == nil {
		return 0, provider.NewError(provider.Unknown,
			fmt.Sprintf("account %s no longer reported by provider", account.ExternalID), nil)
	}

	now := time.Now()
	from := now.Add(-o.window)

	fetched, err := adapter.FetchTransactions(pctx, cred, account.ExternalID, from, now)
	if err != nil {
		return 0, err
	}

	stored, err := o.transactions.ListByAccountID(ctx, account.UserID, account.ID, from, now)
	if err != nil {
		return 0, fmt.Errorf("failed to load stored transactions: %w", err)
	}
	existingIDs := make(map[string]bool, len(stored))
	for _, txn := range stored {
		existingIDs[txn.ID] = true
	}

	upserts, newCount := Merge(fetched, adapter.Name(), account.ID, account.ConnectionID, existingIDs, now)

	updated := *account
	updated.Balance = remote.Balance
	updated.SyncStatus = models.SyncActive
	updated.SyncError = nil
	updated.LastSyncAt = now
	updated.UpdatedAt = now

	if err := o.writer.CommitAccountSync(ctx, models.AccountSyncCommit{
		Account:      &updated,
		Transactions: upserts,
	}); err != nil {
		return 0, fmt.Errorf("failed to commit sync: %w", err)
	}

	return newCount, nil
}

// browserCredential is the JSON shape browser-provider secrets are stored in.
type browserCredential struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// credentialFor decrypts and parses a connection's stored secret. Plaintext
// never leaves the orchestrator boundary.
func (o *Orchestrator) credentialFor(conn *models.Connection) (provider.Credential, error) {
	plaintext, err := o.encryptor.DecryptCredential(conn.EncryptedCredential)
	if err != nil {
		return provider.Credential{}, fmt.Errorf("failed to decrypt credential: %w", err)
	}

	cred := provider.Credential{ConnectionID: conn.ID}
	switch conn.Provider {
	case models.ProviderToken:
		cred.AccessToken = plaintext
	case models.ProviderBrowser:
		var bc browserCredential
		if err := json.Unmarshal([]byte(plaintext), &bc); err != nil {
			return provider.Credential{}, fmt.Errorf("stored browser credential is malformed: %w", err)
		}
		cred.Username = bc.Username
		cred.Password = bc.Password
	default:
		return provider.Credential{}, fmt.Errorf("unknown provider kind %q", conn.Provider)
	}
	return cred, nil
}

// BootstrapConnection discovers the accounts a freshly linked connection
// surfaces, creates the missing ones, and runs an initial sync of each.
// Re-linking an existing connection reuses the stored accounts, so it is
// idempotent at the account level.
func (o *Orchestrator) BootstrapConnection(ctx context.Context, conn *models.Connection) ([]*models.SyncResult, error) {
	ctx, span := syncTracer.Start(ctx, "sync.bootstrap",
		trace.WithAttributes(attribute.String("connection.id", conn.ID)))
	defer span.End()

	cred, err := o.credentialFor(conn)
	if err != nil {
		return nil, err
	}

	adapter, cleanup, err := o.adapters(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to build provider adapter: %w", err)
	}
	defer cleanup()

	pctx, cancel := context.WithTimeout(ctx, o.providerTimeout)
	defer cancel()

	provAccounts, err := adapter.FetchAccounts(pctx, cred)
	if err != nil {
		return nil, err
	}

	existing, err := o.accounts.ListByUserID(ctx, conn.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	byExternalID := make(map[string]*models.Account, len(existing))
	for _, account := range existing {
		if account.ConnectionID == conn.ID {
			byExternalID[account.ExternalID] = account
		}
	}

	now := time.Now()
	var accountIDs []string
	for _, remote := range provAccounts {
		account, ok := byExternalID[remote.ExternalID]
		if !ok {
			account = &models.Account{
				ID:           uuid.NewString(),
				ConnectionID: conn.ID,
				UserID:       conn.UserID,
				ExternalID:   remote.ExternalID,
				Name:         remote.Name,
				AccountType:  remote.Type,
				Currency:     remote.Currency,
				SyncStatus:   models.SyncActive,
				CreatedAt:    now,
			}
		}
		account.Balance = remote.Balance
		if _, err := o.accounts.Upsert(ctx, account); err != nil {
			return nil, fmt.Errorf("failed to store account %s: %w", remote.ExternalID, err)
		}
		accountIDs = append(accountIDs, account.ID)
	}

	log.Printf("User %s: connection %s surfaced %d accounts", conn.UserID, conn.ID, len(accountIDs))

	results := make([]*models.SyncResult, 0, len(accountIDs))
	for _, accountID := range accountIDs {
		result, err := o.SyncAccount(ctx, conn.UserID, accountID)
		if err != nil {
			result = &models.SyncResult{AccountID: accountID, Error: err.Error()}
		}
		results = append(results, result)
	}
	return results, nil
}

// SyncAllAccounts syncs every account of a user sequentially. Sequencing
// keeps one user's status writes ordered and stops two flows from driving
// the same connection's browser session. A failure on one account is caught
// locally and does not stop the loop.
func (o *Orchestrator) SyncAllAccounts(ctx context.Context, userID string) ([]*models.SyncResult, error) {
	accounts, err := o.accounts.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	results := make([]*models.SyncResult, 0, len(accounts))
	for _, account := range accounts {
		result, err := o.SyncAccount(ctx, userID, account.ID)
		if err != nil {
			result = &models.SyncResult{
				AccountID:   account.ID,
				AccountName: account.Name,
				Error:       err.Error(),
			}
		}
		results = append(results, result)
	}
	return results, nil
}
