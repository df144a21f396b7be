package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"finsync/internal/models"
)

// AccountRepository implements models.AccountRepository on Firestore.
type AccountRepository struct {
	client *firestore.Client
}

// NewAccountRepository creates a new Firestore account repository.
func NewAccountRepository(client *firestore.Client) *AccountRepository {
	return &AccountRepository{client: client}
}

// GetByID retrieves an account by its document ID.
func (r *AccountRepository) GetByID(ctx context.Context, userID, id string) (*models.Account, error) {
	snap, err := accountDoc(r.client, userID, id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, models.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	var account models.Account
	if err := snap.DataTo(&account); err != nil {
		return nil, fmt.Errorf("failed to decode account: %w", err)
	}
	account.ID = snap.Ref.ID
	return &account, nil
}

// ListByUserID retrieves all accounts of a user.
func (r *AccountRepository) ListByUserID(ctx context.Context, userID string) ([]*models.Account, error) {
	iter := userDoc(r.client, userID).Collection(accountsCollection).Documents(ctx)
	defer iter.Stop()

	var accounts []*models.Account
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list accounts: %w", err)
		}

		var account models.Account
		if err := snap.DataTo(&account); err != nil {
			return nil, fmt.Errorf("failed to decode account: %w", err)
		}
		account.ID = snap.Ref.ID
		accounts = append(accounts, &account)
	}
	return accounts, nil
}

// Upsert creates or replaces an account document.
func (r *AccountRepository) Upsert(ctx context.Context, account *models.Account) (*models.Account, error) {
	now := time.Now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now

	if _, err := accountDoc(r.client, account.UserID, account.ID).Set(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to upsert account: %w", err)
	}
	return account, nil
}

// UpdateSyncStatus writes only the sync status fields, leaving balances and
// timestamps from the last completed sync untouched.
func (r *AccountRepository) UpdateSyncStatus(ctx context.Context, userID, id string, syncStatus models.SyncStatus, syncErr *string) error {
	updates := []firestore.Update{
		{Path: "syncStatus", Value: string(syncStatus)},
		{Path: "syncError", Value: syncErr},
		{Path: "updatedAt", Value: time.Now()},
	}

	_, err := accountDoc(r.client, userID, id).Update(ctx, updates)
	if status.Code(err) == codes.NotFound {
		return models.ErrAccountNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	return nil
}
