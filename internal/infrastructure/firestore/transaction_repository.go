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

// TransactionRepository implements models.TransactionRepository on Firestore.
type TransactionRepository struct {
	client *firestore.Client
}

// NewTransactionRepository creates a new Firestore transaction repository.
func NewTransactionRepository(client *firestore.Client) *TransactionRepository {
	return &TransactionRepository{client: client}
}

// ListByAccountID retrieves an account's transactions within [from, to].
func (r *TransactionRepository) ListByAccountID(ctx context.Context, userID, accountID string, from, to time.Time) ([]*models.Transaction, error) {
	query := accountDoc(r.client, userID, accountID).Collection(transactionsCollection).
		Where("date", ">=", from).
		Where("date", "<=", to).
		OrderBy("date", firestore.Desc)

	iter := query.Documents(ctx)
	defer iter.Stop()

	var transactions []*models.Transaction
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list transactions: %w", err)
		}

		var txn models.Transaction
		if err := snap.DataTo(&txn); err != nil {
			return nil, fmt.Errorf("failed to decode transaction: %w", err)
		}
		txn.ID = snap.Ref.ID
		transactions = append(transactions, &txn)
	}
	return transactions, nil
}

// GetByID retrieves a single transaction.
func (r *TransactionRepository) GetByID(ctx context.Context, userID, accountID, id string) (*models.Transaction, error) {
	snap, err := accountDoc(r.client, userID, accountID).Collection(transactionsCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, models.ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	var txn models.Transaction
	if err := snap.DataTo(&txn); err != nil {
		return nil, fmt.Errorf("failed to decode transaction: %w", err)
	}
	txn.ID = snap.Ref.ID
	return &txn, nil
}
