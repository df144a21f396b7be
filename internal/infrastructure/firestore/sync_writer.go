package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"

	"finsync/internal/models"
)

// Firestore caps one batch at 500 writes.
const batchWriteLimit = 500

// SyncWriter commits a finished account sync as Firestore batches.
type SyncWriter struct {
	client *firestore.Client
}

// NewSyncWriter creates a new Firestore sync writer.
func NewSyncWriter(client *firestore.Client) *SyncWriter {
	return &SyncWriter{client: client}
}

// CommitAccountSync writes the merged transactions and then the account's new
// balance and terminal status. Transactions that exceed the 500-write batch
// cap are split across batches; the account document always rides in the
// final batch, so a failure partway through leaves the account in syncing
// (and the orchestrator's cleanup marks it errored) rather than active with
// half its transactions missing.
func (w *SyncWriter) CommitAccountSync(ctx context.Context, commit models.AccountSyncCommit) error {
	account := commit.Account
	txnCollection := accountDoc(w.client, account.UserID, account.ID).Collection(transactionsCollection)

	batch := w.client.Batch()
	writes := 0

	flush := func() error {
		if writes == 0 {
			return nil
		}
		if _, err := batch.Commit(ctx); err != nil {
			return fmt.Errorf("failed to commit sync batch: %w", err)
		}
		batch = w.client.Batch()
		writes = 0
		return nil
	}

	for _, txn := range commit.Transactions {
		// Room is reserved for the account write in the last batch.
		if writes >= batchWriteLimit-1 {
			if err := flush(); err != nil {
				return err
			}
		}
		batch.Set(txnCollection.Doc(txn.ID), txn)
		writes++
	}

	batch.Set(accountDoc(w.client, account.UserID, account.ID), account)
	writes++

	return flush()
}
