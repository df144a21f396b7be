package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"finsync/internal/models"
)

// ConnectionRepository implements models.ConnectionRepository on Firestore.
type ConnectionRepository struct {
	client *firestore.Client
}

// NewConnectionRepository creates a new Firestore connection repository.
func NewConnectionRepository(client *firestore.Client) *ConnectionRepository {
	return &ConnectionRepository{client: client}
}

// GetByID retrieves a connection by its document ID.
func (r *ConnectionRepository) GetByID(ctx context.Context, userID, id string) (*models.Connection, error) {
	snap, err := connectionDoc(r.client, userID, id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, models.ErrConnectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get connection: %w", err)
	}

	var conn models.Connection
	if err := snap.DataTo(&conn); err != nil {
		return nil, fmt.Errorf("failed to decode connection: %w", err)
	}
	conn.ID = snap.Ref.ID
	return &conn, nil
}

// FindOrCreate looks up an existing connection by (provider, externalItemID)
// under the user. Re-linking the same item replaces the stored credential and
// reactivates the connection instead of creating a duplicate.
func (r *ConnectionRepository) FindOrCreate(ctx context.Context, conn *models.Connection) (*models.Connection, error) {
	query := userDoc(r.client, conn.UserID).Collection(connectionsCollection).
		Where("provider", "==", string(conn.Provider)).
		Where("externalItemId", "==", conn.ExternalItemID).
		Limit(1)

	iter := query.Documents(ctx)
	defer iter.Stop()

	snap, err := iter.Next()
	if err != nil && err != iterator.Done {
		return nil, fmt.Errorf("failed to look up connection: %w", err)
	}

	now := time.Now()

	if err == nil {
		var existing models.Connection
		if err := snap.DataTo(&existing); err != nil {
			return nil, fmt.Errorf("failed to decode connection: %w", err)
		}
		existing.ID = snap.Ref.ID
		existing.EncryptedCredential = conn.EncryptedCredential
		existing.Status = models.ConnectionActive
		existing.UpdatedAt = now

		if _, err := snap.Ref.Update(ctx, []firestore.Update{
			{Path: "encryptedCredential", Value: existing.EncryptedCredential},
			{Path: "status", Value: string(models.ConnectionActive)},
			{Path: "updatedAt", Value: now},
		}); err != nil {
			return nil, fmt.Errorf("failed to refresh connection credential: %w", err)
		}
		return &existing, nil
	}

	created := *conn
	if created.ID == "" {
		created.ID = uuid.NewString()
	}
	created.Status = models.ConnectionActive
	created.CreatedAt = now
	created.UpdatedAt = now

	if _, err := connectionDoc(r.client, created.UserID, created.ID).Set(ctx, &created); err != nil {
		return nil, fmt.Errorf("failed to create connection: %w", err)
	}
	return &created, nil
}

// UpdateStatus sets a connection's status.
func (r *ConnectionRepository) UpdateStatus(ctx context.Context, userID, id string, connStatus models.ConnectionStatus) error {
	_, err := connectionDoc(r.client, userID, id).Update(ctx, []firestore.Update{
		{Path: "status", Value: string(connStatus)},
		{Path: "updatedAt", Value: time.Now()},
	})
	if status.Code(err) == codes.NotFound {
		return models.ErrConnectionNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update connection status: %w", err)
	}
	return nil
}
