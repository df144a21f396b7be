package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"finsync/internal/models"
)

// UserRepository implements models.UserRepository on Firestore.
type UserRepository struct {
	client *firestore.Client
}

// NewUserRepository creates a new Firestore user repository.
func NewUserRepository(client *firestore.Client) *UserRepository {
	return &UserRepository{client: client}
}

// GetByID retrieves a user by its document ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	snap, err := userDoc(r.client, id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	var user models.User
	if err := snap.DataTo(&user); err != nil {
		return nil, fmt.Errorf("failed to decode user: %w", err)
	}
	user.ID = snap.Ref.ID
	return &user, nil
}

// ListIDs returns the IDs of every user document. The sweep iterates this
// list, so only refs are fetched, never the documents.
func (r *UserRepository) ListIDs(ctx context.Context) ([]string, error) {
	iter := r.client.Collection(usersCollection).DocumentRefs(ctx)

	var ids []string
	for {
		ref, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list users: %w", err)
		}
		ids = append(ids, ref.ID)
	}
	return ids, nil
}
