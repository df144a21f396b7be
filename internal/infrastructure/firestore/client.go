// Package firestore implements the repository interfaces on Google Cloud
// Firestore. Documents are keyed per user:
//
//	users/{userID}
//	users/{userID}/connections/{connectionID}
//	users/{userID}/accounts/{accountID}
//	users/{userID}/accounts/{accountID}/transactions/{transactionID}
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"google.golang.org/api/option"
)

const (
	usersCollection        = "users"
	connectionsCollection  = "connections"
	accountsCollection     = "accounts"
	transactionsCollection = "transactions"
)

// NewClient initializes a Firebase app and returns its Firestore client.
// credentialsFile may be empty, in which case application default
// credentials are used (the normal case on Cloud Run).
func NewClient(ctx context.Context, projectID, credentialsFile string) (*firestore.Client, error) {
	conf := &firebase.Config{ProjectID: projectID}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firestore client: %w", err)
	}

	return client, nil
}

func userDoc(client *firestore.Client, userID string) *firestore.DocumentRef {
	return client.Collection(usersCollection).Doc(userID)
}

func accountDoc(client *firestore.Client, userID, accountID string) *firestore.DocumentRef {
	return userDoc(client, userID).Collection(accountsCollection).Doc(accountID)
}

func connectionDoc(client *firestore.Client, userID, connectionID string) *firestore.DocumentRef {
	return userDoc(client, userID).Collection(connectionsCollection).Doc(connectionID)
}
