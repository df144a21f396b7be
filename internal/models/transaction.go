package models

import "time"

// Transaction is a canonical financial movement. Its ID is the dedup key:
// writing a transaction whose ID already exists merges (overwrite-with-latest)
// instead of duplicating.
type Transaction struct {
	ID           string    `json:"id" firestore:"id"`
	AccountID    string    `json:"accountId" firestore:"accountId"`
	ConnectionID string    `json:"connectionId" firestore:"connectionId"`
	Date         time.Time `json:"date" firestore:"date"`
	Amount       float64   `json:"amount" firestore:"amount"`
	Description  string    `json:"description" firestore:"description"`
	Currency     string    `json:"currency" firestore:"currency"`
	ProviderTxID string    `json:"providerTxId" firestore:"providerTxId"`
	UpdatedAt    time.Time `json:"updatedAt" firestore:"updatedAt"`
}
