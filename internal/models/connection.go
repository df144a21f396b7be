package models

import "time"

// ProviderKind identifies how a connection's data is fetched.
type ProviderKind string

const (
	// ProviderToken is a programmatic aggregator API driven by an access token.
	ProviderToken ProviderKind = "token"
	// ProviderBrowser is a bank reachable only through browser automation.
	ProviderBrowser ProviderKind = "browser"
)

// ConnectionStatus is the lifecycle state of a connection.
type ConnectionStatus string

const (
	ConnectionActive       ConnectionStatus = "active"
	ConnectionAuthRequired ConnectionStatus = "authRequired"
)

// Connection represents a link between a user and one external financial
// institution instance. One Connection can surface multiple Accounts
// (e.g., checking + credit card from the same bank).
type Connection struct {
	ID                  string           `json:"id" firestore:"id"`
	UserID              string           `json:"userId" firestore:"userId"`
	Provider            ProviderKind     `json:"provider" firestore:"provider"`
	EncryptedCredential string           `json:"-" firestore:"encryptedCredential"`
	ExternalItemID      string           `json:"externalItemId" firestore:"externalItemId"`
	InstitutionName     string           `json:"institutionName" firestore:"institutionName"`
	Status              ConnectionStatus `json:"status" firestore:"status"`
	CreatedAt           time.Time        `json:"createdAt" firestore:"createdAt"`
	UpdatedAt           time.Time        `json:"updatedAt" firestore:"updatedAt"`
}
