package token

import (
	"context"
	"fmt"
	"time"

	"finsync/internal/provider"
)

// Adapter implements provider.Adapter for the programmatic aggregator API.
type Adapter struct {
	client   *Client
	name     string
	progress provider.ProgressFunc
}

// NewAdapter creates a token adapter. progress may be nil.
func NewAdapter(client *Client, name string, progress provider.ProgressFunc) *Adapter {
	if name == "" {
		name = "aggregator"
	}
	return &Adapter{client: client, name: name, progress: progress}
}

// Name returns the provider identifier used in dedup keys.
func (a *Adapter) Name() string { return a.name }

// FetchAccounts fetches and normalizes all accounts for the credential.
func (a *Adapter) FetchAccounts(ctx context.Context, cred provider.Credential) ([]provider.Account, error) {
	a.emit(provider.StageFetchingAccounts, cred.ConnectionID)

	payloads, err := a.client.GetAccounts(ctx, cred.AccessToken)
	if err != nil {
		return nil, err
	}

	accounts := make([]provider.Account, 0, len(payloads))
	for _, p := range payloads {
		balance, err := p.parseBalance()
		if err != nil {
			return nil, provider.NewError(provider.Unknown, fmt.Sprintf("account %s: %v", p.ID, err), err)
		}
		accounts = append(accounts, provider.Account{
			ExternalID: p.ID,
			Name:       p.Name,
			Type:       p.Type,
			Balance:    balance,
			Currency:   p.Currency,
		})
	}
	return accounts, nil
}

// FetchTransactions fetches and normalizes transactions for one account.
func (a *Adapter) FetchTransactions(ctx context.Context, cred provider.Credential, accountExternalID string, from, to time.Time) ([]provider.Transaction, error) {
	a.emit(provider.StageFetchingTxns, cred.ConnectionID)

	payloads, err := a.client.GetTransactions(ctx, cred.AccessToken, accountExternalID, from, to)
	if err != nil {
		return nil, err
	}

	txns := make([]provider.Transaction, 0, len(payloads))
	for _, p := range payloads {
		date, err := time.Parse("2006-01-02", p.Date)
		if err != nil {
			return nil, provider.NewError(provider.Unknown, fmt.Sprintf("transaction %s: bad date %q", p.ID, p.Date), err)
		}
		txns = append(txns, provider.Transaction{
			ProviderTxID: p.ID,
			Date:         date,
			Amount:       p.Amount,
			Description:  p.Description,
			Currency:     p.Currency,
		})
	}
	return txns, nil
}

func (a *Adapter) emit(stage provider.Stage, connectionID string) {
	if a.progress != nil {
		a.progress(provider.Progress{Stage: stage, ConnectionID: connectionID, At: time.Now()})
	}
}
