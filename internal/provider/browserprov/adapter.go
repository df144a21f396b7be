// Package browserprov implements the provider adapter for institutions that
// expose no API and must be driven through a browser session.
package browserprov

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"finsync/internal/browser"
	"finsync/internal/provider"
)

// Site describes the scripted flow for one institution. Selectors and
// extraction scripts are configuration so new institutions do not require
// code changes.
type Site struct {
	// Name is the provider identifier used in dedup keys.
	Name string
	// LoginURL is the institution's login page.
	LoginURL string
	// UsernameSelector / PasswordSelector / SubmitSelector drive the login form.
	UsernameSelector string
	PasswordSelector string
	SubmitSelector   string
	// LoggedInSelector appears only after login (and any second factor)
	// completes. Waiting on it is what gives a human time to type an OTP
	// into the live session page.
	LoggedInSelector string
	// AccountsURL and AccountsScript extract the account list. The script
	// must evaluate to a JSON string.
	AccountsURL    string
	AccountsScript string
	// TransactionsURLTemplate receives the account external id and the
	// from/to dates (YYYY-MM-DD); TransactionsScript must evaluate to a
	// JSON string.
	TransactionsURLTemplate string
	TransactionsScript      string
	// Currency is the statement currency the institution reports in.
	Currency string
}

// LiveURLSink publishes a live session URL so the user can complete a
// second factor. May be nil.
type LiveURLSink func(connectionID, liveURL string)

// Adapter implements provider.Adapter by driving a browser.Session through a
// login + export flow. One adapter instance serves one sync call: the session
// acquired on first use is held until Close so the whole sync shares a single
// logged-in browser.
type Adapter struct {
	manager  *browser.Manager
	site     Site
	progress provider.ProgressFunc
	liveURLs LiveURLSink

	mu      sync.Mutex
	session *browser.Session
	cred    provider.Credential
}

// NewAdapter creates a browser adapter for one site. progress and liveURLs
// may be nil.
func NewAdapter(manager *browser.Manager, site Site, progress provider.ProgressFunc, liveURLs LiveURLSink) *Adapter {
	if site.Name == "" {
		site.Name = "israel"
	}
	return &Adapter{manager: manager, site: site, progress: progress, liveURLs: liveURLs}
}

// Name returns the provider identifier used in dedup keys.
func (a *Adapter) Name() string { return a.site.Name }

// FetchAccounts logs in (reusing an existing session when one is already
// open for this sync) and extracts the account list.
func (a *Adapter) FetchAccounts(ctx context.Context, cred provider.Credential) ([]provider.Account, error) {
	session, err := a.ensureSession(ctx, cred)
	if err != nil {
		return nil, err
	}

	a.emit(provider.StageNavigating, cred.ConnectionID)

	var raw string
	err = session.Run(
		chromedp.Navigate(a.site.AccountsURL),
		chromedp.Evaluate(a.site.AccountsScript, &raw),
	)
	if err != nil {
		return nil, a.classify(err, "account extraction failed")
	}

	var rows []struct {
		ID      string  `json:"id"`
		Name    string  `json:"name"`
		Type    string  `json:"type"`
		Balance float64 `json:"balance"`
	}
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, provider.NewError(provider.Unknown, "account page returned unparseable data", err)
	}

	accounts := make([]provider.Account, 0, len(rows))
	for _, r := range rows {
		accounts = append(accounts, provider.Account{
			ExternalID: r.ID,
			Name:       r.Name,
			Type:       r.Type,
			Balance:    r.Balance,
			Currency:   a.site.Currency,
		})
	}
	return accounts, nil
}

// FetchTransactions navigates to the account statement and extracts rows for
// the requested window.
func (a *Adapter) FetchTransactions(ctx context.Context, cred provider.Credential, accountExternalID string, from, to time.Time) ([]provider.Transaction, error) {
	session, err := a.ensureSession(ctx, cred)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf(a.site.TransactionsURLTemplate,
		accountExternalID, from.Format("2006-01-02"), to.Format("2006-01-02"))

	a.emit(provider.StageParsingStatement, cred.ConnectionID)

	var raw string
	err = session.Run(
		chromedp.Navigate(url),
		chromedp.Evaluate(a.site.TransactionsScript, &raw),
	)
	if err != nil {
		return nil, a.classify(err, "statement extraction failed")
	}

	var rows []struct {
		ID          string  `json:"id"`
		Date        string  `json:"date"`
		Amount      float64 `json:"amount"`
		Description string  `json:"description"`
	}
	if err := json.Unmarshal([]byte(raw), &rows); err != nil {
		return nil, provider.NewError(provider.Unknown, "statement returned unparseable data", err)
	}

	txns := make([]provider.Transaction, 0, len(rows))
	for _, r := range rows {
		date, err := time.Parse("2006-01-02", r.Date)
		if err != nil {
			return nil, provider.NewError(provider.Unknown, fmt.Sprintf("statement row has bad date %q", r.Date), err)
		}
		txns = append(txns, provider.Transaction{
			ProviderTxID: r.ID,
			Date:         date,
			Amount:       r.Amount,
			Description:  r.Description,
			Currency:     a.site.Currency,
		})
	}
	return txns, nil
}

// ensureSession acquires the session and performs login on first use.
func (a *Adapter) ensureSession(ctx context.Context, cred provider.Credential) (*browser.Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.session != nil {
		return a.session, nil
	}

	session, err := a.manager.Acquire(ctx, cred.ConnectionID)
	if err != nil {
		return nil, provider.NewError(provider.Unknown, "failed to acquire browser session", err)
	}

	if err := a.login(session, cred); err != nil {
		session.Release()
		return nil, err
	}

	a.session = session
	a.cred = cred
	return session, nil
}

// login submits credentials and waits for the post-login marker. In
// remotecloud mode the live URL is published first so a human can complete a
// one-time code in the real page while the wait runs.
func (a *Adapter) login(session *browser.Session, cred provider.Credential) error {
	a.emit(provider.StageLoggingIn, cred.ConnectionID)

	err := session.Run(
		chromedp.Navigate(a.site.LoginURL),
		chromedp.WaitVisible(a.site.UsernameSelector),
		chromedp.SendKeys(a.site.UsernameSelector, cred.Username),
		chromedp.SendKeys(a.site.PasswordSelector, cred.Password),
		chromedp.Click(a.site.SubmitSelector),
	)
	if err != nil {
		return a.classify(err, "login form submission failed")
	}

	if url := session.LiveURL(); url != "" && a.liveURLs != nil {
		a.liveURLs(cred.ConnectionID, url)
		a.emit(provider.StageWaitingForOTP, cred.ConnectionID)
	}

	// The post-login marker only appears once credentials (and any second
	// factor) are accepted. The session's operation timeout bounds the wait.
	if err := session.Run(chromedp.WaitVisible(a.site.LoggedInSelector)); err != nil {
		if isTimeout(err) {
			// No marker within the budget and no navigation error: the
			// institution rejected the credentials or the second factor
			// never arrived.
			return provider.NewError(provider.AuthExpired, "login did not complete", err)
		}
		return a.classify(err, "login failed")
	}

	return nil
}

// Close releases the session held by this sync call. Safe without a session.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.session != nil {
		a.session.Release()
		a.session = nil
	}
}

// classify maps a browser failure onto the provider error taxonomy.
func (a *Adapter) classify(err error, msg string) error {
	if isTimeout(err) {
		return provider.NewError(provider.Timeout, msg, err)
	}
	return provider.NewError(provider.Unknown, msg, err)
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

func (a *Adapter) emit(stage provider.Stage, connectionID string) {
	if a.progress != nil {
		a.progress(provider.Progress{Stage: stage, ConnectionID: connectionID, At: time.Now()})
	}
}
