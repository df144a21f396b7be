package sync

import (
	"math"
	"strconv"
	"strings"
	"time"

	"finsync/internal/models"
	"finsync/internal/provider"
)

// maxDescriptionKeyLen bounds the description component of a derived key,
// counted in runes. The key doubles as a stored document ID, which must be
// valid UTF-8, so the bound can never cut a multibyte character in half.
const maxDescriptionKeyLen = 40

// DedupKey derives the stable transaction identity. When the provider
// supplies a globally unique transaction id, the key is provider-scoped
// around it; otherwise it is derived from the normalized date, amount and
// description.
//
// Known limitation, kept on purpose: two genuinely distinct transactions
// sharing date+amount+description collide under the derived key and merge
// into one stored transaction. Changing this needs a product decision, not
// a code fix.
func DedupKey(providerName, providerTxID string, date time.Time, amount float64, description string) string {
	if providerTxID != "" {
		return providerName + "_" + providerTxID
	}
	return providerName + "_" +
		date.Format("2006-01-02") + "_" +
		normalizeAmount(amount) + "_" +
		normalizeDescription(description)
}

// normalizeAmount renders the unsigned amount without trailing zeros, so a
// debit and its textual representation key identically across syncs.
func normalizeAmount(amount float64) string {
	return strconv.FormatFloat(math.Abs(amount), 'f', -1, 64)
}

// normalizeDescription lower-cases the description, strips path-unsafe
// characters and truncates to a bounded number of runes.
func normalizeDescription(description string) string {
	lowered := strings.ToLower(strings.TrimSpace(description))

	var b strings.Builder
	b.Grow(len(lowered))
	kept := 0
	for _, r := range lowered {
		if kept == maxDescriptionKeyLen {
			break
		}
		switch {
		case r == '/' || r == '\\' || r == ':' || r == '*' || r == '?' ||
			r == '"' || r == '<' || r == '>' || r == '|' || r == '#' || r == '%':
			// path-unsafe, stripped
		case r == ' ' || r == '\t':
			// whitespace, stripped
		default:
			b.WriteRune(r)
			kept++
		}
	}
	return b.String()
}

// Merge maps freshly fetched provider transactions onto stored transactions
// keyed by their dedup identity. Writing an existing identity overwrites
// with the latest data instead of duplicating, which makes re-syncing an
// overlapping date window idempotent.
//
// existingIDs is the set of identities already stored for the account over
// the fetched window; newCount counts identities absent from it.
func Merge(fetched []provider.Transaction, providerName, accountID, connectionID string, existingIDs map[string]bool, now time.Time) (upserts []*models.Transaction, newCount int) {
	seen := make(map[string]int, len(fetched))

	for _, txn := range fetched {
		id := DedupKey(providerName, txn.ProviderTxID, txn.Date, txn.Amount, txn.Description)

		merged := &models.Transaction{
			ID:           id,
			AccountID:    accountID,
			ConnectionID: connectionID,
			Date:         txn.Date,
			Amount:       txn.Amount,
			Description:  txn.Description,
			Currency:     txn.Currency,
			ProviderTxID: txn.ProviderTxID,
			UpdatedAt:    now,
		}

		// Within one batch the latest occurrence of an identity wins.
		if idx, ok := seen[id]; ok {
			upserts[idx] = merged
			continue
		}

		seen[id] = len(upserts)
		upserts = append(upserts, merged)
		if !existingIDs[id] {
			newCount++
		}
	}

	return upserts, newCount
}
