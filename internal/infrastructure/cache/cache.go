// Package cache provides the small keyed cache the sync engine uses for
// transient values: live browser-session URLs and the last sweep summary.
// Two backends implement the same port; the deployment picks one at startup
// (Redis when an address is configured, in-process memory otherwise).
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a key is absent or expired.
var ErrNotFound = errors.New("cache: key not found")

// Port is the cache interface injected into the engine.
type Port interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Name() string
}

// SessionURLKey is the key under which a connection's live browser-session
// URL is published.
func SessionURLKey(connectionID string) string {
	return "session-url:" + connectionID
}

// SweepSummaryKey holds the JSON of the most recent sweep summary.
const SweepSummaryKey = "sweep:last-summary"
