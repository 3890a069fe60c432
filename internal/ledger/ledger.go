// Package ledger stores per-user credit balances and the set of webhook
// events that have already been applied.
package ledger

import (
	"context"
	"fmt"
	"strings"
)

// Ledger maps a normalized email to an integer credit balance.
type Ledger interface {
	// Get returns 0 for unknown emails.
	Get(ctx context.Context, email string) (int, error)
	// Add increments the balance by amount (which may be negative) and
	// returns the new balance.
	Add(ctx context.Context, email string, amount int) (int, error)
	Set(ctx context.Context, email string, amount int) error
}

// Tracker records processed webhook event ids.
type Tracker interface {
	Has(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
	// Claim marks eventID and reports whether this call was the one that
	// marked it. Of concurrent claims for one id exactly one returns true.
	Claim(ctx context.Context, eventID string) (bool, error)
}

// Store is a backend that provides both.
type Store interface {
	Ledger
	Tracker
	Close() error
}

// NormalizeEmail is the key every backend stores balances under.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Options selects and configures a backend.
type Options struct {
	Backend string // file, sqlite or postgres
	DataDir string // file backend
	DSN     string // sql backends
}

// Open returns the configured backend.
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "", "file":
		return NewFileStore(opts.DataDir)
	case "sqlite":
		return OpenSQL("sqlite3", opts.DSN)
	case "postgres":
		return OpenSQL("postgres", opts.DSN)
	default:
		return nil, fmt.Errorf("unknown ledger backend: %s", opts.Backend)
	}
}
