package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// SQLStore backs the ledger with sqlite or postgres. Every mutation is a
// single upsert statement, so concurrent writers cannot lose updates.
type SQLStore struct {
	db     *sql.DB
	driver string
}

const schema = `
CREATE TABLE IF NOT EXISTS credit_balances (
	email TEXT PRIMARY KEY,
	credits INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS processed_events (
	event_id TEXT PRIMARY KEY,
	processed_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);`

// OpenSQL opens driver ("sqlite3" or "postgres") at dsn and creates the
// tables if they do not exist.
func OpenSQL(driver, dsn string) (*SQLStore, error) {
	if dsn == "" {
		return nil, errors.New("ledger dsn cannot be empty")
	}
	if driver == "sqlite3" && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create ledger dir: %w", err)
		}
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger DB: %w", err)
	}
	if driver == "sqlite3" {
		db.SetMaxOpenConns(1)
	}
	s := &SQLStore{db: db, driver: driver}
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create ledger tables: %w", err)
		}
	}
	return s, nil
}

func (s *SQLStore) Get(ctx context.Context, email string) (int, error) {
	var credits int
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT credits FROM credit_balances WHERE email = ?"),
		NormalizeEmail(email),
	).Scan(&credits)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read credits: %w", err)
	}
	return credits, nil
}

func (s *SQLStore) Add(ctx context.Context, email string, amount int) (int, error) {
	var credits int
	err := s.db.QueryRowContext(ctx, s.rebind(`
		INSERT INTO credit_balances (email, credits) VALUES (?, ?)
		ON CONFLICT (email) DO UPDATE SET credits = credit_balances.credits + excluded.credits
		RETURNING credits`),
		NormalizeEmail(email), amount,
	).Scan(&credits)
	if err != nil {
		return 0, fmt.Errorf("failed to add credits: %w", err)
	}
	return credits, nil
}

func (s *SQLStore) Set(ctx context.Context, email string, amount int) error {
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO credit_balances (email, credits) VALUES (?, ?)
		ON CONFLICT (email) DO UPDATE SET credits = excluded.credits`),
		NormalizeEmail(email), amount,
	)
	if err != nil {
		return fmt.Errorf("failed to set credits: %w", err)
	}
	return nil
}

func (s *SQLStore) Has(ctx context.Context, eventID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(1) FROM processed_events WHERE event_id = ?"),
		eventID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check event: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) Mark(ctx context.Context, eventID string) error {
	_, err := s.Claim(ctx, eventID)
	return err
}

func (s *SQLStore) Claim(ctx context.Context, eventID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		s.rebind("INSERT INTO processed_events (event_id) VALUES (?) ON CONFLICT (event_id) DO NOTHING"),
		eventID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to mark event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to mark event: %w", err)
	}
	return n == 1, nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres.
func (s *SQLStore) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
