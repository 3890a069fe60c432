// Package audit keeps a sqlite trail of model calls and webhook deliveries.
package audit

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	_ "github.com/mattn/go-sqlite3"
)

// Entry kinds.
const (
	KindAnalyze  = "analyze"
	KindEmail    = "email"
	KindQuestion = "question"
	KindWebhook  = "webhook"
)

// maxField bounds stored input/output so a large contract does not bloat the log.
const maxField = 4000

type Auditor struct {
	db *sql.DB
}

type AuditEntry struct {
	ID        int64     `json:"id"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Nop returns an auditor that records nothing.
func Nop() *Auditor {
	return &Auditor{}
}

// Open opens (creating if needed) the audit database at path.
func Open(path string) (*Auditor, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create audit dir: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit DB: %w", err)
	}
	db.SetMaxOpenConns(1)
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		subject TEXT,
		input TEXT,
		output TEXT,
		error TEXT,
		timestamp DATETIME DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create audit table: %w", err)
	}
	return &Auditor{db: db}, nil
}

// Log records one entry. Failures are logged and otherwise ignored.
func (a *Auditor) Log(kind, subject, input, output string, err error) {
	if a == nil || a.db == nil {
		return
	}
	var errStr string
	if err != nil {
		errStr = err.Error()
	}
	_, err = a.db.Exec(
		"INSERT INTO audit_log (kind, subject, input, output, error) VALUES (?, ?, ?, ?, ?)",
		kind, subject, clip(input), clip(output), errStr,
	)
	if err != nil {
		slog.Warn("failed to write audit log", "kind", kind, "error", err)
	}
}

// Recent returns up to limit entries, newest first. A non-empty kind
// restricts the result to that kind.
func (a *Auditor) Recent(kind string, limit int) ([]AuditEntry, error) {
	if a == nil || a.db == nil {
		return nil, nil
	}
	rows, err := a.db.Query(`SELECT id, kind, subject, input, output, error, timestamp
		FROM audit_log WHERE (? = '' OR kind = ?) ORDER BY id DESC LIMIT ?`, kind, kind, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		var subject, input, output, failed sql.NullString
		if err := rows.Scan(&e.ID, &e.Kind, &subject, &input, &output, &failed, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Subject, e.Input, e.Output, e.Error = subject.String, input.String, output.String, failed.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (a *Auditor) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// clip cuts s to at most maxField bytes on a rune boundary.
func clip(s string) string {
	if len(s) <= maxField {
		return s
	}
	cut := maxField
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
