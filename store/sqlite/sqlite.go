/*
Package sqlite persists card accounts for the HTTP simulator.

PURPOSE:
  The engine itself is stateless between hook invocations; the host owns
  all durable state. This package is that host-side state for the local
  server: accounts with their parameters, the append-only posting
  journal, published notifications, and the pinned schedule expressions.

APPEND-ONLY ENFORCEMENT:
  The journal is append-only:
  - No UPDATE statements on the journal table
  - No DELETE statements on the journal table
  - Corrections happen as further postings, exactly as on the real ledger

KEY TABLES:
  accounts:      account id, opening instant, simulated clock
  parameters:    the account's declared parameter values
  journal:       immutable record of every committed posting
  notifications: statement-data and interest-free-expiry publications
  schedules:     one row per event, overwritten as hooks reschedule

WAL MODE:
  SQLite is opened with WAL so the read endpoints never block a commit.

SEE ALSO:
  - vault/sim.go: the in-memory account state rebuilt from these tables
  - api: the HTTP layer reading and writing through this store
*/
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/corebank/card-engine/ledger"
	"github.com/corebank/card-engine/vault"
)

// Store persists simulator account state in SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New opens (and migrates) a store at the given path. Use ":memory:" for
// an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: :memory: databases exist per connection, and the
	// store serializes access through its own mutex anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		created_at TEXT NOT NULL,
		clock TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS parameters (
		account_id TEXT NOT NULL REFERENCES accounts(id),
		name TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (account_id, name)
	);

	-- Append-only posting journal.
	CREATE TABLE IF NOT EXISTS journal (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		value_at TEXT NOT NULL,
		amount TEXT NOT NULL,
		denomination TEXT NOT NULL,
		asset TEXT NOT NULL,
		phase TEXT NOT NULL,
		debit_account TEXT NOT NULL,
		debit_address TEXT NOT NULL,
		credit_account TEXT NOT NULL,
		credit_address TEXT NOT NULL,
		details_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_journal_account
		ON journal(account_id, seq);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		type TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		published_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_account
		ON notifications(account_id, type);

	-- Latest pinned expression per (account, event).
	CREATE TABLE IF NOT EXISTS schedules (
		account_id TEXT NOT NULL REFERENCES accounts(id),
		event TEXT NOT NULL,
		expr_json TEXT NOT NULL,
		skip INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (account_id, event)
	);

	-- Last execution instant per (account, event), for rebuilds.
	CREATE TABLE IF NOT EXISTS executions (
		account_id TEXT NOT NULL REFERENCES accounts(id),
		event TEXT NOT NULL,
		executed_at TEXT NOT NULL,
		PRIMARY KEY (account_id, event)
	);

	-- Flag apply/remove history, replayed on rebuild.
	CREATE TABLE IF NOT EXISTS flag_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		account_id TEXT NOT NULL REFERENCES accounts(id),
		name TEXT NOT NULL,
		applied INTEGER NOT NULL,
		at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountRecord is the durable identity of a simulated account.
type AccountRecord struct {
	ID        string
	CreatedAt time.Time
	Clock     time.Time
}

// CreateAccount records a new account and its parameters atomically.
func (s *Store) CreateAccount(id string, createdAt time.Time, parameters map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := createdAt.UTC().Format(time.RFC3339Nano)
	if _, err := tx.Exec(
		`INSERT INTO accounts (id, created_at, clock) VALUES (?, ?, ?)`,
		id, ts, ts,
	); err != nil {
		return fmt.Errorf("insert account %s: %w", id, err)
	}
	for name, value := range parameters {
		if _, err := tx.Exec(
			`INSERT INTO parameters (account_id, name, value) VALUES (?, ?, ?)`,
			id, name, value,
		); err != nil {
			return fmt.Errorf("insert parameter %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// GetAccount loads one account record.
func (s *Store) GetAccount(id string) (AccountRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec AccountRecord
	var createdAt, clock string
	err := s.db.QueryRow(
		`SELECT id, created_at, clock FROM accounts WHERE id = ?`, id,
	).Scan(&rec.ID, &createdAt, &clock)
	if err != nil {
		return AccountRecord{}, err
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return AccountRecord{}, err
	}
	if rec.Clock, err = time.Parse(time.RFC3339Nano, clock); err != nil {
		return AccountRecord{}, err
	}
	return rec, nil
}

// ListAccounts returns every known account id.
func (s *Store) ListAccounts() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT id FROM accounts ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SetClock advances the stored simulated clock.
func (s *Store) SetClock(id string, clock time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`UPDATE accounts SET clock = ? WHERE id = ?`,
		clock.UTC().Format(time.RFC3339Nano), id,
	)
	return err
}

// Parameters loads the account's parameter values.
func (s *Store) Parameters(id string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT name, value FROM parameters WHERE account_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}

// SetParameter overwrites one parameter value.
func (s *Store) SetParameter(id, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO parameters (account_id, name, value) VALUES (?, ?, ?)
		 ON CONFLICT (account_id, name) DO UPDATE SET value = excluded.value`,
		id, name, value,
	)
	return err
}

// =============================================================================
// JOURNAL
// =============================================================================

// JournalEntry is one committed posting with its value instant.
type JournalEntry struct {
	ValueAt time.Time
	Posting ledger.Posting
}

// AppendPostings appends committed postings to the journal. Append-only:
// there is deliberately no update or delete counterpart.
func (s *Store) AppendPostings(accountID string, valueAt time.Time, postings []ledger.Posting) error {
	if len(postings) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO journal (
			account_id, value_at, amount, denomination, asset, phase,
			debit_account, debit_address, credit_account, credit_address, details_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	ts := valueAt.UTC().Format(time.RFC3339Nano)
	for _, p := range postings {
		details, err := json.Marshal(p.Details)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(
			accountID, ts, p.Amount.String(), p.Denomination, p.Asset, string(p.Phase),
			p.DebitAccount, p.DebitAddress, p.CreditAccount, p.CreditAddress, string(details),
		); err != nil {
			return fmt.Errorf("append posting: %w", err)
		}
	}
	return tx.Commit()
}

// Journal returns the account's postings in commit order.
func (s *Store) Journal(accountID string) ([]JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT value_at, amount, denomination, asset, phase,
		       debit_account, debit_address, credit_account, credit_address, details_json
		FROM journal WHERE account_id = ? ORDER BY seq`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var entry JournalEntry
		var valueAt, amount, phase, details string
		if err := rows.Scan(
			&valueAt, &amount, &entry.Posting.Denomination, &entry.Posting.Asset, &phase,
			&entry.Posting.DebitAccount, &entry.Posting.DebitAddress,
			&entry.Posting.CreditAccount, &entry.Posting.CreditAddress, &details,
		); err != nil {
			return nil, err
		}
		if entry.ValueAt, err = time.Parse(time.RFC3339Nano, valueAt); err != nil {
			return nil, err
		}
		if entry.Posting.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		entry.Posting.Phase = ledger.Phase(phase)
		if details != "" && details != "null" {
			if err := json.Unmarshal([]byte(details), &entry.Posting.Details); err != nil {
				return nil, err
			}
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// =============================================================================
// NOTIFICATIONS AND SCHEDULES
// =============================================================================

// SaveNotifications records published notifications.
func (s *Store) SaveNotifications(accountID string, at time.Time, ns []vault.Notification) error {
	if len(ns) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	ts := at.UTC().Format(time.RFC3339Nano)
	for _, n := range ns {
		payload, err := json.Marshal(n.Payload)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(
			`INSERT INTO notifications (id, account_id, type, payload_json, published_at)
			 VALUES (?, ?, ?, ?, ?)`,
			n.ID, accountID, n.Type, string(payload), ts,
		); err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
	}
	return tx.Commit()
}

// Notifications returns the account's notifications, optionally filtered
// by type ("" for all), in publication order.
func (s *Store) Notifications(accountID, notifType string) ([]vault.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, type, payload_json FROM notifications WHERE account_id = ?`
	args := []any{accountID}
	if notifType != "" {
		query += ` AND type = ?`
		args = append(args, notifType)
	}
	query += ` ORDER BY published_at, id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []vault.Notification
	for rows.Next() {
		var n vault.Notification
		var payload string
		if err := rows.Scan(&n.ID, &n.Type, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &n.Payload); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// SaveScheduleUpdates upserts the latest pinned expression per event.
func (s *Store) SaveScheduleUpdates(accountID string, updates []vault.ScheduleUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, u := range updates {
		expr, err := json.Marshal(u.Expr)
		if err != nil {
			return err
		}
		skip := 0
		if u.Skip {
			skip = 1
		}
		if _, err := tx.Exec(
			`INSERT INTO schedules (account_id, event, expr_json, skip) VALUES (?, ?, ?, ?)
			 ON CONFLICT (account_id, event) DO UPDATE SET expr_json = excluded.expr_json, skip = excluded.skip`,
			accountID, u.Event, string(expr), skip,
		); err != nil {
			return fmt.Errorf("upsert schedule %s: %w", u.Event, err)
		}
	}
	return tx.Commit()
}

// SaveExecution upserts the last-execution instant for a scheduled event.
func (s *Store) SaveExecution(accountID, event string, executedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(
		`INSERT INTO executions (account_id, event, executed_at) VALUES (?, ?, ?)
		 ON CONFLICT (account_id, event) DO UPDATE SET executed_at = excluded.executed_at`,
		accountID, event, executedAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// Executions returns the last-execution instant per event.
func (s *Store) Executions(accountID string) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT event, executed_at FROM executions WHERE account_id = ?`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var event, executedAt string
		if err := rows.Scan(&event, &executedAt); err != nil {
			return nil, err
		}
		at, err := time.Parse(time.RFC3339Nano, executedAt)
		if err != nil {
			return nil, err
		}
		out[event] = at
	}
	return out, rows.Err()
}

// FlagEvent is one apply/remove on a named account flag.
type FlagEvent struct {
	Name    string
	Applied bool
	At      time.Time
}

// AppendFlagEvent records a flag apply or remove.
func (s *Store) AppendFlagEvent(accountID, name string, at time.Time, applied bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	appliedInt := 0
	if applied {
		appliedInt = 1
	}
	_, err := s.db.Exec(
		`INSERT INTO flag_events (account_id, name, applied, at) VALUES (?, ?, ?, ?)`,
		accountID, name, appliedInt, at.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// FlagEvents returns the flag history in application order.
func (s *Store) FlagEvents(accountID string) ([]FlagEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT name, applied, at FROM flag_events WHERE account_id = ? ORDER BY seq`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FlagEvent
	for rows.Next() {
		var fe FlagEvent
		var applied int
		var at string
		if err := rows.Scan(&fe.Name, &applied, &at); err != nil {
			return nil, err
		}
		fe.Applied = applied == 1
		if fe.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
			return nil, err
		}
		out = append(out, fe)
	}
	return out, rows.Err()
}

// Reset wipes every table. Development and demo use only.
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{
		"flag_events", "executions", "schedules", "notifications", "journal", "parameters", "accounts",
	} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// Schedules returns the latest pinned expression per event.
func (s *Store) Schedules(accountID string) ([]vault.ScheduleUpdate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT event, expr_json, skip FROM schedules WHERE account_id = ? ORDER BY event`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []vault.ScheduleUpdate
	for rows.Next() {
		var u vault.ScheduleUpdate
		var expr string
		var skip int
		if err := rows.Scan(&u.Event, &expr, &skip); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(expr), &u.Expr); err != nil {
			return nil, err
		}
		u.Skip = skip == 1
		out = append(out, u)
	}
	return out, rows.Err()
}
