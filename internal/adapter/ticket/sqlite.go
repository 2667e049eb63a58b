// Package ticket implements the extraction ticket store on SQLite. Tickets
// record an in-flight extraction so it survives the agent's page reload;
// the store itself lives only as long as the process (the default DSN is an
// in-memory database).
package ticket

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"weighbridge/internal/domain"
)

// DefaultDSN keeps tickets in memory: they outlive an agent's reload but
// reset on process restart.
const DefaultDSN = ":memory:"

// Store implements domain.TicketStore.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore opens the ticket database and runs the schema migration.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = DefaultDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open ticket db: %w", err)
	}
	// A single connection keeps an in-memory database from fragmenting
	// across the pool (every pooled connection would otherwise get its
	// own empty database).
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate ticket db: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS tickets (
			request_id TEXT PRIMARY KEY,
			role       TEXT NOT NULL UNIQUE,
			target     TEXT NOT NULL,
			payload    TEXT NOT NULL,
			issued_at  INTEGER NOT NULL
		)
	`)
	return err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Issue records t, replacing any unconsumed ticket for the same role. A new
// navigation always supersedes a stale pending one.
func (s *Store) Issue(ctx context.Context, t domain.Ticket) error {
	payload, err := json.Marshal(t.Payload)
	if err != nil {
		return fmt.Errorf("marshal ticket payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("issue ticket: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tickets WHERE role = ?", string(t.Role)); err != nil {
		return fmt.Errorf("discard stale ticket: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO tickets (request_id, role, target, payload, issued_at) VALUES (?, ?, ?, ?, ?)",
		t.RequestID, string(t.Role), t.Target, string(payload), t.IssuedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert ticket: %w", err)
	}
	return tx.Commit()
}

// Consume removes and returns the ticket addressed to role. The delete and
// the read share one transaction, so a ticket can be consumed exactly once;
// a second attempt finds nothing. An expired ticket is removed and reported
// as ErrTicketExpired.
func (s *Store) Consume(ctx context.Context, role domain.AgentRole) (*domain.Ticket, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("consume ticket: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT request_id, target, payload, issued_at FROM tickets WHERE role = ?", string(role))

	t := domain.Ticket{Role: role}
	var payload string
	var issuedAt int64
	if err := row.Scan(&t.RequestID, &t.Target, &payload, &issuedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan ticket: %w", err)
	}
	if err := json.Unmarshal([]byte(payload), &t.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal ticket payload: %w", err)
	}
	t.IssuedAt = time.Unix(0, issuedAt)

	if _, err := tx.ExecContext(ctx, "DELETE FROM tickets WHERE request_id = ?", t.RequestID); err != nil {
		return nil, fmt.Errorf("delete ticket: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("consume ticket: %w", err)
	}

	if t.Expired(s.now()) {
		return nil, domain.NewDomainError("TicketStore.Consume", domain.ErrTicketExpired, t.RequestID)
	}
	return &t, nil
}

// SweepExpired removes every expired ticket and returns how many went.
func (s *Store) SweepExpired(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-domain.TicketTTL).UnixNano()
	res, err := s.db.ExecContext(ctx, "DELETE FROM tickets WHERE issued_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep tickets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sweep tickets: %w", err)
	}
	return int(n), nil
}

// NewRequestID generates a sortable unique request identifier.
func NewRequestID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// Compile-time interface check.
var _ domain.TicketStore = (*Store)(nil)
