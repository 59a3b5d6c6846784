package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmerrifield20/chainledger/internal/chain"
	_ "modernc.org/sqlite" // registers the "sqlite" database/sql driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS ledger_records (
  idx           INTEGER PRIMARY KEY,
  payload       TEXT    NOT NULL,
  prev_digest   TEXT    NOT NULL,
  digest        TEXT    NOT NULL,
  created_at_ns INTEGER NOT NULL
);
`

// SQLiteStore mirrors the chain into a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at dsn and ensures the schema.
func OpenSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	for _, p := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=FULL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", p, err)
		}
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, r chain.Record) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var prevIdx int
	var prevDigest string
	err = tx.QueryRowContext(ctx,
		`SELECT idx, digest FROM ledger_records ORDER BY idx DESC LIMIT 1`,
	).Scan(&prevIdx, &prevDigest)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if r.Index != 0 {
			return fmt.Errorf("record %d on empty store: %w", r.Index, ErrStoreDiverged)
		}
	case err != nil:
		return fmt.Errorf("read ledger tail: %w", err)
	default:
		if r.Index != prevIdx+1 || r.PrevDigest != prevDigest {
			return fmt.Errorf("record %d after stored %d: %w", r.Index, prevIdx, ErrStoreDiverged)
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO ledger_records (idx, payload, prev_digest, digest, created_at_ns) VALUES (?, ?, ?, ?, ?)`,
		r.Index, r.Payload, r.PrevDigest, r.Digest, r.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("insert ledger record: %w", err)
	}
	return tx.Commit()
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context) ([]chain.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT idx, payload, prev_digest, digest, created_at_ns FROM ledger_records ORDER BY idx ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	var out []chain.Record
	for rows.Next() {
		var r chain.Record
		var ns int64
		if err := rows.Scan(&r.Index, &r.Payload, &r.PrevDigest, &r.Digest, &ns); err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		r.CreatedAt = time.Unix(0, ns).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
