package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/chainledger/internal/chain"
	"go.uber.org/zap"
)

// advisoryLockKey serialises concurrent Save calls from every process that
// shares the database. The value is arbitrary but must not change.
const advisoryLockKey = int64(2_024_061_117)

// PostgresStore mirrors the chain into the ledger_records table created by
// cmd/migrate. Timestamps are stored as Unix nanoseconds so restored records
// digest exactly as they did when appended.
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresStore creates a PostgresStore backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// Save implements Store.
// It acquires a transaction-scoped advisory lock, checks the stored tail and
// inserts r, all within a single transaction.
func (s *PostgresStore) Save(ctx context.Context, r chain.Record) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", advisoryLockKey); err != nil {
		return fmt.Errorf("acquire advisory lock: %w", err)
	}

	var prevIdx int
	var prevDigest string
	err = tx.QueryRow(ctx,
		"SELECT idx, digest FROM ledger_records ORDER BY idx DESC LIMIT 1",
	).Scan(&prevIdx, &prevDigest)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
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

	if _, err := tx.Exec(ctx,
		`INSERT INTO ledger_records (idx, payload, prev_digest, digest, created_at_ns)
		 VALUES ($1, $2, $3, $4, $5)`,
		r.Index, r.Payload, r.PrevDigest, r.Digest, r.CreatedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("insert ledger record: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ledger tx: %w", err)
	}

	s.logger.Debug("ledger record stored",
		zap.Int("idx", r.Index),
		zap.String("store", "postgres"),
	)
	return nil
}

// Load implements Store.
func (s *PostgresStore) Load(ctx context.Context) ([]chain.Record, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT idx, payload, prev_digest, digest, created_at_ns
		 FROM ledger_records ORDER BY idx ASC`,
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

// Close implements Store. The pool is owned by the caller and left open.
func (s *PostgresStore) Close() error {
	return nil
}
