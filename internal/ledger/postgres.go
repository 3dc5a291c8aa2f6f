package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// appendLockKey serialises appends across API instances sharing a database.
const appendLockKey = int64(0x43534c47) // "CSLG"

const entryColumns = `seq, recorded_at, case_id, action, actor, record_digest, prev_hash, hash`

// PostgresLedger stores the trail in the case_audit table.
type PostgresLedger struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresLedger creates a PostgresLedger backed by pool.
func NewPostgresLedger(pool *pgxpool.Pool, logger *zap.Logger) *PostgresLedger {
	return &PostgresLedger{pool: pool, logger: logger}
}

func scanEntry(row pgx.Row) (*Entry, error) {
	e := &Entry{}
	var action string
	if err := row.Scan(&e.Seq, &e.RecordedAt, &e.CaseID, &action, &e.Actor, &e.RecordDigest, &e.PrevHash, &e.Hash); err != nil {
		return nil, err
	}
	e.Action = Action(action)
	return e, nil
}

// Append implements Ledger. Reading the tip and inserting the new entry
// happen in one transaction holding a transaction-scoped advisory lock.
func (l *PostgresLedger) Append(ctx context.Context, ev Event) (*Entry, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin ledger tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, appendLockKey); err != nil {
		return nil, fmt.Errorf("lock ledger: %w", err)
	}

	tip, err := scanEntry(tx.QueryRow(ctx, `SELECT `+entryColumns+` FROM case_audit ORDER BY seq DESC LIMIT 1`))
	if errors.Is(err, pgx.ErrNoRows) {
		tip, err = nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger tip: %w", err)
	}

	e, err := newEntry(tip, ev, time.Now())
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO case_audit (`+entryColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.Seq, e.RecordedAt, e.CaseID, string(e.Action), e.Actor, e.RecordDigest, e.PrevHash, e.Hash,
	); err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit ledger entry: %w", err)
	}

	l.logger.Debug("ledger: entry sealed",
		zap.Int("seq", e.Seq),
		zap.String("case_id", e.CaseID),
		zap.String("action", string(e.Action)),
	)
	return e, nil
}

// Entry implements Ledger.
func (l *PostgresLedger) Entry(ctx context.Context, seq int) (*Entry, error) {
	e, err := scanEntry(l.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM case_audit WHERE seq = $1`, seq))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: seq %d", ErrNotFound, seq)
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger entry %d: %w", seq, err)
	}
	return e, nil
}

// Trail implements Ledger.
func (l *PostgresLedger) Trail(ctx context.Context, caseID string) ([]*Entry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT `+entryColumns+` FROM case_audit WHERE case_id = $1 ORDER BY seq`, caseID)
	if err != nil {
		return nil, fmt.Errorf("query trail: %w", err)
	}
	defer rows.Close()

	out := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trail row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Head implements Ledger.
func (l *PostgresLedger) Head(ctx context.Context) (Head, error) {
	h := Head{Root: ZeroHash}
	err := l.pool.QueryRow(ctx,
		`SELECT seq, hash FROM case_audit ORDER BY seq DESC LIMIT 1`,
	).Scan(&h.Length, &h.Root)
	if errors.Is(err, pgx.ErrNoRows) {
		return Head{Root: ZeroHash}, nil
	}
	if err != nil {
		return Head{}, fmt.Errorf("read ledger head: %w", err)
	}
	return h, nil
}

// Verify implements Ledger. Rows are streamed in sequence order.
func (l *PostgresLedger) Verify(ctx context.Context) error {
	rows, err := l.pool.Query(ctx, `SELECT `+entryColumns+` FROM case_audit ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	w := newChainWalker()
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return fmt.Errorf("scan ledger row: %w", err)
		}
		if err := w.next(e); err != nil {
			return err
		}
	}
	return rows.Err()
}
