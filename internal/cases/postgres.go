package cases

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmerrifield20/CyberSentinel/internal/threat"
)

const caseColumns = `case_id, scenario, threat_type, severity, analysis,
	recommendations, context_sources, timestamp, token_usage`

// PostgresRepository stores records in the threat_cases table.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save implements Repository.
func (r *PostgresRepository) Save(ctx context.Context, rec *threat.Record) error {
	q := `INSERT INTO threat_cases (` + caseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.db.Exec(ctx, q,
		rec.CaseID, rec.Scenario, rec.ThreatType, rec.Severity, rec.Analysis,
		nonNil(rec.Recommendations), nonNil(rec.ContextSources), rec.Timestamp, rec.TokenUsage,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrDuplicateCase, rec.CaseID)
		}
		return fmt.Errorf("save case: %w", err)
	}
	return nil
}

// Get implements Repository.
func (r *PostgresRepository) Get(ctx context.Context, caseID string) (*threat.Record, error) {
	row := r.db.QueryRow(ctx, `SELECT `+caseColumns+` FROM threat_cases WHERE case_id = $1`, caseID)
	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get case: %w", err)
	}
	return rec, nil
}

// List implements Repository.
func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*threat.Record, error) {
	limit, offset = clampPage(limit, offset)

	rows, err := r.db.Query(ctx,
		`SELECT `+caseColumns+` FROM threat_cases
		 ORDER BY created_at DESC, case_id
		 LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list cases: %w", err)
	}
	defer rows.Close()

	out := make([]*threat.Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row pgx.Row) (*threat.Record, error) {
	rec := &threat.Record{}
	if err := row.Scan(
		&rec.CaseID, &rec.Scenario, &rec.ThreatType, &rec.Severity, &rec.Analysis,
		&rec.Recommendations, &rec.ContextSources, &rec.Timestamp, &rec.TokenUsage,
	); err != nil {
		return nil, err
	}
	rec.Recommendations = nonNil(rec.Recommendations)
	rec.ContextSources = nonNil(rec.ContextSources)
	return rec, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
