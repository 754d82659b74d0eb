package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// ExecutionStore implements domain.ExecutionStore. The opportunity snapshot
// and both legs are stored as JSONB so the record replays exactly as the
// coordinator wrote it.
type ExecutionStore struct {
	pool *pgxpool.Pool
}

// NewExecutionStore creates a store backed by the given pool.
func NewExecutionStore(pool *pgxpool.Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

var _ domain.ExecutionStore = (*ExecutionStore)(nil)

const execSelectCols = `id, opportunity, leg_a, leg_b, outcome, remediation,
	notes, started_at, completed_at`

// Create persists one finalized execution record.
func (s *ExecutionStore) Create(ctx context.Context, rec domain.ExecutionRecord) error {
	oppJSON, err := json.Marshal(rec.Opportunity)
	if err != nil {
		return fmt.Errorf("postgres: marshal opportunity for %s: %w", rec.ID, err)
	}
	legAJSON, err := json.Marshal(rec.LegA)
	if err != nil {
		return fmt.Errorf("postgres: marshal leg A for %s: %w", rec.ID, err)
	}
	legBJSON, err := json.Marshal(rec.LegB)
	if err != nil {
		return fmt.Errorf("postgres: marshal leg B for %s: %w", rec.ID, err)
	}

	const query = `
		INSERT INTO executions (
			id, opportunity, leg_a, leg_b, outcome, remediation,
			notes, started_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = s.pool.Exec(ctx, query,
		rec.ID, oppJSON, legAJSON, legBJSON,
		string(rec.Outcome), string(rec.Remediation),
		rec.Notes, rec.StartedAt, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert execution %s: %w", rec.ID, err)
	}
	return nil
}

// GetByID returns one record, or domain.ErrNotFound.
func (s *ExecutionStore) GetByID(ctx context.Context, id string) (domain.ExecutionRecord, error) {
	query := `SELECT ` + execSelectCols + ` FROM executions WHERE id = $1`

	rec, err := scanExecution(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ExecutionRecord{}, fmt.Errorf("postgres: execution %s: %w", id, domain.ErrNotFound)
		}
		return domain.ExecutionRecord{}, fmt.Errorf("postgres: get execution %s: %w", id, err)
	}
	return rec, nil
}

// ListRecent returns the latest records, newest first.
func (s *ExecutionStore) ListRecent(ctx context.Context, limit int) ([]domain.ExecutionRecord, error) {
	query := `SELECT ` + execSelectCols + ` FROM executions ORDER BY started_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent executions: %w", err)
	}
	defer rows.Close()
	return scanExecutions(rows)
}

// ListBefore returns records started before the cutoff, oldest first, for
// archiving.
func (s *ExecutionStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.ExecutionRecord, error) {
	query := `SELECT ` + execSelectCols + ` FROM executions
		WHERE started_at < $1 ORDER BY started_at ASC`
	args := []any{before}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list executions before %s: %w", before, err)
	}
	defer rows.Close()
	return scanExecutions(rows)
}

// ListExposed returns records that left unhedged exposure behind, oldest
// first, so remediation can work through the backlog in order.
func (s *ExecutionStore) ListExposed(ctx context.Context) ([]domain.ExecutionRecord, error) {
	query := `SELECT ` + execSelectCols + ` FROM executions
		WHERE outcome IN ($1, $2) ORDER BY started_at ASC`

	rows, err := s.pool.Query(ctx, query,
		string(domain.OutcomePartialAOnly), string(domain.OutcomePartialBOnly))
	if err != nil {
		return nil, fmt.Errorf("postgres: list exposed executions: %w", err)
	}
	defer rows.Close()
	return scanExecutions(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(row rowScanner) (domain.ExecutionRecord, error) {
	var rec domain.ExecutionRecord
	var outcome, remediation string
	var oppJSON, legAJSON, legBJSON []byte

	if err := row.Scan(
		&rec.ID, &oppJSON, &legAJSON, &legBJSON, &outcome, &remediation,
		&rec.Notes, &rec.StartedAt, &rec.CompletedAt,
	); err != nil {
		return domain.ExecutionRecord{}, err
	}
	rec.Outcome = domain.ExecutionOutcome(outcome)
	rec.Remediation = domain.RemediationAction(remediation)

	if err := json.Unmarshal(oppJSON, &rec.Opportunity); err != nil {
		return domain.ExecutionRecord{}, fmt.Errorf("unmarshal opportunity: %w", err)
	}
	if err := json.Unmarshal(legAJSON, &rec.LegA); err != nil {
		return domain.ExecutionRecord{}, fmt.Errorf("unmarshal leg A: %w", err)
	}
	if err := json.Unmarshal(legBJSON, &rec.LegB); err != nil {
		return domain.ExecutionRecord{}, fmt.Errorf("unmarshal leg B: %w", err)
	}
	return rec, nil
}

func scanExecutions(rows pgx.Rows) ([]domain.ExecutionRecord, error) {
	var recs []domain.ExecutionRecord
	for rows.Next() {
		rec, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan execution: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: execution rows: %w", err)
	}
	return recs, nil
}
