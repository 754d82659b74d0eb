package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore. The matched pair is
// stored as JSONB; query fields stay scalar columns.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a store backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)

const oppSelectCols = `id, route, cost, profit_percent, fill_size,
	leg_a_price, leg_b_price, est_fee_bps, price_breakdown, pair, detected_at`

// Insert stores one detected opportunity.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.ArbOpportunity) error {
	pairJSON, err := json.Marshal(opp.Pair)
	if err != nil {
		return fmt.Errorf("postgres: marshal pair for %s: %w", opp.ID, err)
	}

	const query = `
		INSERT INTO opportunities (
			id, route, cost, profit_percent, fill_size,
			leg_a_price, leg_b_price, est_fee_bps, price_breakdown, pair, detected_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = s.pool.Exec(ctx, query,
		opp.ID, string(opp.Route), opp.Cost, opp.ProfitPercent, opp.FillSize,
		opp.LegAPrice, opp.LegBPrice, opp.EstFeeBps, opp.PriceBreakdown,
		pairJSON, opp.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// ListRecent returns the latest opportunities, newest first.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbOpportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities ORDER BY detected_at DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

// ListBefore returns opportunities detected before the cutoff, oldest first,
// for archiving.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.ArbOpportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities
		WHERE detected_at < $1 ORDER BY detected_at ASC`
	args := []any{before}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before %s: %w", before, err)
	}
	defer rows.Close()
	return scanOpportunities(rows)
}

// DeleteBefore removes opportunities older than the cutoff and reports how
// many went.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM opportunities WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities before %s: %w", before, err)
	}
	return tag.RowsAffected(), nil
}

func scanOpportunities(rows pgx.Rows) ([]domain.ArbOpportunity, error) {
	var opps []domain.ArbOpportunity
	for rows.Next() {
		var opp domain.ArbOpportunity
		var route string
		var pairJSON []byte

		if err := rows.Scan(
			&opp.ID, &route, &opp.Cost, &opp.ProfitPercent, &opp.FillSize,
			&opp.LegAPrice, &opp.LegBPrice, &opp.EstFeeBps, &opp.PriceBreakdown,
			&pairJSON, &opp.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opp.Route = domain.Route(route)
		if err := json.Unmarshal(pairJSON, &opp.Pair); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal pair for %s: %w", opp.ID, err)
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: opportunity rows: %w", err)
	}
	return opps, nil
}
