package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jfilipcz/netfolio/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL. All
// amounts travel as NUMERIC so no precision is lost between the engine's
// decimals and the database.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a SnapshotStore backed by the given pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// SaveSnapshot appends every row of one run's write set in a single
// transaction: one timed balance per asset, one location value per
// location in the snapshot's persist order (total included), and one net
// value row. Either all rows commit or none do.
func (s *SnapshotStore) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for asset, entry := range snap.Assets {
		value := decimal.Zero
		if entry.Value != nil {
			value = *entry.Value
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO timed_balances (time, asset, amount, usd_value)
			 VALUES ($1, $2, $3, $4)`,
			snap.Timestamp, asset.String(), entry.Amount, value,
		); err != nil {
			return fmt.Errorf("postgres: insert timed balance %s: %w", asset, err)
		}
	}

	for idx, loc := range snap.LocationOrder {
		entry, ok := snap.Locations[loc]
		if !ok {
			return fmt.Errorf("postgres: location order names absent location %q", loc)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO timed_location_values (time, location, usd_value, sort_idx)
			 VALUES ($1, $2, $3, $4)`,
			snap.Timestamp, loc.String(), entry.Value, idx,
		); err != nil {
			return fmt.Errorf("postgres: insert location value %s: %w", loc, err)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO net_value_history (time, usd_value) VALUES ($1, $2)`,
		snap.Timestamp, snap.NetValue,
	); err != nil {
		return fmt.Errorf("postgres: insert net value: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit snapshot: %w", err)
	}
	return nil
}

// TimedBalances returns the persisted series for one asset ordered by time
// ascending. Nil bounds mean unbounded.
func (s *SnapshotStore) TimedBalances(ctx context.Context, asset domain.Asset, from, to *time.Time) ([]domain.TimedBalance, error) {
	query := `SELECT time, amount::text, usd_value::text
		FROM timed_balances WHERE asset = $1`
	args := []any{asset.String()}

	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND time >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND time <= $%d", len(args))
	}
	query += " ORDER BY time ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query timed balances %s: %w", asset, err)
	}
	defer rows.Close()

	var out []domain.TimedBalance
	for rows.Next() {
		var (
			tb                  domain.TimedBalance
			amountStr, valueStr string
		)
		if err := rows.Scan(&tb.Time, &amountStr, &valueStr); err != nil {
			return nil, fmt.Errorf("postgres: scan timed balance: %w", err)
		}
		tb.Asset = asset
		if tb.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("postgres: parse amount %q: %w", amountStr, err)
		}
		if tb.USDValue, err = decimal.NewFromString(valueStr); err != nil {
			return nil, fmt.Errorf("postgres: parse value %q: %w", valueStr, err)
		}
		out = append(out, tb)
	}
	return out, rows.Err()
}

// LatestLocationDistribution returns the most recent run's location rows in
// their persisted sort order, total included.
func (s *SnapshotStore) LatestLocationDistribution(ctx context.Context) ([]domain.TimedLocationValue, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT time, location, usd_value::text
		 FROM timed_location_values
		 WHERE time = (SELECT MAX(time) FROM timed_location_values)
		 ORDER BY sort_idx ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: query latest location distribution: %w", err)
	}
	defer rows.Close()

	var out []domain.TimedLocationValue
	for rows.Next() {
		var (
			lv       domain.TimedLocationValue
			loc      string
			valueStr string
		)
		if err := rows.Scan(&lv.Time, &loc, &valueStr); err != nil {
			return nil, fmt.Errorf("postgres: scan location value: %w", err)
		}
		lv.Location = domain.Location(loc)
		if lv.USDValue, err = decimal.NewFromString(valueStr); err != nil {
			return nil, fmt.Errorf("postgres: parse location value %q: %w", valueStr, err)
		}
		out = append(out, lv)
	}
	return out, rows.Err()
}

// NetValueSeries returns the persisted net worth series ordered by time
// ascending. Nil bounds mean unbounded.
func (s *SnapshotStore) NetValueSeries(ctx context.Context, from, to *time.Time) ([]domain.NetValuePoint, error) {
	query := `SELECT time, usd_value::text FROM net_value_history WHERE TRUE`
	var args []any

	if from != nil {
		args = append(args, *from)
		query += fmt.Sprintf(" AND time >= $%d", len(args))
	}
	if to != nil {
		args = append(args, *to)
		query += fmt.Sprintf(" AND time <= $%d", len(args))
	}
	query += " ORDER BY time ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query net value series: %w", err)
	}
	defer rows.Close()

	var out []domain.NetValuePoint
	for rows.Next() {
		var (
			p        domain.NetValuePoint
			valueStr string
		)
		if err := rows.Scan(&p.Time, &valueStr); err != nil {
			return nil, fmt.Errorf("postgres: scan net value point: %w", err)
		}
		if p.USDValue, err = decimal.NewFromString(valueStr); err != nil {
			return nil, fmt.Errorf("postgres: parse net value %q: %w", valueStr, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Compile-time interface check.
var _ domain.SnapshotStore = (*SnapshotStore)(nil)
