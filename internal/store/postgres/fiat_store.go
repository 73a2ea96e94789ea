package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/jfilipcz/netfolio/internal/domain"
)

// FiatStore persists manually entered fiat holdings in the fiat_balances
// table. Setting a currency that already exists overwrites its amount.
type FiatStore struct {
	pool *pgxpool.Pool
}

func NewFiatStore(pool *pgxpool.Pool) *FiatStore {
	return &FiatStore{pool: pool}
}

func (s *FiatStore) SetFiatBalance(ctx context.Context, currency domain.Asset, amount decimal.Decimal) error {
	const q = `
		INSERT INTO fiat_balances (currency, amount)
		VALUES ($1, $2)
		ON CONFLICT (currency) DO UPDATE SET amount = EXCLUDED.amount`

	if _, err := s.pool.Exec(ctx, q, string(currency), amount.String()); err != nil {
		return fmt.Errorf("postgres: set fiat balance %s: %w", currency, err)
	}
	return nil
}

func (s *FiatStore) FiatBalances(ctx context.Context) ([]domain.FiatBalance, error) {
	const q = `
		SELECT currency, amount::text
		FROM fiat_balances
		ORDER BY currency`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("postgres: query fiat balances: %w", err)
	}
	defer rows.Close()

	var out []domain.FiatBalance
	for rows.Next() {
		var (
			currency string
			amount   string
		)
		if err := rows.Scan(&currency, &amount); err != nil {
			return nil, fmt.Errorf("postgres: scan fiat balance: %w", err)
		}
		dec, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("postgres: parse fiat amount %q: %w", amount, err)
		}
		out = append(out, domain.FiatBalance{
			Currency: domain.Asset(currency),
			Amount:   dec,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate fiat balances: %w", err)
	}
	return out, nil
}

func (s *FiatStore) RemoveFiatBalance(ctx context.Context, currency domain.Asset) error {
	const q = `DELETE FROM fiat_balances WHERE currency = $1`

	tag, err := s.pool.Exec(ctx, q, string(currency))
	if err != nil {
		return fmt.Errorf("postgres: remove fiat balance %s: %w", currency, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: remove fiat balance %s: %w", currency, domain.ErrNotFound)
	}
	return nil
}

// Compile-time interface check.
var _ domain.FiatStore = (*FiatStore)(nil)
