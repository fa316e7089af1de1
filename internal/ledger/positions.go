package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/betbot/copybot/internal/domain"
)

const positionColumns = `id, market_id, outcome, size, entry_price, status, unrealized_pnl, stale, title, opened_at, closed_at`

// OpenPositions 返回所有开放仓位，按市场、结果排序
func (s *Store) OpenPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+positionColumns+` FROM positions WHERE status = 'OPEN' ORDER BY market_id, outcome
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// PositionsByStatus 返回指定状态（OPEN/CLOSED）的仓位，status 为空时返回全部
func (s *Store) PositionsByStatus(ctx context.Context, status string) ([]domain.Position, error) {
	query := `SELECT ` + positionColumns + ` FROM positions`
	args := []any{}
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY market_id, outcome`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// OpenPosition 返回指定 (market, outcome) 的开放仓位，不存在时返回 nil
func (s *Store) OpenPosition(ctx context.Context, marketID, outcome string) (*domain.Position, error) {
	return openPositionQuery(ctx, s.db, marketID, outcome)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func openPositionQuery(ctx context.Context, q querier, marketID, outcome string) (*domain.Position, error) {
	rows, err := q.QueryContext(ctx, `
SELECT `+positionColumns+` FROM positions WHERE market_id = ? AND outcome = ? AND status = 'OPEN'
`, marketID, outcome)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	p, err := scanPosition(rows)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanPosition(rows *sql.Rows) (domain.Position, error) {
	var p domain.Position
	var stale int
	var opened string
	var closed sql.NullString
	if err := rows.Scan(&p.ID, &p.MarketID, &p.Outcome, &p.Size, &p.EntryPrice,
		&p.Status, &p.UnrealizedPnl, &stale, &p.Title, &opened, &closed); err != nil {
		return p, err
	}
	p.Stale = stale != 0
	p.OpenedAt, _ = time.Parse(time.RFC3339Nano, opened)
	if closed.Valid {
		t, _ := time.Parse(time.RFC3339Nano, closed.String)
		p.ClosedAt = &t
	}
	return p, nil
}

func insertPositionInTx(ctx context.Context, tx *sql.Tx, p domain.Position) error {
	_, err := tx.ExecContext(ctx, `
INSERT INTO positions (`+positionColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,NULL)
`, p.ID, p.MarketID, p.Outcome, p.Size, p.EntryPrice, p.Status,
		p.UnrealizedPnl, boolToInt(p.Stale), p.Title, p.OpenedAt.Format(time.RFC3339Nano))
	return err
}

func updatePositionSizeInTx(ctx context.Context, tx *sql.Tx, id string, size, entryPrice float64) error {
	_, err := tx.ExecContext(ctx, `
UPDATE positions SET size = ?, entry_price = ? WHERE id = ?
`, size, entryPrice, id)
	return err
}

func closePositionInTx(ctx context.Context, tx *sql.Tx, id string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
UPDATE positions SET size = 0, status = 'CLOSED', unrealized_pnl = 0, closed_at = ? WHERE id = ?
`, now.Format(time.RFC3339Nano), id)
	return err
}

// MarkToMarket 按当前价格刷新所有开放仓位的未实现盈亏。
// prices 中缺失的仓位标记为 stale，沿用旧的未实现盈亏。
func (s *Store) MarkToMarket(ctx context.Context, prices map[domain.PositionKey]float64) error {
	positions, err := s.OpenPositions(ctx)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range positions {
		price, ok := prices[domain.PositionKey{MarketID: p.MarketID, Outcome: p.Outcome}]
		if !ok {
			if _, err := tx.ExecContext(ctx, `UPDATE positions SET stale = 1 WHERE id = ?`, p.ID); err != nil {
				return err
			}
			continue
		}
		unrealized := (price - p.EntryPrice) * p.Size
		if _, err := tx.ExecContext(ctx, `
UPDATE positions SET unrealized_pnl = ?, stale = 0 WHERE id = ?
`, unrealized, p.ID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var errPositionNotFound = errors.New("open position not found")
