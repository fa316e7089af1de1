package ledger

import (
	"context"
	"time"

	"github.com/betbot/copybot/internal/domain"
)

// Trades 返回最近的成交记录，按时间倒序，limit<=0 表示不限制
func (s *Store) Trades(ctx context.Context, limit int) ([]domain.Trade, error) {
	return s.TradesPage(ctx, limit, 0)
}

// TradesPage 按 (limit, offset) 分页读取成交记录，按时间倒序
func (s *Store) TradesPage(ctx context.Context, limit, offset int) ([]domain.Trade, error) {
	query := `
SELECT id, ts, source_trader, market_id, outcome, side, size, price, notional, realized_pnl, market_title
FROM trades ORDER BY ts DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
		if offset > 0 {
			query += ` OFFSET ?`
			args = append(args, offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var ts string
		if err := rows.Scan(&t.ID, &ts, &t.SourceTrader, &t.MarketID, &t.Outcome,
			&t.Side, &t.Size, &t.Price, &t.Notional, &t.RealizedPnl, &t.MarketTitle); err != nil {
			return nil, err
		}
		t.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, t)
	}
	return out, rows.Err()
}

// TradeCount 成交记录总数
func (s *Store) TradeCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades`).Scan(&n)
	return n, err
}
