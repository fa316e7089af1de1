package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/betbot/copybot/internal/domain"
)

// LoadSnapshot 读取交易者上次持久化的持仓快照。
// 从未观测过（尚无快照）时返回 nil，调用方据此走基线流程。
// 快照存在但为空（交易者清空了所有持仓）返回零持仓的快照。
func (s *Store) LoadSnapshot(ctx context.Context, trader string) (*domain.TraderSnapshot, error) {
	var capturedAt sql.NullString
	err := s.db.QueryRowContext(ctx, `
SELECT last_snapshot_at FROM tracked_traders WHERE address = ?
`, trader).Scan(&capturedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !capturedAt.Valid {
		return nil, nil
	}

	ts, _ := time.Parse(time.RFC3339Nano, capturedAt.String)
	snap := domain.NewTraderSnapshot(trader, ts)

	rows, err := s.db.QueryContext(ctx, `
SELECT market_id, outcome, size, avg_entry_price, title FROM trader_snapshot WHERE trader_address = ?
`, trader)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var key domain.PositionKey
		var entry domain.SnapshotEntry
		if err := rows.Scan(&key.MarketID, &key.Outcome, &entry.Size, &entry.AvgEntryPrice, &entry.Title); err != nil {
			return nil, err
		}
		snap.Positions[key] = entry
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// replaceSnapshotInTx 用新快照整体替换旧快照并推进 last_snapshot_at。
// 必须与同一次扫描产生的订单在同一事务内提交：要么全部生效，要么全部回滚。
func replaceSnapshotInTx(ctx context.Context, tx *sql.Tx, snap domain.TraderSnapshot) error {
	if _, err := tx.ExecContext(ctx, `
DELETE FROM trader_snapshot WHERE trader_address = ?
`, snap.TraderAddress); err != nil {
		return err
	}
	for key, entry := range snap.Positions {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO trader_snapshot (trader_address, market_id, outcome, size, avg_entry_price, title)
VALUES (?,?,?,?,?,?)
`, snap.TraderAddress, key.MarketID, key.Outcome, entry.Size, entry.AvgEntryPrice, entry.Title); err != nil {
			return err
		}
	}
	_, err := tx.ExecContext(ctx, `
UPDATE tracked_traders SET last_snapshot_at = ?, last_scanned_at = ? WHERE address = ?
`, snap.CapturedAt.Format(time.RFC3339Nano), time.Now().Format(time.RFC3339Nano), snap.TraderAddress)
	return err
}
