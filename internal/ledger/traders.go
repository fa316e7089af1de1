package ledger

import (
	"context"
	"database/sql"
	"time"

	"github.com/betbot/copybot/internal/domain"
)

// UpsertTrackedTrader 登记被跟踪的交易者；已存在时只更新昵称
func (s *Store) UpsertTrackedTrader(ctx context.Context, address, nickname string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tracked_traders (address, nickname, added_at)
VALUES (?,?,?)
ON CONFLICT(address) DO UPDATE SET nickname = excluded.nickname
`, address, nickname, time.Now().Format(time.RFC3339Nano))
	return err
}

// TrackedTraders 返回全部被跟踪交易者
func (s *Store) TrackedTraders(ctx context.Context) ([]domain.TrackedTrader, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT address, nickname, copied_trades, added_at, last_scanned_at FROM tracked_traders ORDER BY added_at
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TrackedTrader
	for rows.Next() {
		var t domain.TrackedTrader
		var added string
		var scanned sql.NullString
		if err := rows.Scan(&t.Address, &t.Nickname, &t.CopiedTrades, &added, &scanned); err != nil {
			return nil, err
		}
		t.AddedAt, _ = time.Parse(time.RFC3339Nano, added)
		if scanned.Valid {
			ts, _ := time.Parse(time.RFC3339Nano, scanned.String)
			t.LastScannedAt = &ts
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
