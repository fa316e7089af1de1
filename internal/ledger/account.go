package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/betbot/copybot/internal/domain"
)

// InitAccount 初始化模拟账户：不存在时以 initialBalance 创建，
// 已存在时保持原状（重启继续，不重置资金）
func (s *Store) InitAccount(ctx context.Context, initialBalance float64) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO account (id, balance, initial_balance, realized_pnl, updated_at)
VALUES (1, ?, ?, 0, ?)
ON CONFLICT(id) DO NOTHING
`, initialBalance, initialBalance, time.Now().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("init account: %w", err)
	}
	return nil
}

// Account 读取账户当前状态
func (s *Store) Account(ctx context.Context) (domain.Account, error) {
	return scanAccount(s.db.QueryRowContext(ctx, `
SELECT balance, initial_balance, realized_pnl, updated_at FROM account WHERE id = 1
`))
}

func accountInTx(ctx context.Context, tx *sql.Tx) (domain.Account, error) {
	return scanAccount(tx.QueryRowContext(ctx, `
SELECT balance, initial_balance, realized_pnl, updated_at FROM account WHERE id = 1
`))
}

func scanAccount(row *sql.Row) (domain.Account, error) {
	var a domain.Account
	var updated string
	if err := row.Scan(&a.Balance, &a.InitialBalance, &a.RealizedPnl, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return a, fmt.Errorf("account not initialized")
		}
		return a, err
	}
	a.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
	return a, nil
}

func updateAccountInTx(ctx context.Context, tx *sql.Tx, a domain.Account, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
UPDATE account SET balance = ?, realized_pnl = ?, updated_at = ? WHERE id = 1
`, a.Balance, a.RealizedPnl, now.Format(time.RFC3339Nano))
	return err
}
