package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/betbot/copybot/internal/domain"
)

// ExecOrder 一笔待执行的跟单订单及其来源信息
type ExecOrder struct {
	Order        domain.Order
	SourceTrader string
}

// ScanResult 单个交易者一次扫描的产出：跟单订单加推进后的快照
type ScanResult struct {
	Orders   []ExecOrder
	Snapshot domain.TraderSnapshot
}

// ApplyTraderScan 在一个事务内执行一次扫描的全部订单并推进快照。
// 任何一步失败整体回滚：快照不推进，下个周期会重新观测到同样的变化。
// 返回执行的成交记录。
func (s *Store) ApplyTraderScan(ctx context.Context, result ScanResult) ([]domain.Trade, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	now := time.Now()
	trades := make([]domain.Trade, 0, len(result.Orders))
	for _, o := range result.Orders {
		trade, err := executeOrderInTx(ctx, tx, o, now)
		if err != nil {
			return nil, fmt.Errorf("execute %s %s/%s: %w", o.Order.Side, o.Order.MarketID, o.Order.Outcome, err)
		}
		trades = append(trades, trade)
	}

	if len(result.Orders) > 0 {
		if _, err := tx.ExecContext(ctx, `
UPDATE tracked_traders SET copied_trades = copied_trades + ? WHERE address = ?
`, len(result.Orders), result.Snapshot.TraderAddress); err != nil {
			return nil, err
		}
	}

	if err := replaceSnapshotInTx(ctx, tx, result.Snapshot); err != nil {
		return nil, fmt.Errorf("advance snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return trades, nil
}

// executeOrderInTx 执行单笔订单：更新账户余额与仓位并写入成交记录。
// BUY: 余额扣减 notional，新建或加权合并仓位；
// SELL: 余额增加 notional，实现盈亏 = (卖价 − 均价) × 数量，数量归零时关闭仓位。
func executeOrderInTx(ctx context.Context, tx *sql.Tx, o ExecOrder, now time.Time) (domain.Trade, error) {
	account, err := accountInTx(ctx, tx)
	if err != nil {
		return domain.Trade{}, err
	}

	notional := o.Order.Notional()
	trade := domain.Trade{
		ID:           uuid.NewString(),
		Timestamp:    now,
		SourceTrader: o.SourceTrader,
		MarketID:     o.Order.MarketID,
		Outcome:      o.Order.Outcome,
		Side:         o.Order.Side,
		Size:         o.Order.Size,
		Price:        o.Order.Price,
		Notional:     notional,
		MarketTitle:  o.Order.Title,
	}

	pos, err := openPositionQuery(ctx, tx, o.Order.MarketID, o.Order.Outcome)
	if err != nil {
		return domain.Trade{}, err
	}

	switch o.Order.Side {
	case domain.SideBuy:
		if notional > account.Balance {
			return domain.Trade{}, fmt.Errorf("order notional %.4f exceeds balance %.4f", notional, account.Balance)
		}
		account.Balance = subF(account.Balance, notional)
		if pos == nil {
			if err := insertPositionInTx(ctx, tx, domain.Position{
				ID:         uuid.NewString(),
				MarketID:   o.Order.MarketID,
				Outcome:    o.Order.Outcome,
				Size:       o.Order.Size,
				EntryPrice: o.Order.Price,
				Status:     domain.PositionStatusOpen,
				Title:      o.Order.Title,
				OpenedAt:   now,
			}); err != nil {
				return domain.Trade{}, err
			}
		} else {
			blended := domain.BlendEntry(pos.Size, pos.EntryPrice, o.Order.Size, o.Order.Price)
			if err := updatePositionSizeInTx(ctx, tx, pos.ID, addF(pos.Size, o.Order.Size), blended); err != nil {
				return domain.Trade{}, err
			}
		}

	case domain.SideSell:
		if pos == nil {
			return domain.Trade{}, errPositionNotFound
		}
		if o.Order.Size > pos.Size {
			return domain.Trade{}, fmt.Errorf("sell size %.4f exceeds position %.4f", o.Order.Size, pos.Size)
		}
		realized := mulF(o.Order.Price-pos.EntryPrice, o.Order.Size)
		trade.RealizedPnl = realized
		account.Balance = addF(account.Balance, notional)
		account.RealizedPnl = addF(account.RealizedPnl, realized)

		remaining := subF(pos.Size, o.Order.Size)
		if remaining <= 0 {
			if err := closePositionInTx(ctx, tx, pos.ID, now); err != nil {
				return domain.Trade{}, err
			}
		} else {
			if err := updatePositionSizeInTx(ctx, tx, pos.ID, remaining, pos.EntryPrice); err != nil {
				return domain.Trade{}, err
			}
		}

	default:
		return domain.Trade{}, fmt.Errorf("unknown side %q", o.Order.Side)
	}

	if err := updateAccountInTx(ctx, tx, account, now); err != nil {
		return domain.Trade{}, err
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO trades (id, ts, source_trader, market_id, outcome, side, size, price, notional, realized_pnl, market_title)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
`, trade.ID, trade.Timestamp.Format(time.RFC3339Nano), trade.SourceTrader, trade.MarketID, trade.Outcome,
		string(trade.Side), trade.Size, trade.Price, trade.Notional, trade.RealizedPnl, trade.MarketTitle); err != nil {
		return domain.Trade{}, err
	}
	return trade, nil
}

// 余额与盈亏的累加走 decimal，避免长时间运行后的浮点漂移
func addF(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Add(decimal.NewFromFloat(b)).Float64()
	return f
}

func subF(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Float64()
	return f
}

func mulF(a, b float64) float64 {
	f, _ := decimal.NewFromFloat(a).Mul(decimal.NewFromFloat(b)).Float64()
	return f
}
