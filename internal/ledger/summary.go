package ledger

import "context"

// Summary 账户组合概览
type Summary struct {
	Balance        float64 `json:"balance"`
	InitialBalance float64 `json:"initial_balance"`
	PositionValue  float64 `json:"position_value"`
	Equity         float64 `json:"equity"`
	RealizedPnl    float64 `json:"realized_pnl"`
	UnrealizedPnl  float64 `json:"unrealized_pnl"`
	TotalPnl       float64 `json:"total_pnl"`
	ReturnPct      float64 `json:"return_pct"`
	OpenPositions  int     `json:"open_positions"`
	TotalTrades    int     `json:"total_trades"`
}

// Summary 汇总账户、仓位与成交数据。
// 仓位市值按 entry_price + unrealized_pnl 推算（上次 mark-to-market 的结果）。
func (s *Store) Summary(ctx context.Context) (Summary, error) {
	account, err := s.Account(ctx)
	if err != nil {
		return Summary{}, err
	}
	positions, err := s.OpenPositions(ctx)
	if err != nil {
		return Summary{}, err
	}
	trades, err := s.TradeCount(ctx)
	if err != nil {
		return Summary{}, err
	}

	var posValue, unrealized float64
	for _, p := range positions {
		posValue = addF(posValue, addF(mulF(p.Size, p.EntryPrice), p.UnrealizedPnl))
		unrealized = addF(unrealized, p.UnrealizedPnl)
	}

	sum := Summary{
		Balance:        account.Balance,
		InitialBalance: account.InitialBalance,
		PositionValue:  posValue,
		Equity:         account.Equity(posValue),
		RealizedPnl:    account.RealizedPnl,
		UnrealizedPnl:  unrealized,
		TotalPnl:       addF(account.RealizedPnl, unrealized),
		OpenPositions:  len(positions),
		TotalTrades:    trades,
	}
	if account.InitialBalance > 0 {
		sum.ReturnPct = (sum.Equity - account.InitialBalance) / account.InitialBalance * 100
	}
	return sum, nil
}
