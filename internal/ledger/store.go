// Package ledger 模拟账本：sqlite 持久化的账户、仓位、成交记录与交易者快照。
// 单文件数据库，进程重启后从上次状态继续。所有写入都在事务内完成，
// 单个交易者一次扫描产生的全部订单与快照推进共用一个事务。
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store sqlite 账本存储
type Store struct {
	db *sql.DB
}

// Open 打开（必要时创建）账本数据库并执行迁移
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close 关闭底层数据库
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA foreign_keys=ON;`,
		`
CREATE TABLE IF NOT EXISTS account (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  balance REAL NOT NULL,
  initial_balance REAL NOT NULL,
  realized_pnl REAL NOT NULL DEFAULT 0,
  updated_at TEXT NOT NULL
);`,
		`
CREATE TABLE IF NOT EXISTS positions (
  id TEXT PRIMARY KEY,
  market_id TEXT NOT NULL,
  outcome TEXT NOT NULL,
  size REAL NOT NULL,
  entry_price REAL NOT NULL,
  status TEXT NOT NULL,
  unrealized_pnl REAL NOT NULL DEFAULT 0,
  stale INTEGER NOT NULL DEFAULT 0,
  title TEXT NOT NULL DEFAULT '',
  opened_at TEXT NOT NULL,
  closed_at TEXT
);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_positions_open_key ON positions(market_id, outcome) WHERE status = 'OPEN';`,
		`
CREATE TABLE IF NOT EXISTS trades (
  id TEXT PRIMARY KEY,
  ts TEXT NOT NULL,
  source_trader TEXT NOT NULL,
  market_id TEXT NOT NULL,
  outcome TEXT NOT NULL,
  side TEXT NOT NULL,
  size REAL NOT NULL,
  price REAL NOT NULL,
  notional REAL NOT NULL,
  realized_pnl REAL NOT NULL DEFAULT 0,
  market_title TEXT NOT NULL DEFAULT ''
);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_trades_source ON trades(source_trader, ts DESC);`,
		`
CREATE TABLE IF NOT EXISTS tracked_traders (
  address TEXT PRIMARY KEY,
  nickname TEXT NOT NULL DEFAULT '',
  copied_trades INTEGER NOT NULL DEFAULT 0,
  added_at TEXT NOT NULL,
  last_scanned_at TEXT,
  last_snapshot_at TEXT
);`,
		`
CREATE TABLE IF NOT EXISTS trader_snapshot (
  trader_address TEXT NOT NULL REFERENCES tracked_traders(address) ON DELETE CASCADE,
  market_id TEXT NOT NULL,
  outcome TEXT NOT NULL,
  size REAL NOT NULL,
  avg_entry_price REAL NOT NULL DEFAULT 0,
  title TEXT NOT NULL DEFAULT '',
  PRIMARY KEY (trader_address, market_id, outcome)
);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
