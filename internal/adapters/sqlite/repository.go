// Package sqlite implements the trade ledger and heartbeat log on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fxpilot/internal/domain"
	"fxpilot/internal/ports"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Repository implements ports.TradeRepository and ports.HeartbeatRepository.
type Repository struct {
	db     *sql.DB
	logger ports.Logger
}

// Config holds configuration for the SQLite repository.
type Config struct {
	DBPath string
	Logger ports.Logger
}

// NewRepository opens (creating if necessary) the ledger database.
func NewRepository(cfg Config) (*Repository, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for SQLite repository")
	}
	dbPath := cfg.DBPath
	if dbPath == "" {
		dbPath = "./data/fxpilot.db"
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory '%s': %w", filepath.Dir(dbPath), err)
	}

	// WAL mode: the orchestrator and the reconciler touch the ledger
	// concurrently from their own loops.
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database at '%s': %w", dbPath, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database at '%s': %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	repo := &Repository{db: db, logger: cfg.Logger}
	if err := repo.initializeSchema(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	cfg.Logger.Info(context.Background(), "Ledger database ready", map[string]interface{}{"path": dbPath})
	return repo, nil
}

func (r *Repository) initializeSchema(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL,
		pair TEXT NOT NULL,
		action TEXT NOT NULL,
		entry_price REAL NOT NULL,
		stop_loss REAL NOT NULL,
		take_profit REAL NOT NULL,
		lot_size REAL NOT NULL,
		status TEXT NOT NULL DEFAULT 'OPEN',
		exit_price REAL DEFAULT NULL,
		pnl REAL DEFAULT NULL,
		reasoning_trace TEXT DEFAULT NULL
	);

	CREATE TABLE IF NOT EXISTS heartbeats (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		message TEXT DEFAULT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_trades_status ON trades (status);
	CREATE INDEX IF NOT EXISTS idx_trades_timestamp ON trades (timestamp);
	`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to execute schema initialization: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	if r.db != nil {
		r.logger.Info(context.Background(), "Closing ledger database")
		return r.db.Close()
	}
	return nil
}

// --- TradeRepository implementation ---

// CreateTrade saves a new trade record and returns its assigned ID.
func (r *Repository) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	const query = `
	INSERT INTO trades (timestamp, pair, action, entry_price, stop_loss, take_profit, lot_size, status, reasoning_trace)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	trace, err := json.Marshal(trade.ReasoningTrace)
	if err != nil {
		return 0, fmt.Errorf("failed to encode reasoning trace: %w", err)
	}
	ts := trade.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx, query,
		ts, trade.Pair, trade.Action, trade.EntryPrice, trade.StopLoss,
		trade.TakeProfit, trade.LotSize, trade.Status, string(trace))
	if err != nil {
		return 0, fmt.Errorf("failed to insert trade for %s: %w", trade.Pair, ports.ErrQueryFailed)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for trade %s: %w", trade.Pair, err)
	}
	trade.ID = id
	trade.Timestamp = ts
	r.logger.Debug(ctx, "Trade created", map[string]interface{}{"tradeID": id, "pair": trade.Pair, "action": trade.Action})
	return id, nil
}

// FindOpenTrades retrieves all trades with status OPEN, oldest first.
func (r *Repository) FindOpenTrades(ctx context.Context) ([]*domain.Trade, error) {
	const query = `
	SELECT id, timestamp, pair, action, entry_price, stop_loss, take_profit,
	       lot_size, status, exit_price, pnl, reasoning_trace
	FROM trades
	WHERE status = ?
	ORDER BY timestamp ASC`

	rows, err := r.db.QueryContext(ctx, query, domain.StatusOpen)
	if err != nil {
		return nil, fmt.Errorf("failed to query open trades: %w", ports.ErrQueryFailed)
	}
	defer rows.Close()
	return r.scanTrades(rows)
}

// CountOpenTrades counts trades currently marked OPEN.
func (r *Repository) CountOpenTrades(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trades WHERE status = ?`, domain.StatusOpen).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count open trades: %w", ports.ErrQueryFailed)
	}
	return count, nil
}

// FindClosedSince retrieves trades created at or after the given time whose
// PnL has been realized.
func (r *Repository) FindClosedSince(ctx context.Context, since time.Time) ([]*domain.Trade, error) {
	const query = `
	SELECT id, timestamp, pair, action, entry_price, stop_loss, take_profit,
	       lot_size, status, exit_price, pnl, reasoning_trace
	FROM trades
	WHERE timestamp >= ? AND pnl IS NOT NULL
	ORDER BY timestamp ASC`

	rows, err := r.db.QueryContext(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed trades: %w", ports.ErrQueryFailed)
	}
	defer rows.Close()
	return r.scanTrades(rows)
}

// CloseTrade transitions a trade OPEN -> CLOSED. The status predicate in the
// WHERE clause is the idempotence guard: a trade already closed by a
// concurrent or earlier run matches no row and returns ErrNotFound.
func (r *Repository) CloseTrade(ctx context.Context, id int64, exitPrice, pnl float64) error {
	const query = `
	UPDATE trades
	SET status = ?, exit_price = ?, pnl = ?
	WHERE id = ? AND status = ?`

	result, err := r.db.ExecContext(ctx, query, domain.StatusClosed, exitPrice, pnl, id, domain.StatusOpen)
	if err != nil {
		return fmt.Errorf("failed to close trade ID %d: %w", id, ports.ErrUpdateFailed)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected closing trade ID %d: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("no open trade with ID %d: %w", id, ports.ErrNotFound)
	}
	r.logger.Debug(ctx, "Trade closed", map[string]interface{}{"tradeID": id, "exitPrice": exitPrice, "pnl": pnl})
	return nil
}

// --- HeartbeatRepository implementation ---

// AppendHeartbeat inserts a liveness record. Heartbeats are append-only.
func (r *Repository) AppendHeartbeat(ctx context.Context, status, message string) error {
	const query = `INSERT INTO heartbeats (timestamp, status, message) VALUES (?, ?, ?)`
	if _, err := r.db.ExecContext(ctx, query, time.Now().UTC(), status, message); err != nil {
		return fmt.Errorf("failed to append heartbeat: %w", ports.ErrQueryFailed)
	}
	return nil
}

func (r *Repository) scanTrades(rows *sql.Rows) ([]*domain.Trade, error) {
	var trades []*domain.Trade
	for rows.Next() {
		var t domain.Trade
		var exitPrice, pnl sql.NullFloat64
		var trace sql.NullString
		if err := rows.Scan(&t.ID, &t.Timestamp, &t.Pair, &t.Action, &t.EntryPrice,
			&t.StopLoss, &t.TakeProfit, &t.LotSize, &t.Status, &exitPrice, &pnl, &trace); err != nil {
			return nil, fmt.Errorf("failed to scan trade row: %w", err)
		}
		if exitPrice.Valid {
			v := exitPrice.Float64
			t.ExitPrice = &v
		}
		if pnl.Valid {
			v := pnl.Float64
			t.PNL = &v
		}
		if trace.Valid && trace.String != "" {
			if err := json.Unmarshal([]byte(trace.String), &t.ReasoningTrace); err != nil {
				r.logger.Warn(context.Background(), "Could not decode reasoning trace", map[string]interface{}{"tradeID": t.ID})
			}
		}
		trades = append(trades, &t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("trade row iteration failed: %w", err)
	}
	return trades, nil
}
