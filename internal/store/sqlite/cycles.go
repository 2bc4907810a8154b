package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/BibekSapkota1/Share-Project/internal/cycle"
	"github.com/BibekSapkota1/Share-Project/internal/model"
)

var _ model.CycleStore = (*Store)(nil)

const cycleColumns = `id, user_id, symbol, cycle_number, status, buy_date, buy_price, buy_rsi,
	highest_price_after_buy, tsl_trigger_price, sell_date, sell_price, sell_rsi,
	profit_loss, profit_loss_percent, sell_reason, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCycle(row rowScanner) (*model.TradeCycle, error) {
	var (
		c                  model.TradeCycle
		status, buyDate    string
		sellDate, reason   sql.NullString
		sellPrice, sellRSI sql.NullFloat64
		pl, plPct          sql.NullFloat64
		created, updated   int64
	)
	err := row.Scan(&c.ID, &c.UserID, &c.Symbol, &c.CycleNumber, &status, &buyDate, &c.BuyPrice, &c.BuyRSI,
		&c.HighestPriceAfterBuy, &c.TSLTriggerPrice, &sellDate, &sellPrice, &sellRSI,
		&pl, &plPct, &reason, &created, &updated)
	if err != nil {
		return nil, err
	}

	c.Status = model.CycleStatus(status)
	if c.BuyDate, err = model.ParseDay(buyDate); err != nil {
		return nil, fmt.Errorf("cycle %d buy_date: %w", c.ID, err)
	}
	if sellDate.Valid {
		d, err := model.ParseDay(sellDate.String)
		if err != nil {
			return nil, fmt.Errorf("cycle %d sell_date: %w", c.ID, err)
		}
		c.SellDate = &d
	}
	c.SellPrice = floatPtr(sellPrice)
	c.SellRSI = floatPtr(sellRSI)
	c.ProfitLoss = floatPtr(pl)
	c.ProfitLossPercent = floatPtr(plPct)
	c.SellReason = reason.String
	c.CreatedAt = time.Unix(created, 0).UTC()
	c.UpdatedAt = time.Unix(updated, 0).UTC()
	return &c, nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func openCycle(ctx context.Context, q queryer, userID int64, symbol string) (*model.TradeCycle, error) {
	c, err := scanCycle(q.QueryRowContext(ctx,
		`SELECT `+cycleColumns+` FROM trade_cycles WHERE user_id = ? AND symbol = ? AND status = 'OPEN'`,
		userID, symbol))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite query open cycle: %w", err)
	}
	return c, nil
}

// GetOpenCycle returns the OPEN cycle, or nil when there is none.
func (s *Store) GetOpenCycle(ctx context.Context, userID int64, symbol string) (*model.TradeCycle, error) {
	return openCycle(ctx, s.db, userID, symbol)
}

// CreateCycle opens cycle max(cycle_number)+1 and its first tracking row in
// one transaction.
func (s *Store) CreateCycle(ctx context.Context, req model.OpenRequest) (*model.TradeCycle, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	existing, err := openCycle(ctx, tx, req.UserID, req.Symbol)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, model.NewError(model.CodeCycleAlreadyOpen, req.Symbol, "cycle #%d is still open", existing.CycleNumber)
	}

	var maxNumber sql.NullInt64
	if err := tx.QueryRowContext(ctx,
		`SELECT MAX(cycle_number) FROM trade_cycles WHERE user_id = ? AND symbol = ?`,
		req.UserID, req.Symbol,
	).Scan(&maxNumber); err != nil {
		return nil, fmt.Errorf("sqlite max cycle_number: %w", err)
	}

	now := s.now()
	c, rec, err := cycle.Open(req, int(maxNumber.Int64)+1, now)
	if err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO trade_cycles (user_id, symbol, cycle_number, status, buy_date, buy_price, buy_rsi,
			highest_price_after_buy, tsl_trigger_price, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.UserID, c.Symbol, c.CycleNumber, string(c.Status), c.BuyDate.Format(model.DateLayout), c.BuyPrice, c.BuyRSI,
		c.HighestPriceAfterBuy, c.TSLTriggerPrice, now.Unix(), now.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.NewError(model.CodeCycleAlreadyOpen, req.Symbol, "a cycle is already open")
		}
		return nil, fmt.Errorf("sqlite insert cycle: %w", err)
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("sqlite cycle id: %w", err)
	}

	rec.CycleID = c.ID
	if err := insertTracking(ctx, tx, &rec); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		if isUniqueViolation(err) {
			return nil, model.NewError(model.CodeCycleAlreadyOpen, req.Symbol, "a cycle is already open")
		}
		return nil, fmt.Errorf("sqlite commit: %w", err)
	}
	// Round-trip through the column precision.
	c.CreatedAt = time.Unix(now.Unix(), 0).UTC()
	c.UpdatedAt = c.CreatedAt
	return &c, nil
}

// insertTracking writes rec for its date and loads the stored row back into
// rec. A new high replaces an existing row for the same date; any other
// record leaves an existing row alone.
func insertTracking(ctx context.Context, tx *sql.Tx, rec *model.PriceTrackingRecord) error {
	date := rec.Date.Format(model.DateLayout)
	query := `
		INSERT INTO price_tracking (cycle_id, date, close_price, tsl_price, is_new_high, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (cycle_id, date) DO NOTHING`
	if rec.IsNewHigh {
		query = `
		INSERT INTO price_tracking (cycle_id, date, close_price, tsl_price, is_new_high, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (cycle_id, date) DO UPDATE SET
			close_price = excluded.close_price,
			tsl_price = excluded.tsl_price,
			is_new_high = 1`
	}
	if _, err := tx.ExecContext(ctx, query,
		rec.CycleID, date, rec.ClosePrice, rec.TSLPrice, rec.IsNewHigh, rec.CreatedAt.Unix()); err != nil {
		return fmt.Errorf("sqlite upsert tracking: %w", err)
	}

	var created int64
	err := tx.QueryRowContext(ctx, `
		SELECT id, close_price, tsl_price, is_new_high, created_at
		FROM price_tracking WHERE cycle_id = ? AND date = ?
	`, rec.CycleID, date).Scan(&rec.ID, &rec.ClosePrice, &rec.TSLPrice, &rec.IsNewHigh, &created)
	if err != nil {
		return fmt.Errorf("sqlite reload tracking: %w", err)
	}
	rec.CreatedAt = time.Unix(created, 0).UTC()
	return nil
}

// UpdateTSL replays req.Points against the OPEN cycle, persisting the new
// high-water mark and one tracking row per date.
func (s *Store) UpdateTSL(ctx context.Context, req model.TrackRequest) (*model.TrackResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	c, err := openCycle(ctx, tx, req.UserID, req.Symbol)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, model.NewError(model.CodeNoOpenCycle, req.Symbol, "no open cycle to track")
	}

	now := s.now()
	res, err := cycle.Apply(c, req, now)
	if err != nil {
		return nil, err
	}

	if res.NewHigh {
		if _, err := tx.ExecContext(ctx, `
			UPDATE trade_cycles SET highest_price_after_buy = ?, tsl_trigger_price = ?, updated_at = ?
			WHERE id = ? AND status = 'OPEN'
		`, c.HighestPriceAfterBuy, c.TSLTriggerPrice, now.Unix(), c.ID); err != nil {
			return nil, fmt.Errorf("sqlite update tsl: %w", err)
		}
	}
	for i := range res.Records {
		if err := insertTracking(ctx, tx, &res.Records[i]); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite commit: %w", err)
	}
	return res, nil
}

// CloseCycle closes the OPEN cycle and returns it with profit/loss filled in.
func (s *Store) CloseCycle(ctx context.Context, req model.CloseRequest) (*model.TradeCycle, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite begin: %w", err)
	}
	defer tx.Rollback()

	c, err := openCycle(ctx, tx, req.UserID, req.Symbol)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, model.NewError(model.CodeNoOpenCycle, req.Symbol, "no open cycle to sell")
	}

	now := s.now()
	if err := cycle.Close(c, req, now); err != nil {
		return nil, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE trade_cycles SET status = ?, sell_date = ?, sell_price = ?, sell_rsi = ?,
			profit_loss = ?, profit_loss_percent = ?, sell_reason = ?, updated_at = ?
		WHERE id = ? AND status = 'OPEN'
	`, string(c.Status), c.SellDate.Format(model.DateLayout), *c.SellPrice, *c.SellRSI,
		*c.ProfitLoss, *c.ProfitLossPercent, c.SellReason, now.Unix(), c.ID)
	if err != nil {
		return nil, fmt.Errorf("sqlite close cycle: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return nil, model.NewError(model.CodeNoOpenCycle, req.Symbol, "cycle closed concurrently")
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite commit: %w", err)
	}
	c.UpdatedAt = time.Unix(now.Unix(), 0).UTC()
	return c, nil
}

// ListCycles returns a user's cycles newest first; symbol "" means all.
func (s *Store) ListCycles(ctx context.Context, userID int64, symbol string) ([]model.TradeCycle, error) {
	query := `SELECT ` + cycleColumns + ` FROM trade_cycles WHERE user_id = ?`
	args := []any{userID}
	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, symbol)
	}
	query += ` ORDER BY id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite query cycles: %w", err)
	}
	defer rows.Close()

	out := []model.TradeCycle{}
	for rows.Next() {
		c, err := scanCycle(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite scan cycle: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ListTracking returns a cycle's tracking rows in date order. The cycle must
// belong to userID.
func (s *Store) ListTracking(ctx context.Context, userID, cycleID int64) ([]model.PriceTrackingRecord, error) {
	var owner int64
	err := s.db.QueryRowContext(ctx, `SELECT user_id FROM trade_cycles WHERE id = ?`, cycleID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != userID) {
		return nil, model.NewError(model.CodeNoData, "", "cycle %d not found", cycleID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite query cycle owner: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, cycle_id, date, close_price, tsl_price, is_new_high, created_at
		FROM price_tracking
		WHERE cycle_id = ?
		ORDER BY date ASC
	`, cycleID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query tracking: %w", err)
	}
	defer rows.Close()

	out := []model.PriceTrackingRecord{}
	for rows.Next() {
		var r model.PriceTrackingRecord
		var date string
		var created int64
		if err := rows.Scan(&r.ID, &r.CycleID, &date, &r.ClosePrice, &r.TSLPrice, &r.IsNewHigh, &created); err != nil {
			return nil, fmt.Errorf("sqlite scan tracking: %w", err)
		}
		if r.Date, err = model.ParseDay(date); err != nil {
			return nil, fmt.Errorf("tracking %d date: %w", r.ID, err)
		}
		r.CreatedAt = time.Unix(created, 0).UTC()
		out = append(out, r)
	}
	return out, rows.Err()
}
