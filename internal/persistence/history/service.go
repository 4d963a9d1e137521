// Package history mirrors paired-trade lifecycle events into Postgres. The
// mirror is strictly observational: failures are surfaced to the caller for
// logging but never block the trading path, and the service degrades to a
// no-op when no DSN is configured.
package history

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/zeromicro/go-zero/core/stores/postgres"
	"github.com/zeromicro/go-zero/core/stores/sqlx"

	"trademaker/pkg/processor"
)

var _ processor.TradeRecorder = (*Service)(nil)

// Service is a TradeRecorder backed by Postgres.
type Service struct {
	conn sqlx.SqlConn
}

// NewService connects to Postgres. An empty DSN yields a nil service, which
// callers should replace with the processor's no-op recorder.
func NewService(dsn string) *Service {
	if strings.TrimSpace(dsn) == "" {
		return nil
	}
	return &Service{conn: postgres.New(dsn)}
}

// RecordOpen inserts one row per opened pair. Duplicate ids are tolerated.
func (s *Service) RecordOpen(ctx context.Context, rec processor.OpenRecord) error {
	if s == nil || s.conn == nil {
		return nil
	}
	const statement = `
INSERT INTO public.pair_trades (
    id, symbol, buy_venue, buy_price, sell_venue, sell_price,
    amount, spread_pct, status, opened_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 'open', $9)`
	_, err := s.conn.ExecCtx(ctx, statement,
		uuid.NewString(),
		rec.Symbol,
		rec.BuyVenue,
		rec.BuyPrice,
		rec.SellVenue,
		rec.SellPrice,
		rec.Amount,
		rec.SpreadPct,
		timestampOrNow(rec.OpenedAt),
	)
	if isUniqueViolation(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("history: record open %s/%s-%s: %w", rec.Symbol, rec.BuyVenue, rec.SellVenue, err)
	}
	return nil
}

// RecordClose transitions the pair row to closed and appends a fill row with
// both realized legs.
func (s *Service) RecordClose(ctx context.Context, rec processor.CloseRecord) error {
	if s == nil || s.conn == nil {
		return nil
	}
	closedAt := timestampOrNow(rec.ClosedAt)
	const update = `
UPDATE public.pair_trades
SET status = 'closed', closed_at = $4, total_pnl = $5
WHERE symbol = $1 AND buy_venue = $2 AND sell_venue = $3 AND status = 'open'`
	if _, err := s.conn.ExecCtx(ctx, update,
		rec.Symbol, rec.BuyVenue, rec.SellVenue, closedAt, rec.TotalPnL); err != nil {
		return fmt.Errorf("history: close pair %s/%s-%s: %w", rec.Symbol, rec.BuyVenue, rec.SellVenue, err)
	}

	const insert = `
INSERT INTO public.pair_fills (
    id, symbol, buy_venue, buy_exit, sell_venue, sell_exit,
    amount, long_pnl, short_pnl, total_pnl, closed_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.conn.ExecCtx(ctx, insert,
		uuid.NewString(),
		rec.Symbol,
		rec.BuyVenue,
		rec.BuyExit,
		rec.SellVenue,
		rec.SellExit,
		rec.Amount,
		rec.LongPnL,
		rec.ShortPnL,
		rec.TotalPnL,
		closedAt,
	)
	if isUniqueViolation(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("history: record fill %s/%s-%s: %w", rec.Symbol, rec.BuyVenue, rec.SellVenue, err)
	}
	return nil
}

func timestampOrNow(ts time.Time) time.Time {
	if ts.IsZero() {
		return time.Now().UTC()
	}
	return ts.UTC()
}

func isUniqueViolation(err error) bool {
	pgErr, ok := err.(*pq.Error)
	return ok && pgErr.Code == "23505"
}
