package processor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"trademaker/pkg/detector"
	"trademaker/pkg/exchange"
	"trademaker/pkg/journal"
)

const defaultBaseTradeAmount = 10.0

// Config tunes the coordinator.
type Config struct {
	// BaseTradeAmount is the per-leg quote-asset notional before leverage.
	BaseTradeAmount float64
}

// Processor fuses detector output with venue state. It opens offsetting
// long/short legs on two venues when a dislocation is signalled and closes
// both legs when prices reconverge. Ticks are processed serially in arrival
// order; the caller does not advance until ProcessMessage returns.
type Processor struct {
	venues          map[string]exchange.Venue
	detector        *detector.Detector
	tracker         detector.Tracker
	baseTradeAmount float64

	recorder TradeRecorder
	observer Observer
	journal  *journal.Writer
}

// New constructs a coordinator owning the provided venues and detector.
func New(venues map[string]exchange.Venue, det *detector.Detector, cfg Config, opts ...Option) *Processor {
	baseTradeAmount := cfg.BaseTradeAmount
	if baseTradeAmount <= 0 {
		baseTradeAmount = defaultBaseTradeAmount
	}
	p := &Processor{
		venues:          venues,
		detector:        det,
		tracker:         make(detector.Tracker),
		baseTradeAmount: baseTradeAmount,
		recorder:        noopTradeRecorder{},
		observer:        noopObserver{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessMessage handles one tick: price update, detection, then execution
// of every emitted opportunity in order. Venue-level failures are logged and
// swallowed so the stream keeps flowing; snapshot I/O failures propagate.
func (p *Processor) ProcessMessage(ctx context.Context, tick *exchange.Tick) error {
	symbol := tick.Symbol()
	p.detector.UpdatePrices(tick)
	p.observer.TickProcessed()

	for _, op := range p.detector.DetectOpportunity(symbol, p.tracker) {
		p.observer.Opportunity(string(op.Kind))
		var err error
		switch op.Kind {
		case detector.KindOpen:
			err = p.executeArbitrage(ctx, op)
		case detector.KindClose:
			err = p.closePositions(ctx, op)
		}
		if err == nil {
			continue
		}
		if errors.Is(err, exchange.ErrSnapshotIO) {
			return err
		}
		p.observer.ProcessError(string(op.Kind))
		logx.WithContext(ctx).Errorf("processor: %s failed pair=%s symbol=%s err=%v", op.Kind, op.PairKey, op.Symbol, err)
	}
	return nil
}

// executeArbitrage opens the buy leg first, then the sell leg. The first leg
// is not rolled back when the second fails; the pair is only registered once
// both legs are placed, and the active-pair key is released on failure.
func (p *Processor) executeArbitrage(ctx context.Context, op detector.Opportunity) error {
	buyVenue, ok := p.venues[op.BuyVenue]
	if !ok {
		p.detector.Discard(op.PairKey)
		return fmt.Errorf("processor: unknown venue %q", op.BuyVenue)
	}
	sellVenue, ok := p.venues[op.SellVenue]
	if !ok {
		p.detector.Discard(op.PairKey)
		return fmt.Errorf("processor: unknown venue %q", op.SellVenue)
	}

	quoteAmount := p.baseTradeAmount * float64(buyVenue.Leverage())
	baseAmount := quoteAmount / op.BuyPrice

	if err := buyVenue.PlaceOrder(ctx, op.Symbol, exchange.SideBuy, baseAmount, op.BuyPrice); err != nil {
		p.detector.Discard(op.PairKey)
		return fmt.Errorf("buy leg on %s: %w", op.BuyVenue, err)
	}
	p.observer.OrderPlaced(op.BuyVenue, string(exchange.SideBuy))

	if err := sellVenue.PlaceOrder(ctx, op.Symbol, exchange.SideSell, baseAmount, op.SellPrice); err != nil {
		p.detector.Discard(op.PairKey)
		return fmt.Errorf("sell leg on %s: %w", op.SellVenue, err)
	}
	p.observer.OrderPlaced(op.SellVenue, string(exchange.SideSell))

	if p.tracker[op.PairKey] == nil {
		p.tracker[op.PairKey] = make(map[string]detector.PairPosition)
	}
	p.tracker[op.PairKey][op.Symbol] = detector.PairPosition{
		BuyVenue:  op.BuyVenue,
		SellVenue: op.SellVenue,
		Amount:    baseAmount,
	}

	logx.Infof("processor: opened pair=%s symbol=%s amount=%v buy=%s@%v sell=%s@%v spread=%.4f%%",
		op.PairKey, op.Symbol, baseAmount, op.BuyVenue, op.BuyPrice, op.SellVenue, op.SellPrice, op.SpreadPct)

	if err := p.recorder.RecordOpen(ctx, OpenRecord{
		Symbol:    op.Symbol,
		BuyVenue:  op.BuyVenue,
		BuyPrice:  op.BuyPrice,
		SellVenue: op.SellVenue,
		SellPrice: op.SellPrice,
		Amount:    baseAmount,
		SpreadPct: op.SpreadPct,
		OpenedAt:  time.Now().UTC(),
	}); err != nil {
		logx.WithContext(ctx).Errorf("processor: record open pair=%s err=%v", op.PairKey, err)
	}
	return nil
}

// closePositions closes both legs of a tracked pair. The tracker, not the
// opportunity, is authoritative for the amount. On success the pair leaves
// both the tracker and the detector's active set.
func (p *Processor) closePositions(ctx context.Context, op detector.Opportunity) error {
	pair, ok := p.tracker[op.PairKey][op.Symbol]
	if !ok {
		return fmt.Errorf("processor: pair %s has no tracked position for %s", op.PairKey, op.Symbol)
	}

	buyVenue := p.venues[pair.BuyVenue]
	sellVenue := p.venues[pair.SellVenue]
	if buyVenue == nil || sellVenue == nil {
		return fmt.Errorf("processor: pair %s references unknown venue", op.PairKey)
	}

	longResult, err := buyVenue.ClosePosition(ctx, op.Symbol, exchange.PositionLong, pair.Amount, op.BuyPrice)
	if err != nil {
		return fmt.Errorf("close long on %s: %w", pair.BuyVenue, err)
	}
	shortResult, err := sellVenue.ClosePosition(ctx, op.Symbol, exchange.PositionShort, pair.Amount, op.SellPrice)
	if err != nil {
		return fmt.Errorf("close short on %s: %w", pair.SellVenue, err)
	}

	delete(p.tracker[op.PairKey], op.Symbol)
	if len(p.tracker[op.PairKey]) == 0 {
		delete(p.tracker, op.PairKey)
	}
	p.detector.Discard(op.PairKey)

	total := longResult.PnL + shortResult.PnL
	p.observer.PairClosed(total)
	logx.Infof("processor: closed pair=%s symbol=%s amount=%v long_pnl=%v short_pnl=%v total=%v",
		op.PairKey, op.Symbol, pair.Amount, longResult.PnL, shortResult.PnL, total)

	if p.journal != nil {
		if _, err := p.journal.WritePair(&journal.PairRecord{
			Symbol:         op.Symbol,
			BuyVenue:       pair.BuyVenue,
			SellVenue:      pair.SellVenue,
			Amount:         pair.Amount,
			LongEntry:      longResult.EntryPrice,
			LongExit:       longResult.Price,
			LongPnL:        longResult.PnL,
			ShortEntry:     shortResult.EntryPrice,
			ShortExit:      shortResult.Price,
			ShortPnL:       shortResult.PnL,
			TotalPnL:       total,
			CloseSpreadPct: op.SpreadPct,
		}); err != nil {
			logx.WithContext(ctx).Errorf("processor: journal pair=%s err=%v", op.PairKey, err)
		}
	}

	if err := p.recorder.RecordClose(ctx, CloseRecord{
		Symbol:    op.Symbol,
		BuyVenue:  pair.BuyVenue,
		BuyExit:   op.BuyPrice,
		SellVenue: pair.SellVenue,
		SellExit:  op.SellPrice,
		Amount:    pair.Amount,
		LongPnL:   longResult.PnL,
		ShortPnL:  shortResult.PnL,
		TotalPnL:  total,
		ClosedAt:  time.Now().UTC(),
	}); err != nil {
		logx.WithContext(ctx).Errorf("processor: record close pair=%s err=%v", op.PairKey, err)
	}
	return nil
}

// CloseAllPositions closes every tracked pair at the last known prices. A
// pair whose legs have no price is skipped and reported in the returned
// error. Used as a best-effort shutdown hook.
func (p *Processor) CloseAllPositions(ctx context.Context) error {
	keys := make([]string, 0, len(p.tracker))
	for key := range p.tracker {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		symbols := make([]string, 0, len(p.tracker[key]))
		for symbol := range p.tracker[key] {
			symbols = append(symbols, symbol)
		}
		sort.Strings(symbols)

		for _, symbol := range symbols {
			pair := p.tracker[key][symbol]
			buyPrice, buyOK := p.detector.LatestPrice(pair.BuyVenue, symbol)
			sellPrice, sellOK := p.detector.LatestPrice(pair.SellVenue, symbol)
			if !buyOK || !sellOK {
				errs = append(errs, fmt.Errorf("processor: no price to close pair %s symbol %s", key, symbol))
				continue
			}
			err := p.closePositions(ctx, detector.Opportunity{
				Kind:      detector.KindClose,
				Symbol:    symbol,
				BuyVenue:  pair.BuyVenue,
				BuyPrice:  buyPrice,
				SellVenue: pair.SellVenue,
				SellPrice: sellPrice,
				Amount:    pair.Amount,
				PairKey:   key,
			})
			if err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// OpenPairCount reports how many paired trades are currently tracked.
func (p *Processor) OpenPairCount() int {
	count := 0
	for _, symbols := range p.tracker {
		count += len(symbols)
	}
	return count
}

// TrackedPosition returns the live paired trade for (pairKey, symbol).
func (p *Processor) TrackedPosition(pairKey, symbol string) (detector.PairPosition, bool) {
	pair, ok := p.tracker[pairKey][exchange.CanonicalSymbol(symbol)]
	return pair, ok
}
