package processor

import (
	"context"
	"time"

	"trademaker/pkg/journal"
)

// OpenRecord describes a freshly opened paired trade.
type OpenRecord struct {
	Symbol    string
	BuyVenue  string
	BuyPrice  float64
	SellVenue string
	SellPrice float64
	Amount    float64
	SpreadPct float64
	OpenedAt  time.Time
}

// CloseRecord describes a completed paired trade with both realized legs.
type CloseRecord struct {
	Symbol    string
	BuyVenue  string
	BuyExit   float64
	SellVenue string
	SellExit  float64
	Amount    float64
	LongPnL   float64
	ShortPnL  float64
	TotalPnL  float64
	ClosedAt  time.Time
}

// TradeRecorder mirrors paired-trade lifecycle events into external storage.
// Recorder failures are logged and never affect the trading path.
type TradeRecorder interface {
	RecordOpen(ctx context.Context, rec OpenRecord) error
	RecordClose(ctx context.Context, rec CloseRecord) error
}

type noopTradeRecorder struct{}

func (noopTradeRecorder) RecordOpen(ctx context.Context, rec OpenRecord) error { return nil }
func (noopTradeRecorder) RecordClose(ctx context.Context, rec CloseRecord) error { return nil }

// Observer receives processing telemetry. The default is a no-op so the
// processor always has a hook to call.
type Observer interface {
	TickProcessed()
	Opportunity(kind string)
	OrderPlaced(venue, side string)
	PairClosed(pnl float64)
	ProcessError(kind string)
}

type noopObserver struct{}

func (noopObserver) TickProcessed() {}
func (noopObserver) Opportunity(kind string) {}
func (noopObserver) OrderPlaced(venue, side string) {}
func (noopObserver) PairClosed(pnl float64) {}
func (noopObserver) ProcessError(kind string) {}

// Option customises Processor construction.
type Option func(*Processor)

// WithTradeRecorder injects a recorder used to mirror trade events.
func WithTradeRecorder(recorder TradeRecorder) Option {
	return func(p *Processor) {
		if recorder == nil {
			p.recorder = noopTradeRecorder{}
			return
		}
		p.recorder = recorder
	}
}

// WithObserver injects a telemetry observer.
func WithObserver(observer Observer) Option {
	return func(p *Processor) {
		if observer == nil {
			p.observer = noopObserver{}
			return
		}
		p.observer = observer
	}
}

// WithJournal enables best-effort pair journaling into the given writer.
func WithJournal(writer *journal.Writer) Option {
	return func(p *Processor) {
		p.journal = writer
	}
}
