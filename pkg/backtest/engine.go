package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"trademaker/pkg/exchange"
	"trademaker/pkg/processor"
)

// Feeder yields sequential ticks for replay.
type Feeder interface {
	Next(ctx context.Context) (*exchange.Tick, bool, error)
}

// Engine replays a recorded tick stream through a coordinator and summarizes
// the session.
type Engine struct {
	Feeder    Feeder
	Processor *processor.Processor
	Venues    map[string]exchange.Venue

	// CloseOnFinish closes every remaining pair at the last known prices
	// once the feeder is exhausted.
	CloseOnFinish bool

	// Optional: write a JSON report to this path.
	OutputPath string
}

// VenueSummary reports the end-of-run state of one venue.
type VenueSummary struct {
	Orders   int                `json:"orders"`
	Balances map[string]float64 `json:"balances"`
	Realized float64            `json:"realized_pnl"`
}

// Result summarizes a replay run.
type Result struct {
	Ticks     int                     `json:"ticks"`
	OpenPairs int                     `json:"open_pairs"`
	Venues    map[string]VenueSummary `json:"venues"`
}

func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.Feeder == nil || e.Processor == nil || len(e.Venues) == 0 {
		return nil, fmt.Errorf("backtest: engine not fully configured")
	}

	res := &Result{Venues: make(map[string]VenueSummary, len(e.Venues))}
	for {
		tick, ok, err := e.Feeder.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		res.Ticks++
		if err := e.Processor.ProcessMessage(ctx, tick); err != nil {
			return nil, err
		}
	}

	if e.CloseOnFinish {
		if err := e.Processor.CloseAllPositions(ctx); err != nil {
			return nil, err
		}
	}
	res.OpenPairs = e.Processor.OpenPairCount()

	for name, venue := range e.Venues {
		res.Venues[name] = summarizeVenue(venue)
	}

	if e.OutputPath != "" {
		if err := writeReport(e.OutputPath, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func summarizeVenue(venue exchange.Venue) VenueSummary {
	orders := venue.Orders()
	summary := VenueSummary{
		Orders:   len(orders),
		Balances: make(map[string]float64),
	}
	for _, order := range orders {
		if order.PnL != nil {
			summary.Realized += *order.PnL
		}
		if _, quote, err := exchange.SplitSymbol(order.Symbol); err == nil {
			summary.Balances[quote] = venue.Balance(quote)
		}
	}
	return summary
}

func writeReport(path string, r *Result) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
