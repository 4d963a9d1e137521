package backtest

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"trademaker/pkg/exchange"
)

// TickFeeder replays an in-memory tick slice.
type TickFeeder struct {
	ticks []exchange.Tick
	idx   int
}

// NewTickFeeder constructs a feeder over a static tick series.
func NewTickFeeder(ticks []exchange.Tick) *TickFeeder {
	return &TickFeeder{ticks: ticks}
}

func (f *TickFeeder) Next(ctx context.Context) (*exchange.Tick, bool, error) {
	if f.idx >= len(f.ticks) {
		return nil, false, nil
	}
	tick := f.ticks[f.idx]
	f.idx++
	return &tick, true, nil
}

// LoadTickFile reads a JSON-lines tick recording (one broker payload per
// line, blank lines skipped).
func LoadTickFile(path string) ([]exchange.Tick, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("backtest: open tick file: %w", err)
	}
	defer file.Close()

	var ticks []exchange.Tick
	scanner := bufio.NewScanner(file)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		tick, err := exchange.ParseTick(raw)
		if err != nil {
			return nil, fmt.Errorf("backtest: tick file line %d: %w", line, err)
		}
		ticks = append(ticks, *tick)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("backtest: read tick file: %w", err)
	}
	return ticks, nil
}
