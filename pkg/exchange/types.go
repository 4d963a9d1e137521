package exchange

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Side is the direction of an order on a venue.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// PositionSide names one leg of a margin position.
type PositionSide string

const (
	PositionLong  PositionSide = "long"
	PositionShort PositionSide = "short"
)

// PositionSideFor maps an order side to the position leg it opens.
func PositionSideFor(side Side) PositionSide {
	if side == SideSell {
		return PositionShort
	}
	return PositionLong
}

// Tick is a single normalized market-data observation delivered by the broker.
// instrument_id arrives in wire form (BASE-QUOTE); Symbol returns the
// canonical form (BASE/QUOTE).
type Tick struct {
	Timestamp    int64    `json:"timestamp"`
	Exchange     string   `json:"exchange"`
	InstrumentID string   `json:"instrument_id"`
	Price        float64  `json:"price"`
	BestBid      *float64 `json:"best_bid,omitempty"`
	BestAsk      *float64 `json:"best_ask,omitempty"`
	Volume24h    *float64 `json:"24h_volume,omitempty"`
}

// Symbol returns the canonical symbol for the tick.
func (t *Tick) Symbol() string {
	return CanonicalSymbol(t.InstrumentID)
}

// ParseTick decodes a broker delivery. Payloads missing the consumed fields
// are rejected with ErrMalformedTick.
func ParseTick(payload []byte) (*Tick, error) {
	var t Tick
	if err := json.Unmarshal(payload, &t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTick, err)
	}
	if strings.TrimSpace(t.Exchange) == "" {
		return nil, fmt.Errorf("%w: missing exchange", ErrMalformedTick)
	}
	if strings.TrimSpace(t.InstrumentID) == "" {
		return nil, fmt.Errorf("%w: missing instrument_id", ErrMalformedTick)
	}
	if t.Price <= 0 {
		return nil, fmt.Errorf("%w: price must be positive, got %v", ErrMalformedTick, t.Price)
	}
	return &t, nil
}

// CanonicalSymbol converts a wire symbol (BASE-QUOTE) into the canonical
// internal form (BASE/QUOTE). Canonical input passes through unchanged.
func CanonicalSymbol(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "-", "/")
}

// WireSymbol converts a canonical symbol back into its wire form.
func WireSymbol(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "/", "-")
}

// SplitSymbol splits a canonical symbol into base and quote assets.
func SplitSymbol(symbol string) (base, quote string, err error) {
	parts := strings.Split(CanonicalSymbol(symbol), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("exchange: invalid symbol %q", symbol)
	}
	return parts[0], parts[1], nil
}

// Position is the per-symbol state of both legs on one venue. Entry prices
// are set exactly while the matching quantity is non-zero.
type Position struct {
	Long            float64  `json:"long"`
	Short           float64  `json:"short"`
	LongEntryPrice  *float64 `json:"long_entry_price"`
	ShortEntryPrice *float64 `json:"short_entry_price"`
}

// IsFlat reports whether both legs are zero.
func (p Position) IsFlat() bool {
	return p.Long == 0 && p.Short == 0
}

// OrderRecord is one entry of a venue's order history.
type OrderRecord struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Side      string    `json:"side"`
	Amount    float64   `json:"amount"`
	Price     float64   `json:"price"`
	Fee       float64   `json:"fee"`
	PnL       *float64  `json:"pnl,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// CloseResult reports the outcome of closing (part of) a position leg.
type CloseResult struct {
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Amount     float64   `json:"amount"`
	Price      float64   `json:"price"`
	PnL        float64   `json:"pnl"`
	EntryPrice float64   `json:"entry_price"`
	ClosedAt   time.Time `json:"closed_at"`
}
