package exchange

import "context"

// Venue exposes the trading surface of one simulated exchange. A Venue is
// exclusively owned by a single coordinator for the process lifetime; calls
// are never issued concurrently.
type Venue interface {
	// Identity.
	Name() string
	Leverage() int

	// Trading. Both operations persist state before returning when the
	// venue was constructed with persistence enabled.
	PlaceOrder(ctx context.Context, symbol string, side Side, amount, price float64) error
	ClosePosition(ctx context.Context, symbol string, side PositionSide, amount, price float64) (*CloseResult, error)

	// HardReset replaces real balances with the provided funds, zeroes
	// loaned balances and clears positions and order history.
	HardReset(ctx context.Context, initialFunds map[string]float64) error

	// Read accessors. Returned values are copies.
	Balance(asset string) float64
	Loaned(asset string) float64
	Position(symbol string) Position
	Orders() []OrderRecord
}
