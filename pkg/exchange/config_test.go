package exchange

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubVenue satisfies Venue for registry tests without pulling in the
// simulator package.
type stubVenue struct {
	name string
	cfg  VenueConfig
}

func (s *stubVenue) Name() string { return s.name }
func (s *stubVenue) Leverage() int { return s.cfg.Leverage }
func (s *stubVenue) PlaceOrder(ctx context.Context, symbol string, side Side, amount, price float64) error {
	return nil
}
func (s *stubVenue) ClosePosition(ctx context.Context, symbol string, side PositionSide, amount, price float64) (*CloseResult, error) {
	return &CloseResult{Symbol: symbol, Side: string(side), Amount: amount, Price: price}, nil
}
func (s *stubVenue) HardReset(ctx context.Context, initialFunds map[string]float64) error { return nil }
func (s *stubVenue) Balance(asset string) float64 { return 0 }
func (s *stubVenue) Loaned(asset string) float64 { return 0 }
func (s *stubVenue) Position(symbol string) Position { return Position{} }
func (s *stubVenue) Orders() []OrderRecord { return nil }

func init() {
	RegisterVenue("stub", func(name string, cfg *VenueConfig) (Venue, error) {
		return &stubVenue{name: name, cfg: *cfg}, nil
	})
}

const venuesYAML = `
default: bybit
venues:
  bybit:
    type: stub
    fee_rate: 0.001
    leverage: 10
    persist: true
    storage_dir: storage
    initial_funds:
      USD: 10000
  binance:
    type: stub
    fee_rate: 0.002
    leverage: 5
    initial_funds:
      USD: 5000
      USDT: 2500
`

func TestLoadConfigFromReader(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(venuesYAML))
	require.NoError(t, err, "valid config loads")

	assert.Equal(t, "bybit", cfg.Default, "default venue")
	require.Len(t, cfg.Venues, 2, "both venues parsed")

	bybit := cfg.Venues["bybit"]
	assert.Equal(t, "stub", bybit.Type, "venue type")
	require.NotNil(t, bybit.FeeRate, "explicit fee rate decodes")
	assert.InDelta(t, 0.001, *bybit.FeeRate, 1e-9, "fee rate")
	assert.Equal(t, 10, bybit.Leverage, "leverage")
	assert.True(t, bybit.Persist, "persist flag")
	assert.InDelta(t, 10000, bybit.InitialFunds["USD"], 1e-9, "initial funds")

	binance := cfg.Venues["binance"]
	assert.InDelta(t, 2500, binance.InitialFunds["USDT"], 1e-9, "multi-asset funds")
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{name: "no venues", yaml: `default: ""`},
		{name: "unknown default", yaml: "default: missing\nvenues:\n  bybit:\n    type: stub"},
		{name: "missing type", yaml: "venues:\n  bybit:\n    leverage: 10"},
		{name: "unknown type", yaml: "venues:\n  bybit:\n    type: nope"},
		{name: "negative fee", yaml: "venues:\n  bybit:\n    type: stub\n    fee_rate: -0.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFromReader(strings.NewReader(tt.yaml))
			assert.Error(t, err, "invalid config should be rejected")
		})
	}
}

func TestBuildVenues(t *testing.T) {
	cfg, err := LoadConfigFromReader(strings.NewReader(venuesYAML))
	require.NoError(t, err, "valid config loads")

	venues, err := cfg.BuildVenues()
	require.NoError(t, err, "venues build")
	require.Len(t, venues, 2, "one instance per configured venue")
	assert.Equal(t, "bybit", venues["bybit"].Name(), "builder receives the venue name")
	assert.Equal(t, 5, venues["binance"].Leverage(), "builder receives the venue config")
}

func TestVenueConfigEnvExpansion(t *testing.T) {
	t.Setenv("TEST_VENUE_TYPE", "stub")
	cfg, err := LoadConfigFromReader(strings.NewReader("venues:\n  bybit:\n    type: ${TEST_VENUE_TYPE}"))
	require.NoError(t, err, "env-expanded config loads")
	assert.Equal(t, "stub", cfg.Venues["bybit"].Type, "type expands from the environment")
}
