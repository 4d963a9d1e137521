package sim

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trademaker/pkg/exchange"
)

func TestSnapshot_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := New("bybit", Options{
		InitialFunds: map[string]float64{"USD": 10000},
		FeeRate:      0.001,
		Leverage:     10,
		Persist:      true,
		StorageDir:   dir,
	})
	require.NoError(t, err, "New should not error")

	require.NoError(t, s.PlaceOrder(ctx, "BTC/USD", exchange.SideBuy, 1, 100), "open long")
	require.NoError(t, s.PlaceOrder(ctx, "ADA/USD", exchange.SideSell, 50, 0.85), "open short")
	_, err = s.ClosePosition(ctx, "BTC/USD", exchange.PositionLong, 0.25, 101)
	require.NoError(t, err, "partial close")

	reloaded, err := New("bybit", Options{
		InitialFunds: map[string]float64{"USD": 1}, // ignored: snapshot wins
		FeeRate:      0.001,
		Leverage:     10,
		Persist:      true,
		StorageDir:   dir,
	})
	require.NoError(t, err, "reload should not error")

	assert.InDelta(t, s.Balance("USD"), reloaded.Balance("USD"), 1e-9, "real balance survives restart")
	assert.InDelta(t, s.Loaned("USD"), reloaded.Loaned("USD"), 1e-9, "loaned balance survives restart")
	assert.Equal(t, s.Position("BTC/USD"), reloaded.Position("BTC/USD"), "BTC position survives restart")
	assert.Equal(t, s.Position("ADA/USD"), reloaded.Position("ADA/USD"), "ADA position survives restart")
	require.Len(t, reloaded.Orders(), 3, "order history survives restart")
	assert.Equal(t, s.Orders()[2].ID, reloaded.Orders()[2].ID, "order ids survive restart")
}

func TestSnapshot_FileShape(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := New("binance", Options{
		InitialFunds: map[string]float64{"USD": 10000},
		FeeRate:      0,
		Leverage:     10,
		Persist:      true,
		StorageDir:   dir,
	})
	require.NoError(t, err, "New should not error")
	require.NoError(t, s.PlaceOrder(ctx, "BTC-USD", exchange.SideBuy, 1, 100), "open")

	raw, err := os.ReadFile(filepath.Join(dir, "binance_state.json"))
	require.NoError(t, err, "snapshot file should exist")

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &doc), "snapshot should be a JSON object")
	for _, key := range []string{"real_balance", "loaned_balance", "positions", "orders"} {
		assert.Contains(t, doc, key, "snapshot top-level key")
	}

	var positions map[string]exchange.Position
	require.NoError(t, json.Unmarshal(doc["positions"], &positions), "positions decode")
	assert.Contains(t, positions, "BTC/USD", "positions are keyed by the canonical symbol")

	_, err = os.Stat(filepath.Join(dir, "binance_state.json.tmp"))
	assert.True(t, os.IsNotExist(err), "temp file is renamed away after the write")
}

func TestSnapshot_NoPersistWritesNothing(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := New("bybit", Options{
		InitialFunds: map[string]float64{"USD": 10000},
		StorageDir:   dir,
	})
	require.NoError(t, err, "New should not error")
	require.NoError(t, s.PlaceOrder(ctx, "BTC/USD", exchange.SideBuy, 1, 100), "open")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err, "read dir")
	assert.Empty(t, entries, "without persistence no snapshot is written")
}

func TestSnapshot_HardResetPersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := New("bybit", Options{
		InitialFunds: map[string]float64{"USD": 10000},
		Persist:      true,
		StorageDir:   dir,
	})
	require.NoError(t, err, "New should not error")
	require.NoError(t, s.PlaceOrder(ctx, "BTC/USD", exchange.SideBuy, 1, 100), "open")
	require.NoError(t, s.HardReset(ctx, map[string]float64{"USD": 777}), "reset")

	reloaded, err := New("bybit", Options{Persist: true, StorageDir: dir})
	require.NoError(t, err, "reload")
	assert.InDelta(t, 777, reloaded.Balance("USD"), 1e-9, "reset state is what the snapshot holds")
	assert.Empty(t, reloaded.Orders(), "reset clears the persisted order history")
}
