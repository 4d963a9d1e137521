package journal

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterWritePair(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)
	w.nowFn = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	path, err := w.WritePair(&PairRecord{
		Symbol:    "BTC/USD",
		BuyVenue:  "bybit",
		SellVenue: "binance",
		Amount:    1,
		LongPnL:   0.5,
		ShortPnL:  0.0999,
		TotalPnL:  0.5999,
	})
	require.NoError(t, err, "write should succeed")
	assert.Equal(t, filepath.Join(dir, "pair_20250601_120000_00001.json"), path, "deterministic file name")

	raw, err := os.ReadFile(path)
	require.NoError(t, err, "record readable")
	var rec PairRecord
	require.NoError(t, json.Unmarshal(raw, &rec), "record is valid JSON")
	assert.Equal(t, "BTC/USD", rec.Symbol, "symbol round-trips")
	assert.InDelta(t, 0.5999, rec.TotalPnL, 1e-9, "pnl round-trips")
	assert.False(t, rec.Timestamp.IsZero(), "timestamp stamped on write")

	// Sequence numbers advance per writer.
	second, err := w.WritePair(&PairRecord{Symbol: "ADA/USD"})
	require.NoError(t, err, "second write")
	assert.Contains(t, second, "_00002.json", "sequence increments")
}

func TestWriterRejectsNil(t *testing.T) {
	w := NewWriter(t.TempDir())
	_, err := w.WritePair(nil)
	assert.Error(t, err, "nil record rejected")
}
