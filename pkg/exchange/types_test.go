package exchange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymbolRoundTrip(t *testing.T) {
	tests := []struct {
		wire      string
		canonical string
	}{
		{wire: "BTC-USD", canonical: "BTC/USD"},
		{wire: "ADA-USD", canonical: "ADA/USD"},
		{wire: "ETH-USDT", canonical: "ETH/USDT"},
	}
	for _, tt := range tests {
		t.Run(tt.wire, func(t *testing.T) {
			assert.Equal(t, tt.canonical, CanonicalSymbol(tt.wire), "wire to canonical")
			assert.Equal(t, tt.wire, WireSymbol(tt.canonical), "canonical back to wire")
			assert.Equal(t, tt.canonical, CanonicalSymbol(tt.canonical), "canonical input passes through")
		})
	}
}

func TestSplitSymbol(t *testing.T) {
	base, quote, err := SplitSymbol("BTC/USD")
	require.NoError(t, err, "canonical symbol splits")
	assert.Equal(t, "BTC", base, "base asset")
	assert.Equal(t, "USD", quote, "quote asset")

	base, quote, err = SplitSymbol("ADA-USD")
	require.NoError(t, err, "wire symbol splits after canonicalization")
	assert.Equal(t, "ADA", base, "base asset")
	assert.Equal(t, "USD", quote, "quote asset")

	_, _, err = SplitSymbol("BTCUSD")
	assert.Error(t, err, "symbol without separator is rejected")
	_, _, err = SplitSymbol("BTC/")
	assert.Error(t, err, "missing quote asset is rejected")
}

func TestParseTick(t *testing.T) {
	payload := []byte(`{"24h_volume": 18594708.87, "best_ask": 0.8482, "best_bid": 0.8482,
		"exchange": "bybit", "instrument_id": "ADA-USD", "price": 0.8482, "timestamp": 1734086400}`)

	tick, err := ParseTick(payload)
	require.NoError(t, err, "well-formed payload parses")
	assert.Equal(t, "bybit", tick.Exchange, "venue id")
	assert.Equal(t, "ADA-USD", tick.InstrumentID, "wire instrument id preserved")
	assert.Equal(t, "ADA/USD", tick.Symbol(), "canonical symbol derived")
	assert.InDelta(t, 0.8482, tick.Price, 1e-9, "price")
	assert.EqualValues(t, 1734086400, tick.Timestamp, "timestamp")
	require.NotNil(t, tick.BestAsk, "optional fields decode when present")
	assert.InDelta(t, 0.8482, *tick.BestAsk, 1e-9, "best ask")
}

func TestParseTickMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `{"exchange": `},
		{name: "missing exchange", payload: `{"instrument_id": "BTC-USD", "price": 100, "timestamp": 1}`},
		{name: "missing instrument", payload: `{"exchange": "bybit", "price": 100, "timestamp": 1}`},
		{name: "zero price", payload: `{"exchange": "bybit", "instrument_id": "BTC-USD", "price": 0, "timestamp": 1}`},
		{name: "negative price", payload: `{"exchange": "bybit", "instrument_id": "BTC-USD", "price": -5, "timestamp": 1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseTick([]byte(tt.payload))
			assert.ErrorIs(t, err, ErrMalformedTick, "payload should be rejected")
		})
	}
}
