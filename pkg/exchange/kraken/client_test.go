package kraken

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSecret() string {
	return base64.StdEncoding.EncodeToString([]byte("super-secret-key-material"))
}

func TestClient_SendOrder(t *testing.T) {
	var gotPath string
	var gotHeaders http.Header
	var gotBody OrderRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotHeaders = r.Header.Clone()
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody), "request body decodes")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result":     "success",
			"sendStatus": map[string]any{"order_id": "abc-123", "status": "placed"},
		})
	}))
	defer server.Close()

	c := NewClient("api-key", testSecret(), WithBaseURL(server.URL))
	c.nowFn = func() time.Time { return time.UnixMilli(1734086400000) }

	resp, err := c.SendOrder(context.Background(), OrderRequest{
		Symbol: "PI_XBTUSD",
		Side:   "buy",
		Size:   1,
	})
	require.NoError(t, err, "send order should succeed")

	assert.Equal(t, "/derivatives/api/v3/sendorder", gotPath, "endpoint")
	assert.Equal(t, "api-key", gotHeaders.Get("APIKey"), "api key header")
	assert.Equal(t, "1734086400000", gotHeaders.Get("Nonce"), "nonce header")
	assert.NotEmpty(t, gotHeaders.Get("Authent"), "signature header")
	assert.Equal(t, "mkt", gotBody.OrderType, "zero limit price sends a market order")
	assert.Equal(t, "placed", resp.SendStatus.Status, "response decodes")
	assert.Equal(t, "abc-123", resp.SendStatus.OrderID, "order id decodes")
}

func TestClient_SendOrderLimitType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body OrderRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		assert.Equal(t, "lmt", body.OrderType, "limit price selects a limit order")
		_ = json.NewEncoder(w).Encode(map[string]any{"result": "success"})
	}))
	defer server.Close()

	c := NewClient("api-key", testSecret(), WithBaseURL(server.URL))
	_, err := c.SendOrder(context.Background(), OrderRequest{Symbol: "PI_XBTUSD", Side: "sell", Size: 2, LimitPrice: 100.5})
	assert.NoError(t, err, "limit order should succeed")
}

func TestClient_Tickers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/derivatives/api/v3/tickers", r.URL.Path, "public endpoint")
		assert.Empty(t, r.Header.Get("Authent"), "public endpoint is unsigned")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result":  "success",
			"tickers": []map[string]any{{"symbol": "PI_XBTUSD", "last": 100.5, "bid": 100.4, "ask": 100.6}},
		})
	}))
	defer server.Close()

	c := NewClient("", "", WithBaseURL(server.URL))
	tickers, err := c.Tickers(context.Background())
	require.NoError(t, err, "tickers should succeed")
	require.Len(t, tickers, 1, "one ticker decoded")
	assert.Equal(t, "PI_XBTUSD", tickers[0].Symbol, "symbol")
	assert.InDelta(t, 100.5, tickers[0].Last, 1e-9, "last price")
}

func TestClient_HTTPErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	c := NewClient("api-key", testSecret(), WithBaseURL(server.URL))
	_, err := c.Accounts(context.Background())
	assert.Error(t, err, "non-2xx status surfaces as an error")

	badSecret := NewClient("api-key", "%%%not-base64%%%", WithBaseURL(server.URL))
	_, err = badSecret.Accounts(context.Background())
	assert.Error(t, err, "undecodable secret surfaces as an error")
}
