package kucoin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/spooky-finn/cryptowave/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRESTServer(t *testing.T, handler http.HandlerFunc) *KucoinSyncAPI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewKucoinSyncAPI(srv.URL, Credentials{})
}

func writeData(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code": "200000",
		"data": data,
	})
}

func TestKucoinSyncAPI_OrderBookSnapshot(t *testing.T) {
	var gotSymbol string
	api := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotSymbol = r.URL.Query().Get("symbol")
		writeData(w, map[string]interface{}{
			"sequence": "3262786978",
			"time":     1550653727731,
			"bids":     [][]string{{"6500.12", "0.45054140"}, {"6500.11", "0.45054140"}, {"6500.10", "1"}},
			"asks":     [][]string{{"6500.16", "0.57753524"}, {"6500.15", "0.57753524"}},
		})
	})

	symbol, _ := domain.NewMarketSymbol("btc", "usdt")
	snapshot, err := api.OrderBookSnapshot(context.Background(), symbol, 2)
	require.NoError(t, err)

	assert.Equal(t, "BTC-USDT", gotSymbol)
	assert.Equal(t, domain.OrderBookSource_Provider, snapshot.Source)
	assert.Equal(t, int64(3262786978), snapshot.LastUpdateId)
	assert.Len(t, snapshot.Bids, 2)
	assert.Len(t, snapshot.Asks, 2)
	assert.Equal(t, "6500.12", snapshot.Bids[0].Price.String())
}

func TestKucoinSyncAPI_OrderBookSnapshot_Errors(t *testing.T) {
	symbol, _ := domain.NewMarketSymbol("btc", "usdt")

	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "api error code",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"code":"400100","msg":"invalid symbol"}`))
			},
		},
		{
			name: "bad sequence",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeData(w, map[string]interface{}{"sequence": "abc", "bids": [][]string{}, "asks": [][]string{}})
			},
		},
		{
			name: "bad level",
			handler: func(w http.ResponseWriter, r *http.Request) {
				writeData(w, map[string]interface{}{"sequence": "1", "bids": [][]string{{"x", "1"}}, "asks": [][]string{}})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newRESTServer(t, tt.handler)
			_, err := api.OrderBookSnapshot(context.Background(), symbol, 10)
			assert.ErrorIs(t, err, domain.ErrSnapshotUnavailable)
		})
	}
}

func TestKucoinSyncAPI_OrderBookSnapshot_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	api := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
		writeData(w, map[string]interface{}{"sequence": "1"})
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	symbol, _ := domain.NewMarketSymbol("btc", "usdt")
	_, err := api.OrderBookSnapshot(ctx, symbol, 10)
	assert.ErrorIs(t, err, domain.ErrSnapshotUnavailable)
}

func TestKucoinSyncAPI_WsConnOpts(t *testing.T) {
	var gotPath string
	api := newRESTServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		writeData(w, map[string]interface{}{
			"token": "token-1",
			"instanceServers": []map[string]interface{}{{
				"endpoint":     "wss://ws-api-spot.kucoin.com/",
				"protocol":     "websocket",
				"encrypt":      true,
				"pingInterval": 18000,
				"pingTimeout":  10000,
			}},
		})
	})

	opts, err := api.WsConnOpts()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/bullet-public", gotPath)
	assert.Equal(t, "token-1", opts.Token)
	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "wss://ws-api-spot.kucoin.com/", opts.Servers[0].Endpoint)
}
