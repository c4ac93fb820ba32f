package kucoin

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/Kucoin/kucoin-go-sdk"
	"github.com/spooky-finn/cryptowave/domain"
	"github.com/spooky-finn/cryptowave/infrastructure/logger"
)

var log = logger.New("kucoin")

const DefaultEndpoint = "https://api.kucoin.com"

type Credentials struct {
	Key        string
	Secret     string
	Passphrase string
}

type KucoinSyncAPI struct {
	apiService *kucoin.ApiService
}

func NewKucoinSyncAPI(endpoint string, creds Credentials) *KucoinSyncAPI {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &KucoinSyncAPI{
		apiService: kucoin.NewApiService(
			kucoin.ApiBaseURIOption(endpoint),
			kucoin.ApiKeyOption(creds.Key),
			kucoin.ApiSecretOption(creds.Secret),
			kucoin.ApiPassPhraseOption(creds.Passphrase),
		),
	}
}

type OrderBookSnapshot struct {
	Sequence string     `json:"sequence"`
	Time     int64      `json:"time"`
	Bids     [][]string `json:"bids"`
	Asks     [][]string `json:"asks"`
}

// WsConnOpts requests a public websocket token and the instance servers.
func (api *KucoinSyncAPI) WsConnOpts() (*kucoin.WebSocketTokenModel, error) {
	resp, err := api.apiService.WebSocketPublicToken()
	if err != nil {
		return nil, fmt.Errorf("failed to get ws connection options: %w", err)
	}
	if !resp.ApiSuccessful() {
		return nil, fmt.Errorf("failed to get ws connection options: code=%s msg=%s", resp.Code, resp.Message)
	}

	data := &kucoin.WebSocketTokenModel{}
	if err = json.Unmarshal(resp.RawData, data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response body: %w, response: %s", err, resp.Message)
	}

	return data, nil
}

func (api *KucoinSyncAPI) OrderBookSnapshot(ctx context.Context, symbol *domain.MarketSymbol, limit int) (*domain.OrderBookSnapshot, error) {
	type result struct {
		snapshot *domain.OrderBookSnapshot
		err      error
	}

	// the SDK call takes no context
	done := make(chan result, 1)
	go func() {
		snapshot, err := api.fetchSnapshot(symbol, limit)
		done <- result{snapshot, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: kucoin %s: %v", domain.ErrSnapshotUnavailable, symbol, ctx.Err())
	case r := <-done:
		if r.err != nil {
			return nil, fmt.Errorf("%w: kucoin %s: %v", domain.ErrSnapshotUnavailable, symbol, r.err)
		}
		return r.snapshot, nil
	}
}

func (api *KucoinSyncAPI) fetchSnapshot(symbol *domain.MarketSymbol, limit int) (*domain.OrderBookSnapshot, error) {
	s := strings.ToUpper(symbol.Join("-"))
	resp, err := api.apiService.AggregatedFullOrderBookV3(s)
	if err != nil {
		return nil, fmt.Errorf("failed to get order book snapshot: %w", err)
	}
	if !resp.ApiSuccessful() {
		return nil, fmt.Errorf("failed to get order book snapshot: code=%s msg=%s", resp.Code, resp.Message)
	}

	data := &OrderBookSnapshot{}
	if err = json.Unmarshal(resp.RawData, data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response body: %w, response: %s", err, resp.RawData)
	}

	lastUpdId, err := strconv.ParseInt(data.Sequence, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("failed to convert sequence to int: %w, response: %s", err, resp.RawData)
	}

	bids, err := domain.ParsePriceLevels(truncate(data.Bids, limit))
	if err != nil {
		return nil, err
	}
	asks, err := domain.ParsePriceLevels(truncate(data.Asks, limit))
	if err != nil {
		return nil, err
	}

	return &domain.OrderBookSnapshot{
		Source:       domain.OrderBookSource_Provider,
		LastUpdateId: lastUpdId,
		Bids:         bids,
		Asks:         asks,
	}, nil
}

func truncate(levels [][]string, limit int) [][]string {
	if limit > 0 && len(levels) > limit {
		return levels[:limit]
	}
	return levels
}
