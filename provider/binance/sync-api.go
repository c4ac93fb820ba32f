package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spooky-finn/cryptowave/domain"
	"github.com/spooky-finn/cryptowave/helpers"
	"github.com/spooky-finn/cryptowave/infrastructure/logger"
)

var log = logger.New("binance")

var ErrTimeout = errors.New("timeout error")

const requestTimeout = 10 * time.Second

type GenericMessage[T any] struct {
	ID     int           `json:"id"`
	Status int           `json:"status"`
	Result T             `json:"result"`
	Error  *RequestError `json:"error,omitempty"`
}

type RequestError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

type DepthResult struct {
	LastUpdateId int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// BinanceSyncAPI requests order book snapshots over the Binance WebSocket
// API. The connection is dialed on first use and re-dialed after it breaks.
type BinanceSyncAPI struct {
	endpoint string
	dialer   websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[int]chan []byte

	writeMutex sync.Mutex
}

func NewBinanceSyncAPI(endpoint string) *BinanceSyncAPI {
	return &BinanceSyncAPI{
		endpoint: endpoint,
		dialer: websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 5 * time.Second,
		},
		pending: make(map[int]chan []byte),
	}
}

func (api *BinanceSyncAPI) OrderBookSnapshot(ctx context.Context, symbol *domain.MarketSymbol, limit int) (*domain.OrderBookSnapshot, error) {
	msg, err := api.request(ctx, "depth", map[string]interface{}{
		"symbol": strings.ToUpper(symbol.Join("")),
		"limit":  limit,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: binance %s: %v", domain.ErrSnapshotUnavailable, symbol, err)
	}

	var response GenericMessage[DepthResult]
	if err := json.Unmarshal(msg, &response); err != nil {
		return nil, fmt.Errorf("%w: binance %s: %v", domain.ErrSnapshotUnavailable, symbol, err)
	}
	if response.Status != http.StatusOK {
		reason := "unknown error"
		if response.Error != nil {
			reason = fmt.Sprintf("code=%d msg=%s", response.Error.Code, response.Error.Msg)
		}
		return nil, fmt.Errorf("%w: binance %s: status %d: %s", domain.ErrSnapshotUnavailable, symbol, response.Status, reason)
	}

	bids, err := domain.ParsePriceLevels(response.Result.Bids)
	if err != nil {
		return nil, fmt.Errorf("%w: binance %s: %v", domain.ErrSnapshotUnavailable, symbol, err)
	}
	asks, err := domain.ParsePriceLevels(response.Result.Asks)
	if err != nil {
		return nil, fmt.Errorf("%w: binance %s: %v", domain.ErrSnapshotUnavailable, symbol, err)
	}

	return &domain.OrderBookSnapshot{
		Source:       domain.OrderBookSource_Provider,
		LastUpdateId: response.Result.LastUpdateId,
		Bids:         bids,
		Asks:         asks,
	}, nil
}

func (api *BinanceSyncAPI) request(ctx context.Context, method string, params map[string]interface{}) ([]byte, error) {
	conn, err := api.connection(ctx)
	if err != nil {
		return nil, err
	}

	reqId := helpers.RandomReqID()
	ch := make(chan []byte, 1)

	api.mu.Lock()
	api.pending[reqId] = ch
	api.mu.Unlock()
	defer func() {
		api.mu.Lock()
		delete(api.pending, reqId)
		api.mu.Unlock()
	}()

	api.writeMutex.Lock()
	err = conn.WriteJSON(map[string]interface{}{
		"id":     reqId,
		"method": method,
		"params": params,
	})
	api.writeMutex.Unlock()
	if err != nil {
		return nil, err
	}

	timer := time.NewTimer(requestTimeout)
	defer timer.Stop()

	select {
	case msg, ok := <-ch:
		if !ok {
			return nil, errors.New("connection closed")
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

func (api *BinanceSyncAPI) connection(ctx context.Context) (*websocket.Conn, error) {
	api.mu.Lock()
	defer api.mu.Unlock()

	if api.conn != nil {
		return api.conn, nil
	}

	conn, _, err := api.dialer.DialContext(ctx, api.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error dialing binance ws api: %w", err)
	}
	api.conn = conn

	go api.listener(conn)
	return conn, nil
}

// listener routes responses to waiting requests by id.
func (api *BinanceSyncAPI) listener(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			log.Debugw("binance ws api connection closed", "error", err)
			api.drop(conn)
			return
		}

		var envelope struct {
			ID *int `json:"id"`
		}
		if err := json.Unmarshal(message, &envelope); err != nil || envelope.ID == nil {
			continue
		}

		api.mu.Lock()
		ch, ok := api.pending[*envelope.ID]
		if ok {
			delete(api.pending, *envelope.ID)
		}
		api.mu.Unlock()

		if ok {
			ch <- message
		}
	}
}

func (api *BinanceSyncAPI) drop(conn *websocket.Conn) {
	api.mu.Lock()
	defer api.mu.Unlock()

	if api.conn != conn {
		return
	}
	_ = conn.Close()
	api.conn = nil
	for id, ch := range api.pending {
		close(ch)
		delete(api.pending, id)
	}
}

func (api *BinanceSyncAPI) Close() error {
	api.mu.Lock()
	conn := api.conn
	api.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
