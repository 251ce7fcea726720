package coinone

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/minkyu-kim/kimpbot/internal/domain"
)

const (
	// wsWriteWait is the time allowed to write a message to the peer.
	wsWriteWait = 10 * time.Second

	// wsPongWait is the time allowed to read the next server message before
	// the connection is considered dead. The stream pushes tickers often
	// enough that silence means trouble.
	wsPongWait = 30 * time.Second

	// wsPingPeriod sends protocol pings at this interval.
	wsPingPeriod = (wsPongWait * 9) / 10

	// wsReconnectDelay is the base delay before attempting to reconnect.
	wsReconnectDelay = 2 * time.Second

	// wsMaxReconnectDelay caps the exponential backoff.
	wsMaxReconnectDelay = 60 * time.Second
)

// TickerHandler is called for every ticker pushed on the stream.
type TickerHandler func(domain.TickerPrice)

// WSClient streams public KRW ticker updates.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.RWMutex
	closed bool

	// Tracked subscriptions for reconnection, by base currency.
	subscribed []string

	tickerHandlers []TickerHandler
	handlerMu      sync.RWMutex

	done chan struct{}
}

// NewWSClient creates a Coinone stream client. An empty wsURL uses
// DefaultWSURL.
func NewWSClient(wsURL string) *WSClient {
	if wsURL == "" {
		wsURL = DefaultWSURL
	}
	return &WSClient{
		wsURL: wsURL,
		done:  make(chan struct{}),
	}
}

// Connect establishes the WebSocket connection and restores any tracked
// subscriptions.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("coinone/ws: client is closed")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("coinone/ws: connect: %w", err)
	}
	w.conn = conn

	w.conn.SetReadDeadline(time.Now().Add(wsPongWait))

	go w.readLoop()
	go w.pingLoop()

	if len(w.subscribed) > 0 {
		if err := w.sendSubscribe(w.subscribed); err != nil {
			return fmt.Errorf("coinone/ws: restore subscriptions: %w", err)
		}
	}
	return nil
}

// Subscribe subscribes to ticker updates for the given base currencies.
func (w *WSClient) Subscribe(ctx context.Context, currencies []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.conn == nil {
		return fmt.Errorf("coinone/ws: not connected")
	}
	if err := w.sendSubscribe(currencies); err != nil {
		return fmt.Errorf("coinone/ws: subscribe: %w", err)
	}

	existing := make(map[string]struct{}, len(w.subscribed))
	for _, c := range w.subscribed {
		existing[c] = struct{}{}
	}
	for _, c := range currencies {
		if _, ok := existing[c]; !ok {
			w.subscribed = append(w.subscribed, c)
		}
	}
	return nil
}

// OnTicker registers a handler called for every ticker update.
func (w *WSClient) OnTicker(handler TickerHandler) {
	w.handlerMu.Lock()
	defer w.handlerMu.Unlock()
	w.tickerHandlers = append(w.tickerHandlers, handler)
}

// Close shuts down the connection.
func (w *WSClient) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	close(w.done)

	if w.conn != nil {
		_ = w.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		return w.conn.Close()
	}
	return nil
}

// --------------------------------------------------------------------------
// Internal methods
// --------------------------------------------------------------------------

type wsRequest struct {
	RequestType string   `json:"request_type"`
	Channel     string   `json:"channel,omitempty"`
	Topic       *wsTopic `json:"topic,omitempty"`
}

type wsTopic struct {
	QuoteCurrency  string `json:"quote_currency"`
	TargetCurrency string `json:"target_currency"`
}

type wsMessage struct {
	ResponseType string `json:"response_type"`
	Channel      string `json:"channel"`
	Data         struct {
		QuoteCurrency  string `json:"quote_currency"`
		TargetCurrency string `json:"target_currency"`
		Last           string `json:"last"`
	} `json:"data"`
}

// sendSubscribe sends one SUBSCRIBE frame per currency. Caller must hold w.mu.
func (w *WSClient) sendSubscribe(currencies []string) error {
	for _, currency := range currencies {
		req := wsRequest{
			RequestType: "SUBSCRIBE",
			Channel:     "TICKER",
			Topic: &wsTopic{
				QuoteCurrency:  "KRW",
				TargetCurrency: strings.ToUpper(currency),
			},
		}
		data, err := json.Marshal(req)
		if err != nil {
			return fmt.Errorf("marshal subscribe: %w", err)
		}
		w.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := w.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return err
		}
	}
	return nil
}

// readLoop reads messages and dispatches tickers. On disconnect it attempts
// reconnection.
func (w *WSClient) readLoop() {
	defer func() {
		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn != nil {
			conn.Close()
		}
	}()

	for {
		select {
		case <-w.done:
			return
		default:
		}

		w.mu.RLock()
		conn := w.conn
		w.mu.RUnlock()
		if conn == nil {
			return
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-w.done:
				return
			default:
			}
			w.reconnect()
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		w.handleMessage(message)
	}
}

// pingLoop sends protocol-level ping frames to keep the stream open.
func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.RLock()
			conn := w.conn
			w.mu.RUnlock()
			if conn == nil {
				return
			}

			data, _ := json.Marshal(wsRequest{RequestType: "PING"})
			conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func (w *WSClient) handleMessage(raw []byte) {
	var msg wsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	if msg.ResponseType != "DATA" || msg.Channel != "TICKER" {
		return
	}

	last, err := asFloat(msg.Data.Last)
	if err != nil || last <= 0 {
		return
	}
	tick := domain.TickerPrice{
		Symbol: strings.ToUpper(msg.Data.TargetCurrency) + "/" + strings.ToUpper(msg.Data.QuoteCurrency),
		Last:   last,
	}

	w.handlerMu.RLock()
	handlers := w.tickerHandlers
	w.handlerMu.RUnlock()
	for _, h := range handlers {
		h(tick)
	}
}

// reconnect re-establishes the connection with exponential backoff.
func (w *WSClient) reconnect() {
	delay := wsReconnectDelay

	for {
		select {
		case <-w.done:
			return
		default:
		}

		time.Sleep(delay)

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := w.Connect(ctx)
		cancel()
		if err == nil {
			return
		}

		delay *= 2
		if delay > wsMaxReconnectDelay {
			delay = wsMaxReconnectDelay
		}
	}
}
