// Package feed delivers price ticks to the decision loops. The websocket
// feed follows a Binance-style combined trade stream; the replay feed
// serves recorded ticks for tests and dry runs.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"martingale-lab/internal/broker"
	"martingale-lab/internal/domain"
	"martingale-lab/internal/observability"
)

// WSConfig configures websocket feed behavior.
type WSConfig struct {
	// ReconnectDelay is the initial delay before a reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay caps the exponential backoff.
	MaxReconnectDelay time.Duration
	// PingInterval is the interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is the timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is the timeout for writing messages.
	WriteTimeout time.Duration
	// Buffer is the tick channel capacity.
	Buffer int
}

// DefaultWSConfig returns the default websocket configuration.
func DefaultWSConfig() WSConfig {
	return WSConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		Buffer:            10000,
	}
}

// WSFeed streams trade ticks over a websocket with automatic reconnect.
type WSFeed struct {
	endpoint string
	symbols  []string
	config   WSConfig
	log      *zap.Logger
	metrics  *observability.Metrics

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	ticks chan domain.Tick
	done  chan struct{}
	wg    sync.WaitGroup

	errMu   sync.Mutex
	lastErr error
}

var _ broker.PriceFeed = (*WSFeed)(nil)

// WSOptions configures NewWSFeed.
type WSOptions struct {
	Endpoint string // base websocket endpoint, e.g. wss://stream.example.com/stream
	Symbols  []string
	Config   *WSConfig
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// NewWSFeed connects to the endpoint and starts streaming trade ticks for
// the given symbols.
func NewWSFeed(ctx context.Context, opts WSOptions) (*WSFeed, error) {
	cfg := DefaultWSConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	f := &WSFeed{
		endpoint: streamURL(opts.Endpoint, opts.Symbols),
		symbols:  opts.Symbols,
		config:   cfg,
		log:      log,
		metrics:  opts.Metrics,
		ticks:    make(chan domain.Tick, cfg.Buffer),
		done:     make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(2)
	go f.readLoop()
	go f.pingLoop()
	return f, nil
}

// streamURL builds the combined-stream URL for the trade streams.
func streamURL(endpoint string, symbols []string) string {
	streams := make([]string, len(symbols))
	for i, s := range symbols {
		streams[i] = strings.ToLower(s) + "@trade"
	}
	return endpoint + "?streams=" + strings.Join(streams, "/")
}

// Ticks returns the tick channel. It closes when the feed shuts down.
func (f *WSFeed) Ticks() <-chan domain.Tick {
	return f.ticks
}

// Err returns the last transport error observed, nil while healthy.
func (f *WSFeed) Err() error {
	f.errMu.Lock()
	defer f.errMu.Unlock()
	return f.lastErr
}

// Close shuts the feed down and closes the tick channel.
func (f *WSFeed) Close() error {
	if f.closed.Swap(true) {
		return nil
	}
	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	close(f.ticks)
	return nil
}

func (f *WSFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}
	f.conn = conn
	return nil
}

// readLoop reads messages and forwards parsed ticks. On a read error it
// reconnects with exponential backoff; ticks are never dropped, the send
// blocks until the consumer keeps up.
func (f *WSFeed) readLoop() {
	defer f.wg.Done()

	delay := f.config.ReconnectDelay
	for !f.closed.Load() {
		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			if !f.reconnect(delay) {
				return
			}
			delay = backoff(delay, f.config.MaxReconnectDelay)
			continue
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}
			f.setErr(err)
			f.log.Warn("feed read failed, reconnecting", zap.Error(err))
			f.connMu.Lock()
			f.conn.Close()
			f.conn = nil
			f.connMu.Unlock()
			continue
		}
		delay = f.config.ReconnectDelay

		tick, ok := parseTradeMessage(message)
		if !ok {
			continue
		}
		if f.metrics != nil {
			f.metrics.TicksProcessed.WithLabelValues(tick.Symbol).Inc()
			f.metrics.LastTickReceived.Set(float64(tick.TimestampMs) / 1000)
		}
		select {
		case f.ticks <- tick:
		case <-f.done:
			return
		}
	}
}

// reconnect waits out the backoff delay and dials again. It returns false
// when the feed is shutting down.
func (f *WSFeed) reconnect(delay time.Duration) bool {
	select {
	case <-f.done:
		return false
	case <-time.After(delay):
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := f.connect(ctx); err != nil {
		f.setErr(err)
		f.log.Warn("feed reconnect failed", zap.Error(err))
		return true
	}
	if f.metrics != nil {
		f.metrics.FeedReconnects.Inc()
	}
	f.setErr(nil)
	f.log.Info("feed reconnected")
	return true
}

func (f *WSFeed) setErr(err error) {
	f.errMu.Lock()
	f.lastErr = err
	f.errMu.Unlock()
}

func backoff(delay, max time.Duration) time.Duration {
	delay *= 2
	if delay > max {
		return max
	}
	return delay
}

// pingLoop keeps the connection alive.
func (f *WSFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			if f.conn != nil {
				f.conn.SetWriteDeadline(time.Now().Add(f.config.WriteTimeout))
				f.conn.WriteMessage(websocket.PingMessage, nil)
			}
			f.connMu.Unlock()
		}
	}
}

// Combined-stream trade message.

type streamMessage struct {
	Stream string     `json:"stream"`
	Data   tradeEvent `json:"data"`
}

type tradeEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	Price     string `json:"p"`
	TradeTime int64  `json:"T"`
}

// parseTradeMessage extracts a tick from a combined-stream trade event.
func parseTradeMessage(message []byte) (domain.Tick, bool) {
	var msg streamMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return domain.Tick{}, false
	}
	if msg.Data.EventType != "trade" || msg.Data.Symbol == "" {
		return domain.Tick{}, false
	}
	price, err := strconv.ParseFloat(msg.Data.Price, 64)
	if err != nil || price <= 0 {
		return domain.Tick{}, false
	}
	return domain.Tick{
		Symbol:      msg.Data.Symbol,
		Price:       price,
		TimestampMs: msg.Data.TradeTime,
	}, true
}
