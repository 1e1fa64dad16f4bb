package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jpillora/backoff"
	"github.com/vitos/signal_engine/internal/domain"
	"go.uber.org/zap"
)

const klineTopicPrefix = "kline.1."

// KlineStream subscribes to Bybit one-minute klines and reports every
// closed candle. It reconnects with exponential backoff until ctx ends.
type KlineStream struct {
	wsURL  string
	dialer *websocket.Dialer
	logger *zap.Logger

	pingInterval time.Duration

	mu        sync.Mutex
	callbacks []func(symbol string, candle domain.Candle)
}

func NewKlineStream(wsURL, proxyAddr string, logger *zap.Logger) (*KlineStream, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if wsURL == "" {
		wsURL = BybitWSURL
	}
	dialer := &websocket.Dialer{HandshakeTimeout: 30 * time.Second}
	if proxyAddr != "" {
		dial, err := proxyDialer(proxyAddr)
		if err != nil {
			return nil, err
		}
		dialer.NetDialContext = dial
	}
	return &KlineStream{
		wsURL:        wsURL,
		dialer:       dialer,
		logger:       logger,
		pingInterval: 20 * time.Second,
	}, nil
}

// OnClosedCandle registers a callback for confirmed klines.
func (s *KlineStream) OnClosedCandle(callback func(symbol string, candle domain.Candle)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, callback)
}

// Run keeps the subscription for symbols alive until ctx is cancelled.
func (s *KlineStream) Run(ctx context.Context, symbols []string) error {
	b := &backoff.Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2}
	for {
		started := time.Now()
		err := s.session(ctx, symbols)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if time.Since(started) > time.Minute {
			b.Reset()
		}
		delay := b.Duration()
		s.logger.Warn("Kline stream disconnected", zap.Error(err), zap.Duration("retry_in", delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *KlineStream) session(ctx context.Context, symbols []string) error {
	conn, _, err := s.dialer.DialContext(ctx, s.wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to kline stream: %w", err)
	}
	defer conn.Close()

	args := make([]string, len(symbols))
	for i, sym := range symbols {
		args[i] = klineTopicPrefix + sym
	}
	if err := conn.WriteJSON(map[string]any{"op": "subscribe", "args": args}); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	s.logger.Info("Kline stream connected", zap.Strings("symbols", symbols))

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				// Unblocks ReadMessage.
				conn.Close()
				return
			case <-ticker.C:
				if err := conn.WriteJSON(map[string]string{"op": "ping"}); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		s.handle(message)
	}
}

type klineMessage struct {
	Topic string `json:"topic"`
	Data  []struct {
		Start   int64  `json:"start"`
		Open    string `json:"open"`
		High    string `json:"high"`
		Low     string `json:"low"`
		Close   string `json:"close"`
		Volume  string `json:"volume"`
		Confirm bool   `json:"confirm"`
	} `json:"data"`
}

func (s *KlineStream) handle(message []byte) {
	var msg klineMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		s.logger.Debug("Ignoring stream message", zap.Error(err))
		return
	}
	if !strings.HasPrefix(msg.Topic, klineTopicPrefix) {
		return
	}
	symbol := strings.TrimPrefix(msg.Topic, klineTopicPrefix)

	s.mu.Lock()
	callbacks := make([]func(string, domain.Candle), len(s.callbacks))
	copy(callbacks, s.callbacks)
	s.mu.Unlock()

	for _, k := range msg.Data {
		if !k.Confirm {
			continue
		}
		c, err := parseKline([]string{strconv.FormatInt(k.Start, 10), k.Open, k.High, k.Low, k.Close, k.Volume})
		if err != nil {
			s.logger.Warn("Skipping malformed kline", zap.String("symbol", symbol), zap.Error(err))
			continue
		}
		for _, cb := range callbacks {
			cb(symbol, c)
		}
	}
}

// WakeChannels returns one channel per symbol that receives a
// non-blocking notification whenever a candle of that symbol closes.
func (s *KlineStream) WakeChannels(symbols []string) map[string]<-chan struct{} {
	chans := make(map[string]chan struct{}, len(symbols))
	out := make(map[string]<-chan struct{}, len(symbols))
	for _, sym := range symbols {
		ch := make(chan struct{}, 1)
		chans[sym] = ch
		out[sym] = ch
	}
	s.OnClosedCandle(func(symbol string, _ domain.Candle) {
		ch, ok := chans[symbol]
		if !ok {
			return
		}
		select {
		case ch <- struct{}{}:
		default:
		}
	})
	return out
}
