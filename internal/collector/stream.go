package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"signalist/internal/model"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

const (
	streamMinBackoff   = time.Second
	streamMaxBackoff   = 60 * time.Second
	streamWriteTimeout = 10 * time.Second
	streamReadTimeout  = 90 * time.Second
)

// TradeStream keeps the last traded price per symbol from the Finnhub
// websocket feed. Symbols without a fresh trade are served by Fallback.
type TradeStream struct {
	URL      string
	APIKey   string
	MaxAge   time.Duration
	Fallback QuoteProvider

	mu      sync.RWMutex
	last    map[string]model.Quote
	symbols map[string]bool
	conn    *websocket.Conn

	writeMu sync.Mutex
}

// NewTradeStream creates a stream subscribed to symbols once Run connects.
func NewTradeStream(apiKey string, symbols []string, maxAge time.Duration, fallback QuoteProvider) *TradeStream {
	s := &TradeStream{
		URL:      "wss://ws.finnhub.io",
		APIKey:   apiKey,
		MaxAge:   maxAge,
		Fallback: fallback,
		last:     make(map[string]model.Quote),
		symbols:  make(map[string]bool),
	}
	for _, sym := range symbols {
		s.symbols[sym] = true
	}
	return s
}

func (s *TradeStream) Name() string { return "finnhub-ws" }

// Run connects and reads until ctx is done, reconnecting with exponential backoff.
func (s *TradeStream) Run(ctx context.Context) {
	backoff := streamMinBackoff
	for {
		start := time.Now()
		err := s.session(ctx)
		if ctx.Err() != nil {
			return
		}
		// A session that stayed up for a while resets the backoff.
		if time.Since(start) > streamMaxBackoff {
			backoff = streamMinBackoff
		}
		log.Printf("[WARN] trade stream disconnected, retrying in %v: %v", backoff, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > streamMaxBackoff {
			backoff = streamMaxBackoff
		}
	}
}

func (s *TradeStream) session(ctx context.Context) error {
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("parse stream url: %w", err)
	}
	if s.APIKey != "" {
		q := u.Query()
		q.Set("token", s.APIKey)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial trade stream: %w", err)
	}
	defer conn.Close()

	s.mu.Lock()
	s.conn = conn
	symbols := make([]string, 0, len(s.symbols))
	for sym := range s.symbols {
		symbols = append(symbols, sym)
	}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
	}()

	for _, sym := range symbols {
		if err := s.subscribe(conn, sym); err != nil {
			return err
		}
	}
	log.Printf("[INFO] trade stream connected, %d symbols subscribed", len(symbols))

	// Unblock ReadMessage on shutdown.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read trade stream: %w", err)
		}
		if err := s.handle(msg); err != nil {
			log.Printf("[WARN] trade stream message: %v", err)
		}
	}
}

func (s *TradeStream) subscribe(conn *websocket.Conn, symbol string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
	if err := conn.WriteJSON(map[string]string{"type": "subscribe", "symbol": symbol}); err != nil {
		return fmt.Errorf("subscribe %s: %w", symbol, err)
	}
	return nil
}

type streamMessage struct {
	Type string `json:"type"`
	Data []struct {
		Symbol string          `json:"s"`
		Price  decimal.Decimal `json:"p"`
		Time   int64           `json:"t"` // unix millis
		Volume float64         `json:"v"`
	} `json:"data"`
}

// handle applies one feed message; only trade messages change state.
func (s *TradeStream) handle(msg []byte) error {
	var m streamMessage
	if err := json.Unmarshal(msg, &m); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if m.Type != "trade" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range m.Data {
		if !t.Price.IsPositive() {
			continue
		}
		at := time.UnixMilli(t.Time).UTC()
		if prev, ok := s.last[t.Symbol]; ok && prev.Time.After(at) {
			continue
		}
		s.last[t.Symbol] = model.Quote{Symbol: t.Symbol, Price: t.Price, Time: at}
	}
	return nil
}

// GetQuote returns the last streamed trade when it is fresher than MaxAge,
// otherwise subscribes to the symbol and asks Fallback.
func (s *TradeStream) GetQuote(ctx context.Context, symbol string) (model.Quote, error) {
	s.mu.RLock()
	q, ok := s.last[symbol]
	known := s.symbols[symbol]
	conn := s.conn
	s.mu.RUnlock()

	if ok && (s.MaxAge <= 0 || time.Since(q.Time) <= s.MaxAge) {
		return q, nil
	}

	if !known {
		s.mu.Lock()
		s.symbols[symbol] = true
		s.mu.Unlock()
		if conn != nil {
			if err := s.subscribe(conn, symbol); err != nil {
				log.Printf("[WARN] %v", err)
			}
		}
	}

	if s.Fallback == nil {
		return model.Quote{}, fmt.Errorf("no streamed price for %s: %w", symbol, model.ErrProviderUnavailable)
	}
	return s.Fallback.GetQuote(ctx, symbol)
}
