package radarfeed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/odds-history/internal/model"
)

// ErrStaleConnection is reported when no pong arrives within PingTimeout.
var ErrStaleConnection = errors.New("connection stale (no pong)")

// Config configures a Subscriber.
type Config struct {
	URL               string // ws:// or wss:// URL of the /ws endpoint
	PingTimeout       time.Duration
	WriteTimeout      time.Duration
	ReconnectBaseWait time.Duration
	ReconnectMaxWait  time.Duration
}

// DefaultConfig returns sensible defaults for url.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		PingTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Second,
		ReconnectBaseWait: time.Second,
		ReconnectMaxWait:  time.Minute,
	}
}

// Handler receives each radar in arrival order.
type Handler func(model.Radar)

// Subscriber follows a radar feed.
type Subscriber struct {
	cfg    Config
	dialer websocket.Dialer
	logger *slog.Logger
}

// NewSubscriber creates a Subscriber. Zero durations select the defaults.
func NewSubscriber(cfg Config, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig(cfg.URL)
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.ReconnectBaseWait <= 0 {
		cfg.ReconnectBaseWait = def.ReconnectBaseWait
	}
	if cfg.ReconnectMaxWait < cfg.ReconnectBaseWait {
		cfg.ReconnectMaxWait = max(def.ReconnectMaxWait, cfg.ReconnectBaseWait)
	}
	return &Subscriber{
		cfg:    cfg,
		dialer: websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		logger: logger.With("url", cfg.URL),
	}
}

// Run delivers radars to h until ctx is done, reconnecting after failures.
// It returns ctx.Err().
func (s *Subscriber) Run(ctx context.Context, h Handler) error {
	wait := s.cfg.ReconnectBaseWait
	for {
		received, err := s.session(ctx, h)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if received {
			wait = s.cfg.ReconnectBaseWait
		}
		s.logger.Warn("radar feed disconnected", "error", err, "retry_in", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		wait *= 2
		if wait > s.cfg.ReconnectMaxWait {
			wait = s.cfg.ReconnectMaxWait
		}
	}
}

// session runs one connection until it fails. received reports whether
// any radar arrived, which resets the backoff.
func (s *Subscriber) session(ctx context.Context, h Handler) (received bool, err error) {
	header := http.Header{}
	header.Set("Accept", "application/json")

	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return false, err
	}
	defer conn.Close()
	s.logger.Debug("radar feed connected")

	conn.SetReadDeadline(time.Now().Add(s.cfg.PingTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PingTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go s.heartbeat(ctx, conn, done)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var ne interface{ Timeout() bool }
			if errors.As(err, &ne) && ne.Timeout() {
				err = ErrStaleConnection
			}
			return received, err
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.PingTimeout))

		var radar model.Radar
		if err := json.Unmarshal(data, &radar); err != nil {
			s.logger.Warn("dropping undecodable radar message", "error", err, "bytes", len(data))
			continue
		}
		received = true
		h(radar)
	}
}

// heartbeat pings the server and closes the connection when ctx ends so the
// blocked read returns.
func (s *Subscriber) heartbeat(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingTimeout / 2)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			conn.Close()
			return
		case <-ticker.C:
			deadline := time.Now().Add(s.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				s.logger.Debug("failed to send ping", "error", err)
			}
		}
	}
}
