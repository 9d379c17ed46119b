package server

import (
	"context"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/odds-history/internal/deviation"
	"github.com/rickgao/odds-history/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// hub fans radar updates out to websocket subscribers. Each subscriber
// holds at most one pending radar; a newer radar replaces an unsent one.
type hub struct {
	mu   sync.Mutex
	subs map[chan model.Radar]struct{}
}

func newHub() *hub {
	return &hub{subs: make(map[chan model.Radar]struct{})}
}

func (h *hub) subscribe() (chan model.Radar, func()) {
	ch := make(chan model.Radar, 1)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch, func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
}

func (h *hub) broadcast(radar model.Radar) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case <-ch:
		default:
		}
		ch <- radar
	}
}

func (h *hub) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Watch polls radar.json and broadcasts each new version until ctx is done.
func (s *Server) Watch(ctx context.Context) {
	path := deviation.RadarPath(s.opts.Root)
	var lastMod time.Time
	var lastSize int64 = -1
	if fi, err := os.Stat(path); err == nil {
		lastMod, lastSize = fi.ModTime(), fi.Size()
	}

	ticker := time.NewTicker(s.opts.WatchInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		fi, err := os.Stat(path)
		if err != nil || (fi.ModTime().Equal(lastMod) && fi.Size() == lastSize) {
			continue
		}
		radar, err := deviation.ReadRadar(s.opts.Root)
		if err != nil {
			s.logger.Warn("reload radar failed", "error", err)
			continue
		}
		lastMod, lastSize = fi.ModTime(), fi.Size()
		s.logger.Info("radar changed", "run_id", radar.RunID, "items", len(radar.Items), "subscribers", s.hub.count())
		s.hub.broadcast(radar)
	}
}

// handleWS streams the current radar and every later version.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := s.hub.subscribe()
	defer unsubscribe()

	// Reads only serve to notice the peer going away and to receive pongs.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if radar, err := deviation.ReadRadar(s.opts.Root); err == nil {
		if err := s.send(conn, radar); err != nil {
			return
		}
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-closed:
			return
		case <-r.Context().Done():
			return
		case radar := <-updates:
			if err := s.send(conn, radar); err != nil {
				s.logger.Debug("websocket write failed", "error", err)
				return
			}
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) send(conn *websocket.Conn, radar model.Radar) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(radar)
}
