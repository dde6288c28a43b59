package widget

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/pefman/break-the-wall/internal/metrics"
	"github.com/pefman/break-the-wall/internal/models"
	"github.com/pefman/break-the-wall/internal/wall"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

// CountUpdate is the payload of a "count" websocket message.
type CountUpdate struct {
	Clicks int    `json:"clicks"`
	Max    int    `json:"max"`
	Stage  int    `json:"stage"`
	Asset  string `json:"asset"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan models.WsMsg
}

// Hub fans the latest known shared count out to every connected browser.
// Counts only move forward: an older observation arriving late is ignored.
type Hub struct {
	cfg wall.Config
	log logrus.FieldLogger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	last    int
	known   bool
}

func NewHub(cfg wall.Config, log logrus.FieldLogger) *Hub {
	return &Hub{cfg: cfg, log: log, clients: make(map[*wsClient]struct{})}
}

func (h *Hub) update(n int) models.WsMsg {
	return models.WsMsg{Type: "count", Data: CountUpdate{
		Clicks: n,
		Max:    h.cfg.Max,
		Stage:  h.cfg.StageForCount(n),
		Asset:  h.cfg.AssetForCount(n),
	}}
}

// Observe records a count seen from the counter service and pushes it to
// clients when it is newer than what they already have. It reports whether
// anything was sent.
func (h *Hub) Observe(n int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.known && n <= h.last {
		return false
	}
	h.broadcastLocked(n)
	return true
}

// Set replaces the count with an authoritative value, which may be lower
// than the last one observed. It pushes only when the count changed.
func (h *Hub) Set(n int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.known && n == h.last {
		return false
	}
	h.broadcastLocked(n)
	return true
}

func (h *Hub) broadcastLocked(n int) {
	h.last, h.known = n, true
	msg := h.update(n)
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Slow reader; it will catch up on the next update.
		}
	}
}

// Last returns the newest count observed, if any.
func (h *Hub) Last() (int, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last, h.known
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) add(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	if h.known {
		c.send <- h.update(h.last)
	}
	h.mu.Unlock()
	metrics.SetWebsocketClients(n)
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.SetWebsocketClients(n)
}

// ServeWS upgrades the request and streams count updates until the browser
// goes away. Incoming messages are read only to notice the close.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Debug("ws: upgrade failed")
		return
	}
	c := &wsClient{conn: conn, send: make(chan models.WsMsg, 8)}
	h.add(c)
	h.log.WithField("from", r.RemoteAddr).Debug("ws: connect")
	go h.writer(c)
	h.reader(c)
}

func (h *Hub) reader(c *wsClient) {
	defer func() {
		h.remove(c)
		_ = c.conn.Close()
		h.log.Debug("ws: closed")
	}()
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writer(c *wsClient) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				h.log.WithError(err).Debug("ws: write error")
				_ = c.conn.Close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				_ = c.conn.Close()
				return
			}
		}
	}
}
