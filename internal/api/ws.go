package api

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/JakeFAU/boamp-console/internal/app"
	"github.com/JakeFAU/boamp-console/internal/metrics"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second
	// Send pings with this period; must be less than pongWait.
	pingPeriod = 54 * time.Second
	// Clients only send control frames.
	maxMessageSize = 4096
	sendBuffer     = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     sameOrigin,
}

// sameOrigin accepts clients without an Origin header and pages served by
// this host.
func sameOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return u.Host == r.Host
}

// wsClient is one push connection. Changes are queued on send; a client that
// falls behind is disconnected rather than slowing the controller down.
type wsClient struct {
	id        string
	conn      *websocket.Conn
	send      chan app.Change
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	id := uuid.NewString()
	c := &wsClient{
		id:     id,
		conn:   conn,
		send:   make(chan app.Change, sendBuffer),
		done:   make(chan struct{}),
		logger: s.logger.With(zap.String("client_id", id)),
	}
	unsubscribe := s.console.Subscribe(c.enqueue)
	metrics.IncWSClients()
	c.logger.Debug("websocket client connected")

	go c.writePump()
	c.readPump()

	unsubscribe()
	c.close()
	metrics.DecWSClients()
	c.logger.Debug("websocket client disconnected")
}

func (c *wsClient) enqueue(ch app.Change) {
	select {
	case <-c.done:
	case c.send <- ch:
	default:
		c.logger.Warn("websocket client too slow, disconnecting")
		c.close()
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump drains client frames so pongs and close frames are processed.
func (c *wsClient) readPump() {
	defer func() { _ = c.conn.Close() }()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNoStatusReceived,
			) {
				c.logger.Warn("websocket read error", zap.Error(err))
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case ch := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ch); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}
