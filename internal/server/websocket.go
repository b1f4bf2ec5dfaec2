package server

import (
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	wsWriteWait      = 10 * time.Second
	wsPongWait       = 60 * time.Second
	wsPingPeriod     = (wsPongWait * 9) / 10
	wsOutboxSize     = 256
	wsReadLimitSlack = 64 * 1024
	draftsPerSecond  = 2
	draftBurst       = 4
)

func newUpgrader(allowed []string) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return len(allowed) == 0 || origin == "" || slices.Contains(allowed, origin)
		},
	}
}

// wsConn is a Channel backed by a gorilla websocket. Sends are queued and written by a single pump.
type wsConn struct {
	id        string
	conn      *websocket.Conn
	outbox    chan []byte
	done      chan struct{}
	closeOnce sync.Once
	reasonMu  sync.Mutex
	reason    string
	drafts    *rate.Limiter
}

func newWSConn(conn *websocket.Conn) *wsConn {
	return &wsConn{
		id:     uuid.NewString(),
		conn:   conn,
		outbox: make(chan []byte, wsOutboxSize),
		done:   make(chan struct{}),
		drafts: rate.NewLimiter(draftsPerSecond, draftBurst),
	}
}

func (c *wsConn) ID() string {
	return c.id
}

func (c *wsConn) Send(data []byte) error {
	select {
	case <-c.done:
		return errChannelClosed
	default:
	}
	select {
	case c.outbox <- data:
		return nil
	default:
		log.Warn().Str("conn", c.id).Msg("outbox full, closing connection")
		c.Close("slow_consumer")
		return errChannelClosed
	}
}

// Close stops the connection after queued messages are flushed.
func (c *wsConn) Close(reason string) {
	c.closeOnce.Do(func() {
		c.reasonMu.Lock()
		c.reason = reason
		c.reasonMu.Unlock()
		close(c.done)
	})
}

func (c *wsConn) allowDraft() bool {
	return c.drafts.Allow()
}

func (c *wsConn) closeReason() string {
	c.reasonMu.Lock()
	defer c.reasonMu.Unlock()
	return c.reason
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case data := <-c.outbox:
			if err := c.write(websocket.TextMessage, data); err != nil {
				c.Close("write_failed")
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close("ping_failed")
				return
			}
		case <-c.done:
			c.flush()
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, c.closeReason())
			_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
			return
		}
	}
}

func (c *wsConn) flush() {
	for {
		select {
		case data := <-c.outbox:
			if err := c.write(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *wsConn) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return c.conn.WriteMessage(messageType, data)
}

func (s *Server) readPump(c *wsConn) {
	defer func() {
		c.Close("disconnected")
		s.HandleClose(c)
	}()
	c.conn.SetReadLimit(int64(s.cfg.MaxDrawingBytes) + wsReadLimitSlack)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Str("conn", c.id).Msg("ws read failed")
			}
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		s.HandleMessage(c, data)
	}
}

type wsJoinQuery struct {
	Room     string `form:"room"`
	Username string `form:"username"`
	Identity string `form:"uuid"`
}

// handleWebsocket upgrades the request. With room, username and uuid present the connection joins
// immediately; otherwise the first join message does.
func (s *Server) handleWebsocket(c *gin.Context) {
	var query wsJoinQuery
	_ = c.ShouldBindQuery(&query)
	if code := c.Param("code"); code != "" {
		query.Room = code
	}
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Debug().Err(err).Msg("ws upgrade failed")
		return
	}
	ws := newWSConn(conn)
	log.Debug().Str("conn", ws.id).Str("remote", c.ClientIP()).Msg("ws connected")
	go ws.writePump()
	if query.Room != "" && query.Username != "" && query.Identity != "" {
		if err := s.Join(ws, query.Room, query.Username, query.Identity); err != nil {
			s.reportError(ws, err)
		}
	}
	go s.readPump(ws)
}
