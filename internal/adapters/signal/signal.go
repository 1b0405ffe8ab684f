package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/Cine/internal/app"
	"github.com/dkeye/Cine/internal/config"
	"github.com/dkeye/Cine/internal/core"
	"github.com/dkeye/Cine/internal/domain"
)

// SignalWSController terminates websocket connections and feeds the relay.
// One instance serves all connections.
type SignalWSController struct {
	Cfg      *config.Config
	Store    *app.SessionStore
	Relay    *app.RelayRouter
	Failover *app.HostFailover
	Limiter  *ChatRateLimiter
}

func NewSignalWSController(cfg *config.Config, store *app.SessionStore) *SignalWSController {
	return &SignalWSController{
		Cfg:      cfg,
		Store:    store,
		Relay:    app.NewRelayRouter(store),
		Failover: app.NewHostFailover(store),
		Limiter:  NewChatRateLimiter(cfg.ChatRateLimit, cfg.ChatRateInterval),
	}
}

type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	sid := domain.ConnectionID(c.GetString("client_token"))
	log.Info().Str("module", "signal").Str("conn", string(sid)).Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)

	conn := &WsSignalConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, sid, conn)
	}()
}
