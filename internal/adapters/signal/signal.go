package signal

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/dkeye/Meet/internal/app/orch"
	"github.com/dkeye/Meet/internal/core"
	"github.com/dkeye/Meet/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

type Options struct {
	ReadLimit      int64
	PingPeriod     time.Duration
	PongWait       time.Duration
	WriteWait      time.Duration
	SendBuffer     int
	Rate           float64
	Burst          int
	AllowedOrigins []string
}

func DefaultOptions() Options {
	return Options{
		ReadLimit:  65536,
		PingPeriod: 54 * time.Second,
		PongWait:   60 * time.Second,
		WriteWait:  5 * time.Second,
		SendBuffer: 64,
	}
}

type SignalWSController struct {
	Orch *orch.Orchestrator

	opts     Options
	upgrader websocket.Upgrader
	validate *validator.Validate

	live sync.WaitGroup
}

func NewSignalWSController(o *orch.Orchestrator, opts Options) *SignalWSController {
	ctl := &SignalWSController{
		Orch:     o,
		opts:     opts,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	ctl.upgrader = websocket.Upgrader{CheckOrigin: ctl.checkOrigin}
	return ctl
}

func (ctl *SignalWSController) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(ctl.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(ctl.opts.AllowedOrigins, "*") || slices.Contains(ctl.opts.AllowedOrigins, origin)
}

// WsSignalConn is the registry handle for one socket. TrySend never blocks;
// the write pump owns the socket writes.
type WsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsSignalConn(ws *websocket.Conn, buffer int) *WsSignalConn {
	return &WsSignalConn{conn: ws, send: make(chan core.Frame, buffer)}
}

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrConnectionClosed
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

// closeWith sends a close frame carrying code and reason, then closes.
func (c *WsSignalConn) closeWith(code int, reason string, wait time.Duration) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wait)); err != nil {
		log.Debug().Err(err).Str("module", "signal").Msg("write close frame")
	}
	c.Close()
}

// ServeRoom upgrades the request and runs one participant's session until
// the socket goes away. It returns once the pumps are started.
func (ctl *SignalWSController) ServeRoom(ctx context.Context, c *gin.Context, code domain.RoomCode, client domain.ClientID) {
	log.Info().Str("module", "signal").
		Str("room", string(code)).
		Str("client", string(client)).
		Msg("new WS connection")

	ctl.live.Add(1)
	ws, err := ctl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ctl.live.Done()
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	conn := newWsSignalConn(ws, ctl.opts.SendBuffer)

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)

	sess, err := ctl.Orch.Connect(ctx, orch.JoinRequest{
		Code:      code,
		Client:    client,
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}, conn)
	if err != nil {
		cancel()
		closeCode, reason := websocket.CloseInternalServerErr, orch.ReasonInternal
		var se *orch.SetupError
		if errors.As(err, &se) {
			reason = se.Reason
			if !se.Internal {
				closeCode = websocket.ClosePolicyViolation
			}
		}
		conn.closeWith(closeCode, reason, ctl.opts.WriteWait)
		ctl.live.Done()
		return
	}

	go ctl.readPump(ctx, cancel, sess, conn)
}

// Wait blocks until every session has finished its disconnect, or ctx ends.
// Call it after the server stopped accepting upgrades and the sessions'
// context was cancelled.
func (ctl *SignalWSController) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		ctl.live.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
