package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"slate/internal/core/domain"
	"slate/internal/core/ports"
	"slate/internal/core/services"
	"slate/internal/infrastructure/middleware"
	"slate/internal/infrastructure/monitoring"
	"slate/pkg/config"
	apperrors "slate/pkg/errors"
	"slate/pkg/tracing"
	"slate/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server owns the websocket surface: connection admission, authentication,
// the per-connection read loop and event dispatch. All room semantics live
// behind the service ports.
type Server struct {
	cfg *config.Config

	auth       services.AuthService
	rooms      ports.RoomService
	whiteboard ports.WhiteboardService
	chat       ports.ChatService
	signaling  ports.SignalingService

	hub         *Hub
	dispatcher  *Dispatcher
	limiter     *middleware.EventLimiter
	connLimiter *middleware.ConnectionLimiter
	cursors     *cursorThrottle
	metrics     *monitoring.PrometheusCollector

	upgrader websocket.Upgrader
	logger   *zap.SugaredLogger
}

type authenticatePayload struct {
	Token string `json:"token"`
}

type connectedPayload struct {
	ConnectionID domain.ConnectionID `json:"connection_id"`
	Identity     domain.Identity     `json:"identity"`
}

func NewServer(
	cfg *config.Config,
	auth services.AuthService,
	rooms ports.RoomService,
	whiteboard ports.WhiteboardService,
	chat ports.ChatService,
	signaling ports.SignalingService,
	hub *Hub,
	limiter *middleware.EventLimiter,
	connLimiter *middleware.ConnectionLimiter,
	metrics *monitoring.PrometheusCollector,
	logger *zap.SugaredLogger,
) *Server {
	s := &Server{
		cfg:         cfg,
		auth:        auth,
		rooms:       rooms,
		whiteboard:  whiteboard,
		chat:        chat,
		signaling:   signaling,
		hub:         hub,
		dispatcher:  NewDispatcher(),
		limiter:     limiter,
		connLimiter: connLimiter,
		cursors:     newCursorThrottle(cfg.Whiteboard.CursorMinInterval),
		metrics:     metrics,
		logger:      logger,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(cfg.Gateway.AllowedOrigins),
	}
	s.registerHandlers()
	return s
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(r *http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, origin := range allowed {
		if origin == "*" {
			return func(r *http.Request) bool { return true }
		}
		set[strings.ToLower(origin)] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := strings.ToLower(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// authFrameWait is how long a connection without a transport-level token may
// take to send its authenticate frame.
const authFrameWait = 10 * time.Second

// resolveToken finds the connect-time credential. A connection carrying
// neither is given authFrameWait to send an authenticate frame instead.
func resolveToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if parts := strings.SplitN(header, " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func (s *Server) HandleWebSocket(c *gin.Context) {
	ip := c.ClientIP()
	if !s.connLimiter.Allow(c.Request.Context(), ip) {
		s.metrics.RecordRateLimitRejection("connect")
		c.JSON(http.StatusTooManyRequests,
			apperrors.NewRateLimitError(s.connLimiter.Window()).
				WithContext("scope", "connection").ToWire())
		return
	}

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warnw("websocket upgrade failed", "remote_ip", ip, "error", err)
		return
	}

	token := resolveToken(c.Request)

	// A transport-level token authenticates right away, so a client that
	// connects and waits for the connected ack is never stalled on a frame
	// read. Without one, the first frame must arrive within authFrameWait;
	// a non-authenticate first frame is held and dispatched normally once
	// the connection is authenticated.
	var pending *InboundEnvelope
	if token == "" {
		ws.SetReadDeadline(time.Now().Add(authFrameWait))
		var first InboundEnvelope
		if err := ws.ReadJSON(&first); err != nil {
			ws.Close()
			return
		}
		if first.Event == EventAuthenticate {
			var p authenticatePayload
			if len(first.Payload) > 0 && json.Unmarshal(first.Payload, &p) == nil {
				token = p.Token
			}
		} else {
			pending = &first
		}
	}

	identity, err := s.auth.Authenticate(c.Request.Context(), token)
	if err != nil {
		s.rejectAuth(ws, err, ip)
		return
	}

	cctx := &ports.ConnContext{
		ID:          domain.ConnectionID(utils.GenerateConnectionID()),
		Identity:    identity,
		RemoteIP:    ip,
		ConnectedAt: time.Now(),
	}
	conn := newConn(ws, cctx, s.cfg.Gateway.WriteTimeout)
	s.hub.Register(conn)
	s.metrics.RecordConnectionOpened()

	s.logger.Infow("client connected",
		"connection_id", cctx.ID,
		"identity_id", identity.ID,
		"anonymous", identity.Anonymous,
		"remote_ip", ip,
	)

	conn.Send(newOutbound(EventConnected, "", connectedPayload{
		ConnectionID: cctx.ID,
		Identity:     identity,
	}))

	s.serve(conn, pending)
}

func (s *Server) rejectAuth(ws *websocket.Conn, err error, ip string) {
	appErr := apperrors.GetAppError(err)
	if appErr == nil {
		appErr = apperrors.NewInternalError("authentication failed")
	}
	s.logger.Infow("connection rejected",
		"remote_ip", ip,
		"code", appErr.Code,
	)
	s.metrics.RecordEventError(string(appErr.Code))

	ws.SetWriteDeadline(time.Now().Add(s.cfg.Gateway.WriteTimeout))
	ws.WriteJSON(errorEnvelope(appErr))
	ws.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, string(appErr.Code)))
	ws.Close()
}

// serve runs the connection until it dies: one reader goroutine feeding a
// select loop that interleaves dispatch with keepalive pings. Dispatching
// inline keeps events from one connection strictly ordered.
func (s *Server) serve(conn *Conn, pending *InboundEnvelope) {
	ws := conn.ws
	if s.cfg.Gateway.MaxMessageBytes > 0 {
		ws.SetReadLimit(s.cfg.Gateway.MaxMessageBytes)
	}
	ws.SetReadDeadline(time.Now().Add(s.cfg.Gateway.PongTimeout))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(s.cfg.Gateway.PongTimeout))
		return nil
	})

	if pending != nil {
		s.handleEnvelope(conn, pending)
	}

	pingTicker := time.NewTicker(s.cfg.Gateway.PingInterval)
	defer pingTicker.Stop()

	envelopes := make(chan *InboundEnvelope, 16)
	readErr := make(chan error, 1)

	go func() {
		for {
			var env InboundEnvelope
			if err := ws.ReadJSON(&env); err != nil {
				readErr <- err
				return
			}
			ws.SetReadDeadline(time.Now().Add(s.cfg.Gateway.PongTimeout))
			envelopes <- &env
		}
	}()

	for {
		select {
		case env := <-envelopes:
			s.handleEnvelope(conn, env)

		case <-pingTicker.C:
			if err := conn.Ping(); err != nil {
				s.logger.Debugw("ping failed", "connection_id", conn.ctx.ID, "error", err)
				s.cleanup(conn)
				return
			}

		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				s.logger.Infow("read failed", "connection_id", conn.ctx.ID, "error", err)
			}
			s.cleanup(conn)
			return
		}
	}
}

func (s *Server) handleEnvelope(conn *Conn, env *InboundEnvelope) {
	if env.Event == EventAuthenticate {
		// Already authenticated at connect time.
		return
	}

	ctx, span := tracing.TraceEvent(context.Background(), env.Event, string(conn.ctx.Identity.ID))
	start := time.Now()
	err := s.dispatcher.Dispatch(ctx, conn.ctx, env)
	s.metrics.RecordEventHandled(env.Event, time.Since(start))

	if err != nil {
		tracing.RecordError(ctx, err)
		appErr := apperrors.GetAppError(err)
		if appErr == nil {
			appErr = apperrors.NewInvalidInputError(err.Error())
		}
		s.metrics.RecordEventError(string(appErr.Code))
		if appErr.Code == apperrors.ErrCodeRateLimit {
			s.metrics.RecordRateLimitRejection(env.Event)
		}
		s.logger.Debugw("event failed",
			"connection_id", conn.ctx.ID,
			"event", env.Event,
			"code", appErr.Code,
		)
		conn.Send(errorEnvelope(appErr))
	}
	span.End()
}

// cleanup tears the connection down: presence is removed from every room the
// connection sat in, and the departure is announced per room.
func (s *Server) cleanup(conn *Conn) {
	rooms := s.hub.Unregister(conn.ctx.ID)
	s.cursors.forget(string(conn.ctx.ID))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.rooms.Disconnect(ctx, conn.ctx.Identity, conn.ctx.ID, rooms); err != nil {
		s.logger.Warnw("disconnect cleanup failed",
			"connection_id", conn.ctx.ID,
			"error", err,
		)
	}

	conn.Close()
	s.metrics.RecordConnectionClosed()
	s.metrics.SetActiveRooms(s.hub.ActiveRooms())

	s.logger.Infow("client disconnected",
		"connection_id", conn.ctx.ID,
		"identity_id", conn.ctx.Identity.ID,
		"rooms", len(rooms),
	)
}
