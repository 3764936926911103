package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/atriumverse/atrium/internal/auth/jwt"
	"github.com/atriumverse/atrium/internal/common/config"
	"github.com/atriumverse/atrium/internal/observability"
	"github.com/atriumverse/atrium/internal/ratelimit"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Server upgrades HTTP requests to WebSocket connections and runs one
// read pump and one write pump per connection. The single read pump is
// what preserves per-connection event ordering.
type Server struct {
	hub      *Hub
	gateway  *Gateway
	tokens   *jwt.Manager
	limiter  *ratelimit.Limiter
	cfg      config.GatewayConfig
	logger   *zap.Logger
	metrics  *observability.Metrics
	upgrader websocket.Upgrader
}

func NewServer(hub *Hub, gw *Gateway, tokens *jwt.Manager, limiter *ratelimit.Limiter, cfg config.GatewayConfig, logger *zap.Logger, metrics *observability.Metrics) *Server {
	return &Server{
		hub:     hub,
		gateway: gw,
		tokens:  tokens,
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// Browsers connect from the game client's origin; auth is
			// the token, not the origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// HandleWS authenticates the token query parameter and, only then,
// upgrades and registers the connection.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	claims, err := s.tokens.Validate(r.URL.Query().Get("token"))
	if err != nil {
		s.logger.Warn("websocket auth rejected", zap.Error(err))
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.NewString(), s.cfg.SendBufferSize)
	if !s.hub.Register(client) {
		_ = conn.Close()
		return
	}

	s.logger.Info("connection established",
		zap.String("connection_id", client.ID),
		zap.String("user_id", claims.UserID),
	)

	go s.writePump(conn, client)
	go s.readPump(conn, client)
}

func (s *Server) readPump(conn *websocket.Conn, client *Client) {
	defer func() {
		s.gateway.HandleDisconnect(client)
		s.hub.Unregister(client.ID)
		_ = s.limiter.Forget(context.Background(), client.ID)
		_ = conn.Close()
	}()

	conn.SetReadLimit(s.cfg.MaxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	})

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("connection dropped",
					zap.String("connection_id", client.ID),
					zap.Error(err),
				)
			}
			return
		}

		allowed, err := s.limiter.Allow(context.Background(), client.ID)
		if err == nil && !allowed {
			s.logger.Warn("inbound event rate limited", zap.String("connection_id", client.ID))
			continue
		}

		var env Envelope
		if err := json.Unmarshal(message, &env); err != nil {
			s.logger.Warn("malformed envelope",
				zap.String("connection_id", client.ID),
				zap.Error(err),
			)
			continue
		}

		ev, err := DecodeInbound(env)
		if err != nil {
			s.logger.Warn("rejected inbound event",
				zap.String("connection_id", client.ID),
				zap.Error(err),
			)
			continue
		}

		s.dispatch(client, env.Event, ev)
	}
}

// dispatch isolates handler panics so one bad event cannot take down the
// read pump, and records per-event handler latency.
func (s *Server) dispatch(client *Client, eventName string, ev Inbound) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("panic in event handler",
				zap.String("connection_id", client.ID),
				zap.String("event", eventName),
				zap.Any("panic", rec),
				zap.String("stack", string(debug.Stack())),
			)
		}
	}()

	start := time.Now()
	s.gateway.HandleEvent(context.Background(), client, ev)
	s.metrics.RecordEvent(eventName, time.Since(start))
}

func (s *Server) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		_ = conn.Close()
	}()

	for {
		select {
		case ev, ok := <-client.Send():
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(outboundFrame{Event: ev.Name, Data: ev.Data}); err != nil {
				s.logger.Warn("write failed",
					zap.String("connection_id", client.ID),
					zap.Error(err),
				)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

type outboundFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}
