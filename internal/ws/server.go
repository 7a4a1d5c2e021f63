// Package ws provides the WebSocket server for client connections.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/SkyMonder/SkyCallPro/internal/auth"
	"github.com/SkyMonder/SkyCallPro/internal/chat"
	"github.com/SkyMonder/SkyCallPro/internal/config"
	"github.com/SkyMonder/SkyCallPro/internal/directory"
	"github.com/SkyMonder/SkyCallPro/internal/hub"
	"github.com/SkyMonder/SkyCallPro/internal/metrics"
	"github.com/SkyMonder/SkyCallPro/internal/presence"
	"github.com/SkyMonder/SkyCallPro/internal/protocol"
	"github.com/SkyMonder/SkyCallPro/internal/registry"
	"github.com/SkyMonder/SkyCallPro/internal/signal"
)

// Server handles WebSocket connections and dispatches client events to the
// registry, the presence broadcaster, the signal router, and the chat relay.
type Server struct {
	cfg      *config.Config
	hub      *hub.Hub
	registry *registry.Registry
	presence *presence.Broadcaster
	signals  *signal.Router
	chat     *chat.Relay
	dir      *directory.Directory
	tokens   *auth.Manager
	logger   zerolog.Logger
	upgrader websocket.Upgrader
}

// NewServer creates a new WebSocket server.
func NewServer(cfg *config.Config, h *hub.Hub, reg *registry.Registry, pres *presence.Broadcaster,
	signals *signal.Router, chatRelay *chat.Relay, dir *directory.Directory, tokens *auth.Manager,
	logger zerolog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		hub:      h,
		registry: reg,
		presence: pres,
		signals:  signals,
		chat:     chatRelay,
		dir:      dir,
		tokens:   tokens,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Clients connect from arbitrary origins.
				return true
			},
		},
	}
}

// HandleWebSocket handles WebSocket upgrade and connection lifecycle.
func (s *Server) HandleWebSocket(c echo.Context) error {
	ws, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return err
	}

	conn := s.hub.NewConnection(ws)
	s.hub.Register(conn)
	metrics.ConnectionsActive.Set(float64(s.hub.Count()))

	ws.SetReadLimit(s.cfg.MaxMessageSize)

	go s.writePump(conn)
	go s.readPump(conn)

	return nil
}

// readPump reads messages from the WebSocket connection. On exit the
// registry binding is removed before the connection handle is discarded, so
// a dead connection can never be a routing target.
func (s *Server) readPump(conn *hub.Connection) {
	defer func() {
		s.registry.Unbind(conn)
		s.hub.Unregister(conn)
		metrics.ConnectionsActive.Set(float64(s.hub.Count()))
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
	conn.Conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout))
		return nil
	})

	for {
		_, message, err := conn.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Debug().Err(err).Str("conn", conn.ID).Msg("websocket read error")
			}
			break
		}

		s.handleMessage(conn, message)
	}
}

// writePump drains the connection's outbound queue onto the socket and
// keeps the connection alive with periodic pings.
func (s *Server) writePump(conn *hub.Connection) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case message := <-conn.Send:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-conn.Done():
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage dispatches incoming messages to appropriate handlers.
func (s *Server) handleMessage(conn *hub.Connection, data []byte) {
	var baseMsg protocol.BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "invalid JSON message")
		return
	}

	switch baseMsg.Type {
	case protocol.TypeAnnounce:
		s.handleAnnounce(conn, data)
	case protocol.TypeSearchRoster:
		s.handleSearchRoster(conn, data)
	case protocol.TypeCallInvite, protocol.TypeCallOffer, protocol.TypeCallAnswer,
		protocol.TypeIceCandidate, protocol.TypeCallEnd:
		s.handleSignal(conn, baseMsg.Type, data)
	case protocol.TypeChatSend:
		s.handleChatSend(conn, data)
	default:
		s.sendError(conn, "", protocol.ErrorCodeInvalidMessage, "unknown message type: "+baseMsg.Type)
	}
}

// handleAnnounce binds the connection to an identity. The token issued at
// login proves the identity; the relay never sees passwords.
func (s *Server) handleAnnounce(conn *hub.Connection, data []byte) {
	var msg protocol.AnnounceMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, protocol.TypeAnnounce, protocol.ErrorCodeInvalidMessage, "invalid announce message")
		return
	}
	if msg.Username == "" {
		s.sendError(conn, protocol.TypeAnnounce, protocol.ErrorCodeInvalidMessage, "username is required")
		return
	}

	subject, err := s.tokens.Verify(msg.Token)
	if err != nil || subject != msg.Username {
		s.sendError(conn, protocol.TypeAnnounce, protocol.ErrorCodeUnauthorized, "invalid token")
		return
	}

	user, err := s.dir.Profile(context.Background(), msg.Username)
	if err != nil {
		s.sendError(conn, protocol.TypeAnnounce, protocol.ErrorCodeUnauthorized, "unknown identity")
		return
	}

	// Last-login-wins: a prior connection for this identity is silently
	// superseded; the registry change triggers the roster push.
	s.registry.Bind(conn, msg.Username)

	ack := protocol.AnnounceAckMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeAnnounceAck, Ts: time.Now().UnixMilli()},
		Username:    user.Username,
		DisplayName: user.DisplayName,
	}
	conn.EnqueueJSON(ack)

	s.logger.Info().Str("username", msg.Username).Str("conn", conn.ID).Msg("identity announced")
}

// handleSearchRoster answers with a filtered roster for this client only.
func (s *Server) handleSearchRoster(conn *hub.Connection, data []byte) {
	var msg protocol.SearchRosterMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, protocol.TypeSearchRoster, protocol.ErrorCodeInvalidMessage, "invalid search_roster message")
		return
	}

	entries, err := s.presence.Roster(context.Background(), msg.Query)
	if err != nil {
		s.sendError(conn, protocol.TypeSearchRoster, protocol.ErrorCodeStorageFailure, "roster unavailable")
		return
	}

	conn.EnqueueJSON(protocol.RosterMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeRoster, Ts: time.Now().UnixMilli()},
		Entries:     entries,
	})
}

// handleSignal relays one call-negotiation hop. Only call_invite has a
// response path; failures on the other kinds are observable only as silence.
func (s *Server) handleSignal(conn *hub.Connection, kind string, data []byte) {
	var msg protocol.SignalMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		if signal.AcksFailure(kind) {
			s.sendError(conn, kind, protocol.ErrorCodeInvalidMessage, "invalid signal message")
		}
		return
	}

	err := s.signals.Relay(conn, kind, msg.Target, msg.Payload)
	if err == nil {
		if signal.AcksFailure(kind) {
			conn.EnqueueJSON(protocol.CallInviteAckMessage{
				BaseMessage: protocol.BaseMessage{Type: protocol.TypeCallInviteAck, Ts: time.Now().UnixMilli()},
				Target:      msg.Target,
			})
		}
		return
	}

	if !signal.AcksFailure(kind) {
		return
	}
	switch {
	case errors.Is(err, signal.ErrNotAuthenticated):
		s.sendError(conn, kind, protocol.ErrorCodeNotLoggedIn, "announce first")
	case errors.Is(err, signal.ErrTargetUnreachable):
		s.sendError(conn, kind, protocol.ErrorCodeUserOffline, "target unknown or offline")
	}
}

// handleChatSend runs the persist-then-forward chat pipeline.
func (s *Server) handleChatSend(conn *hub.Connection, data []byte) {
	var msg protocol.ChatSendMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.sendError(conn, protocol.TypeChatSend, protocol.ErrorCodeInvalidMessage, "invalid chat_send message")
		return
	}
	if msg.Target == "" {
		s.sendError(conn, protocol.TypeChatSend, protocol.ErrorCodeInvalidMessage, "target is required")
		return
	}

	_, err := s.chat.Send(context.Background(), conn, msg.Target, msg.Text)
	switch {
	case err == nil:
		// The relay already enqueued the durability ack.
	case errors.Is(err, chat.ErrNotAuthenticated):
		s.sendError(conn, protocol.TypeChatSend, protocol.ErrorCodeNotLoggedIn, "announce first")
	case errors.Is(err, chat.ErrEmptyMessage):
		s.sendError(conn, protocol.TypeChatSend, protocol.ErrorCodeEmptyMessage, "message body is empty")
	default:
		s.sendError(conn, protocol.TypeChatSend, protocol.ErrorCodeStorageFailure, "message could not be stored")
	}
}

// sendError sends an error message to a connection.
func (s *Server) sendError(conn *hub.Connection, forType, code, message string) {
	conn.EnqueueJSON(protocol.ErrorMessage{
		BaseMessage: protocol.BaseMessage{Type: protocol.TypeError, Ts: time.Now().UnixMilli()},
		For:         forType,
		Code:        code,
		Message:     message,
	})
}
