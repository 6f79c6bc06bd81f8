package wsrelay

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/jwvaartjes/dental-relay/internal/auth"
	"github.com/jwvaartjes/dental-relay/pkg/Logger"
)

// Handler performs the WebSocket upgrade and runs each connection's read
// loop: identify/mobile_init handshake, then message dispatch for the
// lifetime of the socket.
type Handler struct {
	logger *Logger.Logger
	hub    *Hub

	upgrader websocket.Upgrader
}

func NewHandler(logger *Logger.Logger, hub *Hub) *Handler {
	return &Handler{
		logger: logger,
		hub:    hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// RegisterRoutes wires the two connection endpoints: /ws/desktop for the
// full-role side that issues pair codes, and /ws/mobile for the
// pair-code-scoped side that streams audio.
func (h *Handler) RegisterRoutes(router gin.IRouter) {
	ws := router.Group("/ws")
	{
		ws.GET("/desktop", h.HandleDesktop)
		ws.GET("/mobile", h.HandleMobile)
	}
}

// HandleDesktop upgrades the connection, validates the bearer token from
// the query string, and keeps the session alive awaiting a pair-code
// request or a claimed mobile peer's messages.
func (h *Handler) HandleDesktop(c *gin.Context) {
	claims, ok := h.authenticate(c, auth.RoleDesktop)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("desktop ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sess := NewSession(uuid.NewString(), RoleDesktop, conn)
	h.hub.Register(sess)
	defer h.hub.Unregister(sess)

	h.readLoop(sess, claims.PrincipalID)
}

// HandleMobile upgrades the connection and expects its first message to be
// a mobile_init carrying the pair code (the bearer token, if present, is
// the reduced-role token a prior pairing issued; a bare pair code is also
// accepted for a first-time claim).
func (h *Handler) HandleMobile(c *gin.Context) {
	claims, _ := h.authenticate(c, auth.RolePairedMobile)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("mobile ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sess := NewSession(uuid.NewString(), RoleMobile, conn)
	h.hub.Register(sess)
	defer func() {
		h.hub.FlushAudio(sess)
		h.hub.Unregister(sess)
	}()

	principalID := ""
	if claims != nil {
		principalID = claims.PrincipalID
	}
	h.readLoop(sess, principalID)
}

// authenticate reads the bearer token from the "token" query parameter. A
// missing or invalid token on the desktop side closes the connection
// before it is even upgraded; on the mobile side a missing token is
// allowed through since first-time pairing authenticates by pair code
// instead.
func (h *Handler) authenticate(c *gin.Context, wantRole auth.Role) (*auth.Claims, bool) {
	token := c.Query("token")
	if token == "" {
		if wantRole == auth.RoleDesktop {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return nil, false
		}
		return nil, true
	}

	claims, err := h.hub.tokens.Verify(token)
	if err != nil {
		h.logger.Warnf("ws token rejected: %v", err)
		if wantRole == auth.RoleDesktop {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return nil, false
		}
		return nil, true
	}
	return claims, true
}

// readLoop drives one connection until it closes or a read error occurs,
// dispatching each frame by kind. principalID is the desktop's identity
// for pair-code issuance; it is empty for a mobile session that connected
// without a valid token, and it stays fixed for the life of the connection.
func (h *Handler) readLoop(sess *Session, principalID string) {
	for {
		msgType, data, err := sess.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Debugf("ws read error on session %s: %v", sess.ID, err)
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			if sess.Role == RoleMobile {
				h.hub.IngestAudio(sess, data)
			}
		case websocket.TextMessage:
			h.dispatchText(sess, principalID, data)
		}
	}
}

func (h *Handler) dispatchText(sess *Session, principalID string, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.sendError(sess, "invalid_message", "could not parse message")
		return
	}

	switch env.Type {
	case TypeIdentify:
		h.handleIdentify(sess, principalID)

	case TypeMobileInit:
		h.handleMobileInit(sess, env)

	case TypePing:
		sess.Touch()
		if eenv, err := marshalEnvelope(TypePong, struct{}{}); err == nil {
			sess.Send(eenv)
		}

	case TypeChannelMessage:
		h.hub.RouteChannelMessage(sess, env.Data)

	case TypeFlushAudio:
		if sess.Role == RoleMobile {
			h.hub.FlushAudio(sess)
		}

	default:
		h.sendError(sess, "unknown_type", "unrecognized message type")
	}
}

func (h *Handler) handleIdentify(sess *Session, principalID string) {
	if sess.Role != RoleDesktop || principalID == "" {
		h.sendError(sess, "not_authorized", "identify is only valid on an authenticated desktop connection")
		return
	}
	pc, err := h.hub.IssuePairCode(sess, principalID)
	if pc.Code == "" {
		h.sendError(sess, "pairing_failed", err.Error())
		return
	}
	if err != nil {
		// The code works against this instance regardless; only its
		// cross-process Redis mirroring failed. Log and proceed.
		h.logger.Errorf("pair code %s issued but not mirrored: %v", pc.Code, err)
	}
	env, err := marshalEnvelope(TypeChannelJoined, ChannelJoinedPayload{ChannelID: pc.ChannelID})
	if err != nil {
		return
	}
	sess.Send(env)
}

func (h *Handler) handleMobileInit(sess *Session, env Envelope) {
	if sess.Role != RoleMobile {
		h.sendError(sess, "not_authorized", "mobile_init is only valid on a mobile connection")
		return
	}
	var payload MobileInitPayload
	if err := decodePayload(env.Data, &payload); err != nil || payload.PairCode == "" {
		h.sendError(sess, "invalid_message", "mobile_init requires a pair_code")
		return
	}

	result, err := h.hub.ClaimPairCode(sess, payload.PairCode)
	if err != nil {
		h.sendError(sess, "pairing_failed", err.Error())
		return
	}

	env2, err := marshalEnvelope(TypeChannelJoined, ChannelJoinedPayload{ChannelID: result.ChannelID})
	if err != nil {
		return
	}
	sess.Send(env2)
}

func (h *Handler) sendError(sess *Session, code, message string) {
	env, err := marshalEnvelope(TypeError, ErrorPayload{Code: code, Message: message})
	if err != nil {
		return
	}
	sess.Send(env)
}

// StartStaleSweep runs the hub's staleness sweep on an interval until ctx
// is cancelled, matching the client-originated-heartbeat-only model: there
// is no server ping to piggyback liveness detection on, so a timer is the
// only way to notice a peer that vanished without a close frame.
func (h *Handler) StartStaleSweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.hub.SweepStale()
			}
		}
	}()
}
