package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/immxrtalbeast/collabboard/internal/api/http/converter"
	"github.com/immxrtalbeast/collabboard/internal/domain"
	"github.com/immxrtalbeast/collabboard/internal/service"
	"github.com/immxrtalbeast/collabboard/lib/logger/sl"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum inbound message size. Whiteboard strokes stay small.
	maxMessageSize = 64 * 1024
)

type SessionController struct {
	sessions service.SessionInteractor
	users    service.UserInteractor
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewSessionController(sessions service.SessionInteractor, users service.UserInteractor, log *slog.Logger) *SessionController {
	if log == nil {
		log = slog.Default()
	}
	return &SessionController{
		sessions: sessions,
		users:    users,
		log:      log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// JoinSession upgrades to a WebSocket and runs the connection's entire
// lifetime. Identity resolution hits the user store before the room is
// touched, so no I/O ever runs inside the coordinator's critical
// section.
func (c *SessionController) JoinSession(ctx *gin.Context) {
	displayName := ctx.Query("name")
	if displayName == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}
	claimCode := ctx.Query("claim_code")

	var user *domain.User
	if userIDStr := ctx.Query("user_id"); userIDStr != "" {
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
			return
		}
		u, err := c.users.GetUser(ctx.Request.Context(), userID)
		if err != nil {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		user = u
		user.Name = displayName
	} else {
		user = domain.NewGuestUser(displayName)
	}

	ws, err := c.upgrader.Upgrade(ctx.Writer, ctx.Request, nil)
	if err != nil {
		c.log.Error("failed to upgrade connection", sl.Err(err))
		return
	}

	conn, snapshot, err := c.sessions.Join(context.Background(), user, claimCode)
	if err != nil {
		_ = ws.WriteJSON(converter.ErrorEvent(err.Error()))
		ws.Close()
		return
	}

	// The welcome frame goes out before the writer pump starts, so it
	// is always the first thing the joiner sees.
	if err := ws.WriteJSON(converter.WelcomeEvent(conn, snapshot)); err != nil {
		c.sessions.Disconnect(conn.ID)
		ws.Close()
		return
	}

	go c.writePump(ws, conn)
	c.readLoop(ws, conn)
}

// readLoop is the sole reader of the socket. Malformed input is the
// only thing answered with an error frame; everything else follows the
// fail-silent policy inside the coordinator.
func (c *SessionController) readLoop(ws *websocket.Conn, conn *domain.Connection) {
	defer func() {
		c.sessions.Disconnect(conn.ID)
		ws.Close()
	}()

	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg domain.ClientMessage
		if err := ws.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Debug("websocket read failed", slog.String("conn_id", conn.ID), sl.Err(err))
			}
			return
		}

		if err := c.dispatch(conn, &msg); err != nil {
			conn.EnqueueEvent(converter.ErrorEvent(err.Error()))
		}
	}
}

func (c *SessionController) dispatch(conn *domain.Connection, msg *domain.ClientMessage) error {
	ctx := context.Background()

	switch msg.Type {
	case domain.ClientChatSend:
		return c.sessions.SendChat(ctx, conn.ID, msg.Text)

	case domain.ClientChatDelete:
		messageID, err := uuid.Parse(msg.MessageID)
		if err != nil {
			return errors.New("message_id must be a valid uuid")
		}
		c.sessions.DeleteChat(ctx, conn.ID, messageID)
		return nil

	case domain.ClientDraw:
		if len(msg.Payload) == 0 {
			return errors.New("draw payload is required")
		}
		c.sessions.Draw(conn.ID, msg.Payload)
		return nil

	case domain.ClientCanvasClear:
		c.sessions.ClearCanvas(conn.ID)
		return nil

	case domain.ClientSetGlobalDraw:
		if msg.Enabled == nil {
			return errors.New("enabled is required")
		}
		c.sessions.SetGlobalDrawPermission(conn.ID, *msg.Enabled)
		return nil

	case domain.ClientSetUserDraw:
		if msg.TargetID == "" {
			return errors.New("target_id is required")
		}
		if msg.Enabled == nil {
			return errors.New("enabled is required")
		}
		c.sessions.SetUserDrawPermission(conn.ID, msg.TargetID, *msg.Enabled)
		return nil

	case domain.ClientKick:
		if msg.TargetID == "" {
			return errors.New("target_id is required")
		}
		c.sessions.Kick(conn.ID, msg.TargetID)
		return nil

	case domain.ClientPeerReady:
		if msg.PeerHandle == "" {
			return service.ErrPeerHandleRequired
		}
		peers := c.sessions.PeerReady(conn.ID, msg.PeerHandle)
		conn.EnqueueEvent(converter.PeerListEvent(peers))
		return nil

	case domain.ClientPeerLeft:
		if msg.PeerHandle == "" {
			return service.ErrPeerHandleRequired
		}
		c.sessions.PeerLeft(conn.ID, msg.PeerHandle)
		return nil

	case domain.ClientLeave:
		c.sessions.Leave(conn.ID)
		return nil

	default:
		return errors.New("unsupported message type: " + string(msg.Type))
	}
}

// writePump is the sole writer of the socket: it forwards the
// connection's event stream and keeps the link alive with pings. When
// the coordinator closes the event channel the pump drains what is
// buffered, sends a close frame, and exits.
func (c *SessionController) writePump(ws *websocket.Conn, conn *domain.Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case event, ok := <-conn.Events:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ws.WriteJSON(event); err != nil {
				c.log.Debug("websocket write failed", slog.String("conn_id", conn.ID), sl.Err(err))
				return
			}

		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *SessionController) Stats(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"stats": c.sessions.Stats()})
}
