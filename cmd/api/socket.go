package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tradiehub/messaging-api/internal/data"
	"github.com/tradiehub/messaging-api/internal/realtime"
)

const maxFrameSize = 8 << 10 // inbound frames are small JSON commands

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin enforcement belongs to the edge proxy; tokens authenticate here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is the single inbound frame shape. Fields beyond type are
// interpreted per frame type.
type clientFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	Content        string `json:"content"`
}

// serveWS authenticates the handshake, upgrades, registers the session and
// runs the read loop until the client disconnects. Browser clients cannot
// set headers on a websocket handshake, so the token travels as a query
// parameter.
func (a *api) serveWS(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "token is required"})
		return
	}
	principal, err := a.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "invalid or expired token"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the handshake error response.
		log.Printf("websocket upgrade failed for %s: %v", principal.ID, err)
		return
	}

	conn := realtime.NewConnection(principal.ID, ws, a.cfg.SendBuffer)
	conn.Start()
	a.hub.Register(conn)
	defer func() {
		a.hub.Drop(conn.ID())
		conn.Close(websocket.CloseNormalClosure, "")
	}()

	_ = conn.Send(realtime.AckEvent(realtime.EventConnected, ""))

	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(a.cfg.ReadTimeout))
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("websocket read error for %s: %v", principal.ID, err)
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			_ = conn.Send(realtime.ErrorEvent("badFrame", "malformed frame"))
			continue
		}
		a.dispatchFrame(c, conn, frame)
	}
}

// dispatchFrame handles one inbound frame. Errors are reported only to the
// offending connection, never fanned out.
func (a *api) dispatchFrame(c *gin.Context, conn *realtime.Connection, frame clientFrame) {
	ctx := c.Request.Context()

	switch frame.Type {
	case "join":
		if err := a.svc.AuthorizeJoin(ctx, frame.ConversationID, conn.Principal()); err != nil {
			_ = conn.Send(realtime.ErrorEvent("joinDenied", frameErrorMessage(err)))
			return
		}
		a.hub.Join(conn.ID(), frame.ConversationID)
		_ = conn.Send(realtime.AckEvent(realtime.EventJoined, frame.ConversationID))

	case "leave":
		a.hub.Leave(conn.ID(), frame.ConversationID)
		_ = conn.Send(realtime.AckEvent(realtime.EventLeft, frame.ConversationID))

	case "send":
		// Joining the room is a prerequisite for the socket send path; the
		// service re-checks participation regardless.
		if !a.hub.InRoom(conn.ID(), frame.ConversationID) {
			_ = conn.Send(realtime.ErrorEvent("notJoined", "join the conversation first"))
			return
		}
		if _, err := a.svc.SendMessage(ctx, frame.ConversationID, conn.Principal(), frame.Content); err != nil {
			_ = conn.Send(realtime.ErrorEvent("sendFailed", frameErrorMessage(err)))
		}

	case "typing", "stopTyping":
		if !a.hub.InRoom(conn.ID(), frame.ConversationID) {
			return
		}
		a.hub.BroadcastToRoom(frame.ConversationID, realtime.TypingEvent(frame.Type, frame.ConversationID, conn.Principal()), conn.ID())

	case "markRead":
		if _, err := a.svc.MarkConversationRead(ctx, frame.ConversationID, conn.Principal()); err != nil {
			_ = conn.Send(realtime.ErrorEvent("markReadFailed", frameErrorMessage(err)))
		}

	default:
		_ = conn.Send(realtime.ErrorEvent("badFrame", "unknown frame type"))
	}
}

// frameErrorMessage mirrors the REST error mapping for socket error frames.
func frameErrorMessage(err error) string {
	switch {
	case errors.Is(err, data.ErrInvalidInput), errors.Is(err, data.ErrEmptyContent):
		return err.Error()
	case errors.Is(err, data.ErrForbidden):
		return "not a participant of this conversation"
	case errors.Is(err, data.ErrNotFound):
		return "not found"
	case errors.Is(err, data.ErrConflict):
		return "conversation creation conflicted, retry"
	}
	return "internal error"
}
