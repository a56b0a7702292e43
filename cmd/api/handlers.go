package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tradiehub/messaging-api/internal/data"
	"github.com/tradiehub/messaging-api/internal/middleware"
	"github.com/tradiehub/messaging-api/internal/realtime"
)

type createConversationRequest struct {
	ParticipantID  string `json:"participantId" binding:"required"`
	ContextID      string `json:"contextId"`
	InitialMessage string `json:"initialMessage"`
}

type sendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// conversationView is the REST shape of a conversation, rendered from the
// perspective of the caller: the other participant and the caller's own
// unread slot, never the raw pair.
type conversationView struct {
	ID            string                   `json:"id"`
	ParticipantID string                   `json:"participantId"`
	ContextID     string                   `json:"contextId,omitempty"`
	LastMessage   *realtime.MessagePayload `json:"lastMessage,omitempty"`
	UnreadCount   int64                    `json:"unreadCount"`
	Active        bool                     `json:"active"`
	CreatedAt     time.Time                `json:"createdAt"`
	UpdatedAt     time.Time                `json:"updatedAt"`
}

func newConversationView(conv *data.Conversation, last *data.Message, callerID string) conversationView {
	view := conversationView{
		ID:            conv.ID.Hex(),
		ParticipantID: conv.OtherParticipant(callerID),
		ContextID:     conv.ContextID,
		UnreadCount:   conv.UnreadFor(callerID),
		Active:        conv.Active,
		CreatedAt:     conv.CreatedAt,
		UpdatedAt:     conv.UpdatedAt,
	}
	if last != nil {
		payload := realtime.NewMessagePayload(last)
		view.LastMessage = &payload
	}
	return view
}

func respondData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// respondError maps domain errors onto HTTP statuses with the standard
// envelope. Unknown errors log server-side and return a generic 500 so
// internals never leak to clients.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal server error"

	switch {
	case errors.Is(err, data.ErrInvalidInput), errors.Is(err, data.ErrEmptyContent):
		status = http.StatusBadRequest
		message = err.Error()
	case errors.Is(err, data.ErrForbidden):
		status = http.StatusForbidden
		message = "not a participant of this conversation"
	case errors.Is(err, data.ErrNotFound):
		status = http.StatusNotFound
		message = "not found"
	case errors.Is(err, data.ErrConflict):
		status = http.StatusConflict
		message = "conversation creation conflicted, retry"
	}

	if status == http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"success": false, "error": message})
}

func (a *api) createConversation(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "participantId is required"})
		return
	}

	callerID := middleware.PrincipalID(c)
	conv, initial, err := a.svc.CreateConversation(c.Request.Context(), callerID, req.ParticipantID, req.ContextID, req.InitialMessage)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusCreated, newConversationView(conv, initial, callerID))
}

func (a *api) listConversations(c *gin.Context) {
	callerID := middleware.PrincipalID(c)

	summaries, err := a.svc.ListConversations(c.Request.Context(), callerID)
	if err != nil {
		respondError(c, err)
		return
	}

	views := make([]conversationView, 0, len(summaries))
	for _, s := range summaries {
		views = append(views, newConversationView(s.Conversation, s.LastMessage, callerID))
	}
	respondData(c, http.StatusOK, views)
}

func (a *api) getConversation(c *gin.Context) {
	callerID := middleware.PrincipalID(c)

	conv, messages, err := a.svc.GetConversation(c.Request.Context(), c.Param("id"), callerID)
	if err != nil {
		respondError(c, err)
		return
	}

	payloads := make([]realtime.MessagePayload, 0, len(messages))
	for _, m := range messages {
		payloads = append(payloads, realtime.NewMessagePayload(m))
	}

	respondData(c, http.StatusOK, gin.H{
		"conversation": newConversationView(conv, nil, callerID),
		"messages":     payloads,
	})
}

func (a *api) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "content is required"})
		return
	}

	msg, err := a.svc.SendMessage(c.Request.Context(), c.Param("id"), middleware.PrincipalID(c), req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusCreated, realtime.NewMessagePayload(msg))
}

func (a *api) markRead(c *gin.Context) {
	marked, err := a.svc.MarkConversationRead(c.Request.Context(), c.Param("id"), middleware.PrincipalID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"markedRead": marked})
}

func (a *api) unreadTotal(c *gin.Context) {
	total, err := a.svc.UnreadTotal(c.Request.Context(), middleware.PrincipalID(c))
	if err != nil {
		respondError(c, err)
		return
	}

	respondData(c, http.StatusOK, gin.H{"unreadCount": total})
}
