package realtime

import (
	"encoding/json"
	"log"
	"time"

	"github.com/tradiehub/messaging-api/internal/data"
)

// Server-to-client event types.
const (
	EventConnected          = "connected"
	EventJoined             = "joined"
	EventLeft               = "left"
	EventNewMessage         = "newMessage"
	EventTyping             = "typing"
	EventStopTyping         = "stopTyping"
	EventMessagesRead       = "messagesRead"
	EventUnreadCountChanged = "unreadCountChanged"
	EventError              = "error"
)

// MessagePayload is the wire shape of a message.
type MessagePayload struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Content        string    `json:"content"`
	ReadBy         []string  `json:"readBy"`
	Seq            int64     `json:"seq"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NewMessagePayload converts a stored message for the wire.
func NewMessagePayload(msg *data.Message) MessagePayload {
	return MessagePayload{
		ID:             msg.ID.Hex(),
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
		ReadBy:         msg.ReadBy,
		Seq:            msg.Seq,
		CreatedAt:      msg.CreatedAt,
	}
}

type newMessageFrame struct {
	Type           string         `json:"type"`
	ConversationID string         `json:"conversationId"`
	Message        MessagePayload `json:"message"`
}

type presenceFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	PrincipalID    string `json:"principalId"`
}

type unreadFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	UnreadCount    int64  `json:"unreadCount"`
}

type ackFrame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId,omitempty"`
}

type errorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func marshal(v any) []byte {
	payload, err := json.Marshal(v)
	if err != nil {
		// frames are plain structs; this only fires on a programming error
		log.Printf("failed to encode event frame: %v", err)
		return nil
	}
	return payload
}

// NewMessageEvent encodes a newMessage frame.
func NewMessageEvent(msg *data.Message) []byte {
	return marshal(newMessageFrame{
		Type:           EventNewMessage,
		ConversationID: msg.ConversationID,
		Message:        NewMessagePayload(msg),
	})
}

// TypingEvent encodes a typing or stopTyping frame.
func TypingEvent(eventType, conversationID, principalID string) []byte {
	return marshal(presenceFrame{Type: eventType, ConversationID: conversationID, PrincipalID: principalID})
}

// MessagesReadEvent encodes a read-receipt frame.
func MessagesReadEvent(conversationID, principalID string) []byte {
	return marshal(presenceFrame{Type: EventMessagesRead, ConversationID: conversationID, PrincipalID: principalID})
}

// UnreadCountEvent encodes an unread-count badge update.
func UnreadCountEvent(conversationID string, count int64) []byte {
	return marshal(unreadFrame{Type: EventUnreadCountChanged, ConversationID: conversationID, UnreadCount: count})
}

// AckEvent encodes a connected/joined/left acknowledgement.
func AckEvent(eventType, conversationID string) []byte {
	return marshal(ackFrame{Type: eventType, ConversationID: conversationID})
}

// ErrorEvent encodes an error frame scoped to one connection.
func ErrorEvent(code, message string) []byte {
	return marshal(errorFrame{Type: EventError, Code: code, Message: message})
}

// Broadcaster fans successful mutations out to connected sessions. It
// implements the chat event sink: a new message goes to the conversation
// room plus an unread-count update on the recipient's personal channel, and
// a read-mark goes to the room plus a zeroed badge for the reader.
type Broadcaster struct {
	hub *Hub
}

// NewBroadcaster returns a Broadcaster over the hub.
func NewBroadcaster(hub *Hub) *Broadcaster {
	return &Broadcaster{hub: hub}
}

// MessageAppended pushes the message to the room and the recipient's badge.
func (b *Broadcaster) MessageAppended(conv *data.Conversation, msg *data.Message) {
	b.hub.BroadcastToRoom(msg.ConversationID, NewMessageEvent(msg), "")

	if recipient := conv.OtherParticipant(msg.SenderID); recipient != "" {
		b.hub.NotifyPrincipal(recipient, UnreadCountEvent(conv.ID.Hex(), conv.UnreadFor(recipient)))
	}
}

// MessagesRead pushes a read receipt to the room and zeroes the reader's badge.
func (b *Broadcaster) MessagesRead(conv *data.Conversation, principalID string) {
	conversationID := conv.ID.Hex()
	b.hub.BroadcastToRoom(conversationID, MessagesReadEvent(conversationID, principalID), "")
	b.hub.NotifyPrincipal(principalID, UnreadCountEvent(conversationID, 0))
}
