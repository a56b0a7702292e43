package data

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Conversation maps to the conversations collection. The two participants
// are stored in canonical order (ParticipantA < ParticipantB) with one fixed
// unread slot each, so counter updates stay single-document atomic.
type Conversation struct {
	ID            bson.ObjectID `bson:"_id,omitempty"`
	ParticipantA  string        `bson:"participant_a"`
	ParticipantB  string        `bson:"participant_b"`
	PairKey       string        `bson:"pair_key"`
	ContextID     string        `bson:"context_id"` // "" means no job/booking context
	LastMessageID string        `bson:"last_message_id"`
	UnreadA       int64         `bson:"unread_a"`
	UnreadB       int64         `bson:"unread_b"`
	Active        bool          `bson:"active"`
	CreatedAt     time.Time     `bson:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at"`
}

// Participants returns both participant ids in canonical order.
func (c *Conversation) Participants() []string {
	return []string{c.ParticipantA, c.ParticipantB}
}

// HasParticipant reports whether the principal is one of the two participants.
func (c *Conversation) HasParticipant(principalID string) bool {
	return principalID == c.ParticipantA || principalID == c.ParticipantB
}

// OtherParticipant returns the participant that is not the given principal.
// Returns "" if the principal is not a participant.
func (c *Conversation) OtherParticipant(principalID string) string {
	switch principalID {
	case c.ParticipantA:
		return c.ParticipantB
	case c.ParticipantB:
		return c.ParticipantA
	}
	return ""
}

// UnreadFor returns the unread counter slot belonging to the principal.
func (c *Conversation) UnreadFor(principalID string) int64 {
	switch principalID {
	case c.ParticipantA:
		return c.UnreadA
	case c.ParticipantB:
		return c.UnreadB
	}
	return 0
}

// Message maps to the messages collection. Immutable after insert except for
// ReadBy, which only ever grows by set union.
type Message struct {
	ID             bson.ObjectID `bson:"_id,omitempty"`
	ConversationID string        `bson:"conversation_id"`
	SenderID       string        `bson:"sender_id"`
	Content        string        `bson:"content"`
	ReadBy         []string      `bson:"read_by"`
	Seq            int64         `bson:"seq"` // monotonic within the conversation
	CreatedAt      time.Time     `bson:"created_at"`
}

// ReadByContains reports whether the principal has observed this message.
func (m *Message) ReadByContains(principalID string) bool {
	for _, id := range m.ReadBy {
		if id == principalID {
			return true
		}
	}
	return false
}

// Principal maps to the principal directory collection. Records are written
// by the marketplace's user service; this service only reads them to resolve
// participants.
type Principal struct {
	ID          string    `bson:"_id"`
	Role        string    `bson:"role"`
	DisplayName string    `bson:"display_name"`
	CreatedAt   time.Time `bson:"created_at"`
}
