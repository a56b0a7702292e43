package data

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/tradiehub/messaging-api/internal/normalize"
)

// MessagesStore provides the append-only message log. Appends allocate a
// monotonic per-conversation sequence number from a counters document, so
// creation order is totally ordered within a conversation regardless of
// clock skew between writers.
type MessagesStore struct {
	coll     *mongo.Collection
	counters *mongo.Collection
}

// NewMessagesStore returns a MessagesStore using the given message and
// counter collections.
func NewMessagesStore(coll, counters *mongo.Collection) *MessagesStore {
	return &MessagesStore{coll: coll, counters: counters}
}

// nextSeq atomically increments and returns the conversation's sequence.
func (s *MessagesStore) nextSeq(ctx context.Context, conversationID string) (int64, error) {
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": conversationID},
		bson.M{"$inc": bson.M{"seq": int64(1)}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to allocate message sequence: %w", err)
	}
	return counter.Seq, nil
}

// Append inserts a message at the next position in the conversation's log.
// Content is trimmed; ErrEmptyContent if nothing remains. The sender starts
// in the message's read set. Append does not touch conversation state;
// callers follow up with ConversationsStore.RecordMessageAppended.
func (s *MessagesStore) Append(ctx context.Context, conversationID, senderID, content string) (*Message, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyContent
	}
	senderID = normalize.ID(senderID)

	seq, err := s.nextSeq(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	msg := &Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		ReadBy:         []string{senderID},
		Seq:            seq,
		CreatedAt:      time.Now(),
	}

	result, err := s.coll.InsertOne(ctx, msg)
	if err != nil {
		return nil, err
	}
	msg.ID = result.InsertedID.(bson.ObjectID)
	return msg, nil
}

// Get returns a single message by id.
func (s *MessagesStore) Get(ctx context.Context, messageID string) (*Message, error) {
	oid, err := bson.ObjectIDFromHex(messageID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed message id", ErrInvalidInput)
	}

	var msg Message
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&msg); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: message %s", ErrNotFound, messageID)
		}
		return nil, err
	}
	return &msg, nil
}

// ListByConversation returns the conversation's messages in creation order.
func (s *MessagesStore) ListByConversation(ctx context.Context, conversationID string) ([]*Message, error) {
	opts := options.Find().SetSort(bson.M{"seq": 1})

	cursor, err := s.coll.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var messages []*Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// MarkRead adds the principal to the read set of every message in the
// conversation they did not send and have not yet read. Pure set union:
// re-marking is a no-op. Returns how many messages were newly marked.
func (s *MessagesStore) MarkRead(ctx context.Context, conversationID, principalID string) (int64, error) {
	principalID = normalize.ID(principalID)

	filter := bson.M{
		"conversation_id": conversationID,
		"sender_id":       bson.M{"$ne": principalID},
		"read_by":         bson.M{"$ne": principalID},
	}
	update := bson.M{"$addToSet": bson.M{"read_by": principalID}}

	result, err := s.coll.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, err
	}
	return result.ModifiedCount, nil
}
