package data

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/tradiehub/messaging-api/internal/normalize"
)

// findOrCreateAttempts bounds the lookup/insert retry loop under races.
const findOrCreateAttempts = 3

// ConversationsStore provides conversation database operations. It is the
// sole writer of unread counters and last-message links.
type ConversationsStore struct {
	coll *mongo.Collection
}

// NewConversationsStore returns a ConversationsStore using the given collection.
func NewConversationsStore(coll *mongo.Collection) *ConversationsStore {
	return &ConversationsStore{coll: coll}
}

// FindOrCreate returns the conversation for the unordered participant pair
// and context id, creating it if absent. Concurrent callers with the same
// arguments converge on one document: a losing inserter hits the unique
// (pair_key, context_id) index and retries as a lookup.
func (s *ConversationsStore) FindOrCreate(ctx context.Context, participantA, participantB, contextID string) (*Conversation, error) {
	lo, hi := normalize.Pair(participantA, participantB)
	key := normalize.PairKey(participantA, participantB)
	contextID = normalize.ID(contextID)

	filter := bson.M{"pair_key": key, "context_id": contextID}

	for attempt := 0; attempt < findOrCreateAttempts; attempt++ {
		var conv Conversation
		err := s.coll.FindOne(ctx, filter).Decode(&conv)
		if err == nil {
			return &conv, nil
		}
		if err != mongo.ErrNoDocuments {
			return nil, err
		}

		now := time.Now()
		conv = Conversation{
			ParticipantA: lo,
			ParticipantB: hi,
			PairKey:      key,
			ContextID:    contextID,
			Active:       true,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		result, err := s.coll.InsertOne(ctx, &conv)
		if err == nil {
			conv.ID = result.InsertedID.(bson.ObjectID)
			return &conv, nil
		}
		if !mongo.IsDuplicateKeyError(err) {
			return nil, err
		}
		// lost the race; loop back and pick up the winner's document
	}

	return nil, ErrConflict
}

// Get returns the conversation by id. Fails with ErrNotFound if absent and
// ErrInvalidInput for a malformed id.
func (s *ConversationsStore) Get(ctx context.Context, conversationID string) (*Conversation, error) {
	oid, err := bson.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed conversation id", ErrInvalidInput)
	}

	var conv Conversation
	if err := s.coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&conv); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
		}
		return nil, err
	}
	return &conv, nil
}

// ListForParticipant returns every conversation the principal takes part in,
// most recently active first.
func (s *ConversationsStore) ListForParticipant(ctx context.Context, principalID string) ([]*Conversation, error) {
	principalID = normalize.ID(principalID)

	filter := bson.M{"$or": bson.A{
		bson.M{"participant_a": principalID},
		bson.M{"participant_b": principalID},
	}}
	opts := options.Find().SetSort(bson.M{"updated_at": -1})

	cursor, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var conversations []*Conversation
	if err := cursor.All(ctx, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// RecordMessageAppended links the new message, bumps updated_at and
// increments the non-sender's unread slot by exactly one. The whole change
// is a single pipeline update on one document, so concurrent appends on the
// same conversation never lose an increment. Returns the updated document.
func (s *ConversationsStore) RecordMessageAppended(ctx context.Context, conversationID, messageID, senderID string) (*Conversation, error) {
	oid, err := bson.ObjectIDFromHex(conversationID)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed conversation id", ErrInvalidInput)
	}
	senderID = normalize.ID(senderID)

	// unread_a grows iff the sender is participant_b, and vice versa
	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "last_message_id", Value: messageID},
			{Key: "updated_at", Value: "$$NOW"},
			{Key: "unread_a", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$participant_b", senderID}}},
				bson.D{{Key: "$add", Value: bson.A{"$unread_a", 1}}},
				"$unread_a",
			}}}},
			{Key: "unread_b", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$participant_a", senderID}}},
				bson.D{{Key: "$add", Value: bson.A{"$unread_b", 1}}},
				"$unread_b",
			}}}},
		}}},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var conv Conversation
	if err := s.coll.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update, opts).Decode(&conv); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
		}
		return nil, err
	}
	return &conv, nil
}

// ResetUnread zeroes the principal's unread slot. Idempotent.
func (s *ConversationsStore) ResetUnread(ctx context.Context, conversationID, principalID string) error {
	oid, err := bson.ObjectIDFromHex(conversationID)
	if err != nil {
		return fmt.Errorf("%w: malformed conversation id", ErrInvalidInput)
	}
	principalID = normalize.ID(principalID)

	update := mongo.Pipeline{
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "unread_a", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$participant_a", principalID}}},
				0,
				"$unread_a",
			}}}},
			{Key: "unread_b", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$participant_b", principalID}}},
				0,
				"$unread_b",
			}}}},
		}}},
	}

	result, err := s.coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	return nil
}

// UnreadTotal sums the principal's unread slot across all their conversations.
func (s *ConversationsStore) UnreadTotal(ctx context.Context, principalID string) (int64, error) {
	principalID = normalize.ID(principalID)

	pipeline := mongo.Pipeline{
		bson.D{{Key: "$match", Value: bson.D{
			{Key: "$or", Value: bson.A{
				bson.D{{Key: "participant_a", Value: principalID}},
				bson.D{{Key: "participant_b", Value: principalID}},
			}},
		}}},
		bson.D{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "total", Value: bson.D{{Key: "$sum", Value: bson.D{{Key: "$cond", Value: bson.A{
				bson.D{{Key: "$eq", Value: bson.A{"$participant_a", principalID}}},
				"$unread_a",
				"$unread_b",
			}}}}}},
		}}},
	}

	cursor, err := s.coll.Aggregate(ctx, pipeline)
	if err != nil {
		return 0, err
	}
	defer cursor.Close(ctx)

	var results []struct {
		Total int64 `bson:"total"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return 0, err
	}
	if len(results) == 0 {
		return 0, nil
	}
	return results[0].Total, nil
}
