// Package db manages MongoDB connections and collections.
package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

// Client wraps mongo.Client and exposes the service's collections.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// New connects to MongoDB, pings it, and returns a Client bound to the
// given database.
func New(ctx context.Context, mongoURI, database string) (*Client, error) {
	opts := options.Client().
		ApplyURI(mongoURI).
		SetConnectTimeout(10 * time.Second)

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{client: client, db: client.Database(database)}, nil
}

// ConversationsCollection returns the conversations collection.
func (c *Client) ConversationsCollection() *mongo.Collection {
	return c.db.Collection("conversations")
}

// MessagesCollection returns the messages collection.
func (c *Client) MessagesCollection() *mongo.Collection {
	return c.db.Collection("messages")
}

// CountersCollection returns the per-conversation sequence counters.
func (c *Client) CountersCollection() *mongo.Collection {
	return c.db.Collection("conversation_counters")
}

// PrincipalsCollection returns the principal directory collection.
func (c *Client) PrincipalsCollection() *mongo.Collection {
	return c.db.Collection("principals")
}

// Close disconnects from MongoDB.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// conversationIndexModels returns the index models for the conversations
// collection. Keys are bson.D because compound index key order is
// significant and the driver rejects multi-key maps for ordered parameters.
func conversationIndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "pair_key", Value: 1}, {Key: "context_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// ListForParticipant filters on either slot and sorts by recency.
			Keys: bson.D{{Key: "participant_a", Value: 1}, {Key: "updated_at", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "participant_b", Value: 1}, {Key: "updated_at", Value: -1}},
		},
	}
}

// messageIndexModels returns the index models for the messages collection.
func messageIndexModels() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "conversation_id", Value: 1}, {Key: "seq", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// MarkRead filters on (conversation_id, sender_id, read_by).
			Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "sender_id", Value: 1}},
		},
	}
}

// CreateIndexes creates the indexes the stores rely on. The unique index on
// (pair_key, context_id) is what makes concurrent conversation creation
// collapse onto a single document, and the unique (conversation_id, seq)
// index backs the append ordering guarantee.
func (c *Client) CreateIndexes(ctx context.Context) error {
	if _, err := c.ConversationsCollection().Indexes().CreateMany(ctx, conversationIndexModels()); err != nil {
		return fmt.Errorf("failed to create conversation indexes: %w", err)
	}
	if _, err := c.MessagesCollection().Indexes().CreateMany(ctx, messageIndexModels()); err != nil {
		return fmt.Errorf("failed to create message indexes: %w", err)
	}
	return nil
}
