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

// PrincipalsStore reads the principal directory maintained by the
// marketplace's user service. Conversation creation resolves participant
// ids against it.
type PrincipalsStore struct {
	coll *mongo.Collection
}

// NewPrincipalsStore returns a PrincipalsStore using the given collection.
func NewPrincipalsStore(coll *mongo.Collection) *PrincipalsStore {
	return &PrincipalsStore{coll: coll}
}

// Get returns the principal record by id.
func (s *PrincipalsStore) Get(ctx context.Context, principalID string) (*Principal, error) {
	principalID = normalize.ID(principalID)

	var p Principal
	if err := s.coll.FindOne(ctx, bson.M{"_id": principalID}).Decode(&p); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: principal %s", ErrNotFound, principalID)
		}
		return nil, err
	}
	return &p, nil
}

// Exists reports whether the principal id resolves to a directory record.
func (s *PrincipalsStore) Exists(ctx context.Context, principalID string) (bool, error) {
	count, err := s.coll.CountDocuments(ctx, bson.M{"_id": normalize.ID(principalID)})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// Ensure upserts a directory record. Used by seed tooling and tests; the
// user service owns these records in production.
func (s *PrincipalsStore) Ensure(ctx context.Context, principalID, role, displayName string) error {
	principalID = normalize.ID(principalID)

	update := bson.M{
		"$set":         bson.M{"role": role, "display_name": displayName},
		"$setOnInsert": bson.M{"created_at": time.Now()},
	}
	_, err := s.coll.UpdateOne(ctx, bson.M{"_id": principalID}, update, options.UpdateOne().SetUpsert(true))
	return err
}
