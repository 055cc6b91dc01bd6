package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const LocksCollection = "Reservation_locks"

type lockDocument struct {
	ID        string    `bson:"_id"`
	Owner     string    `bson:"owner"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// Mongo is an advisory lock backed by unique _id inserts. Expired locks are
// taken over by the next caller; a TTL index on expires_at removes leftovers.
type Mongo struct {
	collection *mongo.Collection
}

func NewMongo(db *mongo.Database) *Mongo {
	return &Mongo{collection: db.Collection(LocksCollection)}
}

func (m *Mongo) Acquire(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	owner := uuid.NewString()

	for {
		ok, err := m.tryAcquire(ctx, key, owner, ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			return m.release(key, owner), nil
		}

		select {
		case <-ctx.Done():
			return nil, busy(key, ctx.Err())
		case <-time.After(pollInterval):
		}
	}
}

func (m *Mongo) tryAcquire(ctx context.Context, key, owner string, ttl time.Duration) (bool, error) {
	now := time.Now()
	_, err := m.collection.InsertOne(ctx, lockDocument{
		ID:        key,
		Owner:     owner,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	})
	if err == nil {
		return true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("failed to insert lock %s: %w", key, err)
	}

	result, err := m.collection.UpdateOne(ctx,
		bson.M{"_id": key, "expires_at": bson.M{"$lte": now}},
		bson.M{"$set": bson.M{"owner": owner, "expires_at": now.Add(ttl), "created_at": now}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to take over lock %s: %w", key, err)
	}
	return result.ModifiedCount == 1, nil
}

func (m *Mongo) release(key, owner string) Release {
	return func(ctx context.Context) error {
		_, err := m.collection.DeleteOne(ctx, bson.M{"_id": key, "owner": owner})
		if err != nil {
			return fmt.Errorf("failed to release lock %s: %w", key, err)
		}
		return nil
	}
}
