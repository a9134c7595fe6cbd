package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type viewDocument struct {
	Path      string    `bson:"_id"`
	Payload   []byte    `bson:"payload"`
	ExpiresAt time.Time `bson:"expires_at"`
}

// MongoViewCache implements ViewCache over a MongoDB collection. Documents
// expire through a TTL index on expires_at.
type MongoViewCache struct {
	collection *mongo.Collection
	ttl        time.Duration
	now        func() time.Time
}

// NewMongoViewCache creates a cache over the "views" collection of db
func NewMongoViewCache(db *mongo.Database, ttl time.Duration) *MongoViewCache {
	return &MongoViewCache{collection: db.Collection("views"), ttl: ttl, now: time.Now}
}

// EnsureIndexes creates the TTL index.
func (c *MongoViewCache) EnsureIndexes(ctx context.Context) error {
	_, err := c.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func (c *MongoViewCache) Get(ctx context.Context, path string, dst any) (bool, error) {
	var doc viewDocument
	filter := bson.M{"_id": path, "expires_at": bson.M{"$gt": c.now()}}
	if err := c.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(doc.Payload, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *MongoViewCache) Put(ctx context.Context, path string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	doc := viewDocument{Path: path, Payload: payload, ExpiresAt: c.now().Add(c.ttl)}
	_, err = c.collection.ReplaceOne(ctx, bson.M{"_id": path}, doc, options.Replace().SetUpsert(true))
	return err
}

func (c *MongoViewCache) Invalidate(ctx context.Context, paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	_, err := c.collection.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": paths}})
	return err
}
