package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/Meet/internal/domain"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	LogsCollection = "meeting_logs"

	mongoTimeout = 10 * time.Second
)

// MongoSink mirrors meeting log events into a mongo collection.
type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func DialMongo(ctx context.Context, uri, database string) (*MongoSink, error) {
	if uri == "" || database == "" {
		return nil, fmt.Errorf("mongodb uri and database are required")
	}

	connectCtx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()

	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(mongoTimeout).
		SetConnectTimeout(mongoTimeout)

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	s := NewMongoSink(client, client.Database(database))
	if err := s.EnsureIndexes(connectCtx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	log.Info().Str("module", "audit.mongo").Str("database", database).Msg("mongo audit mirror ready")
	return s, nil
}

func NewMongoSink(client *mongo.Client, db *mongo.Database) *MongoSink {
	return &MongoSink{client: client, coll: db.Collection(LogsCollection)}
}

func (s *MongoSink) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "timestamp", Value: -1}}},
		{Keys: bson.D{{Key: "event_type", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create audit indexes: %w", err)
	}
	return nil
}

func (s *MongoSink) AppendAuditEvent(ctx context.Context, ev *domain.AuditEvent) error {
	if _, err := s.coll.InsertOne(ctx, ev); err != nil {
		return fmt.Errorf("mongo insert audit: %w", err)
	}
	return nil
}

// ByRoom returns a room's mirrored events, newest first.
func (s *MongoSink) ByRoom(ctx context.Context, room domain.RoomID, limit int64) ([]domain.AuditEvent, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit)
	cursor, err := s.coll.Find(ctx, bson.M{"room_id": room}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []domain.AuditEvent
	if err := cursor.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *MongoSink) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, mongoTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
