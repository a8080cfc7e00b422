package store

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	chatsCollection    = "chats"
	countersCollection = "counters"
)

type chatDoc struct {
	Seq       int64     `bson:"seq"`
	RoomID    string    `bson:"room_id"`
	Message   string    `bson:"message"`
	UserID    string    `bson:"user_id"`
	CreatedAt time.Time `bson:"created_at"`
}

// MongoStore keeps room logs in a "chats" collection. Each document gets a
// sequence number from a counter document so ordering survives clock skew
// between servers.
type MongoStore struct {
	client *mongo.Client
	chats  *mongo.Collection
	counts *mongo.Collection
}

func OpenMongo(ctx context.Context, uri, database string) (*MongoStore, error) {
	if database == "" {
		database = "zidraw"
	}
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(database)
	s := &MongoStore{
		client: client,
		chats:  db.Collection(chatsCollection),
		counts: db.Collection(countersCollection),
	}
	_, err = s.chats.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "seq", Value: 1}},
	})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("index mongo: %w", err)
	}
	glog.Infof("[store] mongo database %s ready", database)
	return s, nil
}

func (s *MongoStore) nextSeq(ctx context.Context) (int64, error) {
	var counter struct {
		Value int64 `bson:"value"`
	}
	err := s.counts.FindOneAndUpdate(ctx,
		bson.M{"_id": chatsCollection},
		bson.M{"$inc": bson.M{"value": 1}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&counter)
	if err != nil {
		return 0, err
	}
	return counter.Value, nil
}

func (s *MongoStore) Append(ctx context.Context, roomID, userID, message string) error {
	seq, err := s.nextSeq(ctx)
	if err != nil {
		return fmt.Errorf("append to room %s: %w", roomID, err)
	}
	_, err = s.chats.InsertOne(ctx, chatDoc{
		Seq:       seq,
		RoomID:    roomID,
		Message:   message,
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("append to room %s: %w", roomID, err)
	}
	return nil
}

func (s *MongoStore) List(ctx context.Context, roomID string) ([]Record, error) {
	cursor, err := s.chats.Find(ctx,
		bson.M{"room_id": roomID},
		options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}),
	)
	if err != nil {
		return nil, fmt.Errorf("list room %s: %w", roomID, err)
	}
	defer cursor.Close(ctx)

	records := []Record{}
	for cursor.Next(ctx) {
		var d chatDoc
		if err := cursor.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode room %s: %w", roomID, err)
		}
		records = append(records, Record{
			ID:        d.Seq,
			RoomID:    d.RoomID,
			Message:   d.Message,
			UserID:    d.UserID,
			CreatedAt: d.CreatedAt,
		})
	}
	return records, cursor.Err()
}

func (s *MongoStore) Purge(ctx context.Context, roomID string) error {
	if _, err := s.chats.DeleteMany(ctx, bson.M{"room_id": roomID}); err != nil {
		return fmt.Errorf("purge room %s: %w", roomID, err)
	}
	return nil
}

func (s *MongoStore) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
