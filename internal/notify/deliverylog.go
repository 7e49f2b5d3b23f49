package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/mongo/readpref"
)

type DeliveryLog interface {
	Record(ctx context.Context, ds []Delivery) error
	History(ctx context.Context, userID int64, limit int) ([]Delivery, error)
}

type nopDeliveryLog struct{}

func (nopDeliveryLog) Record(context.Context, []Delivery) error { return nil }
func (nopDeliveryLog) History(context.Context, int64, int) ([]Delivery, error) {
	return []Delivery{}, nil
}

// MongoDeliveryLog keeps push attempts in the notification_deliveries collection.
type MongoDeliveryLog struct {
	client *mongo.Client
	coll   *mongo.Collection
}

func NewMongoDeliveryLog(ctx context.Context, uri, database string) (*MongoDeliveryLog, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongodb: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	coll := client.Database(database).Collection("notification_deliveries")
	if _, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "sent_at", Value: -1}}},
		{Keys: bson.D{{Key: "token", Value: 1}}},
	}); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create delivery indexes: %w", err)
	}

	log.Printf("[INFO] notify: delivery log on mongodb database=%s", database)
	return &MongoDeliveryLog{client: client, coll: coll}, nil
}

func (l *MongoDeliveryLog) Record(ctx context.Context, ds []Delivery) error {
	if len(ds) == 0 {
		return nil
	}
	_, err := l.coll.InsertMany(ctx, ds)
	return err
}

func (l *MongoDeliveryLog) History(ctx context.Context, userID int64, limit int) ([]Delivery, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "sent_at", Value: -1}}).
		SetLimit(int64(limit))
	cur, err := l.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find deliveries: %w", err)
	}
	defer cur.Close(ctx)

	out := []Delivery{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode deliveries: %w", err)
	}
	return out, nil
}

func (l *MongoDeliveryLog) Close(ctx context.Context) error {
	return l.client.Disconnect(ctx)
}
