package state

import (
	"context"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/webtor-io/recs/models"
)

const (
	mongoURIFlag      = "mongodb-uri"
	mongoDatabaseFlag = "mongodb-database"
)

const eventsCollection = "userMovieEvents"

func RegisterMongoFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   mongoURIFlag,
			Usage:  "mongodb connection uri",
			Value:  "mongodb://localhost:27017",
			EnvVar: "MONGODB_URI",
		},
		cli.StringFlag{
			Name:   mongoDatabaseFlag,
			Usage:  "mongodb database name",
			Value:  "recs",
			EnvVar: "MONGODB_DATABASE",
		},
	)
}

type mongoEvent struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"userID"`
	MovieID   int64              `bson:"movieID"`
	EventType string             `bson:"eventType"`
	Rating    *int               `bson:"rating,omitempty"`
	Timestamp time.Time          `bson:"timestamp"`
}

func (s *mongoEvent) toRatingEvent() models.RatingEvent {
	return models.RatingEvent{
		Handle:    s.ID.Hex(),
		UserID:    s.UserID,
		ItemID:    s.MovieID,
		EventType: models.EventType(s.EventType),
		Rating:    s.Rating,
		CreatedAt: s.Timestamp,
	}
}

type MongoLog struct {
	client *mongo.Client
	col    *mongo.Collection
}

func NewMongoLog(c *cli.Context) (*MongoLog, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(c.String(mongoURIFlag))
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to mongodb")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "failed to ping mongodb")
	}
	db := c.String(mongoDatabaseFlag)
	log.Infof("mongodb event log at database %v", db)
	return &MongoLog{
		client: client,
		col:    client.Database(db).Collection(eventsCollection),
	}, nil
}

func (s *MongoLog) Create(ctx context.Context, e *models.RatingEvent) (string, error) {
	doc := &mongoEvent{
		UserID:    e.UserID,
		MovieID:   e.ItemID,
		EventType: e.EventType.String(),
		Rating:    e.Rating,
		Timestamp: time.Now().UTC(),
	}
	res, err := s.col.InsertOne(ctx, doc)
	if err != nil {
		return "", errors.Wrap(err, "failed to insert event")
	}
	id, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", errors.Errorf("unexpected inserted id %v", res.InsertedID)
	}
	return id.Hex(), nil
}

func (s *MongoLog) Delete(ctx context.Context, handle string) error {
	id, err := primitive.ObjectIDFromHex(handle)
	if err != nil {
		return errors.Wrapf(err, "invalid event handle %v", handle)
	}
	if _, err := s.col.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return errors.Wrap(err, "failed to delete event")
	}
	return nil
}

func (s *MongoLog) Find(ctx context.Context, f Filter) ([]models.RatingEvent, error) {
	filter := bson.M{
		"userID":  f.UserID,
		"movieID": f.ItemID,
	}
	if f.EventType != "" {
		filter["eventType"] = f.EventType.String()
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})
	cur, err := s.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find events")
	}
	var docs []mongoEvent
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "failed to decode events")
	}
	res := make([]models.RatingEvent, 0, len(docs))
	for i := range docs {
		res = append(res, docs[i].toRatingEvent())
	}
	return res, nil
}

func (s *MongoLog) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		log.WithError(err).Warn("failed to disconnect from mongodb")
	}
}
