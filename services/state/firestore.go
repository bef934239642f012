package state

import (
	"context"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/webtor-io/recs/models"
)

const (
	firebaseProjectFlag     = "firebase-project-id"
	firebaseCredentialsFlag = "firebase-credentials-file"
)

func RegisterFirestoreFlags(f []cli.Flag) []cli.Flag {
	return append(f,
		cli.StringFlag{
			Name:   firebaseProjectFlag,
			Usage:  "firebase project id",
			EnvVar: "FIREBASE_PROJECT_ID",
		},
		cli.StringFlag{
			Name:   firebaseCredentialsFlag,
			Usage:  "path to firebase service account json",
			EnvVar: "GOOGLE_APPLICATION_CREDENTIALS",
		},
	)
}

type firestoreEvent struct {
	UserID    string    `firestore:"userID"`
	MovieID   int64     `firestore:"movieID"`
	EventType string    `firestore:"eventType"`
	Rating    *int64    `firestore:"rating,omitempty"`
	Timestamp time.Time `firestore:"timestamp,serverTimestamp"`
}

type FirestoreLog struct {
	client *firestore.Client
}

func NewFirestoreLog(c *cli.Context) (*FirestoreLog, error) {
	ctx := context.Background()
	var opts []option.ClientOption
	if p := c.String(firebaseCredentialsFlag); p != "" {
		opts = append(opts, option.WithCredentialsFile(p))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID: c.String(firebaseProjectFlag),
	}, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init firebase app")
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to init firestore client")
	}
	log.Infof("firestore event log for project %v", c.String(firebaseProjectFlag))
	return &FirestoreLog{
		client: client,
	}, nil
}

func (s *FirestoreLog) Create(ctx context.Context, e *models.RatingEvent) (string, error) {
	doc := &firestoreEvent{
		UserID:    e.UserID,
		MovieID:   e.ItemID,
		EventType: e.EventType.String(),
	}
	if e.Rating != nil {
		r := int64(*e.Rating)
		doc.Rating = &r
	}
	ref, _, err := s.client.Collection(eventsCollection).Add(ctx, doc)
	if err != nil {
		return "", errors.Wrap(err, "failed to add event")
	}
	return ref.ID, nil
}

func (s *FirestoreLog) Delete(ctx context.Context, handle string) error {
	if _, err := s.client.Collection(eventsCollection).Doc(handle).Delete(ctx); err != nil {
		return errors.Wrapf(err, "failed to delete event %v", handle)
	}
	return nil
}

// Find does not order on the server, that would need a composite index.
func (s *FirestoreLog) Find(ctx context.Context, f Filter) ([]models.RatingEvent, error) {
	q := s.client.Collection(eventsCollection).
		Where("userID", "==", f.UserID).
		Where("movieID", "==", f.ItemID)
	if f.EventType != "" {
		q = q.Where("eventType", "==", f.EventType.String())
	}
	it := q.Documents(ctx)
	defer it.Stop()
	var res []models.RatingEvent
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to iterate events")
		}
		var doc firestoreEvent
		if err := snap.DataTo(&doc); err != nil {
			return nil, errors.Wrapf(err, "failed to decode event %v", snap.Ref.ID)
		}
		e := models.RatingEvent{
			Handle:    snap.Ref.ID,
			UserID:    doc.UserID,
			ItemID:    doc.MovieID,
			EventType: models.EventType(doc.EventType),
			CreatedAt: doc.Timestamp,
		}
		if doc.Rating != nil {
			r := int(*doc.Rating)
			e.Rating = &r
		}
		res = append(res, e)
	}
	sortByCreatedAt(res)
	return res, nil
}

func (s *FirestoreLog) Close() {
	if err := s.client.Close(); err != nil {
		log.WithError(err).Warn("failed to close firestore client")
	}
}
