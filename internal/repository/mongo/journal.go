package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"recwatch/internal/domain"
)

// Journal persists surfaced download events (terminal transitions,
// rejections, server errors) so their history outlives the in-memory view.
type Journal struct {
	collection *mongo.Collection
}

type eventDoc struct {
	Kind        string    `bson:"kind"`
	DownloadID  string    `bson:"downloadId,omitempty"`
	StreamerID  string    `bson:"streamerId,omitempty"`
	SessionID   string    `bson:"sessionId,omitempty"`
	Detail      string    `bson:"detail,omitempty"`
	Recoverable bool      `bson:"recoverable,omitempty"`
	OccurredAt  time.Time `bson:"occurredAt"`
}

func NewJournal(client *mongo.Client, dbName, collectionName string) *Journal {
	return &Journal{collection: client.Database(dbName).Collection(collectionName)}
}

func Connect(ctx context.Context, uri string, extra ...*options.ClientOptions) (*mongo.Client, error) {
	opts := append([]*options.ClientOptions{options.Client().ApplyURI(uri)}, extra...)
	client, err := mongo.Connect(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (j *Journal) EnsureIndexes(ctx context.Context) error {
	if j == nil || j.collection == nil {
		return nil
	}
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "streamerId", Value: 1}}},
		{Keys: bson.D{{Key: "kind", Value: 1}}},
		{Keys: bson.D{{Key: "occurredAt", Value: -1}}},
	}
	_, err := j.collection.Indexes().CreateMany(ctx, models)
	return err
}

// Record appends one event record to the journal.
func (j *Journal) Record(ctx context.Context, rec domain.EventRecord) error {
	_, err := j.collection.InsertOne(ctx, toDoc(rec))
	return err
}

// ListRecent returns the newest records first, at most limit of them.
func (j *Journal) ListRecent(ctx context.Context, limit int64) ([]domain.EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "occurredAt", Value: -1}}).
		SetLimit(limit)
	cursor, err := j.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []domain.EventRecord
	for cursor.Next(ctx) {
		var doc eventDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, fromDoc(doc))
	}
	return out, cursor.Err()
}

// ListByStreamer returns the newest records for one streamer, newest first.
func (j *Journal) ListByStreamer(ctx context.Context, streamerID string, limit int64) ([]domain.EventRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "occurredAt", Value: -1}}).
		SetLimit(limit)
	cursor, err := j.collection.Find(ctx, bson.M{"streamerId": streamerID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var out []domain.EventRecord
	for cursor.Next(ctx) {
		var doc eventDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, fromDoc(doc))
	}
	return out, cursor.Err()
}

func toDoc(rec domain.EventRecord) eventDoc {
	return eventDoc{
		Kind:        rec.Kind,
		DownloadID:  string(rec.DownloadID),
		StreamerID:  rec.StreamerID,
		SessionID:   rec.SessionID,
		Detail:      rec.Detail,
		Recoverable: rec.Recoverable,
		OccurredAt:  rec.OccurredAt.UTC(),
	}
}

func fromDoc(doc eventDoc) domain.EventRecord {
	return domain.EventRecord{
		Kind:        doc.Kind,
		DownloadID:  domain.DownloadID(doc.DownloadID),
		StreamerID:  doc.StreamerID,
		SessionID:   doc.SessionID,
		Detail:      doc.Detail,
		Recoverable: doc.Recoverable,
		OccurredAt:  doc.OccurredAt,
	}
}
