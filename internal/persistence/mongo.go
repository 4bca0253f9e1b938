package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/reloquent/schemacanvas/internal/schema"
)

// mongoRecord is the stored shape: the document keyed by project id.
type mongoRecord struct {
	ID        string           `bson:"_id"`
	Document  *schema.Document `bson:"document"`
	UpdatedAt time.Time        `bson:"updated_at"`
}

// Mongo stores one record per project in a collection.
type Mongo struct {
	client *mongo.Client
	coll   *mongo.Collection
	logger *slog.Logger
}

// OpenMongo connects to uri and pings the deployment.
func OpenMongo(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*Mongo, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Mongo{
		client: client,
		coll:   client.Database(database).Collection(collection),
		logger: logger,
	}, nil
}

func (m *Mongo) LoadSchema(ctx context.Context, projectID string) (*schema.Document, error) {
	if err := ValidateProjectID(projectID); err != nil {
		return nil, err
	}
	var rec mongoRecord
	err := m.coll.FindOne(ctx, bson.D{{Key: "_id", Value: projectID}}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return schema.NewDocument(projectID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", projectID, err)
	}
	return normalize(rec.Document, projectID, m.logger), nil
}

func (m *Mongo) SaveSchema(ctx context.Context, projectID string, doc *schema.Document) error {
	if err := ValidateProjectID(projectID); err != nil {
		return err
	}
	rec := mongoRecord{ID: projectID, Document: doc, UpdatedAt: time.Now().UTC()}
	_, err := m.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: projectID}}, rec,
		options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("saving %s: %w", projectID, err)
	}
	return nil
}

// Projects lists stored project ids, most recently saved first.
func (m *Mongo) Projects(ctx context.Context) ([]string, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}}).
		SetProjection(bson.D{{Key: "_id", Value: 1}})
	cur, err := m.coll.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	var recs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &recs); err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	return ids, nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}
