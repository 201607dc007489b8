// internal/output/mongodb.go
package output

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/valpere/ReceiptScrapexter/internal/utils"
)

var mongoLogger = utils.NewComponentLogger("mongodb-audit")

// MongoOptions configures the MongoDB audit recorder
type MongoOptions struct {
	URI        string
	Database   string
	Collection string
	Timeout    time.Duration
}

// MongoRecorder stores one document per extraction
type MongoRecorder struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoRecorder connects, pings the primary and ensures the indexes
func NewMongoRecorder(ctx context.Context, opts MongoOptions) (*MongoRecorder, error) {
	if opts.URI == "" {
		return nil, fmt.Errorf("MongoDB connection string is required")
	}
	if opts.Database == "" {
		return nil, fmt.Errorf("MongoDB database name is required")
	}
	if opts.Collection == "" {
		opts.Collection = "extractions"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}

	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(opts.Timeout).
		SetServerSelectionTimeout(opts.Timeout).
		SetWriteConcern(writeconcern.W1())

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	collection := client.Database(opts.Database).Collection(opts.Collection)
	_, err = collection.Indexes().CreateMany(pingCtx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "link", Value: 1}}},
		{Keys: bson.D{{Key: "extracted_at", Value: -1}}},
	})
	if err != nil {
		// Recording still works without the indexes
		mongoLogger.Warnf("failed to create audit indexes: %v", err)
	}

	mongoLogger.WithFields(map[string]interface{}{
		"database":   opts.Database,
		"collection": opts.Collection,
	}).Info("connected to MongoDB")

	return &MongoRecorder{client: client, collection: collection}, nil
}

// Record inserts one document
func (r *MongoRecorder) Record(ctx context.Context, record Record) error {
	if _, err := r.collection.InsertOne(ctx, record); err != nil {
		return fmt.Errorf("failed to insert audit document: %w", err)
	}
	return nil
}

// Ping checks the connection to the primary
func (r *MongoRecorder) Ping(ctx context.Context) error {
	return r.client.Ping(ctx, readpref.Primary())
}

// Driver returns the driver name
func (r *MongoRecorder) Driver() string {
	return "mongodb"
}

// Close disconnects the client
func (r *MongoRecorder) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}
