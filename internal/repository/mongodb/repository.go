package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/appolinair2355/Mon/internal/domain/models"
)

const (
	collectionName = "documents"
	documentID     = "ecoles"
)

// storedDocument wraps the dataset with a fixed _id so the whole school lives in one MongoDB document.
type storedDocument struct {
	ID              string `bson:"_id"`
	models.Document `bson:",inline"`
}

// DocumentStore keeps the whole document in a single MongoDB document.
type DocumentStore struct {
	client   *mongo.Client
	dbName   string
	collName string
}

// NewDocumentStore connects to MongoDB and verifies the connection.
func NewDocumentStore(ctx context.Context, uri string, dbName string) (*DocumentStore, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &DocumentStore{
		client:   client,
		dbName:   dbName,
		collName: collectionName,
	}, nil
}

func (r *DocumentStore) collection() *mongo.Collection {
	return r.client.Database(r.dbName).Collection(r.collName)
}

// Load fetches the document. A missing document is reported as an empty dataset.
func (r *DocumentStore) Load(ctx context.Context) (models.Document, error) {
	var stored storedDocument
	err := r.collection().FindOne(ctx, bson.M{"_id": documentID}).Decode(&stored)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.NewDocument(), nil
	}
	if err != nil {
		return models.Document{}, fmt.Errorf("failed to load school document: %w", err)
	}
	stored.Document.Normalize()
	return stored.Document, nil
}

// Save replaces the document, inserting it on first use.
func (r *DocumentStore) Save(ctx context.Context, doc models.Document) error {
	doc.Normalize()
	stored := storedDocument{ID: documentID, Document: doc}
	_, err := r.collection().ReplaceOne(ctx, bson.M{"_id": documentID}, stored, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to save school document: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *DocumentStore) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
