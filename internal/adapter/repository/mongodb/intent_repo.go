package mongodb

import (
	"context"
	"fmt"
	"time"

	"github.com/andriizakutkodev/AutoMarketplace/internal/media/domain"
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const intentCollectionName = "media_intents"

// IntentRepository persists saga intent records in MongoDB.
type IntentRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

// NewIntentRepository creates the intent repository and ensures its indexes.
func NewIntentRepository(db *mongo.Database, log *logger.Logger) (*IntentRepository, error) {
	collection := db.Collection(intentCollectionName)

	indexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
		{Keys: bson.D{{Key: "owner_kind", Value: 1}, {Key: "owner_id", Value: 1}}},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if _, err := collection.Indexes().CreateMany(ctx, indexes); err != nil {
		// Indexes might already exist or be created manually; don't fail startup.
		log.Error("Failed to create indexes for media_intents collection", zap.Error(err))
	} else {
		log.Info("Successfully ensured indexes for media_intents collection")
	}

	return &IntentRepository{
		collection: collection,
		logger:     log.Named("IntentRepository"),
	}, nil
}

// Create inserts a new intent record.
func (r *IntentRepository) Create(ctx context.Context, intent *domain.MediaIntent) error {
	doc := toIntentDocument(intent)
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
		intent.ID = doc.ID
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		r.logger.Error("Failed to insert intent",
			zap.String("kind", doc.Kind), zap.String("owner_id", doc.OwnerID), zap.Error(err))
		return fmt.Errorf("db insert failed: %w", err)
	}
	r.logger.Debug("Intent recorded",
		zap.String("intent_id", doc.ID.Hex()),
		zap.String("kind", doc.Kind),
		zap.String("owner_id", doc.OwnerID),
		zap.String("public_id", doc.Asset.PublicID))
	return nil
}

// Delete removes a resolved intent record.
func (r *IntentRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		r.logger.Error("Failed to delete intent", zap.String("intent_id", id.Hex()), zap.Error(err))
		return fmt.Errorf("db delete failed: %w", err)
	}
	return nil
}

// ListOlderThan returns up to limit intents created before now-minAge,
// oldest first.
func (r *IntentRepository) ListOlderThan(ctx context.Context, minAge time.Duration, limit int64) ([]*domain.MediaIntent, error) {
	cutoff := time.Now().UTC().Add(-minAge)

	cursor, err := r.collection.Find(ctx,
		bson.M{"created_at": bson.M{"$lt": cutoff}},
		options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}).SetLimit(limit),
	)
	if err != nil {
		r.logger.Error("Failed to list stale intents", zap.Error(err))
		return nil, fmt.Errorf("db find failed: %w", err)
	}
	defer cursor.Close(ctx)

	var intents []*domain.MediaIntent
	for cursor.Next(ctx) {
		var doc intentDocument
		if err := cursor.Decode(&doc); err != nil {
			r.logger.Error("Failed to decode intent document", zap.Error(err))
			return nil, fmt.Errorf("decode intent failed: %w", err)
		}
		intents = append(intents, doc.toDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return intents, nil
}
