package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andriizakutkodev/AutoMarketplace/internal/media/domain"
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const userCollectionName = "users"

// UserRepository implements domain.UserRepository using MongoDB. Image
// mutations are single-document conditional updates guarded by the
// media_version token, so each write is atomic and a lost race shows up as
// a failed write rather than a silent overwrite.
type UserRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

// NewUserRepository creates a MongoDB user repository.
func NewUserRepository(db *mongo.Database, log *logger.Logger) *UserRepository {
	return &UserRepository{
		collection: db.Collection(userCollectionName),
		logger:     log.Named("UserRepository"),
	}
}

// GetByID retrieves a user by its hex ID.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		r.logger.Warn("Invalid user ID format", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: invalid id %q", domain.ErrUserNotFound, id)
	}

	var doc userDocument
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.Warn("User not found", zap.String("user_id", id))
			return nil, domain.ErrUserNotFound
		}
		r.logger.Error("Failed to get user by ID", zap.String("user_id", id), zap.Error(err))
		return nil, fmt.Errorf("db findone failed: %w", err)
	}
	return doc.toDomain(), nil
}

// SetImage sets the user's image reference when the version still matches.
func (r *UserRepository) SetImage(ctx context.Context, userID string, asset *domain.MediaAsset, expectedVersion int64) error {
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("%w: invalid id %q", domain.ErrMetadataWrite, userID)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objID, "media_version": expectedVersion},
		bson.M{
			"$set": bson.M{
				"image":      toAssetDocument(asset),
				"updated_at": time.Now().UTC(),
			},
			"$inc": bson.M{"media_version": 1},
		},
	)
	if err != nil {
		r.logger.Error("Failed to set user image", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrMetadataWrite, err)
	}
	if result.MatchedCount == 0 {
		r.logger.Warn("Set user image matched no document",
			zap.String("user_id", userID), zap.Int64("expected_version", expectedVersion))
		return domain.ErrMetadataWrite
	}
	return nil
}

// ClearImage removes the user's image reference when the version still matches.
func (r *UserRepository) ClearImage(ctx context.Context, userID string, expectedVersion int64) error {
	objID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return fmt.Errorf("%w: invalid id %q", domain.ErrMetadataWrite, userID)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objID, "media_version": expectedVersion},
		bson.M{
			"$unset": bson.M{"image": ""},
			"$set":   bson.M{"updated_at": time.Now().UTC()},
			"$inc":   bson.M{"media_version": 1},
		},
	)
	if err != nil {
		r.logger.Error("Failed to clear user image", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrMetadataWrite, err)
	}
	if result.MatchedCount == 0 {
		r.logger.Warn("Clear user image matched no document",
			zap.String("user_id", userID), zap.Int64("expected_version", expectedVersion))
		return domain.ErrMetadataWrite
	}
	return nil
}
