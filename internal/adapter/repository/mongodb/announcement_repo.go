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
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const announcementCollectionName = "announcements"

// AnnouncementRepository implements domain.AnnouncementRepository using
// MongoDB, with the same version-guarded update discipline as
// UserRepository.
type AnnouncementRepository struct {
	collection *mongo.Collection
	logger     *logger.Logger
}

// NewAnnouncementRepository creates a MongoDB announcement repository.
func NewAnnouncementRepository(db *mongo.Database, log *logger.Logger) *AnnouncementRepository {
	return &AnnouncementRepository{
		collection: db.Collection(announcementCollectionName),
		logger:     log.Named("AnnouncementRepository"),
	}
}

// GetByID retrieves an announcement by its hex ID.
func (r *AnnouncementRepository) GetByID(ctx context.Context, id string) (*domain.Announcement, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		r.logger.Warn("Invalid announcement ID format", zap.String("announcement_id", id), zap.Error(err))
		return nil, fmt.Errorf("%w: invalid id %q", domain.ErrAnnouncementNotFound, id)
	}

	var doc announcementDocument
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.Warn("Announcement not found", zap.String("announcement_id", id))
			return nil, domain.ErrAnnouncementNotFound
		}
		r.logger.Error("Failed to get announcement by ID", zap.String("announcement_id", id), zap.Error(err))
		return nil, fmt.Errorf("db findone failed: %w", err)
	}
	return doc.toDomain(), nil
}

// AddImage appends an asset to the announcement's image set when the version
// still matches.
func (r *AnnouncementRepository) AddImage(ctx context.Context, announcementID string, asset *domain.MediaAsset, expectedVersion int64) error {
	objID, err := primitive.ObjectIDFromHex(announcementID)
	if err != nil {
		return fmt.Errorf("%w: invalid id %q", domain.ErrMetadataWrite, announcementID)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objID, "media_version": expectedVersion},
		bson.M{
			"$push": bson.M{"images": toAssetDocument(asset)},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
			"$inc":  bson.M{"media_version": 1},
		},
	)
	if err != nil {
		r.logger.Error("Failed to add announcement image", zap.String("announcement_id", announcementID), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrMetadataWrite, err)
	}
	if result.MatchedCount == 0 {
		r.logger.Warn("Add announcement image matched no document",
			zap.String("announcement_id", announcementID), zap.Int64("expected_version", expectedVersion))
		return domain.ErrMetadataWrite
	}
	return nil
}

// RemoveImage pulls the asset with the given public ID from the image set
// when the version still matches.
func (r *AnnouncementRepository) RemoveImage(ctx context.Context, announcementID, publicID string, expectedVersion int64) error {
	objID, err := primitive.ObjectIDFromHex(announcementID)
	if err != nil {
		return fmt.Errorf("%w: invalid id %q", domain.ErrMetadataWrite, announcementID)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objID, "media_version": expectedVersion},
		bson.M{
			"$pull": bson.M{"images": bson.M{"public_id": publicID}},
			"$set":  bson.M{"updated_at": time.Now().UTC()},
			"$inc":  bson.M{"media_version": 1},
		},
	)
	if err != nil {
		r.logger.Error("Failed to remove announcement image",
			zap.String("announcement_id", announcementID), zap.String("public_id", publicID), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrMetadataWrite, err)
	}
	if result.MatchedCount == 0 {
		r.logger.Warn("Remove announcement image matched no document",
			zap.String("announcement_id", announcementID), zap.Int64("expected_version", expectedVersion))
		return domain.ErrMetadataWrite
	}
	return nil
}

// SetMainImage marks the asset with the given public ID as main and clears
// the flag on all others in one version-guarded update, using array filters
// to address both sides of the flag swap atomically.
func (r *AnnouncementRepository) SetMainImage(ctx context.Context, announcementID, publicID string, expectedVersion int64) error {
	objID, err := primitive.ObjectIDFromHex(announcementID)
	if err != nil {
		return fmt.Errorf("%w: invalid id %q", domain.ErrMetadataWrite, announcementID)
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objID, "media_version": expectedVersion, "images.public_id": publicID},
		bson.M{
			"$set": bson.M{
				"images.$[main].is_main":  true,
				"images.$[other].is_main": false,
				"updated_at":              time.Now().UTC(),
			},
			"$inc": bson.M{"media_version": 1},
		},
		options.Update().SetArrayFilters(options.ArrayFilters{
			Filters: []interface{}{
				bson.M{"main.public_id": publicID},
				bson.M{"other.public_id": bson.M{"$ne": publicID}},
			},
		}),
	)
	if err != nil {
		r.logger.Error("Failed to set main image",
			zap.String("announcement_id", announcementID), zap.String("public_id", publicID), zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrMetadataWrite, err)
	}
	if result.MatchedCount == 0 {
		r.logger.Warn("Set main image matched no document",
			zap.String("announcement_id", announcementID), zap.Int64("expected_version", expectedVersion))
		return domain.ErrMetadataWrite
	}
	return nil
}
