package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/andriizakutkodev/AutoMarketplace/internal/media/domain"
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/logger"
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/metrics"
	"go.uber.org/zap"
)

// AnnouncementMediaUsecase applies the attach/detach saga to the
// one-to-many image set of an announcement. The ordering and compensation
// rules are the same as for user images, applied per asset: one image's
// failure never rolls back siblings that already committed.
type AnnouncementMediaUsecase struct {
	announcements domain.AnnouncementRepository
	intents       domain.IntentRepository
	storage       domain.FileStorage
	events        EventPublisher
	metrics       *metrics.MetricsManager
	locks         *keyedMutex
	logger        *logger.Logger
	callTimeout   time.Duration
}

// NewAnnouncementMediaUsecase creates the announcement-image coordinator.
func NewAnnouncementMediaUsecase(
	announcements domain.AnnouncementRepository,
	intents domain.IntentRepository,
	storage domain.FileStorage,
	events EventPublisher,
	mm *metrics.MetricsManager,
	log *logger.Logger,
	callTimeout time.Duration,
) *AnnouncementMediaUsecase {
	return &AnnouncementMediaUsecase{
		announcements: announcements,
		intents:       intents,
		storage:       storage,
		events:        events,
		metrics:       mm,
		locks:         newKeyedMutex(),
		logger:        log.Named("AnnouncementMediaUsecase"),
		callTimeout:   callTimeout,
	}
}

// AttachAnnouncementImages uploads the given files and attaches each to the
// announcement. The first image attached to an announcement with no images
// becomes the main one. Per-file outcomes are reported individually; the
// returned error is non-nil only when the announcement itself could not be
// resolved.
func (uc *AnnouncementMediaUsecase) AttachAnnouncementImages(ctx context.Context, announcementID string, files []domain.ImageUpload) ([]domain.AssetResult, error) {
	ctx, span := tracer.Start(ctx, "AnnouncementMediaUsecase.AttachAnnouncementImages")
	defer span.End()
	defer uc.observe("attach_announcement_images", time.Now())

	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no files provided", domain.ErrInvalidInput)
	}

	unlock := uc.locks.Lock(announcementID)
	defer unlock()

	ann, err := uc.getAnnouncement(ctx, announcementID)
	if err != nil {
		return nil, err
	}

	uc.logger.Info("Attaching announcement images",
		zap.String("announcement_id", announcementID),
		zap.Int("file_count", len(files)))

	version := ann.Version
	hasImages := len(ann.Images) > 0
	results := make([]domain.AssetResult, 0, len(files))

	for _, file := range files {
		asset, err := uc.attachOne(ctx, announcementID, file, !hasImages, version)
		if err != nil {
			results = append(results, domain.AssetResult{FileName: file.FileName, Err: err})
			continue
		}
		version++
		hasImages = true
		results = append(results, domain.AssetResult{FileName: file.FileName, Asset: asset})
	}

	return results, nil
}

// attachOne runs the blob-then-metadata saga for a single file.
func (uc *AnnouncementMediaUsecase) attachOne(ctx context.Context, announcementID string, file domain.ImageUpload, isMain bool, expectedVersion int64) (*domain.MediaAsset, error) {
	if len(file.Data) == 0 {
		return nil, fmt.Errorf("%w: empty file payload", domain.ErrInvalidInput)
	}

	publicID := NewPublicID(domain.AnnouncementImagesFolder, file.FileName)

	intent := domain.NewMediaIntent(domain.IntentPendingAttach, domain.OwnerAnnouncement, announcementID, domain.MediaAsset{PublicID: publicID})
	if err := uc.intents.Create(ctx, intent); err != nil {
		uc.logger.Error("Failed to record attach intent", zap.Error(err), zap.String("announcement_id", announcementID))
		return nil, fmt.Errorf("%w: %v", domain.ErrMetadataWrite, err)
	}

	sctx, cancel := context.WithTimeout(ctx, uc.callTimeout)
	asset, err := uc.storage.Upload(sctx, publicID, file.Data)
	cancel()
	if err != nil {
		// The upload may have landed despite the error, so roll back the
		// possibly-created blob rather than assuming nothing happened.
		uc.compensateUpload(intent, publicID)
		uc.countError("attach_announcement_images", "upstream")
		uc.logger.Error("Blob upload failed",
			zap.Error(err), zap.String("announcement_id", announcementID), zap.String("file_name", file.FileName))
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUpload, err)
	}
	asset.IsMain = isMain

	if err := uc.announcements.AddImage(ctx, announcementID, asset, expectedVersion); err != nil {
		uc.compensateUpload(intent, asset.PublicID)
		uc.countError("attach_announcement_images", "metadata")
		uc.logger.Error("Metadata write failed after upload, compensated",
			zap.Error(err), zap.String("announcement_id", announcementID), zap.String("public_id", asset.PublicID))
		return nil, fmt.Errorf("image was not uploaded: %w", err)
	}

	uc.deleteIntent(ctx, intent)
	uc.metrics.MediaAttachesTotal.Inc()
	uc.publish(ctx, SubjectMediaAttached, map[string]interface{}{
		"owner_kind": domain.OwnerAnnouncement,
		"owner_id":   announcementID,
		"public_id":  asset.PublicID,
		"url":        asset.URL,
		"is_main":    asset.IsMain,
	})
	return asset, nil
}

// DetachAnnouncementImage removes one image from the announcement's set in
// both systems. When the main image is removed, the next remaining one is
// promoted.
func (uc *AnnouncementMediaUsecase) DetachAnnouncementImage(ctx context.Context, announcementID, publicID string) error {
	ctx, span := tracer.Start(ctx, "AnnouncementMediaUsecase.DetachAnnouncementImage")
	defer span.End()
	defer uc.observe("detach_announcement_image", time.Now())

	unlock := uc.locks.Lock(announcementID)
	defer unlock()

	ann, err := uc.getAnnouncement(ctx, announcementID)
	if err != nil {
		return err
	}

	asset := ann.ImageByPublicID(publicID)
	if asset == nil {
		return domain.ErrImageNotAttached
	}
	removed := *asset

	uc.logger.Info("Detaching announcement image",
		zap.String("announcement_id", announcementID), zap.String("public_id", publicID))

	intent := domain.NewMediaIntent(domain.IntentPendingDetach, domain.OwnerAnnouncement, announcementID, removed)
	if err := uc.intents.Create(ctx, intent); err != nil {
		uc.logger.Error("Failed to record detach intent", zap.Error(err), zap.String("announcement_id", announcementID))
		return fmt.Errorf("%w: %v", domain.ErrMetadataWrite, err)
	}

	// Metadata first, blob second. Same ordering rationale as user images.
	if err := uc.announcements.RemoveImage(ctx, announcementID, publicID, ann.Version); err != nil {
		uc.deleteIntent(ctx, intent)
		uc.countError("detach_announcement_image", "metadata")
		uc.logger.Error("Metadata delete failed, blob untouched", zap.Error(err), zap.String("announcement_id", announcementID))
		return fmt.Errorf("image was not removed: %w", err)
	}

	sctx, cancel := context.WithTimeout(ctx, uc.callTimeout)
	outcome, err := uc.storage.Remove(sctx, publicID)
	cancel()
	if err != nil {
		uc.restoreAnnouncementImage(intent, announcementID, &removed, ann.Version+1)
		uc.countError("detach_announcement_image", "upstream")
		uc.logger.Error("Blob remove failed, metadata restored",
			zap.Error(err), zap.String("announcement_id", announcementID), zap.String("public_id", publicID))
		return fmt.Errorf("%w: %v", domain.ErrStorageRemove, err)
	}
	if outcome == domain.RemoveNotFound {
		uc.logger.Warn("Blob was already gone during detach",
			zap.String("announcement_id", announcementID), zap.String("public_id", publicID))
	}

	uc.deleteIntent(ctx, intent)
	uc.metrics.MediaDetachesTotal.Inc()

	// Promoting a new main image is local cosmetics, not part of the saga:
	// a failure here leaves the set consistent, just without a main flag.
	if removed.IsMain {
		if next := firstOther(ann.Images, publicID); next != "" {
			if err := uc.announcements.SetMainImage(ctx, announcementID, next, ann.Version+1); err != nil {
				uc.logger.Warn("Failed to promote next main image",
					zap.Error(err), zap.String("announcement_id", announcementID), zap.String("public_id", next))
			}
		}
	}

	uc.publish(ctx, SubjectMediaDetached, map[string]interface{}{
		"owner_kind": domain.OwnerAnnouncement,
		"owner_id":   announcementID,
		"public_id":  publicID,
	})

	uc.logger.Info("Announcement image detached",
		zap.String("announcement_id", announcementID), zap.String("public_id", publicID))
	return nil
}

func firstOther(images []domain.MediaAsset, excludePublicID string) string {
	for _, img := range images {
		if img.PublicID != excludePublicID {
			return img.PublicID
		}
	}
	return ""
}

func (uc *AnnouncementMediaUsecase) getAnnouncement(ctx context.Context, id string) (*domain.Announcement, error) {
	rctx, cancel := context.WithTimeout(ctx, uc.callTimeout)
	defer cancel()
	return uc.announcements.GetByID(rctx, id)
}

func (uc *AnnouncementMediaUsecase) compensateUpload(intent *domain.MediaIntent, publicID string) {
	uc.metrics.CompensationsTotal.WithLabelValues("rollback").Inc()

	ctx, cancel := context.WithTimeout(context.Background(), uc.callTimeout)
	defer cancel()

	if _, err := uc.storage.Remove(ctx, publicID); err != nil {
		uc.metrics.CompensationFailuresTotal.WithLabelValues("rollback").Inc()
		uc.logger.Error("Compensating blob remove failed, intent left for reconciler",
			zap.Error(err), zap.String("public_id", publicID), zap.String("intent_id", intent.ID.Hex()))
		uc.publish(ctx, SubjectCompensationFailed, map[string]interface{}{
			"direction": "rollback",
			"intent_id": intent.ID.Hex(),
			"public_id": publicID,
		})
		return
	}
	uc.deleteIntent(ctx, intent)
}

func (uc *AnnouncementMediaUsecase) restoreAnnouncementImage(intent *domain.MediaIntent, announcementID string, asset *domain.MediaAsset, expectedVersion int64) {
	uc.metrics.CompensationsTotal.WithLabelValues("restore").Inc()

	ctx, cancel := context.WithTimeout(context.Background(), uc.callTimeout)
	defer cancel()

	if err := uc.announcements.AddImage(ctx, announcementID, asset, expectedVersion); err != nil {
		uc.metrics.CompensationFailuresTotal.WithLabelValues("restore").Inc()
		uc.logger.Error("Restoring image reference failed, intent left for reconciler",
			zap.Error(err),
			zap.String("announcement_id", announcementID),
			zap.String("public_id", asset.PublicID),
			zap.String("intent_id", intent.ID.Hex()))
		uc.publish(ctx, SubjectCompensationFailed, map[string]interface{}{
			"direction": "restore",
			"intent_id": intent.ID.Hex(),
			"owner_id":  announcementID,
			"public_id": asset.PublicID,
		})
		return
	}
	uc.deleteIntent(ctx, intent)
}

func (uc *AnnouncementMediaUsecase) deleteIntent(ctx context.Context, intent *domain.MediaIntent) {
	if err := uc.intents.Delete(ctx, intent.ID); err != nil {
		uc.logger.Warn("Failed to delete resolved intent", zap.Error(err), zap.String("intent_id", intent.ID.Hex()))
	}
}

func (uc *AnnouncementMediaUsecase) publish(ctx context.Context, subject string, data interface{}) {
	if err := uc.events.Publish(ctx, subject, data); err != nil {
		uc.logger.Warn("Failed to publish event", zap.Error(err), zap.String("subject", subject))
	}
}

func (uc *AnnouncementMediaUsecase) observe(operation string, start time.Time) {
	uc.metrics.OperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (uc *AnnouncementMediaUsecase) countError(operation, class string) {
	uc.metrics.OperationErrorsTotal.WithLabelValues(operation, class).Inc()
}
