package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/andriizakutkodev/AutoMarketplace/internal/media/domain"
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/logger"
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/metrics"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("media-service/usecase")

// Event subjects published by the coordinators.
const (
	SubjectMediaAttached      = "media.attached"
	SubjectMediaDetached      = "media.detached"
	SubjectCompensationFailed = "media.compensation_failed"
	SubjectMediaReconciled    = "media.reconciled"
)

// EventPublisher publishes lifecycle events. Publish failures never fail the
// operation that produced them.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
}

// AssetCache caches the owner's current asset for reads. A nil, nil return
// means cache miss.
type AssetCache interface {
	Get(ctx context.Context, userID string) (*domain.MediaAsset, error)
	Set(ctx context.Context, userID string, asset *domain.MediaAsset) error
	Invalidate(ctx context.Context, userID string) error
}

// MediaUsecase coordinates the user-image lifecycle across the blob store and
// the metadata store. Neither side shares a transaction with the other, so
// every cross-system step is ordered and compensated explicitly:
//
//   - attach: blob first, metadata second; a failed metadata write rolls the
//     blob back so no orphan survives;
//   - detach: metadata first, blob second; a failed blob delete restores the
//     metadata so the caller can retry against the still-existing blob.
type MediaUsecase struct {
	users       domain.UserRepository
	intents     domain.IntentRepository
	storage     domain.FileStorage
	cache       AssetCache
	events      EventPublisher
	metrics     *metrics.MetricsManager
	locks       *keyedMutex
	logger      *logger.Logger
	callTimeout time.Duration
}

// NewMediaUsecase creates the user-image coordinator.
func NewMediaUsecase(
	users domain.UserRepository,
	intents domain.IntentRepository,
	storage domain.FileStorage,
	cache AssetCache,
	events EventPublisher,
	mm *metrics.MetricsManager,
	log *logger.Logger,
	callTimeout time.Duration,
) *MediaUsecase {
	return &MediaUsecase{
		users:       users,
		intents:     intents,
		storage:     storage,
		cache:       cache,
		events:      events,
		metrics:     mm,
		locks:       newKeyedMutex(),
		logger:      log.Named("MediaUsecase"),
		callTimeout: callTimeout,
	}
}

// NewPublicID builds the cross-system key for a new asset: folder prefix plus
// a random UUID, keeping the original file extension.
func NewPublicID(folder, fileName string) string {
	return fmt.Sprintf("%s/%s%s", folder, uuid.New().String(), filepath.Ext(fileName))
}

// AttachUserImage uploads a new profile image for the user and makes the user
// reference it. If the user already has an image, the existing one is detached
// first so no orphan is left behind.
func (uc *MediaUsecase) AttachUserImage(ctx context.Context, userID, fileName string, data []byte) (*domain.MediaAsset, error) {
	ctx, span := tracer.Start(ctx, "MediaUsecase.AttachUserImage")
	defer span.End()
	defer uc.observe("attach_user_image", time.Now())

	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file payload", domain.ErrInvalidInput)
	}

	unlock := uc.locks.Lock(userID)
	defer unlock()

	uc.logger.Info("Attaching user image",
		zap.String("user_id", userID),
		zap.String("file_name", fileName),
		zap.Int("size_bytes", len(data)))

	user, err := uc.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Double-attach policy: detach the current image first, with the full
	// compensation rules, instead of silently overwriting the reference.
	if user.Image != nil {
		uc.logger.Info("User already has an image, detaching it before attach",
			zap.String("user_id", userID),
			zap.String("old_public_id", user.Image.PublicID))
		if err := uc.detachLocked(ctx, user); err != nil {
			return nil, fmt.Errorf("replacing existing image: %w", err)
		}
		if user, err = uc.getUser(ctx, userID); err != nil {
			return nil, err
		}
	}

	publicID := NewPublicID(domain.UserImagesFolder, fileName)

	intent := domain.NewMediaIntent(domain.IntentPendingAttach, domain.OwnerUser, userID, domain.MediaAsset{PublicID: publicID})
	if err := uc.intents.Create(ctx, intent); err != nil {
		uc.logger.Error("Failed to record attach intent", zap.Error(err), zap.String("user_id", userID))
		return nil, fmt.Errorf("%w: %v", domain.ErrMetadataWrite, err)
	}

	sctx, cancel := context.WithTimeout(ctx, uc.callTimeout)
	asset, err := uc.storage.Upload(sctx, publicID, data)
	cancel()
	if err != nil {
		// A timeout cannot prove the remote write did not land, so the
		// possibly-created blob is rolled back. Remove treats a missing
		// object as success, and a failed cleanup leaves the intent for
		// the reconciler.
		uc.compensateUpload(intent, publicID)
		uc.countError("attach_user_image", "upstream")
		uc.logger.Error("Blob upload failed", zap.Error(err), zap.String("user_id", userID), zap.String("public_id", publicID))
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUpload, err)
	}

	if err := uc.users.SetImage(ctx, userID, asset, user.Version); err != nil {
		// The blob exists but is unreferenced. Compensate before failing;
		// the compensation's own outcome is not propagated.
		uc.compensateUpload(intent, asset.PublicID)
		uc.countError("attach_user_image", "metadata")
		uc.logger.Error("Metadata write failed after upload, compensated",
			zap.Error(err), zap.String("user_id", userID), zap.String("public_id", asset.PublicID))
		return nil, fmt.Errorf("image was not uploaded: %w", err)
	}

	uc.deleteIntent(ctx, intent)
	uc.metrics.MediaAttachesTotal.Inc()

	if err := uc.cache.Set(ctx, userID, asset); err != nil {
		uc.logger.Warn("Failed to cache attached image", zap.Error(err), zap.String("user_id", userID))
	}
	uc.publish(ctx, SubjectMediaAttached, map[string]interface{}{
		"owner_kind": domain.OwnerUser,
		"owner_id":   userID,
		"public_id":  asset.PublicID,
		"url":        asset.URL,
	})

	uc.logger.Info("User image attached", zap.String("user_id", userID), zap.String("public_id", asset.PublicID))
	return asset, nil
}

// DetachUserImage removes the user's current image from both systems.
// Not having an image is a caller error, not an idempotent no-op.
func (uc *MediaUsecase) DetachUserImage(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "MediaUsecase.DetachUserImage")
	defer span.End()
	defer uc.observe("detach_user_image", time.Now())

	unlock := uc.locks.Lock(userID)
	defer unlock()

	user, err := uc.getUser(ctx, userID)
	if err != nil {
		return err
	}
	return uc.detachLocked(ctx, user)
}

// detachLocked runs the detach saga for a resolved user. Callers must hold
// the per-user lock.
func (uc *MediaUsecase) detachLocked(ctx context.Context, user *domain.User) error {
	userID := user.ID.Hex()

	if user.Image == nil {
		return domain.ErrNoImage
	}
	asset := *user.Image

	uc.logger.Info("Detaching user image", zap.String("user_id", userID), zap.String("public_id", asset.PublicID))

	intent := domain.NewMediaIntent(domain.IntentPendingDetach, domain.OwnerUser, userID, asset)
	if err := uc.intents.Create(ctx, intent); err != nil {
		uc.logger.Error("Failed to record detach intent", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("%w: %v", domain.ErrMetadataWrite, err)
	}

	// Metadata lets go of the blob first. A dangling reference is recoverable
	// by retrying; an unreferenced blob is not discoverable, so the blob is
	// only removed once the metadata side has unambiguously released it.
	if err := uc.users.ClearImage(ctx, userID, user.Version); err != nil {
		uc.deleteIntent(ctx, intent)
		uc.countError("detach_user_image", "metadata")
		uc.logger.Error("Metadata delete failed, blob untouched", zap.Error(err), zap.String("user_id", userID))
		return fmt.Errorf("image was not removed: %w", err)
	}

	sctx, cancel := context.WithTimeout(ctx, uc.callTimeout)
	outcome, err := uc.storage.Remove(sctx, asset.PublicID)
	cancel()
	if err != nil {
		// The blob still exists but the metadata already let go of it.
		// Compensate forward: restore the record and the reference together,
		// returning the system to its pre-operation state.
		uc.restoreUserImage(intent, userID, &asset, user.Version+1)
		uc.countError("detach_user_image", "upstream")
		uc.logger.Error("Blob remove failed, metadata restored",
			zap.Error(err), zap.String("user_id", userID), zap.String("public_id", asset.PublicID))
		return fmt.Errorf("%w: %v", domain.ErrStorageRemove, err)
	}
	if outcome == domain.RemoveNotFound {
		// The blob had already drifted away. Metadata already reflects the
		// removal, so the system is consistent: overall success.
		uc.logger.Warn("Blob was already gone during detach",
			zap.String("user_id", userID), zap.String("public_id", asset.PublicID))
	}

	uc.deleteIntent(ctx, intent)
	uc.metrics.MediaDetachesTotal.Inc()

	if err := uc.cache.Invalidate(ctx, userID); err != nil {
		uc.logger.Warn("Failed to invalidate image cache", zap.Error(err), zap.String("user_id", userID))
	}
	uc.publish(ctx, SubjectMediaDetached, map[string]interface{}{
		"owner_kind": domain.OwnerUser,
		"owner_id":   userID,
		"public_id":  asset.PublicID,
	})

	uc.logger.Info("User image detached", zap.String("user_id", userID), zap.String("public_id", asset.PublicID))
	return nil
}

// GetUserImage returns the user's current image, cache-first.
func (uc *MediaUsecase) GetUserImage(ctx context.Context, userID string) (*domain.MediaAsset, error) {
	ctx, span := tracer.Start(ctx, "MediaUsecase.GetUserImage")
	defer span.End()

	if asset, err := uc.cache.Get(ctx, userID); err != nil {
		uc.logger.Warn("Image cache read failed", zap.Error(err), zap.String("user_id", userID))
	} else if asset != nil {
		return asset, nil
	}

	user, err := uc.getUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Image == nil {
		return nil, domain.ErrNoImage
	}
	if err := uc.cache.Set(ctx, userID, user.Image); err != nil {
		uc.logger.Warn("Failed to cache image on read", zap.Error(err), zap.String("user_id", userID))
	}
	return user.Image, nil
}

func (uc *MediaUsecase) getUser(ctx context.Context, userID string) (*domain.User, error) {
	rctx, cancel := context.WithTimeout(ctx, uc.callTimeout)
	defer cancel()
	return uc.users.GetByID(rctx, userID)
}

// compensateUpload removes a blob that may exist without a committed
// reference, either because the metadata write failed after upload or because
// the upload itself erred without proving the remote write did not land. Best
// effort: the outcome is recorded but never surfaced to the caller. It runs on a
// fresh context so a caller cancellation cannot skip it. The intent is only
// resolved when the cleanup succeeded; otherwise the reconciler retries it.
func (uc *MediaUsecase) compensateUpload(intent *domain.MediaIntent, publicID string) {
	uc.metrics.CompensationsTotal.WithLabelValues("rollback").Inc()

	ctx, cancel := context.WithTimeout(context.Background(), uc.callTimeout)
	defer cancel()

	if _, err := uc.storage.Remove(ctx, publicID); err != nil {
		uc.metrics.CompensationFailuresTotal.WithLabelValues("rollback").Inc()
		uc.logger.Error("Compensating blob remove failed, intent left for reconciler",
			zap.Error(err),
			zap.String("public_id", publicID),
			zap.String("intent_id", intent.ID.Hex()))
		uc.publish(ctx, SubjectCompensationFailed, map[string]interface{}{
			"direction": "rollback",
			"intent_id": intent.ID.Hex(),
			"public_id": publicID,
		})
		return
	}
	uc.deleteIntent(ctx, intent)
}

// restoreUserImage is the detach path's forward compensation: the asset
// record and the owner reference come back together.
func (uc *MediaUsecase) restoreUserImage(intent *domain.MediaIntent, userID string, asset *domain.MediaAsset, expectedVersion int64) {
	uc.metrics.CompensationsTotal.WithLabelValues("restore").Inc()

	ctx, cancel := context.WithTimeout(context.Background(), uc.callTimeout)
	defer cancel()

	if err := uc.users.SetImage(ctx, userID, asset, expectedVersion); err != nil {
		uc.metrics.CompensationFailuresTotal.WithLabelValues("restore").Inc()
		uc.logger.Error("Restoring image reference failed, intent left for reconciler",
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("public_id", asset.PublicID),
			zap.String("intent_id", intent.ID.Hex()))
		uc.publish(ctx, SubjectCompensationFailed, map[string]interface{}{
			"direction": "restore",
			"intent_id": intent.ID.Hex(),
			"owner_id":  userID,
			"public_id": asset.PublicID,
		})
		return
	}
	uc.deleteIntent(ctx, intent)
}

func (uc *MediaUsecase) deleteIntent(ctx context.Context, intent *domain.MediaIntent) {
	if err := uc.intents.Delete(ctx, intent.ID); err != nil {
		// The reconciler recognizes intents for already-consistent state and
		// drops them, so a failed delete here is only noise.
		uc.logger.Warn("Failed to delete resolved intent", zap.Error(err), zap.String("intent_id", intent.ID.Hex()))
	}
}

func (uc *MediaUsecase) publish(ctx context.Context, subject string, data interface{}) {
	if err := uc.events.Publish(ctx, subject, data); err != nil {
		uc.logger.Warn("Failed to publish event", zap.Error(err), zap.String("subject", subject))
	}
}

func (uc *MediaUsecase) observe(operation string, start time.Time) {
	uc.metrics.OperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (uc *MediaUsecase) countError(operation, class string) {
	uc.metrics.OperationErrorsTotal.WithLabelValues(operation, class).Inc()
}

// IsNotFound reports whether err is one of the not-found sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, domain.ErrUserNotFound) || errors.Is(err, domain.ErrAnnouncementNotFound)
}
