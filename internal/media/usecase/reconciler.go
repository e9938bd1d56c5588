package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andriizakutkodev/AutoMarketplace/internal/media/domain"
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/logger"
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/metrics"
	"go.uber.org/zap"
)

const sweepBatchSize = 100

// Reconciler finishes sagas that a crash or a failed compensation left
// half-done. Every attach/detach writes an intent record before its
// cross-system phase; an intent that is still around after minAge means the
// operation never resolved it. The current metadata state decides the repair:
// if the owner still references the asset the state is consistent and the
// intent is dropped, otherwise the blob must not outlive the released
// reference and is removed.
type Reconciler struct {
	intents       domain.IntentRepository
	users         domain.UserRepository
	announcements domain.AnnouncementRepository
	storage       domain.FileStorage
	events        EventPublisher
	metrics       *metrics.MetricsManager
	logger        *logger.Logger
	interval      time.Duration
	minAge        time.Duration
	callTimeout   time.Duration
}

// NewReconciler creates the intent reconciler.
func NewReconciler(
	intents domain.IntentRepository,
	users domain.UserRepository,
	announcements domain.AnnouncementRepository,
	storage domain.FileStorage,
	events EventPublisher,
	mm *metrics.MetricsManager,
	log *logger.Logger,
	interval, minAge, callTimeout time.Duration,
) *Reconciler {
	return &Reconciler{
		intents:       intents,
		users:         users,
		announcements: announcements,
		storage:       storage,
		events:        events,
		metrics:       mm,
		logger:        log.Named("Reconciler"),
		interval:      interval,
		minAge:        minAge,
		callTimeout:   callTimeout,
	}
}

// Run sweeps on a ticker until ctx is cancelled. An interval of zero
// disables the reconciler entirely.
func (r *Reconciler) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("Reconciler disabled (interval is zero)")
		return
	}
	r.logger.Info("Reconciler starting",
		zap.Duration("interval", r.interval),
		zap.Duration("min_age", r.minAge))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Reconciler stopping")
			return
		case <-ticker.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error("Reconciler sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep resolves one batch of stale intents and returns how many it settled.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	r.metrics.ReconcilerSweepsTotal.Inc()

	intents, err := r.intents.ListOlderThan(ctx, r.minAge, sweepBatchSize)
	if err != nil {
		return 0, fmt.Errorf("listing stale intents: %w", err)
	}
	if len(intents) == 0 {
		return 0, nil
	}

	r.logger.Info("Sweeping stale media intents", zap.Int("count", len(intents)))

	resolved := 0
	for _, intent := range intents {
		if err := r.resolveIntent(ctx, intent); err != nil {
			r.logger.Warn("Intent left unresolved for next sweep",
				zap.Error(err),
				zap.String("intent_id", intent.ID.Hex()),
				zap.String("kind", string(intent.Kind)),
				zap.String("owner_id", intent.OwnerID))
			continue
		}
		resolved++
		r.metrics.ReconciledIntentsTotal.Inc()
	}
	return resolved, nil
}

func (r *Reconciler) resolveIntent(ctx context.Context, intent *domain.MediaIntent) error {
	referenced, err := r.isReferenced(ctx, intent)
	if err != nil {
		return err
	}

	if referenced {
		// The owner still points at the asset, so whatever phase the intent
		// guarded ended in a consistent committed (or restored) state. The
		// record is stale bookkeeping.
		if err := r.intents.Delete(ctx, intent.ID); err != nil {
			return fmt.Errorf("deleting settled intent: %w", err)
		}
		r.logger.Info("Dropped intent for consistent state",
			zap.String("intent_id", intent.ID.Hex()), zap.String("kind", string(intent.Kind)))
		return nil
	}

	// The metadata no longer references the asset: the blob, if it still
	// exists, is an orphan. Finish what the original compensation (attach
	// rollback) or forward phase (detach) could not.
	sctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	outcome, err := r.storage.Remove(sctx, intent.Asset.PublicID)
	cancel()
	if err != nil {
		return fmt.Errorf("removing orphaned blob %s: %w", intent.Asset.PublicID, err)
	}

	if err := r.intents.Delete(ctx, intent.ID); err != nil {
		return fmt.Errorf("deleting resolved intent: %w", err)
	}

	r.logger.Info("Reconciled stale intent",
		zap.String("intent_id", intent.ID.Hex()),
		zap.String("kind", string(intent.Kind)),
		zap.String("public_id", intent.Asset.PublicID),
		zap.Bool("blob_was_present", outcome == domain.RemoveDeleted))

	if err := r.events.Publish(ctx, SubjectMediaReconciled, map[string]interface{}{
		"intent_id":  intent.ID.Hex(),
		"kind":       intent.Kind,
		"owner_kind": intent.OwnerKind,
		"owner_id":   intent.OwnerID,
		"public_id":  intent.Asset.PublicID,
	}); err != nil {
		r.logger.Warn("Failed to publish reconciled event", zap.Error(err))
	}
	return nil
}

// isReferenced reports whether the intent's owner currently references the
// intent's asset. A deleted owner counts as not referencing.
func (r *Reconciler) isReferenced(ctx context.Context, intent *domain.MediaIntent) (bool, error) {
	rctx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()

	switch intent.OwnerKind {
	case domain.OwnerUser:
		user, err := r.users.GetByID(rctx, intent.OwnerID)
		if errors.Is(err, domain.ErrUserNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return user.Image != nil && user.Image.PublicID == intent.Asset.PublicID, nil
	case domain.OwnerAnnouncement:
		ann, err := r.announcements.GetByID(rctx, intent.OwnerID)
		if errors.Is(err, domain.ErrAnnouncementNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return ann.ImageByPublicID(intent.Asset.PublicID) != nil, nil
	default:
		return false, fmt.Errorf("unknown owner kind %q", intent.OwnerKind)
	}
}
