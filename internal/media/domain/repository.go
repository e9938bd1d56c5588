package domain

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FileStorage is the blob store collaborator. Upload stores data under the
// given public ID and returns the asset with its retrievable URL. Remove
// reports not-found distinctly from other failures; callers decide whether
// drift is tolerable.
type FileStorage interface {
	Upload(ctx context.Context, publicID string, data []byte) (*MediaAsset, error)
	Remove(ctx context.Context, publicID string) (RemoveOutcome, error)
}

// UserRepository is the metadata-store side of the user aggregate. The image
// mutators are version-guarded: they return ErrMetadataWrite when no document
// matched, which covers both a missing user and a lost concurrent update.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*User, error)
	SetImage(ctx context.Context, userID string, asset *MediaAsset, expectedVersion int64) error
	ClearImage(ctx context.Context, userID string, expectedVersion int64) error
}

// AnnouncementRepository mutates the announcement's image set with the same
// version guard as UserRepository.
type AnnouncementRepository interface {
	GetByID(ctx context.Context, id string) (*Announcement, error)
	AddImage(ctx context.Context, announcementID string, asset *MediaAsset, expectedVersion int64) error
	RemoveImage(ctx context.Context, announcementID, publicID string, expectedVersion int64) error
	SetMainImage(ctx context.Context, announcementID, publicID string, expectedVersion int64) error
}

// IntentRepository persists saga intent records.
type IntentRepository interface {
	Create(ctx context.Context, intent *MediaIntent) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	// ListOlderThan returns up to limit intents created before now-minAge,
	// oldest first.
	ListOlderThan(ctx context.Context, minAge time.Duration, limit int64) ([]*MediaIntent, error)
}
