package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Folder names in the blob store. They become the leading segment of a
// public ID, so a public ID alone is enough to address the object.
const (
	UserImagesFolder         = "user/images"
	AnnouncementImagesFolder = "announcement/images"
)

// MediaAsset is the record correlating a metadata entry with a blob-store
// object. PublicID is the authoritative cross-system key: it must identify
// the same object in the metadata store and in the blob store.
type MediaAsset struct {
	PublicID string
	URL      string
	IsMain   bool
}

// User is the owner aggregate as this service sees it: identity fields plus
// an optional single owning reference to one MediaAsset. The users collection
// is owned by the user service; this service only mutates the image reference
// and the version token.
type User struct {
	ID          primitive.ObjectID
	Email       string
	Name        string
	Surname     string
	PhoneNumber string
	Image       *MediaAsset
	Version     int64 // optimistic concurrency token for image mutations
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Announcement owns a set of MediaAssets, at most one of which is main.
type Announcement struct {
	ID        primitive.ObjectID
	UserID    string
	Title     string
	Images    []MediaAsset
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ImageByPublicID returns the referenced asset, or nil when the announcement
// does not reference publicID.
func (a *Announcement) ImageByPublicID(publicID string) *MediaAsset {
	for i := range a.Images {
		if a.Images[i].PublicID == publicID {
			return &a.Images[i]
		}
	}
	return nil
}

// ImageUpload is one inbound file payload.
type ImageUpload struct {
	FileName string
	Data     []byte
}

// AssetResult reports the per-file outcome of a multi-image attach. Failures
// are isolated: one file failing does not roll back siblings that committed.
type AssetResult struct {
	FileName string
	Asset    *MediaAsset
	Err      error
}

// RemoveOutcome is the blob store's report for a delete request.
type RemoveOutcome int

const (
	RemoveDeleted RemoveOutcome = iota
	RemoveNotFound
)

// IntentKind names the saga phase a persisted intent record belongs to.
type IntentKind string

const (
	IntentPendingAttach IntentKind = "pending-attach"
	IntentPendingDetach IntentKind = "pending-detach"
)

// OwnerKind names which aggregate an intent's owner ID refers to.
type OwnerKind string

const (
	OwnerUser         OwnerKind = "user"
	OwnerAnnouncement OwnerKind = "announcement"
)

// MediaIntent is a durable record of an in-flight attach or detach, written
// before the cross-system phase and removed once the operation commits or is
// fully compensated. Stale intents are the reconciler's work queue.
type MediaIntent struct {
	ID        primitive.ObjectID
	Kind      IntentKind
	OwnerKind OwnerKind
	OwnerID   string
	Asset     MediaAsset
	CreatedAt time.Time
}

// NewMediaIntent creates an intent record for the given saga step.
func NewMediaIntent(kind IntentKind, ownerKind OwnerKind, ownerID string, asset MediaAsset) *MediaIntent {
	return &MediaIntent{
		ID:        primitive.NewObjectID(),
		Kind:      kind,
		OwnerKind: ownerKind,
		OwnerID:   ownerID,
		Asset:     asset,
		CreatedAt: time.Now().UTC(),
	}
}
