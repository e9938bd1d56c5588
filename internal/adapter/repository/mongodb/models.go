package mongodb

import (
	"time"

	"github.com/andriizakutkodev/AutoMarketplace/internal/media/domain"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// mediaAssetDocument is the embedded image subdocument shared by users and
// announcements.
type mediaAssetDocument struct {
	PublicID string `bson:"public_id"`
	URL      string `bson:"url"`
	IsMain   bool   `bson:"is_main"`
}

func toAssetDocument(a *domain.MediaAsset) *mediaAssetDocument {
	if a == nil {
		return nil
	}
	return &mediaAssetDocument{
		PublicID: a.PublicID,
		URL:      a.URL,
		IsMain:   a.IsMain,
	}
}

func (d *mediaAssetDocument) toDomain() *domain.MediaAsset {
	if d == nil {
		return nil
	}
	return &domain.MediaAsset{
		PublicID: d.PublicID,
		URL:      d.URL,
		IsMain:   d.IsMain,
	}
}

// userDocument carries only the fields this service reads; the users
// collection is owned by the user service.
type userDocument struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty"`
	Email       string              `bson:"email"`
	Name        string              `bson:"name"`
	Surname     string              `bson:"surname"`
	PhoneNumber string              `bson:"phone_number,omitempty"`
	Image       *mediaAssetDocument `bson:"image,omitempty"`
	Version     int64               `bson:"media_version"`
	CreatedAt   time.Time           `bson:"created_at"`
	UpdatedAt   time.Time           `bson:"updated_at"`
}

func (d *userDocument) toDomain() *domain.User {
	return &domain.User{
		ID:          d.ID,
		Email:       d.Email,
		Name:        d.Name,
		Surname:     d.Surname,
		PhoneNumber: d.PhoneNumber,
		Image:       d.Image.toDomain(),
		Version:     d.Version,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type announcementDocument struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty"`
	UserID    string               `bson:"user_id"`
	Title     string               `bson:"title"`
	Images    []mediaAssetDocument `bson:"images,omitempty"`
	Version   int64                `bson:"media_version"`
	CreatedAt time.Time            `bson:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at"`
}

func (d *announcementDocument) toDomain() *domain.Announcement {
	images := make([]domain.MediaAsset, 0, len(d.Images))
	for i := range d.Images {
		images = append(images, *d.Images[i].toDomain())
	}
	return &domain.Announcement{
		ID:        d.ID,
		UserID:    d.UserID,
		Title:     d.Title,
		Images:    images,
		Version:   d.Version,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type intentDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Kind      string             `bson:"kind"`
	OwnerKind string             `bson:"owner_kind"`
	OwnerID   string             `bson:"owner_id"`
	Asset     mediaAssetDocument `bson:"asset"`
	CreatedAt time.Time          `bson:"created_at"`
}

func toIntentDocument(i *domain.MediaIntent) *intentDocument {
	return &intentDocument{
		ID:        i.ID,
		Kind:      string(i.Kind),
		OwnerKind: string(i.OwnerKind),
		OwnerID:   i.OwnerID,
		Asset:     *toAssetDocument(&i.Asset),
		CreatedAt: i.CreatedAt,
	}
}

func (d *intentDocument) toDomain() *domain.MediaIntent {
	return &domain.MediaIntent{
		ID:        d.ID,
		Kind:      domain.IntentKind(d.Kind),
		OwnerKind: domain.OwnerKind(d.OwnerKind),
		OwnerID:   d.OwnerID,
		Asset:     *d.Asset.toDomain(),
		CreatedAt: d.CreatedAt,
	}
}
