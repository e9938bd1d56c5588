package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/andriizakutkodev/AutoMarketplace/internal/media/domain"
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/logger"
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var testLogger = logger.NewLogger()

func newTestMetrics() *metrics.MetricsManager {
	return metrics.NewMetricsManager("test")
}

// fakeUserRepo mimics the version-guarded mongo repository in memory.
type fakeUserRepo struct {
	users map[string]*domain.User

	setImageErr   error
	clearImageErr error

	setImageCalls   int
	clearImageCalls int
	getByIDCalls    int
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, u := range users {
		repo.users[u.ID.Hex()] = u
	}
	return repo
}

func (f *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	f.getByIDCalls++
	user, ok := f.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	copied := *user
	if user.Image != nil {
		img := *user.Image
		copied.Image = &img
	}
	return &copied, nil
}

func (f *fakeUserRepo) SetImage(_ context.Context, userID string, asset *domain.MediaAsset, expectedVersion int64) error {
	f.setImageCalls++
	if f.setImageErr != nil {
		return f.setImageErr
	}
	user, ok := f.users[userID]
	if !ok || user.Version != expectedVersion {
		return domain.ErrMetadataWrite
	}
	img := *asset
	user.Image = &img
	user.Version++
	return nil
}

func (f *fakeUserRepo) ClearImage(_ context.Context, userID string, expectedVersion int64) error {
	f.clearImageCalls++
	if f.clearImageErr != nil {
		return f.clearImageErr
	}
	user, ok := f.users[userID]
	if !ok || user.Version != expectedVersion {
		return domain.ErrMetadataWrite
	}
	user.Image = nil
	user.Version++
	return nil
}

// fakeAnnouncementRepo mimics the announcement repository in memory.
type fakeAnnouncementRepo struct {
	announcements map[string]*domain.Announcement

	addImageErr    error
	removeImageErr error
	setMainErr     error

	addImageCalls     int
	removeImageCalls  int
	setMainImageCalls []string // public IDs promoted
}

func newFakeAnnouncementRepo(anns ...*domain.Announcement) *fakeAnnouncementRepo {
	repo := &fakeAnnouncementRepo{announcements: make(map[string]*domain.Announcement)}
	for _, a := range anns {
		repo.announcements[a.ID.Hex()] = a
	}
	return repo
}

func (f *fakeAnnouncementRepo) GetByID(_ context.Context, id string) (*domain.Announcement, error) {
	ann, ok := f.announcements[id]
	if !ok {
		return nil, domain.ErrAnnouncementNotFound
	}
	copied := *ann
	copied.Images = append([]domain.MediaAsset(nil), ann.Images...)
	return &copied, nil
}

func (f *fakeAnnouncementRepo) AddImage(_ context.Context, announcementID string, asset *domain.MediaAsset, expectedVersion int64) error {
	f.addImageCalls++
	if f.addImageErr != nil {
		return f.addImageErr
	}
	ann, ok := f.announcements[announcementID]
	if !ok || ann.Version != expectedVersion {
		return domain.ErrMetadataWrite
	}
	ann.Images = append(ann.Images, *asset)
	ann.Version++
	return nil
}

func (f *fakeAnnouncementRepo) RemoveImage(_ context.Context, announcementID, publicID string, expectedVersion int64) error {
	f.removeImageCalls++
	if f.removeImageErr != nil {
		return f.removeImageErr
	}
	ann, ok := f.announcements[announcementID]
	if !ok || ann.Version != expectedVersion {
		return domain.ErrMetadataWrite
	}
	kept := ann.Images[:0]
	for _, img := range ann.Images {
		if img.PublicID != publicID {
			kept = append(kept, img)
		}
	}
	ann.Images = kept
	ann.Version++
	return nil
}

func (f *fakeAnnouncementRepo) SetMainImage(_ context.Context, announcementID, publicID string, expectedVersion int64) error {
	f.setMainImageCalls = append(f.setMainImageCalls, publicID)
	if f.setMainErr != nil {
		return f.setMainErr
	}
	ann, ok := f.announcements[announcementID]
	if !ok || ann.Version != expectedVersion {
		return domain.ErrMetadataWrite
	}
	for i := range ann.Images {
		ann.Images[i].IsMain = ann.Images[i].PublicID == publicID
	}
	ann.Version++
	return nil
}

// fakeIntentRepo stores intents in memory.
type fakeIntentRepo struct {
	intents   map[primitive.ObjectID]*domain.MediaIntent
	createErr error
	deleteErr error
}

func newFakeIntentRepo() *fakeIntentRepo {
	return &fakeIntentRepo{intents: make(map[primitive.ObjectID]*domain.MediaIntent)}
}

func (f *fakeIntentRepo) Create(_ context.Context, intent *domain.MediaIntent) error {
	if f.createErr != nil {
		return f.createErr
	}
	copied := *intent
	f.intents[intent.ID] = &copied
	return nil
}

func (f *fakeIntentRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.intents, id)
	return nil
}

func (f *fakeIntentRepo) ListOlderThan(_ context.Context, minAge time.Duration, limit int64) ([]*domain.MediaIntent, error) {
	cutoff := time.Now().UTC().Add(-minAge)
	var out []*domain.MediaIntent
	for _, intent := range f.intents {
		if intent.CreatedAt.Before(cutoff) {
			out = append(out, intent)
		}
		if int64(len(out)) == limit {
			break
		}
	}
	return out, nil
}

// fakeStorage keeps uploaded blobs in a map so tests can assert on the final
// cross-system state.
type fakeStorage struct {
	objects map[string][]byte

	uploadErr error
	// uploadErrAfterStore stores the object and then reports failure, the
	// way a timed-out PUT can complete remotely.
	uploadErrAfterStore error
	removeErr           error

	uploadCalls []string
	removeCalls []string
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{objects: make(map[string][]byte)}
}

func (f *fakeStorage) Upload(_ context.Context, publicID string, data []byte) (*domain.MediaAsset, error) {
	f.uploadCalls = append(f.uploadCalls, publicID)
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	f.objects[publicID] = data
	if f.uploadErrAfterStore != nil {
		return nil, f.uploadErrAfterStore
	}
	return &domain.MediaAsset{
		PublicID: publicID,
		URL:      fmt.Sprintf("http://blobs.local/%s", publicID),
	}, nil
}

func (f *fakeStorage) Remove(_ context.Context, publicID string) (domain.RemoveOutcome, error) {
	f.removeCalls = append(f.removeCalls, publicID)
	if f.removeErr != nil {
		return 0, f.removeErr
	}
	if _, ok := f.objects[publicID]; !ok {
		return domain.RemoveNotFound, nil
	}
	delete(f.objects, publicID)
	return domain.RemoveDeleted, nil
}

// fakeCache records cache traffic.
type fakeCache struct {
	entries map[string]*domain.MediaAsset
	getErr  error
	setErr  error

	invalidations []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]*domain.MediaAsset)}
}

func (f *fakeCache) Get(_ context.Context, userID string) (*domain.MediaAsset, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.entries[userID], nil
}

func (f *fakeCache) Set(_ context.Context, userID string, asset *domain.MediaAsset) error {
	if f.setErr != nil {
		return f.setErr
	}
	copied := *asset
	f.entries[userID] = &copied
	return nil
}

func (f *fakeCache) Invalidate(_ context.Context, userID string) error {
	f.invalidations = append(f.invalidations, userID)
	delete(f.entries, userID)
	return nil
}

type publishedEvent struct {
	Subject string
	Data    interface{}
}

// fakePublisher records published events.
type fakePublisher struct {
	events []publishedEvent
	pubErr error
}

func (f *fakePublisher) Publish(_ context.Context, subject string, data interface{}) error {
	if f.pubErr != nil {
		return f.pubErr
	}
	f.events = append(f.events, publishedEvent{Subject: subject, Data: data})
	return nil
}

func (f *fakePublisher) subjects() []string {
	out := make([]string, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Subject)
	}
	return out
}
