package domain

import "errors"

var (
	// ErrUserNotFound indicates the owner of a media operation does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrAnnouncementNotFound indicates the announcement does not exist.
	ErrAnnouncementNotFound = errors.New("announcement not found")
	// ErrNoImage indicates a detach was requested for an owner that has no image.
	ErrNoImage = errors.New("user does not have an image to delete")
	// ErrImageNotAttached indicates the announcement does not reference the given public ID.
	ErrImageNotAttached = errors.New("image is not attached to the announcement")
	// ErrMetadataWrite indicates a local metadata write failed (zero rows
	// matched or a driver error). Covers lost optimistic-lock races as well.
	ErrMetadataWrite = errors.New("metadata write failed")
	// ErrStorageUpload indicates the blob store rejected or failed an upload.
	ErrStorageUpload = errors.New("storage upload failed")
	// ErrStorageRemove indicates the blob store failed a delete with something
	// other than not-found.
	ErrStorageRemove = errors.New("storage remove failed")
	// ErrInvalidInput indicates malformed input at the coordinator boundary.
	ErrInvalidInput = errors.New("invalid input data")
)
