package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/andriizakutkodev/AutoMarketplace/internal/media/domain"
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/logger"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// MediaService is the user-image coordinator as the HTTP layer sees it.
type MediaService interface {
	AttachUserImage(ctx context.Context, userID, fileName string, data []byte) (*domain.MediaAsset, error)
	DetachUserImage(ctx context.Context, userID string) error
	GetUserImage(ctx context.Context, userID string) (*domain.MediaAsset, error)
}

// AnnouncementMediaService is the announcement-image coordinator as the HTTP
// layer sees it.
type AnnouncementMediaService interface {
	AttachAnnouncementImages(ctx context.Context, announcementID string, files []domain.ImageUpload) ([]domain.AssetResult, error)
	DetachAnnouncementImage(ctx context.Context, announcementID, publicID string) error
}

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// MediaHandler exposes the media lifecycle over HTTP. Routing and payload
// validation live here; the coordinators own the cross-system semantics.
type MediaHandler struct {
	media         MediaService
	announcements AnnouncementMediaService
	maxUploadSize int64
	logger        *logger.Logger
}

// NewMediaHandler creates the HTTP handler for media operations.
func NewMediaHandler(media MediaService, announcements AnnouncementMediaService, maxUploadSizeMB int64, log *logger.Logger) *MediaHandler {
	return &MediaHandler{
		media:         media,
		announcements: announcements,
		maxUploadSize: maxUploadSizeMB << 20,
		logger:        log.Named("MediaHandler"),
	}
}

type apiResponse struct {
	IsSuccess bool        `json:"isSuccess"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

type assetPayload struct {
	PublicID string `json:"publicId"`
	URL      string `json:"url"`
	IsMain   bool   `json:"isMain"`
}

type assetResultPayload struct {
	FileName string        `json:"fileName"`
	Asset    *assetPayload `json:"asset,omitempty"`
	Error    string        `json:"error,omitempty"`
}

func toAssetPayload(a *domain.MediaAsset) *assetPayload {
	if a == nil {
		return nil
	}
	return &assetPayload{PublicID: a.PublicID, URL: a.URL, IsMain: a.IsMain}
}

// HandleUploadUserImage handles POST /api/users/{id}/image (multipart, field "image").
func (h *MediaHandler) HandleUploadUserImage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	fileName, data, ok := h.readImageFile(w, r, "image")
	if !ok {
		return
	}

	asset, err := h.media.AttachUserImage(r.Context(), userID, fileName, data)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apiResponse{IsSuccess: true, Data: toAssetPayload(asset)})
}

// HandleRemoveUserImage handles DELETE /api/users/{id}/image.
func (h *MediaHandler) HandleRemoveUserImage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	if err := h.media.DetachUserImage(r.Context(), userID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apiResponse{IsSuccess: true})
}

// HandleGetUserImage handles GET /api/users/{id}/image.
func (h *MediaHandler) HandleGetUserImage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	asset, err := h.media.GetUserImage(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apiResponse{IsSuccess: true, Data: toAssetPayload(asset)})
}

// HandleUploadAnnouncementImages handles POST /api/announcements/{id}/images
// (multipart, repeated field "images").
func (h *MediaHandler) HandleUploadAnnouncementImages(w http.ResponseWriter, r *http.Request) {
	announcementID := chi.URLParam(r, "id")

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		h.writeJSON(w, http.StatusBadRequest, apiResponse{Message: "invalid multipart form: " + err.Error()})
		return
	}

	fileHeaders := r.MultipartForm.File["images"]
	if len(fileHeaders) == 0 {
		h.writeJSON(w, http.StatusBadRequest, apiResponse{Message: "no image files provided"})
		return
	}

	uploads := make([]domain.ImageUpload, 0, len(fileHeaders))
	for _, fh := range fileHeaders {
		file, err := fh.Open()
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, apiResponse{Message: "failed to open uploaded file: " + err.Error()})
			return
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, apiResponse{Message: "failed to read uploaded file: " + err.Error()})
			return
		}
		if !allowedImageTypes[http.DetectContentType(data)] {
			h.writeJSON(w, http.StatusBadRequest, apiResponse{Message: "unsupported image type for file " + fh.Filename})
			return
		}
		uploads = append(uploads, domain.ImageUpload{FileName: fh.Filename, Data: data})
	}

	results, err := h.announcements.AttachAnnouncementImages(r.Context(), announcementID, uploads)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	payload := make([]assetResultPayload, 0, len(results))
	allOK := true
	for _, res := range results {
		item := assetResultPayload{FileName: res.FileName, Asset: toAssetPayload(res.Asset)}
		if res.Err != nil {
			item.Error = res.Err.Error()
			allOK = false
		}
		payload = append(payload, item)
	}

	// 207 when some files failed: siblings that committed stay committed.
	status := http.StatusOK
	if !allOK {
		status = http.StatusMultiStatus
	}
	h.writeJSON(w, status, apiResponse{IsSuccess: allOK, Data: payload})
}

// HandleRemoveAnnouncementImage handles
// DELETE /api/announcements/{id}/images?public_id=...
func (h *MediaHandler) HandleRemoveAnnouncementImage(w http.ResponseWriter, r *http.Request) {
	announcementID := chi.URLParam(r, "id")
	publicID := r.URL.Query().Get("public_id")
	if publicID == "" {
		h.writeJSON(w, http.StatusBadRequest, apiResponse{Message: "public_id query parameter is required"})
		return
	}

	if err := h.announcements.DetachAnnouncementImage(r.Context(), announcementID, publicID); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, apiResponse{IsSuccess: true})
}

// readImageFile extracts and validates a single multipart image file.
func (h *MediaHandler) readImageFile(w http.ResponseWriter, r *http.Request, field string) (string, []byte, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(h.maxUploadSize); err != nil {
		h.writeJSON(w, http.StatusBadRequest, apiResponse{Message: "invalid multipart form: " + err.Error()})
		return "", nil, false
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, apiResponse{Message: "image file is required in field '" + field + "'"})
		return "", nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, apiResponse{Message: "failed to read uploaded file: " + err.Error()})
		return "", nil, false
	}
	if !allowedImageTypes[http.DetectContentType(data)] {
		h.writeJSON(w, http.StatusBadRequest, apiResponse{Message: "unsupported image type, expected jpeg, png, webp or gif"})
		return "", nil, false
	}
	return header.Filename, data, true
}

// writeError translates coordinator errors to HTTP statuses. Callers always
// get a definite success or failure with a message; no partial states leak.
func (h *MediaHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	switch {
	case errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrAnnouncementNotFound),
		errors.Is(err, domain.ErrImageNotAttached):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNoImage),
		errors.Is(err, domain.ErrMetadataWrite),
		errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrStorageUpload),
		errors.Is(err, domain.ErrStorageRemove):
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", zap.String("path", r.URL.Path), zap.Error(err))
	} else {
		h.logger.Warn("Request rejected", zap.String("path", r.URL.Path), zap.Error(err))
	}
	h.writeJSON(w, status, apiResponse{Message: err.Error()})
}

func (h *MediaHandler) writeJSON(w http.ResponseWriter, status int, body apiResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil && !strings.Contains(err.Error(), "broken pipe") {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}
