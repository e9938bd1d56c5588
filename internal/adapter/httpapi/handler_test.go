package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appmiddleware "github.com/andriizakutkodev/AutoMarketplace/internal/adapter/httpapi/middleware"
	"github.com/andriizakutkodev/AutoMarketplace/internal/media/domain"
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/logger"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret"

// pngBytes carries a real PNG signature so content-type sniffing accepts it.
var pngBytes = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0}

type stubMediaService struct {
	attachAsset *domain.MediaAsset
	attachErr   error
	detachErr   error
	getAsset    *domain.MediaAsset
	getErr      error

	gotUserID   string
	gotFileName string
	gotData     []byte
}

func (s *stubMediaService) AttachUserImage(_ context.Context, userID, fileName string, data []byte) (*domain.MediaAsset, error) {
	s.gotUserID, s.gotFileName, s.gotData = userID, fileName, data
	return s.attachAsset, s.attachErr
}

func (s *stubMediaService) DetachUserImage(_ context.Context, userID string) error {
	s.gotUserID = userID
	return s.detachErr
}

func (s *stubMediaService) GetUserImage(_ context.Context, userID string) (*domain.MediaAsset, error) {
	s.gotUserID = userID
	return s.getAsset, s.getErr
}

type stubAnnouncementService struct {
	attachResults []domain.AssetResult
	attachErr     error
	detachErr     error

	gotAnnouncementID string
	gotPublicID       string
	gotFiles          []domain.ImageUpload
}

func (s *stubAnnouncementService) AttachAnnouncementImages(_ context.Context, announcementID string, files []domain.ImageUpload) ([]domain.AssetResult, error) {
	s.gotAnnouncementID, s.gotFiles = announcementID, files
	return s.attachResults, s.attachErr
}

func (s *stubAnnouncementService) DetachAnnouncementImage(_ context.Context, announcementID, publicID string) error {
	s.gotAnnouncementID, s.gotPublicID = announcementID, publicID
	return s.detachErr
}

func newTestServer(t *testing.T, media MediaService, announcements AnnouncementMediaService) *httptest.Server {
	t.Helper()
	log := logger.NewLogger()
	handler := NewMediaHandler(media, announcements, 10, log)
	srv := httptest.NewServer(NewRouter(handler, testJWTSecret, log))
	t.Cleanup(srv.Close)
	return srv
}

func signedToken(t *testing.T) string {
	t.Helper()
	claims := appmiddleware.Claims{
		UserID: "caller-1",
		Role:   "user",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testJWTSecret))
	require.NoError(t, err)
	return token
}

func multipartBody(t *testing.T, field string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for name, data := range files {
		part, err := writer.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func doRequest(t *testing.T, method, url string, body *bytes.Buffer, contentType, token string) *http.Response {
	t.Helper()
	var reader *bytes.Buffer
	if body == nil {
		reader = &bytes.Buffer{}
	} else {
		reader = body
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeResponse(t *testing.T, resp *http.Response) apiResponse {
	t.Helper()
	var out apiResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestUploadUserImage_Success(t *testing.T) {
	media := &stubMediaService{attachAsset: &domain.MediaAsset{PublicID: "user/images/a.png", URL: "http://blobs.local/a"}}
	srv := newTestServer(t, media, &stubAnnouncementService{})

	body, contentType := multipartBody(t, "image", map[string][]byte{"avatar.png": pngBytes})
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/users/user-1/image", body, contentType, signedToken(t))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeResponse(t, resp)
	assert.True(t, out.IsSuccess)
	assert.Equal(t, "user-1", media.gotUserID)
	assert.Equal(t, "avatar.png", media.gotFileName)
	assert.Equal(t, pngBytes, media.gotData)
}

func TestUploadUserImage_RequiresAuth(t *testing.T) {
	media := &stubMediaService{}
	srv := newTestServer(t, media, &stubAnnouncementService{})

	body, contentType := multipartBody(t, "image", map[string][]byte{"avatar.png": pngBytes})
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/users/user-1/image", body, contentType, "")

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, media.gotUserID)
}

func TestUploadUserImage_RejectsNonImagePayload(t *testing.T) {
	media := &stubMediaService{}
	srv := newTestServer(t, media, &stubAnnouncementService{})

	body, contentType := multipartBody(t, "image", map[string][]byte{"notes.txt": []byte("plain text, not an image")})
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/users/user-1/image", body, contentType, signedToken(t))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, media.gotUserID)
}

func TestUploadUserImage_MissingFileField(t *testing.T) {
	srv := newTestServer(t, &stubMediaService{}, &stubAnnouncementService{})

	body, contentType := multipartBody(t, "wrong_field", map[string][]byte{"avatar.png": pngBytes})
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/users/user-1/image", body, contentType, signedToken(t))

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUploadUserImage_ErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"user not found", domain.ErrUserNotFound, http.StatusNotFound},
		{"metadata conflict", domain.ErrMetadataWrite, http.StatusBadRequest},
		{"storage upload failed", domain.ErrStorageUpload, http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			media := &stubMediaService{attachErr: tc.err}
			srv := newTestServer(t, media, &stubAnnouncementService{})

			body, contentType := multipartBody(t, "image", map[string][]byte{"avatar.png": pngBytes})
			resp := doRequest(t, http.MethodPost, srv.URL+"/api/users/user-1/image", body, contentType, signedToken(t))
			assert.Equal(t, tc.wantStatus, resp.StatusCode)
		})
	}
}

func TestRemoveUserImage_Success(t *testing.T) {
	media := &stubMediaService{}
	srv := newTestServer(t, media, &stubAnnouncementService{})

	resp := doRequest(t, http.MethodDelete, srv.URL+"/api/users/user-1/image", nil, "", signedToken(t))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "user-1", media.gotUserID)
}

func TestRemoveUserImage_NoImageIsBadRequest(t *testing.T) {
	media := &stubMediaService{detachErr: domain.ErrNoImage}
	srv := newTestServer(t, media, &stubAnnouncementService{})

	resp := doRequest(t, http.MethodDelete, srv.URL+"/api/users/user-1/image", nil, "", signedToken(t))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRemoveUserImage_StorageFailureIsBadGateway(t *testing.T) {
	media := &stubMediaService{detachErr: domain.ErrStorageRemove}
	srv := newTestServer(t, media, &stubAnnouncementService{})

	resp := doRequest(t, http.MethodDelete, srv.URL+"/api/users/user-1/image", nil, "", signedToken(t))
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestGetUserImage_PublicRoute(t *testing.T) {
	media := &stubMediaService{getAsset: &domain.MediaAsset{PublicID: "user/images/a.png", URL: "http://blobs.local/a"}}
	srv := newTestServer(t, media, &stubAnnouncementService{})

	// No token: reads are public.
	resp := doRequest(t, http.MethodGet, srv.URL+"/api/users/user-1/image", nil, "", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeResponse(t, resp)
	assert.True(t, out.IsSuccess)
}

func TestUploadAnnouncementImages_PartialFailureIsMultiStatus(t *testing.T) {
	announcements := &stubAnnouncementService{
		attachResults: []domain.AssetResult{
			{FileName: "front.png", Asset: &domain.MediaAsset{PublicID: "announcement/images/a.png", IsMain: true}},
			{FileName: "rear.png", Err: domain.ErrStorageUpload},
		},
	}
	srv := newTestServer(t, &stubMediaService{}, announcements)

	body, contentType := multipartBody(t, "images", map[string][]byte{
		"front.png": pngBytes,
		"rear.png":  pngBytes,
	})
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/announcements/ann-1/images", body, contentType, signedToken(t))

	require.Equal(t, http.StatusMultiStatus, resp.StatusCode)
	out := decodeResponse(t, resp)
	assert.False(t, out.IsSuccess)
	assert.Equal(t, "ann-1", announcements.gotAnnouncementID)
	assert.Len(t, announcements.gotFiles, 2)
}

func TestUploadAnnouncementImages_AllSucceed(t *testing.T) {
	announcements := &stubAnnouncementService{
		attachResults: []domain.AssetResult{
			{FileName: "front.png", Asset: &domain.MediaAsset{PublicID: "announcement/images/a.png", IsMain: true}},
		},
	}
	srv := newTestServer(t, &stubMediaService{}, announcements)

	body, contentType := multipartBody(t, "images", map[string][]byte{"front.png": pngBytes})
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/announcements/ann-1/images", body, contentType, signedToken(t))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeResponse(t, resp)
	assert.True(t, out.IsSuccess)
}

func TestUploadAnnouncementImages_NoFiles(t *testing.T) {
	srv := newTestServer(t, &stubMediaService{}, &stubAnnouncementService{})

	body, contentType := multipartBody(t, "images", nil)
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/announcements/ann-1/images", body, contentType, signedToken(t))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRemoveAnnouncementImage_Success(t *testing.T) {
	announcements := &stubAnnouncementService{}
	srv := newTestServer(t, &stubMediaService{}, announcements)

	resp := doRequest(t, http.MethodDelete,
		srv.URL+"/api/announcements/ann-1/images?public_id=announcement%2Fimages%2Fa.png", nil, "", signedToken(t))

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ann-1", announcements.gotAnnouncementID)
	assert.Equal(t, "announcement/images/a.png", announcements.gotPublicID)
}

func TestRemoveAnnouncementImage_MissingPublicID(t *testing.T) {
	announcements := &stubAnnouncementService{}
	srv := newTestServer(t, &stubMediaService{}, announcements)

	resp := doRequest(t, http.MethodDelete, srv.URL+"/api/announcements/ann-1/images", nil, "", signedToken(t))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Empty(t, announcements.gotAnnouncementID)
}

func TestRemoveAnnouncementImage_NotAttachedIsNotFound(t *testing.T) {
	announcements := &stubAnnouncementService{detachErr: domain.ErrImageNotAttached}
	srv := newTestServer(t, &stubMediaService{}, announcements)

	resp := doRequest(t, http.MethodDelete,
		srv.URL+"/api/announcements/ann-1/images?public_id=x.png", nil, "", signedToken(t))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &stubMediaService{}, &stubAnnouncementService{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/healthz", nil, "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
