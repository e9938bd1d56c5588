package httpapi

import (
	"net/http"

	appmiddleware "github.com/andriizakutkodev/AutoMarketplace/internal/adapter/httpapi/middleware"
	"github.com/andriizakutkodev/AutoMarketplace/internal/platform/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter wires the media routes. Reads are public, every mutation sits
// behind JWT auth.
func NewRouter(handler *MediaHandler, jwtSecret string, log *logger.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/api/users/{id}/image", handler.HandleGetUserImage)

	r.Group(func(r chi.Router) {
		r.Use(appmiddleware.JWTAuth(jwtSecret, log))

		r.Post("/api/users/{id}/image", handler.HandleUploadUserImage)
		r.Delete("/api/users/{id}/image", handler.HandleRemoveUserImage)

		r.Post("/api/announcements/{id}/images", handler.HandleUploadAnnouncementImages)
		r.Delete("/api/announcements/{id}/images", handler.HandleRemoveAnnouncementImage)
	})

	return r
}
