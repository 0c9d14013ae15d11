package delivery

import (
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/ports"
	"github.com/go-chi/chi/v5"
)

type Handlers struct {
	Log        *logger.ZapLogger
	Auth       *AuthHandler
	Media      *MediaHandler
	Stream     *StreamHandler
	Recordings *RecordingsHandler
	WS         http.HandlerFunc
}

func RegisterRoutes(r chi.Router, auth ports.AuthService, h Handlers) {
	// public
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/audio/{id}", h.Stream.ServeAudio)
	r.Handle("/recordings/*", h.Recordings.Static())
	r.Get("/api/auth", h.Auth.Status)
	r.Post("/api/login", h.Auth.Login)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(auth, h.Log))

		r.Get("/ws", h.WS)

		// library
		r.Get("/api/media", h.Media.List)
		r.Get("/api/media/search", h.Media.Search)
		r.Post("/api/media", h.Media.StoreLink)
		r.Post("/api/media/rename", h.Media.Rename)
		r.Delete("/api/media/{id}", h.Media.Delete)
		r.Post("/api/media/{id}/download/{class}", h.Media.Download)
		r.Post("/api/media/{id}/hashtags", h.Media.AddHashtag)

		// metadata only, nothing is stored
		r.Get("/api/stream-url", h.Media.StreamURL)
		r.Get("/api/title", h.Media.Title)
		r.Get("/api/stream-base", h.Media.StreamBase)

		// legacy recordings directory
		r.Get("/api/recordings", h.Recordings.List)
		r.Post("/api/recordings", h.Recordings.Save)
		r.Delete("/api/recordings/{name}", h.Recordings.Remove)
	})
}
