package delivery

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/models"
	"github.com/Vovarama1992/hope/internal/ports"
	"github.com/go-chi/chi/v5"
)

type StreamHandler struct {
	media ports.MediaService
	log   *logger.ZapLogger
}

func NewStreamHandler(media ports.MediaService, log *logger.ZapLogger) *StreamHandler {
	return &StreamHandler{media: media, log: log}
}

// GET /audio/{id}
func (h *StreamHandler) ServeAudio(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p, err := h.media.Payload(r.Context(), id)
	if errors.Is(err, ports.ErrNotFound) || errors.Is(err, ports.ErrInvalidIdentifier) {
		http.Error(w, "Audio not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Log(logger.LogEntry{
			Level:   "error",
			Message: "serve audio",
			Error:   err,
			Fields:  map[string]any{"mediaID": id},
		})
		http.Error(w, "Error serving audio", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", models.ContentType(p.Extension))
	// ServeContent sets Content-Length and answers range requests for seeking
	http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(p.Data))
}
