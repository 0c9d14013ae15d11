package delivery

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/models"
	"github.com/Vovarama1992/hope/internal/ports"
	"github.com/go-chi/chi/v5"
)

type MediaHandler struct {
	media ports.MediaService
	log   *logger.ZapLogger
	port  string
}

func NewMediaHandler(media ports.MediaService, log *logger.ZapLogger, port string) *MediaHandler {
	return &MediaHandler{
		media: media,
		log:   log,
		port:  port,
	}
}

// GET /api/media
func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	snap, err := h.media.Library(r.Context())
	if err != nil {
		writeError(w, h.log, "failed list media", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// GET /api/media/search?q=
func (h *MediaHandler) Search(w http.ResponseWriter, r *http.Request) {
	found, err := h.media.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.log, "failed search media", err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

// POST /api/media
func (h *MediaHandler) StoreLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	m, created, err := h.media.StoreLink(r.Context(), req.URL, req.Title)
	if err != nil {
		writeError(w, h.log, "failed store link", err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, m)
}

// POST /api/media/rename
func (h *MediaHandler) Rename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL      string `json:"url"`
		NewTitle string `json:"newTitle"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.media.RenameLink(r.Context(), req.URL, req.NewTitle); err != nil {
		writeError(w, h.log, "failed rename link", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DELETE /api/media/{id}
func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.media.DeleteMedia(r.Context(), id); err != nil {
		writeError(w, h.log, "failed delete media", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/media/{id}/download/{class}
// Accepted downloads run in the background; the result arrives over /ws.
func (h *MediaHandler) Download(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	class := models.FormatClass(chi.URLParam(r, "class"))
	if !class.Valid() {
		http.Error(w, "unknown format class", http.StatusNotFound)
		return
	}

	if err := h.media.StartDownload(r.Context(), id, class); err != nil {
		writeError(w, h.log, "failed start download", err)
		return
	}

	h.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "download started",
		Fields:  map[string]any{"mediaID": id, "class": string(class)},
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// POST /api/media/{id}/hashtags
func (h *MediaHandler) AddHashtag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Tag string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.media.AddHashtag(r.Context(), chi.URLParam(r, "id"), req.Tag); err != nil {
		writeError(w, h.log, "failed add hashtag", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/stream-url?url=
// A failed lookup is not an error for the player: it gets null and
// falls back to downloading.
func (h *MediaHandler) StreamURL(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return
	}

	var resp struct {
		StreamURL *string `json:"streamUrl"`
	}
	if stream, err := h.media.StreamURLDirect(r.Context(), url); err == nil {
		resp.StreamURL = &stream
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/title?url=
func (h *MediaHandler) Title(w http.ResponseWriter, r *http.Request) {
	url := r.URL.Query().Get("url")
	if url == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"title": h.media.FetchTitle(r.Context(), url)})
}

// GET /api/stream-base
func (h *MediaHandler) StreamBase(w http.ResponseWriter, r *http.Request) {
	host := lanIP()
	if host == "" {
		host = "localhost"
	}
	writeJSON(w, http.StatusOK, map[string]string{"base": fmt.Sprintf("http://%s:%s/", host, h.port)})
}
