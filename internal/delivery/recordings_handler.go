package delivery

import (
	"errors"
	"io"
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/ports"
	"github.com/go-chi/chi/v5"
)

const maxRecordingBytes = 512 << 20

type RecordingsHandler struct {
	rec ports.Recordings
	log *logger.ZapLogger
}

func NewRecordingsHandler(rec ports.Recordings, log *logger.ZapLogger) *RecordingsHandler {
	return &RecordingsHandler{rec: rec, log: log}
}

// Static serves the recordings directory under /recordings/.
func (h *RecordingsHandler) Static() http.Handler {
	return http.StripPrefix("/recordings/", http.FileServer(http.Dir(h.rec.Dir())))
}

// GET /api/recordings
func (h *RecordingsHandler) List(w http.ResponseWriter, r *http.Request) {
	names, err := h.rec.List()
	if err != nil {
		writeError(w, h.log, "failed list recordings", err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

// POST /api/recordings?title=  (raw body)
func (h *RecordingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRecordingBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "recording too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	name, err := h.rec.Save(r.URL.Query().Get("title"), data)
	if err != nil {
		writeError(w, h.log, "failed save recording", err)
		return
	}

	h.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "recording saved",
		Fields:  map[string]any{"file": name, "bytes": len(data)},
	})
	writeJSON(w, http.StatusCreated, map[string]string{"filename": name})
}

// DELETE /api/recordings/{name}
func (h *RecordingsHandler) Remove(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := h.rec.Remove(name); err != nil {
		writeError(w, h.log, "failed delete recording", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
