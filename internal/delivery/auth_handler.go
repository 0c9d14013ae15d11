package delivery

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/ports"
)

const maxLoginBytes = 4 << 10

type AuthHandler struct {
	auth ports.AuthService
	log  *logger.ZapLogger
}

func NewAuthHandler(auth ports.AuthService, log *logger.ZapLogger) *AuthHandler {
	return &AuthHandler{auth: auth, log: log}
}

type authState struct {
	Enabled bool   `json:"enabled"`
	Token   string `json:"token,omitempty"`
}

// GET /api/auth
// Tells the player whether it has to ask for a password at all.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, authState{Enabled: h.auth.Enabled()})
}

// POST /api/login
// With protection off there is nothing to check and no token is issued.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.auth.Enabled() {
		writeJSON(w, http.StatusOK, authState{})
		return
	}

	var creds struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBytes)).Decode(&creds); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	token, err := h.auth.Login(r.Context(), creds.Password)
	if errors.Is(err, ports.ErrUnauthorized) {
		h.log.Log(logger.LogEntry{
			Level:   "warn",
			Message: "control login rejected",
			Fields:  map[string]any{"remote": r.RemoteAddr},
		})
		http.Error(w, "invalid password", http.StatusUnauthorized)
		return
	}
	if err != nil {
		writeError(w, h.log, "failed login", err)
		return
	}

	writeJSON(w, http.StatusOK, authState{Enabled: true, Token: token})
}
