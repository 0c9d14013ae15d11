package delivery

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/ports"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ports.ErrInvalidIdentifier), errors.Is(err, ports.ErrInvalidLink):
		return http.StatusBadRequest
	case errors.Is(err, ports.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ports.ErrDuplicateKey), errors.Is(err, ports.ErrDownloadInProgress):
		return http.StatusConflict
	case errors.Is(err, ports.ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// writeError maps domain errors onto status codes. Internal errors are
// logged and answered without detail.
func writeError(w http.ResponseWriter, log *logger.ZapLogger, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Log(logger.LogEntry{
			Level:   "error",
			Message: msg,
			Error:   err,
		})
		http.Error(w, msg, status)
		return
	}
	http.Error(w, err.Error(), status)
}

// lanIP returns the first non-loopback IPv4 address of the host.
func lanIP() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return ""
}
