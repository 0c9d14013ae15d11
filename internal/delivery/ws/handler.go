package ws

import (
	"encoding/json"
	"net/http"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/ports"
)

// WSHandler upgrades, sends the current library right away and then
// keeps the connection registered until the client goes away. Clients
// only listen; anything they send is discarded.
func WSHandler(hub *Hub, media ports.MediaService, log *logger.ZapLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Log(logger.LogEntry{
				Level:   "warn",
				Message: "ws upgrade failed",
				Error:   err,
			})
			return
		}
		defer hub.Unregister(conn)

		err = hub.Join(conn, func() ([]byte, error) {
			snap, err := media.Library(r.Context())
			if err != nil {
				return nil, err
			}
			return json.Marshal(ports.MediaEvent{Type: ports.EventLibraryUpdated, LibrarySnapshot: snap})
		})
		if err != nil {
			log.Log(logger.LogEntry{
				Level:   "error",
				Message: "ws initial snapshot",
				Error:   err,
			})
			return
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
