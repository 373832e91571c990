package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades the request and serves it as a feed client.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			InsecureSkipVerify: true, // household LAN, any origin
		})
		if err != nil {
			logger.Warn("websocket accept failed", "error", err, "remote", r.RemoteAddr)
			return
		}

		defer conn.CloseNow()

		NewClient(hub, conn, logger.With("remote", r.RemoteAddr)).Run(r.Context())
	}
}
