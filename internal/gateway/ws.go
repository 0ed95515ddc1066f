// ABOUTME: Websocket upgrade handling and the per-connection read loop.
// ABOUTME: Bridges transport events into session actor calls.

package gateway

import (
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/2389/parley-gateway/internal/session"
)

// handleUpgrade handles GET /api/conversations/{key}/ws. A request that
// is not a websocket upgrade fails with 426; a successful upgrade
// attaches the connection to the actor and starts its read loop.
func (g *Gateway) handleUpgrade(w http.ResponseWriter, r *http.Request, actor *session.Actor) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !websocket.IsWebSocketUpgrade(r) {
		g.sendJSONError(w, http.StatusUpgradeRequired, "websocket upgrade required")
		return
	}

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written its own error response
		g.logger.Warn("websocket upgrade failed",
			"conversation", actor.Key,
			"error", err)
		return
	}

	conn := session.NewConn(ws)
	actor.Attach(conn)
	g.logger.Info("connection upgraded",
		"conversation", actor.Key,
		"conn_id", conn.ID)

	go g.readLoop(actor, conn, ws)
}

// readLoop reads frames until the connection dies and feeds each payload
// to the actor. Close and error both end with a registry remove; an
// unexpected error is additionally logged via DetachWithError.
func (g *Gateway) readLoop(actor *session.Actor, conn *session.Conn, ws *websocket.Conn) {
	defer func() {
		actor.Detach(conn)
		_ = ws.Close()
	}()

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				actor.DetachWithError(conn, err)
			}
			return
		}
		actor.HandleInbound(conn, payload)
	}
}
