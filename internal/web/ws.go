package web

import (
	"context"
	"net/http"
	"time"

	"personal-connect/internal/notify"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// origins are enforced by the CORS layer for the REST routes
		return true
	},
}

// wsMessage is one frame pushed to the client.
type wsMessage struct {
	Action string      `json:"action"`
	Data   interface{} `json:"data"`
}

// Stream pushes the roster state after every change and every alert of the
// session as it happens.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	e := current(r)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	e.streams.Add(1)
	defer func() {
		e.touch(time.Now())
		e.streams.Add(-1)
	}()

	ctx, cancel := context.WithCancel(h.base)
	defer cancel()

	// the reader only exists to notice the peer going away
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	changes := e.client.Roster().Changes(ctx)
	alerts, seen := e.alerts.watch(ctx)
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				return
			}
			if !h.send(conn, wsMessage{Action: "state", Data: e.client.Roster().State()}) {
				return
			}
		case _, ok := <-alerts:
			if !ok {
				return
			}
			var items []notify.Alert
			items, seen = e.alerts.since(seen)
			for _, a := range items {
				if !h.send(conn, wsMessage{Action: "alert", Data: a}) {
					return
				}
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) send(conn *websocket.Conn, msg wsMessage) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(msg); err != nil {
		h.log.Debug("websocket write", "action", msg.Action, "error", err)
		return false
	}
	return true
}
