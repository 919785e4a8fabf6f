package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/zberg/go-melco/internal/hub"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // dashboards on other origins
	},
}

// wsMessage is one frame of the state stream.
type wsMessage struct {
	Type   string             `json:"type"` // "snapshot" or "update"
	Groups []hub.ClimateState `json:"groups,omitempty"`
	Event  *hub.Event         `json:"event,omitempty"`
}

// websocketHandler sends every entity once, then one update per poll cycle.
func websocketHandler(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		events, cancel := h.Subscribe()
		defer cancel()

		initial := wsMessage{Type: "snapshot", Groups: []hub.ClimateState{}}
		for _, c := range h.Climates() {
			initial.Groups = append(initial.Groups, c.State())
		}
		if err := writeFrame(conn, initial); err != nil {
			return
		}

		// Reader goroutine notices client close; incoming frames are ignored.
		closed := make(chan struct{})
		go func() {
			defer close(closed)
			for {
				if _, _, err := conn.NextReader(); err != nil {
					return
				}
			}
		}()

		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-closed:
				return
			case ev, ok := <-events:
				if !ok {
					conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
						time.Now().Add(wsWriteWait))
					return
				}
				if err := writeFrame(conn, wsMessage{Type: "update", Event: &ev}); err != nil {
					log.Debug().Err(err).Msg("Websocket write failed")
					return
				}
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
					return
				}
			}
		}
	}
}

func writeFrame(conn *websocket.Conn, msg wsMessage) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}
