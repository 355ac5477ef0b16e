package broadcast

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type connectedMessage struct {
	Message string `json:"message"`
}

// ServeHTTP upgrades the request and streams hub events as JSON until the
// peer goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("Websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sub := h.Subscribe()
	defer h.Unsubscribe(sub.ID)

	err = write(conn, Event{
		Type: EventConnected,
		Data: connectedMessage{Message: "Connected to real-time block updates"},
	})
	if err != nil {
		return
	}

	// reads only detect the peer closing
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			err := write(conn, event)
			if err != nil {
				log.WithField("subscriber", sub.ID).Debugf("Websocket write failed: %v", err)
				return
			}
		}
	}
}

func write(conn *websocket.Conn, event Event) error {
	err := conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err != nil {
		return err
	}
	return conn.WriteJSON(event)
}
