package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Cross-origin policy is enforced by the CORS middleware; the
	// websocket handshake accepts any origin that made it this far.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsSubscription is the message clients send to choose stocks. An empty
// list subscribes to everything cached.
type wsSubscription struct {
	StockCodes []string `json:"stock_codes"`
}

// websocket streams price updates over a websocket connection. Clients
// may send subscription messages at any time to narrow the stream.
func (h *handler) websocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	var mu sync.Mutex
	codes := parseCodes(r)

	// Reader: consume subscription updates until the client goes away.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var sub wsSubscription
			if err := conn.ReadJSON(&sub); err != nil {
				return
			}
			mu.Lock()
			if len(sub.StockCodes) == 0 {
				codes = nil
			} else {
				codes = sub.StockCodes
			}
			mu.Unlock()
		}
	}()

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case <-ticker.C:
			mu.Lock()
			current := codes
			mu.Unlock()

			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(h.snapshot(current)); err != nil {
				return
			}
		}
	}
}
