package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// streamInterval is how often connected clients receive price updates.
const streamInterval = time.Second

// priceEvent is the payload pushed to SSE and websocket clients.
type priceEvent struct {
	Type      string             `json:"type"`
	Timestamp string             `json:"timestamp"`
	Prices    map[string]float64 `json:"prices"`
}

func (h *handler) snapshot(codes []string) priceEvent {
	event := priceEvent{
		Type:      "price_update",
		Timestamp: time.Now().Format(time.RFC3339),
		Prices:    make(map[string]float64),
	}
	for code, tick := range h.app.Ticks.LatestAll(codes) {
		event.Prices[code] = tick.CurrentPrice.Float()
	}
	return event
}

func equalPrices(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for code, price := range a {
		if other, ok := b[code]; !ok || other != price {
			return false
		}
	}
	return true
}

func parseCodes(r *http.Request) []string {
	raw := r.URL.Query().Get("stock_codes")
	if raw == "" {
		return nil
	}
	var codes []string
	for _, code := range strings.Split(raw, ",") {
		if code = strings.TrimSpace(code); code != "" {
			codes = append(codes, code)
		}
	}
	return codes
}

// stream pushes prices to the client as server-sent events: an initial
// snapshot, then an event per second whenever any price changed, until the
// client disconnects.
func (h *handler) stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	codes := parseCodes(r)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(event priceEvent) bool {
		data, err := json.Marshal(event)
		if err != nil {
			return true
		}
		if _, err := fmt.Fprintf(w, "event: price_update\ndata: %s\n\n", data); err != nil {
			return false
		}
		flusher.Flush()
		return true
	}

	last := h.snapshot(codes)
	if !send(last) {
		return
	}

	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			event := h.snapshot(codes)
			if equalPrices(last.Prices, event.Prices) {
				continue
			}
			last = event
			if !send(event) {
				return
			}
		}
	}
}
