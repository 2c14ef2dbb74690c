package server

import (
	"encoding/json"
	"io"
	"sync"

	"github.com/gin-gonic/gin"

	"photocatalog/internal/model"
)

// sseEvent is one server-sent event frame: Name becomes the SSE "event:"
// line, Data is marshaled as the "data:" line.
type sseEvent struct {
	Name string
	Data any
}

// eventHub fans every coordinator callback out to every currently
// connected SSE client, mirroring the push side of §4.6's UI contract
// (on_assets_added, on_asset_updated, on_thumbnail_ready, etc). There is
// no history/replay: a client that connects after a batch misses it, the
// same as the browser UI this engine was designed for.
type eventHub struct {
	mu      sync.Mutex
	clients map[chan sseEvent]struct{}
}

func newEventHub() *eventHub {
	return &eventHub{clients: make(map[chan sseEvent]struct{})}
}

func (h *eventHub) subscribe() chan sseEvent {
	ch := make(chan sseEvent, 64)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *eventHub) unsubscribe(ch chan sseEvent) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

func (h *eventHub) publish(ev sseEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			// A slow client drops events rather than blocking the
			// broadcaster; it can always re-fetch state over REST.
		}
	}
}

func (h *eventHub) broadcastAssetsAdded(batch []model.Asset) {
	h.publish(sseEvent{Name: "assets_added", Data: batch})
}

func (h *eventHub) broadcastAssetUpdated(asset model.Asset) {
	h.publish(sseEvent{Name: "asset_updated", Data: asset})
}

type derivativeReadyPayload struct {
	AssetID string `json:"asset_id"`
	Handle  string `json:"handle"`
}

func (h *eventHub) broadcastDerivativeReady(kind, id, handle string) {
	h.publish(sseEvent{Name: kind + "_ready", Data: derivativeReadyPayload{AssetID: id, Handle: handle}})
}

type derivativeErrorPayload struct {
	AssetID string `json:"asset_id"`
	Error   string `json:"error"`
}

func (h *eventHub) broadcastDerivativeError(kind, id string, err error) {
	h.publish(sseEvent{Name: kind + "_error", Data: derivativeErrorPayload{AssetID: id, Error: err.Error()}})
}

// handle implements the /api/v1/events endpoint: one long-lived SSE
// stream per connected client.
func (h *eventHub) handle(c *gin.Context) {
	ch := h.subscribe()
	defer h.unsubscribe(ch)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-ch:
			if !ok {
				return false
			}
			data, err := json.Marshal(ev.Data)
			if err != nil {
				return true
			}
			c.SSEvent(ev.Name, string(data))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
