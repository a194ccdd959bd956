package live

import (
	"encoding/json"
	"net/http"
	"sync"
)

// SSEBroker fans snapshots out to connected dashboard clients, keyed by
// location topic. Sends never block: a slow client drops messages instead of
// stalling the broadcast.
type SSEBroker struct {
	mu      sync.Mutex
	clients map[string]map[chan []byte]struct{}
}

// NewSSEBroker constructs a broker.
func NewSSEBroker() *SSEBroker {
	return &SSEBroker{clients: make(map[string]map[chan []byte]struct{})}
}

// Publish implements Publisher.
func (b *SSEBroker) Publish(locationTopic string, snapshot Snapshot) {
	if b == nil || locationTopic == "" {
		return
	}
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return
	}

	b.mu.Lock()
	subscribers := make([]chan []byte, 0, len(b.clients[locationTopic]))
	for ch := range b.clients[locationTopic] {
		subscribers = append(subscribers, ch)
	}
	b.mu.Unlock()

	for _, ch := range subscribers {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Subscribe registers a client channel for a location topic.
func (b *SSEBroker) Subscribe(locationTopic string) chan []byte {
	if b == nil || locationTopic == "" {
		return nil
	}
	ch := make(chan []byte, 16)
	b.mu.Lock()
	topic := b.clients[locationTopic]
	if topic == nil {
		topic = make(map[chan []byte]struct{})
		b.clients[locationTopic] = topic
	}
	topic[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a client channel. The channel is never closed: Publish
// may still hold a reference from a snapshot taken before the removal, and a
// send on a closed channel would panic inside the ingestion path. The reader
// exits through its request context instead and the channel is collected.
func (b *SSEBroker) Unsubscribe(locationTopic string, ch chan []byte) {
	if b == nil || ch == nil {
		return
	}
	b.mu.Lock()
	if topic := b.clients[locationTopic]; topic != nil {
		delete(topic, ch)
		if len(topic) == 0 {
			delete(b.clients, locationTopic)
		}
	}
	b.mu.Unlock()
}

// StreamHandler serves the SSE live snapshot stream.
type StreamHandler struct {
	broker *SSEBroker
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(broker *SSEBroker) *StreamHandler {
	return &StreamHandler{broker: broker}
}

// ServeHTTP handles GET /api/v1/live/stream?location_id=...
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}

	locationID := r.URL.Query().Get("location_id")
	if locationID == "" {
		http.Error(w, "location_id is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.broker.Subscribe(locationID)
	if ch == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	defer h.broker.Unsubscribe(locationID, ch)

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	notify := r.Context().Done()
	for {
		select {
		case payload := <-ch:
			_, _ = w.Write([]byte("event: snapshot\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-notify:
			return
		}
	}
}
