package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/magicfactory/internal/events"
)

// EventsStreamHandler streams bus events to clients over Server-Sent Events
// or a websocket.
type EventsStreamHandler struct {
	eventBus  *events.Bus
	log       zerolog.Logger
	heartbeat time.Duration
}

// NewEventsStreamHandler creates a new events stream handler.
func NewEventsStreamHandler(eventBus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		eventBus:  eventBus,
		log:       log.With().Str("component", "events_stream").Logger(),
		heartbeat: 30 * time.Second,
	}
}

// subscribe attaches a buffered channel to the requested event types (all
// when types is empty). Events are dropped when the client falls behind.
func (h *EventsStreamHandler) subscribe(types []events.EventType) (<-chan *events.Event, func()) {
	if len(types) == 0 {
		types = events.AllTypes()
	}
	eventChan := make(chan *events.Event, 100)
	handler := func(event *events.Event) {
		select {
		case eventChan <- event:
		default:
			h.log.Warn().
				Str("event_type", string(event.Type)).
				Msg("Event channel full, dropping event")
		}
	}

	unsubs := make([]func(), 0, len(types))
	for _, t := range types {
		unsubs = append(unsubs, h.eventBus.Subscribe(t, handler))
	}
	return eventChan, func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// parseTypes reads the comma-separated ?types= filter.
func parseTypes(r *http.Request) []events.EventType {
	raw := r.URL.Query().Get("types")
	if raw == "" {
		return nil
	}
	var types []events.EventType
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			types = append(types, events.EventType(t))
		}
	}
	return types
}

func eventMessage(event *events.Event) map[string]interface{} {
	return map[string]interface{}{
		"type":      string(event.Type),
		"module":    event.Module,
		"timestamp": event.Timestamp.Format(time.RFC3339),
		"data":      event.Data,
	}
}

func heartbeatMessage() map[string]interface{} {
	return map[string]interface{}{
		"type":      "heartbeat",
		"timestamp": time.Now().Format(time.RFC3339),
	}
}

// ServeHTTP handles GET /api/events/stream requests (SSE).
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventChan, unsubscribe := h.subscribe(parseTypes(r))
	defer unsubscribe()

	h.log.Info().Str("types_filter", r.URL.Query().Get("types")).Msg("Client connected to event stream")

	fmt.Fprintf(w, "data: %s\n\n", h.encodeEvent(map[string]interface{}{
		"type":    "connected",
		"message": "Connected to event stream",
	}))
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.log.Info().Msg("Client disconnected from event stream")
			return

		case event := <-eventChan:
			fmt.Fprintf(w, "data: %s\n\n", h.encodeEvent(eventMessage(event)))
			flusher.Flush()

		case <-heartbeat.C:
			fmt.Fprintf(w, "data: %s\n\n", h.encodeEvent(heartbeatMessage()))
			flusher.Flush()
		}
	}
}

// ServeWebSocket handles GET /api/events/ws requests. Each bus event is sent
// as one JSON text message; client messages are ignored.
func (h *EventsStreamHandler) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	eventChan, unsubscribe := h.subscribe(parseTypes(r))
	defer unsubscribe()

	// CloseRead discards client frames and cancels ctx once the peer goes away
	ctx := conn.CloseRead(r.Context())
	h.log.Info().Msg("Client connected to event websocket")

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		var msg map[string]interface{}
		select {
		case <-ctx.Done():
			h.log.Info().Msg("Client disconnected from event websocket")
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event := <-eventChan:
			msg = eventMessage(event)
		case <-heartbeat.C:
			msg = heartbeatMessage()
		}

		if err := h.writeMessage(ctx, conn, msg); err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				h.log.Warn().Err(err).Msg("Failed to write websocket message")
			}
			return
		}
	}
}

func (h *EventsStreamHandler) writeMessage(ctx context.Context, conn *websocket.Conn, msg map[string]interface{}) error {
	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return wsjson.Write(writeCtx, conn, msg)
}

// encodeEvent encodes an event map to JSON string.
func (h *EventsStreamHandler) encodeEvent(event map[string]interface{}) string {
	data, err := json.Marshal(event)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal event")
		return `{"type":"error","message":"Failed to encode event"}`
	}
	return string(data)
}
