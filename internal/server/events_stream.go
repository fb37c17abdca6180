package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/aristath/sprinklerd/internal/events"
)

// eventStreamBuffer bounds how far a slow SSE client can lag before its
// oldest buffered event is dropped in favor of newer ones.
const eventStreamBuffer = 32

// EventsStreamHandler serves GET /api/events/stream: one Server-Sent Events
// connection per client, each subscribed to the bus independently.
type EventsStreamHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventsStreamHandler builds a handler streaming bus events.
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{bus: bus, log: log.With().Str("component", "events_stream").Logger()}
}

// ServeHTTP subscribes to every event type for the lifetime of the
// connection and writes each one as an SSE `data:` frame.
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	eventChan := make(chan *events.Event, eventStreamBuffer)
	handler := func(event *events.Event) { h.enqueueEvent(eventChan, event) }

	subs := make([]events.Subscription, 0, len(allEventTypes))
	for _, t := range allEventTypes {
		subs = append(subs, h.bus.Subscribe(t, handler))
	}
	defer func() {
		for _, s := range subs {
			h.bus.Unsubscribe(s)
		}
	}()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-eventChan:
			data, err := json.Marshal(event)
			if err != nil {
				h.log.Warn().Err(err).Msg("failed to marshal event for stream")
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// enqueueEvent drops the oldest buffered event rather than blocking the
// publisher when a client falls behind.
func (h *EventsStreamHandler) enqueueEvent(eventChan chan *events.Event, event *events.Event) {
	select {
	case eventChan <- event:
		return
	default:
	}

	select {
	case <-eventChan:
	default:
	}
	select {
	case eventChan <- event:
	default:
	}
}

var allEventTypes = []events.EventType{
	events.Startup,
	events.ZoneOn,
	events.ZoneOff,
	events.RunStart,
	events.RunEnd,
	events.RunCancel,
	events.RunSkip,
	events.ConfigUpdate,
	events.Idle,
	events.ErrorOccurred,
	events.ModeChanged,
	events.RainDelayChanged,
}
