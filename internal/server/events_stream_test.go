package server

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/sprinklerd/internal/events"
)

func TestEnqueueEventDropsOldest(t *testing.T) {
	handler := &EventsStreamHandler{log: zerolog.Nop()}

	eventChan := make(chan *events.Event, 2)

	event1 := &events.Event{Type: events.ZoneOn}
	event2 := &events.Event{Type: events.ZoneOff}
	event3 := &events.Event{Type: events.RunStart}

	handler.enqueueEvent(eventChan, event1)
	handler.enqueueEvent(eventChan, event2)
	handler.enqueueEvent(eventChan, event3)

	assert.Equal(t, 2, len(eventChan))

	first := <-eventChan
	second := <-eventChan

	assert.Equal(t, events.ZoneOff, first.Type)
	assert.Equal(t, events.RunStart, second.Type)
}
