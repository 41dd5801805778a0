package httpapi

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"kidscanvas/internal/eventstore"
)

// EventsHandler serves the internal event-relay endpoint the realtime
// gateway polls for backend-originated events that still need fan-out.
type EventsHandler struct {
	events eventstore.Store
	logger *slog.Logger
}

// NewEventsHandler wires the handler to the event store.
func NewEventsHandler(events eventstore.Store, logger *slog.Logger) *EventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventsHandler{events: events, logger: logger}
}

// streamKeys are the topic streams NextEvent drains. The head event with the
// earliest timestamp wins; on equal timestamps the lexically smaller stream
// name wins ("ws:events" before "ws:object-events").
var streamKeys = []string{"ws:object-events", "ws:events"}

// NextEvent handles GET /internal/events/next: returns the single oldest
// pending event across the object and general topic streams (ties broken
// by stream name), or 204 if both are empty.
func (h *EventsHandler) NextEvent(c *fiber.Ctx) error {
	ctx := c.Context()

	var (
		selectedKey   string
		selectedEvent eventstore.Event
		found         bool
	)

	for _, key := range streamKeys {
		events, err := h.events.List(ctx, key)
		if err != nil {
			h.logger.Error("list stream failed", "stream", key, "error", err)
			return handleError(c, err)
		}
		if len(events) == 0 {
			continue
		}
		head := events[0]
		if !found || head.Timestamp.Before(selectedEvent.Timestamp) ||
			(head.Timestamp.Equal(selectedEvent.Timestamp) && key < selectedKey) {
			selectedKey = key
			selectedEvent = head
			found = true
		}
	}

	if !found {
		return c.SendStatus(fiber.StatusNoContent)
	}

	popped, ok, err := h.events.PopStream(ctx, selectedKey)
	if err != nil {
		return handleError(c, err)
	}
	if !ok {
		return c.SendStatus(fiber.StatusNoContent)
	}

	return c.JSON(popped)
}
