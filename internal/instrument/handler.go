package instrument

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"qa-portal/internal/store"
)

// EventsHandler serves the audit trail.
type EventsHandler struct {
	store *store.Store
}

func NewEventsHandler(s *store.Store) *EventsHandler {
	return &EventsHandler{store: s}
}

// List handles GET /api/admin/events?entity=&limit=
func (h *EventsHandler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 50)
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	events, err := h.store.ListEvents(c.UserContext(), h.store.DB, c.Query("entity"), limit)
	if err != nil {
		return fmt.Errorf("list events: %w", err)
	}
	if events == nil {
		events = []store.Event{}
	}
	return c.JSON(fiber.Map{"data": events})
}
