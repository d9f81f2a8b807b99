package engine

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"qa-portal/internal/model"
)

// MoveTopic handles POST /api/admin/topics/:id/move
func (h *Handler) MoveTopic(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	t, err := h.store.GetTopic(c.UserContext(), h.store.DB, id)
	if err != nil {
		return handleWriteError(c, "topic", id, err)
	}
	return h.move(c, id, model.TopicSiblings(t))
}

// MoveActivity handles POST /api/admin/activities/:id/move
func (h *Handler) MoveActivity(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.store.GetActivity(c.UserContext(), h.store.DB, id)
	if err != nil {
		return handleWriteError(c, "activity", id, err)
	}
	return h.move(c, id, model.ActivitySiblings(a))
}

// move swaps id with its neighbor and rewrites the whole sibling list's
// positions as 1..N in one transaction.
func (h *Handler) move(c *fiber.Ctx, id int64, key model.SiblingKey) error {
	var p movePayload
	if err := c.BodyParser(&p); err != nil {
		return respondError(c, InvalidPayload("Invalid JSON body"))
	}
	if details := validatePayload(&p); len(details) > 0 {
		return respondError(c, ValidationError(details))
	}

	release, ok := h.guard.TryAcquire(key.String())
	if !ok {
		h.metrics.ObserveReorder(key.Kind, "conflict")
		return respondError(c, ReorderInProgress())
	}
	defer release()

	ctx := c.UserContext()
	var (
		order []int64
		moved bool
	)
	err := h.store.WithTx(ctx, func(tx *sql.Tx) error {
		ids, err := h.store.SiblingIDs(ctx, tx, key)
		if err != nil {
			return err
		}
		order, moved = Move(ids, id, Direction(p.Direction))
		if !moved {
			return nil
		}
		return h.store.RewriteOrder(ctx, tx, key.Kind, order)
	})
	if err != nil {
		h.metrics.ObserveReorder(key.Kind, "error")
		return handleWriteError(c, key.Kind, id, err)
	}

	msg := "Order unchanged"
	if moved {
		h.metrics.ObserveReorder(key.Kind, "moved")
		h.record(ctx, "reorder", key.Kind, id, map[string]any{"direction": p.Direction, "list": key.String()})
		msg = "Order updated"
	} else {
		h.metrics.ObserveReorder(key.Kind, "noop")
	}
	if order == nil {
		order = []int64{}
	}
	return c.JSON(fiber.Map{
		"data":    fiber.Map{"order": order, "moved": moved},
		"message": msg,
	})
}
