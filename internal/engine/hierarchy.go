package engine

import (
	"context"
	"database/sql"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"qa-portal/internal/model"
)

// CreateTopic handles POST /api/admin/indicators/:id/topics
func (h *Handler) CreateTopic(c *fiber.Ctx) error {
	indicatorID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var p topicPayload
	if err := c.BodyParser(&p); err != nil {
		return respondError(c, InvalidPayload("Invalid JSON body"))
	}
	if details := validatePayload(&p); len(details) > 0 {
		return respondError(c, ValidationError(details))
	}

	ctx := c.UserContext()
	t := &model.Topic{IndicatorID: indicatorID, Title: p.Title, Description: p.Description}
	err = h.store.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := h.store.GetIndicator(ctx, tx, indicatorID); err != nil {
			return err
		}
		return h.store.InsertTopic(ctx, tx, t)
	})
	if err != nil {
		return handleWriteError(c, "indicator", indicatorID, err)
	}

	h.record(ctx, "create", "topic", t.ID, map[string]any{"title": t.Title, "indicator_id": indicatorID})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": t, "message": "Topic created"})
}

// UpdateTopic handles PUT /api/admin/topics/:id
func (h *Handler) UpdateTopic(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var p topicPayload
	if err := c.BodyParser(&p); err != nil {
		return respondError(c, InvalidPayload("Invalid JSON body"))
	}
	if details := validatePayload(&p); len(details) > 0 {
		return respondError(c, ValidationError(details))
	}

	ctx := c.UserContext()
	if err := h.store.UpdateTopic(ctx, h.store.DB, id, p.Title, p.Description); err != nil {
		return handleWriteError(c, "topic", id, err)
	}
	t, err := h.store.GetTopic(ctx, h.store.DB, id)
	if err != nil {
		return handleWriteError(c, "topic", id, err)
	}

	h.record(ctx, "update", "topic", id, map[string]any{"title": t.Title})
	return c.JSON(fiber.Map{"data": t, "message": "Topic updated"})
}

// DeleteTopic handles DELETE /api/admin/topics/:id?confirm=true
func (h *Handler) DeleteTopic(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if !confirmed(c) {
		return respondError(c, ConfirmationRequired("a topic"))
	}

	ctx := c.UserContext()
	t, err := h.store.DeleteTopic(ctx, id)
	if err != nil {
		return handleWriteError(c, "topic", id, err)
	}

	h.record(ctx, "delete", "topic", id, map[string]any{"title": t.Title})
	return c.JSON(fiber.Map{"data": t, "message": "Topic deleted"})
}

// CreateTopicActivity handles POST /api/admin/topics/:id/activities
func (h *Handler) CreateTopicActivity(c *fiber.Ctx) error {
	topicID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	return h.createActivity(c, "topic", topicID, func(ctx context.Context, tx *sql.Tx) (*model.Activity, error) {
		t, err := h.store.GetTopic(ctx, tx, topicID)
		if err != nil {
			return nil, err
		}
		return &model.Activity{IndicatorID: t.IndicatorID, TopicID: &t.ID}, nil
	})
}

// CreateIndicatorActivity handles POST /api/admin/indicators/:id/activities
func (h *Handler) CreateIndicatorActivity(c *fiber.Ctx) error {
	indicatorID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	return h.createActivity(c, "indicator", indicatorID, func(ctx context.Context, tx *sql.Tx) (*model.Activity, error) {
		if _, err := h.store.GetIndicator(ctx, tx, indicatorID); err != nil {
			return nil, err
		}
		return &model.Activity{IndicatorID: indicatorID}, nil
	})
}

func (h *Handler) createActivity(c *fiber.Ctx, parent string, parentID int64,
	resolve func(context.Context, *sql.Tx) (*model.Activity, error)) error {
	var p activityPayload
	if err := c.BodyParser(&p); err != nil {
		return respondError(c, InvalidPayload("Invalid JSON body"))
	}
	if details := validatePayload(&p); len(details) > 0 {
		return respondError(c, ValidationError(details))
	}

	ctx := c.UserContext()
	var a *model.Activity
	err := h.store.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		if a, err = resolve(ctx, tx); err != nil {
			return err
		}
		a.Title, a.Description = p.Title, p.Description
		return h.store.InsertActivity(ctx, tx, a)
	})
	if err != nil {
		return handleWriteError(c, parent, parentID, err)
	}

	h.record(ctx, "create", "activity", a.ID, map[string]any{"title": a.Title, parent + "_id": parentID})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": a, "message": "Activity created"})
}

// UpdateActivity handles PUT /api/admin/activities/:id
func (h *Handler) UpdateActivity(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var p activityPayload
	if err := c.BodyParser(&p); err != nil {
		return respondError(c, InvalidPayload("Invalid JSON body"))
	}
	if details := validatePayload(&p); len(details) > 0 {
		return respondError(c, ValidationError(details))
	}

	ctx := c.UserContext()
	if err := h.store.UpdateActivity(ctx, h.store.DB, id, p.Title, p.Description); err != nil {
		return handleWriteError(c, "activity", id, err)
	}
	a, err := h.store.GetActivity(ctx, h.store.DB, id)
	if err != nil {
		return handleWriteError(c, "activity", id, err)
	}

	h.record(ctx, "update", "activity", id, map[string]any{"title": a.Title})
	return c.JSON(fiber.Map{"data": a, "message": "Activity updated"})
}

// DeleteActivity handles DELETE /api/admin/activities/:id?confirm=true
func (h *Handler) DeleteActivity(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if !confirmed(c) {
		return respondError(c, ConfirmationRequired("an activity"))
	}

	ctx := c.UserContext()
	a, err := h.store.DeleteActivity(ctx, id)
	if err != nil {
		return handleWriteError(c, "activity", id, err)
	}

	h.record(ctx, "delete", "activity", id, map[string]any{"title": a.Title})
	return c.JSON(fiber.Map{"data": a, "message": "Activity deleted"})
}

func (h *Handler) record(ctx context.Context, action, entity string, id int64, meta map[string]any) {
	h.events.Record(ctx, action, entity, id, meta)
	h.log.WithFields(logrus.Fields{"entity": entity, "id": id}).Info(action)
}
