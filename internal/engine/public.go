package engine

import (
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gofiber/fiber/v2"

	"qa-portal/internal/model"
	"qa-portal/internal/storage"
	"qa-portal/internal/store"
	"qa-portal/internal/tree"
)

// ListStandards handles GET /api/standards
func (h *Handler) ListStandards(c *fiber.Ctx) error {
	standards, err := h.store.ListStandards(c.UserContext(), h.store.DB)
	if err != nil {
		return fmt.Errorf("list standards: %w", err)
	}
	if standards == nil {
		standards = []model.Standard{}
	}
	return c.JSON(fiber.Map{"data": standards})
}

// StandardTree handles GET /api/standards/:id?shape=
func (h *Handler) StandardTree(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	shape, err := tree.ParseShape(c.Query("shape"))
	if err != nil {
		return InvalidPayload(err.Error())
	}

	snap, err := h.loader.Load(c.UserContext(), &id, shape)
	if errors.Is(err, store.ErrNotFound) {
		return respondError(c, NotFoundError("standard", id))
	}
	return h.snapshotResponse(c, snap, err, func(s *tree.Snapshot) any { return s.Standards[0] })
}

// Tree handles GET /api/tree?shape= and GET /api/admin/tree?shape=
func (h *Handler) Tree(c *fiber.Ctx) error {
	shape, err := tree.ParseShape(c.Query("shape"))
	if err != nil {
		return InvalidPayload(err.Error())
	}
	snap, err := h.loader.Load(c.UserContext(), nil, shape)
	return h.snapshotResponse(c, snap, err, func(s *tree.Snapshot) any { return s.Standards })
}

// ServeFile handles GET /files/* for locally stored uploads.
func (h *Handler) ServeFile(c *fiber.Ctx) error {
	key := c.Params("*")
	if _, err := storage.CleanKey(key); err != nil {
		return respondError(c, NewAppError("NOT_FOUND", fiber.StatusNotFound, "File not found"))
	}

	rc, err := h.files.Open(c.UserContext(), key)
	if errors.Is(err, storage.ErrNotFound) {
		return respondError(c, NewAppError("NOT_FOUND", fiber.StatusNotFound, "File not found"))
	}
	if err != nil {
		return fmt.Errorf("open stored file: %w", err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read stored file: %w", err)
	}
	c.Set(fiber.HeaderContentType, mimetype.Detect(data).String())
	c.Set(fiber.HeaderCacheControl, "public, max-age=31536000, immutable")
	return c.Send(data)
}
