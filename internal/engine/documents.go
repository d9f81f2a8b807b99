package engine

import (
	"context"
	"database/sql"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"qa-portal/internal/model"
)

// CreateActivityDocument handles POST /api/admin/activities/:id/documents
func (h *Handler) CreateActivityDocument(c *fiber.Ctx) error {
	activityID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	a, err := h.store.GetActivity(c.UserContext(), h.store.DB, activityID)
	if err != nil {
		return handleWriteError(c, "activity", activityID, err)
	}
	// Documents under an activity also carry its indicator.
	return h.createDocument(c, &a.ID, a.IndicatorID)
}

// CreateIndicatorDocument handles POST /api/admin/indicators/:id/documents
func (h *Handler) CreateIndicatorDocument(c *fiber.Ctx) error {
	indicatorID, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if _, err := h.store.GetIndicator(c.UserContext(), h.store.DB, indicatorID); err != nil {
		return handleWriteError(c, "indicator", indicatorID, err)
	}
	return h.createDocument(c, nil, indicatorID)
}

func formFiles(c *fiber.Ctx, field string) []*multipart.FileHeader {
	form, err := c.MultipartForm()
	if err != nil || form == nil {
		return nil
	}
	return form.File[field]
}

// createDocument checks every field and file before the first storage call,
// then uploads sequentially and inserts the row.
func (h *Handler) createDocument(c *fiber.Ctx, activityID *int64, indicatorID int64) error {
	form := documentForm{
		Title:   c.FormValue("title"),
		DocType: c.FormValue("doc_type"),
		URL:     c.FormValue("url"),
	}
	details := validatePayload(&form)

	var files []*multipart.FileHeader
	switch model.DocType(form.DocType) {
	case model.DocPDF:
		if files = formFiles(c, "file"); len(files) == 0 {
			details = append(details, ErrorDetail{Field: "file", Rule: "required", Message: "file is required for a pdf document"})
		} else {
			files = files[:1]
		}
	case model.DocAlbum:
		if files = formFiles(c, "images"); len(files) == 0 {
			details = append(details, ErrorDetail{Field: "images", Rule: "required", Message: "at least one image is required for an album"})
		}
	}
	if len(details) > 0 {
		return respondError(c, ValidationError(details))
	}

	field := "file"
	if form.DocType == string(model.DocAlbum) {
		field = "images"
	}
	pending, details, err := h.uploader.InspectAll(field, form.DocType, files)
	if err != nil {
		return err
	}
	if len(details) > 0 {
		return respondError(c, ValidationError(details))
	}

	ctx := c.UserContext()
	doc := &model.Document{
		ActivityID:  activityID,
		IndicatorID: &indicatorID,
		Title:       form.Title,
		DocType:     model.DocType(form.DocType),
	}
	switch doc.DocType {
	case model.DocLink:
		doc.FileURL = form.URL
	case model.DocPDF:
		url, err := h.uploader.Store(ctx, "pdf", form.DocType, pending[0])
		if err != nil {
			return err
		}
		doc.FileURL = url
	case model.DocAlbum:
		urls, err := h.uploader.StoreAll(ctx, "img", form.DocType, pending)
		if err != nil {
			return err
		}
		doc.Gallery = urls
		doc.FileURL = Cover(urls)
	}

	if err := h.store.InsertDocument(ctx, h.store.DB, doc); err != nil {
		return handleWriteError(c, "indicator", indicatorID, err)
	}

	h.record(ctx, "create", "document", doc.ID, map[string]any{"title": doc.Title, "doc_type": form.DocType, "files": len(pending)})
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": doc, "message": "Document uploaded"})
}

// UpdateDocument handles PUT /api/admin/documents/:id
func (h *Handler) UpdateDocument(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	var p documentPayload
	if err := c.BodyParser(&p); err != nil {
		return respondError(c, InvalidPayload("Invalid JSON body"))
	}
	if details := validatePayload(&p); len(details) > 0 {
		return respondError(c, ValidationError(details))
	}

	ctx := c.UserContext()
	if err := h.store.UpdateDocumentTitle(ctx, h.store.DB, id, p.Title); err != nil {
		return handleWriteError(c, "document", id, err)
	}
	doc, err := h.store.GetDocument(ctx, h.store.DB, id)
	if err != nil {
		return handleWriteError(c, "document", id, err)
	}

	h.record(ctx, "update", "document", id, map[string]any{"title": doc.Title})
	return c.JSON(fiber.Map{"data": doc, "message": "Document updated"})
}

// DeleteDocument handles DELETE /api/admin/documents/:id?confirm=true
// Stored files are left in place.
func (h *Handler) DeleteDocument(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	if !confirmed(c) {
		return respondError(c, ConfirmationRequired("a document"))
	}

	ctx := c.UserContext()
	doc, err := h.store.GetDocument(ctx, h.store.DB, id)
	if err != nil {
		return handleWriteError(c, "document", id, err)
	}
	if err := h.store.DeleteDocument(ctx, h.store.DB, id); err != nil {
		return handleWriteError(c, "document", id, err)
	}

	h.record(ctx, "delete", "document", id, map[string]any{"title": doc.Title})
	return c.JSON(fiber.Map{"data": doc, "message": "Document deleted"})
}

func (h *Handler) albumDocument(ctx context.Context, id int64) (*model.Document, error) {
	doc, err := h.store.GetDocument(ctx, h.store.DB, id)
	if err != nil {
		return nil, err
	}
	if doc.DocType != model.DocAlbum {
		return nil, ValidationError([]ErrorDetail{{Field: "doc_type", Rule: "album", Message: "Document is not an album"}})
	}
	return doc, nil
}

// AddImages handles POST /api/admin/documents/:id/gallery (multipart "images")
func (h *Handler) AddImages(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	ctx := c.UserContext()
	if _, err := h.albumDocument(ctx, id); err != nil {
		return handleWriteError(c, "document", id, err)
	}

	files := formFiles(c, "images")
	if len(files) == 0 {
		return respondError(c, ValidationError([]ErrorDetail{{Field: "images", Rule: "required", Message: "at least one image is required"}}))
	}
	pending, details, err := h.uploader.InspectAll("images", string(model.DocAlbum), files)
	if err != nil {
		return err
	}
	if len(details) > 0 {
		return respondError(c, ValidationError(details))
	}

	urls, err := h.uploader.StoreAll(ctx, "add", string(model.DocAlbum), pending)
	if err != nil {
		return err
	}

	var doc *model.Document
	err = h.store.WithTx(ctx, func(tx *sql.Tx) error {
		current, err := h.store.GetDocument(ctx, tx, id)
		if err != nil {
			return err
		}
		merged := AppendImages(current.Gallery, urls)
		if err := h.store.UpdateGallery(ctx, tx, id, merged, Cover(merged)); err != nil {
			return err
		}
		doc, err = h.store.GetDocument(ctx, tx, id)
		return err
	})
	if err != nil {
		return handleWriteError(c, "document", id, err)
	}

	h.record(ctx, "add_images", "document", id, map[string]any{"added": len(urls), "total": len(doc.Gallery)})
	return c.JSON(fiber.Map{"data": doc, "message": "Images added"})
}

// RemoveImage handles
// DELETE /api/admin/documents/:id/gallery/:index?confirm=true[&on_empty=delete|keep]
func (h *Handler) RemoveImage(c *fiber.Ctx) error {
	id, err := paramID(c, "id")
	if err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return respondError(c, InvalidPayload("Invalid index: "+c.Params("index")))
	}
	if !confirmed(c) {
		return respondError(c, ConfirmationRequired("an album image"))
	}
	onEmpty := c.Query("on_empty")
	if onEmpty != "" && onEmpty != "delete" && onEmpty != "keep" {
		return respondError(c, ValidationError([]ErrorDetail{{Field: "on_empty", Rule: "oneof", Message: "on_empty must be one of: delete keep"}}))
	}

	ctx := c.UserContext()
	doc, err := h.albumDocument(ctx, id)
	if err != nil {
		return handleWriteError(c, "document", id, err)
	}
	remaining, err := RemoveImage(doc.Gallery, index)
	if err != nil {
		return respondError(c, ValidationError([]ErrorDetail{{Field: "index", Rule: "range", Message: err.Error()}}))
	}

	if len(remaining) == 0 {
		switch onEmpty {
		case "":
			return respondError(c, AlbumWouldBeEmpty(id))
		case "delete":
			if err := h.store.DeleteDocument(ctx, h.store.DB, id); err != nil {
				return handleWriteError(c, "document", id, err)
			}
			h.record(ctx, "delete", "document", id, map[string]any{"title": doc.Title, "reason": "album emptied"})
			return c.JSON(fiber.Map{"data": nil, "deleted": true, "message": "Album deleted"})
		}
	}

	if err := h.store.UpdateGallery(ctx, h.store.DB, id, remaining, Cover(remaining)); err != nil {
		return handleWriteError(c, "document", id, err)
	}
	updated, err := h.store.GetDocument(ctx, h.store.DB, id)
	if err != nil {
		return handleWriteError(c, "document", id, err)
	}

	h.record(ctx, "remove_image", "document", id, map[string]any{"index": index, "remaining": len(remaining)})
	return c.JSON(fiber.Map{"data": updated, "deleted": false, "message": "Image removed"})
}
