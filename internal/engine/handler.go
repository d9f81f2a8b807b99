package engine

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"qa-portal/internal/instrument"
	"qa-portal/internal/storage"
	"qa-portal/internal/store"
	"qa-portal/internal/tree"
)

// Handler serves the public hierarchy and the admin mutations.
type Handler struct {
	store    *store.Store
	loader   *tree.Loader
	uploader *Uploader
	files    storage.FileStorage
	guard    *ReorderGuard
	events   instrument.Recorder
	metrics  *instrument.Metrics
	log      *logrus.Entry
}

// Deps are the collaborators a Handler needs. Events and Metrics may be nil.
type Deps struct {
	Store    *store.Store
	Loader   *tree.Loader
	Uploader *Uploader
	Files    storage.FileStorage
	Events   instrument.Recorder
	Metrics  *instrument.Metrics
	Logger   *logrus.Logger
}

func NewHandler(d Deps) *Handler {
	if d.Events == nil {
		d.Events = instrument.Noop{}
	}
	if d.Logger == nil {
		d.Logger = logrus.StandardLogger()
	}
	return &Handler{
		store:    d.Store,
		loader:   d.Loader,
		uploader: d.Uploader,
		files:    d.Files,
		guard:    NewReorderGuard(),
		events:   d.Events,
		metrics:  d.Metrics,
		log:      d.Logger.WithField("component", "engine"),
	}
}

func paramID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, InvalidPayload("Invalid " + name + ": " + c.Params(name))
	}
	return id, nil
}

func confirmed(c *fiber.Ctx) bool {
	return c.QueryBool("confirm", false)
}

// snapshotResponse renders a loaded tree, mapping loader failures.
func (h *Handler) snapshotResponse(c *fiber.Ctx, snap *tree.Snapshot, err error, data func(*tree.Snapshot) any) error {
	if err != nil {
		if errors.Is(err, tree.ErrUnavailable) {
			return respondError(c, LoadFailed())
		}
		return err
	}
	return c.JSON(fiber.Map{
		"data": data(snap),
		"meta": fiber.Map{
			"shape":     snap.Shape,
			"stale":     snap.Stale,
			"loaded_at": snap.LoadedAt,
		},
	})
}
