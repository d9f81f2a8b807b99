package engine

import "github.com/gofiber/fiber/v2"

// RegisterRoutes mounts the public and admin routes. adminMW guards every
// /api/admin route and runs before any handler. The admin group is returned
// so callers can mount further admin routes.
func RegisterRoutes(app *fiber.App, h *Handler, adminMW ...fiber.Handler) fiber.Router {
	app.Get("/files/*", h.ServeFile)

	api := app.Group("/api")
	api.Get("/standards", h.ListStandards)
	api.Get("/standards/:id", h.StandardTree)
	api.Get("/tree", h.Tree)

	admin := api.Group("/admin", adminMW...)
	admin.Get("/tree", h.Tree)

	admin.Post("/indicators/:id/topics", h.CreateTopic)
	admin.Post("/indicators/:id/activities", h.CreateIndicatorActivity)
	admin.Post("/indicators/:id/documents", h.CreateIndicatorDocument)

	admin.Put("/topics/:id", h.UpdateTopic)
	admin.Delete("/topics/:id", h.DeleteTopic)
	admin.Post("/topics/:id/move", h.MoveTopic)
	admin.Post("/topics/:id/activities", h.CreateTopicActivity)

	admin.Put("/activities/:id", h.UpdateActivity)
	admin.Delete("/activities/:id", h.DeleteActivity)
	admin.Post("/activities/:id/move", h.MoveActivity)
	admin.Post("/activities/:id/documents", h.CreateActivityDocument)

	admin.Put("/documents/:id", h.UpdateDocument)
	admin.Delete("/documents/:id", h.DeleteDocument)
	admin.Post("/documents/:id/gallery", h.AddImages)
	admin.Delete("/documents/:id/gallery/:index", h.RemoveImage)

	return admin
}
