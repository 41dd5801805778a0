package httpapi

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"

	"kidscanvas/internal/access"
	"kidscanvas/internal/eventstore"
	"kidscanvas/internal/store"
	"kidscanvas/internal/wsfanout"
)

// Deps bundles the wiring Mount needs. ServiceKey gates the internal
// event-relay route alongside Signer, which also authenticates the
// WebSocket upgrade.
type Deps struct {
	Store      *store.Store
	Events     eventstore.Store
	Signer     *access.Signer
	ServiceKey string
	Logger     *slog.Logger
}

// Mount wires the core's minimal HTTP surface onto app: the internal
// event-relay endpoint the realtime gateway polls, and the room WebSocket
// stream. Everything else (room/object/stroke CRUD) is a library-level
// operation, not a wire endpoint, per this core's scope.
func Mount(app *fiber.App, deps Deps) {
	eventsHandler := NewEventsHandler(deps.Events, deps.Logger)
	app.Get("/internal/events/next",
		RequireServiceKeyOrRole(deps.ServiceKey, deps.Signer, access.RoleModerator, access.RoleParent),
		eventsHandler.NextEvent)

	ws := wsfanout.NewHandler(deps.Store, deps.Events, deps.Signer, deps.Logger)
	app.Use("/ws/rooms/:room_id", ws.Upgrade)
	app.Get("/ws/rooms/:room_id", ws.Serve())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
}
