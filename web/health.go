package web

import (
	"github.com/apex-wang/AUIKit/build"
	"github.com/apex-wang/AUIKit/rtm"
	"github.com/apex-wang/AUIKit/service/rooms"
	"github.com/gofiber/fiber/v3"
)

type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

func (h *HealthHandler) Handle(r fiber.Router) {
	r.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "build": build.Current().String()})
	})
}

// DebugHandler exposes relay internals.
type DebugHandler struct {
	proxy *rtm.Proxy
	rooms *rooms.Manager
}

func NewDebugHandler(proxy *rtm.Proxy, rooms *rooms.Manager) *DebugHandler {
	return &DebugHandler{proxy: proxy, rooms: rooms}
}

type DebugStats struct {
	Subscriptions rtm.Stats `json:"subscriptions"`
	Rooms         []string  `json:"rooms"`
}

func (h *DebugHandler) Handle(r fiber.Router) {
	r.Get("/debug/rtm", func(c fiber.Ctx) error {
		return c.JSON(Response{Data: DebugStats{
			Subscriptions: h.proxy.Stats(),
			Rooms:         h.rooms.Channels(),
		}})
	})
	r.Delete("/rooms/:room/cache", func(c fiber.Ctx) error {
		if err := h.proxy.CleanCache(c.Context(), c.Params("room")); err != nil {
			return err
		}
		return c.SendStatus(fiber.StatusNoContent)
	})
}
