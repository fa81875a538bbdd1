package web

import (
	"github.com/apex-wang/AUIKit/roomctx"
	"github.com/apex-wang/AUIKit/service/jukebox"
	"github.com/apex-wang/AUIKit/service/rooms"
	"github.com/gofiber/fiber/v3"
)

// RoomsHandler is the HTTP surface over joined rooms. Mutations join the room
// on first use; reads of a room that was never joined answer 404.
type RoomsHandler struct {
	rooms *rooms.Manager
}

func NewRoomsHandler(rooms *rooms.Manager) *RoomsHandler {
	return &RoomsHandler{rooms: rooms}
}

type joinRequest struct {
	RoomName string                `json:"roomName"`
	Owner    roomctx.UserThumbnail `json:"owner"`
	Create   bool                  `json:"create"`
}

type accepted struct {
	Channel  string `json:"channel"`
	SongCode string `json:"songCode,omitempty"`
	Status   string `json:"status"`
}

type messageRequest struct {
	Content string `json:"content" validate:"required"`
}

func (h *RoomsHandler) Handle(r fiber.Router) {
	r.Post("/rooms/:room", h.join)
	r.Delete("/rooms/:room", h.leave)

	g := r.Group("/rooms/:room")

	g.Get("/songs", h.songs)
	g.Post("/songs", h.chooseSong)
	g.Delete("/songs/:code", h.removeSong)
	g.Post("/songs/:code/pin", h.pinSong)
	g.Post("/songs/:code/play", h.playStatus(jukebox.PlayStatusPlaying))
	g.Post("/songs/:code/stop", h.playStatus(jukebox.PlayStatusIdle))

	g.Get("/seats", h.seats)
	g.Get("/members", h.members)
	g.Get("/messages", h.messages)
	g.Post("/messages", h.sendMessage)
}

func (h *RoomsHandler) room(c fiber.Ctx) (*rooms.Room, error) {
	return h.rooms.Join(c.Params("room"))
}

func (h *RoomsHandler) joined(c fiber.Ctx) (*rooms.Room, error) {
	return h.rooms.Lookup(c.Params("room"))
}

func (h *RoomsHandler) accept(c fiber.Ctx, room *rooms.Room) error {
	return c.Status(fiber.StatusAccepted).JSON(Response{Data: accepted{
		Channel:  room.Channel,
		SongCode: c.Params("code"),
		Status:   "accepted",
	}})
}

// join takes an optional body. create makes the local user the owner.
func (h *RoomsHandler) join(c fiber.Ctx) error {
	var req joinRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().Body(&req); err != nil {
			return err
		}
	}

	var (
		room *rooms.Room
		err  error
	)
	if req.Create {
		room, err = h.rooms.Create(c.Params("room"), req.RoomName)
	} else {
		room, err = h.rooms.JoinRoom(roomctx.RoomInfo{RoomID: c.Params("room"), RoomName: req.RoomName, Owner: req.Owner})
	}
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(Response{Data: fiber.Map{"channel": room.Channel}})
}

func (h *RoomsHandler) leave(c fiber.Ctx) error {
	if err := h.rooms.Leave(c.Context(), c.Params("room")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *RoomsHandler) songs(c fiber.Ctx) error {
	room, err := h.joined(c)
	if err != nil {
		return err
	}
	return c.JSON(Response{Data: room.Jukebox.ChooseSongs()})
}

func (h *RoomsHandler) chooseSong(c fiber.Ctx) error {
	var music jukebox.Music
	if err := c.Bind().Body(&music); err != nil {
		return err
	}
	room, err := h.room(c)
	if err != nil {
		return err
	}
	chosen, err := room.Jukebox.ChooseSong(c.Context(), music)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusAccepted).JSON(Response{Data: chosen})
}

func (h *RoomsHandler) removeSong(c fiber.Ctx) error {
	room, err := h.room(c)
	if err != nil {
		return err
	}
	if err := room.Jukebox.RemoveSong(c.Context(), c.Params("code")); err != nil {
		return err
	}
	return h.accept(c, room)
}

func (h *RoomsHandler) pinSong(c fiber.Ctx) error {
	room, err := h.room(c)
	if err != nil {
		return err
	}
	if err := room.Jukebox.PinSong(c.Context(), c.Params("code")); err != nil {
		return err
	}
	return h.accept(c, room)
}

func (h *RoomsHandler) playStatus(status jukebox.PlayStatus) fiber.Handler {
	return func(c fiber.Ctx) error {
		room, err := h.room(c)
		if err != nil {
			return err
		}
		if err := room.Jukebox.UpdatePlayStatus(c.Context(), c.Params("code"), status); err != nil {
			return err
		}
		return h.accept(c, room)
	}
}

func (h *RoomsHandler) seats(c fiber.Ctx) error {
	room, err := h.joined(c)
	if err != nil {
		return err
	}
	return c.JSON(Response{Data: room.MicSeat.Seats()})
}

func (h *RoomsHandler) members(c fiber.Ctx) error {
	room, err := h.joined(c)
	if err != nil {
		return err
	}
	return c.JSON(Response{
		Data: room.Member.Members(),
		Meta: fiber.Map{"connection": room.Member.ConnectionState().String()},
	})
}

func (h *RoomsHandler) messages(c fiber.Ctx) error {
	room, err := h.joined(c)
	if err != nil {
		return err
	}
	return c.JSON(Response{Data: room.Chat.Messages()})
}

func (h *RoomsHandler) sendMessage(c fiber.Ctx) error {
	var req messageRequest
	if err := c.Bind().Body(&req); err != nil {
		return err
	}
	room, err := h.room(c)
	if err != nil {
		return err
	}
	if err := room.Chat.Send(c.Context(), req.Content); err != nil {
		return err
	}
	return h.accept(c, room)
}
