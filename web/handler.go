package web

import (
	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
)

const HandlersGroupName = "web.handlers"

type Handler interface {
	Handle(r fiber.Router)
}

// AsHandler registers the result of f in the handler group.
func AsHandler(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(Handler)),
		fx.ResultTags(`group:"`+HandlersGroupName+`"`),
	)
}

type setupHandlersIn struct {
	fx.In

	App      *fiber.App
	Handlers []Handler `group:"web.handlers"`
}

func SetupHandlers(in setupHandlersIn) {
	for _, h := range in.Handlers {
		h.Handle(in.App)
	}
}
