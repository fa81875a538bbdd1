package web

import (
	"errors"

	"github.com/apex-wang/AUIKit/service/chat"
	"github.com/apex-wang/AUIKit/service/jukebox"
	"github.com/apex-wang/AUIKit/service/rooms"
	"github.com/apex-wang/AUIKit/service/songapi"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

type ErrorDetail struct {
	Code    string   `json:"code"`
	Message string   `json:"message"`
	Details []string `json:"details,omitempty"`
}

type Error struct {
	Error ErrorDetail `json:"error"`
}

type Response struct {
	Data any `json:"data,omitempty"`
	Meta any `json:"meta,omitempty"`
}

// ErrorHandler renders every handler error as an Error body.
func ErrorHandler(c fiber.Ctx, err error) error {
	status, detail := describe(err)
	return c.Status(status).JSON(Error{Error: detail})
}

func describe(err error) (int, ErrorDetail) {
	var (
		apiErr   *songapi.Error
		fiberErr *fiber.Error
		invalid  validator.ValidationErrors
	)
	switch {
	case errors.As(err, &invalid):
		details := make([]string, 0, len(invalid))
		for _, fe := range invalid {
			details = append(details, fe.Field()+": "+fe.Tag())
		}
		return fiber.StatusBadRequest, ErrorDetail{Code: "invalid_request", Message: "validation failed", Details: details}
	case errors.As(err, &apiErr):
		if apiErr.Code == songapi.NetworkErrorCode {
			return fiber.StatusBadGateway, ErrorDetail{Code: "backend_unreachable", Message: apiErr.Message}
		}
		return fiber.StatusBadGateway, ErrorDetail{Code: "backend_rejected", Message: apiErr.Error()}
	case errors.Is(err, jukebox.ErrUnknownPlayStatus),
		errors.Is(err, chat.ErrEmptyContent),
		errors.Is(err, rooms.ErrEmptyChannel):
		return fiber.StatusBadRequest, ErrorDetail{Code: "invalid_request", Message: err.Error()}
	case errors.Is(err, rooms.ErrNotJoined):
		return fiber.StatusNotFound, ErrorDetail{Code: "room_not_joined", Message: err.Error()}
	case errors.Is(err, jukebox.ErrClosed):
		return fiber.StatusConflict, ErrorDetail{Code: "room_closed", Message: err.Error()}
	case errors.Is(err, chat.ErrNoEmitter):
		return fiber.StatusServiceUnavailable, ErrorDetail{Code: "unavailable", Message: err.Error()}
	case errors.As(err, &fiberErr):
		return fiberErr.Code, ErrorDetail{Code: "http_error", Message: fiberErr.Message}
	}
	return fiber.StatusInternalServerError, ErrorDetail{Code: "internal", Message: err.Error()}
}
