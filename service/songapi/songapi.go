// Package songapi is the client for the karaoke song backend. Every mutation
// of a room's song list goes through it; the resulting list comes back over
// the relay as the room's "song" attribute.
package songapi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/apex-wang/AUIKit/roomctx"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/client"
	"go.uber.org/zap"
)

// NetworkErrorCode is reported when the backend could not be reached.
const NetworkErrorCode = -1

var ErrNoBaseURL = errors.New("songapi: base url is required")

// Error is a failed backend call: either a non-200 status, where Code is the
// status, or a 200 response whose body code is not zero.
type Error struct {
	HTTPStatus int
	Code       int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("songapi: code %d: %s", e.Code, e.Message)
}

type Config struct {
	BaseURL string        `mapstructure:"base_url" default:"http://127.0.0.1:8080"`
	Timeout time.Duration `mapstructure:"timeout" default:"10s"`
}

type Owner = roomctx.UserThumbnail

type AddRequest struct {
	RoomID      string `json:"roomId"`
	UserID      string `json:"userId"`
	SongCode    string `json:"songCode"`
	Name        string `json:"name"`
	Singer      string `json:"singer"`
	Poster      string `json:"poster"`
	ReleaseTime string `json:"releaseTime"`
	Duration    int64  `json:"duration"`
	MusicURL    string `json:"musicUrl"`
	LrcURL      string `json:"lrcUrl"`
	Owner       Owner  `json:"owner"`
}

// SongRequest addresses one song of a room on behalf of a user.
type SongRequest struct {
	RoomID   string `json:"roomId"`
	SongCode string `json:"songCode"`
	UserID   string `json:"userId"`
}

type response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

type Client struct {
	http *client.Client
	base string
	log  *zap.Logger
}

func New(cfg Config, log *zap.Logger) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, ErrNoBaseURL
	}
	if log == nil {
		log = zap.NewNop()
	}
	cc := client.New()
	if cfg.Timeout > 0 {
		cc.SetTimeout(cfg.Timeout)
	}
	return &Client{http: cc, base: base, log: log.Named("songapi")}, nil
}

func (c *Client) Add(ctx context.Context, req AddRequest) error {
	return c.call(ctx, "add", req)
}

func (c *Client) Remove(ctx context.Context, req SongRequest) error {
	return c.call(ctx, "remove", req)
}

func (c *Client) Pin(ctx context.Context, req SongRequest) error {
	return c.call(ctx, "pin", req)
}

func (c *Client) Play(ctx context.Context, req SongRequest) error {
	return c.call(ctx, "play", req)
}

func (c *Client) Stop(ctx context.Context, req SongRequest) error {
	return c.call(ctx, "stop", req)
}

func (c *Client) call(ctx context.Context, op string, body any) error {
	url := c.base + "/v1/song/" + op

	resp, err := c.http.Post(url, client.Config{Ctx: ctx, Body: body})
	if err != nil {
		c.log.Warn("song request failed", zap.String("op", op), zap.Error(err))
		return &Error{Code: NetworkErrorCode, Message: err.Error()}
	}
	defer resp.Close()

	if status := resp.StatusCode(); status != fiber.StatusOK {
		return &Error{HTTPStatus: status, Code: status, Message: resp.Status()}
	}

	var out response
	if err := resp.JSON(&out); err != nil {
		return &Error{HTTPStatus: fiber.StatusOK, Code: NetworkErrorCode, Message: fmt.Sprintf("decode response: %v", err)}
	}
	if out.Code != 0 {
		return &Error{HTTPStatus: fiber.StatusOK, Code: out.Code, Message: out.Message}
	}
	c.log.Debug("song request ok", zap.String("op", op))
	return nil
}
