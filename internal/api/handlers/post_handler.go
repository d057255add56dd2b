package handlers

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/socialdash/internal/service"
	"github.com/maheshrc27/socialdash/internal/transfer"
)

type PostHandler struct {
	s service.ScheduledPostService
}

func NewPostHandler(s service.ScheduledPostService) *PostHandler {
	return &PostHandler{s: s}
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	var req transfer.CreatePostRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Unable to parse request")
	}

	post, err := h.s.Create(c.Context(), GetUserID(c), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidPost) {
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		}
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to schedule post")
	}

	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	posts, err := h.s.List(c.Context(), GetUserID(c))
	if err != nil {
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to list posts")
	}

	return c.Status(fiber.StatusOK).JSON(posts)
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	post, err := h.s.Get(c.Context(), GetUserID(c), c.Params("id"))
	if err != nil {
		if errors.Is(err, service.ErrPostNotFound) {
			return errorJSON(c, fiber.StatusNotFound, err.Error())
		}
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to fetch post")
	}

	return c.Status(fiber.StatusOK).JSON(post)
}

func (h *PostHandler) RemovePost(c *fiber.Ctx) error {
	err := h.s.Cancel(c.Context(), GetUserID(c), c.Query("id"))
	switch {
	case err == nil:
		return c.SendStatus(fiber.StatusOK)
	case errors.Is(err, service.ErrPostNotFound):
		return errorJSON(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrPostStarted):
		return errorJSON(c, fiber.StatusConflict, err.Error())
	default:
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to remove post")
	}
}
