package handlers

import (
	"errors"
	"io"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/internal/service"
)

const maxUploadSize = 20 << 20

type MediaHandler struct {
	s service.MediaService
}

func NewMediaHandler(s service.MediaService) *MediaHandler {
	return &MediaHandler{s: s}
}

func (h *MediaHandler) Upload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "No file selected")
	}
	if fileHeader.Size > maxUploadSize {
		return errorJSON(c, fiber.StatusRequestEntityTooLarge, "File is too large")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Unable to read file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSize))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Unable to read file")
	}

	reference, err := h.s.Upload(c.Context(), GetUserID(c), data)
	if err != nil {
		if errors.Is(err, service.ErrUnsupportedMedia) {
			return errorJSON(c, fiber.StatusUnsupportedMediaType, err.Error())
		}
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to store file")
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"key":       strings.TrimPrefix(reference, models.MediaRefPrefix),
		"reference": reference,
	})
}
