package handlers

import (
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/maheshrc27/socialdash/internal/models"
	"github.com/maheshrc27/socialdash/internal/service"
	"github.com/maheshrc27/socialdash/internal/transfer"
)

type PublishHandler struct {
	ps  service.PlatformService
	pub service.PublishService
}

func NewPublishHandler(ps service.PlatformService, pub service.PublishService) *PublishHandler {
	return &PublishHandler{ps: ps, pub: pub}
}

// Publish sends content to the given accounts right away and reports one outcome per account.
func (h *PublishHandler) Publish(c *fiber.Ctx) error {
	var req transfer.PublishRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "Unable to parse request")
	}
	if len(req.AccountIDs) == 0 {
		return errorJSON(c, fiber.StatusBadRequest, "account_ids is required")
	}

	if err := service.CheckMediaOwner(GetUserID(c), req.Media); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	owned, err := h.ps.List(c.Context(), GetUserID(c))
	if err != nil {
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to fetch social accounts")
	}
	ownedIDs := make(map[string]bool, len(owned))
	for _, acc := range owned {
		ownedIDs[acc.ID] = true
	}
	for _, id := range req.AccountIDs {
		if !ownedIDs[id] {
			return errorJSON(c, fiber.StatusBadRequest, "unknown account "+id)
		}
	}

	result := h.pub.PublishToAccounts(c.Context(), req.AccountIDs, models.Content{
		Text:  req.Text,
		Media: req.Media,
		Link:  req.Link,
		Title: req.Title,
	})

	return c.Status(fiber.StatusOK).JSON(result)
}
