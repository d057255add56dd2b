package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/socialdash/configs"
	"github.com/maheshrc27/socialdash/internal/repository"
	"github.com/maheshrc27/socialdash/internal/service"
	"github.com/maheshrc27/socialdash/pkg/utils"
)

const stateTokenTTL = 10 * time.Minute

type PlatformHandler struct {
	ps  service.PlatformService
	cfg config.Config
}

func NewPlatformHandler(ps service.PlatformService, cfg config.Config) *PlatformHandler {
	return &PlatformHandler{
		ps:  ps,
		cfg: cfg,
	}
}

// ConnectURL returns the provider authorization URL for the signed in user.
func (h *PlatformHandler) ConnectURL(c *fiber.Ctx) error {
	platform := c.Params("platform")

	state, err := utils.GenerateToken(h.cfg.SecretKey, GetUserID(c), platform, stateTokenTTL)
	if err != nil {
		return errorJSON(c, fiber.StatusInternalServerError, "Unable to start authorization")
	}

	authURL, err := h.ps.GetAuthURL(c.Context(), platform, state)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	return c.JSON(fiber.Map{"url": authURL})
}

func (h *PlatformHandler) AddSocialAccount(c *fiber.Ctx) error {
	platform := c.Params("platform")

	claims, err := utils.ValidateToken(h.cfg.SecretKey, c.Query("state"))
	if err != nil || claims.Platform != platform {
		return errorJSON(c, fiber.StatusBadRequest, "Unable to validate user")
	}

	authURL, err := h.ps.GetAuthURL(c.Context(), platform, c.Query("state"))
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}
	return c.Redirect(authURL)
}

func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	code := c.Query("code")
	state := c.Query("state")
	platform := c.Params("platform")

	claims, err := utils.ValidateToken(h.cfg.SecretKey, state)
	if err != nil || claims.Platform != platform {
		return errorJSON(c, fiber.StatusBadRequest, "Unable to validate user")
	}

	if _, err := h.ps.Callback(c.Context(), platform, code, claims.UserID); err != nil {
		slog.Info("account linking failed", "platform", platform, "error", err)
		if errors.Is(err, service.ErrUnknownPlatform) {
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		}
		return errorJSON(c, fiber.StatusBadRequest, "something went wrong")
	}

	redirectURL := fmt.Sprintf("%s/dashboard/accounts", h.cfg.FrontendURL)
	return c.Redirect(redirectURL, fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) ListSocialAccounts(c *fiber.Ctx) error {
	accountList, err := h.ps.List(c.Context(), GetUserID(c))
	if err != nil {
		slog.Info(err.Error())
		return errorJSON(c, fiber.StatusInternalServerError, "Failed to fetch social accounts")
	}

	return c.Status(fiber.StatusOK).JSON(accountList)
}

func (h *PlatformHandler) DeleteSocialAccount(c *fiber.Ctx) error {
	err := h.ps.Delete(c.Context(), GetUserID(c), c.Query("id"))
	if err != nil {
		return accountError(c, err, "Unable to delete social account")
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *PlatformHandler) RevokeSocialAccount(c *fiber.Ctx) error {
	err := h.ps.Revoke(c.Context(), GetUserID(c), c.Query("id"))
	if err != nil {
		return accountError(c, err, "Unable to revoke social account")
	}

	return c.SendStatus(fiber.StatusOK)
}

func accountError(c *fiber.Ctx, err error, fallback string) error {
	if errors.Is(err, service.ErrAccountNotOwned) || errors.Is(err, repository.ErrNotFound) {
		return errorJSON(c, fiber.StatusNotFound, service.ErrAccountNotOwned.Error())
	}
	slog.Info(err.Error())
	return errorJSON(c, fiber.StatusInternalServerError, fallback)
}
