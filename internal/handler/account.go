package handler

import (
	"net/http"

	"healing-commerce/internal/dto"
	"healing-commerce/internal/middleware"
	"healing-commerce/internal/service"

	"github.com/labstack/echo/v4"
)

type AccountHandler struct {
	grantService service.GrantService
}

func NewAccountHandler(grantService service.GrantService) *AccountHandler {
	return &AccountHandler{grantService: grantService}
}

// Entitlements returns the caller's purchases map. The storefront polls this
// after a payment to flip access on.
func (h *AccountHandler) Entitlements(c echo.Context) error {
	ctx := c.Request().Context()
	uid, _ := c.Get(middleware.ContextUserID).(string)

	purchases, err := h.grantService.Purchases(ctx, uid)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &dto.EntitlementsResponse{Purchases: purchases})
}

// Claim merges entitlements preauthorized for the caller's email into their
// account. Called once after sign-in.
func (h *AccountHandler) Claim(c echo.Context) error {
	ctx := c.Request().Context()
	uid, _ := c.Get(middleware.ContextUserID).(string)
	email, _ := c.Get(middleware.ContextUserEmail).(string)

	if email == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "token carries no verified email")
	}

	claimed, err := h.grantService.ClaimPreauthorized(ctx, uid, email)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, &dto.ClaimResponse{Claimed: claimed})
}
