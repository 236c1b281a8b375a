package handler

import (
	"errors"
	"net/http"

	"healing-commerce/internal/dto"
	"healing-commerce/internal/middleware"
	"healing-commerce/internal/service"

	"github.com/labstack/echo/v4"
)

type CheckoutHandler struct {
	checkoutService service.CheckoutService
}

func NewCheckoutHandler(checkoutService service.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{checkoutService: checkoutService}
}

func (h *CheckoutHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body, expected JSON")
	}

	// A signed-in caller's identity wins over whatever the body claims.
	if uid, ok := c.Get(middleware.ContextUserID).(string); ok && uid != "" {
		req.UID = uid
	}
	if email, ok := c.Get(middleware.ContextUserEmail).(string); ok && email != "" && req.Email == "" {
		req.Email = email
	}

	resp, err := h.checkoutService.Checkout(ctx, &req)
	if err != nil {
		var validation *service.ValidationError
		if errors.As(err, &validation) {
			return echo.NewHTTPError(http.StatusBadRequest, validation.Message)
		}
		return err
	}

	return c.JSON(http.StatusOK, resp)
}
