package handler

import (
	"errors"
	"io"
	"net/http"

	"healing-commerce/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type StripeHandler struct {
	confirmationService service.ConfirmationService
	logger              *zap.Logger
}

func NewStripeHandler(confirmationService service.ConfirmationService, logger *zap.Logger) *StripeHandler {
	return &StripeHandler{
		confirmationService: confirmationService,
		logger:              logger,
	}
}

func (h *StripeHandler) Webhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookPayloadSize+1))
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	if len(body) > maxWebhookPayloadSize {
		return c.NoContent(http.StatusRequestEntityTooLarge)
	}

	signature := c.Request().Header.Get("Stripe-Signature")
	if signature == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing Stripe-Signature header")
	}

	err = h.confirmationService.HandleWebhook(ctx, body, signature)
	switch {
	case errors.Is(err, service.ErrBadSignature), errors.Is(err, service.ErrMalformedPayload):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		h.logger.Error("stripe webhook deferred", zap.Error(err))
	}

	return c.JSON(http.StatusOK, map[string]bool{"received": true})
}
