package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"healing-commerce/internal/dto"
	"healing-commerce/internal/service"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Webhook payloads are small; cap reads to keep a hostile sender from
// exhausting memory.
const maxWebhookPayloadSize = 65536

type PayOSHandler struct {
	confirmationService service.ConfirmationService
	checkoutService     service.CheckoutService
	appURL              string
	logger              *zap.Logger
}

func NewPayOSHandler(
	confirmationService service.ConfirmationService,
	checkoutService service.CheckoutService,
	appURL string,
	logger *zap.Logger,
) *PayOSHandler {
	return &PayOSHandler{
		confirmationService: confirmationService,
		checkoutService:     checkoutService,
		appURL:              appURL,
		logger:              logger,
	}
}

func (h *PayOSHandler) Webhook(c echo.Context) error {
	ctx := c.Request().Context()

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookPayloadSize+1))
	if err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	if len(body) > maxWebhookPayloadSize {
		return c.NoContent(http.StatusRequestEntityTooLarge)
	}

	err = h.confirmationService.HandleWebhook(ctx, body, "")
	switch {
	case errors.Is(err, service.ErrBadSignature), errors.Is(err, service.ErrMalformedPayload):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		// Processing failures are acknowledged so the provider does not pile
		// retries onto a broken dependency; reconciliation repairs the drift.
		h.logger.Error("payos webhook deferred", zap.Error(err))
	}
	return c.NoContent(http.StatusOK)
}

// Callback handles the purchaser landing back on the site after paying. It
// always redirects to the success landing; the payment outcome is verified
// against the processor, never taken from the redirect itself.
func (h *PayOSHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()

	raw := c.QueryParam("orderCode")
	if raw == "" {
		return c.Redirect(http.StatusFound, h.appURL+"/purchase/success")
	}
	orderCode, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return c.Redirect(http.StatusFound, h.appURL+"/purchase/success")
	}

	h.confirmationService.ConfirmCallback(ctx, orderCode)

	return c.Redirect(http.StatusFound,
		fmt.Sprintf("%s/purchase/success?orderCode=%d", h.appURL, orderCode))
}

// Reconcile is the pull path: confirm an order directly against the processor
// when webhook delivery failed or the account has no webhook at all.
func (h *PayOSHandler) Reconcile(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.ReconcileRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.OrderCode == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "missing orderCode")
	}

	resp, err := h.confirmationService.Reconcile(ctx, req.OrderCode)
	if err != nil {
		h.logger.Error("manual reconciliation failed",
			zap.Int64("order_code", req.OrderCode),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, &dto.ReconcileResponse{
			Success: false,
			Message: "failed to process order",
		})
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *PayOSHandler) Status(c echo.Context) error {
	ctx := c.Request().Context()

	ref := c.QueryParam("paymentLinkId")
	if ref == "" {
		ref = c.QueryParam("orderCode")
	}
	if ref == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "provide either paymentLinkId or orderCode query parameter")
	}

	status, err := h.confirmationService.Status(ctx, ref)
	if err != nil {
		h.logger.Error("status check failed", zap.String("ref", ref), zap.Error(err))
		return c.JSON(http.StatusBadGateway, &dto.StatusResponse{
			Success: false,
			Message: "failed to check payment status",
		})
	}

	message := fmt.Sprintf("Payment status: %s", status.Status)
	if status.Paid {
		message = "Payment is confirmed (PAID)"
	}
	return c.JSON(http.StatusOK, &dto.StatusResponse{
		Success: true,
		Status:  status.Status,
		IsPaid:  status.Paid,
		Message: message,
	})
}

func (h *PayOSHandler) Accounts(c echo.Context) error {
	return c.JSON(http.StatusOK, h.checkoutService.Accounts())
}

func (h *PayOSHandler) SetupWebhook(c echo.Context) error {
	ctx := c.Request().Context()

	var req dto.WebhookSetupRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	if err := h.checkoutService.SetupWebhook(ctx, c.QueryParam("accountId"), req.WebhookURL); err != nil {
		var validation *service.ValidationError
		if errors.As(err, &validation) {
			return echo.NewHTTPError(http.StatusBadRequest, validation.Message)
		}
		return err
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "webhook configured"})
}
