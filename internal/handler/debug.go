package handler

import (
	"net/http"

	"healing-commerce/internal/repository"

	"github.com/labstack/echo/v4"
)

// DebugHandler exposes operator-facing order stats for chasing down missed
// webhooks.
type DebugHandler struct {
	orderRepo  repository.OrderRepository
	webhookURL string
}

func NewDebugHandler(orderRepo repository.OrderRepository, webhookURL string) *DebugHandler {
	return &DebugHandler{
		orderRepo:  orderRepo,
		webhookURL: webhookURL,
	}
}

func (h *DebugHandler) Orders(c echo.Context) error {
	ctx := c.Request().Context()

	recent, err := h.orderRepo.Recent(ctx, 10)
	if err != nil {
		return err
	}
	counts, err := h.orderRepo.CountByStatus(ctx)
	if err != nil {
		return err
	}

	type orderSummary struct {
		OrderCode int64  `json:"orderCode"`
		Status    string `json:"status"`
		Product   string `json:"product"`
		Email     string `json:"email,omitempty"`
		CreatedAt string `json:"createdAt"`
		PaidAt    string `json:"paidAt,omitempty"`
	}

	summaries := make([]orderSummary, 0, len(recent))
	for _, order := range recent {
		summary := orderSummary{
			OrderCode: order.OrderCode,
			Status:    order.Status,
			Product:   order.Product,
			Email:     order.Email,
			CreatedAt: order.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
		if order.PaidAt != nil {
			summary.PaidAt = order.PaidAt.Format("2006-01-02T15:04:05Z07:00")
		}
		summaries = append(summaries, summary)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"webhookUrl":   h.webhookURL,
		"orderStats":   map[string]interface{}{"byStatus": counts},
		"recentOrders": summaries,
	})
}
