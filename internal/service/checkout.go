package service

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"healing-commerce/internal/client"
	"healing-commerce/internal/config"
	"healing-commerce/internal/dto"
	"healing-commerce/internal/model"
	"healing-commerce/internal/ordercode"
	"healing-commerce/internal/repository"

	"go.uber.org/zap"
)

// ValidationError names the request field a checkout was rejected for.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// CheckoutService turns a purchase intent into a redirectable payment handle
// and records the intent in the order ledger.
type CheckoutService interface {
	Checkout(ctx context.Context, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
	// Accounts lists the configured QR-payment accounts (ids and display
	// names only, never credentials).
	Accounts() []dto.PayOSAccountInfo
	// SetupWebhook registers the push-notification URL with the QR provider.
	SetupWebhook(ctx context.Context, accountID, webhookURL string) error
}

type checkoutServiceImpl struct {
	stripeClient client.StripeClient
	payosClients map[string]client.PayOSClient
	orderRepo    repository.OrderRepository
	appURL       string
	bank         config.BankTransfer
	logger       *zap.Logger
}

func NewCheckoutService(
	stripeClient client.StripeClient,
	payosClients map[string]client.PayOSClient,
	orderRepo repository.OrderRepository,
	appURL string,
	bank config.BankTransfer,
	logger *zap.Logger,
) CheckoutService {
	return &checkoutServiceImpl{
		stripeClient: stripeClient,
		payosClients: payosClients,
		orderRepo:    orderRepo,
		appURL:       appURL,
		bank:         bank,
		logger:       logger,
	}
}

func (s *checkoutServiceImpl) Checkout(ctx context.Context, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	if err := validateCheckout(req); err != nil {
		return nil, err
	}

	code := ordercode.Generate()
	description, itemName := describeProduct(req.Product, req.CourseID, req.PackageID)

	order := &model.Order{
		OrderCode: code,
		UID:       req.UID,
		Email:     req.Email,
		Product:   req.Product,
		Amount:    req.Amount,
		Status:    model.StatusPending,
		CreatedAt: time.Now(),
	}
	// Product-specific ids only make sense for their product.
	if req.Product == model.ProductCourse {
		order.CourseID = req.CourseID
	}
	if req.Product == model.ProductMentor {
		order.PackageID = req.PackageID
	}

	switch req.Method {
	case dto.MethodStripe:
		return s.checkoutStripe(ctx, req, order, itemName)
	case dto.MethodPayOS:
		return s.checkoutPayOS(ctx, req, order, description, itemName)
	case dto.MethodBank:
		return s.checkoutBank(ctx, req, order, description)
	default:
		return nil, &ValidationError{Field: "method", Message: fmt.Sprintf("invalid payment method: %s", req.Method)}
	}
}

func (s *checkoutServiceImpl) checkoutStripe(ctx context.Context, req *dto.CheckoutRequest, order *model.Order, itemName string) (*dto.CheckoutResponse, error) {
	s.persistOrder(ctx, order)

	successURL := fmt.Sprintf("%s/purchase/success?product=%s", s.appURL, req.Product)
	cancelURL := s.appURL + "/meals?canceled=1"
	switch req.Product {
	case model.ProductCourse:
		successURL += "&courseId=" + url.QueryEscape(req.CourseID)
		cancelURL = fmt.Sprintf("%s/courses/%s?canceled=1", s.appURL, url.PathEscape(req.CourseID))
	case model.ProductMentor:
		cancelURL = s.appURL + "/mentor?canceled=1"
	}

	metadata := map[string]string{
		"product":    req.Product,
		"order_code": fmt.Sprintf("%d", order.OrderCode),
	}
	if req.CourseID != "" {
		metadata["courseId"] = req.CourseID
	}
	if req.PackageID != "" {
		metadata["packageId"] = req.PackageID
	}

	sessionURL, err := s.stripeClient.CreateCheckoutSession(ctx, &client.CheckoutSessionRequest{
		UID:        req.UID,
		Email:      req.Email,
		ItemName:   itemName,
		Amount:     req.Amount,
		Metadata:   metadata,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create stripe checkout session: %w", err)
	}

	return &dto.CheckoutResponse{URL: sessionURL, OrderCode: order.OrderCode}, nil
}

func (s *checkoutServiceImpl) checkoutPayOS(ctx context.Context, req *dto.CheckoutRequest, order *model.Order, description, itemName string) (*dto.CheckoutResponse, error) {
	accountID := req.BankAccountID
	if accountID == "" {
		accountID = config.DefaultPayOSAccountID
	}
	payosClient, ok := s.payosClients[accountID]
	if !ok {
		return nil, &ValidationError{Field: "bankAccountId", Message: fmt.Sprintf("invalid bank account selected: %s", accountID)}
	}

	order.BankAccountID = accountID
	order.Description = description
	s.persistOrder(ctx, order)

	link, err := payosClient.CreatePaymentLink(ctx, &client.PayOSPaymentRequest{
		OrderCode:   order.OrderCode,
		Amount:      req.Amount,
		Description: description,
		Items: []client.PayOSItem{
			{Name: itemName, Quantity: 1, Price: req.Amount},
		},
		CancelURL: fmt.Sprintf("%s/purchase/cancel?product=%s", s.appURL, req.Product),
		ReturnURL: fmt.Sprintf("%s/api/payos/callback?orderCode=%d", s.appURL, order.OrderCode),
	})
	if err != nil {
		return nil, fmt.Errorf("create payos payment link: %w", err)
	}

	if link.PaymentLinkID != "" {
		if err := s.orderRepo.UpdatePaymentLink(ctx, order.OrderCode, link.PaymentLinkID); err != nil {
			s.logger.Warn("store payment link id failed",
				zap.Int64("order_code", order.OrderCode),
				zap.Error(err))
		}
	}

	return &dto.CheckoutResponse{
		URL:           link.CheckoutURL,
		OrderCode:     order.OrderCode,
		QRCode:        link.QRCode,
		PaymentLinkID: link.PaymentLinkID,
	}, nil
}

func (s *checkoutServiceImpl) checkoutBank(ctx context.Context, req *dto.CheckoutRequest, order *model.Order, description string) (*dto.CheckoutResponse, error) {
	order.Description = description
	s.persistOrder(ctx, order)

	memo := fmt.Sprintf("%d %s", order.OrderCode, req.Email)
	if req.Email == "" {
		memo = fmt.Sprintf("%d your-account-email", order.OrderCode)
	}

	// No processor call. Payment is reconciled by an operator via the manual
	// reconciliation endpoint once the transfer shows up.
	return &dto.CheckoutResponse{
		URL:       s.bank.QRImageURL,
		OrderCode: order.OrderCode,
		Memo:      memo,
	}, nil
}

// persistOrder writes the ledger entry best-effort. The processor-side payment
// link is the source of truth; a lost ledger write is repaired later through
// the order-reconstruction fallback, so checkout proceeds regardless.
func (s *checkoutServiceImpl) persistOrder(ctx context.Context, order *model.Order) {
	if err := s.orderRepo.Create(ctx, order); err != nil {
		s.logger.Error("store order failed, continuing checkout",
			zap.Int64("order_code", order.OrderCode),
			zap.String("product", order.Product),
			zap.Error(err))
	}
}

func (s *checkoutServiceImpl) Accounts() []dto.PayOSAccountInfo {
	accounts := make([]dto.PayOSAccountInfo, 0, len(s.payosClients))
	for id, c := range s.payosClients {
		accounts = append(accounts, dto.PayOSAccountInfo{ID: id, Name: c.AccountName()})
	}
	return accounts
}

func (s *checkoutServiceImpl) SetupWebhook(ctx context.Context, accountID, webhookURL string) error {
	if accountID == "" {
		accountID = config.DefaultPayOSAccountID
	}
	payosClient, ok := s.payosClients[accountID]
	if !ok {
		return &ValidationError{Field: "bankAccountId", Message: fmt.Sprintf("invalid bank account selected: %s", accountID)}
	}
	if webhookURL == "" {
		webhookURL = s.appURL + "/api/payos/webhook"
	}

	if err := payosClient.ConfirmWebhook(ctx, webhookURL); err != nil {
		return fmt.Errorf("confirm webhook url: %w", err)
	}
	return nil
}

func validateCheckout(req *dto.CheckoutRequest) error {
	if req.Product == "" {
		return &ValidationError{Field: "product", Message: "missing product type"}
	}
	if !model.ValidProduct(req.Product) {
		return &ValidationError{Field: "product", Message: fmt.Sprintf("invalid product type: %s", req.Product)}
	}
	if req.Product == model.ProductCourse && req.CourseID == "" {
		return &ValidationError{Field: "courseId", Message: "missing courseId for course purchase"}
	}
	if req.Product == model.ProductMentor && req.PackageID == "" {
		return &ValidationError{Field: "packageId", Message: "missing packageId for mentor purchase"}
	}
	if req.Amount <= 0 {
		return &ValidationError{Field: "amount", Message: fmt.Sprintf("invalid amount: %d, amount must be greater than 0", req.Amount)}
	}
	return nil
}

func describeProduct(product, courseID, packageID string) (description, itemName string) {
	switch product {
	case model.ProductMeals:
		return "All Meals Access", "All Meals Access"
	case model.ProductCourse:
		return "Course Access: " + courseID, "Course: " + courseID
	case model.ProductMentor:
		return "Mentor Package: " + packageID, "Mentor Package: " + packageID
	case model.ProductCombo:
		return "Complete Healing Combo", "Combo: All Meals + Healing Materials"
	}
	return "Product Purchase", "Product"
}
