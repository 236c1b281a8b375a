package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"healing-commerce/internal/dto"
	"healing-commerce/internal/model"
	"healing-commerce/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ConfirmationService decides whether to honor a claim that an order was paid.
// One instance serves one payment processor; the flow itself is generic:
// verify (push) or fetch (pull), dedup, mark the ledger paid, grant access.
type ConfirmationService interface {
	// HandleWebhook processes a pushed notification. A returned
	// ErrBadSignature or ErrMalformedPayload means the caller should answer
	// 4xx; any other error was already logged and the delivery should be
	// acknowledged so the provider does not start a retry storm.
	HandleWebhook(ctx context.Context, body []byte, signature string) error

	// Reconcile is the pull path: ask the processor directly whether the
	// order was paid and, if so, run the idempotent confirm step.
	Reconcile(ctx context.Context, orderCode int64) (*dto.ReconcileResponse, error)

	// ConfirmCallback runs when the purchaser lands back on the site. It
	// verifies via the status API (webhook delivery is not guaranteed) and
	// swallows every failure: the caller always redirects to the landing page.
	ConfirmCallback(ctx context.Context, orderCode int64)

	// Status surfaces the raw provider status for an order code or
	// payment-link id.
	Status(ctx context.Context, ref string) (*ProcessorStatus, error)
}

type confirmationServiceImpl struct {
	processor        Processor
	orderRepo        repository.OrderRepository
	webhookEventRepo repository.WebhookEventRepository
	grantService     GrantService
	logger           *zap.Logger
}

func NewConfirmationService(
	processor Processor,
	orderRepo repository.OrderRepository,
	webhookEventRepo repository.WebhookEventRepository,
	grantService GrantService,
	logger *zap.Logger,
) ConfirmationService {
	return &confirmationServiceImpl{
		processor:        processor,
		orderRepo:        orderRepo,
		webhookEventRepo: webhookEventRepo,
		grantService:     grantService,
		logger:           logger,
	}
}

func (s *confirmationServiceImpl) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	wh, err := s.processor.VerifyWebhook(body, signature)
	if err != nil {
		// Authenticity failures reject with no state change.
		return err
	}

	if wh.EventID != "" {
		seen, err := s.webhookEventRepo.Exists(ctx, wh.EventID)
		if err != nil {
			s.logger.Warn("webhook dedup lookup failed",
				zap.String("provider", s.processor.Name()),
				zap.String("event_id", wh.EventID),
				zap.Error(err))
		} else if seen {
			s.logger.Info("webhook event replayed, acknowledging",
				zap.String("provider", s.processor.Name()),
				zap.String("event_id", wh.EventID))
			return nil
		}
	}

	if wh.Paid {
		if err := s.confirmFromWebhook(ctx, wh); err != nil {
			s.logger.Error("webhook confirmation failed",
				zap.String("provider", s.processor.Name()),
				zap.String("event_id", wh.EventID),
				zap.Int64("order_code", wh.OrderCode),
				zap.Error(err))
			// Acknowledged anyway; the pull-reconciliation endpoint repairs
			// the drift.
		}
	}

	if wh.EventID != "" {
		err := s.webhookEventRepo.MarkProcessed(ctx, &model.WebhookEvent{
			EventID:   wh.EventID,
			Provider:  s.processor.Name(),
			EventType: wh.EventType,
			OrderCode: wh.OrderCode,
		})
		if err != nil {
			s.logger.Warn("record webhook event failed",
				zap.String("event_id", wh.EventID),
				zap.Error(err))
		}
	}
	return nil
}

func (s *confirmationServiceImpl) confirmFromWebhook(ctx context.Context, wh *ProcessorWebhook) error {
	if wh.OrderCode != 0 {
		_, _, err := s.confirmPaid(ctx, wh.OrderCode, false, wh.Grant)
		if err != nil && wh.Grant != nil {
			// The ledger row is gone and the processor could not replay its
			// record, but the notification itself carries the full purchase
			// context. Grant from that rather than lose a paid purchase.
			s.logger.Warn("order confirmation failed, granting from webhook context",
				zap.Int64("order_code", wh.OrderCode),
				zap.Error(err))
			return s.grantService.Grant(ctx, wh.Grant)
		}
		return err
	}
	if wh.Grant != nil {
		// No ledger correlation; the notification itself carries the grant.
		return s.grantService.Grant(ctx, wh.Grant)
	}
	return fmt.Errorf("webhook carried neither order code nor grant context")
}

func (s *confirmationServiceImpl) Reconcile(ctx context.Context, orderCode int64) (*dto.ReconcileResponse, error) {
	status, err := s.processor.FetchStatus(ctx, strconv.FormatInt(orderCode, 10))
	if err != nil {
		return nil, fmt.Errorf("check payment status: %w", err)
	}

	if !status.Paid {
		return &dto.ReconcileResponse{
			Success: false,
			Status:  status.Status,
			Message: "Payment not yet completed",
		}, nil
	}

	order, alreadyPaid, err := s.confirmPaid(ctx, orderCode, true, nil)
	if err != nil {
		return nil, err
	}

	if alreadyPaid {
		return &dto.ReconcileResponse{
			Success: true,
			Status:  "already_processed",
			Message: "Payment already processed",
			Product: order.Product,
		}, nil
	}
	return &dto.ReconcileResponse{
		Success: true,
		Status:  model.StatusPaid,
		Message: "Payment processed and access granted",
		Product: order.Product,
	}, nil
}

func (s *confirmationServiceImpl) ConfirmCallback(ctx context.Context, orderCode int64) {
	order, err := s.orderRepo.FindByCode(ctx, orderCode)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("callback order lookup failed",
			zap.Int64("order_code", orderCode),
			zap.Error(err))
		return
	}

	// Unless the ledger already says paid, verify with the processor before
	// granting anything. The redirect is not a trustworthy signal.
	if order == nil || !terminalStatus(order.Status) {
		status, err := s.processor.FetchStatus(ctx, strconv.FormatInt(orderCode, 10))
		if err != nil {
			s.logger.Warn("callback status check failed, deferring to webhook",
				zap.Int64("order_code", orderCode),
				zap.Error(err))
			return
		}
		if !status.Paid {
			s.logger.Info("callback payment not confirmed yet",
				zap.Int64("order_code", orderCode),
				zap.String("status", status.Status))
			return
		}
	}

	if _, _, err := s.confirmPaid(ctx, orderCode, false, nil); err != nil {
		s.logger.Warn("callback confirmation failed, deferring to webhook",
			zap.Int64("order_code", orderCode),
			zap.Error(err))
	}
}

func (s *confirmationServiceImpl) Status(ctx context.Context, ref string) (*ProcessorStatus, error) {
	return s.processor.FetchStatus(ctx, ref)
}

// confirmPaid is the shared idempotent confirm step: load (or repair) the
// order, move it to PAID, and grant access. An order already PAID still
// re-runs the grant to repair a prior partial failure, but skips the
// confirmation email. A non-nil supplement fills identity fields the ledger
// row is missing, such as the email the card processor collected at checkout.
func (s *confirmationServiceImpl) confirmPaid(ctx context.Context, orderCode int64, manual bool, supplement *GrantInput) (*model.Order, bool, error) {
	order, err := s.orderRepo.FindByCode(ctx, orderCode)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		order, err = s.repairOrder(ctx, orderCode)
	}
	if err != nil {
		return nil, false, fmt.Errorf("load order %d: %w", orderCode, err)
	}

	alreadyPaid := terminalStatus(order.Status)
	if !alreadyPaid {
		order, err = s.orderRepo.MarkPaid(ctx, orderCode, manual)
		if err != nil {
			return nil, false, fmt.Errorf("mark order paid: %w", err)
		}
	}

	input := &GrantInput{
		UID:       order.UID,
		Email:     order.Email,
		Product:   order.Product,
		CourseID:  order.CourseID,
		PackageID: order.PackageID,
		OrderCode: order.OrderCode,
		Amount:    order.Amount,
		Notify:    !alreadyPaid,
	}
	if supplement != nil {
		if input.UID == "" {
			input.UID = supplement.UID
		}
		if input.Email == "" {
			input.Email = supplement.Email
		}
	}

	err = s.grantService.Grant(ctx, input)
	if err != nil {
		// The order stays PAID so a retry of the grant step alone can finish
		// the job.
		return order, alreadyPaid, fmt.Errorf("grant access for order %d: %w", orderCode, err)
	}
	return order, alreadyPaid, nil
}

// repairOrder reconstructs a missing ledger entry from the processor's own
// record. The product is a keyword-matched guess from the free-text
// description, flagged as reconstructed.
func (s *confirmationServiceImpl) repairOrder(ctx context.Context, orderCode int64) (*model.Order, error) {
	status, err := s.processor.FetchStatus(ctx, strconv.FormatInt(orderCode, 10))
	if err != nil {
		return nil, fmt.Errorf("fetch processor record: %w", err)
	}

	product, courseID, packageID := InferProduct(status.Description)
	order := &model.Order{
		OrderCode:     orderCode,
		Product:       product,
		CourseID:      courseID,
		PackageID:     packageID,
		Amount:        status.Amount,
		Status:        model.StatusPending,
		PaymentLinkID: status.PaymentLinkID,
		Description:   status.Description,
		Reconstructed: true,
		CreatedAt:     time.Now(),
	}

	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("persist reconstructed order: %w", err)
	}

	s.logger.Warn("order reconstructed from processor data",
		zap.Int64("order_code", orderCode),
		zap.String("inferred_product", product),
		zap.String("description", status.Description))
	return order, nil
}

func terminalStatus(status string) bool {
	return status == model.StatusPaid || status == model.StatusCompleted
}

var (
	courseIDPattern  = regexp.MustCompile(`(?i)course[_\s]?([a-z0-9]+)`)
	packageIDPattern = regexp.MustCompile(`(?i)package[_\s]?([a-z0-9]+)`)
)

// InferProduct guesses the product from a payment description. This is an
// explicitly low-confidence fallback used only when the ledger entry was lost.
func InferProduct(description string) (product, courseID, packageID string) {
	lower := strings.ToLower(description)

	switch {
	case strings.Contains(lower, "course") || strings.Contains(lower, "khóa học"):
		product = model.ProductCourse
		if m := courseIDPattern.FindStringSubmatch(description); m != nil {
			courseID = strings.ToLower(m[1])
		}
	case strings.Contains(lower, "mentor") || strings.Contains(lower, "tư vấn"):
		product = model.ProductMentor
		if m := packageIDPattern.FindStringSubmatch(description); m != nil {
			packageID = strings.ToLower(m[1])
		}
	case strings.Contains(lower, "combo"):
		product = model.ProductCombo
	default:
		product = model.ProductMeals
	}
	return product, courseID, packageID
}
