package service

import (
	"context"
	"fmt"

	"healing-commerce/internal/client"
	"healing-commerce/internal/model"
	"healing-commerce/internal/repository"

	"go.uber.org/zap"
)

// GrantInput identifies who gets access to what after a confirmed payment.
type GrantInput struct {
	UID       string
	Email     string
	Product   string
	CourseID  string
	PackageID string
	OrderCode int64
	Amount    int64
	// Notify sends the purchase-confirmation email. Repair re-runs of an
	// already-paid order grant again but skip the email.
	Notify bool
}

// GrantService idempotently sets entitlement flags after a payment is
// confirmed. With a uid it writes the account's purchases map; with only an
// email it writes a pre-authorization record to be claimed at sign-in.
type GrantService interface {
	Grant(ctx context.Context, input *GrantInput) error
	ClaimPreauthorized(ctx context.Context, uid, email string) (int, error)
	Purchases(ctx context.Context, uid string) (map[string]bool, error)
}

type grantServiceImpl struct {
	entitlementRepo repository.EntitlementRepository
	mailClient      client.MailClient
	logger          *zap.Logger
}

func NewGrantService(
	entitlementRepo repository.EntitlementRepository,
	mailClient client.MailClient,
	logger *zap.Logger,
) GrantService {
	return &grantServiceImpl{
		entitlementRepo: entitlementRepo,
		mailClient:      mailClient,
		logger:          logger,
	}
}

func (s *grantServiceImpl) Grant(ctx context.Context, input *GrantInput) error {
	keys := EntitlementKeys(input.Product, input.CourseID, input.PackageID)
	if len(keys) == 0 {
		return fmt.Errorf("no entitlement key for product %q", input.Product)
	}

	switch {
	case input.UID != "":
		if err := s.entitlementRepo.Grant(ctx, input.UID, keys); err != nil {
			return fmt.Errorf("grant entitlements to account: %w", err)
		}
		s.logger.Info("access granted",
			zap.String("uid", input.UID),
			zap.Strings("keys", keys),
			zap.Int64("order_code", input.OrderCode))

	case input.Email != "":
		if err := s.entitlementRepo.GrantByEmail(ctx, input.Email, keys); err != nil {
			return fmt.Errorf("grant preauthorized entitlements: %w", err)
		}
		s.logger.Info("access preauthorized for email",
			zap.String("email", input.Email),
			zap.Strings("keys", keys),
			zap.Int64("order_code", input.OrderCode))

	default:
		// Nothing to correlate against. The payment is real but the grant is
		// lost until an operator reconciles it by hand.
		s.logger.Warn("confirmed order has neither uid nor email, skipping grant",
			zap.Int64("order_code", input.OrderCode),
			zap.String("product", input.Product))
		return nil
	}

	if input.Notify {
		s.notifyAsync(input)
	}
	return nil
}

func (s *grantServiceImpl) ClaimPreauthorized(ctx context.Context, uid, email string) (int, error) {
	claimed, err := s.entitlementRepo.ClaimPreauthorized(ctx, uid, email)
	if err != nil {
		return 0, fmt.Errorf("claim preauthorized entitlements: %w", err)
	}
	if claimed > 0 {
		s.logger.Info("preauthorized entitlements claimed",
			zap.String("uid", uid),
			zap.String("email", email),
			zap.Int("claimed", claimed))
	}
	return claimed, nil
}

func (s *grantServiceImpl) Purchases(ctx context.Context, uid string) (map[string]bool, error) {
	return s.entitlementRepo.PurchasesByUID(ctx, uid)
}

// notifyAsync dispatches the confirmation email off the request path. Failure
// is logged and swallowed; it never rolls back the grant.
func (s *grantServiceImpl) notifyAsync(input *GrantInput) {
	to := input.Email
	if to == "" && input.UID != "" {
		email, err := s.entitlementRepo.AccountEmail(context.Background(), input.UID)
		if err == nil {
			to = email
		}
	}
	if to == "" {
		return
	}

	go func() {
		err := s.mailClient.SendPurchaseConfirmation(&client.PurchaseMail{
			To:        to,
			Product:   input.Product,
			CourseID:  input.CourseID,
			PackageID: input.PackageID,
			OrderCode: input.OrderCode,
			Amount:    input.Amount,
		})
		if err != nil {
			s.logger.Warn("purchase confirmation email failed",
				zap.String("to", to),
				zap.Int64("order_code", input.OrderCode),
				zap.Error(err))
		}
	}()
}

// EntitlementKeys maps a product to the purchases-map keys it unlocks.
func EntitlementKeys(product, courseID, packageID string) []string {
	switch product {
	case model.ProductMeals:
		return []string{"meals"}
	case model.ProductCourse:
		if courseID == "" {
			return nil
		}
		return []string{"course_" + courseID}
	case model.ProductMentor:
		if packageID == "" {
			return nil
		}
		return []string{"mentor_" + packageID}
	case model.ProductCombo:
		// The combo bundles the meals library with the healing materials.
		return []string{"meals", "combo"}
	}
	return nil
}
