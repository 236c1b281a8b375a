package service

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"healing-commerce/internal/client"
	"healing-commerce/internal/model"
	"healing-commerce/internal/repository"

	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Order{},
		&model.UserAccount{},
		&model.AccountEntitlement{},
		&model.PreauthorizedEntitlement{},
		&model.WebhookEvent{},
	))
	return db
}

// fakeProcessor scripts the provider side of the confirmation flow.
type fakeProcessor struct {
	name       string
	webhook    *ProcessorWebhook
	webhookErr error

	statuses  map[string]*ProcessorStatus
	statusErr error

	mu          sync.Mutex
	fetchedRefs []string
}

func (p *fakeProcessor) Name() string {
	if p.name == "" {
		return "fake"
	}
	return p.name
}

func (p *fakeProcessor) VerifyWebhook(_ []byte, _ string) (*ProcessorWebhook, error) {
	if p.webhookErr != nil {
		return nil, p.webhookErr
	}
	return p.webhook, nil
}

func (p *fakeProcessor) FetchStatus(_ context.Context, ref string) (*ProcessorStatus, error) {
	p.mu.Lock()
	p.fetchedRefs = append(p.fetchedRefs, ref)
	p.mu.Unlock()

	if p.statusErr != nil {
		return nil, p.statusErr
	}
	status, ok := p.statuses[ref]
	if !ok {
		return nil, fmt.Errorf("no payment request for %s", ref)
	}
	return status, nil
}

// fakeMailClient records deliveries; sends happen on a goroutine, so reads go
// through the mutex.
type fakeMailClient struct {
	mu   sync.Mutex
	sent []*client.PurchaseMail
}

func (c *fakeMailClient) SendPurchaseConfirmation(m *client.PurchaseMail) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, m)
	return nil
}

func (c *fakeMailClient) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeMailClient) lastSent() *client.PurchaseMail {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return nil
	}
	return c.sent[len(c.sent)-1]
}

type fakeStripeClient struct {
	url     string
	err     error
	lastReq *client.CheckoutSessionRequest

	event    *stripe.Event
	eventErr error
}

func (c *fakeStripeClient) CreateCheckoutSession(_ context.Context, req *client.CheckoutSessionRequest) (string, error) {
	c.lastReq = req
	if c.err != nil {
		return "", c.err
	}
	return c.url, nil
}

func (c *fakeStripeClient) ConstructWebhookEvent(_ []byte, _ string) (*stripe.Event, error) {
	if c.eventErr != nil {
		return nil, c.eventErr
	}
	if c.event == nil {
		return nil, fmt.Errorf("not scripted")
	}
	return c.event, nil
}

type fakePayOSClient struct {
	id      string
	name    string
	link    *client.PayOSPaymentLink
	linkErr error

	lastReq        *client.PayOSPaymentRequest
	confirmedURL   string
	confirmWebhook error

	webhookData *client.PayOSWebhookData
	webhookErr  error
	paymentInfo *client.PayOSPaymentInfo
	infoErr     error
}

func (c *fakePayOSClient) AccountID() string   { return c.id }
func (c *fakePayOSClient) AccountName() string { return c.name }

func (c *fakePayOSClient) CreatePaymentLink(_ context.Context, req *client.PayOSPaymentRequest) (*client.PayOSPaymentLink, error) {
	c.lastReq = req
	if c.linkErr != nil {
		return nil, c.linkErr
	}
	return c.link, nil
}

func (c *fakePayOSClient) GetPaymentInfo(_ context.Context, _ string) (*client.PayOSPaymentInfo, error) {
	if c.infoErr != nil {
		return nil, c.infoErr
	}
	if c.paymentInfo == nil {
		return nil, fmt.Errorf("not scripted")
	}
	return c.paymentInfo, nil
}

func (c *fakePayOSClient) ConfirmWebhook(_ context.Context, webhookURL string) error {
	c.confirmedURL = webhookURL
	return c.confirmWebhook
}

func (c *fakePayOSClient) VerifyWebhookBody(_ []byte) (*client.PayOSWebhookData, error) {
	if c.webhookErr != nil {
		return nil, c.webhookErr
	}
	if c.webhookData == nil {
		return nil, fmt.Errorf("not scripted")
	}
	return c.webhookData, nil
}

type testFixture struct {
	db              *gorm.DB
	orderRepo       repository.OrderRepository
	entitlementRepo repository.EntitlementRepository
	webhookRepo     repository.WebhookEventRepository
	mail            *fakeMailClient
	grants          GrantService
}

func newFixture(t *testing.T) *testFixture {
	t.Helper()

	db := newTestDB(t)
	mail := &fakeMailClient{}
	entitlementRepo := repository.NewEntitlementRepository(db)

	return &testFixture{
		db:              db,
		orderRepo:       repository.NewOrderRepository(db),
		entitlementRepo: entitlementRepo,
		webhookRepo:     repository.NewWebhookEventRepository(db),
		mail:            mail,
		grants:          NewGrantService(entitlementRepo, mail, zap.NewNop()),
	}
}

func (f *testFixture) confirmation(p Processor) ConfirmationService {
	return NewConfirmationService(p, f.orderRepo, f.webhookRepo, f.grants, zap.NewNop())
}
