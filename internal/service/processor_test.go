package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"healing-commerce/internal/client"
	"healing-commerce/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
)

func TestPaidStatusToken(t *testing.T) {
	for _, status := range []string{"PAID", "paid", "COMPLETED", "SUCCESS", "success"} {
		assert.True(t, paidStatusToken(status), status)
	}
	for _, status := range []string{"PENDING", "CANCELLED", "EXPIRED", ""} {
		assert.False(t, paidStatusToken(status), status)
	}
}

func TestPayOSProcessorVerifyWebhook(t *testing.T) {
	p := NewPayOSProcessor(&fakePayOSClient{
		webhookData: &client.PayOSWebhookData{
			OrderCode: 100,
			Amount:    20000,
			Reference: "FT12345",
			Code:      "00",
		},
	})

	wh, err := p.VerifyWebhook([]byte("{}"), "")
	require.NoError(t, err)
	assert.Equal(t, "payos-100-FT12345", wh.EventID)
	assert.Equal(t, int64(100), wh.OrderCode)
	assert.True(t, wh.Paid)
}

func TestPayOSProcessorVerifyWebhookNoReference(t *testing.T) {
	p := NewPayOSProcessor(&fakePayOSClient{
		webhookData: &client.PayOSWebhookData{OrderCode: 100, Code: "00"},
	})

	wh, err := p.VerifyWebhook([]byte("{}"), "")
	require.NoError(t, err)
	// Without a transaction reference the event still gets a dedup id.
	assert.True(t, strings.HasPrefix(wh.EventID, "payos-"))
	assert.NotEqual(t, "payos-100-", wh.EventID)
}

func TestPayOSProcessorVerifyWebhookPaidByDesc(t *testing.T) {
	p := NewPayOSProcessor(&fakePayOSClient{
		webhookData: &client.PayOSWebhookData{OrderCode: 100, Code: "01", Desc: "success"},
	})

	wh, err := p.VerifyWebhook([]byte("{}"), "")
	require.NoError(t, err)
	assert.True(t, wh.Paid)
}

func TestPayOSProcessorVerifyWebhookBadSignature(t *testing.T) {
	p := NewPayOSProcessor(&fakePayOSClient{
		webhookErr: fmt.Errorf("verify webhook: %w", client.ErrSignatureMismatch),
	})

	_, err := p.VerifyWebhook([]byte("{}"), "")
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestPayOSProcessorVerifyWebhookMalformed(t *testing.T) {
	p := NewPayOSProcessor(&fakePayOSClient{
		webhookErr: fmt.Errorf("decode webhook body: unexpected end of JSON input"),
	})

	_, err := p.VerifyWebhook([]byte("not json"), "")
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestPayOSProcessorFetchStatus(t *testing.T) {
	p := NewPayOSProcessor(&fakePayOSClient{
		paymentInfo: &client.PayOSPaymentInfo{
			OrderCode:     100,
			Amount:        20000,
			Status:        "PAID",
			Description:   "All Meals Access",
			PaymentLinkID: "link-100",
		},
	})

	status, err := p.FetchStatus(context.Background(), "100")
	require.NoError(t, err)
	assert.True(t, status.Paid)
	assert.Equal(t, int64(100), status.OrderCode)
	assert.Equal(t, "link-100", status.PaymentLinkID)
}

func stripeSessionEvent(t *testing.T, eventType string, session map[string]any) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(session)
	require.NoError(t, err)

	return &stripe.Event{
		ID:   "evt_1",
		Type: stripe.EventType(eventType),
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestStripeProcessorCheckoutCompleted(t *testing.T) {
	p := NewStripeProcessor(&fakeStripeClient{
		event: stripeSessionEvent(t, "checkout.session.completed", map[string]any{
			"client_reference_id": "u1",
			"customer_details":    map[string]any{"email": "card@example.com"},
			"customer_email":      "fallback@example.com",
			"amount_total":        490000,
			"metadata": map[string]string{
				"product":    model.ProductCourse,
				"courseId":   "breathwork",
				"order_code": "1763358892000902",
			},
		}),
	})

	wh, err := p.VerifyWebhook([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, "evt_1", wh.EventID)
	assert.True(t, wh.Paid)
	assert.Equal(t, int64(1763358892000902), wh.OrderCode)

	require.NotNil(t, wh.Grant)
	assert.Equal(t, "u1", wh.Grant.UID)
	assert.Equal(t, "card@example.com", wh.Grant.Email)
	assert.Equal(t, model.ProductCourse, wh.Grant.Product)
	assert.Equal(t, "breathwork", wh.Grant.CourseID)
	assert.True(t, wh.Grant.Notify)
}

func TestStripeProcessorEmailFallback(t *testing.T) {
	p := NewStripeProcessor(&fakeStripeClient{
		event: stripeSessionEvent(t, "checkout.session.completed", map[string]any{
			"customer_email": "fallback@example.com",
			"metadata":       map[string]string{"product": model.ProductMeals},
		}),
	})

	wh, err := p.VerifyWebhook([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.Equal(t, "fallback@example.com", wh.Grant.Email)
}

func TestStripeProcessorIgnoresOtherEvents(t *testing.T) {
	p := NewStripeProcessor(&fakeStripeClient{
		event: stripeSessionEvent(t, "payment_intent.created", map[string]any{}),
	})

	wh, err := p.VerifyWebhook([]byte("{}"), "sig")
	require.NoError(t, err)
	assert.False(t, wh.Paid)
	assert.Nil(t, wh.Grant)
}

func TestStripeProcessorBadSignature(t *testing.T) {
	p := NewStripeProcessor(&fakeStripeClient{
		eventErr: fmt.Errorf("webhook signature verification failed"),
	})

	_, err := p.VerifyWebhook([]byte("{}"), "bad")
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestStripeProcessorNoStatusFetch(t *testing.T) {
	p := NewStripeProcessor(&fakeStripeClient{})

	_, err := p.FetchStatus(context.Background(), "100")
	assert.Error(t, err)
}
