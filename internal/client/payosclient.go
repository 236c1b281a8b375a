package client

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"healing-commerce/internal/config"
)

// ErrSignatureMismatch reports a webhook payload whose HMAC does not match
// the account's checksum key.
var ErrSignatureMismatch = errors.New("webhook signature mismatch")

// PayOSClient talks to the PayOS payment-request API for one merchant
// account. It is a stateless configuration wrapper, safe for concurrent use.
type PayOSClient interface {
	AccountID() string
	AccountName() string

	CreatePaymentLink(ctx context.Context, req *PayOSPaymentRequest) (*PayOSPaymentLink, error)
	// GetPaymentInfo accepts an order code or a payment-link id.
	GetPaymentInfo(ctx context.Context, id string) (*PayOSPaymentInfo, error)
	ConfirmWebhook(ctx context.Context, webhookURL string) error

	// VerifyWebhookBody checks the HMAC signature carried in a webhook payload
	// and returns the signed data section.
	VerifyWebhookBody(body []byte) (*PayOSWebhookData, error)
}

type payosClientImpl struct {
	httpClient  *http.Client
	baseAPIURL  string
	accountID   string
	accountName string
	clientID    string
	apiKey      string
	checksumKey string
}

func NewPayOSClient(baseAPIURL, accountID string, account config.PayOSAccount) PayOSClient {
	return &payosClientImpl{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseAPIURL:  baseAPIURL,
		accountID:   accountID,
		accountName: account.Name,
		clientID:    account.ClientID,
		apiKey:      account.APIKey,
		checksumKey: account.ChecksumKey,
	}
}

type PayOSItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

type PayOSPaymentRequest struct {
	OrderCode   int64       `json:"orderCode"`
	Amount      int64       `json:"amount"`
	Description string      `json:"description"`
	Items       []PayOSItem `json:"items"`
	CancelURL   string      `json:"cancelUrl"`
	ReturnURL   string      `json:"returnUrl"`
	Signature   string      `json:"signature"`
}

type PayOSPaymentLink struct {
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
	PaymentLinkID string `json:"paymentLinkId"`
}

type PayOSPaymentInfo struct {
	OrderCode     int64  `json:"orderCode"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	Description   string `json:"description"`
	PaymentLinkID string `json:"paymentLinkId"`
	CreatedAt     string `json:"createdAt"`
}

// PayOSWebhookData is the signed data section of a webhook delivery.
type PayOSWebhookData struct {
	OrderCode     int64  `json:"orderCode"`
	Amount        int64  `json:"amount"`
	Description   string `json:"description"`
	Reference     string `json:"reference"`
	Code          string `json:"code"`
	Desc          string `json:"desc"`
	PaymentLinkID string `json:"paymentLinkId"`
}

type payosEnvelope struct {
	Code string          `json:"code"`
	Desc string          `json:"desc"`
	Data json.RawMessage `json:"data"`
}

func (c *payosClientImpl) AccountID() string   { return c.accountID }
func (c *payosClientImpl) AccountName() string { return c.accountName }

func (c *payosClientImpl) CreatePaymentLink(ctx context.Context, req *PayOSPaymentRequest) (*PayOSPaymentLink, error) {
	// The request signature covers the order fields in canonical sorted form.
	req.Signature = SignPayload(map[string]any{
		"amount":      strconv.FormatInt(req.Amount, 10),
		"cancelUrl":   req.CancelURL,
		"description": req.Description,
		"orderCode":   strconv.FormatInt(req.OrderCode, 10),
		"returnUrl":   req.ReturnURL,
	}, c.checksumKey)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal payment request: %w", err)
	}

	data, err := c.do(ctx, http.MethodPost, "/v2/payment-requests", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var link PayOSPaymentLink
	if err := json.Unmarshal(data, &link); err != nil {
		return nil, fmt.Errorf("decode payment link: %w", err)
	}
	if link.CheckoutURL == "" {
		return nil, fmt.Errorf("no checkout url in payos response")
	}
	return &link, nil
}

func (c *payosClientImpl) GetPaymentInfo(ctx context.Context, id string) (*PayOSPaymentInfo, error) {
	data, err := c.do(ctx, http.MethodGet, "/v2/payment-requests/"+id, nil)
	if err != nil {
		return nil, err
	}

	var info PayOSPaymentInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decode payment info: %w", err)
	}
	return &info, nil
}

func (c *payosClientImpl) ConfirmWebhook(ctx context.Context, webhookURL string) error {
	body, err := json.Marshal(map[string]string{"webhookUrl": webhookURL})
	if err != nil {
		return fmt.Errorf("marshal confirm webhook request: %w", err)
	}

	_, err = c.do(ctx, http.MethodPost, "/confirm-webhook", bytes.NewReader(body))
	return err
}

func (c *payosClientImpl) VerifyWebhookBody(body []byte) (*PayOSWebhookData, error) {
	var envelope struct {
		Data      json.RawMessage `json:"data"`
		Signature string          `json:"signature"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode webhook body: %w", err)
	}
	if len(envelope.Data) == 0 || envelope.Signature == "" {
		return nil, fmt.Errorf("webhook body missing data or signature")
	}

	// Decode into a generic map with UseNumber so numeric values keep their
	// original text for the canonical string.
	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(envelope.Data))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("decode webhook data: %w", err)
	}

	expected := SignPayload(fields, c.checksumKey)
	if !hmac.Equal([]byte(expected), []byte(envelope.Signature)) {
		return nil, ErrSignatureMismatch
	}

	var data PayOSWebhookData
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("decode webhook data fields: %w", err)
	}
	return &data, nil
}

func (c *payosClientImpl) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseAPIURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("http new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("payos request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read payos response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("payos error %d: %s", resp.StatusCode, string(raw))
	}

	var envelope payosEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode payos envelope: %w", err)
	}
	if envelope.Code != "00" {
		return nil, fmt.Errorf("payos error code %s: %s", envelope.Code, envelope.Desc)
	}
	return envelope.Data, nil
}

// CanonicalString builds the string PayOS signs: payload keys sorted
// alphabetically, each serialized as key=value and joined with &. Null values
// encode as the empty string, arrays and objects as their JSON text,
// everything else by plain string coercion.
func CanonicalString(fields map[string]any) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte('&')
		}
		buf.WriteString(k)
		buf.WriteByte('=')
		buf.WriteString(encodeCanonicalValue(fields[k]))
	}
	return buf.String()
}

// SignPayload computes the hex HMAC-SHA256 of the canonical string.
func SignPayload(fields map[string]any, checksumKey string) string {
	h := hmac.New(sha256.New, []byte(checksumKey))
	h.Write([]byte(CanonicalString(fields)))
	return hex.EncodeToString(h.Sum(nil))
}

func encodeCanonicalValue(v any) string {
	switch value := v.(type) {
	case nil:
		return ""
	case string:
		return value
	case json.Number:
		return value.String()
	case bool:
		return strconv.FormatBool(value)
	case map[string]any, []any:
		text, err := json.Marshal(value)
		if err != nil {
			return ""
		}
		return string(text)
	default:
		return fmt.Sprint(value)
	}
}
