package client

import (
	"bytes"
	"encoding/json"
	"testing"

	"healing-commerce/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChecksumKey = "test-checksum-key"

func testPayOSClient() PayOSClient {
	return NewPayOSClient("https://api-merchant.payos.example", "bank2", config.PayOSAccount{
		Name:        "Test Account",
		ClientID:    "client",
		APIKey:      "key",
		ChecksumKey: testChecksumKey,
	})
}

func TestCanonicalStringSortsKeys(t *testing.T) {
	fields := map[string]any{
		"orderCode": json.Number("1763358892000902"),
		"amount":    json.Number("20000"),
		"desc":      "success",
	}

	got := CanonicalString(fields)
	assert.Equal(t, "amount=20000&desc=success&orderCode=1763358892000902", got)
}

func TestCanonicalStringValueEncoding(t *testing.T) {
	tests := []struct {
		name   string
		fields map[string]any
		want   string
	}{
		{
			name:   "null encodes as empty string",
			fields: map[string]any{"counterAccountName": nil, "code": "00"},
			want:   "code=00&counterAccountName=",
		},
		{
			name:   "array encodes as JSON text",
			fields: map[string]any{"items": []any{json.Number("1"), "two"}},
			want:   `items=[1,"two"]`,
		},
		{
			name:   "nested object encodes as JSON text",
			fields: map[string]any{"extra": map[string]any{"bank": "ACB"}},
			want:   `extra={"bank":"ACB"}`,
		},
		{
			name:   "bool coerces to string",
			fields: map[string]any{"success": true},
			want:   "success=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanonicalString(tt.fields))
		})
	}
}

func TestCanonicalStringDeterministic(t *testing.T) {
	fields := map[string]any{
		"b": json.Number("2"),
		"a": "one",
		"c": nil,
		"d": []any{"x"},
	}

	first := CanonicalString(fields)
	for i := 0; i < 50; i++ {
		require.Equal(t, first, CanonicalString(fields))
	}
}

func signedWebhookBody(t *testing.T, data map[string]any) []byte {
	t.Helper()

	body, err := json.Marshal(map[string]any{
		"code":      "00",
		"desc":      "success",
		"success":   true,
		"data":      data,
		"signature": signatureFor(t, data),
	})
	require.NoError(t, err)
	return body
}

func signatureFor(t *testing.T, data map[string]any) string {
	t.Helper()

	raw, err := json.Marshal(data)
	require.NoError(t, err)

	var fields map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&fields))

	return SignPayload(fields, testChecksumKey)
}

func TestVerifyWebhookBodyAccepts(t *testing.T) {
	c := testPayOSClient()

	body := signedWebhookBody(t, map[string]any{
		"orderCode":   1763358892000902,
		"amount":      20000,
		"description": "All Meals Access",
		"reference":   "FT12345",
		"code":        "00",
		"desc":        "success",
	})

	data, err := c.VerifyWebhookBody(body)
	require.NoError(t, err)
	assert.Equal(t, int64(1763358892000902), data.OrderCode)
	assert.Equal(t, int64(20000), data.Amount)
	assert.Equal(t, "FT12345", data.Reference)
}

func TestVerifyWebhookBodyRejectsTamperedAmount(t *testing.T) {
	c := testPayOSClient()

	data := map[string]any{
		"orderCode": 1763358892000902,
		"amount":    20000,
		"code":      "00",
	}
	signature := signatureFor(t, data)

	// Tamper with the amount but keep the stale signature.
	body, err := json.Marshal(map[string]any{
		"code":      "00",
		"data":      map[string]any{"orderCode": 1763358892000902, "amount": 999999, "code": "00"},
		"signature": signature,
	})
	require.NoError(t, err)

	_, err = c.VerifyWebhookBody(body)
	assert.ErrorIs(t, err, ErrSignatureMismatch)
}

func TestVerifyWebhookBodyRejectsMissingSignature(t *testing.T) {
	c := testPayOSClient()

	body := []byte(`{"code":"00","data":{"orderCode":1}}`)
	_, err := c.VerifyWebhookBody(body)
	require.Error(t, err)
}

func TestVerifyWebhookBodyRejectsGarbage(t *testing.T) {
	c := testPayOSClient()

	_, err := c.VerifyWebhookBody([]byte("not json"))
	require.Error(t, err)
}

func TestSignPayloadMatchesKnownVector(t *testing.T) {
	// Signer and verifier must agree on the canonical form regardless of the
	// order keys arrive in.
	a := SignPayload(map[string]any{"x": "1", "y": "2"}, "secret")
	b := SignPayload(map[string]any{"y": "2", "x": "1"}, "secret")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64) // hex sha256
}

