package dto

// Payment methods accepted at checkout.
const (
	MethodStripe = "stripe"
	MethodPayOS  = "payos"
	MethodBank   = "bank"
)

type CheckoutRequest struct {
	UID           string `json:"uid,omitempty"`
	Email         string `json:"email,omitempty"`
	Product       string `json:"product"`
	CourseID      string `json:"courseId,omitempty"`
	PackageID     string `json:"packageId,omitempty"`
	Amount        int64  `json:"amount"`
	Method        string `json:"method"`
	BankAccountID string `json:"bankAccountId,omitempty"`
}

type CheckoutResponse struct {
	URL           string `json:"url"`
	OrderCode     int64  `json:"orderCode,omitempty"`
	QRCode        string `json:"qrCode,omitempty"`
	PaymentLinkID string `json:"paymentLinkId,omitempty"`
	// Memo carries the transfer note the purchaser must include for the
	// manual bank-transfer method.
	Memo string `json:"memo,omitempty"`
}

type ReconcileRequest struct {
	OrderCode int64 `json:"orderCode"`
}

type ReconcileResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Product string `json:"product,omitempty"`
}

type StatusResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
	IsPaid  bool   `json:"isPaid"`
	Message string `json:"message,omitempty"`
}

type PayOSAccountInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type EntitlementsResponse struct {
	Purchases map[string]bool `json:"purchases"`
}

type ClaimResponse struct {
	Claimed int `json:"claimed"`
}

type WebhookSetupRequest struct {
	WebhookURL string `json:"webhookUrl"`
}
