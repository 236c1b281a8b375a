package model

import "time"

// Product kinds sold by the storefront.
const (
	ProductMeals  = "meals"
	ProductCourse = "course"
	ProductMentor = "mentor"
	ProductCombo  = "combo"
)

// Order statuses. Transitions only move forward: PENDING -> PAID. COMPLETED is
// treated as equivalent-or-later than PAID and is never rolled back.
const (
	StatusPending   = "PENDING"
	StatusPaid      = "PAID"
	StatusCompleted = "COMPLETED"
)

// ValidProduct reports whether p is a recognized product kind.
func ValidProduct(p string) bool {
	switch p {
	case ProductMeals, ProductCourse, ProductMentor, ProductCombo:
		return true
	}
	return false
}

// Order is one purchase intent, keyed by the generated order code that the
// payment processor echoes back in confirmations.
type Order struct {
	OrderCode int64  `gorm:"primaryKey;autoIncrement:false"`
	UID       string `gorm:"size:64;index"`  // empty when purchaser was anonymous
	Email     string `gorm:"size:255;index"` // fallback correlation key
	Product   string `gorm:"size:16;not null"`
	CourseID  string `gorm:"size:64"`
	PackageID string `gorm:"size:64"`
	Amount    int64  `gorm:"not null"` // smallest currency unit
	Status    string `gorm:"size:16;index;not null"`

	BankAccountID string `gorm:"size:32"` // which PayOS account issued the link
	PaymentLinkID string `gorm:"size:64"`
	Description   string `gorm:"size:255"`

	// Reconstructed marks orders rebuilt from processor data after the ledger
	// write was lost. Product on such orders is a keyword-matched guess.
	Reconstructed     bool
	ManuallyProcessed bool

	CreatedAt time.Time
	PaidAt    *time.Time
}

// UserAccount mirrors the identity-provider account. Created on first grant if
// the purchaser has no row yet. Re-creating it is harmless (empty shape).
type UserAccount struct {
	UID       string `gorm:"primaryKey;size:64"`
	Email     string `gorm:"size:255;index"`
	CreatedAt time.Time
}

// AccountEntitlement is one granted entitlement key on an account. The set of
// rows for a uid is the account's purchases map; absence means not granted.
// Rows are append-only, so granting is a set-to-true with no counter.
type AccountEntitlement struct {
	UID       string `gorm:"primaryKey;size:64"`
	Key       string `gorm:"primaryKey;size:80;column:entitlement_key"`
	CreatedAt time.Time
}

// PreauthorizedEntitlement holds grants correlated only by email, written when
// no account id was known at payment time. Merged into AccountEntitlement when
// the email's owner signs in and claims them.
type PreauthorizedEntitlement struct {
	Email     string `gorm:"primaryKey;size:255"` // always lowercase
	Key       string `gorm:"primaryKey;size:80;column:entitlement_key"`
	CreatedAt time.Time
}

// WebhookEvent records processed webhook deliveries for dedup. A replayed
// event id is acknowledged without re-running side effects.
type WebhookEvent struct {
	EventID     string `gorm:"primaryKey;size:128"`
	Provider    string `gorm:"size:16;index"`
	EventType   string `gorm:"size:64;index"`
	OrderCode   int64  `gorm:"index"`
	ProcessedAt time.Time
	CreatedAt   time.Time
}
