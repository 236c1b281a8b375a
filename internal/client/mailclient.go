package client

import (
	"fmt"
	"net/smtp"
	"strings"

	"healing-commerce/internal/config"

	"github.com/shopspring/decimal"
)

// MailClient sends transactional mail. Dispatch is always best-effort: callers
// log failures and move on, a lost confirmation email never blocks a grant.
type MailClient interface {
	SendPurchaseConfirmation(m *PurchaseMail) error
}

type PurchaseMail struct {
	To        string
	Product   string
	CourseID  string
	PackageID string
	OrderCode int64
	Amount    int64
}

type smtpMailClient struct {
	addr     string
	auth     smtp.Auth
	from     string
	appURL   string
	disabled bool
}

func NewMailClient(cfg *config.SMTP, appURL string) MailClient {
	return &smtpMailClient{
		addr:     cfg.Host + ":" + cfg.Port,
		auth:     smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host),
		from:     cfg.From,
		appURL:   appURL,
		disabled: cfg.Host == "" || cfg.From == "",
	}
}

func (c *smtpMailClient) SendPurchaseConfirmation(m *PurchaseMail) error {
	if c.disabled {
		return fmt.Errorf("smtp not configured")
	}

	name := productDisplayName(m.Product, m.CourseID, m.PackageID)

	var body strings.Builder
	body.WriteString("Thank you for your purchase!\r\n\r\n")
	fmt.Fprintf(&body, "Product: %s\r\n", name)
	if m.OrderCode != 0 {
		fmt.Fprintf(&body, "Order code: %d\r\n", m.OrderCode)
	}
	if m.Amount > 0 {
		fmt.Fprintf(&body, "Amount: %s VND\r\n", formatVND(m.Amount))
	}
	fmt.Fprintf(&body, "\r\nYour account now has access to %s.\r\n", name)
	fmt.Fprintf(&body, "Sign in at %s/account to get started.\r\n", c.appURL)

	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: Purchase confirmation\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s",
		c.from, m.To, body.String(),
	)

	if err := smtp.SendMail(c.addr, c.auth, c.from, []string{m.To}, []byte(msg)); err != nil {
		return fmt.Errorf("send purchase confirmation: %w", err)
	}
	return nil
}

func productDisplayName(product, courseID, packageID string) string {
	switch product {
	case "meals":
		return "Meals Library"
	case "course":
		if courseID != "" {
			return "Course " + strings.ToUpper(courseID)
		}
		return "Course Access"
	case "mentor":
		if packageID != "" {
			return "Mentor Package " + packageID
		}
		return "Mentor Package"
	case "combo":
		return "Complete Healing Combo"
	default:
		return "Product"
	}
}

// formatVND groups thousands the way the storefront displays amounts.
func formatVND(amount int64) string {
	text := decimal.NewFromInt(amount).StringFixed(0)

	var out strings.Builder
	for i, r := range text {
		if i > 0 && (len(text)-i)%3 == 0 && r != '-' {
			out.WriteByte('.')
		}
		out.WriteRune(r)
	}
	return out.String()
}
