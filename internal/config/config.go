package config

import (
	"fmt"
	"strings"
)

// DefaultPayOSAccountID is the account used when a checkout request does not
// name one.
const DefaultPayOSAccountID = "bank2"

type Config struct {
	Environment Environment
	Log         Log
	HTTP        HTTPServer

	// AppURL is the public base URL of the storefront. Redirect callbacks and
	// payment-link return URLs are built from it.
	AppURL      string `env:"APP_URL"`
	DatabaseURL string `env:"DATABASE_URL"`

	Auth   Auth         `envPrefix:"AUTH_"`
	Stripe Stripe       `envPrefix:"STRIPE_"`
	PayOS  PayOS        `envPrefix:"PAYOS_"`
	Bank   BankTransfer `envPrefix:"BANK_TRANSFER_"`
	SMTP   SMTP         `envPrefix:"SMTP_"`
}

type Environment struct {
	Name string `env:"ENVIRONMENT" envDefault:"development"`
}

type Log struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"json"`
}

type HTTPServer struct {
	Host string `env:"HTTP_HOST" envDefault:"0.0.0.0"`
	Port string `env:"HTTP_PORT" envDefault:"8080"`
}

type Auth struct {
	// JWTSecret verifies bearer tokens minted by the identity provider.
	JWTSecret string `env:"JWT_SECRET"`
}

type Stripe struct {
	SecretKey     string `env:"SECRET_KEY"`
	WebhookSecret string `env:"WEBHOOK_SECRET"`
	Currency      string `env:"CURRENCY" envDefault:"vnd"`
}

type PayOS struct {
	BaseAPIURL string `env:"BASE_API_URL" envDefault:"https://api-merchant.payos.vn"`

	Bank2 PayOSAccount `envPrefix:"BANK2_"`
}

// PayOSAccount is one set of PayOS merchant credentials. More than one account
// may be configured; checkout requests select one by account id.
type PayOSAccount struct {
	Name        string `env:"NAME" envDefault:"Bs Hoang Hiep"`
	ClientID    string `env:"CLIENT_ID"`
	APIKey      string `env:"API_KEY"`
	ChecksumKey string `env:"CHECKSUM_KEY"`
}

func (a PayOSAccount) Configured() bool {
	return a.ClientID != "" && a.APIKey != "" && a.ChecksumKey != ""
}

type BankTransfer struct {
	// QRImageURL points at the static transfer QR shown on the manual payment
	// page.
	QRImageURL  string `env:"QR_IMAGE_URL"`
	AccountName string `env:"ACCOUNT_NAME"`
}

type SMTP struct {
	Host     string `env:"HOST"`
	Port     string `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM"`
}

// Accounts returns the PayOS accounts with complete credentials, keyed by
// account id.
func (p PayOS) Accounts() map[string]PayOSAccount {
	accounts := make(map[string]PayOSAccount)
	if p.Bank2.Configured() {
		accounts["bank2"] = p.Bank2
	}
	return accounts
}

// Validate reports every missing required variable at once so a bad deploy
// fails with one complete message instead of one variable per restart.
func (c *Config) Validate() error {
	var missing []string

	if c.AppURL == "" {
		missing = append(missing, "APP_URL")
	}
	if c.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "AUTH_JWT_SECRET")
	}
	if c.Stripe.SecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.Stripe.WebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.PayOS.Bank2.ClientID == "" {
		missing = append(missing, "PAYOS_BANK2_CLIENT_ID")
	}
	if c.PayOS.Bank2.APIKey == "" {
		missing = append(missing, "PAYOS_BANK2_API_KEY")
	}
	if c.PayOS.Bank2.ChecksumKey == "" {
		missing = append(missing, "PAYOS_BANK2_CHECKSUM_KEY")
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}
