package database

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/subtrackd/subtrackd/internal/consts"
)

// parseAmount converts the DECIMAL column's text form into a decimal value.
func parseAmount(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// Subscription is one tracked recurring payment owned by a user.
type Subscription struct {
	ID           string          `db:"id" json:"id"`
	OwnerID      int64           `db:"owner_id" json:"owner_id"`
	Name         string          `db:"name" json:"name"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	Currency     string          `db:"currency" json:"currency"`
	BillingCycle string          `db:"billing_cycle" json:"billing_cycle"`
	RenewalDate  *time.Time      `db:"renewal_date" json:"renewal_date"` // calendar date, nil until scheduled
	Status       string          `db:"status" json:"status"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// IsActive reports whether the subscription participates in due-date scans.
func (s *Subscription) IsActive() bool {
	return s.Status == consts.SubscriptionActive
}

// OwnerProfile is the billing- and notification-relevant projection of a
// user account. The wider account record (credentials, preferences UI and
// so on) lives outside this engine.
type OwnerProfile struct {
	ID                     int64      `db:"id" json:"id"`
	Email                  string     `db:"email" json:"email"`
	BillingStatus          string     `db:"billing_status" json:"billing_status"`
	ExternalSubscriptionID string     `db:"external_subscription_id" json:"external_subscription_id"`
	TrialEndsAt            *time.Time `db:"trial_ends_at" json:"trial_ends_at"`

	// Channel identities and per-channel switches
	TelegramChatID   *int64 `db:"telegram_chat_id" json:"telegram_chat_id"`
	WebhookURL       string `db:"webhook_url" json:"webhook_url"`
	EmailEnabled     bool   `db:"email_enabled" json:"email_enabled"`
	TelegramEnabled  bool   `db:"telegram_enabled" json:"telegram_enabled"`
	WebhookEnabled   bool   `db:"webhook_enabled" json:"webhook_enabled"`
	NotifyExpiration bool   `db:"notify_expiration" json:"notify_expiration"`
}

// HasEmailChannel reports whether the email channel is both switched on and
// has an address to deliver to.
func (o *OwnerProfile) HasEmailChannel() bool {
	return o.EmailEnabled && o.Email != ""
}

// HasTelegramChannel reports whether a chat binding exists and the channel
// is switched on.
func (o *OwnerProfile) HasTelegramChannel() bool {
	return o.TelegramEnabled && o.TelegramChatID != nil
}

// HasWebhookChannel reports whether a webhook URL is configured and enabled.
func (o *OwnerProfile) HasWebhookChannel() bool {
	return o.WebhookEnabled && o.WebhookURL != ""
}
