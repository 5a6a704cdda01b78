// Package notify fans a renewal-prompt message out across an owner's
// enabled notification channels. Channels fail independently; one channel's
// error never blocks or aborts another's attempt.
package notify

import "context"

// Message is one notification in every form the channels need. The scan job
// builds it once per subscription; each sender picks the representation its
// transport wants.
type Message struct {
	Subject string
	Text    string // plain text with action links, for Telegram
	HTML    string // for email bodies
	Payload WebhookPayload
}

// WebhookPayload is the JSON document POSTed to a user-supplied webhook URL.
type WebhookPayload struct {
	Type           string `json:"type"`
	SubscriptionID string `json:"subscription_id"`
	Name           string `json:"name"`
	Amount         string `json:"amount"`
	Currency       string `json:"currency"`
	RenewalDate    string `json:"renewal_date"`
	RenewURL       string `json:"renew_url"`
	CancelURL      string `json:"cancel_url"`
}

// Outcome statuses
const (
	OutcomeSent   = "sent"
	OutcomeFailed = "failed"
)

// Outcome is the per-channel result of one notification attempt.
type Outcome struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func sent() Outcome {
	return Outcome{Status: OutcomeSent}
}

func failed(reason string) Outcome {
	return Outcome{Status: OutcomeFailed, Reason: reason}
}

// The three channel transports. Senders assume a valid identity: the
// dispatcher checks "is this channel configured for this owner" before
// calling, senders never do.
type (
	EmailSender interface {
		Send(ctx context.Context, to string, msg Message) error
	}

	TelegramSender interface {
		Send(ctx context.Context, chatID int64, msg Message) error
	}

	WebhookSender interface {
		Send(ctx context.Context, url string, msg Message) error
	}
)
