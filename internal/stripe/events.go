package stripe

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/subtrackd/subtrackd/internal/billing"
	"github.com/subtrackd/subtrackd/internal/logger"
)

// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event
func (sm *Manager) VerifyWebhookSignature(body []byte, signature string) (*stripe.Event, error) {
	event, err := webhook.ConstructEventWithOptions(body, signature, sm.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}
	return &event, nil
}

// ParseEvent maps a verified Stripe event onto the billing state machine's
// vocabulary. Provider event types outside the mapping come back as
// billing.EventUnknown; an event whose owner cannot be resolved from
// metadata comes back with OwnerID zero. Neither is an error - webhooks
// must stay safe to retry and to deliver out of order.
func (sm *Manager) ParseEvent(event *stripe.Event) (billing.Event, error) {
	switch event.Type {
	case "customer.subscription.created":
		return parseSubscriptionEvent(event, billing.EventSubscriptionActivated)
	case "customer.subscription.updated":
		return parseSubscriptionEvent(event, billing.EventSubscriptionUpdated)
	case "customer.subscription.deleted":
		return parseSubscriptionEvent(event, billing.EventSubscriptionCancelled)
	case "invoice.payment_succeeded":
		return parseInvoiceEvent(event, billing.EventPaymentSucceeded)
	case "invoice.payment_failed":
		return parseInvoiceEvent(event, billing.EventPaymentFailed)
	default:
		logger.Debug("Unhandled Stripe event type", map[string]interface{}{
			"event_type": event.Type,
			"event_id":   event.ID,
		})
		return billing.Event{Kind: billing.EventUnknown}, nil
	}
}

func parseSubscriptionEvent(event *stripe.Event, kind billing.EventKind) (billing.Event, error) {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return billing.Event{}, fmt.Errorf("error parsing subscription: %w", err)
	}

	ev := billing.Event{
		Kind:                   kind,
		OwnerID:                ownerFromMetadata(sub.Metadata),
		ExternalSubscriptionID: sub.ID,
		ReportedStatus:         string(sub.Status),
	}
	if sub.TrialEnd > 0 {
		t := time.Unix(sub.TrialEnd, 0)
		ev.TrialEnd = &t
	}
	return ev, nil
}

func parseInvoiceEvent(event *stripe.Event, kind billing.EventKind) (billing.Event, error) {
	var invoice stripe.Invoice
	if err := json.Unmarshal(event.Data.Raw, &invoice); err != nil {
		return billing.Event{}, fmt.Errorf("error parsing invoice: %w", err)
	}

	ev := billing.Event{Kind: kind}

	// Invoices reference their subscription through the parent details;
	// one-off invoices carry none and stay unattributed.
	if invoice.Parent != nil && invoice.Parent.SubscriptionDetails != nil {
		details := invoice.Parent.SubscriptionDetails
		if details.Subscription != nil {
			ev.ExternalSubscriptionID = details.Subscription.ID
		}
		ev.OwnerID = ownerFromMetadata(details.Metadata)
	}

	return ev, nil
}

// ownerFromMetadata resolves the owner reference the checkout flow stamps
// onto every provider subscription.
func ownerFromMetadata(metadata map[string]string) int64 {
	raw, ok := metadata["user_id"]
	if !ok {
		return 0
	}
	ownerID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0
	}
	return ownerID
}
